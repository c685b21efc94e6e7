package gmail

import (
	"fmt"

	"github.com/emersion/go-sasl"
)

// xoauth2Client implements the XOAUTH2 SASL mechanism Gmail expects:
// "user=<email>\x01auth=Bearer <token>\x01\x01", base64-encoded by the
// protocol layer.
type xoauth2Client struct {
	username string
	token    string
	done     bool
}

func newXOAUTH2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	response := fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", c.username, c.token)
	return "XOAUTH2", []byte(response), nil
}

// Next handles the error challenge the server sends on rejection: the
// client answers with an empty response and the server fails the exchange.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	if c.done {
		return nil, fmt.Errorf("unexpected XOAUTH2 challenge: %s", challenge)
	}
	c.done = true
	return []byte{}, nil
}
