// Package gmail polls a Gmail label over IMAP for newsletter messages and
// turns them into clean library-ready content.
package gmail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"skim/internal/core"
	"skim/internal/logger"
)

const imapAddress = "imap.gmail.com:993"

// Poller fetches newsletter messages for one Gmail account. One IMAP
// connection is opened and closed per poll cycle.
type Poller struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
	tokenURL     string
	imapAddress  string
}

// NewPoller creates a poller with the OAuth client credentials used for
// token refresh.
func NewPoller(clientID, clientSecret string) *Poller {
	return &Poller{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		tokenURL:     googleTokenURL,
		imapAddress:  imapAddress,
	}
}

// Newsletter is one processed newsletter message.
type Newsletter struct {
	UID            uint32
	Subject        string
	SenderName     string
	SenderEmail    string
	Date           time.Time
	Content        string // Cleaned HTML
	NewsletterName string
	UnsubscribeURL string
	SyntheticURL   string
}

// FetchNew connects to Gmail, fetches messages with UID greater than
// cfg.LastUID from the configured label, and returns them processed along
// with the highest UID seen.
func (p *Poller) FetchNew(ctx context.Context, cfg *core.GmailConfig) ([]Newsletter, uint32, error) {
	if _, err := p.EnsureToken(ctx, cfg); err != nil {
		return nil, 0, err
	}

	client, err := imapclient.DialTLS(p.imapAddress, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to connect to gmail: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Authenticate(newXOAUTH2Client(cfg.Email, cfg.AccessToken)); err != nil {
		return nil, 0, fmt.Errorf("XOAUTH2 authentication failed: %w", err)
	}

	label := cfg.Label
	if label == "" {
		label = "Newsletters"
	}
	if _, err := client.Select(label, nil).Wait(); err != nil {
		return nil, 0, fmt.Errorf("failed to select label %q: %w", label, err)
	}

	uids, err := p.searchNewUIDs(client, cfg.LastUID)
	if err != nil {
		return nil, 0, err
	}
	if len(uids) == 0 {
		return nil, cfg.LastUID, nil
	}

	newsletters, highest := p.fetchMessages(client, uids)
	if err := client.Logout().Wait(); err != nil {
		logger.Debug("imap logout failed", "error", err)
	}
	return newsletters, highest, nil
}

func (p *Poller) searchNewUIDs(client *imapclient.Client, lastUID uint32) ([]imap.UID, error) {
	criteria := &imap.SearchCriteria{
		UID: []imap.UIDSet{{imap.UIDRange{Start: imap.UID(lastUID + 1), Stop: 0}}},
	}
	data, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("UID search failed: %w", err)
	}
	return data.AllUIDs(), nil
}

// fetchMessages retrieves and parses each message. Per-message failures are
// logged and skipped; the UID still counts toward the high-water mark so a
// bad message is not retried forever.
func (p *Poller) fetchMessages(client *imapclient.Client, uids []imap.UID) ([]Newsletter, uint32) {
	section := &imap.FetchItemBodySection{}
	options := &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{section},
	}

	var highest uint32
	var newsletters []Newsletter

	uidSet := imap.UIDSetNum(uids...)
	messages, err := client.Fetch(uidSet, options).Collect()
	if err != nil {
		logger.Warn("imap fetch failed", "error", err)
		return nil, 0
	}

	for _, msg := range messages {
		uid := uint32(msg.UID)
		if uid > highest {
			highest = uid
		}
		raw := msg.FindBodySection(section)
		if raw == nil {
			logger.Warn("message had no body section", "uid", uid)
			continue
		}
		newsletter, err := parseMessage(raw)
		if err != nil {
			logger.Warn("failed to parse newsletter message", "uid", uid, "error", err)
			continue
		}
		newsletter.UID = uid
		newsletters = append(newsletters, *newsletter)
	}
	return newsletters, highest
}

// parseMessage extracts subject, sender, date, and body (HTML preferred)
// from a raw RFC 822 message and cleans it into newsletter content.
func parseMessage(raw []byte) (*Newsletter, error) {
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIME message: %w", err)
	}

	n := &Newsletter{}
	n.Subject, _ = reader.Header.Subject()
	if date, err := reader.Header.Date(); err == nil {
		n.Date = date
	} else {
		n.Date = time.Now().UTC()
	}
	if from, err := reader.Header.AddressList("From"); err == nil && len(from) > 0 {
		n.SenderName = from[0].Name
		n.SenderEmail = from[0].Address
	}

	listID := reader.Header.Get("List-Id")
	xMailer := reader.Header.Get("X-Mailer")
	listUnsubscribe := reader.Header.Get("List-Unsubscribe")

	var htmlBody, textBody string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := header.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch contentType {
		case "text/html":
			htmlBody = string(body)
		case "text/plain":
			textBody = string(body)
		}
	}

	if htmlBody != "" {
		n.Content = CleanHTML(htmlBody)
	} else if textBody != "" {
		n.Content = "<pre>" + textBody + "</pre>"
	} else {
		return nil, fmt.Errorf("message has no readable body")
	}

	n.NewsletterName = DeriveName(listID, xMailer, htmlBody)
	if n.NewsletterName == "" {
		n.NewsletterName = n.SenderName
	}
	n.UnsubscribeURL = DeriveUnsubscribeURL(listUnsubscribe, htmlBody)
	n.SyntheticURL = SyntheticURL(n.SenderEmail, n.Date)
	return n, nil
}

// SyntheticURL builds the stable library URL for a newsletter message.
// Duplicate polls produce the same URL, so re-inserts are skipped.
func SyntheticURL(senderEmail string, date time.Time) string {
	return fmt.Sprintf("%sgmail/%s_%s",
		core.NewsletterFeedScheme,
		strings.ToLower(senderEmail),
		date.UTC().Format("20060102150405"))
}
