package handlers

import (
	"context"
	"os/signal"
	"syscall"
)

// contextWithInterrupt returns a context cancelled by Ctrl-C or SIGTERM.
// The stop function is intentionally dropped; command processes exit soon
// after the context ends.
func contextWithInterrupt() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx
}
