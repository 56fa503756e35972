// Package transport defines the delivery primitive the broadcaster fans out
// through, and the typed failure taxonomy per recipient.
package transport

import (
	"context"
	"fmt"
)

// Message is one formatted notification ready for delivery.
type Message struct {
	// Text is HTML-formatted body text.
	Text string

	// Images are URLs; the first becomes the lead photo, the rest an album.
	Images []string

	// Buttons are inline action links, one slice per row.
	Buttons [][]Button
}

// Button is an outbound URL button.
type Button struct {
	Text string
	URL  string
}

// FailureClass classifies a per-recipient delivery failure. The broadcaster
// logs and continues on all of them; the class only decides what the log
// says and what gets signaled upward.
type FailureClass int

const (
	// FailTransient: timeout, rate limit, server-side hiccup. Nothing is
	// retried within the cycle; the event was already marked delivered in
	// the cursor (at-most-once beats duplicate spam).
	FailTransient FailureClass = iota

	// FailUnreachable: the recipient no longer exists or blocked the bot.
	// Candidate for deactivation by the account manager; the relay itself
	// never mutates subscriber state.
	FailUnreachable

	// FailPermanent: the payload was rejected (malformed markup etc.).
	// Retrying the same bytes would fail the same way.
	FailPermanent
)

func (c FailureClass) String() string {
	switch c {
	case FailUnreachable:
		return "unreachable"
	case FailPermanent:
		return "permanent"
	default:
		return "transient"
	}
}

// SendError is a classified delivery failure.
type SendError struct {
	Class FailureClass
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed (%s): %v", e.Class, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Sender delivers one formatted message to one recipient. Implementations
// return *SendError for classified failures.
type Sender interface {
	Send(ctx context.Context, recipient int64, msg Message) error
}
