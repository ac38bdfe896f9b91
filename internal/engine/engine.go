// Package engine defines the contract between the message router and the two
// conversation engines: the prospect qualification flow and the customer
// intent classifier.
package engine

import (
	"context"

	"github.com/tidynest/selenas/internal/directory"
	"github.com/tidynest/selenas/internal/session"
)

// Context carries everything an engine may need to compose a reply. The
// router fills in whatever it has; engines must tolerate nil fields.
type Context struct {
	// Customer is non-nil when the phone belongs to a known customer.
	Customer      *directory.CustomerRecord
	Upcoming      *directory.BookingSummary
	LastCompleted *directory.BookingSummary

	// Conversation is the active qualification session, nil for customers
	// and for prospects without one yet.
	Conversation *session.Conversation

	// ReturningTexter is set when the phone has a prior expired or completed
	// conversation, so greetings can acknowledge the return.
	ReturningTexter bool
}

// Reply is the engine's answer to one inbound message.
type Reply struct {
	Body string

	// Intent labels what the engine decided, for logging and metrics.
	Intent string
}

// Engine turns one inbound message into at most one reply.
type Engine interface {
	// Kind names the engine in logs and metrics.
	Kind() string
	Handle(ctx context.Context, message string, ec *Context) (Reply, error)
}
