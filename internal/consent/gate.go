package consent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidynest/selenas/internal/directory"
	"github.com/tidynest/selenas/internal/session"
	"github.com/tidynest/selenas/pkg/logging"
)

// Result of running an inbound message through the gate.
type Result int

const (
	// Pass means the message carries no consent keyword and the sender has
	// not opted out; processing continues downstream.
	Pass Result = iota
	// OptedOut means the message was a stop keyword. The ack has been
	// prepared and nothing else may be sent.
	OptedOut
	// OptedIn means the message was a start keyword from an opted-out
	// sender; messaging is re-enabled.
	OptedIn
	// Blocked means the sender previously opted out and this message is not
	// a start keyword. It must be dropped with no reply.
	Blocked
)

// Carrier-mandated keywords. Matching is against the whole trimmed message,
// never a substring, so "please cancel my booking" still reaches the intent
// classifier while a bare "cancel" opts the sender out.
var (
	optOutKeywords = map[string]struct{}{
		"stop": {}, "stopall": {}, "unsubscribe": {}, "end": {}, "quit": {}, "cancel": {},
	}
	optInKeywords = map[string]struct{}{
		"start": {}, "unstop": {}, "yes": {},
	}
)

const (
	optOutAck = "You've been unsubscribed from TidyNest messages. Reply START to opt back in."
	optInAck  = "You're resubscribed to TidyNest messages. Text us anytime about your cleaning!"
)

// IsOptOut reports whether the whole message is a stop keyword.
func IsOptOut(body string) bool {
	_, ok := optOutKeywords[normalizeKeyword(body)]
	return ok
}

// IsOptIn reports whether the whole message is a start keyword.
func IsOptIn(body string) bool {
	_, ok := optInKeywords[normalizeKeyword(body)]
	return ok
}

func normalizeKeyword(body string) string {
	s := strings.ToLower(strings.TrimSpace(body))
	s = strings.TrimRight(s, ".!?")
	return strings.TrimSpace(s)
}

// Gate enforces opt-out state before any message reaches the engines. It
// never fails the pipeline: directory errors are logged and the
// classification still stands, since dropping a STOP on the floor is worse
// than a stale consent row.
type Gate struct {
	dir      directory.Directory
	sessions *session.Store
	logger   *logging.Logger
}

func NewGate(dir directory.Directory, sessions *session.Store, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Default()
	}
	return &Gate{dir: dir, sessions: sessions, logger: logger}
}

// Check classifies the inbound message and applies any consent change. The
// returned ack is non-empty only for OptedOut and OptedIn.
func (g *Gate) Check(ctx context.Context, phone, body string) (Result, string) {
	switch {
	case IsOptOut(body):
		if err := g.dir.SetConsent(ctx, phone, false); err != nil {
			g.logger.Error("failed to record opt-out", "error", err, "phone", phone)
		}
		if err := g.expireConversation(ctx, phone); err != nil {
			g.logger.Error("failed to expire conversation on opt-out", "error", err, "phone", phone)
		}
		g.logger.Info("sender opted out", "phone", phone)
		return OptedOut, optOutAck

	case IsOptIn(body):
		consented, err := g.dir.ConsentState(ctx, phone)
		if err != nil {
			g.logger.Error("failed to check consent state", "error", err, "phone", phone)
			return Pass, ""
		}
		if consented {
			// "yes" from a consented sender is ordinary conversation.
			return Pass, ""
		}
		if err := g.dir.SetConsent(ctx, phone, true); err != nil {
			g.logger.Error("failed to record opt-in", "error", err, "phone", phone)
		}
		g.logger.Info("sender opted in", "phone", phone)
		return OptedIn, optInAck

	default:
		consented, err := g.dir.ConsentState(ctx, phone)
		if err != nil {
			g.logger.Error("failed to check consent state", "error", err, "phone", phone)
			return Pass, ""
		}
		if !consented {
			g.logger.Info("dropping message from opted-out sender", "phone", phone)
			return Blocked, ""
		}
		return Pass, ""
	}
}

// expireConversation closes any in-flight session so a later opt-in starts
// fresh rather than resuming mid-qualification.
func (g *Gate) expireConversation(ctx context.Context, phone string) error {
	conv, err := g.sessions.Get(ctx, phone)
	if err != nil || conv == nil {
		return err
	}
	if conv.Status != session.StatusActive {
		return nil
	}
	conv.Status = session.StatusExpired
	if err := g.sessions.Save(ctx, conv); err != nil {
		return fmt.Errorf("expire session: %w", err)
	}
	return nil
}
