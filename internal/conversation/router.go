// Package conversation wires the inbound pipeline together: persistence and
// dedup, the consent gate, directory lookup, engine dispatch, and the
// outbound send. One call to HandleInbound covers one webhook delivery.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tidynest/selenas/internal/alerting"
	"github.com/tidynest/selenas/internal/consent"
	"github.com/tidynest/selenas/internal/directory"
	"github.com/tidynest/selenas/internal/engine"
	"github.com/tidynest/selenas/internal/messaging"
	"github.com/tidynest/selenas/internal/observability/metrics"
	"github.com/tidynest/selenas/internal/session"
	"github.com/tidynest/selenas/pkg/logging"
)

// MessageStore is the slice of the message store the router uses.
type MessageStore interface {
	InsertInbound(ctx context.Context, rec messaging.MessageRecord) (uuid.UUID, bool, error)
	InsertOutbound(ctx context.Context, rec messaging.MessageRecord) (uuid.UUID, error)
	OutboundReplyTo(ctx context.Context, inboundChannelID string) (*messaging.MessageRecord, error)
	MarkSent(ctx context.Context, id uuid.UUID, channelMessageID string) error
	MarkUndeliverable(ctx context.Context, id uuid.UUID) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, nextRetry time.Time) error
}

// Inbound is one delivered SMS, already parsed off the webhook.
type Inbound struct {
	Phone            string
	Body             string
	ChannelMessageID string
	ReceivedAt       time.Time
}

// maxEngineRetries bounds the CAS retry loop when concurrent messages from
// the same phone race on the session record.
const maxEngineRetries = 3

// retryDelay is how long a transiently failed outbound message waits before
// the background retry loop picks it up.
const retryDelay = time.Minute

var restartKeywords = map[string]struct{}{
	"start over": {}, "reset": {},
}

func isRestart(body string) bool {
	s := strings.ToLower(strings.TrimSpace(body))
	s = strings.TrimRight(s, ".!?")
	_, ok := restartKeywords[strings.TrimSpace(s)]
	return ok
}

// Router drives one inbound message through the pipeline.
type Router struct {
	messages MessageStore
	sender   messaging.Sender
	gate     *consent.Gate
	sessions *session.Store
	dir      directory.Directory
	prospect engine.Engine
	customer engine.Engine
	alerter  alerting.Alerter
	metrics  *metrics.ConversationMetrics
	logger   *logging.Logger
	now      func() time.Time
}

type Config struct {
	Messages MessageStore
	Sender   messaging.Sender
	Gate     *consent.Gate
	Sessions *session.Store
	Dir      directory.Directory
	Prospect engine.Engine
	Customer engine.Engine
	Alerter  alerting.Alerter
	Metrics  *metrics.ConversationMetrics
	Logger   *logging.Logger
}

func NewRouter(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	alerter := cfg.Alerter
	if alerter == nil {
		alerter = alerting.NewLogAlerter(logger)
	}
	return &Router{
		messages: cfg.Messages,
		sender:   cfg.Sender,
		gate:     cfg.Gate,
		sessions: cfg.Sessions,
		dir:      cfg.Dir,
		prospect: cfg.Prospect,
		customer: cfg.Customer,
		alerter:  alerter,
		metrics:  cfg.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleInbound processes one delivered message end to end. It returns an
// error only for infrastructure failures the webhook should surface; normal
// outcomes (duplicates, opt-outs, blocked senders) return nil.
func (r *Router) HandleInbound(ctx context.Context, in Inbound) error {
	phone := messaging.NormalizeE164(in.Phone)
	if phone == "" {
		r.metrics.ObserveInbound("invalid")
		r.logger.Warn("dropping inbound with unusable phone", "raw_phone", in.Phone)
		return nil
	}

	_, dup, err := r.messages.InsertInbound(ctx, messaging.MessageRecord{
		Phone:            phone,
		Body:             in.Body,
		ChannelMessageID: in.ChannelMessageID,
		CreatedAt:        in.ReceivedAt,
	})
	if err != nil {
		r.metrics.ObserveInbound("error")
		return fmt.Errorf("conversation: persist inbound: %w", err)
	}
	if dup {
		return r.replayDuplicate(ctx, phone, in.ChannelMessageID)
	}

	gateResult, ack := r.gate.Check(ctx, phone, in.Body)
	switch gateResult {
	case consent.OptedOut:
		r.metrics.ObserveInbound("opt_out")
		return r.sendReply(ctx, nil, phone, ack, in.ChannelMessageID)
	case consent.OptedIn:
		r.metrics.ObserveInbound("opt_in")
		return r.sendReply(ctx, nil, phone, ack, in.ChannelMessageID)
	case consent.Blocked:
		r.metrics.ObserveInbound("blocked")
		return nil
	}

	if isRestart(in.Body) {
		return r.runProspect(ctx, phone, in, true)
	}

	customerRec, err := r.dir.Lookup(ctx, phone)
	if err != nil {
		r.logger.Error("directory lookup failed, treating as prospect", "error", err, "phone", phone)
		customerRec = nil
	}
	if customerRec != nil {
		return r.runCustomer(ctx, phone, in, customerRec)
	}
	return r.runProspect(ctx, phone, in, false)
}

// replayDuplicate re-sends the reply already recorded for this channel
// message id. No new message rows, no state transition.
func (r *Router) replayDuplicate(ctx context.Context, phone, channelMessageID string) error {
	r.metrics.ObserveInbound("duplicate")
	prior, err := r.messages.OutboundReplyTo(ctx, channelMessageID)
	if err != nil {
		return fmt.Errorf("conversation: replay lookup: %w", err)
	}
	if prior == nil {
		// First delivery is still in flight; its send will cover this one.
		r.logger.Info("duplicate delivery with no recorded reply, dropping", "channel_message_id", channelMessageID)
		return nil
	}
	if _, err := r.sender.Send(ctx, phone, prior.Body); err != nil {
		r.logger.Error("replay send failed", "error", err, "channel_message_id", channelMessageID)
	}
	return nil
}

func (r *Router) runCustomer(ctx context.Context, phone string, in Inbound, rec *directory.CustomerRecord) error {
	ec := &engine.Context{Customer: rec}

	// Context snapshot fetched concurrently; either fetch failing on its own
	// just leaves that summary empty.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		upcoming, err := r.dir.UpcomingBooking(gctx, phone)
		if err != nil {
			r.logger.Error("upcoming booking fetch failed", "error", err, "phone", phone)
			return nil
		}
		ec.Upcoming = upcoming
		return nil
	})
	g.Go(func() error {
		last, err := r.dir.LastCompletedBooking(gctx, phone)
		if err != nil {
			r.logger.Error("last completed fetch failed", "error", err, "phone", phone)
			return nil
		}
		ec.LastCompleted = last
		return nil
	})
	_ = g.Wait()

	reply, err := r.customer.Handle(ctx, in.Body, ec)
	if err != nil {
		r.metrics.ObserveInbound("error")
		return fmt.Errorf("conversation: %s engine: %w", r.customer.Kind(), err)
	}
	r.metrics.ObserveInbound("handled")
	r.metrics.ObserveIntent(reply.Intent)
	r.logger.Info("inbound handled", "engine", r.customer.Kind(), "intent", reply.Intent, "phone", phone)
	return r.sendReply(ctx, nil, phone, reply.Body, in.ChannelMessageID)
}

func (r *Router) runProspect(ctx context.Context, phone string, in Inbound, restart bool) error {
	var reply engine.Reply
	var convID uuid.UUID

	for attempt := 0; ; attempt++ {
		conv, err := r.sessions.Get(ctx, phone)
		if err != nil {
			r.metrics.ObserveInbound("error")
			return fmt.Errorf("conversation: load session: %w", err)
		}

		returning := false
		switch {
		case conv == nil:
			conv = r.sessions.New(phone, 0)
		case restart:
			r.logger.Info("conversation reset by texter", "phone", phone, "prior_state", string(conv.State))
			conv = r.sessions.New(phone, conv.Version)
			returning = true
		case conv.Status != session.StatusActive:
			returning = true
			conv = r.sessions.New(phone, conv.Version)
		}

		ec := &engine.Context{Conversation: conv, ReturningTexter: returning}
		reply, err = r.prospect.Handle(ctx, in.Body, ec)
		if err != nil {
			r.metrics.ObserveInbound("error")
			return fmt.Errorf("conversation: %s engine: %w", r.prospect.Kind(), err)
		}

		conv.InboundCount++
		conv.LastMessageAt = r.now()
		err = r.sessions.Save(ctx, conv)
		if err == nil {
			convID = conv.ID
			break
		}
		if errors.Is(err, session.ErrConflict) && attempt < maxEngineRetries-1 {
			r.logger.Info("session conflict, re-running engine", "phone", phone, "attempt", attempt+1)
			continue
		}
		r.metrics.ObserveInbound("error")
		return fmt.Errorf("conversation: save session: %w", err)
	}

	r.metrics.ObserveInbound("handled")
	r.metrics.ObserveIntent(reply.Intent)
	r.logger.Info("inbound handled", "engine", r.prospect.Kind(), "intent", reply.Intent, "phone", phone)
	return r.sendReply(ctx, &convID, phone, reply.Body, in.ChannelMessageID)
}

// sendReply persists the outbound message, pushes it through the retrying
// sender, and records the outcome. Transient exhaustion parks the message
// for the background retry loop; permanent failures alert a human.
func (r *Router) sendReply(ctx context.Context, convID *uuid.UUID, phone, body, replyToChannelID string) error {
	if body == "" {
		return nil
	}
	outID, err := r.messages.InsertOutbound(ctx, messaging.MessageRecord{
		ConversationID:   convID,
		Phone:            phone,
		Body:             body,
		ReplyToChannelID: replyToChannelID,
	})
	if err != nil {
		return fmt.Errorf("conversation: persist outbound: %w", err)
	}

	channelID, err := r.sender.Send(ctx, phone, body)
	switch {
	case err == nil:
		r.metrics.ObserveOutbound(messaging.StatusSent)
		if err := r.messages.MarkSent(ctx, outID, channelID); err != nil {
			return fmt.Errorf("conversation: mark sent: %w", err)
		}
		return nil

	case messaging.IsPermanent(err):
		r.metrics.ObserveOutbound(messaging.StatusUndeliverable)
		r.logger.Error("outbound permanently undeliverable", "error", err, "phone", phone)
		if markErr := r.messages.MarkUndeliverable(ctx, outID); markErr != nil {
			return fmt.Errorf("conversation: mark undeliverable: %w", markErr)
		}
		if alertErr := r.alerter.Alert(ctx, "Undeliverable SMS",
			fmt.Sprintf("Message to %s failed permanently: %v", phone, err)); alertErr != nil {
			r.logger.Error("alert delivery failed", "error", alertErr)
		}
		return nil

	default:
		r.metrics.ObserveOutbound(messaging.StatusRetryPending)
		r.logger.Error("outbound send failed, scheduling retry", "error", err, "phone", phone)
		if schedErr := r.messages.ScheduleRetry(ctx, outID, r.now().Add(retryDelay)); schedErr != nil {
			return fmt.Errorf("conversation: schedule retry: %w", schedErr)
		}
		return nil
	}
}
