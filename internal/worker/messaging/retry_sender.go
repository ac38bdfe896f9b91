// Package messaging runs the background delivery reconciler: outbound
// messages whose synchronous send failed transiently are re-sent on a timer
// until they go through or run out of attempts.
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tidynest/selenas/internal/alerting"
	"github.com/tidynest/selenas/internal/messaging"
	"github.com/tidynest/selenas/pkg/logging"
)

// RetryStore is the slice of the message store the reconciler uses.
type RetryStore interface {
	ListRetryCandidates(ctx context.Context, limit, maxAttempts int) ([]messaging.MessageRecord, error)
	MarkSent(ctx context.Context, id uuid.UUID, channelMessageID string) error
	MarkUndeliverable(ctx context.Context, id uuid.UUID) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, nextRetry time.Time) error
}

// ConsentChecker reports whether a phone may still be messaged. A parked
// reply can outlive the sender's consent; it is re-checked on every attempt
// so nothing goes out after a STOP.
type ConsentChecker interface {
	ConsentState(ctx context.Context, phone string) (bool, error)
}

// RetrySender periodically re-sends failed outbound messages.
type RetrySender struct {
	store       RetryStore
	sender      messaging.Sender
	consents    ConsentChecker
	alerter     alerting.Alerter
	logger      *logging.Logger
	interval    time.Duration
	maxAttempts int
	batchSize   int
	now         func() time.Time
}

func NewRetrySender(store RetryStore, sender messaging.Sender, consents ConsentChecker, alerter alerting.Alerter, logger *logging.Logger, interval time.Duration, maxAttempts int) *RetrySender {
	if logger == nil {
		logger = logging.Default()
	}
	if alerter == nil {
		alerter = alerting.NewLogAlerter(logger)
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &RetrySender{
		store:       store,
		sender:      sender,
		consents:    consents,
		alerter:     alerter,
		logger:      logger,
		interval:    interval,
		maxAttempts: maxAttempts,
		batchSize:   50,
		now:         time.Now,
	}
}

// Run blocks until the context is canceled, processing one batch per tick.
func (r *RetrySender) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("retry sender started", "interval", r.interval.String(), "max_attempts", r.maxAttempts)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("retry sender stopped")
			return
		case <-ticker.C:
			if err := r.ProcessBatch(ctx); err != nil {
				r.logger.Error("retry batch failed", "error", err)
			}
		}
	}
}

// ProcessBatch re-sends every due candidate once.
func (r *RetrySender) ProcessBatch(ctx context.Context) error {
	candidates, err := r.store.ListRetryCandidates(ctx, r.batchSize, r.maxAttempts)
	if err != nil {
		return fmt.Errorf("worker: list retry candidates: %w", err)
	}
	for _, rec := range candidates {
		r.retryOne(ctx, rec)
	}
	return nil
}

func (r *RetrySender) retryOne(ctx context.Context, rec messaging.MessageRecord) {
	consented, err := r.consents.ConsentState(ctx, rec.Phone)
	if err != nil {
		// Leave the message parked; the next tick re-checks.
		r.logger.Error("consent check failed, skipping resend", "error", err, "message_id", rec.ID)
		return
	}
	if !consented {
		r.logger.Info("dropping parked message, sender opted out", "message_id", rec.ID, "phone", rec.Phone)
		if err := r.store.MarkUndeliverable(ctx, rec.ID); err != nil {
			r.logger.Error("failed to mark undeliverable", "error", err, "message_id", rec.ID)
		}
		return
	}

	channelID, err := r.sender.Send(ctx, rec.Phone, rec.Body)
	if err == nil {
		if err := r.store.MarkSent(ctx, rec.ID, channelID); err != nil {
			r.logger.Error("failed to mark resent message", "error", err, "message_id", rec.ID)
		}
		r.logger.Info("message resent", "message_id", rec.ID, "attempt", rec.SendAttempts+1)
		return
	}

	attempts := rec.SendAttempts + 1
	if messaging.IsPermanent(err) || attempts >= r.maxAttempts {
		r.logger.Error("message exhausted retries", "error", err, "message_id", rec.ID, "attempts", attempts)
		if markErr := r.store.MarkUndeliverable(ctx, rec.ID); markErr != nil {
			r.logger.Error("failed to mark undeliverable", "error", markErr, "message_id", rec.ID)
		}
		if alertErr := r.alerter.Alert(ctx, "SMS retry exhausted",
			fmt.Sprintf("Message %s to %s gave up after %d attempts: %v", rec.ID, rec.Phone, attempts, err)); alertErr != nil {
			r.logger.Error("alert delivery failed", "error", alertErr)
		}
		return
	}

	// Exponential backoff keyed off the attempt count.
	delay := r.interval << uint(attempts-1)
	if err := r.store.ScheduleRetry(ctx, rec.ID, r.now().Add(delay)); err != nil {
		r.logger.Error("failed to reschedule message", "error", err, "message_id", rec.ID)
	}
	r.logger.Info("message rescheduled", "message_id", rec.ID, "attempt", attempts, "next_in", delay.String())
}
