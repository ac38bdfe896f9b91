package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Direction of a message relative to this system.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Delivery statuses tracked on outbound messages.
const (
	StatusQueued        = "queued"
	StatusSent          = "sent"
	StatusDelivered     = "delivered"
	StatusFailed        = "failed"
	StatusRetryPending  = "retry_pending"
	StatusUndeliverable = "undeliverable"
)

// MessageRecord is one immutable inbound or outbound text. Only the delivery
// status fields change after insert, and only via the reconciler.
type MessageRecord struct {
	ID               uuid.UUID
	ConversationID   *uuid.UUID
	Direction        string
	Phone            string
	Body             string
	ChannelMessageID string
	ReplyToChannelID string
	DeliveryStatus   string
	SendAttempts     int
	NextRetryAt      *time.Time
	CreatedAt        time.Time
}

// Store persists message records in Postgres.
type Store struct {
	pool Querier
}

func NewStore(pool Querier) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

// InsertInbound records an inbound message, deduplicating on the channel
// message id. The second return is true when this delivery is a duplicate of
// one already recorded.
func (s *Store) InsertInbound(ctx context.Context, rec MessageRecord) (uuid.UUID, bool, error) {
	query := `
		INSERT INTO messages (id, conversation_id, direction, phone, body, channel_message_id, delivery_status, created_at)
		VALUES ($1, $2, 'in', $3, $4, $5, 'delivered', $6)
		ON CONFLICT (channel_message_id) DO NOTHING
		RETURNING id
	`
	id := uuid.New()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	err := s.pool.QueryRow(ctx, query, id, rec.ConversationID, rec.Phone, rec.Body, rec.ChannelMessageID, createdAt).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, true, nil
		}
		return uuid.Nil, false, fmt.Errorf("messaging: insert inbound: %w", err)
	}
	return id, false, nil
}

// InsertOutbound records an outbound reply before it is handed to the sender.
func (s *Store) InsertOutbound(ctx context.Context, rec MessageRecord) (uuid.UUID, error) {
	query := `
		INSERT INTO messages (id, conversation_id, direction, phone, body, channel_message_id, reply_to_channel_id, delivery_status, send_attempts, created_at)
		VALUES ($1, $2, 'out', $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)
		RETURNING id
	`
	id := uuid.New()
	status := rec.DeliveryStatus
	if status == "" {
		status = StatusQueued
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	err := s.pool.QueryRow(ctx, query, id, rec.ConversationID, rec.Phone, rec.Body, rec.ChannelMessageID, rec.ReplyToChannelID, status, rec.SendAttempts, createdAt).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("messaging: insert outbound: %w", err)
	}
	return id, nil
}

// OutboundReplyTo returns the outbound message that answered the given
// inbound channel message id, for replaying duplicate deliveries.
func (s *Store) OutboundReplyTo(ctx context.Context, inboundChannelID string) (*MessageRecord, error) {
	query := `
		SELECT id, conversation_id, direction, phone, body,
			COALESCE(channel_message_id, ''), COALESCE(reply_to_channel_id, ''),
			delivery_status, send_attempts, created_at
		FROM messages
		WHERE direction = 'out' AND reply_to_channel_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	rec, err := s.scanOne(s.pool.QueryRow(ctx, query, inboundChannelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("messaging: lookup reply: %w", err)
	}
	return rec, nil
}

// MarkSent stores the provider id and flips the status after a successful send.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID, channelMessageID string) error {
	query := `
		UPDATE messages
		SET channel_message_id = $2,
			delivery_status = 'sent',
			send_attempts = send_attempts + 1,
			next_retry_at = NULL
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, id, channelMessageID); err != nil {
		return fmt.Errorf("messaging: mark sent: %w", err)
	}
	return nil
}

// MarkUndeliverable flags a permanent send failure; the retry loop skips these.
func (s *Store) MarkUndeliverable(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE messages
		SET delivery_status = 'undeliverable',
			send_attempts = send_attempts + 1,
			next_retry_at = NULL
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("messaging: mark undeliverable: %w", err)
	}
	return nil
}

// UpdateDeliveryStatus applies an asynchronous delivery-status callback.
func (s *Store) UpdateDeliveryStatus(ctx context.Context, channelMessageID, status string) error {
	query := `
		UPDATE messages
		SET delivery_status = $2,
			next_retry_at = NULL
		WHERE channel_message_id = $1
	`
	if _, err := s.pool.Exec(ctx, query, channelMessageID, status); err != nil {
		return fmt.Errorf("messaging: update delivery status: %w", err)
	}
	return nil
}

// ScheduleRetry bumps the attempt counter and parks the message for the
// retry loop.
func (s *Store) ScheduleRetry(ctx context.Context, id uuid.UUID, nextRetry time.Time) error {
	query := `
		UPDATE messages
		SET send_attempts = send_attempts + 1,
			delivery_status = 'retry_pending',
			next_retry_at = $2
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, id, nextRetry); err != nil {
		return fmt.Errorf("messaging: schedule retry: %w", err)
	}
	return nil
}

// ListRetryCandidates returns outbound messages due for another send attempt.
func (s *Store) ListRetryCandidates(ctx context.Context, limit, maxAttempts int) ([]MessageRecord, error) {
	query := `
		SELECT id, conversation_id, direction, phone, body,
			COALESCE(channel_message_id, ''), COALESCE(reply_to_channel_id, ''),
			delivery_status, send_attempts, created_at
		FROM messages
		WHERE direction = 'out'
			AND send_attempts < $1
			AND delivery_status IN ('failed', 'retry_pending')
			AND (next_retry_at IS NULL OR next_retry_at <= now())
		ORDER BY next_retry_at NULLS FIRST, created_at
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("messaging: list retry candidates: %w", err)
	}
	defer rows.Close()
	return s.scanAll(rows)
}

// History returns the message transcript for a phone, oldest first.
func (s *Store) History(ctx context.Context, phone string, limit int) ([]MessageRecord, error) {
	query := `
		SELECT id, conversation_id, direction, phone, body,
			COALESCE(channel_message_id, ''), COALESCE(reply_to_channel_id, ''),
			delivery_status, send_attempts, created_at
		FROM messages
		WHERE phone = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, query, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("messaging: history: %w", err)
	}
	defer rows.Close()
	return s.scanAll(rows)
}

func (s *Store) scanOne(row pgx.Row) (*MessageRecord, error) {
	var rec MessageRecord
	if err := row.Scan(&rec.ID, &rec.ConversationID, &rec.Direction, &rec.Phone, &rec.Body,
		&rec.ChannelMessageID, &rec.ReplyToChannelID, &rec.DeliveryStatus, &rec.SendAttempts, &rec.CreatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) scanAll(rows pgx.Rows) ([]MessageRecord, error) {
	var out []MessageRecord
	for rows.Next() {
		var rec MessageRecord
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &rec.Direction, &rec.Phone, &rec.Body,
			&rec.ChannelMessageID, &rec.ReplyToChannelID, &rec.DeliveryStatus, &rec.SendAttempts, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("messaging: scan message: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
