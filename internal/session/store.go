// Package session holds the durable conversation state for the prospect
// qualification flow, keyed by phone number. One redis key per phone is what
// enforces the single-active-conversation invariant; concurrent writers are
// serialized with per-key optimistic concurrency (WATCH + version check).
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// State identifies the prospect flow question the conversation is waiting on.
type State string

const (
	StateWelcome      State = "welcome"
	StateAskLocation  State = "ask_location"
	StateAskService   State = "ask_service"
	StateAskBedrooms  State = "ask_bedrooms"
	StateAskBathrooms State = "ask_bathrooms"
	StateAskPricing   State = "ask_pricing"
	StateFormSent     State = "form_sent"
)

// Status is the conversation lifecycle status.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusReset     Status = "reset"
)

// StaleAfter is the inactivity window after which an active conversation is
// treated as expired. Expiry is evaluated lazily on read, never by a sweeper.
const StaleAfter = 4 * time.Hour

// Collected field keys.
const (
	FieldArea      = "area"
	FieldService   = "service"
	FieldBedrooms  = "bedrooms"
	FieldBathrooms = "bathrooms"
	FieldPricing   = "pricing"
)

// Conversation is the per-phone qualification session.
type Conversation struct {
	ID            uuid.UUID         `json:"id"`
	Phone         string            `json:"phone"`
	State         State             `json:"state"`
	Collected     map[string]string `json:"collected"`
	Status        Status            `json:"status"`
	InboundCount  int               `json:"inbound_count"`
	StartedAt     time.Time         `json:"started_at"`
	LastMessageAt time.Time         `json:"last_message_at"`

	// Version is the optimistic-concurrency counter observed at load time.
	Version int64 `json:"version"`
}

// ErrConflict is returned by Save when another writer advanced the
// conversation since it was read. Callers re-read and re-apply.
var ErrConflict = errors.New("session: version conflict")

// Store persists conversations in redis with a housekeeping TTL.
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	now    func() time.Time
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Store{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("selenas.internal.session"),
		now:    time.Now,
	}
}

// New builds a fresh active conversation for the phone. prevVersion is the
// version of the record it replaces (zero when the phone has none), so the
// replacement itself is CAS-protected.
func (s *Store) New(phone string, prevVersion int64) *Conversation {
	now := s.now()
	return &Conversation{
		ID:            uuid.New(),
		Phone:         phone,
		State:         StateWelcome,
		Collected:     make(map[string]string),
		Status:        StatusActive,
		StartedAt:     now,
		LastMessageAt: now,
		Version:       prevVersion,
	}
}

// Get loads the phone's conversation, applying lazy staleness expiry. A nil
// conversation with nil error means the phone has none.
func (s *Store) Get(ctx context.Context, phone string) (*Conversation, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	conv, err := s.load(ctx, phone)
	if err != nil || conv == nil {
		return conv, err
	}
	if conv.Status == StatusActive && s.now().Sub(conv.LastMessageAt) > StaleAfter {
		conv.Status = StatusExpired
		if err := s.Save(ctx, conv); err != nil {
			if !errors.Is(err, ErrConflict) {
				return nil, err
			}
			// Lost the race; whoever won has the current truth.
			return s.load(ctx, phone)
		}
	}
	return conv, nil
}

func (s *Store) load(ctx context.Context, phone string) (*Conversation, error) {
	data, err := s.redis.Get(ctx, sessionKey(phone)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: load %s: %w", phone, err)
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", phone, err)
	}
	return &conv, nil
}

// Save writes the conversation back if nobody else has advanced it. The
// stored version must equal conv.Version; the write bumps it by one and
// updates conv.Version to match.
func (s *Store) Save(ctx context.Context, conv *Conversation) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()

	if conv == nil {
		return errors.New("session: conversation required")
	}
	key := sessionKey(conv.Phone)
	next := *conv
	next.Version = conv.Version + 1
	payload, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", conv.Phone, err)
	}

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if conv.Version != 0 {
				return ErrConflict
			}
		case err != nil:
			return fmt.Errorf("session: read for cas: %w", err)
		default:
			var current Conversation
			if err := json.Unmarshal(data, &current); err != nil {
				return fmt.Errorf("session: decode for cas: %w", err)
			}
			if current.Version != conv.Version {
				return ErrConflict
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	conv.Version = next.Version
	return nil
}

func sessionKey(phone string) string {
	return fmt.Sprintf("session:%s", phone)
}
