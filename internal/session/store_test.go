package session

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(client, time.Hour)
}

func TestGetMissingPhone(t *testing.T) {
	store := newTestStore(t)
	conv, err := store.Get(context.Background(), "+15550001111")
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv := store.New("+15550001111", 0)
	conv.State = StateAskService
	conv.Collected[FieldArea] = "Tribeca"
	require.NoError(t, store.Save(ctx, conv))
	assert.Equal(t, int64(1), conv.Version)

	loaded, err := store.Get(ctx, "+15550001111")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StateAskService, loaded.State)
	assert.Equal(t, "Tribeca", loaded.Collected[FieldArea])
	assert.Equal(t, StatusActive, loaded.Status)
	assert.Equal(t, int64(1), loaded.Version)
}

func TestSaveConflictOnStaleVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv := store.New("+15550001111", 0)
	require.NoError(t, store.Save(ctx, conv))

	first, err := store.Get(ctx, "+15550001111")
	require.NoError(t, err)
	second, err := store.Get(ctx, "+15550001111")
	require.NoError(t, err)

	first.State = StateAskLocation
	require.NoError(t, store.Save(ctx, first))

	second.State = StateAskService
	err = store.Save(ctx, second)
	require.True(t, errors.Is(err, ErrConflict), "expected ErrConflict, got %v", err)
}

func TestSaveConflictOnUnexpectedExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, store.New("+15550001111", 0)))

	// A writer that believes the phone has no record must not clobber one.
	fresh := store.New("+15550001111", 0)
	err := store.Save(ctx, fresh)
	require.True(t, errors.Is(err, ErrConflict))
}

func TestLazyExpiryBoundary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	conv := store.New("+15550001111", 0)
	require.NoError(t, store.Save(ctx, conv))

	// 3h59m idle: still active.
	store.now = func() time.Time { return base.Add(3*time.Hour + 59*time.Minute) }
	loaded, err := store.Get(ctx, "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, loaded.Status)

	// 4h01m idle: expired on read.
	store.now = func() time.Time { return base.Add(4*time.Hour + time.Minute) }
	loaded, err = store.Get(ctx, "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, loaded.Status)

	// Expiry was written back, not just returned.
	again, err := store.Get(ctx, "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, again.Status)
}

func TestReplacementCarriesPrevVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := store.New("+15550001111", 0)
	require.NoError(t, store.Save(ctx, old))
	old.Status = StatusReset
	require.NoError(t, store.Save(ctx, old))

	loaded, err := store.Get(ctx, "+15550001111")
	require.NoError(t, err)

	fresh := store.New("+15550001111", loaded.Version)
	require.NoError(t, store.Save(ctx, fresh))

	current, err := store.Get(ctx, "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, current.Status)
	assert.Equal(t, StateWelcome, current.State)
	assert.NotEqual(t, old.ID, current.ID)
}
