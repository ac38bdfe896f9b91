package consent

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidynest/selenas/internal/directory"
	"github.com/tidynest/selenas/internal/session"
	"github.com/tidynest/selenas/pkg/logging"
)

func newTestGate(t *testing.T) (*Gate, *directory.MemoryDirectory, *session.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	sessions := session.NewStore(client, 24*time.Hour)
	dir := directory.NewMemoryDirectory()
	return NewGate(dir, sessions, logging.Default()), dir, sessions
}

func TestKeywordMatching(t *testing.T) {
	for _, msg := range []string{"STOP", "stop", " Stop ", "stop.", "STOP!", "unsubscribe", "Quit", "cancel", "END"} {
		assert.True(t, IsOptOut(msg), "expected opt-out: %q", msg)
	}
	for _, msg := range []string{"please stop texting me", "cancel my booking", "I want to quit smoking", "stop it now"} {
		assert.False(t, IsOptOut(msg), "expected not opt-out: %q", msg)
	}
	for _, msg := range []string{"START", "start", "unstop", "Yes", "yes!"} {
		assert.True(t, IsOptIn(msg), "expected opt-in: %q", msg)
	}
	assert.False(t, IsOptIn("yes please book me"))
}

func TestOptOutRecordsAndAcks(t *testing.T) {
	gate, dir, _ := newTestGate(t)
	ctx := context.Background()

	res, ack := gate.Check(ctx, "+15551234567", "STOP")
	assert.Equal(t, OptedOut, res)
	assert.Contains(t, ack, "unsubscribed")

	consented, err := dir.ConsentState(ctx, "+15551234567")
	require.NoError(t, err)
	assert.False(t, consented)
}

func TestOptOutExpiresActiveConversation(t *testing.T) {
	gate, _, sessions := newTestGate(t)
	ctx := context.Background()

	conv := sessions.New("+15551234567", 0)
	conv.State = session.StateAskBedrooms
	require.NoError(t, sessions.Save(ctx, conv))

	_, _ = gate.Check(ctx, "+15551234567", "stop")

	got, err := sessions.Get(ctx, "+15551234567")
	require.NoError(t, err)
	if got != nil {
		assert.NotEqual(t, session.StatusActive, got.Status)
	}
}

func TestBlockedAfterOptOut(t *testing.T) {
	gate, dir, _ := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, dir.SetConsent(ctx, "+15551234567", false))

	res, ack := gate.Check(ctx, "+15551234567", "how much for a deep clean?")
	assert.Equal(t, Blocked, res)
	assert.Empty(t, ack)
}

func TestOptInRestoresConsent(t *testing.T) {
	gate, dir, _ := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, dir.SetConsent(ctx, "+15551234567", false))

	res, ack := gate.Check(ctx, "+15551234567", "START")
	assert.Equal(t, OptedIn, res)
	assert.Contains(t, ack, "resubscribed")

	consented, err := dir.ConsentState(ctx, "+15551234567")
	require.NoError(t, err)
	assert.True(t, consented)
}

func TestYesFromConsentedSenderPasses(t *testing.T) {
	gate, _, _ := newTestGate(t)

	res, ack := gate.Check(context.Background(), "+15551234567", "yes")
	assert.Equal(t, Pass, res)
	assert.Empty(t, ack)
}

func TestOrdinaryMessagePasses(t *testing.T) {
	gate, _, _ := newTestGate(t)

	res, ack := gate.Check(context.Background(), "+15551234567", "hi, do you clean in Tribeca?")
	assert.Equal(t, Pass, res)
	assert.Empty(t, ack)
}
