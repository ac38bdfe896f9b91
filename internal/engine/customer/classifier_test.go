package customer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidynest/selenas/internal/directory"
	"github.com/tidynest/selenas/internal/engine"
	"github.com/tidynest/selenas/pkg/logging"
)

func classify(t *testing.T, msg string, ec *engine.Context) engine.Reply {
	t.Helper()
	if ec == nil {
		ec = &engine.Context{}
	}
	reply, err := New(logging.Default()).Handle(context.Background(), msg, ec)
	require.NoError(t, err)
	return reply
}

func TestKind(t *testing.T) {
	assert.Equal(t, "customer", New(logging.Default()).Kind())
}

func TestComplaintDetection(t *testing.T) {
	for _, msg := range []string{
		"my cleaner never showed up",
		"I want a refund, the bathroom is still dirty",
		"the cleaner broke my lamp",
		"this is unacceptable",
		"your team was so rude to my doorman",
	} {
		reply := classify(t, msg, nil)
		assert.Equal(t, "complaint", reply.Intent, "message %q", msg)
		assert.Contains(t, reply.Body, "(212) 555-0148")
	}
}

func TestComplaintBeatsOtherIntents(t *testing.T) {
	// Pricing words appear, but the complaint wins.
	reply := classify(t, "this is terrible, how much did I even pay for this", nil)
	assert.Equal(t, "complaint", reply.Intent)
}

func TestKnowledgeBeforeOtherIntents(t *testing.T) {
	reply := classify(t, "do you bring your own supplies?", nil)
	assert.Equal(t, "knowledge", reply.Intent)
	assert.Contains(t, reply.Body, "supplies")
}

func TestBotIdentity(t *testing.T) {
	for _, msg := range []string{"are you a bot?", "is this a real person", "who am I talking to"} {
		reply := classify(t, msg, nil)
		assert.Equal(t, "bot_identity", reply.Intent, "message %q", msg)
		assert.Contains(t, reply.Body, "Selena")
	}
}

func TestGratitude(t *testing.T) {
	reply := classify(t, "thanks so much, the place looks great!", nil)
	assert.Equal(t, "gratitude", reply.Intent)
}

func TestScheduleCheckWithUpcoming(t *testing.T) {
	ec := &engine.Context{
		Customer: &directory.CustomerRecord{Phone: "+15551234567", Name: "Maria Lopez"},
		Upcoming: &directory.BookingSummary{
			Date:    time.Date(2025, 6, 13, 14, 0, 0, 0, time.UTC),
			Service: "deep",
			Cleaner: "Ana",
		},
	}
	reply := classify(t, "when is my next clean?", ec)
	assert.Equal(t, "schedule_check", reply.Intent)
	assert.Contains(t, reply.Body, "Maria")
	assert.Contains(t, reply.Body, "Friday, June 13")
	assert.Contains(t, reply.Body, "deep")
}

func TestScheduleCheckWithoutUpcoming(t *testing.T) {
	ec := &engine.Context{Customer: &directory.CustomerRecord{Phone: "+15551234567"}}
	reply := classify(t, "do I have a cleaning scheduled?", ec)
	assert.Equal(t, "schedule_check", reply.Intent)
	assert.Contains(t, reply.Body, "don't see an upcoming visit")
}

func TestWhoCleans(t *testing.T) {
	ec := &engine.Context{
		Customer: &directory.CustomerRecord{Name: "Maria Lopez", AssignedCleaner: "Ana"},
		Upcoming: &directory.BookingSummary{
			Date:    time.Date(2025, 6, 13, 14, 0, 0, 0, time.UTC),
			Cleaner: "Ana",
		},
	}
	reply := classify(t, "who is cleaning my place?", ec)
	assert.Equal(t, "who_cleans", reply.Intent)
	assert.Contains(t, reply.Body, "Ana")
}

func TestWhoCleansNoAssignment(t *testing.T) {
	reply := classify(t, "who will be coming?", &engine.Context{})
	assert.Equal(t, "who_cleans", reply.Intent)
	assert.Contains(t, reply.Body, "hasn't been assigned")
}

func TestLastPayment(t *testing.T) {
	ec := &engine.Context{
		LastCompleted: &directory.BookingSummary{
			Date:       time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC),
			Service:    "standard",
			PriceCents: 14900,
		},
	}
	reply := classify(t, "what did I pay last time?", ec)
	assert.Equal(t, "last_payment", reply.Intent)
	assert.Contains(t, reply.Body, "$149.00")
	assert.Contains(t, reply.Body, "May 20")
}

func TestLastPaymentNoHistory(t *testing.T) {
	reply := classify(t, "what was I charged?", &engine.Context{})
	assert.Equal(t, "last_payment", reply.Intent)
	assert.Contains(t, reply.Body, "nothing has been charged")
}

func TestRescheduleCancel(t *testing.T) {
	for _, msg := range []string{
		"I need to reschedule my cleaning",
		"please cancel my appointment for friday",
		"can we move my clean to a different day",
	} {
		reply := classify(t, msg, nil)
		assert.Equal(t, "reschedule_cancel", reply.Intent, "message %q", msg)
		assert.Contains(t, reply.Body, "48 hours")
	}
}

func TestBookAgain(t *testing.T) {
	reply := classify(t, "can I book another clean for next month?", nil)
	assert.Equal(t, "book_again", reply.Intent)
	assert.Contains(t, reply.Body, "book.tidynest.example")
}

func TestSpanishGreeting(t *testing.T) {
	for _, msg := range []string{"Hola, necesito una limpieza", "buenos dias", "¿hablas español?"} {
		reply := classify(t, msg, nil)
		assert.Equal(t, "spanish", reply.Intent, "message %q", msg)
		assert.Contains(t, reply.Body, "Selena")
	}
}

func TestFallback(t *testing.T) {
	reply := classify(t, "banana", nil)
	assert.Equal(t, "fallback", reply.Intent)
	assert.Contains(t, reply.Body, "not sure")
}
