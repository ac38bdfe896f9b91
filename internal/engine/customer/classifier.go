// Package customer classifies inbound messages from known customers into a
// fixed set of intents and composes replies from the customer's account
// context. There is no learned model; every intent is a pattern list, checked
// in priority order.
package customer

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tidynest/selenas/internal/engine"
	"github.com/tidynest/selenas/internal/knowledge"
	"github.com/tidynest/selenas/pkg/logging"
)

var tracer = otel.Tracer("selenas/engine/customer")

// matcher is one intent: a name for metrics, a predicate, and a reply
// composer over the customer context.
type matcher struct {
	intent  string
	match   func(normalized string) bool
	respond func(ec *engine.Context) string
}

// Complaint detection runs first. False positives cost an apology; false
// negatives cost a customer.
var complaintRe = regexp.MustCompile(`(terrible|awful|horrible|worst|unacceptable|disappointed|unhappy|not happy|furious|angry|upset|complaint|refund|money back|missed|skipped|no.?show|never (came|showed)|didn'?t (show|come|clean)|damaged?|broke|broken|scratch|stole|stolen|missing|rude|unprofessional|late again|still dirty)`)

var (
	botIdentityRe = regexp.MustCompile(`(are you (a |an )?(bot|robot|ai|human|real)|who is this|who am i (talking|texting)|is this a (bot|robot|person)|real person|a human\b|what are you)`)
	gratitudeRe   = regexp.MustCompile(`\b(thank|thanks|thx|ty|appreciate|awesome|great job|amazing job|wonderful)\b`)
	scheduleRe    = regexp.MustCompile(`(when.*(clean|appointment|visit|coming|scheduled)|next (clean|appointment|visit)|what time|do i have.*(clean|appointment|booking)|upcoming)`)
	whoCleansRe   = regexp.MustCompile(`(who('s| is)? (coming|cleaning|my cleaner)|which cleaner|cleaner('s)? name|who will)`)
	lastPaymentRe = regexp.MustCompile(`(last (payment|charge|bill|invoice)|how much (was|did).*(last|charged|pay)|what (was|did) i (pay|charged)|receipt)`)
	rescheduleRe  = regexp.MustCompile(`(reschedul|cancel|move my|change my|different (day|time)|push (it|back)|skip this)`)
	bookAgainRe   = regexp.MustCompile(`(book (again|another)|rebook|re-book|schedule (another|a new)|another clean|set up.*clean|new appointment)`)
)

// Classifier is the customer-side engine.
type Classifier struct {
	matchers []matcher
	logger   *logging.Logger
}

func New(logger *logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Classifier{logger: logger}
	c.matchers = []matcher{
		{
			intent:  "complaint",
			match:   complaintRe.MatchString,
			respond: func(*engine.Context) string { return complaintReply },
		},
		{
			intent: "knowledge",
			match: func(normalized string) bool {
				_, _, ok := knowledge.Answer(normalized)
				return ok
			},
			respond: func(*engine.Context) string { return "" },
		},
		{
			intent:  "bot_identity",
			match:   botIdentityRe.MatchString,
			respond: func(*engine.Context) string { return botIdentityReply },
		},
		{
			intent:  "gratitude",
			match:   gratitudeRe.MatchString,
			respond: func(*engine.Context) string { return gratitudeReply },
		},
		{
			intent: "schedule_check",
			match:  scheduleRe.MatchString,
			respond: func(ec *engine.Context) string {
				return scheduleReply(customerName(ec), ec.Upcoming)
			},
		},
		{
			intent: "who_cleans",
			match:  whoCleansRe.MatchString,
			respond: func(ec *engine.Context) string {
				return cleanerReply(customerName(ec), assignedCleaner(ec), ec.Upcoming)
			},
		},
		{
			intent: "last_payment",
			match:  lastPaymentRe.MatchString,
			respond: func(ec *engine.Context) string {
				return lastPaymentReply(customerName(ec), ec.LastCompleted)
			},
		},
		{
			intent:  "reschedule_cancel",
			match:   rescheduleRe.MatchString,
			respond: func(*engine.Context) string { return rescheduleReply },
		},
		{
			intent:  "book_again",
			match:   bookAgainRe.MatchString,
			respond: func(*engine.Context) string { return bookAgainReply },
		},
		{
			intent:  "spanish",
			match:   isSpanish,
			respond: func(*engine.Context) string { return spanishReply },
		},
	}
	return c
}

var _ engine.Engine = (*Classifier)(nil)

func (c *Classifier) Kind() string { return "customer" }

func (c *Classifier) Handle(ctx context.Context, message string, ec *engine.Context) (engine.Reply, error) {
	_, span := tracer.Start(ctx, "customer.classify",
		trace.WithAttributes(attribute.Int("message.length", len(message))))
	defer span.End()

	normalized := strings.ToLower(strings.TrimSpace(message))
	for _, m := range c.matchers {
		if !m.match(normalized) {
			continue
		}
		span.SetAttributes(attribute.String("intent", m.intent))
		c.logger.Info("customer intent classified", "intent", m.intent)

		body := m.respond(ec)
		if m.intent == "knowledge" {
			answer, _, _ := knowledge.Answer(normalized)
			body = answer
		}
		return engine.Reply{Body: body, Intent: m.intent}, nil
	}

	span.SetAttributes(attribute.String("intent", "fallback"))
	return engine.Reply{Body: fallbackReply, Intent: "fallback"}, nil
}

func customerName(ec *engine.Context) string {
	if ec == nil || ec.Customer == nil {
		return ""
	}
	return firstName(ec.Customer.Name)
}

func assignedCleaner(ec *engine.Context) string {
	if ec == nil || ec.Customer == nil {
		return ""
	}
	return ec.Customer.AssignedCleaner
}

func firstName(full string) string {
	full = strings.TrimSpace(full)
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i]
	}
	return full
}
