// Package prospect implements the qualification flow for texters with no
// customer record: a small state machine that collects neighborhood, service
// type, bedrooms, bathrooms, and pricing tier, then hands out a prefilled
// booking link.
package prospect

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidynest/selenas/internal/booking"
	"github.com/tidynest/selenas/internal/engine"
	"github.com/tidynest/selenas/internal/knowledge"
	"github.com/tidynest/selenas/internal/session"
	"github.com/tidynest/selenas/pkg/logging"
)

// Canonical service types stored in the collected fields.
const (
	ServiceStandard = "standard"
	ServiceDeep     = "deep"
	ServiceMove     = "move"
	ServicePostReno = "postreno"
)

// serviceAliases maps what people actually type to the canonical service.
// Checked in order so the multi-word aliases win over single words.
var serviceAliases = []struct {
	alias   string
	service string
}{
	{"post renovation", ServicePostReno},
	{"post-renovation", ServicePostReno},
	{"post reno", ServicePostReno},
	{"post-reno", ServicePostReno},
	{"construction", ServicePostReno},
	{"move in", ServiceMove},
	{"move out", ServiceMove},
	{"move-in", ServiceMove},
	{"move-out", ServiceMove},
	{"moving", ServiceMove},
	{"move", ServiceMove},
	{"deep clean", ServiceDeep},
	{"deep", ServiceDeep},
	{"spring", ServiceDeep},
	{"standard", ServiceStandard},
	{"regular", ServiceStandard},
	{"basic", ServiceStandard},
	{"general", ServiceStandard},
}

var numberRe = regexp.MustCompile(`\d+`)

// FSM is the prospect qualification engine. It mutates the conversation on
// the engine context; the router persists it afterward.
type FSM struct {
	links  booking.LinkIssuer
	logger *logging.Logger
	now    func() time.Time
}

func New(links booking.LinkIssuer, logger *logging.Logger) *FSM {
	if logger == nil {
		logger = logging.Default()
	}
	return &FSM{links: links, logger: logger, now: time.Now}
}

var _ engine.Engine = (*FSM)(nil)

func (f *FSM) Kind() string { return "prospect" }

func (f *FSM) Handle(ctx context.Context, message string, ec *engine.Context) (engine.Reply, error) {
	conv := ec.Conversation
	if conv == nil {
		return engine.Reply{}, fmt.Errorf("prospect: conversation required")
	}

	// Questions cut in ahead of the flow. The pending question is restated
	// so the texter can pick up where they left off; state does not move.
	// Only question-shaped messages interrupt; statements like "you bring
	// everything" at ASK_PRICING are answers and belong to the state parser,
	// even when their wording overlaps an FAQ pattern.
	if conv.State != session.StateWelcome && knowledge.IsQuestion(message) {
		if answer, category, ok := knowledge.Answer(message); ok {
			f.logger.Info("knowledge interrupt", "category", string(category), "state", string(conv.State))
			return engine.Reply{
				Body:   answer + " Now, back to your quote: " + questionFor(conv.State),
				Intent: "knowledge_interrupt",
			}, nil
		}
	}

	switch conv.State {
	case session.StateWelcome:
		return f.handleWelcome(message, ec), nil
	case session.StateAskLocation:
		return f.handleLocation(message, conv), nil
	case session.StateAskService:
		return f.handleService(message, conv), nil
	case session.StateAskBedrooms:
		return f.handleBedrooms(message, conv), nil
	case session.StateAskBathrooms:
		return f.handleBathrooms(message, conv), nil
	case session.StateAskPricing:
		return f.handlePricing(ctx, message, conv)
	case session.StateFormSent:
		return engine.Reply{Body: formSentReply(conv.Collected["link"]), Intent: "form_resend"}, nil
	default:
		return engine.Reply{}, fmt.Errorf("prospect: unknown state %q", conv.State)
	}
}

func (f *FSM) handleWelcome(message string, ec *engine.Context) engine.Reply {
	if strings.TrimSpace(message) == "" {
		return engine.Reply{Body: retryWelcome, Intent: "qualify_retry"}
	}

	conv := ec.Conversation
	conv.State = session.StateAskLocation

	body := greeting(f.now(), ec.ReturningTexter) + " " + askLocationQ
	// A first message that is itself a question gets answered before the
	// greeting, so the texter is not ignored.
	if knowledge.IsQuestion(message) {
		if answer, category, ok := knowledge.Answer(message); ok {
			f.logger.Info("knowledge interrupt", "category", string(category), "state", "welcome")
			body = answer + " " + body
		}
	}
	return engine.Reply{Body: body, Intent: "qualify_welcome"}
}

func (f *FSM) handleLocation(message string, conv *session.Conversation) engine.Reply {
	area := strings.TrimSpace(message)
	if area == "" || len(area) > 100 {
		return engine.Reply{Body: retryLocation, Intent: "qualify_retry"}
	}
	conv.Collected[session.FieldArea] = area
	conv.State = session.StateAskService
	return engine.Reply{Body: "Got it, " + area + "! " + askServiceQ, Intent: "qualify_location"}
}

func (f *FSM) handleService(message string, conv *session.Conversation) engine.Reply {
	service, ok := parseService(message)
	if !ok {
		return engine.Reply{Body: retryService, Intent: "qualify_retry"}
	}
	conv.Collected[session.FieldService] = service
	conv.State = session.StateAskBedrooms
	return engine.Reply{Body: askBedroomsQ, Intent: "qualify_service"}
}

func (f *FSM) handleBedrooms(message string, conv *session.Conversation) engine.Reply {
	n, ok := parseBedrooms(message)
	if !ok {
		return engine.Reply{Body: retryBedrooms, Intent: "qualify_retry"}
	}
	conv.Collected[session.FieldBedrooms] = strconv.Itoa(n)
	conv.State = session.StateAskBathrooms
	return engine.Reply{Body: askBathroomsQ, Intent: "qualify_bedrooms"}
}

func (f *FSM) handleBathrooms(message string, conv *session.Conversation) engine.Reply {
	n, ok := parseBathrooms(message)
	if !ok {
		return engine.Reply{Body: retryBathrooms, Intent: "qualify_retry"}
	}
	conv.Collected[session.FieldBathrooms] = strconv.Itoa(n)
	conv.State = session.StateAskPricing
	return engine.Reply{Body: askPricingQ, Intent: "qualify_bathrooms"}
}

func (f *FSM) handlePricing(ctx context.Context, message string, conv *session.Conversation) (engine.Reply, error) {
	tier, ok := parsePricing(message)
	if !ok {
		return engine.Reply{Body: retryPricing, Intent: "qualify_retry"}, nil
	}
	conv.Collected[session.FieldPricing] = tier

	link, err := f.links.IssueLink(ctx, booking.LinkRequest{
		ConversationID: conv.ID,
		Phone:          conv.Phone,
		Fields: map[string]string{
			session.FieldArea:      conv.Collected[session.FieldArea],
			session.FieldService:   conv.Collected[session.FieldService],
			session.FieldBedrooms:  conv.Collected[session.FieldBedrooms],
			session.FieldBathrooms: conv.Collected[session.FieldBathrooms],
			session.FieldPricing:   tier,
		},
	})
	if err != nil {
		// Keep the answer; the texter can nudge us and we'll try again.
		return engine.Reply{}, fmt.Errorf("prospect: issue booking link: %w", err)
	}

	conv.Collected["link"] = link
	conv.State = session.StateFormSent
	conv.Status = session.StatusCompleted
	f.logger.Info("prospect qualified",
		"conversation_id", conv.ID,
		"area", conv.Collected[session.FieldArea],
		"service", conv.Collected[session.FieldService])
	return engine.Reply{Body: closingReply(link), Intent: "qualify_complete"}, nil
}

func questionFor(state session.State) string {
	switch state {
	case session.StateAskLocation:
		return askLocationQ
	case session.StateAskService:
		return askServiceQ
	case session.StateAskBedrooms:
		return askBedroomsQ
	case session.StateAskBathrooms:
		return askBathroomsQ
	case session.StateAskPricing:
		return askPricingQ
	default:
		return askLocationQ
	}
}

func parseService(message string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(message))
	for _, a := range serviceAliases {
		if strings.Contains(normalized, a.alias) {
			return a.service, true
		}
	}
	return "", false
}

func parseBedrooms(message string) (int, bool) {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if strings.Contains(normalized, "studio") {
		return 0, true
	}
	if m := numberRe.FindString(normalized); m != "" {
		n, err := strconv.Atoi(m)
		if err == nil && n >= 0 && n <= 20 {
			return n, true
		}
	}
	return 0, false
}

func parseBathrooms(message string) (int, bool) {
	if m := numberRe.FindString(message); m != "" {
		n, err := strconv.Atoi(m)
		if err == nil && n >= 1 && n <= 20 {
			return n, true
		}
	}
	return 0, false
}

func parsePricing(message string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(message))
	normalized = strings.TrimRight(normalized, ".!?")
	switch normalized {
	case "a", "option a", "a)":
		return "A", true
	case "b", "option b", "b)":
		return "B", true
	}
	if strings.Contains(normalized, "own") || strings.Contains(normalized, "supply") || strings.Contains(normalized, "my products") {
		return "A", true
	}
	if strings.Contains(normalized, "full") || strings.Contains(normalized, "everything") || strings.Contains(normalized, "bring") {
		return "B", true
	}
	return "", false
}
