// Package knowledge answers common questions about the cleaning service from
// a fixed in-memory FAQ table. It is consulted both for standalone questions
// and for questions that interrupt the qualification flow.
package knowledge

import (
	"regexp"
	"strings"
)

// Category names the FAQ topic a message matched.
type Category string

const (
	CategoryPricing       Category = "pricing"
	CategoryIncluded      Category = "included_services"
	CategorySupplies      Category = "supplies"
	CategoryVetting       Category = "insurance_vetting"
	CategoryCancellation  Category = "cancellation_policy"
	CategoryPayment       Category = "payment_methods"
	CategoryServiceArea   Category = "service_area"
	CategoryCompany       Category = "company_background"
	CategoryGuarantee     Category = "guarantee"
	CategoryEco           Category = "eco_friendly"
	CategorySameDay       Category = "same_day"
	CategoryDeepCleanInfo Category = "deep_clean_scope"
)

type entry struct {
	category Category
	patterns []*regexp.Regexp
	answer   string
}

// Entries are checked in order; the first match wins. More specific topics
// sit above the broad pricing patterns so "what does a deep clean include"
// is not swallowed by "how much".
var entries = []entry{
	{
		category: CategoryDeepCleanInfo,
		patterns: compile(
			`deep clean.*(include|cover|involve|mean|different)`,
			`(what|whats|what's).*deep clean`,
			`difference between.*(deep|standard|regular)`,
		),
		answer: "A deep clean covers everything in a standard clean plus baseboards, inside the oven and fridge, interior windows, and heavy buildup in kitchens and bathrooms. Most homes get one as a first visit or a seasonal refresh.",
	},
	{
		category: CategoryIncluded,
		patterns: compile(
			`(what|whats|what's).*(include|included|covered|cover)`,
			`(standard|regular) clean.*(include|cover)`,
			`do you (clean|do).*(window|oven|fridge|laundry|dish)`,
		),
		answer: "A standard clean covers kitchens, bathrooms, bedrooms, and living areas: surfaces, floors, mirrors, and trash. Ovens, fridges, interior windows, and laundry can be added on, just mention them when you book.",
	},
	{
		// Above supplies so "eco friendly products" is not caught by the
		// broad supplies patterns.
		category: CategoryEco,
		patterns: compile(
			`(eco|green|non.?toxic|natural|chemical|pet.?safe|safe for (kids|pets|babies))`,
		),
		answer: "We use eco-friendly, non-toxic products by default. They're safe for kids and pets, and they work just as well as the harsh stuff.",
	},
	{
		category: CategorySupplies,
		patterns: compile(
			`(bring|provide|supply|supplies|equipment|vacuum|products)`,
			`do i need to (have|buy|provide)`,
		),
		answer: "Our cleaners bring all supplies and equipment, including a vacuum. If you'd rather we use your own products, just leave them out and let us know.",
	},
	{
		category: CategoryVetting,
		patterns: compile(
			`(insured|insurance|bonded|background check|vetted|trust|screened|safe)`,
		),
		answer: "Yes! Every TidyNest cleaner is background-checked and we carry full liability insurance and bonding. Your home is protected on every visit.",
	},
	{
		category: CategoryCancellation,
		patterns: compile(
			`(cancellation|cancelation) (policy|fee)`,
			`(fee|charge|cost|penalty).*(cancel|reschedul)`,
			`what if i (need to )?(cancel|reschedule)`,
			`how (do|can) i (cancel|reschedule)`,
		),
		answer: "You can reschedule or cancel free of charge up to 24 hours before your appointment. Inside 24 hours there's a $40 late-cancellation fee.",
	},
	{
		category: CategoryPayment,
		patterns: compile(
			`how (do|can) i pay`,
			`payment (method|option)`,
			`do you (take|accept)`,
			`(credit card|venmo|zelle|pay cash|pay by)`,
		),
		answer: "We accept all major credit cards, and payment is handled securely through the booking link. You're only charged after the clean is done.",
	},
	{
		category: CategoryServiceArea,
		patterns: compile(
			`(service area|areas? do you (serve|cover)|where do you (work|clean|operate))`,
			`do you (come to|serve|cover|clean in)`,
		),
		answer: "We serve all of Manhattan and most of Brooklyn, with Queens coming soon. Tell me your neighborhood and I'll confirm!",
	},
	{
		category: CategoryGuarantee,
		patterns: compile(
			`(guarantee|not (happy|satisfied)|redo|re-do|satisfaction)`,
		),
		answer: "Every clean is backed by our 24-hour happiness guarantee. If anything was missed, tell us within a day and we'll send someone back to make it right, free.",
	},
	{
		category: CategorySameDay,
		patterns: compile(
			`(same.?day|today|tomorrow|urgent|emergency|asap|last minute|how (soon|fast|quickly))`,
		),
		answer: "We can often fit in next-day cleans, and sometimes same-day if you book before noon. Availability shows live on the booking link.",
	},
	{
		category: CategoryCompany,
		patterns: compile(
			`(who are you guys|about (your|the) company|how long.*(business|around)|are you a franchise|locally owned)`,
		),
		answer: "TidyNest is a locally owned cleaning company, not a franchise. We've been keeping New York homes spotless since 2019 with our own trained, background-checked team.",
	},
	{
		category: CategoryPricing,
		patterns: compile(
			`(how much|price|pricing|cost|rates?\b|estimate|quote|do you charge)`,
		),
		answer: "Pricing depends on your home's size and the type of clean. A standard clean for a 1-bedroom starts at $129, and deep cleans start at $199. Answer a few quick questions and I'll get you an exact quote!",
	},
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// Answer returns the canned reply for the first FAQ entry the message
// matches. ok is false when no topic matched.
func Answer(message string) (answer string, category Category, ok bool) {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized == "" {
		return "", "", false
	}
	for _, e := range entries {
		for _, re := range e.patterns {
			if re.MatchString(normalized) {
				return e.answer, e.category, true
			}
		}
	}
	return "", "", false
}

// IsQuestion is a cheap signal that a mid-flow message is asking something
// rather than answering the pending question.
func IsQuestion(message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if strings.Contains(normalized, "?") {
		return true
	}
	for _, prefix := range []string{"how ", "what ", "whats ", "what's ", "do you ", "are you ", "can you ", "is there ", "when ", "where ", "why ", "who "} {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}
