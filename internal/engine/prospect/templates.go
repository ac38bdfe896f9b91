package prospect

import (
	"fmt"
	"time"
)

const (
	askLocationQ  = "What neighborhood is your home in?"
	askServiceQ   = "What kind of clean are you looking for? We do standard, deep, move in/out, and post-renovation cleans."
	askBedroomsQ  = "How many bedrooms? (Reply 0 or \"studio\" for a studio.)"
	askBathroomsQ = "And how many bathrooms?"
	askPricingQ   = "Last one! Reply A if you'd like to supply your own products, or B for full service where we bring everything."

	retryWelcome   = "Hi, this is Selena from TidyNest! Text me anything to get started on your cleaning quote."
	retryLocation  = "Sorry, I didn't catch that. Which neighborhood is your home in?"
	retryService   = "Hmm, I didn't recognize that one. We offer standard, deep, move in/out, or post-renovation cleans. Which would you like?"
	retryBedrooms  = "Just a number works! How many bedrooms? (0 or \"studio\" for a studio.)"
	retryBathrooms = "Just a number works! How many bathrooms? (At least 1.)"
	retryPricing   = "Just reply A (you supply products) or B (full service). Which works for you?"
)

// greeting is time and day aware. Presentation only, the flow is identical.
func greeting(now time.Time, returning bool) string {
	var open string
	switch hour := now.Hour(); {
	case hour < 12:
		open = "Good morning!"
	case hour < 17:
		open = "Good afternoon!"
	default:
		open = "Good evening!"
	}
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		open += " Hope you're having a great weekend."
	}
	if returning {
		return open + " Welcome back to TidyNest, it's Selena again. Happy to get you a fresh quote."
	}
	return open + " I'm Selena from TidyNest, here to get you a cleaning quote in under a minute."
}

func closingReply(link string) string {
	return fmt.Sprintf("Perfect, that's everything I need! Grab your spot here: %s Your quote is waiting on the form. Talk soon!", link)
}

func formSentReply(link string) string {
	if link == "" {
		return "Your booking form is on its way! If it hasn't arrived, give us a call and we'll sort it out."
	}
	return fmt.Sprintf("Your booking link is ready whenever you are: %s", link)
}
