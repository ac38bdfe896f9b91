package customer

import (
	"fmt"
	"strings"

	"github.com/tidynest/selenas/internal/directory"
)

const (
	complaintReply = "I'm so sorry to hear that, and I want to make sure it gets fixed. Please call our office at (212) 555-0148 and a manager will take care of you right away."

	botIdentityReply = "I'm Selena, TidyNest's text assistant! I can check your upcoming cleanings, answer questions about our services, and point you in the right direction for anything else."

	gratitudeReply = "You're so welcome! Text me anytime you need anything."

	rescheduleReply = "Happy to help with that! You can reschedule or cancel from your confirmation email, or call us at (212) 555-0148. Just a heads up, we ask for 48 hours notice to avoid a fee."

	bookAgainReply = "We'd love to have you back! Book your next clean here: https://book.tidynest.example/returning and your usual preferences will be prefilled."

	spanishReply = "¡Hola! Soy Selena de TidyNest. ¿En qué puedo ayudarte? Puedes preguntarme sobre tu próxima limpieza o llamar a nuestra oficina al (212) 555-0148 para atención en español."

	fallbackReply = "Hmm, I'm not sure I follow! I can check your next cleaning, tell you who's coming, answer questions about our services, or help you rebook. What would you like?"
)

func scheduleReply(name string, upcoming *directory.BookingSummary) string {
	if upcoming == nil {
		return withName(name, "I don't see an upcoming visit on your account. Want to book one? https://book.tidynest.example/returning")
	}
	return withName(name, fmt.Sprintf("Your next %s clean is on %s. See you then!",
		upcoming.Service, upcoming.Date.Format("Monday, January 2 at 3:04 PM")))
}

func cleanerReply(name, assigned string, upcoming *directory.BookingSummary) string {
	if upcoming != nil && upcoming.Cleaner != "" {
		return withName(name, fmt.Sprintf("%s will be taking care of your clean on %s.",
			upcoming.Cleaner, upcoming.Date.Format("Monday, January 2")))
	}
	if assigned != "" {
		return withName(name, fmt.Sprintf("%s is your regular cleaner. I don't see an upcoming visit scheduled yet, though.", assigned))
	}
	return withName(name, "A cleaner hasn't been assigned yet. We'll text you their name the day before your visit.")
}

func lastPaymentReply(name string, last *directory.BookingSummary) string {
	if last == nil {
		return withName(name, "I don't see a completed clean on your account yet, so nothing has been charged.")
	}
	return withName(name, fmt.Sprintf("Your last clean on %s came to $%.2f.",
		last.Date.Format("January 2"), float64(last.PriceCents)/100))
}

func withName(name, body string) string {
	if name == "" {
		return body
	}
	if strings.HasPrefix(body, "Your ") {
		body = "your " + body[len("Your "):]
	}
	return name + ", " + body
}
