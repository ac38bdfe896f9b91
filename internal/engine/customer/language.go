package customer

import "strings"

// spanishMarkers are words strongly indicating a Spanish-language message.
// Detection is a pure function of the text, no per-phone preference is kept.
var spanishMarkers = []string{
	"hola", "buenos dias", "buenos días", "buenas tardes", "buenas noches",
	"gracias", "por favor", "limpieza", "necesito", "quiero", "cuando",
	"cuándo", "cuanto", "cuánto", "ayuda", "servicio", "habla español",
	"hablas español", "español",
}

func isSpanish(message string) bool {
	normalized := strings.ToLower(message)
	for _, marker := range spanishMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}
