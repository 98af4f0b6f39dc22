package coordinator

import (
	"regexp"
	"strings"
)

// Order id extraction patterns, checked in priority order. The keyword
// patterns cover English and Spanish phrasings; the standalone number is a
// last-resort fallback.
var (
	orderIDFull    = regexp.MustCompile(`(?i)ORD-\d{4,6}`)
	orderIDKeyword = regexp.MustCompile(`(?i)\b(?:order|pedido|orden|compra)(?:\s+(?:is\s+|number\s+|número\s+|#\s*|n[úu]mero\s+de\s+)?)(\d{4,6})\b`)
	orderIDReverse = regexp.MustCompile(`(?i)\bn[úu]mero\s+(?:de\s+)?(?:pedido|orden)\s+(\d{4,6})\b`)
	orderIDBare    = regexp.MustCompile(`\b(\d{4,6})\b`)

	skuPattern = regexp.MustCompile(`(?i)\bSKU-[A-Za-z0-9]+\b`)
)

// ExtractOrderID pulls an order id out of free text, normalized to the
// ORD-XXXXX form. Returns "" when no pattern matches.
func ExtractOrderID(text string) string {
	if m := orderIDFull.FindString(text); m != "" {
		return strings.ToUpper(m)
	}
	if m := orderIDKeyword.FindStringSubmatch(text); m != nil {
		return "ORD-" + m[1]
	}
	if m := orderIDReverse.FindStringSubmatch(text); m != nil {
		return "ORD-" + m[1]
	}
	if m := orderIDBare.FindStringSubmatch(text); m != nil {
		return "ORD-" + m[1]
	}
	return ""
}

// ExtractSKU pulls a SKU reference out of free text, or "".
func ExtractSKU(text string) string {
	return strings.ToUpper(skuPattern.FindString(text))
}

// Confirmation vocabulary, English and Spanish.
var (
	affirmatives = []string{
		"yes", "si", "sí", "ok", "confirm", "confirmar", "confirmo",
		"proceder", "adelante", "vale", "afirmativo", "correcto",
	}
	negatives = []string{"no", "cancel", "cancelar", "nope", "don't", "stop"}
)

// IsConfirmation reports whether text is an explicit go-ahead.
func IsConfirmation(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, w := range affirmatives {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

// IsDeclination reports whether text explicitly declines a pending action.
func IsDeclination(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, w := range negatives {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}
