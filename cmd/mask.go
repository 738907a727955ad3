package cmd

import (
	"strings"

	masker "github.com/goliatone/go-masker"
)

// maskValue hides all but the first and last two characters of a credential.
func maskValue(value string) string {
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	if masked, err := masker.Default.String("preserveEnds(2,2)", value); err == nil && masked != value {
		return masked
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
}
