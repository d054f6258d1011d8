package kofiwebhook

import (
	"regexp"
	"unicode/utf8"
)

const maxFreeTextLen = 1000

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// sanitizeText strips markup from payer-controlled free text and caps the
// length at maxFreeTextLen characters, never splitting a rune. Nil in, nil
// out so optional columns stay NULL.
func sanitizeText(input *string) *string {
	if input == nil || *input == "" {
		return nil
	}
	clean := htmlTagRe.ReplaceAllString(*input, "")
	if utf8.RuneCountInString(clean) > maxFreeTextLen {
		runes := []rune(clean)
		clean = string(runes[:maxFreeTextLen])
	}
	return &clean
}
