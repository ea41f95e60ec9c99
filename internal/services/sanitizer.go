package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"habitly/pkg/utils"
)

const defaultMaxInputRunes = 2000

type SanitizerInterface interface {
	// Sanitize normalizes free text before it reaches a prompt. Anything that
	// is not a string is rejected.
	Sanitize(raw any) (string, error)
}

type Sanitizer struct {
	maxRunes int
}

func NewSanitizer() SanitizerInterface {
	return &Sanitizer{maxRunes: defaultMaxInputRunes}
}

var (
	markupTag   = regexp.MustCompile(`</?[A-Za-z][A-Za-z0-9-]*(?:\s[^<>]*)?/?>`)
	blankRuns   = regexp.MustCompile(`[ \t]+`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
	fenceMarker = strings.NewReplacer("```", "'''")
)

func (s *Sanitizer) Sanitize(raw any) (string, error) {
	str, ok := raw.(string)
	if !ok {
		return "", utils.NewValidationError(fmt.Sprintf("expected text, got %T", raw))
	}

	str = norm.NFC.String(str)
	str = strings.ReplaceAll(str, "\r\n", "\n")
	str = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == unicode.ReplacementChar, unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, str)
	str = markupTag.ReplaceAllString(str, "")
	str = fenceMarker.Replace(str)
	str = blankRuns.ReplaceAllString(str, " ")
	str = blankLines.ReplaceAllString(str, "\n\n")
	str = strings.TrimSpace(str)

	if runes := []rune(str); len(runes) > s.maxRunes {
		str = strings.TrimSpace(string(runes[:s.maxRunes]))
	}

	return str, nil
}
