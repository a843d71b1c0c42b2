package dialogue

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

var (
	numericIDPattern = regexp.MustCompile(`^[0-9]+$`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}/\d{1,2}/\d{1,2}$`),
		regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}$`),
		regexp.MustCompile(`^\d{1,2}/\d{1,2}$`),
		regexp.MustCompile(`^\d{1,2}月\d{1,2}日$`),
	}

	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{1,2}:\d{2}$`),
		regexp.MustCompile(`^\d{1,2}時\d{1,2}分$`),
		regexp.MustCompile(`^\d{1,2}時$`),
	}
)

// SanitizeInput trims surrounding whitespace from an inbound message.
func SanitizeInput(text string) string {
	return strings.TrimSpace(text)
}

// NarrowDigits folds full-width forms (１２, ：, ／) to ASCII. Japanese IMEs
// emit full-width digits by default. Only use it for matching and parsing;
// stored text keeps what the user typed.
func NarrowDigits(text string) string {
	return width.Narrow.String(text)
}

// IsNumericID reports whether the whole input is decimal digits, full-width
// digits included. Empty input is not an id.
func IsNumericID(text string) bool {
	return numericIDPattern.MatchString(NarrowDigits(text))
}

// IsValidDate accepts 2025/11/17, 2025-11-17, 11/17 and 11月17日, in either width.
func IsValidDate(text string) bool {
	return matchesAny(datePatterns, NarrowDigits(text))
}

// IsValidTime accepts 14:30, 14時30分 and 14時, in either width.
func IsValidTime(text string) bool {
	return matchesAny(timePatterns, NarrowDigits(text))
}

// ContainsKeyword reports whether any keyword occurs anywhere in text, ignoring case.
func ContainsKeyword(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
