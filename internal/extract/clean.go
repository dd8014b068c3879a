package extract

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	entityRe      = regexp.MustCompile(`&[a-zA-Z]+;|&#\d+;`)
	tagRe         = regexp.MustCompile(`<[^>]+>`)
	punctRunRe    = regexp.MustCompile(`([!?.]){2,}`)
	urlRe         = regexp.MustCompile(`https?://\S+`)
	emailRe       = regexp.MustCompile(`\S+@\S+`)
	prePunctRe    = regexp.MustCompile(`\s+([,.!?;:])`)
	defaultPlates = []string{
		"cookie policy",
		"privacy policy",
		"terms of service",
		"all rights reserved",
		"copyright",
		"skip to content",
		"back to top",
	}
)

// NormalizeWhitespace collapses runs of whitespace to single spaces and
// trims the ends.
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// CleanHTMLRemnants strips leftover entities and tags from already
// de-structured text.
func CleanHTMLRemnants(text string) string {
	text = entityRe.ReplaceAllString(text, " ")
	return tagRe.ReplaceAllString(text, " ")
}

// CleanText normalizes extracted content for chunking: HTML remnants,
// repeated punctuation, URLs, and email addresses are removed.
func CleanText(text string) string {
	text = CleanHTMLRemnants(text)
	text = NormalizeWhitespace(text)
	text = punctRunRe.ReplaceAllString(text, "$1")
	text = urlRe.ReplaceAllString(text, "")
	text = emailRe.ReplaceAllString(text, "")
	text = prePunctRe.ReplaceAllString(text, "$1")
	return NormalizeWhitespace(text)
}

// RemoveBoilerplate drops common navigation and legal phrases together
// with up to 50 characters of surrounding context on each side.
func RemoveBoilerplate(text string, phrases []string) string {
	if len(phrases) == 0 {
		phrases = defaultPlates
	}
	for _, phrase := range phrases {
		re, err := regexp.Compile(`(?i).{0,50}` + regexp.QuoteMeta(phrase) + `.{0,50}`)
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, "")
	}
	return NormalizeWhitespace(text)
}

// ValidContent reports whether text is substantial enough to analyze:
// at least minLength characters and twenty words.
func ValidContent(text string, minLength int) bool {
	if minLength <= 0 {
		minLength = 100
	}
	if len(text) < minLength {
		return false
	}
	return len(strings.Fields(text)) >= 20
}
