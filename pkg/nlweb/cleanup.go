package nlweb

import (
	"strings"
	"unicode/utf8"
)

// Cleanup limits, in runes.
const (
	MaxSpokenLength  = 800
	MinMeaningfulLen = 10
	ellipsis         = "..."
)

// Notices the service emits as ordinary content.
const (
	LicenseNotice   = "This data is provided under MIT License. See https://opensource.org/license/mit for details."
	RetentionNotice = "Data provided may be retained for up to 1 day."
	UILinkNotice    = "This field may be used to provide a link to the web components that can be used to display the results."
)

// boilerplateFragments never reach the assembled content.
var boilerplateFragments = map[string]struct{}{
	LicenseNotice:   {},
	RetentionNotice: {},
	UILinkNotice:    {},
}

// cleanupPhrases are removed from any final text.
var cleanupPhrases = []string{
	LicenseNotice,
	RetentionNotice,
	UILinkNotice,
	"[End of response]",
	"message_type:",
	"query_id:",
}

// IsBoilerplate reports whether a content fragment is exactly a known notice.
func IsBoilerplate(s string) bool {
	_, ok := boilerplateFragments[strings.TrimSpace(s)]
	return ok
}

// Clean prepares text for speech: boilerplate removal, whitespace collapse and
// truncation with an ellipsis. Text shorter than MinMeaningfulLen afterwards is
// returned as "". Clean is idempotent.
func Clean(text string) string {
	cleaned := text
	// After the first pass whitespace is canonical, so any change shortens the text.
	for {
		next := cleanPass(cleaned)
		if next == cleaned {
			break
		}
		cleaned = next
	}

	if utf8.RuneCountInString(cleaned) < MinMeaningfulLen {
		return ""
	}
	return cleaned
}

func cleanPass(s string) string {
	s = collapseWhitespace(s)
	for _, phrase := range cleanupPhrases {
		s = strings.ReplaceAll(s, phrase, "")
	}
	s = collapseWhitespace(s)
	return truncate(s, MaxSpokenLength)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s so the result, ellipsis included, fits in max runes.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-len(ellipsis)])) + ellipsis
}
