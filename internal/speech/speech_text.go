package speech

import (
	"regexp"
	"strings"
)

// spokenLinkPlaceholder replaces URLs before synthesis; a read-out URL is
// noise to the listener.
const spokenLinkPlaceholder = "Enlace proporcionado en el texto"

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// PrepareForSpeech rewrites any URL substrings to the fixed spoken
// placeholder phrase and collapses the surrounding whitespace.
func PrepareForSpeech(text string) string {
	text = urlPattern.ReplaceAllString(text, spokenLinkPlaceholder)
	return strings.Join(strings.Fields(text), " ")
}
