package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeText strips every tag from untrusted text such as display names or
// subjects of inbound mail, and collapses it to a single trimmed line.
func SanitizeText(s string) string {
	clean := html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.Join(strings.Fields(clean), " ")
}
