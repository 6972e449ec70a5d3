package extract

import (
	"regexp"
	"strings"
)

var (
	manyNewlines = regexp.MustCompile(`\n{3,}`)
	manySpaces   = regexp.MustCompile(` {3,}`)
	lineEndings  = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Normalize unifies line endings to "\n", collapses runs of three or more
// newlines to two and runs of three or more spaces to two, then trims.
func Normalize(text string) string {
	text = lineEndings.Replace(text)
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	text = manySpaces.ReplaceAllString(text, "  ")
	return strings.TrimSpace(text)
}
