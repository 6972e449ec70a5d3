package extract

import (
	"bytes"
	"fmt"

	"github.com/lu4p/cat"
)

// rtfSkippedGroups are RTF destinations that hold no document text.
var rtfSkippedGroups = map[string]bool{
	"fonttbl":    true,
	"colortbl":   true,
	"stylesheet": true,
	"info":       true,
	"pict":       true,
	"header":     true,
	"footer":     true,
}

// extractWithCat handles the formats lu4p/cat reads natively (RTF and ODT).
func extractWithCat(content []byte, format Format) (string, error) {
	if format == FormatRTF {
		content = stripRTFGroups(content)
	}
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExtractionFailed, format, err)
	}
	return text, nil
}

// stripRTFGroups drops table and metadata groups. cat's RTF reader is not
// group aware and would otherwise print font names as text.
func stripRTFGroups(content []byte) []byte {
	out := make([]byte, 0, len(content))
	for i := 0; i < len(content); i++ {
		switch content[i] {
		case '\\':
			out = append(out, content[i])
			if i+1 < len(content) {
				i++
				out = append(out, content[i])
			}
			continue
		case '{':
			if skippedRTFGroup(content[i+1:]) {
				i = rtfGroupEnd(content, i)
				continue
			}
		}
		out = append(out, content[i])
	}
	return out
}

func skippedRTFGroup(rest []byte) bool {
	if !bytes.HasPrefix(rest, []byte(`\`)) {
		return false
	}
	if bytes.HasPrefix(rest, []byte(`\*`)) {
		return true
	}
	end := 1
	for end < len(rest) && (rest[end] >= 'a' && rest[end] <= 'z' || rest[end] >= 'A' && rest[end] <= 'Z') {
		end++
	}
	return rtfSkippedGroups[string(rest[1:end])]
}

// rtfGroupEnd returns the index of the brace closing the group opened at start.
func rtfGroupEnd(content []byte, start int) int {
	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(content) - 1
}
