package content

import "github.com/tidwall/gjson"

// DefaultPreviewLength is the character budget for list previews.
const DefaultPreviewLength = 150

// Ellipsis marks truncated text.
const Ellipsis = "..."

// Truncate cuts s to max characters and appends Ellipsis only when it cut.
// When s is structured text (valid JSON) the cut never lands inside a
// backslash escape sequence. max <= 0 selects DefaultPreviewLength.
func Truncate(s string, max int) string {
	if max <= 0 {
		max = DefaultPreviewLength
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := max
	if gjson.Valid(s) {
		cut = escapeBoundary(runes, max)
	}
	return string(runes[:cut]) + Ellipsis
}

// escapeBoundary returns the largest index <= max that does not split an
// escape such as \n or \u00e9.
func escapeBoundary(runes []rune, max int) int {
	for i := 0; i < max; i++ {
		if runes[i] != '\\' {
			continue
		}
		width := 2
		if i+1 < len(runes) && runes[i+1] == 'u' {
			width = 6
		}
		if i+width > max {
			return i
		}
		i += width - 1
	}
	return max
}
