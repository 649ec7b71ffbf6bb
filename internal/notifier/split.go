package notifier

import (
	"strings"
	"unicode/utf8"
)

// Split cuts a long message into chunks of at most maxLen bytes. The cut is
// placed on the last newline at-or-before the limit, or made hard (on a rune
// boundary) when a chunk has no newline. Leading whitespace of continuation
// chunks is trimmed, so joining the chunks with the removed separators
// restored reproduces the original text.
func Split(message string, maxLen int) []string {
	if len(message) <= maxLen {
		return []string{message}
	}

	var parts []string
	for message != "" {
		if len(message) <= maxLen {
			parts = append(parts, message)
			break
		}
		cut := strings.LastIndexByte(message[:maxLen], '\n')
		if cut == -1 {
			cut = maxLen
			for cut > 0 && !utf8.RuneStart(message[cut]) {
				cut--
			}
			if cut == 0 {
				// limit smaller than one rune, cut mid-rune rather than loop
				cut = maxLen
			}
		}
		parts = append(parts, message[:cut])
		message = strings.TrimLeft(message[cut:], " \t\r\n")
	}
	return parts
}
