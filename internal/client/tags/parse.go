// Package tags extracts tagged activities such as "#RUN 30min" from free
// entry text.
//
// Parse is total: it never fails and never panics, whatever the input.
// Tokens that do not fit the grammar are dropped.
//
// Grammar:
//
//	tag      = "#" label [ hspace+ duration ]
//	label    = letter { letter | digit | "_" }     (1..50 characters)
//	duration = digits ( "min" | "h" )
//
// Labels are case-insensitive and returned uppercased. A tag only starts at
// the beginning of the text or after a character that cannot be part of a
// label, so "a#b" is not a tag.
package tags

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/daybook/internal/client/models"
)

const (
	Marker = '#'

	MaxLabelLen = 50

	// maxMinutes caps a single duration at one week.
	maxMinutes = 7 * 24 * 60
)

// Parse returns the tagged activities in content in source order.
// Duplicate labels are kept as separate items.
func Parse(content string) []models.TaggedActivity {
	var out []models.TaggedActivity

	prev := rune(-1)
	for i := 0; i < len(content); {
		r, size := utf8.DecodeRuneInString(content[i:])
		if r != Marker || isLabelRune(prev) {
			prev = r
			i += size
			continue
		}

		label, next, ok := scanLabel(content, i+size)
		if !ok {
			prev = r
			i += size
			continue
		}

		item := models.TaggedActivity{Label: strings.ToUpper(label)}
		if minutes, end, found := scanDuration(content, next); found {
			item.Minutes = &minutes
			next = end
		}
		out = append(out, item)

		prev, _ = utf8.DecodeLastRuneInString(content[:next])
		i = next
	}

	return out
}

// scanLabel reads a label starting at pos. It reports ok=false, and still
// consumes nothing, when the run of label characters is empty, too long or
// does not start with a letter.
func scanLabel(s string, pos int) (label string, end int, ok bool) {
	end = pos
	n := 0
	for end < len(s) {
		r, size := utf8.DecodeRuneInString(s[end:])
		if !isLabelRune(r) {
			break
		}
		end += size
		n++
	}
	if n == 0 || n > MaxLabelLen {
		return "", pos, false
	}
	first, _ := utf8.DecodeRuneInString(s[pos:])
	if !unicode.IsLetter(first) {
		return "", pos, false
	}
	return s[pos:end], end, true
}

// scanDuration looks for horizontal whitespace followed by <digits><unit>.
func scanDuration(s string, pos int) (minutes int, end int, ok bool) {
	i := pos
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if i == pos {
		return 0, pos, false
	}

	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return 0, pos, false
	}
	digits := s[start:i]

	var factor int
	switch {
	case strings.HasPrefix(s[i:], "min"):
		factor, i = 1, i+3
	case strings.HasPrefix(s[i:], "h"):
		factor, i = 60, i+1
	default:
		return 0, pos, false
	}

	if i < len(s) {
		r, _ := utf8.DecodeRuneInString(s[i:])
		if isLabelRune(r) {
			return 0, pos, false
		}
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n > maxMinutes/factor {
		return 0, pos, false
	}
	return n * factor, i, true
}

func isLabelRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
