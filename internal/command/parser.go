// Package command parses free-text chat messages against a fixed
// grammar and dispatches matching commands.
package command

import (
	"regexp"
	"strings"
)

var (
	nonWord    = regexp.MustCompile(`[^\w\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize reduces raw message text to the canonical command form:
// punctuation stripped, whitespace collapsed, trimmed, lower-cased.
func Normalize(text string) string {
	text = nonWord.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}

// matcher decides whether a normalized string is this command, and
// extracts its positional arguments.
type matcher interface {
	match(normalized string) (args []string, ok bool)
}

// literal matches an exact normalized string and yields no arguments.
type literal string

func (l literal) match(normalized string) ([]string, bool) {
	if normalized == string(l) {
		return nil, true
	}
	return nil, false
}

// pattern matches a regular expression and extracts arguments by
// splitting on whitespace and slicing at a fixed offset, which is
// grammar-rule-specific (the number of leading keyword tokens).
type pattern struct {
	re     *regexp.Regexp
	offset int
}

func (p pattern) match(normalized string) ([]string, bool) {
	if !p.re.MatchString(normalized) {
		return nil, false
	}
	fields := strings.Fields(normalized)
	if len(fields) <= p.offset {
		return nil, false
	}
	return fields[p.offset:], true
}

// Grammar patterns. Normalization leaves word characters only, so a
// thread id keeps its t_ prefix (underscore is a word character) and
// user ids are bare digit runs.
var (
	createGroupPattern     = pattern{re: regexp.MustCompile(`^create group \w+( \d+)+$`), offset: 2}
	addToGroupPattern      = pattern{re: regexp.MustCompile(`^add to group t_\d+( \d+)+$`), offset: 3}
	removeFromGroupPattern = pattern{re: regexp.MustCompile(`^remove from group t_\d+( \d+)+$`), offset: 3}
)
