// Package sanitize cleans client-supplied identifiers before they are placed
// into SQL text, and guards the file paths derived from client addresses.
//
// Values never pass through here: they are always bound as parameters.
// Only names (tables, columns) are interpolated, wrapped in backticks.
package sanitize

import (
	"errors"
	"html"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ErrPathTraversal is returned when a derived path escapes its base directory.
var ErrPathTraversal = errors.New("sanitize: path traversal detected")

var strict = bluemonday.StrictPolicy()

// StripMarkup removes every HTML/XML tag from s, keeping the text content.
// Entities produced by the policy are decoded back so "a&b" stays "a&b".
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	return html.UnescapeString(strict.Sanitize(s))
}

// EscapeBackticks doubles every backtick, the identifier escape understood
// by both MySQL and SQLite.
func EscapeBackticks(s string) string {
	return strings.ReplaceAll(s, "`", "``")
}

// QuoteIdent wraps an already-cleaned name in backticks.
func QuoteIdent(name string) string {
	return "`" + EscapeBackticks(name) + "`"
}

// Field cleans a client-supplied column name: markup stripped, surrounding
// whitespace trimmed. The result still has to go through QuoteIdent.
func Field(raw string) string {
	return strings.TrimSpace(StripMarkup(raw))
}

// Table cleans a table name taken from a route segment.
func Table(raw string) string {
	return strings.TrimSpace(raw)
}

var escaper = strings.NewReplacer(
	"\\", "\\\\",
	"\x00", "\\0",
	"\n", "\\n",
	"\r", "\\r",
	"'", "\\'",
	`"`, `\"`,
	"\x1a", "\\Z",
)

// EscapeString escapes s for inclusion inside a quoted SQL literal.
// Extensions that build their own statements use it for names only;
// values must be bound.
func EscapeString(s string) string {
	return escaper.Replace(s)
}

// SafePath joins base and name and verifies the result stays under base.
func SafePath(base, name string) (string, error) {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", ErrPathTraversal
	}
	cleanBase := filepath.Clean(base)
	joined := filepath.Join(cleanBase, name)
	if filepath.Dir(joined) != cleanBase {
		return "", ErrPathTraversal
	}
	return joined, nil
}
