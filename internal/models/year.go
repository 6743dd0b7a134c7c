package models

import (
	"fmt"
	"regexp"
	"strconv"
)

// Years a card can carry. The text token is always four digits wide.
const (
	MinYear = 1000
	MaxYear = 9999
)

// ValidYear reports whether y fits a "(YYYY)" token.
func ValidYear(y int) bool { return y >= MinYear && y <= MaxYear }

var (
	yearTokenRe       = regexp.MustCompile(`\((\d{4})\)`)
	spacedYearTokenRe = regexp.MustCompile(`\s*\(\d{4}\)`)
)

// ExtractYear returns the year encoded in the first "(YYYY)" token of text.
func ExtractYear(text string) (int, bool) {
	m := yearTokenRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	if err != nil || !ValidYear(y) {
		return 0, false
	}
	return y, true
}

// StripYear removes the first "(YYYY)" token and the whitespace before it.
func StripYear(text string) string {
	loc := spacedYearTokenRe.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return text[:loc[0]] + text[loc[1]:]
}

// WithYear rewrites the first "(YYYY)" token of text to year, or appends one.
func WithYear(text string, year int) string {
	token := fmt.Sprintf("(%d)", year)
	loc := yearTokenRe.FindStringIndex(text)
	if loc == nil {
		return text + " " + token
	}
	return text[:loc[0]] + token + text[loc[1]:]
}
