// Package game holds the pure chain-game rules shared by the city and word
// games: which letter the next answer must start with, and how player input
// is normalized before lookups.
package game

import (
	"strings"
	"unicode"
)

// silentTail are letters that never open a Russian word. When a played word
// ends with one of them, the chain letter is taken from the nearest earlier
// letter instead.
const silentTail = "ьыъйё"

// NextLetter returns the letter the next word must start with, derived from
// the word just played: the last character that is not in the silent-tail
// set, uppercased. Returns "" for words consisting solely of silent letters.
func NextLetter(word string) string {
	runes := []rune(strings.ToLower(strings.TrimSpace(word)))
	for i := len(runes) - 1; i >= 0; i-- {
		if !strings.ContainsRune(silentTail, runes[i]) {
			return string(unicode.ToUpper(runes[i]))
		}
	}
	return ""
}

// Normalize prepares raw message text for dictionary and city lookups:
// strips the leading command slash, trims whitespace and capitalizes the
// first letter, matching how reference names are stored.
func Normalize(text string) string {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "/"))
	if s == "" {
		return ""
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// StartsWith reports whether word begins with letter, case-insensitively.
// An empty letter matches anything (no chain constraint yet).
func StartsWith(word, letter string) bool {
	if letter == "" {
		return true
	}
	wr := []rune(strings.TrimSpace(word))
	lr := []rune(letter)
	if len(wr) == 0 || len(lr) == 0 {
		return false
	}
	return unicode.ToLower(wr[0]) == unicode.ToLower(lr[0])
}

// FirstLetter returns the uppercased first letter of word, or "".
func FirstLetter(word string) string {
	runes := []rune(strings.TrimSpace(word))
	if len(runes) == 0 {
		return ""
	}
	return string(unicode.ToUpper(runes[0]))
}
