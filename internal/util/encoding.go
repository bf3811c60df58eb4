package util

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKD unicode normalization so that visually identical
// inputs compare (and hash) equal.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}

// NormalizeSecretAnswer canonicalizes a security-question answer before
// hashing or comparison: NFKD, surrounding whitespace trimmed, lowercased.
// Case and whitespace insensitivity is a deliberate usability choice for
// knowledge-based answers.
func NormalizeSecretAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(Normalize(s)))
}
