// Package slug derives URL-safe identifiers from display names.
package slug

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode"
)

// Make converts a display name to a lowercase hyphenated slug.
// Non-alphanumeric runs collapse to a single hyphen; leading and trailing
// hyphens are stripped.
func Make(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// UniqueID returns an opaque 8-character hex token used to keep slugs
// collision-free.
func UniqueID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("slug: rand.Read: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}

// WithSuffix returns the slug of name with a unique suffix appended.
func WithSuffix(name string) string {
	s := Make(name)
	if s == "" {
		return UniqueID()
	}
	return s + "-" + UniqueID()
}
