// Package oid implements the 24-character hexadecimal document identifiers
// used on every wire-visible reference in the API.
package oid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

// ID is a 24-character hexadecimal document identifier.
type ID string

var pattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// New generates a fresh identifier from 12 random bytes.
func New() ID {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("oid: rand.Read: %v", err))
	}
	return ID(hex.EncodeToString(b[:]))
}

// IsValid reports whether s is a well-formed identifier.
func IsValid(s string) bool {
	return pattern.MatchString(s)
}

// Parse validates s and returns it as an ID.
func Parse(s string) (ID, error) {
	if !IsValid(s) {
		return "", fmt.Errorf("invalid id %q: must be 24 hex characters", s)
	}
	return ID(s), nil
}

func (id ID) String() string { return string(id) }

// Valid reports whether the ID itself is well formed. Useful after
// deserializing untrusted payloads.
func (id ID) Valid() bool { return IsValid(string(id)) }
