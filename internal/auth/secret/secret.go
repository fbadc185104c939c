// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package secret owns the HMAC signing secrets used to issue and verify session
tokens.

Architecture:

  - Validation: [Validate] scores candidate material (length + character-class
    diversity) and returns a typed [ValidationResult]; it never panics.
  - Rotation: [Manager.Rotate] generates a new versioned secret and retires the
    previous one. Retired secrets verify (never sign) until the grace window
    elapses.
  - Atomicity: the active/retired set is an immutable keyring swapped through
    an atomic pointer, so concurrent issuers and verifiers observe either the
    pre-rotation or post-rotation state.
  - Persistence: an optional [Repository] keeps versions across restarts and
    instances.
*/
package secret

import (
	"errors"
	"time"
	"unicode"
)

// # Defaults

const (
	// DefaultMinLength is the minimum secret length in bytes.
	DefaultMinLength = 64

	// DefaultGraceWindow keeps retired secrets usable for verification long
	// enough for every refresh token signed with them to expire.
	DefaultGraceWindow = 7 * 24 * time.Hour

	// DefaultMaxRetired bounds the retired set.
	DefaultMaxRetired = 4

	// generatedEntropyBytes is the raw entropy of generated secrets.
	generatedEntropyBytes = 64

	// requiredClasses is how many of the four character classes a strong secret needs.
	requiredClasses = 3
)

// Validation messages. Stable strings: health checks and tests match on them.
const (
	ErrMsgEmpty     = "secret is empty"
	ErrMsgTooShort  = "too short"
	ErrMsgDiversity = "insufficient character diversity"
)

// # Errors

var (
	// ErrNoSecret is returned when the manager holds no signing secret.
	ErrNoSecret = errors.New("secret: no signing secret configured")

	// ErrWeakSecret is returned by [New] in strict mode when the configured secret fails validation.
	ErrWeakSecret = errors.New("secret: configured signing secret is too weak")
)

// # Domain Types

// SigningSecret is one version of HMAC key material.
type SigningSecret struct {
	Version       int
	Material      []byte
	CreatedAt     time.Time
	RetiredAt     *time.Time
	StrengthScore int
}

// IsCurrent reports whether the secret may be used for issuance.
func (s SigningSecret) IsCurrent() bool {
	return s.RetiredAt == nil
}

// InGrace reports whether a retired secret still verifies at now.
func (s SigningSecret) InGrace(now time.Time, graceWindow time.Duration) bool {
	if s.RetiredAt == nil {
		return true
	}
	return now.Before(s.RetiredAt.Add(graceWindow))
}

// ValidationResult is the outcome of a strength check.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
	Score   int      `json:"score"`
}

// # Validation

// Validate checks material against minLength and the character-class rule.
//
// Score is the number of classes present plus one point per 16 bytes of
// length (capped at 8), so a 64-byte, 4-class secret scores 8.
func Validate(material []byte, minLength int) ValidationResult {
	result := ValidationResult{IsValid: true}

	if len(material) == 0 {
		return ValidationResult{IsValid: false, Errors: []string{ErrMsgEmpty, ErrMsgTooShort}}
	}

	if len(material) < minLength {
		result.IsValid = false
		result.Errors = append(result.Errors, ErrMsgTooShort)
	}

	classes := characterClasses(material)
	if classes < requiredClasses {
		result.IsValid = false
		result.Errors = append(result.Errors, ErrMsgDiversity)
	}

	result.Score = classes + min(len(material)/16, 8)
	return result
}

// characterClasses counts lowercase, uppercase, digit and symbol presence.
// Non-UTF-8 bytes count as symbols.
func characterClasses(material []byte) int {
	var lower, upper, digit, symbol bool

	for _, r := range string(material) {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	count := 0
	for _, present := range []bool{lower, upper, digit, symbol} {
		if present {
			count++
		}
	}
	return count
}
