// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package tokencrypt provides authenticated symmetric encryption for tokens that
must be stored outside the primary transport (refresh cookies, secondary
caches, signing material at rest).

Envelope format:

	v1:<base64url nonce>:<base64url ciphertext+tag>

Ciphertext is produced by XChaCha20-Poly1305 with a fresh random 24-byte nonce
per call, so nonces never repeat for a key in practice. The AEAD key is derived
from the caller's key material with HKDF-SHA256, which lets operators supply
any high-entropy string of at least [MinKeySize] bytes.

Decryption never returns partial or unauthenticated plaintext: every failure
is reported as a [*DecryptionError].

This is not a substitute for the signature check performed by the token codec.
*/
package tokencrypt

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// # Format

const (
	// MinKeySize is the minimum accepted length of caller key material.
	MinKeySize = 32

	envelopeVersion   = "v1"
	envelopeSeparator = ":"
)

// hkdfInfo provides domain separation for the derived AEAD key. Changing it
// invalidates every envelope produced so far.
var hkdfInfo = []byte("rewards.tokencrypt.v1")

// # Errors

// ErrDecryption matches every [*DecryptionError] via [errors.Is].
var ErrDecryption = errors.New("tokencrypt: decryption failed")

// ErrKeyTooShort is returned when key material is shorter than [MinKeySize].
var ErrKeyTooShort = fmt.Errorf("tokencrypt: key must be at least %d bytes", MinKeySize)

// DecryptionError reports why an envelope could not be opened.
type DecryptionError struct {
	// Reason is a short, log-safe description (never includes key or plaintext).
	Reason string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *DecryptionError) Error() string {
	if e.Cause != nil {
		return "tokencrypt: " + e.Reason + ": " + e.Cause.Error()
	}
	return "tokencrypt: " + e.Reason
}

// Unwrap exposes the underlying cause.
func (e *DecryptionError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrDecryption) match any DecryptionError.
func (e *DecryptionError) Is(target error) bool { return target == ErrDecryption }

// # Cipher

// Cipher binds derived key material once so repeated calls avoid re-running HKDF.
//
// A Cipher is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives an AEAD key from the given key material.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) < MinKeySize {
		return nil, ErrKeyTooShort
	}

	derived := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, hkdfInfo), derived); err != nil {
		return nil, fmt.Errorf("tokencrypt: derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(derived)
	if err != nil {
		return nil, fmt.Errorf("tokencrypt: create XChaCha20-Poly1305 cipher: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext and returns the textual envelope.
func (c *Cipher) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("tokencrypt: generate nonce: %w", err)
	}

	// The version prefix is authenticated so a downgraded envelope fails to open.
	ciphertext := c.aead.Seal(nil, nonce, plaintext, []byte(envelopeVersion))

	return strings.Join([]string{
		envelopeVersion,
		base64.RawURLEncoding.EncodeToString(nonce),
		base64.RawURLEncoding.EncodeToString(ciphertext),
	}, envelopeSeparator), nil
}

// Open authenticates and decrypts an envelope produced by [Cipher.Seal].
func (c *Cipher) Open(envelope string) ([]byte, error) {
	parts := strings.Split(envelope, envelopeSeparator)
	if len(parts) != 3 {
		return nil, &DecryptionError{Reason: "malformed envelope"}
	}
	if parts[0] != envelopeVersion {
		return nil, &DecryptionError{Reason: "unsupported envelope version"}
	}

	nonce, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, &DecryptionError{Reason: "invalid nonce encoding", Cause: err}
	}
	if len(nonce) != chacha20poly1305.NonceSizeX {
		return nil, &DecryptionError{Reason: "invalid nonce length"}
	}

	ciphertext, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, &DecryptionError{Reason: "invalid ciphertext encoding", Cause: err}
	}
	if len(ciphertext) < c.aead.Overhead() {
		return nil, &DecryptionError{Reason: "ciphertext too short"}
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, []byte(parts[0]))
	if err != nil {
		// Wrong key and tampered data are indistinguishable by design of the AEAD.
		return nil, &DecryptionError{Reason: "authentication failed", Cause: err}
	}

	return plaintext, nil
}

// # Convenience

// Encrypt seals plaintext under key. See [Cipher.Seal].
func Encrypt(plaintext string, key []byte) (string, error) {
	c, err := NewCipher(key)
	if err != nil {
		return "", err
	}
	return c.Seal([]byte(plaintext))
}

// Decrypt opens an envelope under key. Any failure, including an unusable
// key, is reported as a [*DecryptionError].
func Decrypt(envelope string, key []byte) (string, error) {
	c, err := NewCipher(key)
	if err != nil {
		return "", &DecryptionError{Reason: "unusable key", Cause: err}
	}

	plaintext, err := c.Open(envelope)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
