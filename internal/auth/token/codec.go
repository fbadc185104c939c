// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package token encodes and decodes signed session tokens.

Architecture:

  - Algorithm pinning: only HS256 is accepted. Tokens declaring any other
    algorithm (including "none" or no algorithm at all) are rejected before a
    key is ever consulted.
  - Key selection: the `kid` header carries the signing secret version. The
    codec tries that version first, then every other verification secret.
  - Typed outcomes: [Codec.Decode] returns a [*Failure] for expected negatives
    so callers can tell an expired token apart from a forged one.

Revocation and user status are not checked here; see package session.
*/
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taibuivan/rewards/internal/auth/secret"
)

// # Claims

// Type distinguishes access tokens from refresh tokens.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims is the signed payload. Registered claims carry jti, iat, exp, iss
// and aud.
type Claims struct {
	jwt.RegisteredClaims

	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Type   Type   `json:"typ"`
}

// KeySource resolves verification secrets. [*secret.Manager] implements it.
type KeySource interface {
	Lookup(version int) (secret.SigningSecret, bool)
	VerificationSecrets() []secret.SigningSecret
}

// # Codec

const (
	// DefaultMaxLength bounds the raw token size accepted by Decode.
	DefaultMaxLength = 8 << 10

	jtiBytes  = 16
	headerKID = "kid"
)

// Codec is stateless apart from its configuration and safe for concurrent use.
type Codec struct {
	issuer    string
	audience  string
	maxLength int
	now       func() time.Time
	parser    *jwt.Parser
}

// Option configures a [Codec].
type Option func(*Codec)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMaxLength overrides [DefaultMaxLength].
func WithMaxLength(length int) Option {
	return func(c *Codec) {
		if length > 0 {
			c.maxLength = length
		}
	}
}

// NewCodec builds a codec that issues and expects the given issuer and audience.
func NewCodec(issuer, audience string, opts ...Option) *Codec {
	codec := &Codec{
		issuer:    issuer,
		audience:  audience,
		maxLength: DefaultMaxLength,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(codec)
	}

	codec.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return codec.now() }),
	)
	return codec
}

// Issuer returns the configured issuer.
func (codec *Codec) Issuer() string { return codec.issuer }

// Audience returns the configured audience.
func (codec *Codec) Audience() string { return codec.audience }

// NewClaims fills the registered claims for a token of the given type and lifetime.
func (codec *Codec) NewClaims(userID int64, email, role string, kind Type, ttl time.Duration) (Claims, error) {
	jti, err := NewJTI()
	if err != nil {
		return Claims{}, err
	}

	issuedAt := codec.now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    codec.issuer,
			Audience:  jwt.ClaimStrings{codec.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   kind,
	}, nil
}

// Encode signs claims with HS256 under the given secret.
func (codec *Codec) Encode(claims Claims, signing secret.SigningSecret) (string, error) {
	if len(signing.Material) == 0 {
		return "", secret.ErrNoSecret
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header[headerKID] = strconv.Itoa(signing.Version)

	signed, err := token.SignedString(signing.Material)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

/*
Decode verifies raw and returns its claims.

Checks run in order and the first failure wins:
 1. Structure and size, then the declared algorithm.
 2. Signature, against the `kid` secret first and then every other
    verification secret.
 3. Expiry.
 4. Issuer and audience.

When the signature is valid but a claim check fails, the claims are returned
alongside the Failure so callers can still read the jti and expiry.
*/
func (codec *Codec) Decode(raw string, keys KeySource) (*Claims, *Failure) {
	if failure := checkStructure(raw, codec.maxLength); failure != nil {
		return nil, failure
	}

	unverified, _, err := codec.parser.ParseUnverified(raw, &Claims{})
	if err != nil {
		return nil, classify(err)
	}
	if unverified.Method == nil || unverified.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, Fail(KindInvalidSignature, "algorithm not allowed")
	}

	candidates := verificationOrder(unverified.Header[headerKID], keys)
	if len(candidates) == 0 {
		return nil, Fail(KindInvalidSignature, "no verification key")
	}

	var lastErr error
	for _, candidate := range candidates {
		material := candidate.Material
		claims := &Claims{}

		_, err := codec.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return material, nil
		})
		if err == nil {
			if claims.ID == "" || claims.UserID == 0 {
				return nil, Fail(KindMalformed, "missing subject or jti")
			}
			return claims, nil
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			lastErr = err
			continue
		}

		failure := classify(err)
		if failure.Kind == KindExpired || failure.Kind == KindIssuerAudienceMismatch {
			return claims, failure
		}
		return nil, failure
	}

	return nil, &Failure{Kind: KindInvalidSignature, Err: lastErr}
}

// # Helpers

// NewJTI returns 128 random bits, hex encoded.
func NewJTI() (string, error) {
	raw := make([]byte, jtiBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("token: generate jti: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// LooksLikeToken reports whether value has the three-segment token shape.
func LooksLikeToken(value string) bool {
	return strings.Count(value, ".") == 2
}

func checkStructure(raw string, maxLength int) *Failure {
	if raw == "" {
		return Fail(KindMalformed, "empty token")
	}
	if len(raw) > maxLength {
		return Fail(KindMalformed, "token too large")
	}

	segments := strings.Split(raw, ".")
	if len(segments) != 3 {
		return Fail(KindMalformed, "expected three segments")
	}
	for _, segment := range segments {
		if segment == "" {
			return Fail(KindMalformed, "empty segment")
		}
	}
	return nil
}

// verificationOrder puts the kid-named secret first, followed by the rest.
func verificationOrder(kid any, keys KeySource) []secret.SigningSecret {
	if keys == nil {
		return nil
	}

	all := keys.VerificationSecrets()
	version, ok := parseKID(kid)
	if !ok {
		return all
	}

	named, found := keys.Lookup(version)
	if !found {
		return all
	}

	ordered := make([]secret.SigningSecret, 0, len(all))
	ordered = append(ordered, named)
	for _, candidate := range all {
		if candidate.Version != version {
			ordered = append(ordered, candidate)
		}
	}
	return ordered
}

func parseKID(kid any) (int, bool) {
	text, ok := kid.(string)
	if !ok {
		return 0, false
	}
	version, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return version, true
}

// classify maps jwt parser errors onto failure kinds. Expiry is checked before
// issuer and audience because the validator may report several at once.
func classify(err error) *Failure {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &Failure{Kind: KindMalformed, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &Failure{Kind: KindInvalidSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &Failure{Kind: KindExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return &Failure{Kind: KindIssuerAudienceMismatch, Err: err}
	default:
		return &Failure{Kind: KindMalformed, Err: err}
	}
}
