// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package token_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/rewards/internal/auth/secret"
	"github.com/taibuivan/rewards/internal/auth/token"
)

var strongSecret = []byte("Aa1!" + strings.Repeat("Zq9#", 16))

type fixture struct {
	now     time.Time
	codec   *token.Codec
	manager *secret.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	manager, err := secret.New(context.Background(), strongSecret,
		secret.WithClock(clock),
		secret.WithGraceWindow(24*time.Hour),
	)
	require.NoError(t, err)

	f.manager = manager
	f.codec = token.NewCodec("rewards", "rewards-web", token.WithClock(clock))
	return f
}

func (f *fixture) issue(t *testing.T, ttl time.Duration) (string, token.Claims) {
	t.Helper()

	claims, err := f.codec.NewClaims(42, "owner@example.com", "business", token.TypeAccess, ttl)
	require.NoError(t, err)

	current, err := f.manager.Current()
	require.NoError(t, err)

	raw, err := f.codec.Encode(claims, current)
	require.NoError(t, err)
	return raw, claims
}

func signWith(t *testing.T, method jwt.SigningMethod, claims token.Claims, key any) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return raw
}

/*
TestCodec_RoundTrip ensures decoded claims match what was issued.
*/
func TestCodec_RoundTrip(t *testing.T) {
	f := newFixture(t)
	raw, issued := f.issue(t, 15*time.Minute)

	claims, failure := f.codec.Decode(raw, f.manager)
	require.Nil(t, failure)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "owner@example.com", claims.Email)
	assert.Equal(t, "business", claims.Role)
	assert.Equal(t, token.TypeAccess, claims.Type)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Len(t, claims.ID, 32)
}

func TestNewJTI_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		jti, err := token.NewJTI()
		require.NoError(t, err)
		_, duplicate := seen[jti]
		require.False(t, duplicate)
		seen[jti] = struct{}{}
	}
}

/*
TestCodec_Malformed rejects structurally invalid input before any key is used.
*/
func TestCodec_Malformed(t *testing.T) {
	f := newFixture(t)
	raw, _ := f.issue(t, time.Minute)
	parts := strings.Split(raw, ".")

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"two_segments", parts[0] + "." + parts[1]},
		{"four_segments", raw + ".extra"},
		{"empty_signature", parts[0] + "." + parts[1] + "."},
		{"header_not_json", "e30x." + parts[1] + "." + parts[2]},
		{"oversized", parts[0] + "." + strings.Repeat("A", token.DefaultMaxLength) + "." + parts[2]},
		{"binary", "\x00\xff.\x01.\x02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, failure := f.codec.Decode(tt.raw, f.manager)
			require.NotNil(t, failure)
			assert.Nil(t, claims)
			assert.Equal(t, token.KindMalformed, failure.Kind)
			assert.Equal(t, "TOKEN_MALFORMED", failure.Code())
		})
	}
}

/*
TestCodec_AlgorithmPinning rejects every algorithm other than HS256, even when
the signature would verify under the declared algorithm.
*/
func TestCodec_AlgorithmPinning(t *testing.T) {
	f := newFixture(t)
	_, claims := f.issue(t, time.Minute)

	noneToken := signWith(t, jwt.SigningMethodNone, claims, jwt.UnsafeAllowNoneSignatureType)
	noAlgHeader := base64.RawURLEncoding.EncodeToString([]byte(`{"typ":"JWT"}`))
	validParts := strings.Split(signWith(t, jwt.SigningMethodHS256, claims, strongSecret), ".")

	tests := []struct {
		name string
		raw  string
	}{
		{"none_with_signature", noneToken + "c2ln"},
		{"hs512_same_secret", signWith(t, jwt.SigningMethodHS512, claims, strongSecret)},
		{"hs384_same_secret", signWith(t, jwt.SigningMethodHS384, claims, strongSecret)},
		{"alg_absent", noAlgHeader + "." + validParts[1] + "." + validParts[2]},
		{"rs256_header", base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`)) + "." + validParts[1] + "." + validParts[2]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, failure := f.codec.Decode(tt.raw, f.manager)
			require.NotNil(t, failure)
			assert.Nil(t, claims)
			assert.Equal(t, token.KindInvalidSignature, failure.Kind)
		})
	}

	t.Run("none_without_signature", func(t *testing.T) {
		_, failure := f.codec.Decode(noneToken, f.manager)
		require.NotNil(t, failure)
	})
}

func TestCodec_InvalidSignature(t *testing.T) {
	f := newFixture(t)
	_, claims := f.issue(t, time.Minute)

	t.Run("foreign_secret", func(t *testing.T) {
		raw := signWith(t, jwt.SigningMethodHS256, claims, []byte("some-other-secret"))
		_, failure := f.codec.Decode(raw, f.manager)
		require.NotNil(t, failure)
		assert.Equal(t, token.KindInvalidSignature, failure.Kind)
	})

	t.Run("tampered_payload", func(t *testing.T) {
		raw, _ := f.issue(t, time.Minute)
		parts := strings.Split(raw, ".")

		forged := claims
		forged.UserID = 1
		forgedParts := strings.Split(signWith(t, jwt.SigningMethodHS256, forged, []byte("x")), ".")

		_, failure := f.codec.Decode(parts[0]+"."+forgedParts[1]+"."+parts[2], f.manager)
		require.NotNil(t, failure)
		assert.Equal(t, token.KindInvalidSignature, failure.Kind)
	})
}

/*
TestCodec_Expired fails with Expired once exp has passed, and still exposes
the claims because the signature was valid.
*/
func TestCodec_Expired(t *testing.T) {
	f := newFixture(t)
	raw, issued := f.issue(t, 15*time.Minute)

	f.now = f.now.Add(16 * time.Minute)

	claims, failure := f.codec.Decode(raw, f.manager)
	require.NotNil(t, failure)
	assert.Equal(t, token.KindExpired, failure.Kind)
	require.NotNil(t, claims)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestCodec_IssuerAudienceMismatch(t *testing.T) {
	f := newFixture(t)
	_, claims := f.issue(t, time.Minute)

	wrongIssuer := claims
	wrongIssuer.Issuer = "someone-else"

	wrongAudience := claims
	wrongAudience.Audience = jwt.ClaimStrings{"mobile"}

	for name, c := range map[string]token.Claims{"issuer": wrongIssuer, "audience": wrongAudience} {
		t.Run(name, func(t *testing.T) {
			raw := signWith(t, jwt.SigningMethodHS256, c, strongSecret)
			_, failure := f.codec.Decode(raw, f.manager)
			require.NotNil(t, failure)
			assert.Equal(t, token.KindIssuerAudienceMismatch, failure.Kind)
		})
	}
}

/*
TestCodec_RotationContinuity verifies that tokens signed before a rotation keep
verifying through the grace window, including tokens without a kid header.
*/
func TestCodec_RotationContinuity(t *testing.T) {
	f := newFixture(t)
	before, claims := f.issue(t, 48*time.Hour)
	withoutKID := signWith(t, jwt.SigningMethodHS256, claims, strongSecret)

	_, err := f.manager.Rotate(context.Background())
	require.NoError(t, err)

	_, failure := f.codec.Decode(before, f.manager)
	assert.Nil(t, failure)
	_, failure = f.codec.Decode(withoutKID, f.manager)
	assert.Nil(t, failure)

	after, _ := f.issue(t, 48*time.Hour)
	current, err := f.manager.Current()
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)

	// The post-rotation token does not verify against the old secret alone.
	oldOnly := staticKeys{secret.SigningSecret{Version: 1, Material: strongSecret}}
	_, failure = f.codec.Decode(after, oldOnly)
	require.NotNil(t, failure)
	assert.Equal(t, token.KindInvalidSignature, failure.Kind)

	f.now = f.now.Add(25 * time.Hour)
	_, failure = f.codec.Decode(before, f.manager)
	require.NotNil(t, failure)
	assert.Equal(t, token.KindInvalidSignature, failure.Kind)
}

type staticKeys []secret.SigningSecret

func (keys staticKeys) Lookup(version int) (secret.SigningSecret, bool) {
	for _, key := range keys {
		if key.Version == version {
			return key, true
		}
	}
	return secret.SigningSecret{}, false
}

func (keys staticKeys) VerificationSecrets() []secret.SigningSecret { return keys }
