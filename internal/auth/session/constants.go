// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import "time"

// # Session Lifetimes

const (
	// DefaultAccessTTL is how long an access token stays valid.
	DefaultAccessTTL = 15 * time.Minute

	// DefaultRefreshTTL is how long a refresh token stays valid. Bare jti
	// revocations use it as their expiry, and it bounds the secret grace window.
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// # Revocation Reasons

const (
	ReasonLogout      = "logout"
	ReasonRotated     = "rotated"
	ReasonCompromised = "compromised"
	ReasonAdmin       = "admin"
)
