// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # Field Identifiers

// Field names for validation and response payloads in the authentication domain.
const (
	FieldEmail        = "email"
	FieldPassword     = "password"
	FieldRefreshToken = "refresh_token"
	FieldToken        = "token"
	FieldReason       = "reason"
	FieldRotated      = "rotated"
)

// MaxEmailLength bounds the login email before any lookup.
const MaxEmailLength = 254

// msgInvalidCredentials is shared by every login failure that must not
// reveal whether the account exists.
const msgInvalidCredentials = "Invalid email or password"
