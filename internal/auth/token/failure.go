// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package token

import "fmt"

// Kind names one expected verification outcome.
type Kind int

const (
	KindMalformed Kind = iota + 1
	KindInvalidSignature
	KindExpired
	KindIssuerAudienceMismatch
	KindRevoked
	KindUserNotFound
	KindUserBanned
)

// Code returns the machine-readable reason sent to clients.
func (k Kind) Code() string {
	switch k {
	case KindMalformed:
		return "TOKEN_MALFORMED"
	case KindInvalidSignature:
		return "TOKEN_INVALID_SIGNATURE"
	case KindExpired:
		return "TOKEN_EXPIRED"
	case KindIssuerAudienceMismatch:
		return "TOKEN_ISSUER_AUDIENCE_MISMATCH"
	case KindRevoked:
		return "TOKEN_REVOKED"
	case KindUserNotFound:
		return "USER_NOT_FOUND"
	case KindUserBanned:
		return "USER_BANNED"
	default:
		return "TOKEN_INVALID"
	}
}

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed_token"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindExpired:
		return "expired"
	case KindIssuerAudienceMismatch:
		return "issuer_audience_mismatch"
	case KindRevoked:
		return "revoked"
	case KindUserNotFound:
		return "user_not_found"
	case KindUserBanned:
		return "user_banned"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Failure is an expected negative verification result. It is returned as a
// value, never as a panic, and callers switch on Kind.
type Failure struct {
	Kind   Kind
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	message := "token: " + f.Kind.String()
	if f.Detail != "" {
		message += ": " + f.Detail
	}
	if f.Err != nil {
		message += ": " + f.Err.Error()
	}
	return message
}

func (f *Failure) Unwrap() error { return f.Err }

// Code is shorthand for f.Kind.Code().
func (f *Failure) Code() string { return f.Kind.Code() }

// Fail builds a Failure without a cause.
func Fail(kind Kind, detail string) *Failure {
	return &Failure{Kind: kind, Detail: detail}
}
