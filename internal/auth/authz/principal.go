// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package authz

import (
	"context"
	"time"
)

// Status is the account standing carried by a principal.
type Status string

const (
	StatusActive     Status = "active"
	StatusBanned     Status = "banned"
	StatusRestricted Status = "restricted"
)

// Principal is the identity reconstructed from a verified token. It lives for
// one request and is never persisted.
type Principal struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	TokenID   string    `json:"-"`
	Status    Status    `json:"status"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsAdmin reports whether the principal bypasses relationship checks.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// # Request Metadata

// RequestMeta is copied into every audit record.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type requestMetaKey struct{}

// WithRequestMeta attaches request metadata to ctx.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom returns the metadata attached to ctx, or the zero value.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	if ctx == nil {
		return RequestMeta{}
	}
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}
