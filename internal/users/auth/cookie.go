// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/taibuivan/rewards/internal/auth/tokencrypt"
	"github.com/taibuivan/rewards/internal/platform/constants"
)

// CookieJar writes and reads the encrypted refresh token cookie.
type CookieJar struct {
	cipher *tokencrypt.Cipher
	secure bool
}

// NewCookieJar binds the envelope cipher. secure is false only for plain
// HTTP development servers.
func NewCookieJar(cipher *tokencrypt.Cipher, secure bool) *CookieJar {
	return &CookieJar{cipher: cipher, secure: secure}
}

// SetRefresh seals refreshToken and sets it as an HttpOnly cookie scoped to
// the auth routes.
func (jar *CookieJar) SetRefresh(writer http.ResponseWriter, refreshToken string, expiresAt time.Time) error {
	envelope, err := jar.cipher.Seal([]byte(refreshToken))
	if err != nil {
		return fmt.Errorf("auth_cookie_seal_failed: %w", err)
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    envelope,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  expiresAt,
		Secure:   jar.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

/*
Refresh returns the refresh token from the cookie.

Returns:
  - string: the plaintext token, or "" when no cookie was sent
  - error: tokencrypt.ErrDecryption for a cookie that does not open
*/
func (jar *CookieJar) Refresh(request *http.Request) (string, error) {
	cookie, err := request.Cookie(constants.RefreshTokenCookieName)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && cookie.Value == "") {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	plaintext, err := jar.cipher.Open(cookie.Value)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Clear expires both token cookies.
func (jar *CookieJar) Clear(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		Secure:   jar.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.AccessTokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   jar.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
