// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package respond_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/rewards/internal/platform/apperr"
	"github.com/taibuivan/rewards/internal/platform/ctxutil"
	"github.com/taibuivan/rewards/internal/platform/respond"
)

/*
TestError verifies the error envelope and its headers.

Subtests:
  - an unknown error is masked as a 500
  - a missing credential gets a bare bearer challenge
  - a rejected token names its code in the challenge
  - a forbidden response carries no challenge
*/
func TestError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantStatus    int
		wantCode      string
		wantChallenge string
	}{
		{
			name:       "unknown error",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
		{
			name:          "missing credential",
			err:           apperr.Unauthorized("Authentication required"),
			wantStatus:    http.StatusUnauthorized,
			wantCode:      "UNAUTHORIZED",
			wantChallenge: `Bearer realm="rewards-api"`,
		},
		{
			name:          "expired token",
			err:           apperr.TokenRejected("TOKEN_EXPIRED", "Token has expired", nil),
			wantStatus:    http.StatusUnauthorized,
			wantCode:      "TOKEN_EXPIRED",
			wantChallenge: `Bearer realm="rewards-api", error="invalid_token", error_description="TOKEN_EXPIRED"`,
		},
		{
			name:       "forbidden",
			err:        apperr.Forbidden("Access denied"),
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			request = request.WithContext(ctxutil.WithRequestID(request.Context(), "req-1"))
			recorder := httptest.NewRecorder()

			respond.Error(recorder, request, tt.err)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			assert.Equal(t, tt.wantChallenge, recorder.Header().Get(respond.HeaderWWWAuthenticate))

			var body respond.ErrorEnvelope
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, "req-1", body.RequestID)
			assert.NotContains(t, body.Error, "connection refused")
		})
	}
}
