// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/rewards/internal/api"
)

type readinessBody struct {
	Data struct {
		Status string `json:"status"`
		Checks []struct {
			Name  string `json:"name"`
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		} `json:"checks"`
	} `json:"data"`
}

func healthy(context.Context) error { return nil }

/*
TestReadiness verifies the aggregate status across dependency checks.

Subtests:
  - every check healthy answers 200 ready
  - a weak signing secret alone degrades the service
  - a nil checker is skipped
*/
func TestReadiness(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		deps       api.HealthDependencies
		wantStatus int
		wantState  string
		wantChecks int
	}{
		{
			name:       "all healthy",
			deps:       api.HealthDependencies{CheckDatabase: healthy, CheckCache: healthy, CheckSecret: healthy},
			wantStatus: http.StatusOK,
			wantState:  "ready",
			wantChecks: 3,
		},
		{
			name: "weak secret",
			deps: api.HealthDependencies{
				CheckDatabase: healthy,
				CheckSecret:   func(context.Context) error { return errors.New("secret_too_short") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "degraded",
			wantChecks: 2,
		},
		{
			name:       "memory revocation list",
			deps:       api.HealthDependencies{CheckDatabase: healthy},
			wantStatus: http.StatusOK,
			wantState:  "ready",
			wantChecks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, readiness := api.NewHealthHandlers(tt.deps, logger)

			recorder := httptest.NewRecorder()
			readiness(recorder, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, recorder.Code)

			var body readinessBody
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
			assert.Equal(t, tt.wantState, body.Data.Status)
			assert.Len(t, body.Data.Checks, tt.wantChecks)
		})
	}
}

/* TestReadiness_ProbeDeadline verifies each probe runs under its own deadline. */
func TestReadiness_ProbeDeadline(t *testing.T) {
	var hadDeadline bool
	_, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			_, hadDeadline = ctx.Deadline()
			return nil
		},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	readiness(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.True(t, hadDeadline)
}

/* TestLiveness verifies the liveness probe never consults dependencies. */
func TestLiveness(t *testing.T) {
	liveness, _ := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(context.Context) error { return errors.New("down") },
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	recorder := httptest.NewRecorder()
	liveness(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"status":"ok"`)
}
