// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/rewards/internal/auth/secret"
)

/* TestGenerate verifies generated secrets validate and are distinct. */
func TestGenerate(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"generate", "--count", "3"}, strings.NewReader(""), &out))

	lines := strings.Fields(out.String())
	require.Len(t, lines, 3)
	assert.NotEqual(t, lines[0], lines[1])

	for _, line := range lines {
		assert.True(t, secret.Validate([]byte(line), secret.DefaultMinLength).IsValid)
	}
}

/*
TestCheck verifies the exit behavior of the check subcommand.

Subtests:
  - a generated secret passes
  - a short secret exits 1 and reports its errors
  - stdin is read when no argument is given
*/
func TestCheck(t *testing.T) {
	strong, err := secret.GenerateMaterial()
	require.NoError(t, err)

	tests := []struct {
		name      string
		args      []string
		stdin     string
		wantValid bool
		wantCode  int
	}{
		{name: "strong argument", args: []string{"check", "--env", "SECRETCTL_UNSET", string(strong)}, wantValid: true},
		{name: "short argument", args: []string{"check", "--env", "SECRETCTL_UNSET", "abc"}, wantCode: 1},
		{name: "stdin", args: []string{"check", "--env", "SECRETCTL_UNSET"}, stdin: string(strong) + "\n", wantValid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(tt.args, strings.NewReader(tt.stdin), &out)

			var result secret.ValidationResult
			require.NoError(t, json.Unmarshal(out.Bytes(), &result))
			assert.Equal(t, tt.wantValid, result.IsValid)

			if tt.wantCode == 0 {
				assert.NoError(t, err)
				return
			}
			var coded *exitError
			require.ErrorAs(t, err, &coded)
			assert.Equal(t, tt.wantCode, coded.ExitCode())
		})
	}
}

/* TestRun_UnknownSubcommand verifies usage errors exit 2. */
func TestRun_UnknownSubcommand(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"rotate"}, strings.NewReader(""), &out)

	var coded *exitError
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, 2, coded.ExitCode())
	assert.Contains(t, out.String(), "Usage:")
}
