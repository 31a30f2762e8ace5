package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorMapsKindsToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid", Invalid("GROUP_FULL", "Group is full"), http.StatusBadRequest, "GROUP_FULL"},
		{"unauthorized", Unauthorized(CodeUnauthorized, "missing token"), http.StatusUnauthorized, CodeUnauthorized},
		{"forbidden", Forbidden(CodeForbidden, "owner only"), http.StatusForbidden, CodeForbidden},
		{"not found", NotFound("GROUP_NOT_FOUND", "Group not found"), http.StatusNotFound, "GROUP_NOT_FOUND"},
		{"conflict", Conflict("ALREADY_VOTED", "voted"), http.StatusConflict, "ALREADY_VOTED"},
		{"rate limited", RateLimited("slow down"), http.StatusTooManyRequests, CodeRateLimitExceeded},
		{"unavailable", Unavailable("TALABAT_NOT_CONFIGURED", "off"), http.StatusServiceUnavailable, "TALABAT_NOT_CONFIGURED"},
		{"wrapped", fmt.Errorf("join: %w", Invalid("GROUP_CLOSED", "Group is closed")), http.StatusBadRequest, "GROUP_CLOSED"},
		{"plain", errors.New("db down"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var resp APIResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotContains(t, rec.Body.String(), "db down")
		})
	}
}

func TestAppErrorIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Invalid("GROUP_FULL", "Group is full"))
	assert.True(t, errors.Is(err, Invalid("GROUP_FULL", "")))
	assert.False(t, errors.Is(err, Invalid("GROUP_CLOSED", "")))
	assert.Equal(t, "GROUP_FULL", CodeOf(err))
	assert.Equal(t, "", CodeOf(errors.New("x")))
}

func TestDecodeJSONRejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	var body struct{ Name string }
	err := DecodeJSON(req, &body)
	assert.Equal(t, CodeInvalidInput, CodeOf(err))
}

func TestGenerateJoinCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := GenerateJoinCode()
		require.NoError(t, err)
		assert.True(t, IsValidJoinCodeFormat(code), code)
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "I")
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "1")
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestIsValidJoinCodeFormat(t *testing.T) {
	assert.True(t, IsValidJoinCodeFormat("ABCD-2345"))
	assert.False(t, IsValidJoinCodeFormat("abcd-2345"))
	assert.False(t, IsValidJoinCodeFormat("ABCD2345"))
	assert.False(t, IsValidJoinCodeFormat("ABCD-23456"))
}

func TestDateHelpers(t *testing.T) {
	loc := time.FixedZone("AST", 3*3600)
	ts := time.Date(2026, 3, 1, 22, 30, 5, 0, time.UTC)

	assert.Equal(t, "2026-03-02", DateKey(ts, loc))
	assert.Equal(t, "01:30:05", TimeOfDay(ts, loc))

	d, err := ParseDateKey("2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", d)

	_, err = ParseDateKey("03/02/2026")
	assert.Equal(t, CodeInvalidInput, CodeOf(err))

	assert.True(t, ValidTimeOfDay("09:00:00"))
	assert.False(t, ValidTimeOfDay("9am"))
	assert.False(t, ValidTimeOfDay("9:00:00"))
}

func TestNormalizeTimeOfDay(t *testing.T) {
	cases := map[string]string{
		"9:00:00":   "09:00:00",
		"09:30":     "09:30:00",
		" 11:00:00": "11:00:00",
		"23:59:59":  "23:59:59",
	}
	for in, want := range cases {
		got, ok := NormalizeTimeOfDay(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "nine", "25:00:00", "9am"} {
		_, ok := NormalizeTimeOfDay(bad)
		assert.False(t, ok, bad)
	}
}
