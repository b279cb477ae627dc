package llm_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/JaimeStill/rtoval/pkg/llm"
	"github.com/JaimeStill/rtoval/pkg/retry"
)

func TestFileHandleExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"no expiry", time.Time{}, false},
		{"future", now.Add(47 * time.Hour), false},
		{"exactly now", now, true},
		{"past", now.Add(-time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := llm.FileHandle{URI: "files/abc", ExpiresAt: tt.expiresAt}
			if got := h.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"rate limited", &llm.StatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"unavailable", &llm.StatusError{StatusCode: http.StatusServiceUnavailable}, true},
		{"invalid argument", &llm.StatusError{StatusCode: http.StatusBadRequest}, false},
		{"permission denied", &llm.StatusError{StatusCode: http.StatusForbidden}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retry.IsTransient(tt.err); got != tt.transient {
				t.Errorf("IsTransient() = %v, want %v", got, tt.transient)
			}
		})
	}

	err := &llm.StatusError{StatusCode: 429, Delay: 7 * time.Second}
	if got := retry.RetryAfter(err); got != 7*time.Second {
		t.Errorf("RetryAfter() = %v, want 7s", got)
	}

	var se *llm.StatusError
	if !errors.As(error(err), &se) || se.HTTPStatusCode() != 429 {
		t.Error("StatusError should be recoverable with errors.As")
	}
}
