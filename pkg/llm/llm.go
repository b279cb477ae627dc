// Package llm defines the boundary between validation and an LLM vendor:
// uploading documents into time-limited file handles and generating
// structured content against them.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyResponse is returned when the provider answers without any text.
	ErrEmptyResponse = errors.New("provider returned no content")
	// ErrBlocked is returned when the provider refuses to answer a prompt.
	ErrBlocked = errors.New("provider blocked the request")
	// ErrFileNotReady is returned when an uploaded file never becomes usable.
	ErrFileNotReady = errors.New("uploaded file not ready")
)

// FileHandle is a provider-side reference to an uploaded document. It stops
// being usable at ExpiresAt.
type FileHandle struct {
	URI       string    `json:"uri"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the handle is unusable at now. A zero ExpiresAt never expires.
func (h FileHandle) Expired(now time.Time) bool {
	return !h.ExpiresAt.IsZero() && !now.Before(h.ExpiresAt)
}

// Request is one generation call over a set of uploaded files.
type Request struct {
	Files             []FileHandle
	SystemInstruction string
	Prompt            string
	ResponseSchema    json.RawMessage
	GenerationConfig  json.RawMessage
}

// Usage reports token accounting for a call when the provider supplies it.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the text a provider generated for a Request.
type Response struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Provider uploads documents and generates content against them.
type Provider interface {
	Name() string
	Model() string
	Upload(ctx context.Context, name, mimeType string, data []byte) (FileHandle, error)
	Generate(ctx context.Context, req Request) (*Response, error)
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider http %d: %s", e.StatusCode, e.Body)
}

// HTTPStatusCode returns the response status.
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// RetryAfter returns the delay the provider asked for, or zero.
func (e *StatusError) RetryAfter() time.Duration {
	return e.Delay
}
