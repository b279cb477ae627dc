// Package gemini implements llm.Provider over the Gemini REST API: documents
// go through the resumable File API, generation through generateContent with
// a JSON response schema.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/rtoval/pkg/llm"
	"github.com/JaimeStill/rtoval/pkg/retry"
)

const (
	fileActive = "ACTIVE"
	fileFailed = "FAILED"
)

// Client is a Gemini llm.Provider.
type Client struct {
	http    *http.Client
	cfg     Config
	logger  *slog.Logger
	nowFunc func() time.Time
}

// New creates a Gemini client from a finalized Config.
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.TimeoutDuration()},
		cfg:     cfg,
		logger:  logger.With("system", "llm", "provider", "gemini"),
		nowFunc: time.Now,
	}
}

func (c *Client) Name() string  { return "gemini" }
func (c *Client) Model() string { return c.cfg.Model }

type file struct {
	Name           string `json:"name"`
	URI            string `json:"uri"`
	MimeType       string `json:"mimeType"`
	State          string `json:"state"`
	ExpirationTime string `json:"expirationTime"`
}

func (c *Client) Upload(ctx context.Context, name, mimeType string, data []byte) (llm.FileHandle, error) {
	uploadURL, err := c.startUpload(ctx, name, mimeType, len(data))
	if err != nil {
		return llm.FileHandle{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return llm.FileHandle{}, err
	}
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	var out struct {
		File file `json:"file"`
	}
	if _, err := c.send(req, &out); err != nil {
		return llm.FileHandle{}, fmt.Errorf("upload %s: %w", name, err)
	}

	f, err := c.waitActive(ctx, out.File)
	if err != nil {
		return llm.FileHandle{}, err
	}

	c.logger.Info("file uploaded", "name", name, "file", f.Name, "bytes", len(data))
	return c.handle(f, mimeType), nil
}

func (c *Client) startUpload(ctx context.Context, name, mimeType string, size int) (string, error) {
	meta, err := json.Marshal(map[string]any{"file": map[string]string{"display_name": name}})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/upload/v1beta/files", bytes.NewReader(meta))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(size))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := c.send(req, nil)
	if err != nil {
		return "", fmt.Errorf("start upload %s: %w", name, err)
	}

	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return "", fmt.Errorf("start upload %s: missing upload url", name)
	}
	return uploadURL, nil
}

func (c *Client) waitActive(ctx context.Context, f file) (file, error) {
	if f.State == "" || f.State == fileActive {
		return f, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeoutDuration())
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollIntervalDuration())
	defer ticker.Stop()

	for {
		switch f.State {
		case fileActive:
			return f, nil
		case fileFailed:
			return f, fmt.Errorf("%w: %s processing failed", llm.ErrFileNotReady, f.Name)
		}

		select {
		case <-ctx.Done():
			return f, fmt.Errorf("%w: %s still %s: %w", llm.ErrFileNotReady, f.Name, f.State, ctx.Err())
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1beta/"+f.Name, nil)
		if err != nil {
			return f, err
		}
		if _, err := c.send(req, &f); err != nil {
			return f, fmt.Errorf("poll %s: %w", f.Name, err)
		}
	}
}

func (c *Client) handle(f file, mimeType string) llm.FileHandle {
	h := llm.FileHandle{
		URI:      f.URI,
		Name:     f.Name,
		MimeType: f.MimeType,
	}
	if h.MimeType == "" {
		h.MimeType = mimeType
	}
	if t, err := time.Parse(time.RFC3339Nano, f.ExpirationTime); err == nil {
		h.ExpiresAt = t
	} else {
		h.ExpiresAt = c.nowFunc().Add(c.cfg.FileTTLDuration())
	}
	return h
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"fileData,omitempty"`
}

type fileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *content       `json:"systemInstruction,omitempty"`
	Contents          []content      `json:"contents"`
	GenerationConfig  map[string]any `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

func (c *Client) Generate(ctx context.Context, r llm.Request) (*llm.Response, error) {
	body, err := c.buildRequest(r)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out generateResponse
	if _, err := c.send(req, &out); err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	if out.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", llm.ErrBlocked, out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return nil, llm.ErrEmptyResponse
	}

	cand := out.Candidates[0]
	var text strings.Builder
	for _, p := range cand.Content.Parts {
		text.WriteString(p.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, fmt.Errorf("%w (finish reason %s)", llm.ErrEmptyResponse, cand.FinishReason)
	}

	model := out.ModelVersion
	if model == "" {
		model = c.cfg.Model
	}

	return &llm.Response{
		Text:         text.String(),
		Model:        model,
		FinishReason: cand.FinishReason,
		Usage: llm.Usage{
			PromptTokens: out.UsageMetadata.PromptTokenCount,
			OutputTokens: out.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

func (c *Client) buildRequest(r llm.Request) (*generateRequest, error) {
	parts := make([]part, 0, len(r.Files)+1)
	for _, f := range r.Files {
		parts = append(parts, part{FileData: &fileData{MimeType: f.MimeType, FileURI: f.URI}})
	}
	parts = append(parts, part{Text: r.Prompt})

	gen := map[string]any{}
	if len(r.GenerationConfig) > 0 {
		if err := json.Unmarshal(r.GenerationConfig, &gen); err != nil {
			return nil, fmt.Errorf("generation config: %w", err)
		}
	}
	if len(r.ResponseSchema) > 0 {
		gen["responseMimeType"] = "application/json"
		gen["responseSchema"] = r.ResponseSchema
	}

	req := &generateRequest{
		Contents:         []content{{Role: "user", Parts: parts}},
		GenerationConfig: gen,
	}
	if r.SystemInstruction != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: r.SystemInstruction}}}
	}
	if len(gen) == 0 {
		req.GenerationConfig = nil
	}
	return req, nil
}

// send performs req with the API key attached, decoding a 2xx JSON body into
// out when out is non-nil. Non-2xx responses become *llm.StatusError.
func (c *Client) send(req *http.Request, out any) (*http.Response, error) {
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, &llm.StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			Delay:      retry.ParseRetryAfter(resp.Header, c.nowFunc()),
		}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, nil
}
