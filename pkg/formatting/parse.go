package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when model output cannot be decoded as JSON,
// whether bare, fenced in markdown, or embedded in surrounding prose.
var ErrParseFailed = errors.New("failed to parse response")

const maxErrorExcerpt = 200

var jsonBlockRegex = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

// Parse unmarshals model output into T. It tries, in order, the trimmed
// content, the first markdown code fence, and the widest span between a
// leading '{' or '[' and its closing counterpart.
func Parse[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	for _, candidate := range candidates(content) {
		if err := json.Unmarshal([]byte(candidate), &result); err == nil {
			return result, nil
		}
		var zero T
		result = zero
	}

	return result, fmt.Errorf("%w: %s", ErrParseFailed, Excerpt(content, maxErrorExcerpt))
}

// Excerpt shortens s to at most n runes, marking truncation with an ellipsis.
func Excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func candidates(content string) []string {
	if content == "" {
		return nil
	}

	out := []string{content}

	if m := jsonBlockRegex.FindStringSubmatch(content); len(m) >= 2 {
		out = append(out, strings.TrimSpace(m[1]))
	}

	if span, ok := embeddedSpan(content); ok {
		out = append(out, span)
	}

	return out
}

func embeddedSpan(content string) (string, bool) {
	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return "", false
	}

	closer := "}"
	if content[start] == '[' {
		closer = "]"
	}

	end := strings.LastIndex(content, closer)
	if end <= start {
		return "", false
	}

	return content[start : end+1], true
}
