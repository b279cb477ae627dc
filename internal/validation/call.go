package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JaimeStill/rtoval/pkg/llm"
	"github.com/JaimeStill/rtoval/pkg/retry"
)

// generate paces and sends one provider call under the retry policy. Every
// attempt waits on the shared pacer; a rate-limited attempt also pushes the
// pacer back so other sessions slow down with it.
func generate(ctx context.Context, rt *Runtime, req llm.Request) (*llm.Response, error) {
	resp, err := retry.DoValue(ctx, rt.Retry, func(ctx context.Context) (*llm.Response, error) {
		if err := rt.Pacer.Wait(ctx); err != nil {
			return nil, err
		}
		return rt.Provider.Generate(ctx, req)
	}, func(attempt int, delay time.Duration, err error) {
		if retry.IsRateLimited(err) {
			rt.Pacer.Backoff(delay)
		}
		rt.Logger.WarnContext(ctx, "provider call retry",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	})

	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, retry.ErrExhausted) {
		return nil, fmt.Errorf("%w: %w: %w", ErrRequirementFailed, ErrTransient, err)
	}
	return nil, fmt.Errorf("%w: %w", ErrRequirementFailed, err)
}

// failureReason trims the taxonomy prefix from a requirement failure so the
// stored reason names the underlying cause.
func failureReason(err error) string {
	return strings.TrimPrefix(err.Error(), ErrRequirementFailed.Error()+": ")
}
