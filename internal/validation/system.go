// Package validation orchestrates validation sessions: it prepares the
// session's documents with the LLM provider, resolves requirements and
// prompts, runs paced and retried provider calls, and writes one result per
// requirement. A bounded runner executes sessions in the background.
package validation

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/internal/results"
	"github.com/JaimeStill/rtoval/internal/sessions"
	"github.com/JaimeStill/rtoval/pkg/lifecycle"
)

// System queues validation runs and serves revalidation.
type System interface {
	Handler() *Handler

	// Start launches the workers, the startup resume and the expiry sweeper.
	Start(lc *lifecycle.Coordinator) error

	// Validate queues a pending, processing or under_review session and
	// returns it as it was when queued.
	Validate(ctx context.Context, sessionID uuid.UUID) (*sessions.Session, error)

	// Revalidate re-runs one requirement synchronously. It is refused while
	// the session is queued or running.
	Revalidate(ctx context.Context, cmd RevalidateCommand) (*results.Result, error)

	// Active reports whether a session is queued or running.
	Active(sessionID uuid.UUID) bool
}
