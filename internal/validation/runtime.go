package validation

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/rtoval/internal/config"
	"github.com/JaimeStill/rtoval/internal/documents"
	"github.com/JaimeStill/rtoval/internal/prompts"
	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/internal/results"
	"github.com/JaimeStill/rtoval/internal/sessions"
	"github.com/JaimeStill/rtoval/pkg/llm"
	"github.com/JaimeStill/rtoval/pkg/ratelimit"
	"github.com/JaimeStill/rtoval/pkg/retry"
)

// SessionStore is the part of sessions.System the orchestrator drives.
type SessionStore interface {
	Find(ctx context.Context, id uuid.UUID) (*sessions.Session, error)
	ListByState(ctx context.Context, states ...sessions.State) ([]sessions.Session, error)
	BeginProcessing(ctx context.Context, id uuid.UUID) (*sessions.Session, error)
	BeginReview(ctx context.Context, id uuid.UUID, total int) (*sessions.Session, error)
	Finalise(ctx context.Context, id uuid.UUID) (*sessions.Session, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) (*sessions.Session, error)
}

// DocumentStore is the part of documents.System the orchestrator reads and
// annotates with provider handles.
type DocumentStore interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]documents.Document, error)
	Open(ctx context.Context, id uuid.UUID) (*documents.Document, io.ReadCloser, error)
	AttachHandle(ctx context.Context, id, sessionID uuid.UUID, handle llm.FileHandle) (*documents.Document, error)
}

// RequirementStore resolves the requirements a session validates.
type RequirementStore interface {
	Resolve(ctx context.Context, q requirements.Query) ([]requirements.Requirement, error)
}

// PromptStore resolves the default prompt for a key.
type PromptStore interface {
	ResolveDefault(ctx context.Context, key prompts.Key) (*prompts.Prompt, error)
}

// ResultStore reads and writes session results.
type ResultStore interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]results.Result, error)
	FindByKey(ctx context.Context, sessionID uuid.UUID, key results.Key) (*results.Result, error)
	Upsert(ctx context.Context, cmd results.UpsertCommand) (*results.Result, error)
}

// Runtime bundles the dependencies a validation run requires. It is
// constructed by composition code from infrastructure and domain systems.
type Runtime struct {
	Provider     llm.Provider
	Pacer        *ratelimit.Pacer
	Retry        retry.Policy
	Tracer       trace.Tracer
	Sessions     SessionStore
	Documents    DocumentStore
	Requirements RequirementStore
	Prompts      PromptStore
	Results      ResultStore
	Config       config.ValidationConfig
	Logger       *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// RetryPolicy builds the provider retry policy from validation config.
func RetryPolicy(cfg config.ValidationConfig) retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = cfg.MaxAttempts
	if d := cfg.BaseDelayDuration(); d > 0 {
		p.BaseDelay = d
	}
	if d := cfg.MaxDelayDuration(); d > 0 {
		p.MaxDelay = d
	}
	return p
}

func (rt *Runtime) now() time.Time {
	if rt.Now != nil {
		return rt.Now()
	}
	return time.Now()
}
