package sessions

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/pkg/pagination"
)

// System defines the contract for validation session management.
// Every state change goes through a guarded transition; callers never write
// the state column directly.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Session], error)
	Find(ctx context.Context, id uuid.UUID) (*Session, error)
	ListByState(ctx context.Context, states ...State) ([]Session, error)
	Create(ctx context.Context, cmd CreateCommand) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// BeginProcessing moves pending to processing.
	BeginProcessing(ctx context.Context, id uuid.UUID) (*Session, error)
	// BeginReview moves processing to under_review and fixes the
	// requirement total the first time it is set.
	BeginReview(ctx context.Context, id uuid.UUID, total int) (*Session, error)
	// Finalise moves under_review to finalised once every requirement has a result.
	Finalise(ctx context.Context, id uuid.UUID) (*Session, error)
	// Fail moves any non-terminal session to error with a reason.
	Fail(ctx context.Context, id uuid.UUID, reason string) (*Session, error)
	// Retry moves error back to pending so the session can run again.
	Retry(ctx context.Context, id uuid.UUID) (*Session, error)
}
