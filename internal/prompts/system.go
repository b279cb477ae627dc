package prompts

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/pkg/pagination"
)

// System defines the public contract for prompt domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Prompt], error)

	Find(ctx context.Context, id uuid.UUID) (*Prompt, error)

	// Create inserts the next version for the command's key. A default
	// command goes through the same path as SetDefault.
	Create(ctx context.Context, cmd CreateCommand) (*Prompt, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Prompt, error)
	Delete(ctx context.Context, id uuid.UUID) error

	Activate(ctx context.Context, id uuid.UUID) (*Prompt, error)
	// Deactivate also clears the default flag.
	Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error)

	// SetDefault makes id the single active default of its key, clearing the
	// flag on every other row of that key in the same transaction.
	SetDefault(ctx context.Context, id uuid.UUID) (*Prompt, error)

	// ResolveDefault returns the active default for key. It fails with
	// ErrNoDefault when none exists and ErrMultipleDefaults when the
	// single-default invariant has been broken.
	ResolveDefault(ctx context.Context, key Key) (*Prompt, error)
}
