package results

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/pkg/pagination"
)

// System defines the contract for validation result storage.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Result], error)
	Find(ctx context.Context, id uuid.UUID) (*Result, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Result, error)
	FindByKey(ctx context.Context, sessionID uuid.UUID, key Key) (*Result, error)

	// Upsert writes the row for the command's requirement and recounts
	// session progress in the same transaction. The session must exist and
	// be under review or finalised.
	Upsert(ctx context.Context, cmd UpsertCommand) (*Result, error)

	Summary(ctx context.Context, sessionID uuid.UUID) (*Summary, error)
}
