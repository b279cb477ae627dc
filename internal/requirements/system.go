package requirements

import (
	"context"

	"github.com/JaimeStill/rtoval/pkg/pagination"
)

// System defines the public contract for requirement domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Requirement], error)

	// Resolve returns the unit's database requirements ordered by type and
	// number, followed by both fixed sets when q.IncludeFixed is set.
	Resolve(ctx context.Context, q Query) ([]Requirement, error)

	// Count returns the number of database-backed requirements for a unit.
	Count(ctx context.Context, unitCode string) (int, error)

	Import(ctx context.Context, cmd ImportCommand) (*ImportResult, error)
}
