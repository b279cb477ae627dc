package requirements

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JaimeStill/rtoval/pkg/pagination"
	"github.com/JaimeStill/rtoval/pkg/query"
	"github.com/JaimeStill/rtoval/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a requirement repository implementing the System interface.
func New(
	db *sql.DB,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "requirements"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Requirement], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Text", "ElementName")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.QueryValue[int](ctx, r.db, countSQL, countArgs...)
	if err != nil {
		return nil, fmt.Errorf("count requirements: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	reqs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRequirement)
	if err != nil {
		return nil, fmt.Errorf("query requirements: %w", err)
	}

	result := pagination.NewPageResult(reqs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Resolve(ctx context.Context, q Query) ([]Requirement, error) {
	unit := strings.TrimSpace(q.UnitCode)
	if unit == "" {
		return nil, ErrUnitRequired
	}
	if q.DocumentType != "" {
		if _, err := ParseDocumentType(string(q.DocumentType)); err != nil {
			return nil, err
		}
	}

	sqlText, args := query.NewBuilder(projection).WhereEquals("UnitCode", unit).Build()
	reqs, err := repository.QueryMany(ctx, r.db, sqlText, args, scanRequirement)
	if err != nil {
		return nil, fmt.Errorf("query requirements for %s: %w", unit, err)
	}

	return Assemble(unit, reqs, q.IncludeFixed)
}

func (r *repo) Count(ctx context.Context, unitCode string) (int, error) {
	unit := strings.TrimSpace(unitCode)
	if unit == "" {
		return 0, ErrUnitRequired
	}

	n, err := repository.QueryValue[int](
		ctx, r.db,
		"SELECT COUNT(*) FROM requirements WHERE unit_code = $1",
		unit,
	)
	if err != nil {
		return 0, fmt.Errorf("count requirements for %s: %w", unit, err)
	}
	return n, nil
}

func (r *repo) Import(ctx context.Context, cmd ImportCommand) (*ImportResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	unit := strings.TrimSpace(cmd.UnitCode)

	insert := `
		INSERT INTO requirements(unit_code, type, number, text, element_number, element_name)
		VALUES ($1, $2, $3, $4, $5, $6)`

	res, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (ImportResult, error) {
		removed, err := repository.ExecCount(ctx, tx, "DELETE FROM requirements WHERE unit_code = $1", unit)
		if err != nil {
			return ImportResult{}, fmt.Errorf("clear requirements: %w", err)
		}

		for _, it := range cmd.Items {
			if _, err := tx.ExecContext(
				ctx, insert,
				unit, it.Type, strings.TrimSpace(it.Number), strings.TrimSpace(it.Text),
				it.ElementNumber, it.ElementName,
			); err != nil {
				return ImportResult{}, fmt.Errorf("insert %s %s: %w", it.Type, it.Number, err)
			}
		}

		return ImportResult{UnitCode: unit, Removed: int(removed), Inserted: len(cmd.Items)}, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("requirements imported", "unit_code", unit, "removed", res.Removed, "inserted", res.Inserted)
	return &res, nil
}

// Assemble orders a unit's database rows and appends the fixed sets when
// includeFixed is set.
func Assemble(unit string, reqs []Requirement, includeFixed bool) ([]Requirement, error) {
	if len(reqs) == 0 && !includeFixed {
		// Unreachable from validation, which always includes the fixed sets.
		return nil, fmt.Errorf("%w: unit %s", ErrNotFound, unit)
	}

	Sort(reqs)
	if includeFixed {
		reqs = append(reqs, Fixed(AssessmentConditions, unit)...)
		reqs = append(reqs, Fixed(AssessmentInstructions, unit)...)
	}
	return reqs, nil
}
