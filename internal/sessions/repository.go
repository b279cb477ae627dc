package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/pkg/events"
	"github.com/JaimeStill/rtoval/pkg/pagination"
	"github.com/JaimeStill/rtoval/pkg/query"
	"github.com/JaimeStill/rtoval/pkg/repository"
	"github.com/JaimeStill/rtoval/pkg/storage"
)

type repo struct {
	db         *sql.DB
	storage    storage.System
	events     events.Publisher
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a session repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	publisher events.Publisher,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		events:     publisher,
		logger:     logger.With("system", "sessions"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.events, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Session], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "UnitCode", "RTOCode")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.QueryValue[int](ctx, r.db, countSQL, countArgs...)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	sessions, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanSession)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	result := pagination.NewPageResult(sessions, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Session, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	s, err := repository.QueryOne(ctx, r.db, q, args, scanSession)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &s, nil
}

func (r *repo) ListByState(ctx context.Context, states ...State) ([]Session, error) {
	values := make([]any, len(states))
	for i, s := range states {
		values[i] = s
	}

	q, args := query.
		NewBuilder(projection, query.SortField{Field: "CreatedAt"}).
		WhereIn("State", values).
		Build()

	sessions, err := repository.QueryMany(ctx, r.db, q, args, scanSession)
	if err != nil {
		return nil, fmt.Errorf("query sessions by state: %w", err)
	}
	return sessions, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Session, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	q := `
		INSERT INTO validation_detail(unit_code, rto_code, document_type, state)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + returning

	args := []any{cmd.UnitCode, cmd.RTOCode, cmd.DocumentType, StatePending}

	s, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Session, error) {
		return repository.QueryOne(ctx, tx, q, args, scanSession)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("session created",
		"id", s.ID,
		"unit_code", s.UnitCode,
		"rto_code", s.RTOCode,
		"document_type", s.DocumentType,
	)
	r.publish(ctx, &s)
	return &s, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM validation_detail WHERE id = $1 AND state <> $2",
			id, StateProcessing,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, findErr := r.Find(ctx, id); findErr != nil {
				return findErr
			}
			return fmt.Errorf("%w: cannot delete a processing session", ErrInvalidTransition)
		}
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	n, err := r.storage.DeletePrefix(ctx, storage.SessionPrefix(id.String()))
	if err != nil {
		r.logger.Warn("session blobs not removed", "id", id, "error", err)
	}

	r.logger.Info("session deleted", "id", id, "blobs", n)
	return nil
}

func (r *repo) BeginProcessing(ctx context.Context, id uuid.UUID) (*Session, error) {
	return r.transition(ctx, id, StateProcessing, "", "")
}

func (r *repo) BeginReview(ctx context.Context, id uuid.UUID, total int) (*Session, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: requirement total must be positive", ErrInvalidTransition)
	}
	return r.transition(
		ctx, id, StateUnderReview,
		"result_total = CASE WHEN result_total = 0 THEN $4 ELSE result_total END", "",
		total,
	)
}

func (r *repo) Finalise(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, err := r.transition(
		ctx, id, StateFinalised,
		"completed_at = NOW()",
		"result_total > 0 AND result_count = result_total",
	)
	if errors.Is(err, errGuard) {
		return nil, fmt.Errorf("%w: %d of %d requirements", ErrIncomplete, s.ResultCount, s.ResultTotal)
	}
	return s, err
}

func (r *repo) Fail(ctx context.Context, id uuid.UUID, reason string) (*Session, error) {
	s, err := r.transition(
		ctx, id, StateError,
		"error_reason = $4, completed_at = NOW()", "",
		reason,
	)
	if err == nil {
		r.logger.Warn("session failed", "id", id, "reason", reason)
	}
	return s, err
}

func (r *repo) Retry(ctx context.Context, id uuid.UUID) (*Session, error) {
	return r.transition(ctx, id, StatePending, "error_reason = NULL, completed_at = NULL", "")
}

var errGuard = errors.New("transition guard not satisfied")

// transition performs a compare-and-set on the state column. Only rows
// whose current state is a valid source for to are updated. set adds columns
// to the SET list and may reference $4 onwards through extra; guard adds a
// condition that must also hold. When no row changes, the current session is
// reloaded to tell a missing session from a disallowed transition; a failed
// guard returns errGuard alongside the current session.
func (r *repo) transition(
	ctx context.Context,
	id uuid.UUID,
	to State,
	set, guard string,
	extra ...any,
) (*Session, error) {
	sets := "state = $1, updated_at = NOW()"
	if set != "" {
		sets += ", " + set
	}
	where := "id = $2 AND state = ANY($3)"
	if guard != "" {
		where += " AND " + guard
	}

	q := "UPDATE validation_detail SET " + sets + " WHERE " + where + " RETURNING " + returning
	args := append([]any{to, id, stateStrings(Sources(to))}, extra...)

	s, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Session, error) {
		return repository.QueryOne(ctx, tx, q, args, scanSession)
	})

	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transition session to %s: %w", to, err)
		}

		current, findErr := r.Find(ctx, id)
		if findErr != nil {
			return nil, findErr
		}
		if CanTransition(current.State, to) {
			return current, errGuard
		}
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.State, to)
	}

	r.logger.Info("session transitioned", "id", s.ID, "state", s.State)
	r.publish(ctx, &s)
	return &s, nil
}

func (r *repo) publish(ctx context.Context, s *Session) {
	if r.events == nil {
		return
	}
	var message string
	if s.ErrorReason != nil {
		message = *s.ErrorReason
	}
	err := r.events.Publish(ctx, events.Event{
		Type:            events.TypeState,
		SessionID:       s.ID.String(),
		State:           string(s.State),
		ResultCount:     s.ResultCount,
		ResultTotal:     s.ResultTotal,
		ProgressPercent: s.ProgressPercent,
		Message:         message,
	})
	if err != nil {
		r.logger.Warn("publish session event failed", "id", s.ID, "error", err)
	}
}
