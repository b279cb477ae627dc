package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/internal/sessions"
	"github.com/JaimeStill/rtoval/pkg/events"
	"github.com/JaimeStill/rtoval/pkg/pagination"
	"github.com/JaimeStill/rtoval/pkg/query"
	"github.com/JaimeStill/rtoval/pkg/repository"
)

type repo struct {
	db         *sql.DB
	events     events.Publisher
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a result repository implementing the System interface.
func New(
	db *sql.DB,
	publisher events.Publisher,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		events:     publisher,
		logger:     logger.With("system", "results"),
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
) (*pagination.PageResult[Result], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "RequirementNumber", "RequirementText", "Reasoning")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.QueryValue[int](ctx, r.db, countSQL, countArgs...)
	if err != nil {
		return nil, fmt.Errorf("count results: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	rows, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanResult)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}

	result := pagination.NewPageResult(rows, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Result, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	res, err := repository.QueryOne(ctx, r.db, q, args, scanResult)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &res, nil
}

func (r *repo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Result, error) {
	q, args := query.
		NewBuilder(projection, query.SortField{Field: "CreatedAt"}).
		WhereEquals("SessionID", sessionID).
		Build()

	rows, err := repository.QueryMany(ctx, r.db, q, args, scanResult)
	if err != nil {
		return nil, fmt.Errorf("query session results: %w", err)
	}
	requirementsOrder(rows)
	return rows, nil
}

func (r *repo) FindByKey(ctx context.Context, sessionID uuid.UUID, key Key) (*Result, error) {
	q, args := query.
		NewBuilder(projection).
		WhereEquals("SessionID", sessionID).
		WhereEquals("RequirementType", key.Type).
		WhereEquals("RequirementNumber", key.Number).
		BuildSingleOrNull()

	res, err := repository.QueryOne(ctx, r.db, q, args, scanResult)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &res, nil
}

func (r *repo) Upsert(ctx context.Context, cmd UpsertCommand) (*Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	citations, err := json.Marshal(cmd.Verdict.Citations)
	if err != nil {
		return nil, fmt.Errorf("encode citations: %w", err)
	}

	q := `
		INSERT INTO validation_results(session_id, requirement_id, requirement_type,
			requirement_number, requirement_text, status, reasoning, mapped_content,
			citations, smart_question, benchmark_answer, failed, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (session_id, requirement_type, requirement_number) DO UPDATE
		SET requirement_id = EXCLUDED.requirement_id,
			requirement_text = EXCLUDED.requirement_text,
			status = EXCLUDED.status,
			reasoning = EXCLUDED.reasoning,
			mapped_content = EXCLUDED.mapped_content,
			citations = EXCLUDED.citations,
			smart_question = EXCLUDED.smart_question,
			benchmark_answer = EXCLUDED.benchmark_answer,
			failed = EXCLUDED.failed,
			error = EXCLUDED.error,
			updated_at = NOW()
		RETURNING ` + returning

	req := cmd.Requirement
	v := cmd.Verdict
	args := []any{
		cmd.SessionID, req.ID, req.Type, req.Number, req.Text, v.Status,
		v.Reasoning, v.MappedContent, string(citations), v.SmartQuestion,
		v.BenchmarkAnswer, cmd.Failed, cmd.Error,
	}

	type written struct {
		result  Result
		session *sessions.Session
	}

	w, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (written, error) {
		state, err := sessions.LockState(ctx, tx, cmd.SessionID)
		if err != nil {
			if errors.Is(err, sessions.ErrNotFound) {
				return written{}, fmt.Errorf("%w: %s", ErrSessionNotFound, cmd.SessionID)
			}
			return written{}, err
		}
		if !state.AcceptsResults() {
			return written{}, fmt.Errorf("%w: session %s is %s", ErrSessionNotWritable, cmd.SessionID, state)
		}

		res, err := repository.QueryOne(ctx, tx, q, args, scanResult)
		if err != nil {
			return written{}, err
		}

		s, err := sessions.SyncProgress(ctx, tx, cmd.SessionID)
		if err != nil {
			return written{}, err
		}
		return written{result: res, session: s}, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("result upserted",
		"session_id", cmd.SessionID,
		"requirement_type", req.Type,
		"requirement_number", req.Number,
		"status", w.result.Status,
		"failed", w.result.Failed,
		"progress", w.session.ProgressPercent,
	)
	r.publish(ctx, w.result, w.session)
	return &w.result, nil
}

func (r *repo) Summary(ctx context.Context, sessionID uuid.UUID) (*Summary, error) {
	exists, err := repository.QueryValue[bool](ctx, r.db,
		"SELECT EXISTS(SELECT 1 FROM validation_detail WHERE id = $1)", sessionID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	rows, err := r.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s := Summarize(sessionID, rows)
	return &s, nil
}

func (r *repo) publish(ctx context.Context, res Result, s *sessions.Session) {
	if r.events == nil {
		return
	}
	err := r.events.Publish(ctx, events.Event{
		Type:              events.TypeResult,
		SessionID:         s.ID.String(),
		State:             string(s.State),
		ResultCount:       s.ResultCount,
		ResultTotal:       s.ResultTotal,
		ProgressPercent:   s.ProgressPercent,
		RequirementType:   string(res.RequirementType),
		RequirementNumber: res.RequirementNumber,
		Message:           string(res.Status),
	})
	if err != nil {
		r.logger.Warn("publish result event failed", "session_id", s.ID, "error", err)
	}
}
