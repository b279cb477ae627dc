package prompts

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/pkg/pagination"
	"github.com/JaimeStill/rtoval/pkg/query"
	"github.com/JaimeStill/rtoval/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a prompt repository implementing the System interface.
func New(
	db *sql.DB,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "prompts"),
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
) (*pagination.PageResult[Prompt], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Text")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.QueryValue[int](ctx, r.db, countSQL, countArgs...)
	if err != nil {
		return nil, fmt.Errorf("count prompts: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	prompts, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanPrompt)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}

	result := pagination.NewPageResult(prompts, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	p, err := repository.QueryOne(ctx, r.db, q, args, scanPrompt)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Prompt, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	key := cmd.Key()

	q := `
		INSERT INTO prompts(name, task_type, requirement_type, document_type, text,
			system_instruction, output_schema, generation_config, version)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, COALESCE(MAX(version), 0) + 1
		FROM prompts
		WHERE task_type = $2 AND requirement_type = $3 AND document_type = $4
		RETURNING ` + returning

	args := []any{
		cmd.Name, key.TaskType, key.RequirementType, key.DocumentType, cmd.Text,
		cmd.SystemInstruction, jsonArg(cmd.OutputSchema), jsonArg(cmd.GenerationConfig),
	}

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		if err := lockKey(ctx, tx, key); err != nil {
			return Prompt{}, err
		}

		created, err := repository.QueryOne(ctx, tx, q, args, scanPrompt)
		if err != nil {
			return Prompt{}, err
		}

		if !cmd.IsDefault {
			return created, nil
		}
		return promote(ctx, tx, created)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt created",
		"id", p.ID,
		"name", p.Name,
		"key", key.String(),
		"version", p.Version,
		"default", p.IsDefault,
	)
	return &p, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Prompt, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	q := `
		UPDATE prompts
		SET name = $1, text = $2, system_instruction = $3, output_schema = $4,
			generation_config = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING ` + returning

	args := []any{
		cmd.Name, cmd.Text, cmd.SystemInstruction,
		jsonArg(cmd.OutputSchema), jsonArg(cmd.GenerationConfig), id,
	}

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return repository.QueryOne(ctx, tx, q, args, scanPrompt)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt updated", "id", p.ID, "name", p.Name)
	return &p, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM prompts WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt deleted", "id", id)
	return nil
}

func (r *repo) Activate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	q := `
		UPDATE prompts SET is_active = true, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + returning

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return repository.QueryOne(ctx, tx, q, []any{id}, scanPrompt)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt activated", "id", p.ID, "key", p.Key().String())
	return &p, nil
}

func (r *repo) Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	q := `
		UPDATE prompts SET is_active = false, is_default = false, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + returning

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return repository.QueryOne(ctx, tx, q, []any{id}, scanPrompt)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt deactivated", "id", p.ID, "key", p.Key().String())
	return &p, nil
}

func (r *repo) SetDefault(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		findQ, findArgs := query.NewBuilder(projection).BuildSingle("ID", id)
		target, err := repository.QueryOne(ctx, tx, findQ, findArgs, scanPrompt)
		if err != nil {
			return Prompt{}, err
		}

		if err := lockKey(ctx, tx, target.Key()); err != nil {
			return Prompt{}, err
		}
		return promote(ctx, tx, target)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt set as default", "id", p.ID, "key", p.Key().String(), "version", p.Version)
	return &p, nil
}

func (r *repo) ResolveDefault(ctx context.Context, key Key) (*Prompt, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	q, args := query.
		NewBuilder(projection).
		WhereEquals("TaskType", key.TaskType).
		WhereEquals("RequirementType", key.RequirementType).
		WhereEquals("DocumentType", key.DocumentType).
		WhereEquals("IsActive", true).
		WhereEquals("IsDefault", true).
		Build()

	matches, err := repository.QueryMany(ctx, r.db, q, args, scanPrompt)
	if err != nil {
		return nil, fmt.Errorf("resolve prompt %s: %w", key, err)
	}

	p, err := PickDefault(key, matches)
	if err != nil {
		r.logger.Error("prompt resolution failed", "key", key.String(), "matches", len(matches), "error", err)
		return nil, err
	}
	return p, nil
}

// PickDefault applies the single-default rule to the rows matching key.
func PickDefault(key Key, matches []Prompt) (*Prompt, error) {
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w for %s", ErrNoDefault, key)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w for %s: %d rows", ErrMultipleDefaults, key, len(matches))
	}
}

// lockKey serialises writers of one key for the rest of the transaction.
func lockKey(ctx context.Context, tx *sql.Tx, key Key) error {
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", "prompts:"+key.String()); err != nil {
		return fmt.Errorf("lock prompt key: %w", err)
	}
	return nil
}

// promote clears every other default of target's key and makes target the
// active default. The caller holds the key lock.
func promote(ctx context.Context, tx *sql.Tx, target Prompt) (Prompt, error) {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE prompts SET is_default = false, updated_at = NOW()
		WHERE task_type = $1 AND requirement_type = $2 AND document_type = $3
			AND is_default = true AND id <> $4`,
		target.TaskType, target.RequirementType, target.DocumentType, target.ID,
	)
	if err != nil {
		return Prompt{}, fmt.Errorf("clear current default: %w", err)
	}

	q := `
		UPDATE prompts SET is_default = true, is_active = true, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + returning

	return repository.QueryOne(ctx, tx, q, []any{target.ID}, scanPrompt)
}
