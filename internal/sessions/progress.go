package sessions

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/pkg/repository"
)

// SyncProgress recounts stored results for a session inside the caller's
// transaction. The count never decreases, so a late recount racing an earlier
// one cannot move progress backwards.
func SyncProgress(ctx context.Context, conn repository.Conn, id uuid.UUID) (*Session, error) {
	q := `
		UPDATE validation_detail v
		SET result_count = GREATEST(
				v.result_count,
				(SELECT COUNT(*) FROM validation_results r WHERE r.session_id = v.id)
			),
			updated_at = NOW()
		WHERE v.id = $1
		RETURNING ` + returning

	s, err := repository.QueryOne(ctx, conn, q, []any{id}, scanSession)
	if err != nil {
		return nil, fmt.Errorf("sync session progress: %w", repository.MapError(err, ErrNotFound, ErrDuplicate))
	}
	return &s, nil
}

// LockState reads a session's state with a row lock held until the
// caller's transaction ends.
func LockState(ctx context.Context, conn repository.Conn, id uuid.UUID) (State, error) {
	st, err := repository.QueryValue[string](ctx, conn,
		"SELECT state FROM validation_detail WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return "", repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return State(st), nil
}
