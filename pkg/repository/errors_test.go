package repository_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JaimeStill/rtoval/pkg/repository"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("duplicate")
)

func TestMapError(t *testing.T) {
	passthrough := errors.New("some other error")
	fkErr := &pgconn.PgError{Code: "23503"}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, errNotFound},
		{"wrapped no rows", fmt.Errorf("find: %w", sql.ErrNoRows), errNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, errDuplicate},
		{"foreign key passes through", fkErr, fkErr},
		{"other passes through", passthrough, passthrough},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repository.MapError(tt.err, errNotFound, errDuplicate)
			if got != tt.want {
				t.Errorf("MapError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestConstraintHelpers(t *testing.T) {
	fk := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"})
	check := &pgconn.PgError{Code: "23514"}

	if !repository.IsForeignKeyViolation(fk) {
		t.Error("IsForeignKeyViolation should match wrapped 23503")
	}
	if repository.IsForeignKeyViolation(check) {
		t.Error("IsForeignKeyViolation should not match 23514")
	}
	if !repository.IsCheckViolation(check) {
		t.Error("IsCheckViolation should match 23514")
	}
	if got := repository.PgCode(errors.New("plain")); got != "" {
		t.Errorf("PgCode(plain) = %q, want empty", got)
	}
}
