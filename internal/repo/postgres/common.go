package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

// DB is satisfied by both *sql.DB and *sql.Tx so stores run inside or
// outside a transaction.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func encodeMetadata(meta domain.Metadata) ([]byte, error) {
	if meta == nil {
		meta = domain.Metadata{}
	}
	return json.Marshal(meta)
}

func decodeMetadata(raw []byte) (domain.Metadata, error) {
	if len(raw) == 0 {
		return domain.Metadata{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return domain.Metadata(out), nil
}

func nullIfEmpty(value string) sql.NullString {
	value = strings.TrimSpace(value)
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullIfZeroTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func handleNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repo.ErrNotFound
	}
	return err
}

// mapConstraintErr translates postgres constraint violations into repo
// sentinels: unique (23505) reads as a conflict, foreign key (23503) as the
// referenced row not existing.
func mapConstraintErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", repo.ErrConflict, pgErr.ConstraintName)
	case "23503":
		return fmt.Errorf("%w: %s", repo.ErrNotFound, pgErr.ConstraintName)
	default:
		return err
	}
}

// mapDeleteConstraintErr translates constraint violations on DELETE. A
// foreign key violation here means dependent rows still reference the
// target, which reads as a conflict rather than a missing row.
func mapDeleteConstraintErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.Code == "23503" {
		return fmt.Errorf("%w: %s", repo.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// buildPatch turns an allow-listed patch map into a SET fragment. Unknown
// fields are rejected, never interpolated. Argument numbering starts at
// argOffset+1 so callers can prepend their own args.
func buildPatch(patch map[string]any, allowed map[string]string, argOffset int) (string, []any, error) {
	if len(patch) == 0 {
		return "", nil, domain.NewValidationError("patch", "no fields to update")
	}
	fields := make([]string, 0, len(patch))
	for field := range patch {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	assignments := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for _, field := range fields {
		column, ok := allowed[field]
		if !ok {
			return "", nil, domain.NewValidationError(field, "field is not updatable")
		}
		value := patch[field]
		if field == "metadata" {
			meta, ok := value.(map[string]any)
			if !ok {
				return "", nil, domain.NewValidationError(field, "must be an object")
			}
			encoded, err := encodeMetadata(domain.Metadata(meta))
			if err != nil {
				return "", nil, fmt.Errorf("encode metadata: %w", err)
			}
			value = encoded
		}
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, argOffset+len(args)))
	}
	return strings.Join(assignments, ", "), args, nil
}
