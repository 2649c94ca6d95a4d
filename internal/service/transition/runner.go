package transition

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/parkrow-labs/parkrow-go/internal/platform/auditlog"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
	"github.com/parkrow-labs/parkrow-go/internal/repo/postgres"
)

// Stores bundles the repositories a transition touches, all bound to the same
// transaction so the status write, the record, and the audit entry commit or
// roll back together.
type Stores struct {
	Leases       repo.LeaseStore
	Applications repo.ApplicationStore
	Checklists   repo.ChecklistStore
	Transitions  repo.TransitionStore
	Audit        auditlog.Appender
}

// Runner executes fn inside one storage transaction.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// SQLRunner is the production Runner on a Postgres pool.
type SQLRunner struct {
	DB *sql.DB
}

func (r SQLRunner) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	if r.DB == nil {
		return fmt.Errorf("transition runner not initialized")
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stores := Stores{
		Leases:       postgres.NewLeaseStore(tx),
		Applications: postgres.NewApplicationStore(tx),
		Checklists:   postgres.NewChecklistStore(tx),
		Transitions:  postgres.NewTransitionStore(tx),
		Audit:        auditlog.TxAppender{Q: tx},
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
