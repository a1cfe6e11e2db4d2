// package migrations applies an ordered list of schema changes to a database.
package migrations

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/stdctx/logctx"
)

// State is a database schema, described by the statements which create it.
// States are immutable, ApplyStmt returns a new State.
type State struct {
	stmts []string
}

func InitialState() *State {
	return &State{}
}

// ApplyStmt returns the state after applying stmt.
func (s *State) ApplyStmt(stmt string) *State {
	stmts := append([]string{}, s.stmts...)
	return &State{stmts: append(stmts, stmt)}
}

// Version is the number of statements applied to reach the state.
func (s *State) Version() int {
	return len(s.stmts)
}

// Migrate applies the statements needed to bring db to the target state.
// The version of the database is stored in sqlite's user_version.
func Migrate(ctx context.Context, db *sqlx.DB, target *State) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	var current int
	if err := tx.GetContext(ctx, &current, `PRAGMA user_version`); err != nil {
		return err
	}
	if current > target.Version() {
		return fmt.Errorf("database is at version %d, which is newer than %d", current, target.Version())
	}
	for i := current; i < target.Version(); i++ {
		if _, err := tx.ExecContext(ctx, target.stmts[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, target.Version())); err != nil {
		return err
	}
	if current < target.Version() {
		logctx.Infof(ctx, "migrated database from version %d to %d", current, target.Version())
	}
	return tx.Commit()
}
