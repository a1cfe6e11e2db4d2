// package catalog stores compiled modules and the names of the functions they implement in a sqlite database.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"elementlang.org/numc/internal/cadata"
	"elementlang.org/numc/internal/dbutil"
	"elementlang.org/numc/internal/migrations"
)

func Migration(x *migrations.State) *migrations.State {
	return x.
		ApplyStmt(`CREATE TABLE modules (
		id BLOB NOT NULL,
		data BLOB NOT NULL,

		PRIMARY KEY(id)
	) WITHOUT ROWID, STRICT;`).
		ApplyStmt(`CREATE TABLE functions (
		name TEXT NOT NULL,
		module_id BLOB NOT NULL,
		inputs INTEGER NOT NULL,
		outputs INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,

		FOREIGN KEY(module_id) REFERENCES modules(id),
		PRIMARY KEY(name)
	);`)
}

var currentSchema = Migration(migrations.InitialState())

// Setup brings the database up to date with the current schema.
func Setup(ctx context.Context, db *sqlx.DB) error {
	return migrations.Migrate(ctx, db, currentSchema)
}

// Entry is a named function in the catalog
type Entry struct {
	Name    string    `db:"name"`
	Module  cadata.ID `db:"module_id"`
	Inputs  int       `db:"inputs"`
	Outputs int       `db:"outputs"`
}

var _ cadata.Store = &Catalog{}

type Catalog struct {
	db      *sqlx.DB
	hf      cadata.HashFunc
	maxSize int
}

func New(db *sqlx.DB, hf cadata.HashFunc, maxSize int) *Catalog {
	return &Catalog{db: db, hf: hf, maxSize: maxSize}
}

func (c *Catalog) Post(ctx context.Context, data []byte) (cadata.ID, error) {
	if len(data) > c.maxSize {
		return cadata.ID{}, cadata.ErrTooLarge
	}
	id := c.hf(data)
	if _, err := c.db.ExecContext(ctx, `INSERT INTO modules (id, data)
		VALUES (?, ?) ON CONFLICT DO NOTHING`, id[:], data); err != nil {
		return cadata.ID{}, err
	}
	return id, nil
}

func (c *Catalog) Get(ctx context.Context, id *cadata.ID, buf []byte) (int, error) {
	var data []byte
	if err := c.db.GetContext(ctx, &data, `SELECT data FROM modules WHERE id = ?`, id[:]); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = cadata.ErrNotFound{Key: id}
		}
		return 0, err
	}
	if len(data) > len(buf) {
		return 0, io.ErrShortBuffer
	}
	return copy(buf, data), nil
}

func (c *Catalog) Exists(ctx context.Context, id *cadata.ID) (bool, error) {
	var exists bool
	if err := c.db.GetContext(ctx, &exists, `SELECT EXISTS(
		SELECT 1 FROM modules WHERE id = ?
	)`, id[:]); err != nil {
		return false, err
	}
	return exists, nil
}

// Delete removes a module. Modules referenced by a function cannot be deleted.
func (c *Catalog) Delete(ctx context.Context, id *cadata.ID) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM modules WHERE id = ?`, id[:])
	return err
}

func (c *Catalog) List(ctx context.Context, span cadata.Span, ids []cadata.ID) (int, error) {
	begin := cadata.BeginFromSpan(span)
	var rows []cadata.ID
	if err := c.db.SelectContext(ctx, &rows, `SELECT id FROM modules
		WHERE id >= ?
		ORDER BY id
		LIMIT ?
	`, begin[:], len(ids)); err != nil {
		return 0, err
	}
	return copy(ids, rows), nil
}

func (c *Catalog) MaxSize() int {
	return c.maxSize
}

// PutFunction stores a module and names it, replacing any function with the same name.
func (c *Catalog) PutFunction(ctx context.Context, name string, inputs, outputs int, module []byte) (*Entry, error) {
	if len(module) > c.maxSize {
		return nil, cadata.ErrTooLarge
	}
	id := c.hf(module)
	err := dbutil.DoTx(ctx, c.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO modules (id, data)
			VALUES (?, ?) ON CONFLICT DO NOTHING`, id[:], module); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO functions (name, module_id, inputs, outputs)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (name) DO UPDATE SET
				module_id = excluded.module_id,
				inputs = excluded.inputs,
				outputs = excluded.outputs,
				created_at = CURRENT_TIMESTAMP`, name, id[:], inputs, outputs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Entry{Name: name, Module: id, Inputs: inputs, Outputs: outputs}, nil
}

// Lookup returns the entry for the function with name.
func (c *Catalog) Lookup(ctx context.Context, name string) (*Entry, error) {
	var ent Entry
	if err := c.db.GetContext(ctx, &ent, `SELECT name, module_id, inputs, outputs
		FROM functions WHERE name = ?`, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("catalog: no function named %q", name)
		}
		return nil, err
	}
	return &ent, nil
}

// Load returns the module for the function with name.
func (c *Catalog) Load(ctx context.Context, name string) (*Entry, []byte, error) {
	ent, err := c.Lookup(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	data, err := cadata.GetBytes(ctx, c, ent.Module, c.maxSize)
	if err != nil {
		return nil, nil, err
	}
	if err := cadata.Check(c.hf, &ent.Module, data); err != nil {
		return nil, nil, err
	}
	return ent, data, nil
}

// Functions lists all the functions in the catalog, ordered by name.
func (c *Catalog) Functions(ctx context.Context) ([]Entry, error) {
	var ents []Entry
	if err := c.db.SelectContext(ctx, &ents, `SELECT name, module_id, inputs, outputs
		FROM functions ORDER BY name`); err != nil {
		return nil, err
	}
	return ents, nil
}

// DropFunction removes the function with name, and its module if no other function uses it.
func (c *Catalog) DropFunction(ctx context.Context, name string) error {
	return dbutil.DoTx(ctx, c.db, func(tx *sqlx.Tx) error {
		var id []byte
		if err := tx.GetContext(ctx, &id, `DELETE FROM functions WHERE name = ? RETURNING module_id`, name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("catalog: no function named %q", name)
			}
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM modules WHERE id = ? AND id NOT IN (
			SELECT module_id FROM functions
		)`, id)
		return err
	})
}
