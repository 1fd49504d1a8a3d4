package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/vanderheijden86/refnet/pkg/model"
)

// FixtureUser is one row of the users table.
type FixtureUser struct {
	ID          int64
	ParentID    int64 // 0 for a root
	FullName    string
	Email       string
	CreatedAt   string
	Volume      *float64
	Commissions *float64
}

// Fixture is the content of a fixture database.
type Fixture struct {
	Viewer   model.ViewerModel
	ViewerID int64
	Users    []FixtureUser
}

// WriteFixture creates (or replaces) the fixture database at path.
func WriteFixture(ctx context.Context, path string, f Fixture) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove old fixture: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO users
		(id, parent_id, full_name, email, created_at, volume, commissions)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, u := range f.Users {
		var parent any
		if u.ParentID != 0 {
			parent = u.ParentID
		}
		if _, err := stmt.ExecContext(ctx, u.ID, parent, u.FullName, u.Email, u.CreatedAt,
			nullFloat(u.Volume), nullFloat(u.Commissions)); err != nil {
			return fmt.Errorf("insert user %d: %w", u.ID, err)
		}
	}

	if f.Viewer != "" {
		if _, err := tx.ExecContext(ctx, `INSERT INTO viewer (id, user_id, model) VALUES (1, ?, ?)`,
			f.ViewerID, string(f.Viewer)); err != nil {
			return fmt.Errorf("insert viewer: %w", err)
		}
	}
	return tx.Commit()
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
