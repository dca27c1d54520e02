package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/formgate/internal/model"
	"github.com/sakif/formgate/internal/repository"
)

var _ repository.FormRepository = (*FormDB)(nil)

// FormDB is the form store view over a DB.
type FormDB struct {
	db *DB
}

// Load returns all submissions in insertion order.
func (f *FormDB) Load(ctx context.Context) ([]model.FormSubmission, error) {
	rows, err := f.db.conn.QueryContext(ctx,
		`SELECT name, type, message, timestamp FROM forms ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading forms: %w", err)
	}
	defer rows.Close()

	forms := []model.FormSubmission{}
	for rows.Next() {
		var s model.FormSubmission
		if err := rows.Scan(&s.Name, &s.Type, &s.Message, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("sqlite: scanning form: %w", err)
		}
		forms = append(forms, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating forms: %w", err)
	}
	return forms, nil
}

// Save replaces the forms table, keeping the order of forms.
func (f *FormDB) Save(ctx context.Context, forms []model.FormSubmission) error {
	return f.db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM forms`); err != nil {
			return fmt.Errorf("sqlite: clearing forms: %w", err)
		}
		for _, s := range forms {
			if err := insertForm(ctx, tx, s); err != nil {
				return err
			}
		}
		return nil
	})
}

// Append adds one submission after all existing ones.
func (f *FormDB) Append(ctx context.Context, form model.FormSubmission) error {
	return f.db.withTx(ctx, func(tx *sql.Tx) error {
		return insertForm(ctx, tx, form)
	})
}

func insertForm(ctx context.Context, tx *sql.Tx, s model.FormSubmission) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO forms (name, type, message, timestamp) VALUES (?, ?, ?, ?)`,
		s.Name, s.Type, s.Message, s.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting form: %w", err)
	}
	return nil
}
