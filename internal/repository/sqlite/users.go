package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/formgate/internal/apperror"
	"github.com/sakif/formgate/internal/model"
	"github.com/sakif/formgate/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Load returns every user keyed by ID.
func (db *DB) Load(ctx context.Context) (map[string]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, username, email, password FROM users`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading users: %w", err)
	}
	defer rows.Close()

	users := map[string]model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users[u.ID] = *u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// Save replaces the users table with users in one transaction.
func (db *DB) Save(ctx context.Context, users map[string]model.User) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return fmt.Errorf("sqlite: clearing users: %w", err)
		}
		for id, u := range users {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO users (id, username, email, password) VALUES (?, ?, ?, ?)`,
				id, u.Username, u.Email, nullString(u.Password),
			); err != nil {
				return fmt.Errorf("sqlite: saving user %s: %w", id, err)
			}
		}
		return nil
	})
}

// Get retrieves a user by ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) Get(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// Create stores a passwordless account. INSERT OR REPLACE gives the same
// last-write-wins behaviour as the JSON store.
func (db *DB) Create(ctx context.Context, id, username, email string) (*model.User, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO users (id, username, email, password) VALUES (?, ?, ?, NULL)`,
		id, username, email,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating user %s: %w", id, err)
	}
	return &model.User{ID: id, Username: username, Email: email}, nil
}

// Insert stores user only if the ID is free.
func (db *DB) Insert(ctx context.Context, user *model.User) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE id = ?`, user.ID,
		).Scan(&count); err != nil {
			return fmt.Errorf("sqlite: checking user %s: %w", user.ID, err)
		}
		if count > 0 {
			return apperror.Conflict("user", user.ID)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, username, email, password) VALUES (?, ?, ?, ?)`,
			user.ID, user.Username, user.Email, nullString(user.Password),
		); err != nil {
			return fmt.Errorf("sqlite: inserting user %s: %w", user.ID, err)
		}
		return nil
	})
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u        model.User
		password sql.NullString
	)
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &password); err != nil {
		return nil, err
	}
	if password.Valid {
		u.Password = &password.String
	}
	return &u, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
