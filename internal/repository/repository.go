// Package repository declares the storage interfaces the service layer
// depends on. Two implementations exist: jsonfile (the default, one JSON
// document per store) and sqlite.
package repository

import (
	"context"

	"github.com/sakif/formgate/internal/model"
)

// UserRepository is the credential store: a mapping of user ID to user record.
//
// Load never fails because of a missing or unreadable backing document; it
// returns an empty map instead. Every mutating call is a full
// read-modify-write cycle that implementations serialise internally.
type UserRepository interface {
	Load(ctx context.Context) (map[string]model.User, error)
	Save(ctx context.Context, users map[string]model.User) error
	// Get returns apperror.ErrNotFound when no record has this ID.
	Get(ctx context.Context, id string) (*model.User, error)
	// Create stores a passwordless (federated) account. It does not check
	// whether the ID is taken: the last write wins.
	Create(ctx context.Context, id, username, email string) (*model.User, error)
	// Insert stores user only if user.ID is free, otherwise it returns
	// apperror.ErrConflict and leaves the store unchanged.
	Insert(ctx context.Context, user *model.User) error
}

// FormRepository is the form store: an append-only ordered list of submissions.
type FormRepository interface {
	Load(ctx context.Context) ([]model.FormSubmission, error)
	Save(ctx context.Context, forms []model.FormSubmission) error
	Append(ctx context.Context, form model.FormSubmission) error
}
