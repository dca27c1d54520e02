package jsonfile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/formgate/internal/apperror"
	"github.com/sakif/formgate/internal/model"
	"github.com/sakif/formgate/internal/repository"
)

var _ repository.UserRepository = (*UserStore)(nil)

// UserStore is the credential store backed by a JSON object mapping user ID
// to {"username", "email", "password"}.
type UserStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewUserStore returns a store for path, creating an empty document if the
// file does not exist yet.
func NewUserStore(path string, logger *slog.Logger) (*UserStore, error) {
	if err := ensureDocument(path, map[string]model.User{}); err != nil {
		return nil, err
	}
	return &UserStore{path: path, logger: logger}, nil
}

// Load returns every user keyed by ID. It never fails: a missing or corrupt
// document yields an empty map.
func (s *UserStore) Load(ctx context.Context) (map[string]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

// Save overwrites the whole document with users.
func (s *UserStore) Save(ctx context.Context, users map[string]model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(users)
}

// Get looks up a user by exact ID.
func (s *UserStore) Get(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.load()[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

// Create stores a passwordless account, replacing any record with the same ID.
func (s *UserStore) Create(ctx context.Context, id, username, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.load()
	u := model.User{ID: id, Username: username, Email: email}
	users[id] = u
	if err := s.save(users); err != nil {
		return nil, fmt.Errorf("jsonfile: creating user %s: %w", id, err)
	}
	return &u, nil
}

// Insert stores user unless its ID is already taken.
func (s *UserStore) Insert(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.load()
	if _, exists := users[user.ID]; exists {
		return apperror.Conflict("user", user.ID)
	}
	users[user.ID] = *user
	if err := s.save(users); err != nil {
		return fmt.Errorf("jsonfile: inserting user %s: %w", user.ID, err)
	}
	return nil
}

// load must be called with s.mu held.
func (s *UserStore) load() map[string]model.User {
	users := map[string]model.User{}
	if !readDocument(s.path, &users, s.logger) || users == nil {
		return map[string]model.User{}
	}
	// The ID is the map key and is not stored inside the record.
	for id, u := range users {
		u.ID = id
		users[id] = u
	}
	return users
}

// save must be called with s.mu held.
func (s *UserStore) save(users map[string]model.User) error {
	if users == nil {
		users = map[string]model.User{}
	}
	return writeDocument(s.path, users)
}
