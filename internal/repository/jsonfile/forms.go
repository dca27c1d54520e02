package jsonfile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/formgate/internal/model"
	"github.com/sakif/formgate/internal/repository"
)

var _ repository.FormRepository = (*FormStore)(nil)

// FormStore keeps form submissions as a JSON array in submission order.
type FormStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFormStore returns a store for path, creating an empty array document if
// the file does not exist yet.
func NewFormStore(path string, logger *slog.Logger) (*FormStore, error) {
	if err := ensureDocument(path, []model.FormSubmission{}); err != nil {
		return nil, err
	}
	return &FormStore{path: path, logger: logger}, nil
}

// Load returns all submissions, oldest first. A missing or corrupt document
// yields an empty slice.
func (s *FormStore) Load(ctx context.Context) ([]model.FormSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

// Save overwrites the whole document with forms.
func (s *FormStore) Save(ctx context.Context, forms []model.FormSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(forms)
}

// Append adds form to the end of the document.
func (s *FormStore) Append(ctx context.Context, form model.FormSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	forms := append(s.load(), form)
	if err := s.save(forms); err != nil {
		return fmt.Errorf("jsonfile: appending form: %w", err)
	}
	return nil
}

func (s *FormStore) load() []model.FormSubmission {
	var forms []model.FormSubmission
	if !readDocument(s.path, &forms, s.logger) || forms == nil {
		return []model.FormSubmission{}
	}
	return forms
}

func (s *FormStore) save(forms []model.FormSubmission) error {
	if forms == nil {
		forms = []model.FormSubmission{}
	}
	return writeDocument(s.path, forms)
}
