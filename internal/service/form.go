// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses forms, renders pages, redirects
//	Service (Business layer) → enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the JSON documents (or SQLite)
//
// Services take repository interfaces, not concrete stores. main.go picks
// the implementation (jsonfile or sqlite); tests pass in-memory fakes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/formgate/internal/model"
	"github.com/sakif/formgate/internal/repository"
)

// FormService records and lists contact-form submissions.
type FormService struct {
	forms  repository.FormRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewFormService creates a new FormService.
func NewFormService(forms repository.FormRepository, logger *slog.Logger) *FormService {
	return &FormService{
		forms:  forms,
		now:    time.Now,
		logger: logger,
	}
}

// Submit stamps a submission with the current server time and appends it
// to the form store.
//
// There is no validation: missing fields arrive here as empty strings and
// are stored as such.
func (s *FormService) Submit(ctx context.Context, name, formType, message string) (*model.FormSubmission, error) {
	sub := model.FormSubmission{
		Name:      name,
		Type:      formType,
		Message:   message,
		Timestamp: s.now().Format(model.TimestampLayout),
	}

	if err := s.forms.Append(ctx, sub); err != nil {
		s.logger.Error("failed to store form submission",
			slog.String("type", formType),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/form: appending submission: %w", err)
	}

	s.logger.Info("form submitted",
		slog.String("name", name),
		slog.String("type", formType),
	)

	return &sub, nil
}

// List returns every submission in stored order.
func (s *FormService) List(ctx context.Context) ([]model.FormSubmission, error) {
	forms, err := s.forms.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/form: loading submissions: %w", err)
	}
	return forms, nil
}
