package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/formgate/internal/service"
	"github.com/sakif/formgate/internal/session"
)

const msgFormSubmitted = "Form submitted"

// FormHandler serves the form page and the submissions listing.
type FormHandler struct {
	forms  *service.FormService
	render *Renderer
	logger *slog.Logger
}

// NewFormHandler creates a FormHandler.
func NewFormHandler(forms *service.FormService, render *Renderer, logger *slog.Logger) *FormHandler {
	return &FormHandler{
		forms:  forms,
		render: render,
		logger: logger,
	}
}

// HandleFormPage renders the empty form.
//
// HTTP: GET /form
func (h *FormHandler) HandleFormPage(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "form", &PageData{Title: "Form"})
}

// HandleSubmit stores a submission and redirects back to the form
// (Post/Redirect/Get, so a reload does not submit twice).
//
// HTTP: POST /form
//
// Missing fields are stored as empty strings.
func (h *FormHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	_, err := h.forms.Submit(r.Context(),
		r.PostFormValue("name"),
		r.PostFormValue("type"),
		r.PostFormValue("message"),
	)
	if err != nil {
		flashError(r, h.logger, err)
		h.render.Redirect(w, r, "/form")
		return
	}

	session.FromContext(r.Context()).AddFlash(session.FlashSuccess, msgFormSubmitted)
	h.render.Redirect(w, r, "/form")
}

// HandleAdmin lists every submission in the order it was received.
// Any authenticated user may see it.
//
// HTTP: GET /admin
func (h *FormHandler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	forms, err := h.forms.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list submissions", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.render.Render(w, r, http.StatusOK, "admin", &PageData{Title: "Admin", Forms: forms})
}
