package handler

import (
	"net/http"
	"time"

	"github.com/sakif/formgate/internal/auth"
	"github.com/sakif/formgate/internal/model"
)

// PageHandler serves the informational pages.
type PageHandler struct {
	render *Renderer
	now    func() time.Time
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(render *Renderer) *PageHandler {
	return &PageHandler{render: render, now: time.Now}
}

// HandleHome shows the logged-in user's name, email and the server time.
// Anonymous visitors are sent to the login page without a flash message.
//
// HTTP: GET /
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.render.Redirect(w, r, auth.LoginPath)
		return
	}

	h.render.Render(w, r, http.StatusOK, "home", &PageData{
		Title: "Home",
		User:  user,
		Now:   h.timestamp(),
	})
}

// HandleAbout shows the username and the server time.
//
// HTTP: GET /about
func (h *PageHandler) HandleAbout(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "about", &PageData{Title: "About", Now: h.timestamp()})
}

// HandleService serves GET /service.
func (h *PageHandler) HandleService(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "service", &PageData{Title: "Service"})
}

// HandleSO serves GET /so.
func (h *PageHandler) HandleSO(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "so", &PageData{Title: "SO"})
}

// HandleAccount shows the username and email of the current account.
//
// HTTP: GET /account
func (h *PageHandler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "account", &PageData{Title: "Account"})
}

// HandleHealth reports that the process is up.
//
// HTTP: GET /healthz
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PageHandler) timestamp() string {
	return h.now().Format(model.TimestampLayout)
}
