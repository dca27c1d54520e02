// Package handler contains HTTP request handlers for the formgate application.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (form values, query params, session)
// 2. Call the service layer
// 3. Write the HTTP response: render a page or redirect with a flash message
//
// Handlers should NOT contain business logic. They are the glue between HTTP
// and the services.
package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/sakif/formgate/internal/auth"
	"github.com/sakif/formgate/internal/model"
	"github.com/sakif/formgate/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// pages are the templates that can be rendered. Each is parsed together
// with base.html, which defines the layout and calls {{template "content" .}}.
var pages = []string{
	"login", "register", "home", "about", "service", "so", "form", "account", "admin",
}

// PageData is what every page template receives.
type PageData struct {
	Title         string
	User          *model.User // nil for anonymous visitors
	Flashes       []session.Flash
	Now           string
	Forms         []model.FormSubmission
	Values        map[string]string // form fields echoed back on re-render
	GoogleEnabled bool
}

// Renderer renders pages and redirects, saving the session on the way out.
//
// Templates are parsed once at startup (expensive) and reused on every
// request (cheap).
type Renderer struct {
	pages    map[string]*template.Template
	sessions *session.Manager
	logger   *slog.Logger
}

// NewRenderer parses the embedded templates.
func NewRenderer(sessions *session.Manager, logger *slog.Logger) (*Renderer, error) {
	parsed := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("handler: parsing template %s: %w", name, err)
		}
		parsed[name] = tmpl
	}

	return &Renderer{
		pages:    parsed,
		sessions: sessions,
		logger:   logger,
	}, nil
}

// Render executes page with data and writes it with the given status.
//
// Pending flash messages are moved from the session into data, and the
// session is saved so they are shown only once. The page is rendered into a
// buffer first: a template error yields a clean 500 instead of half a page.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page string, data *PageData) {
	tmpl, ok := rd.pages[page]
	if !ok {
		rd.logger.Error("unknown page", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = &PageData{}
	}
	if data.User == nil {
		data.User, _ = auth.UserFromContext(r.Context())
	}

	s := session.FromContext(r.Context())
	data.Flashes = append(data.Flashes, s.PopFlashes()...)

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		rd.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	rd.saveSession(w, s)

	// Set content type header BEFORE writing the body
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		rd.logger.Debug("client went away", slog.String("error", err.Error()))
	}
}

// Redirect saves the session and answers 302 Found.
func (rd *Renderer) Redirect(w http.ResponseWriter, r *http.Request, url string) {
	rd.saveSession(w, session.FromContext(r.Context()))
	http.Redirect(w, r, url, http.StatusFound)
}

func (rd *Renderer) saveSession(w http.ResponseWriter, s *session.Session) {
	if err := rd.sessions.Save(w, s); err != nil {
		rd.logger.Error("failed to save session", slog.String("error", err.Error()))
	}
}

// StaticHandler serves the embedded stylesheet and other assets.
// Mount it under /static/ with http.StripPrefix.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err) // the directory is embedded at build time
	}
	return http.FileServerFS(sub)
}
