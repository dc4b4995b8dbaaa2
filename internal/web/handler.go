// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

// Package web is the HTTP transport: the login and logout views, the
// session-protected pages and the middleware that guards them.
package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/aosauth/aosauth/internal/auth"
	"github.com/aosauth/aosauth/internal/observability"
	"github.com/aosauth/aosauth/pkg/errutil"
)

// Routes.
const (
	LoginPath  = "/auth/login/"
	LogoutPath = "/auth/logout/"
	IndexPath  = "/"
	MePath     = "/me"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// pageData feeds every template.
type pageData struct {
	Title  string
	Error  string
	Email  string
	UserID auth.UserID
}

// Handler serves the web routes on top of an auth.Service.
type Handler struct {
	service *auth.Service
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the base logger; request loggers derive from it.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records per-route request counts.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler creates a Handler.
func NewHandler(service *auth.Service, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, oops.Code("WEB_INVALID_HANDLER").Errorf("auth service is required")
	}
	h := &Handler{service: service, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes builds the router.
func (h *Handler) Routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(h.withRequestID)
	router.Use(h.withAccessLog)
	router.Use(middleware.Recoverer)

	router.Get(LoginPath, h.loginForm)
	router.Post(LoginPath, h.login)
	router.Get(LogoutPath, h.logout)

	router.Group(func(r chi.Router) {
		r.Use(h.RequireSession)
		r.Get(IndexPath, h.index)
	})
	router.Group(func(r chi.Router) {
		r.Use(h.requireSessionJSON)
		r.Get(MePath, h.me)
	})

	return router
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		errutil.LogErrorContext(r.Context(), h.logger, "template render failed",
			oops.Code("WEB_TEMPLATE_FAILED").With("template", name).Wrap(err))
	}
}

// renderError writes the error page for an auth failure.
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)
	h.render(w, r, status, "error", pageData{
		Title: http.StatusText(status),
		Error: userMessage(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

type meResponse struct {
	UserID auth.UserID `json:"user_id"`
}

// requireSessionJSON is RequireSession with JSON error bodies.
func (h *Handler) requireSessionJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.service.Authenticate(r.Context(), r)
		if err != nil {
			writeJSON(w, statusFromError(err), errorResponse{Error: userMessage(err)})
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), id)))
	})
}

func (h *Handler) loginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", pageData{Title: "Log in"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "login", pageData{
			Title: "Log in",
			Error: userMessage(auth.ErrValidation),
		})
		return
	}

	session, err := h.attemptLogin(r)
	if err != nil {
		h.render(w, r, statusFromError(err), "login", pageData{
			Title: "Log in",
			Error: userMessage(err),
			Email: r.PostFormValue("email"),
		})
		return
	}

	http.SetCookie(w, h.service.Cookies().SessionCookie(session, h.service.Now()))
	http.Redirect(w, r, IndexPath, http.StatusFound)
}

func (h *Handler) attemptLogin(r *http.Request) (*auth.Session, error) {
	email, err := auth.ParseEmail(r.PostFormValue("email"))
	if err != nil {
		return nil, err
	}
	password, err := auth.ParsePassword(r.PostFormValue("password"))
	if err != nil {
		return nil, err
	}
	return h.service.Login(r.Context(), email, password)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.service.Logout(r.Context(), r))
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	id, _ := UserIDFromContext(r.Context())
	h.render(w, r, http.StatusOK, "index", pageData{Title: "Home", UserID: id})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id, _ := UserIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, meResponse{UserID: id})
}
