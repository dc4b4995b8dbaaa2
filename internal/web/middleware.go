// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package web

import (
	"context"
	"crypto/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"

	"github.com/aosauth/aosauth/internal/auth"
	"github.com/aosauth/aosauth/internal/logging"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type ctxKey int

const userIDKey ctxKey = iota

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// UserIDFromContext returns the user authenticated by RequireSession.
func UserIDFromContext(ctx context.Context) (auth.UserID, bool) {
	id, ok := ctx.Value(userIDKey).(auth.UserID)
	return id, ok
}

func withUserID(ctx context.Context, id auth.UserID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// withRequestID assigns a ULID request id, echoes it in the response and
// stores it in the context for the log handler. A well-formed incoming id
// is reused.
func (h *Handler) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := ulid.ParseStrict(id); err != nil {
			id = newRequestID()
		}
		w.Header().Set(RequestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

// withAccessLog logs one line per request and counts it by route pattern
// and status.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routeLabel(r)
		h.metrics.RecordHTTPRequest(route, strconv.Itoa(status))

		h.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// RequireSession rejects requests without a live session and stores the
// authenticated user id in the context.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.service.Authenticate(r.Context(), r)
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), id)))
	})
}

// routeLabel returns the pattern as registered. chi's RoutePattern trims
// the trailing slash, which would split /auth/login/ from LoginPath.
func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || len(rctx.RoutePatterns) == 0 {
		return "unmatched"
	}
	return strings.Join(rctx.RoutePatterns, "")
}
