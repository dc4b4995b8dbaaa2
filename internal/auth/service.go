// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aosauth/aosauth/internal/observability"
	"github.com/aosauth/aosauth/pkg/errutil"
)

var tracer = otel.Tracer("github.com/aosauth/aosauth/internal/auth")

// dummyPasswordHash is verified when an account does not exist so both
// outcomes pay the same argon2 cost. It never matches any password.
//
//nolint:gosec // G101: not a credential
const dummyPasswordHash PasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service coordinates the login flow and the session protocol.
type Service struct {
	store    IdentityStore
	hasher   PasswordHasher
	logger   *slog.Logger
	metrics  *observability.Metrics
	cookies  CookiePolicy
	lifetime time.Duration
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records login, session and registration outcomes.
func WithMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithCookiePolicy sets the transport attributes of issued cookies.
func WithCookiePolicy(p CookiePolicy) ServiceOption {
	return func(s *Service) { s.cookies = p }
}

// WithSessionLifetime sets how long minted sessions stay valid.
func WithSessionLifetime(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.lifetime = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. The store and hasher are required.
func NewService(store IdentityStore, hasher PasswordHasher, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("identity store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}

	s := &Service{
		store:    store,
		hasher:   hasher,
		logger:   slog.Default(),
		lifetime: DefaultSessionLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Cookies returns the cookie policy used by the service.
func (s *Service) Cookies() CookiePolicy {
	return s.cookies
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// Login checks email and password and, on success, mints and binds a new
// session. Storage and hashing faults wrap ErrInfrastructure; an unknown
// email wraps ErrNoSuchAccount; a wrong password wraps ErrBadCredentials.
func (s *Service) Login(ctx context.Context, email Email, password Password) (*Session, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	session, outcome, err := s.login(ctx, email, password)
	s.metrics.RecordLogin(outcome)
	if err != nil {
		span.SetStatus(codes.Error, outcome)
		if errors.Is(err, ErrInfrastructure) {
			span.RecordError(err)
			errutil.LogErrorContext(ctx, s.logger.With("operation", "login"), "login failed", err)
		} else {
			s.logger.InfoContext(ctx, "login rejected", "outcome", outcome)
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("user_id", session.UserID.String()))
	s.logger.InfoContext(ctx, "login succeeded", "user_id", session.UserID)
	return session, nil
}

func (s *Service) login(ctx context.Context, email Email, password Password) (*Session, string, error) {
	hash, found, err := s.store.PasswordHashFromEmail(ctx, email)
	if err != nil {
		return nil, observability.OutcomeError, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "lookup password hash").
			Wrap(errors.Join(ErrInfrastructure, err))
	}

	if !found {
		//nolint:errcheck // result is discarded; only the cost matters
		s.verify(ctx, password, dummyPasswordHash)
		return nil, observability.OutcomeNoSuchAccount, oops.Code("AUTH_NO_SUCH_ACCOUNT").Wrap(ErrNoSuchAccount)
	}

	ok, err := s.verify(ctx, password, hash)
	if err != nil {
		return nil, observability.OutcomeError, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(errors.Join(ErrInfrastructure, err))
	}
	if !ok {
		return nil, observability.OutcomeBadCredentials, oops.Code("AUTH_BAD_CREDENTIALS").Wrap(ErrBadCredentials)
	}

	session, err := NewSession(s.now(), s.lifetime)
	if err != nil {
		return nil, observability.OutcomeError, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "mint session key").
			Wrap(errors.Join(ErrInfrastructure, err))
	}

	userID, err := s.store.SetSession(ctx, email, session)
	switch {
	case errors.Is(err, ErrNoSuchUser):
		return nil, observability.OutcomeNoSuchAccount, oops.Code("AUTH_NO_SUCH_ACCOUNT").Wrap(ErrNoSuchAccount)
	case err != nil:
		return nil, observability.OutcomeError, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "bind session").
			Wrap(errors.Join(ErrInfrastructure, err))
	}
	session.UserID = userID

	return session, observability.OutcomeSuccess, nil
}

func (s *Service) verify(ctx context.Context, password Password, hash PasswordHash) (bool, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveHash("verify", time.Since(start)) }()
	return s.hasher.Verify(ctx, password, hash)
}

// Logout revokes the session named by the request's cookie, if any, and
// returns the cookie that clears it on the client. Revocation is best
// effort: a storage failure is logged and logout still succeeds.
func (s *Service) Logout(ctx context.Context, r *http.Request) *http.Cookie {
	ctx, span := tracer.Start(ctx, "auth.Logout")
	defer span.End()

	if c, err := r.Cookie(SessionCookieName); err == nil {
		if key, parseErr := ParseSessionKey(c.Value); parseErr == nil {
			if delErr := s.store.DeleteSession(ctx, key); delErr != nil {
				span.RecordError(delErr)
				errutil.LogErrorContext(ctx, s.logger.With("operation", "logout"), "session revocation failed", delErr)
			}
		}
	}

	return s.cookies.LogoutCookie(s.now())
}

// Authenticate resolves the request's session cookie to a user:
//
//  1. no cookie yields ErrNoCookie
//  2. an unparsable value yields ErrMalformedKey
//  3. a storage fault yields ErrInfrastructure; no live binding yields ErrUnknownSession
//  4. otherwise the bound UserID is returned
func (s *Service) Authenticate(ctx context.Context, r *http.Request) (UserID, error) {
	ctx, span := tracer.Start(ctx, "auth.Authenticate", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	id, outcome, err := s.authenticate(ctx, r)
	s.metrics.RecordSessionCheck(outcome)
	if err != nil {
		span.SetStatus(codes.Error, outcome)
		if errors.Is(err, ErrInfrastructure) {
			span.RecordError(err)
			errutil.LogErrorContext(ctx, s.logger.With("operation", "authenticate"), "session lookup failed", err)
		}
		return 0, err
	}
	return id, nil
}

func (s *Service) authenticate(ctx context.Context, r *http.Request) (UserID, string, error) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return 0, observability.OutcomeNoCookie, oops.Code("AUTH_NO_COOKIE").Wrap(ErrNoCookie)
	}

	key, err := ParseSessionKey(c.Value)
	if err != nil {
		return 0, observability.OutcomeMalformedKey, err
	}

	id, found, err := s.store.UserIDFromSession(ctx, key)
	if err != nil {
		return 0, observability.OutcomeError, oops.Code("AUTH_SESSION_LOOKUP_FAILED").
			Wrap(errors.Join(ErrInfrastructure, err))
	}
	if !found {
		return 0, observability.OutcomeUnknownSession, oops.Code("AUTH_UNKNOWN_SESSION").Wrap(ErrUnknownSession)
	}
	return id, observability.OutcomeSuccess, nil
}

// Register hashes password and creates the user. Registering an email that
// already exists returns the existing id and leaves its password unchanged.
func (s *Service) Register(ctx context.Context, email Email, password Password) (UserID, error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer span.End()

	start := time.Now()
	hash, err := s.hasher.Hash(ctx, password)
	s.metrics.ObserveHash("hash", time.Since(start))
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrValidation) {
			s.metrics.RecordRegistration(observability.OutcomeInvalid)
			return 0, err
		}
		s.metrics.RecordRegistration(observability.OutcomeError)
		return 0, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(errors.Join(ErrInfrastructure, err))
	}

	id, err := s.store.CreateUser(ctx, email, hash)
	if err != nil {
		s.metrics.RecordRegistration(observability.OutcomeError)
		span.RecordError(err)
		return 0, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(errors.Join(ErrInfrastructure, err))
	}

	s.metrics.RecordRegistration(observability.OutcomeSuccess)
	s.logger.InfoContext(ctx, "user registered", "user_id", id)
	return id, nil
}
