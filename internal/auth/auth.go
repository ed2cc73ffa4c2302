package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/sensor-dashboard-service/internal/observability"
)

// Verifier checks credentials.
type Verifier interface {
	Verify(ctx context.Context, username, password string) error
}

// Authenticator turns verified credentials into sessions.
type Authenticator struct {
	users    Verifier
	sessions *SessionStore
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(users Verifier, sessions *SessionStore, logger *slog.Logger, metrics *observability.Metrics) *Authenticator {
	return &Authenticator{users: users, sessions: sessions, logger: logger, metrics: metrics}
}

// Login verifies the credentials and starts a session.
func (a *Authenticator) Login(ctx context.Context, username, password string) (Session, error) {
	if err := a.users.Verify(ctx, username, password); err != nil {
		a.metrics.LoginAttempts.WithLabelValues("failure").Inc()
		if !errors.Is(err, ErrInvalidCredentials) {
			a.logger.Error("credential check failed", "error", err)
		} else {
			a.logger.Info("login rejected", "username", username)
		}
		return Session{}, err
	}
	a.metrics.LoginAttempts.WithLabelValues("success").Inc()
	a.logger.Info("login succeeded", "username", username)
	return a.sessions.Create(username), nil
}

// Session resolves a session token.
func (a *Authenticator) Session(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	return a.sessions.Lookup(token)
}

// Logout ends the session for token.
func (a *Authenticator) Logout(token string) {
	a.sessions.Revoke(token)
}
