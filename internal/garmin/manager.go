package garmin

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SessionStateKey is the key-value slot holding the serialized session blob.
const SessionStateKey = "garth_session"

// SessionOutcome tags how Ensure obtained a usable session.
type SessionOutcome string

const (
	// SessionResumed means a persisted session was still valid.
	SessionResumed SessionOutcome = "resumed"
	// SessionFreshLogin means a full credential login was performed.
	SessionFreshLogin SessionOutcome = "fresh_login"
)

// StateStore is the narrow key-value contract the manager persists sessions through.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool, error)
	PutState(ctx context.Context, key, value string) error
}

type sessionAPI interface {
	Login(ctx context.Context, username, password string) (Session, error)
	UserProfile(ctx context.Context, session Session) (string, error)
}

// SessionManager resumes a persisted Garmin session when still valid and
// falls back to a fresh credential login otherwise.
type SessionManager struct {
	api      sessionAPI
	state    StateStore
	username string
	password string
	logger   *zap.Logger
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(api sessionAPI, state StateStore, username, password string, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		api:      api,
		state:    state,
		username: username,
		password: password,
		logger:   logger,
	}
}

// Ensure returns an authenticated session, resuming the persisted one when a
// probe call succeeds. Every resume failure falls through to fresh login; only
// missing credentials or a rejected login are fatal. A successful fresh login
// overwrites the persisted blob, the single session write per run.
func (m *SessionManager) Ensure(ctx context.Context) (Session, SessionOutcome, error) {
	if session, ok := m.resume(ctx); ok {
		return session, SessionResumed, nil
	}

	if m.username == "" || m.password == "" {
		return Session{}, "", ErrNoCredentials
	}

	m.logger.Info("performing fresh garmin login", zap.String("username", m.username))
	session, err := m.api.Login(ctx, m.username, m.password)
	if err != nil {
		return Session{}, "", fmt.Errorf("fresh login failed: %w", err)
	}

	blob, err := session.Encode()
	if err != nil {
		m.logger.Warn("could not serialize session", zap.Error(err))
		return session, SessionFreshLogin, nil
	}
	if err := m.state.PutState(ctx, SessionStateKey, blob); err != nil {
		// The session itself works; losing the blob only costs a login next run.
		m.logger.Warn("could not persist session", zap.Error(err))
	}

	return session, SessionFreshLogin, nil
}

func (m *SessionManager) resume(ctx context.Context) (Session, bool) {
	blob, found, err := m.state.GetState(ctx, SessionStateKey)
	if err != nil {
		m.logger.Warn("could not read persisted session", zap.Error(err))
		return Session{}, false
	}
	if !found {
		return Session{}, false
	}

	session, err := DecodeSession(blob)
	if err != nil {
		m.logger.Warn("persisted session blob is malformed", zap.Error(err))
		return Session{}, false
	}

	if _, err := m.api.UserProfile(ctx, session); err != nil {
		m.logger.Info("persisted session no longer valid, logging in again", zap.Error(err))
		return Session{}, false
	}

	m.logger.Info("resumed existing garmin session", zap.String("username", session.Username))
	return session, true
}
