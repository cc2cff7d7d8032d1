// Package session owns the authenticated identity: login, register, logout and
// restoring a persisted token on start.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/studyassist/internal/guard"
	"github.com/pavelanni/studyassist/internal/i18n"
	"github.com/pavelanni/studyassist/internal/model"
	"github.com/pavelanni/studyassist/internal/notify"
	"github.com/pavelanni/studyassist/internal/store"
)

// Authenticator is the part of the API client the session store needs.
type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials) (string, error)
	Register(ctx context.Context, creds model.Credentials) (string, error)
}

// Store is the Session Store. It is the single writer of the identity in AppState.
type Store struct {
	state  *model.AppState
	api    Authenticator
	kv     store.KV
	notify notify.Notifier
	guard  *guard.Guard
	inline notify.Inline
}

// New creates a session store.
func New(state *model.AppState, api Authenticator, kv store.KV, n notify.Notifier) *Store {
	return &Store{state: state, api: api, kv: kv, notify: n, guard: guard.New()}
}

// Pending reports whether a login or register call is in flight.
func (s *Store) Pending() bool {
	return s.guard.Busy()
}

// InlineError is the message shown under the login form after a failed attempt.
func (s *Store) InlineError() string {
	return s.inline.Get()
}

// Current returns the identity held in AppState.
func (s *Store) Current() model.Session {
	return s.state.Session()
}

// Login authenticates against /login.
func (s *Store) Login(ctx context.Context, username, password string) (model.Session, error) {
	return s.authenticate(ctx, username, password, false)
}

// Register creates an account and is immediately authenticated.
func (s *Store) Register(ctx context.Context, username, password string) (model.Session, error) {
	return s.authenticate(ctx, username, password, true)
}

func (s *Store) authenticate(ctx context.Context, username, password string, register bool) (model.Session, error) {
	release, ok := s.guard.TryAcquire()
	if !ok {
		return model.Session{}, model.NewError(model.KindBusy, i18n.T(ctx, "Busy"))
	}
	defer release()
	s.inline.Clear()

	if strings.TrimSpace(username) == "" || password == "" {
		err := model.NewError(model.KindValidation, i18n.T(ctx, "CredentialsRequired"))
		s.inline.Set(err.Message)
		s.notify.Notify(notify.LevelError, err.Message)
		return model.Session{}, err
	}

	creds := model.Credentials{Username: username, Password: password}
	var token string
	var err error
	if register {
		token, err = s.api.Register(ctx, creds)
	} else {
		token, err = s.api.Login(ctx, creds)
	}
	if err != nil {
		// Prior state is left untouched on failure.
		msg := model.MessageOf(err, i18n.T(ctx, "AuthFailed"))
		slog.Warn("authentication failed", "username", username, "register", register, "error", err)
		s.inline.Set(msg)
		s.notify.Notify(notify.LevelError, msg)
		return model.Session{}, err
	}

	sess := model.Session{Username: username, Token: token}
	if err := s.persist(ctx, sess); err != nil {
		// The in-memory session is still valid; only the durable copy is missing.
		slog.Error("failed to persist session token", "error", err)
	}
	s.state.SetSession(sess)
	slog.Info("authenticated", "username", username, "register", register)

	if register {
		s.notify.Notify(notify.LevelSuccess, i18n.T(ctx, "Registered"))
	} else {
		s.notify.Notify(notify.LevelSuccess, i18n.T(ctx, "LoggedIn"))
	}
	s.notify.Notify(notify.LevelSuccess, i18n.Td(ctx, "WelcomeUser", map[string]any{"Username": username}))
	return sess, nil
}

func (s *Store) persist(ctx context.Context, sess model.Session) error {
	if err := s.kv.Set(ctx, store.KeyToken, sess.Token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := s.kv.Set(ctx, store.KeyUsername, sess.Username); err != nil {
		return fmt.Errorf("save username: %w", err)
	}
	return nil
}

// Logout clears the identity, both selections and the durable copy, and forces
// the login view. It always succeeds and may be called repeatedly.
func (s *Store) Logout(ctx context.Context) {
	wasAuthenticated := s.state.Session().Authenticated()
	s.state.Reset()
	if err := s.kv.Delete(ctx, store.KeyToken, store.KeyUsername); err != nil {
		slog.Error("failed to remove persisted token", "error", err)
	}
	if wasAuthenticated {
		slog.Info("logged out")
		s.notify.Notify(notify.LevelInfo, i18n.T(ctx, "LoggedOut"))
	}
}

// Restore reloads a persisted session. It reports whether one was found.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	token, err := s.kv.Get(ctx, store.KeyToken)
	if err != nil {
		return false, fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		return false, nil
	}
	username, err := s.kv.Get(ctx, store.KeyUsername)
	if err != nil {
		return false, fmt.Errorf("load username: %w", err)
	}
	s.state.SetSession(model.Session{Username: username, Token: token})
	slog.Debug("restored session", "username", username)
	return true, nil
}
