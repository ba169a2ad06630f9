// Package session tracks the authenticated user on the client side and
// answers the "may this screen open" question. Resolution against the
// server happens at most once per login; concurrent callers block until
// the in-flight resolution settles, so the guard never permits access
// before the answer is known.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/patric-chuzhbe/kolekt/internal/user"
)

// ErrNotAuthenticated is returned when no valid session exists.
var ErrNotAuthenticated = errors.New("not authenticated")

type apiClient interface {
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*user.User, error)
	HasToken() bool
}

// Session is a concurrency-safe session guard built on an API client.
type Session struct {
	api apiClient

	mu       sync.Mutex
	resolved bool
	usr      *user.User
}

// New creates a session guard over the given API client.
func New(api apiClient) *Session {
	return &Session{api: api}
}

// Login verifies the credentials with the server and resolves the user
// record for the fresh session.
func (s *Session) Login(ctx context.Context, username, password string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.api.Login(ctx, username, password); err != nil {
		return nil, err
	}

	usr, err := s.api.Me(ctx)
	if err != nil {
		s.resolved = true
		s.usr = nil

		return nil, err
	}

	s.resolved = true
	s.usr = usr

	return usr, nil
}

// Logout acknowledges the logout with the server and forgets the session
// state regardless of the server outcome.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.api.Logout(ctx)
	s.resolved = true
	s.usr = nil

	return err
}

// Resolve returns the authenticated user, asking the server when the
// answer is not cached yet. The mutex keeps concurrent callers waiting
// on one resolution instead of racing past an unsettled state.
func (s *Session) Resolve(ctx context.Context) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved {
		if s.usr == nil {
			return nil, ErrNotAuthenticated
		}

		return s.usr, nil
	}

	if !s.api.HasToken() {
		s.resolved = true

		return nil, ErrNotAuthenticated
	}

	usr, err := s.api.Me(ctx)
	if err != nil {
		s.resolved = true
		s.usr = nil

		return nil, err
	}

	s.resolved = true
	s.usr = usr

	return usr, nil
}

// Allowed reports whether a protected screen may open. It blocks while
// a resolution is in flight and never answers true on an unsettled
// session.
func (s *Session) Allowed(ctx context.Context) bool {
	_, err := s.Resolve(ctx)

	return err == nil
}

// User returns the cached user record without touching the server.
func (s *Session) User() (*user.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.usr, s.usr != nil
}
