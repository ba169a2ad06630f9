package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/kolekt/internal/user"
)

var errStubUnauthorized = errors.New("unauthorized")

type stubAPI struct {
	mu sync.Mutex

	token    string
	password string
	usr      *user.User

	meCalls int
	meGate  chan struct{}
}

func (s *stubAPI) Login(ctx context.Context, username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if password != s.password {
		return errStubUnauthorized
	}
	s.token = "token-" + username

	return nil
}

func (s *stubAPI) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""

	return nil
}

func (s *stubAPI) Me(ctx context.Context) (*user.User, error) {
	if s.meGate != nil {
		<-s.meGate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.meCalls++
	if s.token == "" {
		return nil, errStubUnauthorized
	}

	return s.usr, nil
}

func (s *stubAPI) HasToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.token != ""
}

func newStubAPI() *stubAPI {
	return &stubAPI{
		password: "admin1234",
		usr:      &user.User{ID: 1, Username: "admin"},
	}
}

func TestLoginResolvesUser(t *testing.T) {
	api := newStubAPI()
	theSession := New(api)

	usr, err := theSession.Login(context.Background(), "admin", "admin1234")
	require.NoError(t, err)
	assert.Equal(t, "admin", usr.Username)

	cached, ok := theSession.User()
	require.True(t, ok)
	assert.Equal(t, int64(1), cached.ID)

	assert.True(t, theSession.Allowed(context.Background()))
}

func TestLoginFailureLeavesGuardClosed(t *testing.T) {
	api := newStubAPI()
	theSession := New(api)

	_, err := theSession.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)

	assert.False(t, theSession.Allowed(context.Background()))

	_, ok := theSession.User()
	assert.False(t, ok)
}

func TestResolveWithoutTokenFailsFast(t *testing.T) {
	api := newStubAPI()
	theSession := New(api)

	_, err := theSession.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, api.meCalls, "no token means no server round trip")
}

func TestResolveIsCachedAfterFirstAnswer(t *testing.T) {
	api := newStubAPI()
	theSession := New(api)

	require.NoError(t, api.Login(context.Background(), "admin", "admin1234"))

	for i := 0; i < 3; i++ {
		usr, err := theSession.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "admin", usr.Username)
	}

	assert.Equal(t, 1, api.meCalls, "one settled resolution serves every later call")
}

func TestLogoutClosesGuard(t *testing.T) {
	api := newStubAPI()
	theSession := New(api)

	_, err := theSession.Login(context.Background(), "admin", "admin1234")
	require.NoError(t, err)
	require.True(t, theSession.Allowed(context.Background()))

	require.NoError(t, theSession.Logout(context.Background()))

	assert.False(t, theSession.Allowed(context.Background()))
}

func TestNoFalsePermitWhileResolutionIsInFlight(t *testing.T) {
	api := newStubAPI()
	api.meGate = make(chan struct{})
	theSession := New(api)

	require.NoError(t, api.Login(context.Background(), "admin", "admin1234"))

	started := make(chan struct{})
	settled := make(chan bool)
	go func() {
		close(started)
		settled <- theSession.Allowed(context.Background())
	}()

	<-started

	// the second caller must block behind the in-flight resolution
	// instead of answering early
	second := make(chan bool)
	go func() {
		second <- theSession.Allowed(context.Background())
	}()

	select {
	case <-settled:
		t.Fatal("the guard answered before resolution settled")
	case <-second:
		t.Fatal("a concurrent caller bypassed the in-flight resolution")
	default:
	}

	close(api.meGate)

	assert.True(t, <-settled)
	assert.True(t, <-second)
	assert.Equal(t, 1, api.meCalls)
}
