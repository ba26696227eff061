package session

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/campusfeed/internal/apperror"
	"github.com/sakif/campusfeed/internal/model"
)

// =========================================================================
// MOCKS
// =========================================================================

type mockAuth struct {
	accounts     map[string]string // email → password
	authIDs      map[string]string // email → authID
	signOutCalls int
}

func (m *mockAuth) SignIn(_ context.Context, email, password string) (*model.Principal, error) {
	if m.accounts[email] != password {
		return nil, apperror.AuthRejected("wrong email or password")
	}
	return &model.Principal{AuthID: m.authIDs[email]}, nil
}

func (m *mockAuth) SignOut(context.Context) {
	m.signOutCalls++
}

type mockProfiles struct {
	users map[string]*model.UserContext // authID → context
	err   error                         // forced error, wins over users
}

func (m *mockProfiles) GetUser(_ context.Context, authID string) (*model.UserContext, error) {
	if m.err != nil {
		return nil, m.err
	}
	uc, ok := m.users[authID]
	if !ok {
		return nil, apperror.NotFound("user", authID)
	}
	cp := *uc
	return &cp, nil
}

func newTestResolver(t *testing.T, profiles *mockProfiles) (*Resolver, *mockAuth) {
	t.Helper()
	auth := &mockAuth{
		accounts: map[string]string{"ana@example.com": "secret123"},
		authIDs:  map[string]string{"ana@example.com": "u1"},
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewResolver(auth, profiles, logger), auth
}

// recordStates attaches a listener that records every transition.
func recordStates(r *Resolver) *[]State {
	var states []State
	r.OnStateChanged(func(s State) {
		states = append(states, s)
	})
	return &states
}

// =========================================================================
// SUCCESSFUL RESOLUTION
// =========================================================================

func TestSignInResolvesUserContext(t *testing.T) {
	profiles := &mockProfiles{users: map[string]*model.UserContext{
		"u1": {AuthID: "u1", Nickname: "ana"},
	}}
	r, _ := newTestResolver(t, profiles)
	states := recordStates(r)

	uc, err := r.SignIn(context.Background(), "ana@example.com", "secret123")
	require.NoError(t, err)

	assert.Equal(t, "u1", uc.AuthID, "UserContext.AuthID must equal principal.AuthID")
	assert.Equal(t, "ana", uc.Nickname)
	assert.Empty(t, uc.ProfileImageURL)

	assert.Equal(t, []State{Authenticating, ResolvingProfile, Ready}, *states)
	assert.Equal(t, Ready, r.State())
}

func TestCurrentReturnsACopy(t *testing.T) {
	profiles := &mockProfiles{users: map[string]*model.UserContext{
		"u1": {AuthID: "u1", Nickname: "ana"},
	}}
	r, _ := newTestResolver(t, profiles)

	_, err := r.SignIn(context.Background(), "ana@example.com", "secret123")
	require.NoError(t, err)

	first := r.Current()
	require.NotNil(t, first)
	first.Nickname = "mallory" // a screen mutating its copy

	second := r.Current()
	assert.Equal(t, "ana", second.Nickname, "screens receive copies, not shared state")
}

// =========================================================================
// CREDENTIAL REJECTION
// =========================================================================

func TestSignInRejectedReturnsToSignedOut(t *testing.T) {
	profiles := &mockProfiles{users: map[string]*model.UserContext{}}
	r, _ := newTestResolver(t, profiles)
	states := recordStates(r)

	_, err := r.SignIn(context.Background(), "ana@example.com", "wrong")
	assert.ErrorIs(t, err, apperror.ErrAuthRejected)

	assert.Equal(t, []State{Authenticating, SignedOut}, *states)
	assert.Nil(t, r.Current())
}

// =========================================================================
// RESOLUTION FAILURE BLOCKS NAVIGATION
// =========================================================================

func TestResolutionFailureBlocksNavigation(t *testing.T) {
	// The backend returned a payload without a nick → the gateway turns
	// that into a decode error → the resolver must not proceed.
	profiles := &mockProfiles{err: apperror.DecodeFailed("GET /users/u1", "profile has no nick")}
	r, _ := newTestResolver(t, profiles)
	states := recordStates(r)

	_, err := r.SignIn(context.Background(), "ana@example.com", "secret123")
	assert.ErrorIs(t, err, apperror.ErrResolution)

	assert.Equal(t, []State{Authenticating, ResolvingProfile, SignedOut}, *states)
	assert.Nil(t, r.Current(), "no anonymous session after a failed resolution")
	assert.Equal(t, SignedOut, r.State())
}

func TestResolveNilPrincipal(t *testing.T) {
	profiles := &mockProfiles{}
	r, _ := newTestResolver(t, profiles)

	_, err := r.Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, apperror.ErrResolution)
	assert.Equal(t, SignedOut, r.State())
}

func TestResolveMismatchedContext(t *testing.T) {
	// A gateway bug handing back somebody else's context must not slip
	// through — the invariant is UserContext.AuthID == principal.AuthID.
	profiles := &mockProfiles{users: map[string]*model.UserContext{
		"u1": {AuthID: "other", Nickname: "bob"},
	}}
	r, _ := newTestResolver(t, profiles)
	states := recordStates(r)

	_, err := r.Resolve(context.Background(), &model.Principal{AuthID: "u1"})
	assert.ErrorIs(t, err, apperror.ErrResolution)
	assert.Nil(t, r.Current())
	assert.Equal(t, []State{ResolvingProfile, SignedOut}, *states)
	assert.Equal(t, SignedOut, r.State())
}

// =========================================================================
// SIGN-OUT
// =========================================================================

func TestSignOutInvalidatesContext(t *testing.T) {
	profiles := &mockProfiles{users: map[string]*model.UserContext{
		"u1": {AuthID: "u1", Nickname: "ana"},
	}}
	r, auth := newTestResolver(t, profiles)

	_, err := r.SignIn(context.Background(), "ana@example.com", "secret123")
	require.NoError(t, err)
	states := recordStates(r)

	r.SignOut(context.Background())

	assert.Nil(t, r.Current(), "UserContext invalidated on sign-out")
	assert.Equal(t, SignedOut, r.State())
	assert.Equal(t, []State{SignedOut}, *states)
	assert.Equal(t, 1, auth.signOutCalls, "provider sign-out invoked")
}

// =========================================================================
// RESTORED SESSIONS
// =========================================================================

func TestResolveRestoredPrincipal(t *testing.T) {
	// A restored session enters through Resolve directly — same path,
	// same invariants, no Authenticating state.
	profiles := &mockProfiles{users: map[string]*model.UserContext{
		"u1": {AuthID: "u1", Nickname: "ana", ProfileImageURL: "http://img/ana.jpg"},
	}}
	r, _ := newTestResolver(t, profiles)
	states := recordStates(r)

	uc, err := r.Resolve(context.Background(), &model.Principal{AuthID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "ana", uc.Nickname)
	assert.Equal(t, []State{ResolvingProfile, Ready}, *states)
}
