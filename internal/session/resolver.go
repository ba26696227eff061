// Package session turns a signed-in Principal into the application-level
// UserContext and owns the client's authentication state machine.
//
// THE STATE MACHINE:
//
//	SignedOut → Authenticating → ResolvingProfile → Ready
//
// with the failure edges:
//
//	Authenticating   → SignedOut  (credential rejection)
//	ResolvingProfile → SignedOut  (profile resolution failure)
//	Ready            → SignedOut  (explicit sign-out)
//
// The hard rule: the flow NEVER proceeds past ResolvingProfile as an
// anonymous user. If the profile fetch fails — network error, absent
// profile, missing nickname — the state returns to SignedOut and the
// login screen stays active. There is no "signed in but unknown" state.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/campusfeed/internal/apperror"
	"github.com/sakif/campusfeed/internal/model"
)

// State is one of the four authentication states.
type State int

const (
	SignedOut State = iota
	Authenticating
	ResolvingProfile
	Ready
)

func (s State) String() string {
	switch s {
	case SignedOut:
		return "SignedOut"
	case Authenticating:
		return "Authenticating"
	case ResolvingProfile:
		return "ResolvingProfile"
	case Ready:
		return "Ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Authenticator is the slice of the identity provider the resolver
// consumes. The concrete type is identity.Provider; tests inject a mock.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*model.Principal, error)
	SignOut(ctx context.Context)
}

// ProfileFetcher is the slice of the backend gateway the resolver
// consumes: just the authId → profile lookup.
type ProfileFetcher interface {
	GetUser(ctx context.Context, authID string) (*model.UserContext, error)
}

// Resolver owns the current UserContext. Screens receive the context by
// value at navigation time — Current() hands out copies, never the
// resolver's own pointer, so no screen can mutate another's view of who
// is acting.
type Resolver struct {
	auth     Authenticator
	profiles ProfileFetcher
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	current   *model.UserContext
	listeners []func(State)
}

// NewResolver wires the resolver to its collaborators. Initial state is
// SignedOut.
func NewResolver(auth Authenticator, profiles ProfileFetcher, logger *slog.Logger) *Resolver {
	return &Resolver{
		auth:     auth,
		profiles: profiles,
		logger:   logger,
		state:    SignedOut,
	}
}

// SignIn drives the full chain: Authenticating (credential check with
// the provider), then ResolvingProfile (backend lookup), then Ready.
// On success the returned UserContext is what the login screen passes to
// the authenticated area as its initial navigation parameters.
func (r *Resolver) SignIn(ctx context.Context, email, password string) (*model.UserContext, error) {
	r.setState(Authenticating)

	principal, err := r.auth.SignIn(ctx, email, password)
	if err != nil {
		r.setState(SignedOut)
		return nil, fmt.Errorf("session: signing in: %w", err)
	}

	return r.Resolve(ctx, principal)
}

// Resolve converts a Principal into a UserContext via the backend
// profile lookup. Exposed separately from SignIn so a restored session
// (refresh token survived a restart) enters the same path.
//
// On success the invariant UserContext.AuthID == principal.AuthID holds;
// the gateway builds the context from the same authID it was asked for.
func (r *Resolver) Resolve(ctx context.Context, principal *model.Principal) (*model.UserContext, error) {
	if principal == nil || principal.AuthID == "" {
		r.setState(SignedOut)
		return nil, apperror.ResolutionFailed("", "no signed-in principal")
	}

	r.setState(ResolvingProfile)

	uc, err := r.profiles.GetUser(ctx, principal.AuthID)
	if err != nil {
		// Whatever went wrong — network, absent profile, missing nick —
		// the outcome is the same: back to SignedOut, error surfaced by
		// the login screen, no onward navigation.
		r.resetToSignedOut(ctx)
		r.logger.Warn("profile resolution failed",
			slog.String("authID", principal.AuthID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.ResolutionFailed(principal.AuthID, err.Error())
	}

	if uc.AuthID != principal.AuthID {
		r.resetToSignedOut(ctx)
		return nil, apperror.ResolutionFailed(principal.AuthID,
			fmt.Sprintf("resolved context belongs to %s", uc.AuthID))
	}

	r.mu.Lock()
	cp := *uc
	r.current = &cp
	r.mu.Unlock()
	r.setState(Ready)

	r.logger.Info("session ready",
		slog.String("authID", uc.AuthID),
		slog.String("nickname", uc.Nickname),
	)

	result := *uc
	return &result, nil
}

// SignOut invalidates the current UserContext and returns control to the
// login screen. Any controller still holding an old context must treat
// it as expired — Current() returning nil is the signal.
func (r *Resolver) SignOut(ctx context.Context) {
	r.resetToSignedOut(ctx)
}

// resetToSignedOut is the single exit path back to SignedOut: clears the
// context, signs out of the provider, and fires the state transition so
// listeners return the app to the login screen. Every failure branch
// must end here — a resolver stranded in ResolvingProfile would leave
// the shell waiting forever.
func (r *Resolver) resetToSignedOut(ctx context.Context) {
	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()
	r.auth.SignOut(ctx)
	r.setState(SignedOut)
}

// Current returns a copy of the active UserContext, or nil when no
// session is Ready.
func (r *Resolver) Current() *model.UserContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	cp := *r.current
	return &cp
}

// State returns the current authentication state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// OnStateChanged registers a listener invoked on every transition. The
// app shell uses this to swap screens: Ready replaces the login screen
// with the authenticated area, SignedOut does the reverse.
func (r *Resolver) OnStateChanged(fn func(State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Resolver) setState(s State) {
	r.mu.Lock()
	if r.state == s {
		r.mu.Unlock()
		return
	}
	r.state = s
	fns := make([]func(State), len(r.listeners))
	copy(fns, r.listeners)
	r.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
