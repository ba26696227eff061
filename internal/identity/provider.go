// Package identity wraps the third-party identity provider the app
// authenticates against.
//
// AUTHENTICATION FLOW OVERVIEW:
//
//	1. The login screen calls SignIn(email, password)
//	2. The provider verifies the credentials and returns an ID token (a
//	   JWT whose "sub" claim is the stable account ID) plus a refresh token
//	3. We decode the ID token to obtain the Principal and notify auth-state
//	   listeners — the session resolver reacts by fetching the profile
//	4. When the ID token expires, the oauth2 TokenSource transparently
//	   trades the refresh token for a fresh one at the token endpoint
//
// WHY ParseUnverified?
// The provider signs its tokens with ITS key, which the client does not
// hold (and must not — verification is the backend's job). The client
// receives the token over TLS directly from the provider, so it only
// decodes the claims it needs: subject and expiry. Nothing
// security-sensitive is decided client-side based on these claims.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
	"golang.org/x/oauth2"

	"github.com/sakif/campusfeed/internal/apperror"
	"github.com/sakif/campusfeed/internal/model"
)

// SessionStore persists the refresh token of the signed-in session so
// the app can resume without asking for the password again. Implemented
// by store/sqlite; nil disables persistence.
type SessionStore interface {
	Save(ctx context.Context, authID, email, refreshToken string) error
	Load(ctx context.Context) (authID, email, refreshToken string, err error)
	Clear(ctx context.Context) error
}

// Provider is the identity provider client. One Provider instance exists
// per app process; screens never talk to it directly — the session
// resolver does.
type Provider struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
	store   SessionStore

	mu        sync.Mutex
	principal *model.Principal
	token     *oauth2.Token
	email     string
	listeners map[string]func(*model.Principal)
}

// Config for New. BaseURL is the provider's REST root; APIKey is the
// project key sent with every call.
type Config struct {
	BaseURL string
	APIKey  string
}

// New creates a Provider. httpClient should carry the transport logging
// middleware; store may be nil to disable session persistence.
func New(cfg Config, httpClient *http.Client, store SessionStore, logger *slog.Logger) *Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Provider{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		http:      httpClient,
		logger:    logger,
		store:     store,
		listeners: make(map[string]func(*model.Principal)),
	}
}

// credentialsRequest is the body for both sign-in and sign-up.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenResponse is what the provider returns from sign-in, sign-up and
// the token endpoint.
type tokenResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"` // seconds, as a string (provider quirk)
}

// SignIn authenticates with email and password. On success the Principal
// is returned AND auth-state listeners fire — the same event path as a
// restored session, so the resolver has a single entry point.
//
// A credential rejection (4xx from the provider) returns
// apperror.ErrAuthRejected; the login screen shows a modal and stays put.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*model.Principal, error) {
	return p.authenticate(ctx, "/v1/accounts/signin", email, password)
}

// SignUp creates a new account with the provider. The backend profile is
// created separately (see the profile package) — the provider only knows
// email and password.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*model.Principal, error) {
	return p.authenticate(ctx, "/v1/accounts/signup", email, password)
}

func (p *Provider) authenticate(ctx context.Context, path, email, password string) (*model.Principal, error) {
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("credentials", "email and password are required")
	}

	var tr tokenResponse
	if err := p.post(ctx, path, credentialsRequest{Email: email, Password: password}, &tr); err != nil {
		return nil, err
	}

	principal, token, err := p.principalFromToken(tr)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.principal = principal
	p.token = token
	p.email = email
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.Save(ctx, principal.AuthID, email, tr.RefreshToken); err != nil {
			// Persistence is a convenience, not a requirement — a failed
			// save just means the user signs in again next launch.
			p.logger.Warn("failed to persist session", slog.String("error", err.Error()))
		}
	}

	p.logger.Info("signed in", slog.String("authID", principal.AuthID))
	p.notify(principal)
	return principal, nil
}

// Restore resumes the previous session from the persisted refresh token,
// if one exists. Returns (nil, nil) when there is nothing to restore —
// that is the normal first-launch case, not an error.
func (p *Provider) Restore(ctx context.Context) (*model.Principal, error) {
	if p.store == nil {
		return nil, nil
	}
	authID, email, refreshToken, err := p.store.Load(ctx)
	if err != nil || refreshToken == "" {
		return nil, nil
	}

	tr, err := p.refresh(ctx, refreshToken)
	if err != nil {
		// The refresh token was revoked or expired — drop it and fall
		// back to the login screen.
		p.logger.Info("stored session no longer valid", slog.String("authID", authID))
		_ = p.store.Clear(ctx)
		return nil, nil
	}

	principal, token, err := p.principalFromToken(*tr)
	if err != nil {
		_ = p.store.Clear(ctx)
		return nil, nil
	}

	p.mu.Lock()
	p.principal = principal
	p.token = token
	p.email = email
	p.mu.Unlock()

	p.logger.Info("session restored", slog.String("authID", principal.AuthID))
	p.notify(principal)
	return principal, nil
}

// SignOut invalidates the current session: the in-memory token is
// dropped, the persisted credential is cleared, and listeners are
// notified with nil so every screen holding a UserContext treats it as
// expired and returns to the login screen.
func (p *Provider) SignOut(ctx context.Context) {
	p.mu.Lock()
	wasSignedIn := p.principal != nil
	p.principal = nil
	p.token = nil
	p.email = ""
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.Clear(ctx); err != nil {
			p.logger.Warn("failed to clear persisted session", slog.String("error", err.Error()))
		}
	}

	if wasSignedIn {
		p.logger.Info("signed out")
		p.notify(nil)
	}
}

// Current returns the signed-in Principal, or nil.
func (p *Provider) Current() *model.Principal {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.principal == nil {
		return nil
	}
	cp := *p.principal
	return &cp
}

// OnAuthStateChanged registers a listener fired with the Principal on
// sign-in / restore and nil on sign-out. The returned function
// unsubscribes — call it when the owning screen goes away, exactly like
// the unsubscribe function the original SDK returned.
func (p *Provider) OnAuthStateChanged(fn func(*model.Principal)) (unsubscribe func()) {
	id := xid.New().String()
	p.mu.Lock()
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) notify(principal *model.Principal) {
	p.mu.Lock()
	fns := make([]func(*model.Principal), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	// Listeners run outside the lock — they may call back into Provider.
	for _, fn := range fns {
		var cp *model.Principal
		if principal != nil {
			c := *principal
			cp = &c
		}
		fn(cp)
	}
}

// TokenSource returns an oauth2.TokenSource for the current session.
// oauth2.ReuseTokenSource caches the ID token until shortly before its
// expiry, then calls our refreshSource to trade the refresh token for a
// new one — the same lazy-refresh behaviour oauth2.Config.Client gives
// server-side apps.
func (p *Provider) TokenSource(ctx context.Context) oauth2.TokenSource {
	p.mu.Lock()
	current := p.token
	p.mu.Unlock()
	return oauth2.ReuseTokenSource(current, &refreshSource{ctx: ctx, provider: p})
}

// refreshSource implements oauth2.TokenSource by calling the provider's
// token endpoint. ReuseTokenSource only invokes it when the cached token
// has expired.
type refreshSource struct {
	ctx      context.Context
	provider *Provider
}

func (s *refreshSource) Token() (*oauth2.Token, error) {
	p := s.provider

	p.mu.Lock()
	token := p.token
	p.mu.Unlock()
	if token == nil || token.RefreshToken == "" {
		return nil, apperror.AuthRejected("no active session")
	}

	tr, err := p.refresh(s.ctx, token.RefreshToken)
	if err != nil {
		return nil, err
	}

	_, fresh, err := p.principalFromToken(*tr)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.token = fresh
	p.mu.Unlock()
	return fresh, nil
}

// refreshRequest is the body for the token endpoint.
type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

func (p *Provider) refresh(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	var tr tokenResponse
	err := p.post(ctx, "/v1/token", refreshRequest{
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
	}, &tr)
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// principalFromToken decodes the ID token (claims only, see package doc)
// and builds the Principal plus the oauth2.Token used for refresh.
func (p *Provider) principalFromToken(tr tokenResponse) (*model.Principal, *oauth2.Token, error) {
	if tr.IDToken == "" {
		return nil, nil, apperror.DecodeFailed("identity token", "response has no idToken")
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tr.IDToken, &claims); err != nil {
		return nil, nil, apperror.DecodeFailed("identity token", fmt.Sprintf("parsing ID token: %v", err))
	}
	if claims.Subject == "" {
		return nil, nil, apperror.DecodeFailed("identity token", "ID token has no subject")
	}

	expiry := time.Now().Add(55 * time.Minute)
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	} else if secs, err := strconv.Atoi(tr.ExpiresIn); err == nil && secs > 0 {
		expiry = time.Now().Add(time.Duration(secs) * time.Second)
	}

	principal := &model.Principal{AuthID: claims.Subject}
	token := &oauth2.Token{
		AccessToken:  tr.IDToken,
		TokenType:    "Bearer",
		RefreshToken: tr.RefreshToken,
		Expiry:       expiry,
	}
	return principal, token, nil
}

// post sends a JSON request to the provider and decodes the JSON reply.
// 4xx means the provider rejected the credentials or the refresh token;
// anything else unexpected is a transport failure.
func (p *Provider) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("identity: encoding request: %w", err)
	}

	url := p.baseURL + path
	if p.apiKey != "" {
		url += "?key=" + p.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("identity: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return apperror.Unavailable("identity provider", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return apperror.AuthRejected("wrong email or password")
	}
	if resp.StatusCode != http.StatusOK {
		return apperror.Unavailable("identity provider",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.DecodeFailed("identity provider", fmt.Sprintf("decoding response: %v", err))
	}
	return nil
}
