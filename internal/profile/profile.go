// Package profile backs the registration form and the profile screen:
// account creation across both collaborators, the user's own
// publications, and profile-picture updates.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/campusfeed/internal/apperror"
	"github.com/sakif/campusfeed/internal/model"
)

// Gateway is the slice of the backend client this service consumes.
type Gateway interface {
	GetUser(ctx context.Context, authID string) (*model.UserContext, error)
	RegisterUser(ctx context.Context, req model.RegisterUserRequest) error
	UpdateProfilePicture(ctx context.Context, authID, pictureURL string) error
	ListUserPublications(ctx context.Context, nick string) ([]model.Publication, error)
}

// Accounts is the slice of the identity provider used by registration.
type Accounts interface {
	SignUp(ctx context.Context, email, password string) (*model.Principal, error)
}

// Uploader pushes the new profile picture to the upload service.
type Uploader interface {
	Upload(ctx context.Context, filename string, content []byte) (string, error)
}

// Service orchestrates the profile flows. Unlike the feed/comment
// controllers it holds no view state — the profile screen re-fetches on
// every focus.
type Service struct {
	gateway  Gateway
	accounts Accounts
	uploader Uploader
	logger   *slog.Logger
}

func NewService(gateway Gateway, accounts Accounts, uploader Uploader, logger *slog.Logger) *Service {
	return &Service{
		gateway:  gateway,
		accounts: accounts,
		uploader: uploader,
		logger:   logger,
	}
}

// Register creates the account with the identity provider, then the
// profile with the backend. If the second step fails the provider
// account exists without a backend profile; that inconsistency is
// surfaced to the user (the original app left it silent and
// unreconciled — we at least say so).
func (s *Service) Register(ctx context.Context, email, password, nick, name, surnames string) (*model.Principal, error) {
	email = strings.TrimSpace(email)
	nick = strings.TrimSpace(nick)
	name = strings.TrimSpace(name)

	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "a valid email is required")
	}
	if len(password) < 6 {
		return nil, apperror.ValidationFailed("password", "password must be at least 6 characters")
	}
	if nick == "" {
		return nil, apperror.ValidationFailed("nick", "nickname is required")
	}
	if name == "" {
		return nil, apperror.ValidationFailed("nombre", "name is required")
	}

	principal, err := s.accounts.SignUp(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("profile: creating account: %w", err)
	}

	err = s.gateway.RegisterUser(ctx, model.RegisterUserRequest{
		Nick:           nick,
		UserID:         principal.AuthID,
		Name:           name,
		Surnames:       strings.TrimSpace(surnames),
		ProfilePicture: "",
	})
	if err != nil {
		s.logger.Error("account created but profile registration failed",
			slog.String("authID", principal.AuthID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("profile: registering profile for %s: %w", principal.AuthID, err)
	}

	s.logger.Info("user registered",
		slog.String("authID", principal.AuthID),
		slog.String("nick", nick),
	)
	return principal, nil
}

// View is what the profile screen renders: the fresh profile plus the
// user's own publications.
type View struct {
	User         model.UserContext
	Publications []model.Publication
}

// Load re-fetches the profile and the user's publications. Called on
// every screen focus — no caching between visits.
func (s *Service) Load(ctx context.Context, userCtx model.UserContext) (*View, error) {
	fresh, err := s.gateway.GetUser(ctx, userCtx.AuthID)
	if err != nil {
		return nil, fmt.Errorf("profile: loading user %s: %w", userCtx.AuthID, err)
	}

	pubs, err := s.gateway.ListUserPublications(ctx, fresh.Nickname)
	if err != nil {
		// The read path stays quiet: show the profile with an empty
		// grid rather than failing the whole screen.
		s.logger.Warn("own publications load failed",
			slog.String("nick", fresh.Nickname),
			slog.String("error", err.Error()),
		)
		pubs = []model.Publication{}
	}

	return &View{User: *fresh, Publications: pubs}, nil
}

// UpdatePicture uploads the new image and stores its URL on the
// backend profile. Returns the stored URL.
func (s *Service) UpdatePicture(ctx context.Context, userCtx model.UserContext, image []byte) (string, error) {
	if len(image) == 0 {
		return "", apperror.ValidationFailed("file", "image content is empty")
	}

	url, err := s.uploader.Upload(ctx, "profile.jpg", image)
	if err != nil {
		return "", fmt.Errorf("profile: uploading picture: %w", err)
	}

	if err := s.gateway.UpdateProfilePicture(ctx, userCtx.AuthID, url); err != nil {
		return "", fmt.Errorf("profile: storing picture for %s: %w", userCtx.AuthID, err)
	}

	s.logger.Info("profile picture updated", slog.String("authID", userCtx.AuthID))
	return url, nil
}
