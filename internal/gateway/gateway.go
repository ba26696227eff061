// Package gateway is the typed REST client for the community backend.
//
// THE ONE RULE OF THIS PACKAGE:
// Every response is decoded into an explicit struct from internal/model
// and validated before it leaves this package. The original client
// consumed duck-typed JSON and propagated undefined-shaped data into the
// UI; here a payload that does not match its contract is a typed decode
// error, surfaced immediately.
//
// ERROR MAPPING (transport → domain):
//
//	connection failure  → apperror.ErrUnavailable
//	404                 → apperror.ErrNotFound
//	401 / 403           → apperror.ErrAuthRejected
//	other non-2xx       → apperror.ErrUnavailable
//	malformed body      → apperror.ErrDecode
//
// Controllers only ever see apperror sentinels, never HTTP status codes.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sakif/campusfeed/internal/apperror"
	"github.com/sakif/campusfeed/internal/model"
)

// Client talks to the REST backend. All endpoints are relative to the
// configured host (the original app's API_HOST).
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a gateway client. httpClient should carry the transport
// logging middleware; pass nil to use http.DefaultClient.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger,
	}
}

// userDocument is the wire shape of GET /users/{authId}. ProfilePicture
// is a pointer because the backend sends an explicit null for users who
// never set one.
type userDocument struct {
	Nick           string  `json:"nick"`
	ProfilePicture *string `json:"profile_picture"`
}

// GetUser resolves an opaque auth ID to the application-level profile.
// A profile without a nickname is a contract violation (the register
// flow always sets one) and fails the resolution rather than letting an
// anonymous-looking user through.
func (c *Client) GetUser(ctx context.Context, authID string) (*model.UserContext, error) {
	op := "GET /users/" + authID

	var doc userDocument
	if err := c.get(ctx, "/users/"+url.PathEscape(authID), op, &doc); err != nil {
		return nil, err
	}

	if doc.Nick == "" {
		return nil, apperror.DecodeFailed(op, "profile has no nick")
	}

	uc := &model.UserContext{
		AuthID:   authID,
		Nickname: doc.Nick,
	}
	if doc.ProfilePicture != nil {
		uc.ProfileImageURL = *doc.ProfilePicture
	}
	return uc, nil
}

// RegisterUser creates the backend profile right after the identity
// provider account is created.
func (c *Client) RegisterUser(ctx context.Context, req model.RegisterUserRequest) error {
	if req.Nick == "" {
		return apperror.ValidationFailed("nick", "nickname is required")
	}
	return c.send(ctx, http.MethodPost, "/users", "POST /users", req, nil)
}

// UpdateProfilePicture stores a new profile picture URL for the user.
// The image itself was already uploaded (see the uploader package); the
// backend only keeps the URL.
func (c *Client) UpdateProfilePicture(ctx context.Context, authID, pictureURL string) error {
	body := struct {
		ProfilePicture string `json:"profile_picture"`
	}{ProfilePicture: pictureURL}
	path := "/users/" + url.PathEscape(authID)
	return c.send(ctx, http.MethodPut, path, "PUT /users/"+authID, body, nil)
}

// ListPublications fetches the whole feed. Publications are normalized
// on the way in (nil like arrays, duplicate nicknames) so controllers
// never see the backend's rough edges. Ordering is applied by the feed
// controller, not here.
func (c *Client) ListPublications(ctx context.Context) ([]model.Publication, error) {
	var pubs []model.Publication
	if err := c.get(ctx, "/publicaciones", "GET /publicaciones", &pubs); err != nil {
		return nil, err
	}
	for i := range pubs {
		pubs[i].Normalize()
	}
	return pubs, nil
}

// ListUserPublications fetches one user's publications for the profile
// screen.
func (c *Client) ListUserPublications(ctx context.Context, nick string) ([]model.Publication, error) {
	path := "/publicaciones/user/" + url.PathEscape(nick)
	var pubs []model.Publication
	if err := c.get(ctx, path, "GET /publicaciones/user/"+nick, &pubs); err != nil {
		return nil, err
	}
	for i := range pubs {
		pubs[i].Normalize()
	}
	return pubs, nil
}

// CreatePublication posts a new publication and returns the created
// object as the backend stored it.
func (c *Client) CreatePublication(ctx context.Context, req model.CreatePublicationRequest) (*model.Publication, error) {
	var created model.Publication
	if err := c.send(ctx, http.MethodPost, "/publicaciones", "POST /publicaciones", req, &created); err != nil {
		return nil, err
	}
	created.Normalize()
	return &created, nil
}

// ToggleLike flips the membership of nick in the publication's like set
// server-side. The backend owns the actual toggle semantics; the client
// applies its optimistic mutation independently and never reads this
// response body.
func (c *Client) ToggleLike(ctx context.Context, publicationID, nick string) error {
	path := fmt.Sprintf("/publicaciones/put/%s/%s", url.PathEscape(publicationID), url.PathEscape(nick))
	op := fmt.Sprintf("PUT /publicaciones/put/%s/%s", publicationID, nick)
	return c.send(ctx, http.MethodPut, path, op, nil, nil)
}

// ListComments fetches one publication's comment thread. An empty list
// is the valid "no comments yet" state, not an error.
func (c *Client) ListComments(ctx context.Context, publicationID string) ([]model.Comment, error) {
	path := "/comentarios/" + url.PathEscape(publicationID)
	var comments []model.Comment
	if err := c.get(ctx, path, "GET /comentarios/"+publicationID, &comments); err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	return comments, nil
}

// CreateComment appends a comment to a publication's thread.
func (c *Client) CreateComment(ctx context.Context, req model.CreateCommentRequest) (*model.Comment, error) {
	var created model.Comment
	if err := c.send(ctx, http.MethodPost, "/comentarios/put", "POST /comentarios/put", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListTickets fetches the tickets owned by the given nickname.
func (c *Client) ListTickets(ctx context.Context, nick string) ([]model.Ticket, error) {
	path := "/tickets/user/" + url.PathEscape(nick)
	var tickets []model.Ticket
	if err := c.get(ctx, path, "GET /tickets/user/"+nick, &tickets); err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	return tickets, nil
}

// CreateTicket files a new incident ticket. The status is assigned by
// the backend (new tickets come back "En trámite").
func (c *Client) CreateTicket(ctx context.Context, req model.CreateTicketRequest) (*model.Ticket, error) {
	var created model.Ticket
	if err := c.send(ctx, http.MethodPost, "/tickets/crear", "POST /tickets/crear", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// get issues a GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path, op string, out any) error {
	return c.send(ctx, http.MethodGet, path, op, nil, out)
}

// send is the single request/response funnel: builds the request,
// executes it, maps the status code to a domain error, and decodes the
// body strictly when the caller wants one.
func (c *Client) send(ctx context.Context, method, path, op string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: encoding %s body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: building %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.Unavailable(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperror.NotFound("resource", path)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperror.AuthRejected(fmt.Sprintf("%s: status %d", op, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return apperror.Unavailable(op, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.DecodeFailed(op, fmt.Sprintf("decoding response: %v", err))
	}
	return nil
}
