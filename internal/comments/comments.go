// Package comments is the controller behind the single-publication view:
// one publication, its comment thread, and its own like state.
//
// WHY ITS OWN LIKE STATE?
// The view receives a snapshot of the publication as a navigation
// parameter and toggles likes against that snapshot, independently of
// the feed controller. Until both are refreshed the feed list and this
// view can transiently disagree — an accepted consistency gap carried
// over from the original client, not a bug to patch here. What is NOT
// accepted is count drift: the displayed count is always derived from
// this controller's like set.
package comments

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/sakif/campusfeed/internal/apperror"
	"github.com/sakif/campusfeed/internal/model"
)

// Gateway is the slice of the backend client this controller consumes.
type Gateway interface {
	ListComments(ctx context.Context, publicationID string) ([]model.Comment, error)
	CreateComment(ctx context.Context, req model.CreateCommentRequest) (*model.Comment, error)
	ToggleLike(ctx context.Context, publicationID, nick string) error
}

// Controller manages one publication's thread. Construct one per opened
// publication; it snapshots the publication at navigation time.
type Controller struct {
	gateway Gateway
	logger  *slog.Logger

	mu          sync.Mutex
	publication model.Publication
	comments    []model.Comment
}

// NewController snapshots the publication the view was opened with.
func NewController(gateway Gateway, publication model.Publication, logger *slog.Logger) *Controller {
	publication.Normalize()
	return &Controller{
		gateway:     gateway,
		logger:      logger,
		publication: publication,
		comments:    []model.Comment{},
	}
}

// LoadComments fetches the thread. An empty thread is a valid,
// display-worthy state ("no comments"), not an error; fetch failures are
// logged and leave the previous list in place (silent read path).
func (c *Controller) LoadComments(ctx context.Context) ([]model.Comment, error) {
	pubID := c.publicationID()

	comments, err := c.gateway.ListComments(ctx, pubID)
	if err != nil {
		c.logger.Warn("comment load failed",
			slog.String("publicationID", pubID),
			slog.String("error", err.Error()),
		)
		return c.Comments(), nil
	}

	c.mu.Lock()
	c.comments = comments
	c.mu.Unlock()
	return c.Comments(), nil
}

// SubmitComment appends a comment. A trimmed-empty body is rejected
// locally with zero network calls. On success the thread is reloaded
// from the backend — there is no optimistic local insert. A network
// failure is logged and swallowed here; the view only ever notices that
// the thread did not grow.
func (c *Controller) SubmitComment(ctx context.Context, actingNick, body string) error {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return apperror.ValidationFailed("comentario", "comment body is required")
	}

	pubID := c.publicationID()

	_, err := c.gateway.CreateComment(ctx, model.CreateCommentRequest{
		PublicationID: pubID,
		UserID:        actingNick,
		Body:          trimmed,
	})
	if err != nil {
		c.logger.Warn("comment submit failed",
			slog.String("publicationID", pubID),
			slog.String("nick", actingNick),
			slog.String("error", err.Error()),
		)
		return nil
	}

	_, _ = c.LoadComments(ctx)
	return nil
}

// ToggleLike mirrors the feed controller's optimistic policy against
// this view's own like set: mutate first, issue the backend call, never
// roll back.
func (c *Controller) ToggleLike(ctx context.Context, actingNick string) {
	c.mu.Lock()
	c.publication.ToggleLike(actingNick)
	pubID := c.publication.ID
	c.mu.Unlock()

	if err := c.gateway.ToggleLike(ctx, pubID, actingNick); err != nil {
		c.logger.Warn("like toggle not persisted",
			slog.String("publicationID", pubID),
			slog.String("nick", actingNick),
			slog.String("error", err.Error()),
		)
	}
}

// LikeCount is the count the view renders — derived from the set.
func (c *Controller) LikeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publication.LikeCount()
}

// LikedBy reports whether actingNick currently likes the publication,
// per this view's local state.
func (c *Controller) LikedBy(actingNick string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publication.LikedByUser(actingNick)
}

// Comments returns a copy of the current thread.
func (c *Controller) Comments() []model.Comment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Comment, len(c.comments))
	copy(out, c.comments)
	return out
}

func (c *Controller) publicationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publication.ID
}
