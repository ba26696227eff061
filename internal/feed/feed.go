// Package feed is the feed interaction controller: it owns the list of
// publications shown on the main screen, the per-item like state, and
// the optimistic like toggle.
//
// OPTIMISTIC UPDATES, NO ROLLBACK — AN EXPLICIT POLICY:
// ToggleLike mutates the local like set BEFORE the backend call so the
// heart icon responds instantly. If the backend call then fails, the
// local change is NOT rolled back. That asymmetry is a deliberate,
// tested policy carried over from the observed behaviour of the original
// client: the next refresh reconciles the list with the server. Adding
// rollback would change observable behaviour and is called out as a
// deviation, not silently done.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/sakif/campusfeed/internal/apperror"
	"github.com/sakif/campusfeed/internal/model"
)

// Gateway is the slice of the backend client the feed consumes.
type Gateway interface {
	ListPublications(ctx context.Context) ([]model.Publication, error)
	CreatePublication(ctx context.Context, req model.CreatePublicationRequest) (*model.Publication, error)
	ToggleLike(ctx context.Context, publicationID, nick string) error
}

// Uploader pushes an image to the upload service and returns its public
// URL. Implemented by the uploader package; nil disables image posts.
type Uploader interface {
	Upload(ctx context.Context, filename string, content []byte) (string, error)
}

// Controller holds the feed's local view state. It is used from the UI
// interaction loop, but Refresh may overlap with an in-flight load (two
// quick pull-to-refresh gestures), so state is mutex-guarded and applies
// last-completed-wins: a whole response replaces the whole list, never a
// partial merge of two responses.
type Controller struct {
	gateway  Gateway
	uploader Uploader
	logger   *slog.Logger

	mu           sync.Mutex
	publications []model.Publication
	generation   uint64 // incremented per load; stale completions are discarded
	applied      uint64 // generation of the list currently displayed
}

// NewController creates a feed controller. uploader may be nil when
// image posting is not wired (tests, headless use).
func NewController(gateway Gateway, uploader Uploader, logger *slog.Logger) *Controller {
	return &Controller{
		gateway:  gateway,
		uploader: uploader,
		logger:   logger,
	}
}

// LoadFeed fetches all publications, most-recent-first. Fetch failures
// leave the previous list untouched — the screen keeps showing what it
// had (or stays empty), per the read-path error policy.
func (c *Controller) LoadFeed(ctx context.Context) ([]model.Publication, error) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	pubs, err := c.gateway.ListPublications(ctx)
	if err != nil {
		c.logger.Warn("feed load failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("feed: loading publications: %w", err)
	}

	orderMostRecentFirst(pubs)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen < c.applied {
		// A later load already completed — applying this one would show
		// older data. Last-completed-wins.
		return c.copyLocked(), nil
	}
	c.applied = gen
	c.publications = pubs
	return c.copyLocked(), nil
}

// Refresh re-invokes LoadFeed. Scroll position is the view's concern;
// the controller's contract is just that overlapping refreshes cannot
// interleave into a corrupted list.
func (c *Controller) Refresh(ctx context.Context) ([]model.Publication, error) {
	return c.LoadFeed(ctx)
}

// Publications returns a copy of the current list.
func (c *Controller) Publications() []model.Publication {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

// DisplayedLikeCount is the like count a view must render for the given
// publication: always derived from the local like set, never tracked
// independently, so count and set cannot diverge.
func (c *Controller) DisplayedLikeCount(publicationID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.publications {
		if c.publications[i].ID == publicationID {
			return c.publications[i].LikeCount()
		}
	}
	return 0
}

// ToggleLike applies the optimistic local mutation immediately, then
// issues the backend mutation. A backend failure is logged and dropped —
// no rollback, no notification (see the package comment).
func (c *Controller) ToggleLike(ctx context.Context, publicationID, actingNick string) error {
	if actingNick == "" {
		return apperror.ValidationFailed("nick", "acting nickname is required")
	}

	c.mu.Lock()
	found := false
	for i := range c.publications {
		if c.publications[i].ID == publicationID {
			c.publications[i].ToggleLike(actingNick)
			found = true
			break
		}
	}
	c.mu.Unlock()

	if !found {
		return apperror.NotFound("publication", publicationID)
	}

	if err := c.gateway.ToggleLike(ctx, publicationID, actingNick); err != nil {
		c.logger.Warn("like toggle not persisted",
			slog.String("publicationID", publicationID),
			slog.String("nick", actingNick),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// CreatePublication validates, uploads the optional image, and posts the
// publication. Creation flows surface their errors explicitly (the UI
// shows a success-or-failure dialog), unlike the silent read paths.
func (c *Controller) CreatePublication(ctx context.Context, userCtx model.UserContext, title, body string, image []byte) (*model.Publication, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" {
		return nil, apperror.ValidationFailed("titulo", "title is required")
	}
	if body == "" {
		return nil, apperror.ValidationFailed("comentario", "body is required")
	}

	imageURL := ""
	if len(image) > 0 {
		if c.uploader == nil {
			return nil, apperror.ValidationFailed("image", "image posting is not available")
		}
		var err error
		imageURL, err = c.uploader.Upload(ctx, "image.jpg", image)
		if err != nil {
			return nil, fmt.Errorf("feed: uploading image: %w", err)
		}
	}

	created, err := c.gateway.CreatePublication(ctx, model.CreatePublicationRequest{
		UserID:   userCtx.AuthID,
		Title:    title,
		Body:     body,
		ImageURL: imageURL,
	})
	if err != nil {
		return nil, fmt.Errorf("feed: creating publication: %w", err)
	}

	c.logger.Info("publication created",
		slog.String("id", created.ID),
		slog.String("authID", userCtx.AuthID),
	)
	return created, nil
}

func (c *Controller) copyLocked() []model.Publication {
	out := make([]model.Publication, len(c.publications))
	copy(out, c.publications)
	for i := range out {
		liked := make([]string, len(out[i].LikedBy))
		copy(liked, out[i].LikedBy)
		out[i].LikedBy = liked
	}
	return out
}

// orderMostRecentFirst sorts newest first. The backend appends, so the
// baseline is simply the reversed response order; when timestamps are
// present a stable sort on CreatedAt refines it without disturbing ties.
func orderMostRecentFirst(pubs []model.Publication) {
	for i, j := 0, len(pubs)-1; i < j; i, j = i+1, j-1 {
		pubs[i], pubs[j] = pubs[j], pubs[i]
	}
	sort.SliceStable(pubs, func(i, j int) bool {
		return pubs[i].CreatedAt.After(pubs[j].CreatedAt)
	})
}
