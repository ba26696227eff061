package feed

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/campusfeed/internal/apperror"
	"github.com/sakif/campusfeed/internal/model"
)

// =========================================================================
// MOCK GATEWAY
// =========================================================================

type mockGateway struct {
	mu sync.Mutex

	feed      []model.Publication
	listErr   error
	toggleErr error

	toggleCalls []string // "{id}/{nick}"
	created     []model.CreatePublicationRequest

	// When set, ListPublications blocks until the gate is closed —
	// used to interleave two in-flight loads deterministically.
	gate chan struct{}
}

func (m *mockGateway) ListPublications(context.Context) ([]model.Publication, error) {
	m.mu.Lock()
	gate := m.gate
	feed := make([]model.Publication, len(m.feed))
	copy(feed, m.feed)
	err := m.listErr
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return feed, err
}

func (m *mockGateway) CreatePublication(_ context.Context, req model.CreatePublicationRequest) (*model.Publication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, req)
	return &model.Publication{
		ID:       "new-1",
		AuthorID: req.UserID,
		Title:    req.Title,
		Body:     req.Body,
		ImageURL: req.ImageURL,
		LikedBy:  []string{},
	}, nil
}

func (m *mockGateway) ToggleLike(_ context.Context, publicationID, nick string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggleCalls = append(m.toggleCalls, publicationID+"/"+nick)
	return m.toggleErr
}

type mockUploader struct {
	uploads int
	url     string
	err     error
}

func (m *mockUploader) Upload(context.Context, string, []byte) (string, error) {
	m.uploads++
	return m.url, m.err
}

func newTestController(t *testing.T, gw *mockGateway) *Controller {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewController(gw, nil, logger)
}

// =========================================================================
// LOADING & ORDERING
// =========================================================================

func TestLoadFeedMostRecentFirst(t *testing.T) {
	// Backend insertion order: oldest first. Displayed order: reversed.
	gw := &mockGateway{feed: []model.Publication{
		{ID: "1", LikedBy: []string{}},
		{ID: "2", LikedBy: []string{}},
		{ID: "3", LikedBy: []string{}},
	}}
	c := newTestController(t, gw)

	pubs, err := c.LoadFeed(context.Background())
	require.NoError(t, err)

	ids := []string{pubs[0].ID, pubs[1].ID, pubs[2].ID}
	assert.Equal(t, []string{"3", "2", "1"}, ids)
}

func TestLoadFeedOrdersByCreatedAtWhenPresent(t *testing.T) {
	now := time.Now()
	gw := &mockGateway{feed: []model.Publication{
		{ID: "a", CreatedAt: now.Add(-time.Hour), LikedBy: []string{}},
		{ID: "b", CreatedAt: now, LikedBy: []string{}},
		{ID: "c", CreatedAt: now.Add(-2 * time.Hour), LikedBy: []string{}},
	}}
	c := newTestController(t, gw)

	pubs, err := c.LoadFeed(context.Background())
	require.NoError(t, err)

	ids := []string{pubs[0].ID, pubs[1].ID, pubs[2].ID}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestLoadFeedFailureKeepsPreviousList(t *testing.T) {
	gw := &mockGateway{feed: []model.Publication{{ID: "1", LikedBy: []string{}}}}
	c := newTestController(t, gw)

	_, err := c.LoadFeed(context.Background())
	require.NoError(t, err)

	gw.mu.Lock()
	gw.listErr = errors.New("connection refused")
	gw.mu.Unlock()

	_, err = c.Refresh(context.Background())
	assert.Error(t, err)
	assert.Len(t, c.Publications(), 1, "a failed refresh must not clear the screen")
}

// =========================================================================
// OVERLAPPING REFRESH (last-completed-wins)
// =========================================================================

func TestOverlappingRefreshLastCompletedWins(t *testing.T) {
	gw := &mockGateway{feed: []model.Publication{{ID: "old", LikedBy: []string{}}}}
	c := newTestController(t, gw)

	// First load starts and blocks inside the gateway.
	gate := make(chan struct{})
	gw.mu.Lock()
	gw.gate = gate
	gw.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.LoadFeed(context.Background())
	}()

	// Second load starts later, sees fresh data, completes first.
	gw.mu.Lock()
	gw.gate = nil
	gw.feed = []model.Publication{{ID: "new", LikedBy: []string{}}}
	gw.mu.Unlock()

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	// Now the stale first load completes. It must NOT overwrite the list.
	close(gate)
	<-done

	pubs := c.Publications()
	require.Len(t, pubs, 1)
	assert.Equal(t, "new", pubs[0].ID, "a superseded load must not apply stale data")
}

// =========================================================================
// OPTIMISTIC LIKE TOGGLING
// =========================================================================

func TestToggleLikeOptimistic(t *testing.T) {
	gw := &mockGateway{feed: []model.Publication{
		{ID: "1", LikedBy: []string{}},
		{ID: "2", LikedBy: []string{"ana"}},
	}}
	c := newTestController(t, gw)

	_, err := c.LoadFeed(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.ToggleLike(context.Background(), "1", "ana"))
	assert.Equal(t, 1, c.DisplayedLikeCount("1"))

	require.NoError(t, c.ToggleLike(context.Background(), "2", "ana"))
	assert.Equal(t, 0, c.DisplayedLikeCount("2"))

	gw.mu.Lock()
	assert.Equal(t, []string{"1/ana", "2/ana"}, gw.toggleCalls, "backend mutation issued per toggle")
	gw.mu.Unlock()
}

func TestToggleLikeCountEqualsSetSize(t *testing.T) {
	gw := &mockGateway{feed: []model.Publication{{ID: "1", LikedBy: []string{"bob"}}}}
	c := newTestController(t, gw)

	_, err := c.LoadFeed(context.Background())
	require.NoError(t, err)

	for _, nick := range []string{"ana", "ana", "carla", "bob"} {
		require.NoError(t, c.ToggleLike(context.Background(), "1", nick))
		for _, p := range c.Publications() {
			assert.Equal(t, p.LikeCount(), len(p.LikedBy))
		}
	}
	assert.Equal(t, 1, c.DisplayedLikeCount("1"), "carla remains after ana and bob toggled off")
}

func TestToggleLikeNoRollbackOnBackendFailure(t *testing.T) {
	// The explicit policy: optimistic change sticks even when the
	// backend mutation fails. The next refresh reconciles.
	gw := &mockGateway{
		feed:      []model.Publication{{ID: "1", LikedBy: []string{}}},
		toggleErr: errors.New("connection reset"),
	}
	c := newTestController(t, gw)

	_, err := c.LoadFeed(context.Background())
	require.NoError(t, err)

	err = c.ToggleLike(context.Background(), "1", "ana")
	assert.NoError(t, err, "like-toggle failures are swallowed, not surfaced")
	assert.Equal(t, 1, c.DisplayedLikeCount("1"), "optimistic change not rolled back")
}

func TestToggleLikeUnknownPublication(t *testing.T) {
	gw := &mockGateway{}
	c := newTestController(t, gw)

	err := c.ToggleLike(context.Background(), "ghost", "ana")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	gw.mu.Lock()
	assert.Empty(t, gw.toggleCalls, "no backend call for a publication we do not have")
	gw.mu.Unlock()
}

// =========================================================================
// CREATION
// =========================================================================

func TestCreatePublicationValidation(t *testing.T) {
	gw := &mockGateway{}
	c := newTestController(t, gw)
	ana := model.UserContext{AuthID: "u1", Nickname: "ana"}

	_, err := c.CreatePublication(context.Background(), ana, "   ", "body", nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = c.CreatePublication(context.Background(), ana, "title", "", nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	assert.Empty(t, gw.created, "validation failures make zero network calls")
}

func TestCreatePublicationWithImage(t *testing.T) {
	gw := &mockGateway{}
	up := &mockUploader{url: "https://cdn.example/img.jpg"}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	c := NewController(gw, up, logger)
	ana := model.UserContext{AuthID: "u1", Nickname: "ana"}

	created, err := c.CreatePublication(context.Background(), ana, "title", "body", []byte{0xFF, 0xD8})
	require.NoError(t, err)

	assert.Equal(t, 1, up.uploads, "image uploaded before the create call")
	require.Len(t, gw.created, 1)
	assert.Equal(t, "https://cdn.example/img.jpg", gw.created[0].ImageURL)
	assert.Equal(t, "u1", gw.created[0].UserID)
	assert.Equal(t, "https://cdn.example/img.jpg", created.ImageURL)
}

func TestCreatePublicationUploadFailureSurfaces(t *testing.T) {
	gw := &mockGateway{}
	up := &mockUploader{err: errors.New("upload service down")}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	c := NewController(gw, up, logger)
	ana := model.UserContext{AuthID: "u1", Nickname: "ana"}

	_, err := c.CreatePublication(context.Background(), ana, "title", "body", []byte{1})
	assert.Error(t, err, "creation flows end in an explicit success or failure")
	assert.Empty(t, gw.created, "no publication posted when the upload failed")
}
