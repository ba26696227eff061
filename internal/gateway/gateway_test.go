package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/campusfeed/internal/apperror"
	"github.com/sakif/campusfeed/internal/model"
)

// =========================================================================
// FAKE BACKEND
// =========================================================================
//
// A chi-routed httptest server speaking the backend's wire contract.
// Handlers record the bodies they receive so tests can assert exactly
// what went over the wire.

type fakeBackend struct {
	mux *chi.Mux

	commentBodies []map[string]any // raw bodies received at POST /comentarios/put
	likeCalls     []string         // "{id}/{nick}" for each PUT like toggle
}

func newFakeBackend() *fakeBackend {
	fb := &fakeBackend{mux: chi.NewRouter()}

	fb.mux.Get("/users/{authID}", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "authID") {
		case "u1":
			_, _ = io.WriteString(w, `{"nick":"ana","profile_picture":null}`)
		case "u2":
			// Contract violation: profile without a nick.
			_, _ = io.WriteString(w, `{"profile_picture":"http://img/x.jpg"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	fb.mux.Get("/publicaciones", func(w http.ResponseWriter, r *http.Request) {
		// id 1 predates the like feature and has no like array at all;
		// id 2 has a duplicate entry the client must collapse.
		_, _ = io.WriteString(w, `[
			{"id":"1","user_id":"bob","titulo":"first"},
			{"id":"2","user_id":"ana","titulo":"second","like":["ana","ana"]}
		]`)
	})

	fb.mux.Put("/publicaciones/put/{id}/{nick}", func(w http.ResponseWriter, r *http.Request) {
		fb.likeCalls = append(fb.likeCalls, chi.URLParam(r, "id")+"/"+chi.URLParam(r, "nick"))
		w.WriteHeader(http.StatusOK)
	})

	fb.mux.Get("/comentarios/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "42" {
			_, _ = io.WriteString(w, `[{"idPublicacion":"42","user_id":"bob","comentario":"nice"}]`)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})

	fb.mux.Post("/comentarios/put", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.commentBodies = append(fb.commentBodies, body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(body)
	})

	fb.mux.Get("/tickets/user/{nick}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"id":"t1","userNick":"ana","equipoClase":"Aula 3","titulo":"proyector","descripcion":"no enciende","estado":"En trámite"}
		]`)
	})

	fb.mux.Post("/tickets/crear", func(w http.ResponseWriter, r *http.Request) {
		var req model.CreateTicketRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(model.Ticket{
			ID:                 "t2",
			OwnerNickname:      req.UserNick,
			ClassOrDeviceLabel: req.ClassOrDeviceLabel,
			Title:              req.Title,
			Description:        req.Description,
			Status:             model.TicketPending,
		})
	})

	return fb
}

func newTestClient(t *testing.T) (*Client, *fakeBackend) {
	t.Helper()
	fb := newFakeBackend()
	srv := httptest.NewServer(fb.mux)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(srv.URL, srv.Client(), logger), fb
}

// =========================================================================
// USER RESOLUTION
// =========================================================================

func TestGetUser(t *testing.T) {
	c, _ := newTestClient(t)

	uc, err := c.GetUser(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "u1", uc.AuthID)
	assert.Equal(t, "ana", uc.Nickname)
	assert.Empty(t, uc.ProfileImageURL, "null profile_picture maps to empty string")
}

func TestGetUserMissingNickFailsFast(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.GetUser(context.Background(), "u2")
	assert.ErrorIs(t, err, apperror.ErrDecode,
		"a profile without a nick must be a typed decode failure, not an anonymous user")
}

func TestGetUserNotFound(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// PUBLICATIONS
// =========================================================================

func TestListPublicationsNormalizes(t *testing.T) {
	c, _ := newTestClient(t)

	pubs, err := c.ListPublications(context.Background())
	require.NoError(t, err)
	require.Len(t, pubs, 2)

	assert.NotNil(t, pubs[0].LikedBy, "absent like array becomes empty set")
	assert.Equal(t, 0, pubs[0].LikeCount())
	assert.Equal(t, 1, pubs[1].LikeCount(), "duplicate nicknames collapsed")
}

func TestToggleLikeHitsTheRightPath(t *testing.T) {
	c, fb := newTestClient(t)

	err := c.ToggleLike(context.Background(), "2", "ana")
	require.NoError(t, err)
	assert.Equal(t, []string{"2/ana"}, fb.likeCalls)
}

// =========================================================================
// COMMENTS
// =========================================================================

func TestListCommentsEmptyThreadIsValid(t *testing.T) {
	c, _ := newTestClient(t)

	comments, err := c.ListComments(context.Background(), "7")
	require.NoError(t, err)
	assert.NotNil(t, comments)
	assert.Empty(t, comments)
}

func TestCreateCommentWireFormat(t *testing.T) {
	c, fb := newTestClient(t)

	_, err := c.CreateComment(context.Background(), model.CreateCommentRequest{
		PublicationID: "42",
		UserID:        "ana",
		Body:          "hello",
	})
	require.NoError(t, err)

	require.Len(t, fb.commentBodies, 1)
	assert.Equal(t, map[string]any{
		"idPublicacion": "42",
		"user_id":       "ana",
		"comentario":    "hello",
	}, fb.commentBodies[0])
}

// =========================================================================
// TICKETS
// =========================================================================

func TestListTickets(t *testing.T) {
	c, _ := newTestClient(t)

	tickets, err := c.ListTickets(context.Background(), "ana")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, model.TicketPending, tickets[0].Status)
	assert.True(t, tickets[0].Status.Known())
}

func TestCreateTicket(t *testing.T) {
	c, _ := newTestClient(t)

	ticket, err := c.CreateTicket(context.Background(), model.CreateTicketRequest{
		UserNick:           "ana",
		ClassOrDeviceLabel: "Aula 3",
		Title:              "pantalla rota",
		Description:        "la pantalla del equipo 4 está rota",
	})
	require.NoError(t, err)
	assert.Equal(t, "t2", ticket.ID)
	assert.Equal(t, model.TicketPending, ticket.Status, "new tickets start pending")
}

// =========================================================================
// TRANSPORT FAILURES
// =========================================================================

func TestBackendDownIsUnavailable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	c := New("http://127.0.0.1:1", nil, logger) // nothing listens here

	_, err := c.ListPublications(context.Background())
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
}
