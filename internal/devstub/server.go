// Package devstub is an in-memory stand-in for the two remote
// collaborators the client needs: the REST backend and the identity
// provider. It exists so the client can be developed and demoed without
// the real services — it is a fixture, not a backend implementation.
//
// STATE MODEL:
// Everything lives in maps guarded by one mutex and is lost on restart.
// That is the point: the client re-fetches on every screen visit, so a
// stub that forgets is a feature.
package devstub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/sakif/campusfeed/internal/model"
)

// account is a registered identity-provider account.
type account struct {
	authID   string
	email    string
	password string
}

// userDoc is the backend profile document.
type userDoc struct {
	Nick           string  `json:"nick"`
	UserID         string  `json:"user_id"`
	Name           string  `json:"nombre"`
	Surnames       string  `json:"apellidos"`
	ProfilePicture *string `json:"profile_picture"`
}

// Server holds the stub's routes and state.
type Server struct {
	router *chi.Mux
	logger *slog.Logger
	secret []byte

	mu            sync.Mutex
	accounts      map[string]account // email → account
	refreshTokens map[string]string  // refresh token → authID
	users         map[string]userDoc // authID → profile
	publications  []model.Publication
	comments      map[string][]model.Comment // publicationID → thread
	tickets       map[string][]model.Ticket  // ownerNick → tickets
}

// New creates the stub with one seeded account (ana@example.com /
// secret123, nick "ana") so a fresh checkout can sign in immediately.
func New(logger *slog.Logger) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		logger:        logger,
		secret:        []byte("devstub-secret-not-for-production"),
		accounts:      make(map[string]account),
		refreshTokens: make(map[string]string),
		users:         make(map[string]userDoc),
		comments:      make(map[string][]model.Comment),
		tickets:       make(map[string][]model.Ticket),
	}
	s.seed()
	s.routes()
	return s
}

func (s *Server) seed() {
	s.accounts["ana@example.com"] = account{authID: "u1", email: "ana@example.com", password: "secret123"}
	s.users["u1"] = userDoc{Nick: "ana", UserID: "u1", Name: "Ana"}
	s.publications = []model.Publication{
		{ID: xid.New().String(), AuthorID: "u1", Title: "Bienvenida", Body: "primera publicación", CreatedAt: time.Now(), LikedBy: []string{}},
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(s.requestLogger)

	// Identity provider endpoints.
	s.router.Post("/v1/accounts/signin", s.handleSignIn)
	s.router.Post("/v1/accounts/signup", s.handleSignUp)
	s.router.Post("/v1/token", s.handleRefresh)

	// Backend endpoints, matching the client's gateway contract.
	s.router.Route("/proyecto01", func(r chi.Router) {
		r.Get("/users/{authID}", s.handleGetUser)
		r.Post("/users", s.handleRegisterUser)
		r.Put("/users/{authID}", s.handleUpdateUser)

		r.Get("/publicaciones", s.handleListPublications)
		r.Post("/publicaciones", s.handleCreatePublication)
		r.Get("/publicaciones/user/{nick}", s.handleListUserPublications)
		r.Put("/publicaciones/put/{id}/{nick}", s.handleToggleLike)

		r.Get("/comentarios/{id}", s.handleListComments)
		r.Post("/comentarios/put", s.handleCreateComment)

		r.Get("/tickets/user/{nick}", s.handleListTickets)
		r.Post("/tickets/crear", s.handleCreateTicket)
	})
}

// requestLogger is the server-side twin of the client's logging
// round-tripper.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// =========================================================================
// Identity provider
// =========================================================================

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenReply struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// mintIDToken signs a short-lived HS256 JWT whose subject is the
// account's auth ID — the same shape the real provider issues.
func (s *Server) mintIDToken(authID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   authID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		Issuer:    "campusfeed-devstub",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) issueTokens(w http.ResponseWriter, authID string) {
	idToken, err := s.mintIDToken(authID)
	if err != nil {
		http.Error(w, "signing token", http.StatusInternalServerError)
		return
	}

	refresh := "r-" + xid.New().String()
	s.mu.Lock()
	s.refreshTokens[refresh] = authID
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, tokenReply{
		IDToken:      idToken,
		RefreshToken: refresh,
		ExpiresIn:    "3600",
	})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[creds.Email]
	s.mu.Unlock()

	if !ok || acc.password != creds.Password {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	s.issueTokens(w, acc.authID)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if creds.Email == "" || len(creds.Password) < 6 {
		http.Error(w, "weak credentials", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[creds.Email]; exists {
		s.mu.Unlock()
		http.Error(w, "account exists", http.StatusConflict)
		return
	}
	authID := "u-" + xid.New().String()
	s.accounts[creds.Email] = account{authID: authID, email: creds.Email, password: creds.Password}
	s.mu.Unlock()

	s.issueTokens(w, authID)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GrantType    string `json:"grant_type"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	authID, ok := s.refreshTokens[req.RefreshToken]
	s.mu.Unlock()

	if req.GrantType != "refresh_token" || !ok {
		http.Error(w, "invalid refresh token", http.StatusBadRequest)
		return
	}

	idToken, err := s.mintIDToken(authID)
	if err != nil {
		http.Error(w, "signing token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tokenReply{
		IDToken:      idToken,
		RefreshToken: req.RefreshToken,
		ExpiresIn:    "3600",
	})
}

// =========================================================================
// Users
// =========================================================================

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	authID := chi.URLParam(r, "authID")

	s.mu.Lock()
	doc, ok := s.users[authID]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var doc userDoc
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if doc.Nick == "" || doc.UserID == "" {
		http.Error(w, "nick and user_id are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.users[doc.UserID] = doc
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	authID := chi.URLParam(r, "authID")

	var body struct {
		ProfilePicture string `json:"profile_picture"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	doc, ok := s.users[authID]
	if ok {
		doc.ProfilePicture = &body.ProfilePicture
		s.users[authID] = doc
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// =========================================================================
// Publications & likes
// =========================================================================

func (s *Server) handleListPublications(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]model.Publication, len(s.publications))
	copy(out, s.publications)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListUserPublications(w http.ResponseWriter, r *http.Request) {
	nick := chi.URLParam(r, "nick")

	// The feed stores author auth IDs; resolve the nick first.
	s.mu.Lock()
	authID := ""
	for id, doc := range s.users {
		if doc.Nick == nick {
			authID = id
			break
		}
	}
	out := []model.Publication{}
	for _, p := range s.publications {
		if p.AuthorID == authID {
			out = append(out, p)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePublication(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePublicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		http.Error(w, "titulo is required", http.StatusBadRequest)
		return
	}

	pub := model.Publication{
		ID:        xid.New().String(),
		AuthorID:  req.UserID,
		Title:     req.Title,
		Body:      req.Body,
		ImageURL:  req.ImageURL,
		CreatedAt: time.Now(),
		LikedBy:   []string{},
	}

	s.mu.Lock()
	s.publications = append(s.publications, pub)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, pub)
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	nick := chi.URLParam(r, "nick")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.publications {
		if s.publications[i].ID == id {
			s.publications[i].ToggleLike(nick)
			writeJSON(w, http.StatusOK, s.publications[i])
			return
		}
	}
	http.Error(w, "publication not found", http.StatusNotFound)
}

// =========================================================================
// Comments
// =========================================================================

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	thread := s.comments[id]
	out := make([]model.Comment, len(thread))
	copy(out, thread)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		http.Error(w, "comentario is required", http.StatusBadRequest)
		return
	}

	comment := model.Comment{
		ID:             xid.New().String(),
		PublicationID:  req.PublicationID,
		AuthorNickname: req.UserID,
		Body:           req.Body,
		CreatedAt:      time.Now(),
	}

	s.mu.Lock()
	s.comments[req.PublicationID] = append(s.comments[req.PublicationID], comment)
	for i := range s.publications {
		if s.publications[i].ID == req.PublicationID {
			s.publications[i].CommentCount++
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, comment)
}

// =========================================================================
// Tickets
// =========================================================================

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	nick := chi.URLParam(r, "nick")

	s.mu.Lock()
	owned := s.tickets[nick]
	out := make([]model.Ticket, len(owned))
	copy(out, owned)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.UserNick == "" || req.Title == "" {
		http.Error(w, "userNick and titulo are required", http.StatusBadRequest)
		return
	}

	ticket := model.Ticket{
		ID:                 xid.New().String(),
		OwnerNickname:      req.UserNick,
		ClassOrDeviceLabel: req.ClassOrDeviceLabel,
		Title:              req.Title,
		Description:        req.Description,
		Status:             model.TicketPending,
	}

	s.mu.Lock()
	s.tickets[req.UserNick] = append(s.tickets[req.UserNick], ticket)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, ticket)
}

// writeJSON sends a JSON response with the given status code. Headers
// must be set before the first body write.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}
