package model

import "time"

// Comment is one entry in a publication's comment thread. Comments are
// append-only: created via the comment form, never edited or deleted.
type Comment struct {
	ID             string    `json:"id"`
	PublicationID  string    `json:"idPublicacion"`
	AuthorNickname string    `json:"user_id"`
	Body           string    `json:"comentario"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CreateCommentRequest is the body for POST /comentarios/put. The
// backend calls the acting user "user_id" but actually stores the
// nickname — an inherited quirk of the wire contract.
type CreateCommentRequest struct {
	PublicationID string `json:"idPublicacion"`
	UserID        string `json:"user_id"`
	Body          string `json:"comentario"`
}
