package model

import "time"

// Publication is one post in the community feed.
//
// The "like" array holds the NICKNAME of each user who liked the post, at
// most once each. The displayed like count is always derived from this
// set — it is never tracked as an independent counter, so the two can
// never diverge.
//
// JSON tags follow the backend's wire names (titulo, comentario,
// image_url); Go field names follow ours.
type Publication struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"user_id"`
	Title        string    `json:"titulo"`
	Body         string    `json:"comentario"`
	ImageURL     string    `json:"image_url"`
	CreatedAt    time.Time `json:"createdAt"`
	LikedBy      []string  `json:"like"`
	CommentCount int       `json:"comment_count"`
}

// Normalize repairs the defensive gaps in a freshly decoded publication:
// a null/absent like array becomes an empty slice, and duplicate
// nicknames are collapsed so LikedBy has set semantics. Call after every
// decode — the backend does not validate this invariant for us.
func (p *Publication) Normalize() {
	if p.LikedBy == nil {
		p.LikedBy = []string{}
		return
	}
	seen := make(map[string]struct{}, len(p.LikedBy))
	deduped := p.LikedBy[:0]
	for _, nick := range p.LikedBy {
		if _, ok := seen[nick]; ok {
			continue
		}
		seen[nick] = struct{}{}
		deduped = append(deduped, nick)
	}
	p.LikedBy = deduped
}

// LikeCount returns the number of distinct users who liked the
// publication. This is THE like count — views must render this value,
// never a cached copy.
func (p *Publication) LikeCount() int {
	return len(p.LikedBy)
}

// LikedByUser reports whether the given nickname is in the like set.
func (p *Publication) LikedByUser(nick string) bool {
	for _, n := range p.LikedBy {
		if n == nick {
			return true
		}
	}
	return false
}

// ToggleLike flips the membership of nick in the like set and returns
// true when the result is "liked". This is the local half of the
// optimistic update — the caller issues the backend mutation separately.
func (p *Publication) ToggleLike(nick string) bool {
	for i, n := range p.LikedBy {
		if n == nick {
			p.LikedBy = append(p.LikedBy[:i], p.LikedBy[i+1:]...)
			return false
		}
	}
	p.LikedBy = append(p.LikedBy, nick)
	return true
}

// CreatePublicationRequest is the body for POST /publicaciones.
// ImageURL is the secure URL returned by the upload service, or empty
// when the publication has no image.
type CreatePublicationRequest struct {
	UserID   string `json:"user_id"`
	Title    string `json:"titulo"`
	Body     string `json:"comentario"`
	ImageURL string `json:"image_url"`
}
