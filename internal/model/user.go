// Package model defines the data structures used throughout the application.
//
// All entities here are server-owned: the client holds transient copies
// fetched per screen visit and never persists them locally. The only thing
// the client keeps across restarts is the session credential (see the
// store package), which is not a domain entity.
package model

// Principal is the opaque identifier the identity provider hands us after
// a successful sign-in. It is stable for the lifetime of the session and
// is used only as a lookup key — never displayed to the user.
type Principal struct {
	AuthID string
}

// UserContext is the application-level identity derived from a Principal
// by the session resolver. It is the single source of truth for "who is
// acting": every screen that performs a mutating action (like, comment,
// new publication, ticket) receives it explicitly as a navigation
// parameter.
//
// WHY A VALUE TYPE, NOT A SINGLETON?
// The original app kept auth state in module-level listeners mutated from
// arbitrary call sites. Here a UserContext is produced once per sign-in,
// is immutable after resolution, and is passed down by value. It is valid
// only while its AuthID matches the currently signed-in Principal; the
// session resolver discards it on sign-out or account switch.
type UserContext struct {
	AuthID          string
	Nickname        string
	ProfileImageURL string // empty when the user has no profile picture
}

// RegisterUserRequest is the body for POST /users, sent right after the
// identity provider account is created. Field names match the backend's
// wire contract (Spanish field names are the backend's, not ours to fix).
type RegisterUserRequest struct {
	Nick           string `json:"nick"`
	UserID         string `json:"user_id"`
	Name           string `json:"nombre"`
	Surnames       string `json:"apellidos"`
	ProfilePicture string `json:"profile_picture"`
}
