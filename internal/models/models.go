package models

import "time"

// User represents an account provisioned from identity claims
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity returns the caller identity for this user
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email}
}

// Identity is the resolved caller passed into every owner-scoped operation.
// It is resolved once at the request boundary.
type Identity struct {
	UserID int64
	Email  string
}

// Album represents a named collection of photos owned by a user
type Album struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Photo represents a photo inside an album. Its bytes live in object storage.
type Photo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	AlbumID     int64     `json:"album_id"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// DisplayType is reference data fixing how many slots a display offers
type DisplayType struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// Display represents a memoryland: a themed arrangement of photo slots
type Display struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	OwnerID   int64       `json:"owner_id"`
	Type      DisplayType `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
}

// Slot places one photo at one position of a display
type Slot struct {
	ID        int64 `json:"id"`
	DisplayID int64 `json:"display_id"`
	Position  int   `json:"position"`
	PhotoID   int64 `json:"photo_id"`
}

// TokenKind scopes an access token
type TokenKind string

const (
	TokenInternal TokenKind = "internal"
	TokenPublic   TokenKind = "public"
)

// Valid reports whether k is a known kind
func (k TokenKind) Valid() bool {
	return k == TokenInternal || k == TokenPublic
}

// AccessToken grants read access to one display
type AccessToken struct {
	ID        int64     `json:"id"`
	DisplayID int64     `json:"display_id"`
	Kind      TokenKind `json:"kind"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction is an open multi-photo upload session bound to one album
type Transaction struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	AlbumID   int64     `json:"album_id"`
	PathHint  string    `json:"path_hint"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayInfo is the summary returned when listing displays
type DisplayInfo struct {
	ID   int64       `json:"id"`
	Name string      `json:"name"`
	Type DisplayType `json:"type"`
}

// DisplayView is the fully resolved, externally consumable display
type DisplayView struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Type  DisplayType `json:"type"`
	Slots []SlotView  `json:"slots"`
}

// SlotView is one resolved slot of a DisplayView
type SlotView struct {
	SlotID   int64  `json:"slot_id"`
	Position int    `json:"position"`
	PhotoID  int64  `json:"photo_id"`
	URL      string `json:"url"`
}

// AlbumSummary lists an album with the names of its photos
type AlbumSummary struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	PhotoNames []string `json:"photo_names"`
}

// PhotoView is a photo with a time-boxed viewable URL
type PhotoView struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	AlbumID int64  `json:"album_id"`
	URL     string `json:"url"`
}
