// Package backend provides a client for the PostgREST-style image table API:
// paginated record fetches, row decoding and user identity rows.
package backend

import (
	"time"
)

// ImageRecord represents one gallery entry's metadata.
type ImageRecord struct {
	ID        int64             `json:"id"`
	OwnerID   string            `json:"user_id,omitempty"` // empty means a legacy/unowned record
	ImageURL  string            `json:"image_url"`
	PhotoDate time.Time         `json:"photo_date"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Title renders the photo date as the human-readable title the viewer shows
// for each image.
func (r *ImageRecord) Title() string {
	return r.PhotoDate.Format("January 2, 2006")
}

// PageQuery describes one bounded range request against the image table.
type PageQuery struct {
	Offset int    // count of records already fetched, non-negative
	Limit  int    // rows requested, positive
	Owner  string // optional equality filter on user_id
}

// User represents a row of the users table.
type User struct {
	ID        int64  `json:"id"`
	AppleID   string `json:"apple_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	LastLogin string `json:"last_login"`
}

// UserUpsert is the payload for creating or merging a user row. LastLogin is
// filled by the client at request time.
type UserUpsert struct {
	AppleID   string `json:"apple_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	LastLogin string `json:"last_login"`
}

// Config holds configuration for the backend client.
type Config struct {
	BaseURL           string        `json:"base_url"`
	APIKey            string        `json:"api_key"`
	Timeout           time.Duration `json:"timeout"`
	RequestsPerSecond float64       `json:"requests_per_second"`
}

// DefaultConfig returns a Config with sensible defaults. BaseURL and APIKey
// have no defaults, the caller supplies them.
func DefaultConfig() Config {
	return Config{
		Timeout:           30 * time.Second,
		RequestsPerSecond: 10,
	}
}
