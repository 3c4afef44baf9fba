package models

import "time"

// User is a human operator of the system, authenticated via JWT.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// APIKey is a programmatic credential for agent clients. Only the SHA-256
// hash of the plaintext token is persisted; KeyPrefix (first 8 chars of the
// plaintext) is kept for display purposes only.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	Label      string     `json:"label,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// APIKeyTokenPrefix is prepended to every generated plaintext API key.
const APIKeyTokenPrefix = "sna_"
