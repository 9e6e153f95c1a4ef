package model

import "time"

// AuthToken is a login token issued to a user. Only the hash is stored;
// the plaintext is returned once when the token is issued.
type AuthToken struct {
	ID          string
	UserID      int64
	TokenHash   string
	TokenPrefix string
	RevokedAt   *time.Time
	LastUsedAt  *time.Time
	CreatedAt   time.Time
}

// IsRevoked returns true if the token has been revoked.
func (t *AuthToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// AuthContext holds the authenticated caller.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	TokenID     string
	TokenPrefix string
	UserID      int64
	Email       string
	IsStaff     bool
	IsSuperuser bool
}
