package domain

import "time"

// User is an account that owns documents and a storage counter.
type User struct {
	ID           string
	Username     string
	PasswordHash string

	// TotalStorageBytes is the committed sum of stored document sizes.
	// It never exceeds the user's quota.
	TotalStorageBytes int64

	CreatedAt time.Time
}

// Identity is what the auth gate hands to the rest of the system.
// Nothing downstream sees credentials.
type Identity struct {
	UserID    string
	Username  string
	SessionID string
}

// Session is an issued login. Revoked or expired sessions no longer resolve.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session can still authenticate requests at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Token is the bearer credential returned by a successful login.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Usage summarises a user's storage consumption.
type Usage struct {
	Username          string
	TotalStorageBytes int64
	QuotaBytes        int64
	DocumentCount     int
}

// Remaining returns the number of bytes the user may still upload.
func (u Usage) Remaining() int64 {
	if u.TotalStorageBytes >= u.QuotaBytes {
		return 0
	}
	return u.QuotaBytes - u.TotalStorageBytes
}
