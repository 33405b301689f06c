package model

import "time"

const (
	SessionStatusActive  = "active"
	SessionStatusExpired = "expired"
)

// StudySession is the lifecycle record governing eviction of every row keyed
// by SessionID.
type StudySession struct {
	SessionID      string    `gorm:"primaryKey;size:64" json:"session_id"`
	UserID         *uint     `gorm:"index" json:"user_id,omitempty"`
	Status         string    `gorm:"size:16;not null;index" json:"status"`
	TTLSeconds     int       `gorm:"not null" json:"ttl_seconds"`
	LastAccessedAt time.Time `gorm:"not null" json:"last_accessed_at"`
	ExpiresAt      time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TTL returns the session time-to-live.
func (s *StudySession) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// Expired reports whether the session is due for eviction at now.
func (s *StudySession) Expired(now time.Time) bool {
	return s.Status == SessionStatusExpired || !now.Before(s.ExpiresAt)
}
