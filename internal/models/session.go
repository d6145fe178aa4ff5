package models

import "time"

// RefreshSession is one issued refresh credential. Consumed flips from false to true
// exactly once and the row is kept afterwards so a replayed token is still
// recognised as spent.
type RefreshSession struct {
	ID         int        `gorm:"primaryKey" json:"id"`
	UserID     int        `gorm:"index;not null" json:"user_id"`
	Token      string     `gorm:"uniqueIndex;type:text;not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"index;not null" json:"expires_at"`
	Consumed   bool       `gorm:"not null;default:false" json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Expired reports whether the session can no longer be rotated at now. A
// session is usable strictly before ExpiresAt.
func (s *RefreshSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
