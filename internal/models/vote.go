package models

import "time"

// TargetKind names the entity a vote is attached to.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

func (k TargetKind) Valid() bool {
	return k == TargetPost || k == TargetComment
}

// Vote tracks one voter's current stance on one target. Absence of a row is
// the NONE state; Direction is +1 or -1.
type Vote struct {
	ID         int        `gorm:"primaryKey" json:"id"`
	UserID     int        `gorm:"uniqueIndex:idx_votes_voter_target;not null" json:"user_id"`
	TargetKind TargetKind `gorm:"uniqueIndex:idx_votes_voter_target;size:16;not null" json:"target_kind"`
	TargetID   int        `gorm:"uniqueIndex:idx_votes_voter_target;index;not null" json:"target_id"`
	Direction  int        `gorm:"not null;check:chk_votes_direction,direction IN (-1, 1)" json:"direction"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type VoteRequest struct {
	Direction int `json:"direction" binding:"required,oneof=-1 1"`
}

type VoteResponse struct {
	Points    int `json:"points"`
	Direction int `json:"direction"`
}

// VoteStateResponse reports the caller's current stance; 0 means no vote.
type VoteStateResponse struct {
	Direction int `json:"direction"`
}
