// Package store persists refresh sessions, the vote ledger and scored-entity
// point totals. Every mutation is a single conditional statement; no method
// depends on a multi-statement transaction for correctness.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/models"
)

// ErrDuplicate is returned by CreateVote when a record for the same
// (voter, target) pair already exists.
var ErrDuplicate = errors.New("store: duplicate record")

// SessionStore is the persisted record of every issued refresh credential.
type SessionStore interface {
	CreateSession(ctx context.Context, sess *models.RefreshSession) error

	// ConsumeActive atomically marks the session holding token as consumed if
	// it is unconsumed and expires after now. It returns the consumed record,
	// or a not-found error when no session matched.
	ConsumeActive(ctx context.Context, token string, now time.Time) (*models.RefreshSession, error)

	// Consume is ConsumeActive without the expiry precondition.
	Consume(ctx context.Context, token string, now time.Time) (*models.RefreshSession, error)

	// DeleteExpired removes sessions that expired before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// VoteLedger holds at most one vote per (voter, target). Update and delete
// only apply when the stored direction still equals the expected one, and
// report whether they did.
type VoteLedger interface {
	// GetVote returns nil, nil when the voter has no stance on the target.
	GetVote(ctx context.Context, voterID int, kind models.TargetKind, targetID int) (*models.Vote, error)
	CreateVote(ctx context.Context, vote *models.Vote) error
	UpdateVoteDirection(ctx context.Context, voterID int, kind models.TargetKind, targetID, from, to int) (bool, error)
	DeleteVote(ctx context.Context, voterID int, kind models.TargetKind, targetID, expected int) (bool, error)
	CountVotes(ctx context.Context, kind models.TargetKind, targetID int) (int64, error)
}

// ScoreStore applies point deltas to posts and comments.
type ScoreStore interface {
	// IncrementPoints adds delta to the target's points in one atomic
	// statement and returns the new total; not-found if the target is absent.
	IncrementPoints(ctx context.Context, kind models.TargetKind, targetID, delta int) (int, error)
}
