// Package score implements voting on posts and comments.
//
// Per (voter, target) the stance is NONE, UP or DOWN, stored as the absence
// of a vote row or a row with direction +1/-1. Casting the current direction
// again toggles back to NONE:
//
//	old \ req   UP            DOWN
//	NONE        UP,   +1      DOWN, -1
//	UP          NONE, -1      DOWN, -2
//	DOWN        UP,   +2      NONE, +1
//
// The delta is applied to the target with a storage-level increment, so
// concurrent voters never overwrite each other's contribution. Ledger writes
// carry the expected previous state; when the same voter races on the same
// target the loser re-reads and re-evaluates instead of double counting.
package score

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/apperr"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/metrics"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/models"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/store"
)

// Direction values. None is never stored.
const (
	Up   = 1
	Down = -1
	None = 0
)

// commitTimeout bounds the increment (and any undo) that follows a ledger
// write. Those run detached from the caller's cancellation.
const commitTimeout = 5 * time.Second

// maxAttempts bounds re-evaluation when the same voter's concurrent requests
// keep invalidating each other's expected state.
const maxAttempts = 3

// Outcome is the result of a vote.
type Outcome struct {
	Points    int
	Direction int
}

// Ledger is the subset of store.VoteLedger the service needs.
type Ledger interface {
	GetVote(ctx context.Context, voterID int, kind models.TargetKind, targetID int) (*models.Vote, error)
	CreateVote(ctx context.Context, vote *models.Vote) error
	UpdateVoteDirection(ctx context.Context, voterID int, kind models.TargetKind, targetID, from, to int) (bool, error)
	DeleteVote(ctx context.Context, voterID int, kind models.TargetKind, targetID, expected int) (bool, error)
}

type Service struct {
	ledger  Ledger
	points  store.ScoreStore
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewService(ledger Ledger, points store.ScoreStore, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{ledger: ledger, points: points, log: log, metrics: m}
}

// Transition computes the next stance and the point delta for a request.
func Transition(old, requested int) (next, delta int) {
	if old == requested {
		return None, -old
	}
	return requested, requested - old
}

// CastVote applies one vote request and returns the target's new total and
// the voter's resulting direction (0 for none).
func (s *Service) CastVote(ctx context.Context, voterID, targetID int, kind models.TargetKind, direction int) (Outcome, error) {
	const op = "score.CastVote"

	if err := validate(op, voterID, targetID, kind); err != nil {
		return Outcome{}, err
	}
	if direction != Up && direction != Down {
		return Outcome{}, apperr.Validation(op, "direction must be 1 or -1")
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		old, err := s.currentDirection(ctx, voterID, targetID, kind)
		if err != nil {
			return Outcome{}, err
		}

		next, delta := Transition(old, direction)
		applied, err := s.applyLedger(ctx, voterID, targetID, kind, old, next)
		if err != nil {
			return Outcome{}, err
		}
		if !applied {
			s.log.DebugContext(ctx, "vote precondition missed, re-reading",
				"voter_id", voterID, "target_kind", kind, "target_id", targetID, "attempt", attempt+1)
			continue
		}

		// The ledger write is committed; a caller that goes away now must not
		// leave the points total behind it.
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		points, err := s.points.IncrementPoints(commitCtx, kind, targetID, delta)
		if err != nil {
			// Undo the ledger write so no vote row outlives a missing target.
			if _, rbErr := s.applyLedger(commitCtx, voterID, targetID, kind, next, old); rbErr != nil {
				s.log.ErrorContext(ctx, "vote ledger compensation failed",
					"voter_id", voterID, "target_kind", kind, "target_id", targetID, "error", rbErr)
			}
			cancel()
			if apperr.Is(err, apperr.KindNotFound) {
				return Outcome{}, apperr.NotFound(op, fmt.Sprintf("%s %d not found", kind, targetID))
			}
			return Outcome{}, err
		}
		cancel()

		s.metrics.Vote(string(kind), label(old)+"->"+label(next))
		return Outcome{Points: points, Direction: next}, nil
	}

	return Outcome{}, apperr.Conflict(op, "vote changed concurrently, try again")
}

// VoterDirection returns the voter's current stance on a target.
func (s *Service) VoterDirection(ctx context.Context, voterID, targetID int, kind models.TargetKind) (int, error) {
	if err := validate("score.VoterDirection", voterID, targetID, kind); err != nil {
		return None, err
	}
	return s.currentDirection(ctx, voterID, targetID, kind)
}

func (s *Service) currentDirection(ctx context.Context, voterID, targetID int, kind models.TargetKind) (int, error) {
	vote, err := s.ledger.GetVote(ctx, voterID, kind, targetID)
	if err != nil {
		return None, err
	}
	if vote == nil {
		return None, nil
	}
	return vote.Direction, nil
}

// applyLedger moves the stored stance from old to next, reporting false when
// the stored state no longer equals old.
func (s *Service) applyLedger(ctx context.Context, voterID, targetID int, kind models.TargetKind, old, next int) (bool, error) {
	switch {
	case old == next:
		return true, nil
	case old == None:
		err := s.ledger.CreateVote(ctx, &models.Vote{
			UserID:     voterID,
			TargetKind: kind,
			TargetID:   targetID,
			Direction:  next,
		})
		if errors.Is(err, store.ErrDuplicate) {
			return false, nil
		}
		return err == nil, err
	case next == None:
		return s.ledger.DeleteVote(ctx, voterID, kind, targetID, old)
	default:
		return s.ledger.UpdateVoteDirection(ctx, voterID, kind, targetID, old, next)
	}
}

func validate(op string, voterID, targetID int, kind models.TargetKind) error {
	switch {
	case voterID <= 0:
		return apperr.Validation(op, "invalid voter id")
	case targetID <= 0:
		return apperr.Validation(op, "invalid target id")
	case !kind.Valid():
		return apperr.Validation(op, fmt.Sprintf("unknown target kind %q", kind))
	}
	return nil
}

func label(direction int) string {
	switch direction {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "none"
	}
}
