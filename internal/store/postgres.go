package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/apperr"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/models"
)

// uniqueViolation is the postgres SQLSTATE for a unique index conflict.
const uniqueViolation = "23505"

type Postgres struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

// Sessions

func (s *Postgres) CreateSession(ctx context.Context, sess *models.RefreshSession) error {
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Postgres) ConsumeActive(ctx context.Context, token string, now time.Time) (*models.RefreshSession, error) {
	return s.consume(ctx, "store.ConsumeActive", now,
		"token = ? AND consumed = ? AND expires_at > ?", token, false, now)
}

func (s *Postgres) Consume(ctx context.Context, token string, now time.Time) (*models.RefreshSession, error) {
	return s.consume(ctx, "store.Consume", now,
		"token = ? AND consumed = ?", token, false)
}

// consume runs UPDATE ... WHERE <cond> RETURNING *, so the precondition check
// and the flip to consumed happen in one statement.
func (s *Postgres) consume(ctx context.Context, op string, now time.Time, cond string, args ...interface{}) (*models.RefreshSession, error) {
	var sess models.RefreshSession
	res := s.db.WithContext(ctx).
		Model(&sess).
		Clauses(clause.Returning{}).
		Where(cond, args...).
		Updates(map[string]interface{}{"consumed": true, "consumed_at": now})
	if res.Error != nil {
		return nil, fmt.Errorf("consume session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound(op, "no active session for token")
	}
	return &sess, nil
}

func (s *Postgres) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&models.RefreshSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Votes

func (s *Postgres) GetVote(ctx context.Context, voterID int, kind models.TargetKind, targetID int) (*models.Vote, error) {
	var vote models.Vote
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND target_kind = ? AND target_id = ?", voterID, kind, targetID).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vote: %w", err)
	}
	return &vote, nil
}

func (s *Postgres) CreateVote(ctx context.Context, vote *models.Vote) error {
	err := s.db.WithContext(ctx).Create(vote).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create vote: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateVoteDirection(ctx context.Context, voterID int, kind models.TargetKind, targetID, from, to int) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("user_id = ? AND target_kind = ? AND target_id = ? AND direction = ?", voterID, kind, targetID, from).
		Updates(map[string]interface{}{"direction": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("update vote: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Postgres) DeleteVote(ctx context.Context, voterID int, kind models.TargetKind, targetID, expected int) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND target_kind = ? AND target_id = ? AND direction = ?", voterID, kind, targetID, expected).
		Delete(&models.Vote{})
	if res.Error != nil {
		return false, fmt.Errorf("delete vote: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Postgres) CountVotes(ctx context.Context, kind models.TargetKind, targetID int) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("target_kind = ? AND target_id = ?", kind, targetID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return n, nil
}

// Points

func (s *Postgres) IncrementPoints(ctx context.Context, kind models.TargetKind, targetID, delta int) (int, error) {
	var (
		model  interface{}
		points *int
	)
	switch kind {
	case models.TargetPost:
		p := &models.Post{}
		model, points = p, &p.Points
	case models.TargetComment:
		c := &models.Comment{}
		model, points = c, &c.Points
	default:
		return 0, apperr.Validation("store.IncrementPoints", fmt.Sprintf("unknown target kind %q", kind))
	}

	res := s.db.WithContext(ctx).
		Model(model).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "points"}}}).
		Where("id = ?", targetID).
		UpdateColumn("points", gorm.Expr("points + ?", delta))
	if res.Error != nil {
		return 0, fmt.Errorf("increment points: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, apperr.NotFound("store.IncrementPoints", fmt.Sprintf("%s %d not found", kind, targetID))
	}
	return *points, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var (
	_ SessionStore = (*Postgres)(nil)
	_ VoteLedger   = (*Postgres)(nil)
	_ ScoreStore   = (*Postgres)(nil)
)
