package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/apperr"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/models"
)

type voteKey struct {
	voterID  int
	kind     models.TargetKind
	targetID int
}

type targetKey struct {
	kind models.TargetKind
	id   int
}

// Memory is an in-process store for tests and local development. Each method
// runs under one mutex, which gives it the same single-record atomicity the
// postgres statements have.
type Memory struct {
	mu sync.Mutex

	nextID   int
	sessions map[string]*models.RefreshSession
	votes    map[voteKey]*models.Vote
	points   map[targetKey]int
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*models.RefreshSession),
		votes:    make(map[voteKey]*models.Vote),
		points:   make(map[targetKey]int),
	}
}

// PutTarget registers a scored entity with an initial point total.
func (m *Memory) PutTarget(kind models.TargetKind, id, points int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[targetKey{kind, id}] = points
}

// RemoveTarget deletes a scored entity, as a concurrent post deletion would.
func (m *Memory) RemoveTarget(kind models.TargetKind, id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, targetKey{kind, id})
}

// Points returns a target's current total and whether it exists.
func (m *Memory) Points(kind models.TargetKind, id int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.points[targetKey{kind, id}]
	return p, ok
}

// Session returns a copy of the stored session for token, if any.
func (m *Memory) Session(token string) (models.RefreshSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return models.RefreshSession{}, false
	}
	return *sess, true
}

func (m *Memory) id() int {
	m.nextID++
	return m.nextID
}

// Sessions

func (m *Memory) CreateSession(_ context.Context, sess *models.RefreshSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sess.Token]; ok {
		return fmt.Errorf("create session: %w", ErrDuplicate)
	}
	if sess.ID == 0 {
		sess.ID = m.id()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	cp := *sess
	m.sessions[sess.Token] = &cp
	return nil
}

func (m *Memory) ConsumeActive(_ context.Context, token string, now time.Time) (*models.RefreshSession, error) {
	return m.consume("store.ConsumeActive", token, now, true)
}

func (m *Memory) Consume(_ context.Context, token string, now time.Time) (*models.RefreshSession, error) {
	return m.consume("store.Consume", token, now, false)
}

func (m *Memory) consume(op, token string, now time.Time, checkExpiry bool) (*models.RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[token]
	if !ok || sess.Consumed || (checkExpiry && sess.Expired(now)) {
		return nil, apperr.NotFound(op, "no active session for token")
	}
	at := now
	sess.Consumed = true
	sess.ConsumedAt = &at
	cp := *sess
	return &cp, nil
}

func (m *Memory) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for tok, sess := range m.sessions {
		if sess.ExpiresAt.Before(before) {
			delete(m.sessions, tok)
			n++
		}
	}
	return n, nil
}

// Votes

func (m *Memory) GetVote(_ context.Context, voterID int, kind models.TargetKind, targetID int) (*models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.votes[voteKey{voterID, kind, targetID}]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (m *Memory) CreateVote(_ context.Context, vote *models.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := voteKey{vote.UserID, vote.TargetKind, vote.TargetID}
	if _, ok := m.votes[key]; ok {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	vote.ID = m.id()
	vote.CreatedAt, vote.UpdatedAt = now, now
	cp := *vote
	m.votes[key] = &cp
	return nil
}

func (m *Memory) UpdateVoteDirection(_ context.Context, voterID int, kind models.TargetKind, targetID, from, to int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.votes[voteKey{voterID, kind, targetID}]
	if !ok || v.Direction != from {
		return false, nil
	}
	v.Direction = to
	v.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *Memory) DeleteVote(_ context.Context, voterID int, kind models.TargetKind, targetID, expected int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := voteKey{voterID, kind, targetID}
	v, ok := m.votes[key]
	if !ok || v.Direction != expected {
		return false, nil
	}
	delete(m.votes, key)
	return true, nil
}

func (m *Memory) CountVotes(_ context.Context, kind models.TargetKind, targetID int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for k := range m.votes {
		if k.kind == kind && k.targetID == targetID {
			n++
		}
	}
	return n, nil
}

// Points

func (m *Memory) IncrementPoints(_ context.Context, kind models.TargetKind, targetID, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := targetKey{kind, targetID}
	p, ok := m.points[key]
	if !ok {
		return 0, apperr.NotFound("store.IncrementPoints", fmt.Sprintf("%s %d not found", kind, targetID))
	}
	p += delta
	m.points[key] = p
	return p, nil
}

var (
	_ SessionStore = (*Memory)(nil)
	_ VoteLedger   = (*Memory)(nil)
	_ ScoreStore   = (*Memory)(nil)
)
