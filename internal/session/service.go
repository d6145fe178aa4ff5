// Package session issues credential pairs and owns the refresh rotation
// protocol.
//
// A refresh token authorises exactly one exchange. The exchange is decided by
// one conditional update in the session store (token matches, unconsumed,
// unexpired, then set consumed), so when several requests race on the same token only
// one of them observes a match. Everyone else gets an authentication error and
// must log in again.
package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/apperr"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/metrics"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/models"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/store"
)

// Codec issues and verifies signed credentials.
type Codec interface {
	Validate() error
	IssueAccess(subjectID int) (string, time.Time, error)
	IssueRefresh(subjectID int) (string, time.Time, error)
	VerifyAccess(token string) (int, error)
	VerifyRefresh(token string) (int, error)
}

// Authenticator resolves credentials to a subject. Password checking lives
// behind it.
type Authenticator interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// Pair is a freshly issued access/refresh credential pair.
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Result is returned by Register and Login.
type Result struct {
	User *models.User
	Pair
}

type Service struct {
	codec   Codec
	store   store.SessionStore
	users   Authenticator
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now. The codec should share the same clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(codec Codec, sessions store.SessionStore, users Authenticator, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		codec: codec,
		store: sessions,
		users: users,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a subject and signs it in.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (Result, error) {
	// Checked before the user row exists; a signup that cannot be signed in
	// would otherwise block a retry with "already exists".
	if err := s.codec.Validate(); err != nil {
		s.metrics.SessionEvent("register", metrics.OutcomeError)
		return Result{}, err
	}

	user, err := s.users.Register(ctx, req)
	if err != nil {
		s.metrics.SessionEvent("register", metrics.OutcomeRejected)
		return Result{}, err
	}

	pair, err := s.issue(ctx, user.ID)
	if err != nil {
		s.metrics.SessionEvent("register", metrics.OutcomeError)
		return Result{}, err
	}

	s.metrics.SessionEvent("register", metrics.OutcomeOK)
	s.log.InfoContext(ctx, "user registered", "user_id", user.ID)
	return Result{User: user, Pair: pair}, nil
}

// Login checks credentials and starts a new session.
func (s *Service) Login(ctx context.Context, email, password string) (Result, error) {
	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		s.metrics.SessionEvent("login", metrics.OutcomeRejected)
		return Result{}, err
	}

	pair, err := s.issue(ctx, user.ID)
	if err != nil {
		s.metrics.SessionEvent("login", metrics.OutcomeError)
		return Result{}, err
	}

	s.metrics.SessionEvent("login", metrics.OutcomeOK)
	s.log.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return Result{User: user, Pair: pair}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// spent whether or not issuing the replacement succeeds.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Pair, error) {
	const op = "session.Refresh"

	refreshToken = strings.TrimSpace(refreshToken)
	subjectID, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		s.metrics.SessionEvent("refresh", metrics.OutcomeRejected)
		return Pair{}, err
	}

	now := s.now().UTC()
	sess, err := s.store.ConsumeActive(ctx, refreshToken, now)
	if apperr.Is(err, apperr.KindNotFound) {
		s.metrics.SessionEvent("refresh", metrics.OutcomeRejected)
		s.log.WarnContext(ctx, "refresh token rejected", "user_id", subjectID)
		return Pair{}, apperr.Authentication(op, "refresh token is expired, revoked or already used", nil)
	}
	if err != nil {
		s.metrics.SessionEvent("refresh", metrics.OutcomeError)
		return Pair{}, err
	}
	if sess.UserID != subjectID {
		s.metrics.SessionEvent("refresh", metrics.OutcomeRejected)
		s.log.ErrorContext(ctx, "refresh session owner mismatch", "session_id", sess.ID, "claimed_user_id", subjectID)
		return Pair{}, apperr.Authentication(op, "refresh token subject mismatch", nil)
	}

	pair, err := s.issue(ctx, sess.UserID)
	if err != nil {
		s.metrics.SessionEvent("refresh", metrics.OutcomeError)
		return Pair{}, err
	}

	s.metrics.SessionEvent("refresh", metrics.OutcomeOK)
	s.log.DebugContext(ctx, "refresh token rotated", "user_id", sess.UserID, "session_id", sess.ID)
	return pair, nil
}

// Logout spends a refresh token without issuing a replacement. Unlike
// Refresh it accepts tokens at or past their expiry, so the signature's exp
// claim is not checked; the stored token is authoritative.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	const op = "session.Logout"

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		s.metrics.SessionEvent("logout", metrics.OutcomeRejected)
		return apperr.Authentication(op, "missing refresh token", nil)
	}

	sess, err := s.store.Consume(ctx, refreshToken, s.now().UTC())
	if apperr.Is(err, apperr.KindNotFound) {
		s.metrics.SessionEvent("logout", metrics.OutcomeRejected)
		return apperr.Authentication(op, "refresh token is unknown or already used", nil)
	}
	if err != nil {
		s.metrics.SessionEvent("logout", metrics.OutcomeError)
		return err
	}

	s.metrics.SessionEvent("logout", metrics.OutcomeOK)
	s.log.InfoContext(ctx, "user logged out", "user_id", sess.UserID)
	return nil
}

// Authenticate resolves an access token to its subject id.
func (s *Service) Authenticate(_ context.Context, accessToken string) (int, error) {
	return s.codec.VerifyAccess(strings.TrimSpace(accessToken))
}

// PruneExpired deletes refresh sessions that expired before the cutoff. It is
// meant for a periodic sweep, not the request path.
func (s *Service) PruneExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, before)
	if err != nil {
		return 0, err
	}
	s.metrics.Pruned(n)
	s.log.InfoContext(ctx, "pruned expired refresh sessions", "count", n, "before", before)
	return n, nil
}

func (s *Service) issue(ctx context.Context, userID int) (Pair, error) {
	access, accessExp, err := s.codec.IssueAccess(userID)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := s.codec.IssueRefresh(userID)
	if err != nil {
		return Pair{}, err
	}

	err = s.store.CreateSession(ctx, &models.RefreshSession{
		UserID:    userID,
		Token:     refresh,
		ExpiresAt: refreshExp,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}
