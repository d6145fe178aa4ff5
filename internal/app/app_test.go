package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/apperr"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/config"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/logging"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/models"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/score"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/testutil/pgtest"
)

func testConfig() *config.Config {
	return &config.Config{
		Port: "0",
		Tokens: config.TokenConfig{
			AccessSecret:  "access",
			RefreshSecret: "refresh",
			AccessTTL:     time.Minute,
			RefreshTTL:    time.Hour,
		},
		SessionRetention: time.Hour,
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Tokens.RefreshSecret = ""

	_, err := New(cfg, logging.Discard())
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestWiredEndToEnd(t *testing.T) {
	db := pgtest.New(t)
	a := newWithDB(testConfig(), logging.Discard(), db)
	ctx := context.Background()

	res, err := a.Sessions.Register(ctx, models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)

	post, err := a.Posts.Create(ctx, res.User.ID, models.CreatePostRequest{Title: "hello"})
	require.NoError(t, err)

	out, err := a.Votes.CastVote(ctx, res.User.ID, post.ID, models.TargetPost, score.Up)
	require.NoError(t, err)
	assert.Equal(t, score.Outcome{Points: 1, Direction: score.Up}, out)

	got, err := a.Posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Points)

	pair, err := a.Sessions.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	_, err = a.Sessions.Refresh(ctx, res.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))

	// Nothing has expired yet.
	n, err := a.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, a.Sessions.Logout(ctx, pair.RefreshToken))

	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"up"`)
}

func TestAuthLimiterSharedAndPruned(t *testing.T) {
	db := pgtest.New(t)
	cfg := testConfig()
	cfg.AuthRatePerSecond = 1
	cfg.AuthRateBurst = 1
	a := newWithDB(cfg, logging.Discard(), db)

	login := func(h http.Handler) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.NotEqual(t, http.StatusTooManyRequests, login(a.Handler()))
	// A second handler shares the bucket.
	assert.Equal(t, http.StatusTooManyRequests, login(a.Handler()))
	require.Equal(t, 1, a.limiter.Len())

	a.pruneLimiter(time.Now().Add(time.Minute))
	assert.Zero(t, a.limiter.Len())
	assert.NotEqual(t, http.StatusTooManyRequests, login(a.Handler()))
}
