package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/apperr"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/config"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/handlers"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/logging"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/metrics"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/middleware"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/models"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/score"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/session"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/store"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/thread"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/token"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[int]*models.User
	pass  map[string]string
}

func (f *fakeUsers) Register(_ context.Context, req models.RegisterRequest) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == req.Email {
			return nil, apperr.Validation("users.Register", "username or email already exists")
		}
	}
	u := &models.User{ID: len(f.users) + 1, Username: req.Username, Email: req.Email}
	f.users[u.ID] = u
	f.pass[req.Email] = req.Password
	return u, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email && f.pass[email] == password {
			return u, nil
		}
	}
	return nil, apperr.Authentication("users.Authenticate", "invalid credentials", nil)
}

func (f *fakeUsers) Get(_ context.Context, id int) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.NotFound("users.Get", fmt.Sprintf("user %d not found", id))
	}
	return u, nil
}

func (f *fakeUsers) UpdateProfile(ctx context.Context, id int, bio, _ string) (*models.User, error) {
	u, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Bio = bio
	return u, nil
}

const postOwner = 99

// fakePosts serves a single post with id 1 owned by postOwner.
type fakePosts struct{}

func (fakePosts) Create(_ context.Context, authorID int, req models.CreatePostRequest) (*models.Post, error) {
	return &models.Post{ID: 2, Title: req.Title, AuthorID: authorID}, nil
}

func (fakePosts) Get(_ context.Context, id int) (*models.Post, error) {
	if id != 1 {
		return nil, apperr.NotFound("posts.Get", "post not found")
	}
	return &models.Post{ID: 1, Title: "hello", AuthorID: postOwner}, nil
}

func (fakePosts) List(context.Context, int, int) ([]models.Post, error) {
	return []models.Post{{ID: 1, Title: "hello", AuthorID: postOwner}}, nil
}

func (fakePosts) ListByAuthor(context.Context, int, int) ([]models.Post, error) {
	return []models.Post{}, nil
}

func (p fakePosts) Update(ctx context.Context, userID, id int, _ models.CreatePostRequest) (*models.Post, error) {
	post, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, apperr.Forbidden("posts.Update", "you can only edit your own posts")
	}
	return post, nil
}

func (p fakePosts) Delete(ctx context.Context, userID, id int) error {
	_, err := p.Update(ctx, userID, id, models.CreatePostRequest{})
	return err
}

type fakeComments struct{}

func (fakeComments) Create(_ context.Context, authorID, postID int, req models.CreateCommentRequest) (*models.Comment, error) {
	return &models.Comment{ID: 1, PostID: postID, AuthorID: authorID, ParentID: req.ParentID, Body: req.Body}, nil
}

func (fakeComments) Edit(context.Context, int, int, models.UpdateCommentRequest) (*models.Comment, error) {
	return nil, apperr.Validation("comments.Edit", "cannot edit a deleted comment")
}

func (fakeComments) Delete(context.Context, int, int) error { return nil }

func (fakeComments) Tree(_ context.Context, postID int) ([]*thread.Node, error) {
	parent := 1
	list := []models.Comment{
		{ID: 1, PostID: postID, Body: models.DeletedBody, Deleted: true},
		{ID: 2, PostID: postID, ParentID: &parent, Body: "still here"},
	}
	return thread.Build(list), nil
}

type testEnv struct {
	router *gin.Engine
	mem    *store.Memory
}

func newEnv(t *testing.T, limiter ...*middleware.RateLimiter) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	mem.PutTarget(models.TargetPost, 1, 0)
	mem.PutTarget(models.TargetComment, 1, 0)

	log := logging.Discard()
	m := metrics.New()
	codec := token.NewCodec(config.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
	})
	users := &fakeUsers{users: map[int]*models.User{}, pass: map[string]string{}}
	sessions := session.NewService(codec, mem, users, log, session.WithMetrics(m))

	h := handlers.NewHandler(handlers.Deps{
		Sessions: sessions,
		Users:    users,
		Posts:    fakePosts{},
		Comments: fakeComments{},
		Votes:    score.NewService(mem, mem, log, m),
		Log:      log,
	})
	opts := Options{
		Handler: h,
		Auth:    sessions,
		Health:  func(context.Context) map[string]string { return map[string]string{"status": "up"} },
		Metrics: m.Handler(),
		Log:     log,
	}
	if len(limiter) > 0 {
		opts.AuthLimit = limiter[0]
	}
	srv := New(opts)
	return &testEnv{router: srv.RegisterRoutes(), mem: mem}
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestSessionLifecycle(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodPost, "/api/register", "", models.RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "hunter22",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[models.AuthResponse](t, w)
	require.NotNil(t, reg.User)
	assert.Equal(t, "alice", reg.User.Username)

	w = env.do(t, http.MethodGet, "/api/me", reg.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, reg.User.ID, decode[models.User](t, w).ID)

	w = env.do(t, http.MethodGet, "/api/me", reg.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "refresh token is not an access token")

	w = env.do(t, http.MethodPost, "/api/refresh", "", models.RefreshRequest{RefreshToken: reg.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rotated := decode[models.AuthResponse](t, w)
	assert.NotEqual(t, reg.RefreshToken, rotated.RefreshToken)

	w = env.do(t, http.MethodPost, "/api/refresh", "", models.RefreshRequest{RefreshToken: reg.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "replayed refresh token")

	w = env.do(t, http.MethodPost, "/api/logout", "", models.RefreshRequest{RefreshToken: rotated.RefreshToken})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodPost, "/api/refresh", "", models.RefreshRequest{RefreshToken: rotated.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "logged out token")

	w = env.do(t, http.MethodPost, "/api/login", "", models.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/login", "", models.LoginRequest{Email: "alice@example.com", Password: "hunter22"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVoting(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodPost, "/api/register", "", models.RegisterRequest{
		Username: "bob", Email: "bob@example.com", Password: "hunter22",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	access := decode[models.AuthResponse](t, w).AccessToken

	w = env.do(t, http.MethodPost, "/api/posts/1/vote", "", models.VoteRequest{Direction: 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/posts/1/vote", access, models.VoteRequest{Direction: 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.VoteResponse{Points: 1, Direction: 1}, decode[models.VoteResponse](t, w))

	w = env.do(t, http.MethodGet, "/api/posts/1/vote", access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.VoteStateResponse{Direction: 1}, decode[models.VoteStateResponse](t, w))

	w = env.do(t, http.MethodGet, "/api/posts/1/vote", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/posts/1/vote", access, models.VoteRequest{Direction: 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.VoteResponse{Points: 0, Direction: 0}, decode[models.VoteResponse](t, w))

	w = env.do(t, http.MethodGet, "/api/posts/1/vote", access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.VoteStateResponse{Direction: 0}, decode[models.VoteStateResponse](t, w))

	w = env.do(t, http.MethodPost, "/api/posts/1/vote", access, map[string]int{"direction": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/posts/99/vote", access, models.VoteRequest{Direction: -1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/comments/1/downvote", access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.VoteResponse{Points: -1, Direction: -1}, decode[models.VoteResponse](t, w))

	w = env.do(t, http.MethodPost, "/api/comments/1/vote", access, models.VoteRequest{Direction: 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.VoteResponse{Points: 1, Direction: 1}, decode[models.VoteResponse](t, w))

	w = env.do(t, http.MethodGet, "/api/comments/1/vote", access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.VoteStateResponse{Direction: 1}, decode[models.VoteStateResponse](t, w))

	w = env.do(t, http.MethodGet, "/api/comments/abc/vote", access, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodPost, "/api/register", "", models.RegisterRequest{
		Username: "carol", Email: "carol@example.com", Password: "hunter22",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	access := decode[models.AuthResponse](t, w).AccessToken

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"duplicate registration", http.MethodPost, "/api/register", models.RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "hunter22"}, http.StatusBadRequest},
		{"missing post", http.MethodGet, "/api/posts/7", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/posts/abc", nil, http.StatusBadRequest},
		{"foreign post delete", http.MethodDelete, "/api/posts/1", nil, http.StatusForbidden},
		{"edit tombstone", http.MethodPut, "/api/comments/1", models.UpdateCommentRequest{Body: "x"}, http.StatusBadRequest},
		{"foreign profile", http.MethodPut, "/api/users/99", map[string]string{"bio": "x"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, access, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestCommentsTreeKeepsTombstone(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodGet, "/api/posts/1/comments", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	roots := decode[[]*thread.Node](t, w)
	require.Len(t, roots, 1)
	assert.True(t, roots[0].Comment.Deleted)
	assert.Equal(t, models.DeletedBody, roots[0].Comment.Body)
	require.Len(t, roots[0].Replies, 1)
	assert.Equal(t, "still here", roots[0].Replies[0].Comment.Body)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestAuthEndpointsRateLimited(t *testing.T) {
	env := newEnv(t, middleware.NewRateLimiter(0.001, 2))
	creds := models.LoginRequest{Email: "nobody@example.com", Password: "hunter22"}

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/login", "", creds).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/login", "", creds).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodPost, "/api/login", "", creds).Code)

	// Reads are not throttled.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/posts", "", nil).Code)
}
