package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/apperr"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/middleware"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/models"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/score"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/session"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/thread"
)

// Sessions is the subset of session.Service the auth endpoints use.
type Sessions interface {
	Register(ctx context.Context, req models.RegisterRequest) (session.Result, error)
	Login(ctx context.Context, email, password string) (session.Result, error)
	Refresh(ctx context.Context, refreshToken string) (session.Pair, error)
	Logout(ctx context.Context, refreshToken string) error
}

type Users interface {
	Get(ctx context.Context, id int) (*models.User, error)
	UpdateProfile(ctx context.Context, id int, bio, avatar string) (*models.User, error)
}

type Posts interface {
	Create(ctx context.Context, authorID int, req models.CreatePostRequest) (*models.Post, error)
	Get(ctx context.Context, id int) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]models.Post, error)
	ListByAuthor(ctx context.Context, authorID, limit int) ([]models.Post, error)
	Update(ctx context.Context, userID, id int, req models.CreatePostRequest) (*models.Post, error)
	Delete(ctx context.Context, userID, id int) error
}

type Comments interface {
	Create(ctx context.Context, authorID, postID int, req models.CreateCommentRequest) (*models.Comment, error)
	Edit(ctx context.Context, userID, id int, req models.UpdateCommentRequest) (*models.Comment, error)
	Delete(ctx context.Context, userID, id int) error
	Tree(ctx context.Context, postID int) ([]*thread.Node, error)
}

type Votes interface {
	CastVote(ctx context.Context, voterID, targetID int, kind models.TargetKind, direction int) (score.Outcome, error)
	VoterDirection(ctx context.Context, voterID, targetID int, kind models.TargetKind) (int, error)
}

// Handler combines all handler types
type Handler struct {
	Auth    *AuthHandler
	Post    *PostHandler
	Comment *CommentHandler
	User    *UserHandler
}

// Deps carries the services the handlers sit on.
type Deps struct {
	Sessions Sessions
	Users    Users
	Posts    Posts
	Comments Comments
	Votes    Votes
	Log      *slog.Logger
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		Auth:    &AuthHandler{sessions: d.Sessions, users: d.Users, log: log},
		Post:    &PostHandler{posts: d.Posts, votes: d.Votes, log: log},
		Comment: &CommentHandler{comments: d.Comments, votes: d.Votes, log: log},
		User:    &UserHandler{users: d.Users, posts: d.Posts, log: log},
	}
}

// respondError writes err with the status its kind maps to. Unclassified
// errors are logged and reported as 500 without detail.
func respondError(c *gin.Context, log *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindAuthentication:
		status = http.StatusUnauthorized
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindConflict:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.ErrorContext(c.Request.Context(), "request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Any("error", err))
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}

	msg := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) && e.Msg != "" {
		msg = e.Msg
	}
	c.JSON(status, gin.H{"error": msg})
}

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// currentUser returns the authenticated subject or writes 401.
func currentUser(c *gin.Context) (int, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}
