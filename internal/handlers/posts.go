package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/models"
)

type PostHandler struct {
	posts Posts
	votes Votes
	log   *slog.Logger
}

// GetPosts lists posts newest first; ?limit= and ?offset= page through them.
func (h *PostHandler) GetPosts(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context(), queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// GetPost returns a single post by ID
func (h *PostHandler) GetPost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	post, err := h.posts.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) CreatePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var input models.CreatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.posts.Create(c.Request.Context(), userID, input)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// UpdatePost updates an existing post (requires ownership)
func (h *PostHandler) UpdatePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var input struct {
		Title string `json:"title" binding:"max=300"`
		URL   string `json:"url" binding:"omitempty,url"`
		Body  string `json:"body"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.posts.Update(c.Request.Context(), userID, id, models.CreatePostRequest{
		Title: input.Title,
		URL:   input.URL,
		Body:  input.Body,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost deletes a post (requires ownership)
func (h *PostHandler) DeletePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.posts.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// VotePost applies {"direction": 1|-1}. Repeating the current direction
// clears the vote.
func (h *PostHandler) VotePost(c *gin.Context) {
	castVote(c, h.votes, h.log, models.TargetPost, "id")
}

// GetPostVote returns the caller's current vote on the post.
func (h *PostHandler) GetPostVote(c *gin.Context) {
	voterDirection(c, h.votes, h.log, models.TargetPost, "id")
}

func voterDirection(c *gin.Context, votes Votes, log *slog.Logger, kind models.TargetKind, param string) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, param)
	if !ok {
		return
	}

	dir, err := votes.VoterDirection(c.Request.Context(), userID, id, kind)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, models.VoteStateResponse{Direction: dir})
}

func castVote(c *gin.Context, votes Votes, log *slog.Logger, kind models.TargetKind, param string) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, param)
	if !ok {
		return
	}

	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be 1 or -1"})
		return
	}

	out, err := votes.CastVote(c.Request.Context(), userID, id, kind, input.Direction)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, models.VoteResponse{Points: out.Points, Direction: out.Direction})
}
