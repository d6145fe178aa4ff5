package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/models"
)

type CommentHandler struct {
	comments Comments
	votes    Votes
	log      *slog.Logger
}

// GetComments returns the post's comment forest, tombstones included.
func (h *CommentHandler) GetComments(c *gin.Context) {
	postID, ok := idParam(c, "id")
	if !ok {
		return
	}

	roots, err := h.comments.Tree(c.Request.Context(), postID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, roots)
}

func (h *CommentHandler) CreateComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), userID, postID, input)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) UpdateComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "commentId")
	if !ok {
		return
	}

	var input models.UpdateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.comments.Edit(c.Request.Context(), userID, id, input)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// DeleteComment tombstones the comment; replies stay attached.
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "commentId")
	if !ok {
		return
	}

	if err := h.comments.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

func (h *CommentHandler) VoteComment(c *gin.Context) {
	castVote(c, h.votes, h.log, models.TargetComment, "commentId")
}

func (h *CommentHandler) GetCommentVote(c *gin.Context) {
	voterDirection(c, h.votes, h.log, models.TargetComment, "commentId")
}

// UpvoteComment and DownvoteComment are fixed-direction shortcuts. Sending
// the same one twice clears the vote.
func (h *CommentHandler) UpvoteComment(c *gin.Context) {
	h.fixedVote(c, 1)
}

func (h *CommentHandler) DownvoteComment(c *gin.Context) {
	h.fixedVote(c, -1)
}

func (h *CommentHandler) fixedVote(c *gin.Context, direction int) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "commentId")
	if !ok {
		return
	}

	out, err := h.votes.CastVote(c.Request.Context(), userID, id, models.TargetComment, direction)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, models.VoteResponse{Points: out.Points, Direction: out.Direction})
}
