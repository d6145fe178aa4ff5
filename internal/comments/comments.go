// Package comments stores discussion replies and serves them back as a
// thread.
package comments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/apperr"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/models"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/thread"
)

type Service struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewService(db *gorm.DB, log *slog.Logger) *Service {
	return &Service{db: db, log: log}
}

// Create adds a comment to postID. A reply's parent must be a live comment on
// the same post.
func (s *Service) Create(ctx context.Context, authorID, postID int, req models.CreateCommentRequest) (*models.Comment, error) {
	const op = "comments.Create"

	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, apperr.Validation(op, "body is required")
	}
	if authorID <= 0 {
		return nil, apperr.Validation(op, "author is required")
	}

	var post models.Post
	err := s.db.WithContext(ctx).Select("id").First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(op, fmt.Sprintf("post %d not found", postID))
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	if req.ParentID != nil {
		parent, err := s.find(ctx, op, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != postID {
			return nil, apperr.Validation(op, "parent comment belongs to a different post")
		}
		if parent.Deleted {
			return nil, apperr.Validation(op, "cannot reply to a deleted comment")
		}
	}

	comment := models.Comment{
		PostID:   postID,
		AuthorID: authorID,
		ParentID: req.ParentID,
		Body:     body,
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return s.Get(ctx, comment.ID)
}

func (s *Service) Get(ctx context.Context, id int) (*models.Comment, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).Preload("Author").First(&comment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("comments.Get", fmt.Sprintf("comment %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &comment, nil
}

// Edit replaces the body of a live comment owned by userID.
func (s *Service) Edit(ctx context.Context, userID, id int, req models.UpdateCommentRequest) (*models.Comment, error) {
	const op = "comments.Edit"

	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, apperr.Validation(op, "body is required")
	}

	comment, err := s.find(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != userID {
		return nil, apperr.Forbidden(op, "you can only edit your own comments")
	}
	if comment.Deleted {
		return nil, apperr.Validation(op, "cannot edit a deleted comment")
	}

	res := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ? AND deleted = ?", id, false).
		Update("body", body)
	if res.Error != nil {
		return nil, fmt.Errorf("edit comment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Validation(op, "cannot edit a deleted comment")
	}
	return s.Get(ctx, id)
}

// Delete tombstones a comment owned by userID. Its replies, votes and points
// stay in place. Deleting a tombstone again is a no-op.
func (s *Service) Delete(ctx context.Context, userID, id int) error {
	const op = "comments.Delete"

	comment, err := s.find(ctx, op, id)
	if err != nil {
		return err
	}
	if comment.AuthorID != userID {
		return apperr.Forbidden(op, "you can only delete your own comments")
	}
	if comment.Deleted {
		return nil
	}

	thread.Tombstone(comment)
	err = s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"deleted": comment.Deleted, "body": comment.Body}).Error
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// Tree returns every comment of postID as a forest, oldest first among
// siblings.
func (s *Service) Tree(ctx context.Context, postID int) ([]*thread.Node, error) {
	const op = "comments.Tree"

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	if count == 0 {
		return nil, apperr.NotFound(op, fmt.Sprintf("post %d not found", postID))
	}

	var list []models.Comment
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at asc, id asc").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	roots, orphans := thread.BuildWithOrphans(list)
	if len(orphans) > 0 {
		// A parent on another post or a missing parent row; the subtree is
		// left out of the response.
		s.log.WarnContext(ctx, "comment thread has orphaned replies",
			"post_id", postID, "orphans", len(orphans), "hidden_comments", thread.Count(orphans))
	}
	return roots, nil
}

func (s *Service) find(ctx context.Context, op string, id int) (*models.Comment, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).First(&comment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(op, fmt.Sprintf("comment %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &comment, nil
}
