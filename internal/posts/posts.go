// Package posts owns submission CRUD. Point totals are only changed through
// the score service.
package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/apperr"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/models"
)

const (
	DefaultLimit = 30
	MaxLimit     = 100
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, authorID int, req models.CreatePostRequest) (*models.Post, error) {
	const op = "posts.Create"

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperr.Validation(op, "title is required")
	}
	if authorID <= 0 {
		return nil, apperr.Validation(op, "author is required")
	}

	post := models.Post{
		Title:    title,
		URL:      strings.TrimSpace(req.URL),
		Body:     req.Body,
		AuthorID: authorID,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return s.Get(ctx, post.ID)
}

func (s *Service) Get(ctx context.Context, id int) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Preload("Author").First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("posts.Get", fmt.Sprintf("post %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

// List returns posts newest first. A non-positive limit uses DefaultLimit.
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Post, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	posts := []models.Post{}
	err := s.db.WithContext(ctx).
		Preload("Author").
		Order("created_at desc, id desc").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// ListByAuthor returns up to limit posts by authorID, newest first.
func (s *Service) ListByAuthor(ctx context.Context, authorID, limit int) ([]models.Post, error) {
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}

	posts := []models.Post{}
	err := s.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("list posts by author: %w", err)
	}
	return posts, nil
}

// Update changes title, url and body of a post owned by userID. Empty fields
// are left as they are.
func (s *Service) Update(ctx context.Context, userID, id int, req models.CreatePostRequest) (*models.Post, error) {
	const op = "posts.Update"

	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, apperr.Forbidden(op, "you can only edit your own posts")
	}

	updates := map[string]interface{}{}
	if title := strings.TrimSpace(req.Title); title != "" {
		updates["title"] = title
	}
	if u := strings.TrimSpace(req.URL); u != "" {
		updates["url"] = u
	}
	if req.Body != "" {
		updates["body"] = req.Body
	}
	if len(updates) == 0 {
		return post, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Post{ID: id}).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete removes a post owned by userID along with its comments and every
// vote cast on either.
func (s *Service) Delete(ctx context.Context, userID, id int) error {
	const op = "posts.Delete"

	post, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != userID {
		return apperr.Forbidden(op, "you can only delete your own posts")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", id)
		if err := tx.Where("target_kind = ? AND target_id IN (?)", models.TargetComment, commentIDs).
			Delete(&models.Vote{}).Error; err != nil {
			return fmt.Errorf("delete comment votes: %w", err)
		}
		if err := tx.Where("target_kind = ? AND target_id = ?", models.TargetPost, id).
			Delete(&models.Vote{}).Error; err != nil {
			return fmt.Errorf("delete post votes: %w", err)
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		if err := tx.Delete(&models.Post{}, id).Error; err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		return nil
	})
}
