// Package users resolves credentials to subjects. It is the password-checking
// collaborator behind the session service.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/apperr"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/models"
)

type Directory struct {
	db   *gorm.DB
	cost int
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db, cost: bcrypt.DefaultCost}
}

// WithCost returns a copy using a different bcrypt cost; tests use
// bcrypt.MinCost.
func (d *Directory) WithCost(cost int) *Directory {
	return &Directory{db: d.db, cost: cost}
}

// Register creates an email/password user.
func (d *Directory) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	const op = "users.Register"

	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" || req.Password == "" {
		return nil, apperr.Validation(op, "username, email and password are required")
	}

	var existing models.User
	err := d.db.WithContext(ctx).Where("username = ? OR email = ?", username, email).First(&existing).Error
	if err == nil {
		return nil, apperr.Validation(op, "username or email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), d.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		Email:        email,
		Password:     string(hashed),
		Avatar:       req.Avatar,
		AuthProvider: "email",
	}
	if err := d.db.WithContext(ctx).Create(&user).Error; err != nil {
		// Lost a race with a concurrent registration for the same name.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validation(op, "username or email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Authenticate checks an email/password pair.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	const op = "users.Authenticate"

	var user models.User
	err := d.db.WithContext(ctx).
		Where("email = ? AND auth_provider = ?", strings.ToLower(strings.TrimSpace(email)), "email").
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Authentication(op, "invalid credentials", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperr.Authentication(op, "invalid credentials", nil)
	}
	return &user, nil
}

func (d *Directory) Get(ctx context.Context, id int) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("users.Get", fmt.Sprintf("user %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UpdateProfile changes bio and avatar; empty values are left as they are.
func (d *Directory) UpdateProfile(ctx context.Context, id int, bio, avatar string) (*models.User, error) {
	user, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if bio != "" {
		updates["bio"] = bio
	}
	if avatar != "" {
		updates["avatar"] = avatar
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := d.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return d.Get(ctx, id)
}
