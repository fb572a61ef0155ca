package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/models"
)

// UserRepository defines data access for chat users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByPlatformChat(ctx context.Context, platform models.Platform, chatID string) (*models.User, error)
	GetOrCreate(ctx context.Context, platform models.Platform, chatID, name string) (*models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a UserRepository backed by gorm.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByPlatformChat(ctx context.Context, platform models.Platform, chatID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("platform = ? AND platform_chat_id = ?", platform, chatID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetOrCreate resolves the user for an inbound chat message, creating the row
// on first contact. A duplicate-key race falls back to a re-read.
func (r *userRepository) GetOrCreate(ctx context.Context, platform models.Platform, chatID, name string) (*models.User, error) {
	user, err := r.GetByPlatformChat(ctx, platform, chatID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = &models.User{
		ID:             uuid.NewString(),
		Platform:       platform,
		PlatformChatID: chatID,
		Name:           name,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		// Concurrent first message from the same chat.
		return r.GetByPlatformChat(ctx, platform, chatID)
	}
	return user, nil
}
