package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nonyonah/hedwig/internal/models"
)

// ErrSessionConflict signals an optimistic-concurrency failure: the session
// row changed between read and write, so the caller should re-read and merge
// again.
var ErrSessionConflict = errors.New("session context modified concurrently")

// SessionRepository defines data access for conversational session state.
type SessionRepository interface {
	Get(ctx context.Context, userID string) (*models.SessionContext, error)
	Save(ctx context.Context, session *models.SessionContext) error
	Clear(ctx context.Context, userID string) error
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a SessionRepository backed by gorm.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Get(ctx context.Context, userID string) (*models.SessionContext, error) {
	var session models.SessionContext
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Save writes the session with a version check. A fresh session (version 0,
// no row yet) is inserted; an existing one only updates when the stored
// version still matches what the caller read.
func (r *sessionRepository) Save(ctx context.Context, session *models.SessionContext) error {
	if session.Version == 0 {
		session.Version = 1
		res := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(session)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A concurrent turn inserted the row first.
			return ErrSessionConflict
		}
		return nil
	}

	readVersion := session.Version
	session.Version = readVersion + 1
	res := r.db.WithContext(ctx).
		Model(&models.SessionContext{}).
		Where("user_id = ? AND version = ?", session.UserID, readVersion).
		Updates(map[string]interface{}{
			"pending_intent":   session.PendingIntent,
			"collected_params": session.CollectedParams,
			"version":          session.Version,
			"last_active":      session.LastActive,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionConflict
	}
	return nil
}

func (r *sessionRepository) Clear(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.SessionContext{}).Error
}
