package database

import (
	"time"

	"github.com/afyalink/telecare/pkg/internal/models"
	"gorm.io/gorm"
)

// SignalingStore persists relay messages for call rooms. It satisfies the
// message store contract of the signaling channel service.
type SignalingStore struct {
	db *gorm.DB
}

func NewSignalingStore(db *gorm.DB) *SignalingStore {
	return &SignalingStore{db: db}
}

func (s *SignalingStore) Append(message *models.SignalingMessage) error {
	return s.db.Create(message).Error
}

func (s *SignalingStore) ListSince(roomId string, sinceId uint) ([]models.SignalingMessage, error) {
	var messages []models.SignalingMessage
	if err := s.db.
		Where("room_id = ? AND id > ?", roomId, sinceId).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return messages, err
	} else {
		return messages, nil
	}
}

func (s *SignalingStore) PurgeBefore(deadline time.Time) (int64, error) {
	tx := s.db.Unscoped().
		Where("created_at < ?", deadline).
		Delete(&models.SignalingMessage{})
	return tx.RowsAffected, tx.Error
}
