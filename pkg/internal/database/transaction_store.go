package database

import (
	"github.com/afyalink/telecare/pkg/internal/models"
	"gorm.io/gorm"
)

// TransactionStore is the gorm-backed transaction ledger. Rows are only
// mutated through the payment orchestrator; updates are partial merges.
type TransactionStore struct {
	db *gorm.DB
}

func NewTransactionStore(db *gorm.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Create(trx *models.Transaction) error {
	return s.db.Create(trx).Error
}

func (s *TransactionStore) Get(id uint) (models.Transaction, error) {
	var trx models.Transaction
	if err := s.db.
		Where(models.Transaction{BaseModel: models.BaseModel{ID: id}}).
		First(&trx).Error; err != nil {
		return trx, err
	} else {
		return trx, nil
	}
}

func (s *TransactionStore) Update(id uint, patch map[string]any) error {
	return s.db.
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(patch).Error
}

func (s *TransactionStore) List(payerId string, take int, offset int) ([]models.Transaction, error) {
	if take <= 0 || take > 100 {
		take = 100
	}

	tx := s.db.Limit(take).Offset(offset).Order("created_at DESC")
	if len(payerId) > 0 {
		tx = tx.Where("payer_id = ?", payerId)
	}

	var transactions []models.Transaction
	if err := tx.Find(&transactions).Error; err != nil {
		return transactions, err
	} else {
		return transactions, nil
	}
}
