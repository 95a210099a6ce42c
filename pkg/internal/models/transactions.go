package models

import (
	"gorm.io/datatypes"
)

const (
	TransactionStatusPending             = "PENDING"
	TransactionStatusStkRequested        = "STK_REQUESTED"
	TransactionStatusPendingVerification = "PENDING_VERIFICATION"
	TransactionStatusCompleted           = "COMPLETED"
	TransactionStatusFailed              = "FAILED"
)

// Transaction is the durable record of one payment attempt.
// Once the status reaches COMPLETED or FAILED it is terminal and no
// provider dispatch may mutate the row again.
type Transaction struct {
	BaseModel

	Provider    string  `json:"provider" gorm:"index"`
	Status      string  `json:"status" gorm:"index"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`

	PayerID     string `json:"payer_id" gorm:"index"`
	PayerName   string `json:"payer_name"`
	PhoneNumber string `json:"phone_number"`
	RecipientID string `json:"recipient_id"`
	ItemID      string `json:"item_id"`
	ItemType    string `json:"item_type"`

	// ReferenceNumber is the provider-assigned receipt, populated on
	// completion. CorrelationID is the provider-side id (e.g. checkout
	// request id) used only while polling.
	ReferenceNumber string `json:"reference_number"`
	CorrelationID   string `json:"correlation_id"`
	Error           string `json:"error"`

	Metadata datatypes.JSONMap `json:"metadata"`
}

func (v Transaction) IsTerminal() bool {
	return v.Status == TransactionStatusCompleted || v.Status == TransactionStatusFailed
}
