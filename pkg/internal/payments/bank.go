package payments

import (
	"context"

	"github.com/afyalink/telecare/pkg/internal/models"
)

// BankProvider never settles on its own: transfers are confirmed by a
// human through the explicit verification path, not by polling.
type BankProvider struct{}

func NewBankProvider() *BankProvider { return &BankProvider{} }

func (v *BankProvider) Name() string { return ProviderBank }

func (v *BankProvider) Initiate(ctx context.Context, request Request) (Initiation, error) {
	if request.Amount <= 0 {
		return Initiation{}, ErrInvalidAmount
	}

	return Initiation{
		Status:  models.TransactionStatusPendingVerification,
		Message: "awaiting bank transfer confirmation",
	}, nil
}

func (v *BankProvider) Query(ctx context.Context, correlationId string) (Status, error) {
	return Status{}, nil
}
