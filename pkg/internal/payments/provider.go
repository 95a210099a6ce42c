package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderStripe   = "stripe"
	ProviderPaypal   = "paypal"
	ProviderMpesa    = "mpesa"
	ProviderTigoPesa = "tigopesa"
	ProviderAirtel   = "airtel"
	ProviderBank     = "bank"
)

var (
	ErrUnknownProvider     = errors.New("unknown payment provider")
	ErrInvalidAmount       = errors.New("payment amount must be positive")
	ErrPhoneNumberRequired = errors.New("phone number is required for mobile money payments")
)

// Request is one abstract payment request; it is never persisted as-is.
type Request struct {
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Currency    string  `json:"currency" validate:"required"`
	Provider    string  `json:"provider" validate:"required"`
	PayerID     string  `json:"payer_id" validate:"required"`
	PayerName   string  `json:"payer_name"`
	Description string  `json:"description"`

	PhoneNumber string `json:"phone_number"`
	ItemID      string `json:"item_id"`
	ItemType    string `json:"item_type"`
	RecipientID string `json:"recipient_id"`

	Metadata map[string]any `json:"metadata"`
}

// Initiation is what an adapter reports after dispatching a request.
// Status is the transaction status to record; Poll marks providers whose
// completion must be reconciled by the status poller.
type Initiation struct {
	Status        string
	Reference     string
	CorrelationID string
	Message       string
	Poll          bool
}

// Status is one provider-side status check result.
type Status struct {
	Settled   bool
	Reference string
}

// Provider is one payment adapter. Every adapter must work without live
// credentials by falling back to deterministic simulation.
type Provider interface {
	Name() string
	Initiate(ctx context.Context, request Request) (Initiation, error)
	Query(ctx context.Context, correlationId string) (Status, error)
}

// SimReference synthesizes the deterministic simulation-mode receipt.
func SimReference(provider string) string {
	return fmt.Sprintf("%s-SIM-%d", strings.ToUpper(provider), time.Now().UnixMilli())
}

// DefaultProviders builds the full dispatch table of the six supported
// providers, each reading its credentials from configuration.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderStripe:   NewStripeProvider(),
		ProviderPaypal:   NewPaypalProvider(),
		ProviderMpesa:    NewMpesaProvider(),
		ProviderTigoPesa: NewTigoPesaProvider(),
		ProviderAirtel:   NewAirtelProvider(),
		ProviderBank:     NewBankProvider(),
	}
}
