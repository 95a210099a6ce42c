package payments

import (
	"context"
	"fmt"

	"github.com/afyalink/telecare/pkg/internal/models"
	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"
)

// StripeProvider charges cards synchronously. Without a secret key it
// runs in simulation mode and completes immediately.
type StripeProvider struct {
	client *resty.Client
}

func NewStripeProvider() *StripeProvider {
	return &StripeProvider{
		client: resty.New().SetBaseURL("https://api.stripe.com/v1"),
	}
}

func (v *StripeProvider) Name() string { return ProviderStripe }

func (v *StripeProvider) Initiate(ctx context.Context, request Request) (Initiation, error) {
	if request.Amount <= 0 {
		return Initiation{}, ErrInvalidAmount
	}

	secret := viper.GetString("payments.stripe.secret_key")
	if len(secret) == 0 {
		return Initiation{
			Status:    models.TransactionStatusCompleted,
			Reference: SimReference(ProviderStripe),
			Message:   "card charge simulated",
		}, nil
	}

	resp, err := v.client.R().
		SetContext(ctx).
		SetAuthToken(secret).
		SetFormData(map[string]string{
			"amount":      fmt.Sprintf("%d", int64(request.Amount*100)),
			"currency":    request.Currency,
			"description": request.Description,
		}).
		Post("/charges")
	if err != nil {
		return Initiation{}, fmt.Errorf("stripe charge request failed: %v", err)
	}
	if resp.IsError() {
		return Initiation{}, fmt.Errorf("stripe rejected the charge: %s", resp.String())
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := jsoniter.Unmarshal(resp.Body(), &body); err != nil {
		return Initiation{}, fmt.Errorf("unable to parse stripe response: %v", err)
	}

	return Initiation{
		Status:    models.TransactionStatusCompleted,
		Reference: body.ID,
		Message:   "card charged",
	}, nil
}

func (v *StripeProvider) Query(ctx context.Context, correlationId string) (Status, error) {
	// Card charges settle within Initiate; there is nothing to poll.
	return Status{Settled: true, Reference: correlationId}, nil
}
