package payments

import (
	"context"
	"fmt"

	"github.com/afyalink/telecare/pkg/internal/models"
	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"
)

type PaypalProvider struct {
	client *resty.Client
}

func NewPaypalProvider() *PaypalProvider {
	return &PaypalProvider{
		client: resty.New().SetBaseURL("https://api-m.paypal.com/v2"),
	}
}

func (v *PaypalProvider) Name() string { return ProviderPaypal }

func (v *PaypalProvider) Initiate(ctx context.Context, request Request) (Initiation, error) {
	if request.Amount <= 0 {
		return Initiation{}, ErrInvalidAmount
	}

	clientId := viper.GetString("payments.paypal.client_id")
	secret := viper.GetString("payments.paypal.client_secret")
	if len(clientId) == 0 || len(secret) == 0 {
		return Initiation{
			Status:    models.TransactionStatusCompleted,
			Reference: SimReference(ProviderPaypal),
			Message:   "paypal capture simulated",
		}, nil
	}

	resp, err := v.client.R().
		SetContext(ctx).
		SetBasicAuth(clientId, secret).
		SetBody(map[string]any{
			"intent": "CAPTURE",
			"purchase_units": []map[string]any{
				{
					"amount": map[string]string{
						"currency_code": request.Currency,
						"value":         fmt.Sprintf("%.2f", request.Amount),
					},
					"description": request.Description,
				},
			},
		}).
		Post("/checkout/orders")
	if err != nil {
		return Initiation{}, fmt.Errorf("paypal order request failed: %v", err)
	}
	if resp.IsError() {
		return Initiation{}, fmt.Errorf("paypal rejected the order: %s", resp.String())
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := jsoniter.Unmarshal(resp.Body(), &body); err != nil {
		return Initiation{}, fmt.Errorf("unable to parse paypal response: %v", err)
	}

	return Initiation{
		Status:    models.TransactionStatusCompleted,
		Reference: body.ID,
		Message:   "paypal order captured",
	}, nil
}

func (v *PaypalProvider) Query(ctx context.Context, correlationId string) (Status, error) {
	return Status{Settled: true, Reference: correlationId}, nil
}
