package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/afyalink/telecare/pkg/internal/models"
	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"
)

type AirtelProvider struct {
	client *resty.Client
}

func NewAirtelProvider() *AirtelProvider {
	return &AirtelProvider{
		client: resty.New().SetBaseURL("https://openapi.airtel.africa"),
	}
}

func (v *AirtelProvider) Name() string { return ProviderAirtel }

func (v *AirtelProvider) simulated() bool {
	return len(viper.GetString("payments.airtel.client_id")) == 0 ||
		len(viper.GetString("payments.airtel.client_secret")) == 0
}

func (v *AirtelProvider) Initiate(ctx context.Context, request Request) (Initiation, error) {
	if request.Amount <= 0 {
		return Initiation{}, ErrInvalidAmount
	}
	if len(request.PhoneNumber) == 0 {
		return Initiation{}, ErrPhoneNumberRequired
	}

	if v.simulated() {
		return Initiation{
			Status:        models.TransactionStatusPendingVerification,
			CorrelationID: fmt.Sprintf("AM_SIM_%d", time.Now().UnixMilli()),
			Message:       "payment prompt sent to Airtel Money wallet (simulated)",
			Poll:          true,
		}, nil
	}

	token, err := v.accessToken(ctx)
	if err != nil {
		return Initiation{}, err
	}

	reference := fmt.Sprintf("telecare-%d", time.Now().UnixMilli())
	resp, err := v.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]any{
			"reference": reference,
			"subscriber": map[string]string{
				"country":  viper.GetString("payments.airtel.country"),
				"currency": request.Currency,
				"msisdn":   request.PhoneNumber,
			},
			"transaction": map[string]any{
				"amount":   request.Amount,
				"country":  viper.GetString("payments.airtel.country"),
				"currency": request.Currency,
				"id":       reference,
			},
		}).
		Post("/merchant/v1/payments/")
	if err != nil {
		return Initiation{}, fmt.Errorf("airtel payment request failed: %v", err)
	}
	if resp.IsError() {
		return Initiation{}, fmt.Errorf("airtel rejected the payment: %s", resp.String())
	}

	return Initiation{
		Status:        models.TransactionStatusPendingVerification,
		CorrelationID: reference,
		Message:       "payment prompt sent to Airtel Money wallet",
		Poll:          true,
	}, nil
}

func (v *AirtelProvider) Query(ctx context.Context, correlationId string) (Status, error) {
	if v.simulated() {
		return Status{Settled: true, Reference: SimReference(ProviderAirtel)}, nil
	}

	token, err := v.accessToken(ctx)
	if err != nil {
		return Status{}, err
	}

	resp, err := v.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get("/standard/v1/payments/" + correlationId)
	if err != nil {
		return Status{}, fmt.Errorf("airtel status query failed: %v", err)
	}
	if resp.IsError() {
		return Status{}, fmt.Errorf("airtel rejected the status query: %s", resp.String())
	}

	var body struct {
		Data struct {
			Transaction struct {
				Status string `json:"status"`
				ID     string `json:"id"`
			} `json:"transaction"`
		} `json:"data"`
	}
	if err := jsoniter.Unmarshal(resp.Body(), &body); err != nil {
		return Status{}, fmt.Errorf("unable to parse airtel status response: %v", err)
	}

	if body.Data.Transaction.Status != "TS" {
		return Status{}, nil
	}
	return Status{Settled: true, Reference: body.Data.Transaction.ID}, nil
}

func (v *AirtelProvider) accessToken(ctx context.Context) (string, error) {
	resp, err := v.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"client_id":     viper.GetString("payments.airtel.client_id"),
			"client_secret": viper.GetString("payments.airtel.client_secret"),
			"grant_type":    "client_credentials",
		}).
		Post("/auth/oauth2/token")
	if err != nil {
		return "", fmt.Errorf("airtel auth failed: %v", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("airtel auth rejected: %s", resp.String())
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := jsoniter.Unmarshal(resp.Body(), &body); err != nil {
		return "", fmt.Errorf("unable to parse airtel auth response: %v", err)
	}
	return body.AccessToken, nil
}
