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

type TigoPesaProvider struct {
	client *resty.Client
}

func NewTigoPesaProvider() *TigoPesaProvider {
	return &TigoPesaProvider{
		client: resty.New().SetBaseURL("https://accessgwtest.tigo.co.tz"),
	}
}

func (v *TigoPesaProvider) Name() string { return ProviderTigoPesa }

func (v *TigoPesaProvider) simulated() bool {
	return len(viper.GetString("payments.tigopesa.username")) == 0 ||
		len(viper.GetString("payments.tigopesa.password")) == 0
}

func (v *TigoPesaProvider) Initiate(ctx context.Context, request Request) (Initiation, error) {
	if request.Amount <= 0 {
		return Initiation{}, ErrInvalidAmount
	}
	if len(request.PhoneNumber) == 0 {
		return Initiation{}, ErrPhoneNumberRequired
	}

	if v.simulated() {
		return Initiation{
			Status:        models.TransactionStatusPendingVerification,
			CorrelationID: fmt.Sprintf("TP_SIM_%d", time.Now().UnixMilli()),
			Message:       "payment prompt sent to Tigo Pesa wallet (simulated)",
			Poll:          true,
		}, nil
	}

	resp, err := v.client.R().
		SetContext(ctx).
		SetBasicAuth(
			viper.GetString("payments.tigopesa.username"),
			viper.GetString("payments.tigopesa.password"),
		).
		SetBody(map[string]any{
			"CustomerMSISDN": request.PhoneNumber,
			"Amount":         request.Amount,
			"Remarks":        request.Description,
			"ReferenceID":    request.PayerID,
		}).
		Post("/API/ChargeRequest")
	if err != nil {
		return Initiation{}, fmt.Errorf("tigopesa charge request failed: %v", err)
	}
	if resp.IsError() {
		return Initiation{}, fmt.Errorf("tigopesa rejected the charge: %s", resp.String())
	}

	var body struct {
		TransactionID string `json:"TransactionID"`
		ResponseDesc  string `json:"ResponseDescription"`
	}
	if err := jsoniter.Unmarshal(resp.Body(), &body); err != nil {
		return Initiation{}, fmt.Errorf("unable to parse tigopesa response: %v", err)
	}

	return Initiation{
		Status:        models.TransactionStatusPendingVerification,
		CorrelationID: body.TransactionID,
		Message:       body.ResponseDesc,
		Poll:          true,
	}, nil
}

func (v *TigoPesaProvider) Query(ctx context.Context, correlationId string) (Status, error) {
	if v.simulated() {
		return Status{Settled: true, Reference: SimReference(ProviderTigoPesa)}, nil
	}

	resp, err := v.client.R().
		SetContext(ctx).
		SetBasicAuth(
			viper.GetString("payments.tigopesa.username"),
			viper.GetString("payments.tigopesa.password"),
		).
		SetQueryParam("transactionId", correlationId).
		Get("/API/TransactionStatus")
	if err != nil {
		return Status{}, fmt.Errorf("tigopesa status query failed: %v", err)
	}
	if resp.IsError() {
		return Status{}, fmt.Errorf("tigopesa rejected the status query: %s", resp.String())
	}

	var body struct {
		Status      string `json:"Status"`
		ReceiptCode string `json:"ReceiptCode"`
	}
	if err := jsoniter.Unmarshal(resp.Body(), &body); err != nil {
		return Status{}, fmt.Errorf("unable to parse tigopesa status response: %v", err)
	}

	if body.Status != "SUCCESS" {
		return Status{}, nil
	}
	return Status{Settled: true, Reference: body.ReceiptCode}, nil
}
