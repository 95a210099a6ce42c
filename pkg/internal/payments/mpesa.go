package payments

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/afyalink/telecare/pkg/internal/models"
	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"
)

// MpesaProvider drives the M-Pesa STK push flow: a PIN prompt is pushed
// to the payer's phone and completion is reconciled by polling the
// checkout request. Without credentials the push is simulated.
type MpesaProvider struct {
	client *resty.Client
}

func NewMpesaProvider() *MpesaProvider {
	return &MpesaProvider{
		client: resty.New().SetBaseURL("https://api.safaricom.co.ke"),
	}
}

func (v *MpesaProvider) Name() string { return ProviderMpesa }

func (v *MpesaProvider) simulated() bool {
	return len(viper.GetString("payments.mpesa.consumer_key")) == 0 ||
		len(viper.GetString("payments.mpesa.consumer_secret")) == 0
}

func (v *MpesaProvider) Initiate(ctx context.Context, request Request) (Initiation, error) {
	if request.Amount <= 0 {
		return Initiation{}, ErrInvalidAmount
	}
	if len(request.PhoneNumber) == 0 {
		return Initiation{}, ErrPhoneNumberRequired
	}

	if v.simulated() {
		return Initiation{
			Status:        models.TransactionStatusStkRequested,
			CorrelationID: fmt.Sprintf("ws_CO_SIM_%d", time.Now().UnixMilli()),
			Message:       "STK push sent, awaiting PIN confirmation (simulated)",
			Poll:          true,
		}, nil
	}

	token, err := v.accessToken(ctx)
	if err != nil {
		return Initiation{}, err
	}

	shortcode := viper.GetString("payments.mpesa.shortcode")
	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(shortcode + viper.GetString("payments.mpesa.passkey") + timestamp),
	)

	resp, err := v.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]any{
			"BusinessShortCode": shortcode,
			"Password":          password,
			"Timestamp":         timestamp,
			"TransactionType":   "CustomerPayBillOnline",
			"Amount":            int64(request.Amount),
			"PartyA":            request.PhoneNumber,
			"PartyB":            shortcode,
			"PhoneNumber":       request.PhoneNumber,
			"CallBackURL":       viper.GetString("payments.mpesa.callback_url"),
			"AccountReference":  request.PayerID,
			"TransactionDesc":   request.Description,
		}).
		Post("/mpesa/stkpush/v1/processrequest")
	if err != nil {
		return Initiation{}, fmt.Errorf("mpesa stk push failed: %v", err)
	}
	if resp.IsError() {
		return Initiation{}, fmt.Errorf("mpesa rejected the stk push: %s", resp.String())
	}

	var body struct {
		CheckoutRequestID string `json:"CheckoutRequestID"`
		CustomerMessage   string `json:"CustomerMessage"`
	}
	if err := jsoniter.Unmarshal(resp.Body(), &body); err != nil {
		return Initiation{}, fmt.Errorf("unable to parse mpesa response: %v", err)
	}

	return Initiation{
		Status:        models.TransactionStatusStkRequested,
		CorrelationID: body.CheckoutRequestID,
		Message:       body.CustomerMessage,
		Poll:          true,
	}, nil
}

func (v *MpesaProvider) Query(ctx context.Context, correlationId string) (Status, error) {
	if v.simulated() {
		// The simulated payer confirms the prompt right away.
		return Status{Settled: true, Reference: SimReference(ProviderMpesa)}, nil
	}

	token, err := v.accessToken(ctx)
	if err != nil {
		return Status{}, err
	}

	shortcode := viper.GetString("payments.mpesa.shortcode")
	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(shortcode + viper.GetString("payments.mpesa.passkey") + timestamp),
	)

	resp, err := v.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]any{
			"BusinessShortCode": shortcode,
			"Password":          password,
			"Timestamp":         timestamp,
			"CheckoutRequestID": correlationId,
		}).
		Post("/mpesa/stkpushquery/v1/query")
	if err != nil {
		return Status{}, fmt.Errorf("mpesa status query failed: %v", err)
	}
	if resp.IsError() {
		return Status{}, fmt.Errorf("mpesa rejected the status query: %s", resp.String())
	}

	var body struct {
		ResultCode     string `json:"ResultCode"`
		MpesaReceiptNo string `json:"MpesaReceiptNumber"`
	}
	if err := jsoniter.Unmarshal(resp.Body(), &body); err != nil {
		return Status{}, fmt.Errorf("unable to parse mpesa status response: %v", err)
	}

	if body.ResultCode != "0" {
		return Status{}, nil
	}

	reference := body.MpesaReceiptNo
	if len(reference) == 0 {
		reference = correlationId
	}
	return Status{Settled: true, Reference: reference}, nil
}

func (v *MpesaProvider) accessToken(ctx context.Context) (string, error) {
	resp, err := v.client.R().
		SetContext(ctx).
		SetBasicAuth(
			viper.GetString("payments.mpesa.consumer_key"),
			viper.GetString("payments.mpesa.consumer_secret"),
		).
		SetQueryParam("grant_type", "client_credentials").
		Get("/oauth/v1/generate")
	if err != nil {
		return "", fmt.Errorf("mpesa auth failed: %v", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("mpesa auth rejected: %s", resp.String())
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := jsoniter.Unmarshal(resp.Body(), &body); err != nil {
		return "", fmt.Errorf("unable to parse mpesa auth response: %v", err)
	}
	return body.AccessToken, nil
}
