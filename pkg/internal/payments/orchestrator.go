package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/afyalink/telecare/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// Ledger is the document-store contract the orchestrator mutates
// transactions through: create with generated id, read by id, partial
// merge update. Nobody else writes to the ledger.
type Ledger interface {
	Create(trx *models.Transaction) error
	Get(id uint) (models.Transaction, error)
	Update(id uint, patch map[string]any) error
}

// Outcome is what the caller gets back from a payment operation.
// RequiresVerification distinguishes "done" from "awaiting external
// confirmation".
type Outcome struct {
	Success              bool   `json:"success"`
	TransactionID        uint   `json:"transaction_id"`
	Reference            string `json:"reference,omitempty"`
	Message              string `json:"message,omitempty"`
	RequiresVerification bool   `json:"requires_verification"`
}

// Orchestrator turns abstract payment requests into durable transactions,
// dispatching to provider adapters and reconciling asynchronous
// completion through a bounded sequential poller.
type Orchestrator struct {
	PollInterval    time.Duration
	MaxPollAttempts int

	ledger    Ledger
	providers map[string]Provider

	mu    sync.Mutex
	polls map[uint]chan struct{}
}

func NewOrchestrator(ledger Ledger, providers map[string]Provider) *Orchestrator {
	return &Orchestrator{
		PollInterval:    6 * time.Second,
		MaxPollAttempts: 20,
		ledger:          ledger,
		providers:       providers,
		polls:           make(map[uint]chan struct{}),
	}
}

// ProcessPayment creates the transaction record and dispatches it to the
// adapter for the requested provider. Validation beyond what providers
// require is deliberately absent; duplicate submission is the caller's
// problem.
func (v *Orchestrator) ProcessPayment(ctx context.Context, request Request) (Outcome, error) {
	provider, ok := v.providers[request.Provider]
	if !ok {
		return Outcome{Success: false, Message: fmt.Sprintf("unknown provider %q", request.Provider)}, ErrUnknownProvider
	}

	trx := models.Transaction{
		Provider:    request.Provider,
		Status:      models.TransactionStatusPending,
		Amount:      request.Amount,
		Currency:    request.Currency,
		Description: request.Description,
		PayerID:     request.PayerID,
		PayerName:   request.PayerName,
		PhoneNumber: request.PhoneNumber,
		RecipientID: request.RecipientID,
		ItemID:      request.ItemID,
		ItemType:    request.ItemType,
		Metadata:    datatypes.JSONMap(request.Metadata),
	}
	if err := v.ledger.Create(&trx); err != nil {
		return Outcome{Success: false}, fmt.Errorf("unable to create transaction: %v", err)
	}

	initiation, err := provider.Initiate(ctx, request)
	if err != nil {
		v.markFailed(trx.ID, err.Error())
		return Outcome{
			Success:       false,
			TransactionID: trx.ID,
			Message:       err.Error(),
		}, err
	}

	patch := map[string]any{"status": initiation.Status}
	if len(initiation.Reference) > 0 {
		patch["reference_number"] = initiation.Reference
	}
	if len(initiation.CorrelationID) > 0 {
		patch["correlation_id"] = initiation.CorrelationID
	}
	if err := v.ledger.Update(trx.ID, patch); err != nil {
		return Outcome{Success: false, TransactionID: trx.ID}, fmt.Errorf("unable to record initiation: %v", err)
	}

	if initiation.Poll {
		v.startPoll(trx.ID, initiation.CorrelationID, provider)
	}

	return Outcome{
		Success:              true,
		TransactionID:        trx.ID,
		Reference:            initiation.Reference,
		Message:              initiation.Message,
		RequiresVerification: initiation.Status != models.TransactionStatusCompleted,
	}, nil
}

// VerifyPayment is the manual completion path for providers that cannot
// be polled, and doubles as an operator override. The supplied reference
// is trusted as-is; confirming it against the provider is the verifier's
// duty, not this core's.
func (v *Orchestrator) VerifyPayment(transactionId uint, referenceNumber string) (Outcome, error) {
	trx, err := v.ledger.Get(transactionId)
	if err != nil {
		return Outcome{Success: false}, fmt.Errorf("transaction not found: %v", err)
	}

	if err := v.ledger.Update(trx.ID, map[string]any{
		"status":           models.TransactionStatusCompleted,
		"reference_number": referenceNumber,
	}); err != nil {
		return Outcome{Success: false, TransactionID: trx.ID}, fmt.Errorf("unable to verify transaction: %v", err)
	}

	v.CancelPoll(trx.ID)

	return Outcome{
		Success:       true,
		TransactionID: trx.ID,
		Reference:     referenceNumber,
		Message:       "payment verified",
	}, nil
}

// PollOnce runs a single status-check cycle for a transaction. It
// reports done=true when no further attempts should be scheduled, either
// because the transaction is already terminal or because the provider
// confirmed completion. Transient query errors are logged and leave the
// transaction untouched.
func (v *Orchestrator) PollOnce(transactionId uint, correlationId string, provider Provider) bool {
	trx, err := v.ledger.Get(transactionId)
	if err != nil {
		log.Warn().Err(err).Uint("transaction", transactionId).Msg("Unable to load transaction for polling...")
		return false
	}
	if trx.IsTerminal() {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	status, err := provider.Query(ctx, correlationId)
	if err != nil {
		log.Warn().Err(err).Uint("transaction", transactionId).Msg("Transient error while polling provider status...")
		return false
	}
	if !status.Settled {
		return false
	}

	// A manual verification may have landed while the query was in
	// flight; its reference wins.
	if current, err := v.ledger.Get(trx.ID); err == nil && current.IsTerminal() {
		return true
	}

	reference := status.Reference
	if len(reference) == 0 {
		reference = SimReference(provider.Name())
	}
	if err := v.ledger.Update(trx.ID, map[string]any{
		"status":           models.TransactionStatusCompleted,
		"reference_number": reference,
	}); err != nil {
		log.Error().Err(err).Uint("transaction", transactionId).Msg("Unable to record provider completion...")
		return false
	}
	return true
}

// CancelPoll stops the background poller of one transaction, if any. It
// is safe to call for transactions that were never polled.
func (v *Orchestrator) CancelPoll(transactionId uint) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if cancel, ok := v.polls[transactionId]; ok {
		delete(v.polls, transactionId)
		close(cancel)
	}
}

func (v *Orchestrator) startPoll(transactionId uint, correlationId string, provider Provider) {
	cancel := make(chan struct{})
	v.mu.Lock()
	v.polls[transactionId] = cancel
	v.mu.Unlock()

	go v.runPoll(transactionId, correlationId, provider, cancel)
}

// runPoll checks the provider on a fixed cadence, strictly sequentially,
// up to the attempt budget. Exhausting the budget gives up silently: the
// transaction stays in its last non-terminal status rather than being
// failed by timeout.
func (v *Orchestrator) runPoll(transactionId uint, correlationId string, provider Provider, cancel chan struct{}) {
	defer v.CancelPoll(transactionId)

	for attempt := 0; attempt < v.MaxPollAttempts; attempt++ {
		select {
		case <-cancel:
			return
		case <-time.After(v.PollInterval):
		}

		if v.PollOnce(transactionId, correlationId, provider) {
			return
		}
	}

	log.Debug().
		Uint("transaction", transactionId).
		Int("attempts", v.MaxPollAttempts).
		Msg("Gave up polling provider status, leaving transaction as-is.")
}

// IsValidationError reports whether a dispatch failure was caught before
// any provider call was made.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrPhoneNumberRequired) ||
		errors.Is(err, ErrUnknownProvider)
}

func (v *Orchestrator) markFailed(transactionId uint, message string) {
	if err := v.ledger.Update(transactionId, map[string]any{
		"status": models.TransactionStatusFailed,
		"error":  message,
	}); err != nil {
		log.Error().Err(err).Uint("transaction", transactionId).Msg("Unable to record transaction failure...")
	}
}
