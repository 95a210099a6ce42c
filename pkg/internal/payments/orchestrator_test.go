package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/afyalink/telecare/pkg/internal/models"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	mu     sync.Mutex
	nextId uint
	rows   map[uint]models.Transaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[uint]models.Transaction)}
}

func (s *fakeLedger) Create(trx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId++
	trx.ID = s.nextId
	trx.CreatedAt = time.Now()
	s.rows[trx.ID] = *trx
	return nil
}

func (s *fakeLedger) Get(id uint) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trx, ok := s.rows[id]
	if !ok {
		return trx, fmt.Errorf("transaction #%d not found", id)
	}
	return trx, nil
}

func (s *fakeLedger) Update(id uint, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trx, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("transaction #%d not found", id)
	}
	for key, value := range patch {
		switch key {
		case "status":
			trx.Status = value.(string)
		case "reference_number":
			trx.ReferenceNumber = value.(string)
		case "correlation_id":
			trx.CorrelationID = value.(string)
		case "error":
			trx.Error = value.(string)
		}
	}
	s.rows[id] = trx
	return nil
}

func (s *fakeLedger) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// fakeProvider settles after a configurable number of status queries and
// can fail the first few with transient errors.
type fakeProvider struct {
	initiation  Initiation
	initiateErr error

	settleAfter   int32
	transientErrs int32
	queries       atomic.Int32
	queryHook     func()
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Initiate(ctx context.Context, request Request) (Initiation, error) {
	if p.initiateErr != nil {
		return Initiation{}, p.initiateErr
	}
	return p.initiation, nil
}

func (p *fakeProvider) Query(ctx context.Context, correlationId string) (Status, error) {
	n := p.queries.Add(1)
	if p.queryHook != nil {
		p.queryHook()
	}
	if n <= p.transientErrs {
		return Status{}, fmt.Errorf("provider unreachable")
	}
	if n < p.transientErrs+p.settleAfter {
		return Status{Settled: false}, nil
	}
	return Status{Settled: true, Reference: "FAKE-REF-001"}, nil
}

func newTestOrchestrator(ledger Ledger, providers map[string]Provider) *Orchestrator {
	orchestrator := NewOrchestrator(ledger, providers)
	orchestrator.PollInterval = 5 * time.Millisecond
	return orchestrator
}

func paymentRequest(provider string) Request {
	return Request{
		Amount:      2500,
		Currency:    "TZS",
		Provider:    provider,
		PayerID:     "patient-1",
		PayerName:   "Jane Doe",
		Description: "Consultation fee",
		PhoneNumber: "+255700000001",
	}
}

func TestSimulationFallbackAllProviders(t *testing.T) {
	viper.Reset()

	for _, provider := range []string{
		ProviderStripe, ProviderPaypal, ProviderMpesa,
		ProviderTigoPesa, ProviderAirtel, ProviderBank,
	} {
		t.Run(provider, func(t *testing.T) {
			ledger := newFakeLedger()
			orchestrator := newTestOrchestrator(ledger, DefaultProviders())

			outcome, err := orchestrator.ProcessPayment(context.Background(), paymentRequest(provider))
			require.NoError(t, err, "missing credentials must fall back to simulation, not fail")
			assert.True(t, outcome.Success)

			trx, err := ledger.Get(outcome.TransactionID)
			require.NoError(t, err)
			assert.NotEqual(t, models.TransactionStatusFailed, trx.Status)
			assert.NotEqual(t, models.TransactionStatusPending, trx.Status)

			switch provider {
			case ProviderStripe, ProviderPaypal:
				assert.False(t, outcome.RequiresVerification)
				assert.Equal(t, models.TransactionStatusCompleted, trx.Status)
				assert.True(t, strings.HasPrefix(trx.ReferenceNumber, strings.ToUpper(provider)+"-SIM-"))
			case ProviderMpesa, ProviderTigoPesa, ProviderAirtel:
				assert.True(t, outcome.RequiresVerification)
				// The simulated wallet confirms on the first poll cycle.
				require.Eventually(t, func() bool {
					trx, _ := ledger.Get(outcome.TransactionID)
					return trx.Status == models.TransactionStatusCompleted
				}, 2*time.Second, 5*time.Millisecond)
				trx, _ = ledger.Get(outcome.TransactionID)
				assert.Contains(t, trx.ReferenceNumber, "-SIM-")
			case ProviderBank:
				assert.True(t, outcome.RequiresVerification)
				assert.Equal(t, models.TransactionStatusPendingVerification, trx.Status)
			}
		})
	}
}

func TestMobileMoneyRequiresPhoneNumber(t *testing.T) {
	viper.Reset()
	ledger := newFakeLedger()
	orchestrator := newTestOrchestrator(ledger, DefaultProviders())

	request := paymentRequest(ProviderMpesa)
	request.PhoneNumber = ""

	outcome, err := orchestrator.ProcessPayment(context.Background(), request)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.False(t, outcome.Success)

	// The attempt is recorded and immediately failed, never left pending.
	trx, err := ledger.Get(outcome.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, trx.Status)
	assert.NotEmpty(t, trx.Error)
}

func TestUnknownProviderCreatesNoTransaction(t *testing.T) {
	ledger := newFakeLedger()
	orchestrator := newTestOrchestrator(ledger, DefaultProviders())

	outcome, err := orchestrator.ProcessPayment(context.Background(), paymentRequest("cash"))
	require.ErrorIs(t, err, ErrUnknownProvider)
	assert.False(t, outcome.Success)
	assert.Zero(t, ledger.count())
}

func TestPollCompletesAfterRetries(t *testing.T) {
	ledger := newFakeLedger()
	provider := &fakeProvider{
		initiation: Initiation{
			Status:        models.TransactionStatusStkRequested,
			CorrelationID: "corr-1",
			Poll:          true,
		},
		settleAfter: 3,
	}
	orchestrator := newTestOrchestrator(ledger, map[string]Provider{"fake": provider})

	outcome, err := orchestrator.ProcessPayment(context.Background(), paymentRequest("fake"))
	require.NoError(t, err)
	assert.True(t, outcome.RequiresVerification)

	require.Eventually(t, func() bool {
		trx, _ := ledger.Get(outcome.TransactionID)
		return trx.Status == models.TransactionStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	trx, _ := ledger.Get(outcome.TransactionID)
	assert.Equal(t, "FAKE-REF-001", trx.ReferenceNumber)
	assert.EqualValues(t, 3, provider.queries.Load())
}

func TestPollSurvivesTransientErrors(t *testing.T) {
	ledger := newFakeLedger()
	provider := &fakeProvider{
		initiation: Initiation{
			Status:        models.TransactionStatusStkRequested,
			CorrelationID: "corr-1",
			Poll:          true,
		},
		transientErrs: 2,
		settleAfter:   1,
	}
	orchestrator := newTestOrchestrator(ledger, map[string]Provider{"fake": provider})

	outcome, err := orchestrator.ProcessPayment(context.Background(), paymentRequest("fake"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		trx, _ := ledger.Get(outcome.TransactionID)
		return trx.Status == models.TransactionStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 3, provider.queries.Load())
}

func TestPollExhaustionLeavesTransactionAsIs(t *testing.T) {
	ledger := newFakeLedger()
	provider := &fakeProvider{
		initiation: Initiation{
			Status:        models.TransactionStatusStkRequested,
			CorrelationID: "corr-1",
			Poll:          true,
		},
		settleAfter: 1 << 20, // never settles
	}
	orchestrator := newTestOrchestrator(ledger, map[string]Provider{"fake": provider})
	orchestrator.MaxPollAttempts = 3

	outcome, err := orchestrator.ProcessPayment(context.Background(), paymentRequest("fake"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return provider.queries.Load() == 3
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	// The budget ran out without the wallet confirming, and the
	// transaction is deliberately not failed by timeout.
	assert.EqualValues(t, 3, provider.queries.Load())
	trx, _ := ledger.Get(outcome.TransactionID)
	assert.Equal(t, models.TransactionStatusStkRequested, trx.Status)
}

func TestPollOnceSkipsTerminalTransaction(t *testing.T) {
	ledger := newFakeLedger()
	provider := &fakeProvider{}
	orchestrator := newTestOrchestrator(ledger, map[string]Provider{"fake": provider})

	trx := models.Transaction{
		Provider:        "fake",
		Status:          models.TransactionStatusCompleted,
		ReferenceNumber: "SETTLED-001",
	}
	require.NoError(t, ledger.Create(&trx))

	assert.True(t, orchestrator.PollOnce(trx.ID, "corr-1", provider))
	assert.Zero(t, provider.queries.Load())

	got, _ := ledger.Get(trx.ID)
	assert.Equal(t, models.TransactionStatusCompleted, got.Status)
	assert.Equal(t, "SETTLED-001", got.ReferenceNumber)
}

func TestPollKeepsOperatorReference(t *testing.T) {
	ledger := newFakeLedger()
	provider := &fakeProvider{settleAfter: 1}
	orchestrator := newTestOrchestrator(ledger, map[string]Provider{"fake": provider})

	trx := models.Transaction{
		Provider: "fake",
		Status:   models.TransactionStatusStkRequested,
	}
	require.NoError(t, ledger.Create(&trx))

	// An operator verifies while the status query is in flight; the
	// settling poll must not overwrite their reference.
	provider.queryHook = func() {
		_, err := orchestrator.VerifyPayment(trx.ID, "OPREF-7")
		require.NoError(t, err)
	}

	assert.True(t, orchestrator.PollOnce(trx.ID, "corr-1", provider))

	got, _ := ledger.Get(trx.ID)
	assert.Equal(t, models.TransactionStatusCompleted, got.Status)
	assert.Equal(t, "OPREF-7", got.ReferenceNumber)
}

func TestBankTransferManualVerification(t *testing.T) {
	viper.Reset()
	ledger := newFakeLedger()
	orchestrator := newTestOrchestrator(ledger, DefaultProviders())

	outcome, err := orchestrator.ProcessPayment(context.Background(), paymentRequest(ProviderBank))
	require.NoError(t, err)
	assert.True(t, outcome.RequiresVerification)

	verified, err := orchestrator.VerifyPayment(outcome.TransactionID, "BANKREF123")
	require.NoError(t, err)
	assert.True(t, verified.Success)
	assert.Equal(t, "BANKREF123", verified.Reference)

	trx, _ := ledger.Get(outcome.TransactionID)
	assert.Equal(t, models.TransactionStatusCompleted, trx.Status)
	assert.Equal(t, "BANKREF123", trx.ReferenceNumber)
}

func TestVerifyPaymentUnknownTransaction(t *testing.T) {
	orchestrator := newTestOrchestrator(newFakeLedger(), DefaultProviders())

	outcome, err := orchestrator.VerifyPayment(42, "REF")
	require.Error(t, err)
	assert.False(t, outcome.Success)
}

func TestCancelPollStopsPolling(t *testing.T) {
	ledger := newFakeLedger()
	provider := &fakeProvider{
		initiation: Initiation{
			Status:        models.TransactionStatusStkRequested,
			CorrelationID: "corr-1",
			Poll:          true,
		},
		settleAfter: 1 << 20,
	}
	orchestrator := newTestOrchestrator(ledger, map[string]Provider{"fake": provider})
	orchestrator.PollInterval = 20 * time.Millisecond

	outcome, err := orchestrator.ProcessPayment(context.Background(), paymentRequest("fake"))
	require.NoError(t, err)

	orchestrator.CancelPoll(outcome.TransactionID)
	// Safe to cancel again.
	orchestrator.CancelPoll(outcome.TransactionID)

	// Let any cycle that was already in flight drain.
	time.Sleep(50 * time.Millisecond)
	settled := provider.queries.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, provider.queries.Load())

	trx, _ := ledger.Get(outcome.TransactionID)
	assert.Equal(t, models.TransactionStatusStkRequested, trx.Status)
}
