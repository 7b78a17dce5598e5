package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/merchantkit/ogone-service/internal/adapters/ports"
	"github.com/merchantkit/ogone-service/internal/domain"
	pkgerrors "github.com/merchantkit/ogone-service/pkg/errors"
)

// mockGateway records the arguments of the last call and returns a scripted
// result.
type mockGateway struct {
	result *ports.GatewayResult
	err    error

	lastOperation string
	lastAmount    domain.Money
	lastSource    domain.PaymentSource
	lastTarget    domain.CreditTarget
	lastReference domain.Reference
	lastOpts      *domain.TransactionOptions
}

func (m *mockGateway) Authorize(ctx context.Context, amount domain.Money, source domain.PaymentSource, opts *domain.TransactionOptions) (*ports.GatewayResult, error) {
	m.lastOperation, m.lastAmount, m.lastSource, m.lastOpts = "authorize", amount, source, opts
	return m.result, m.err
}

func (m *mockGateway) Purchase(ctx context.Context, amount domain.Money, source domain.PaymentSource, opts *domain.TransactionOptions) (*ports.GatewayResult, error) {
	m.lastOperation, m.lastAmount, m.lastSource, m.lastOpts = "purchase", amount, source, opts
	return m.result, m.err
}

func (m *mockGateway) Capture(ctx context.Context, amount domain.Money, authorization domain.Reference, opts *domain.TransactionOptions) (*ports.GatewayResult, error) {
	m.lastOperation, m.lastAmount, m.lastReference, m.lastOpts = "capture", amount, authorization, opts
	return m.result, m.err
}

func (m *mockGateway) Void(ctx context.Context, authorization domain.Reference, opts *domain.TransactionOptions) (*ports.GatewayResult, error) {
	m.lastOperation, m.lastReference, m.lastOpts = "void", authorization, opts
	return m.result, m.err
}

func (m *mockGateway) Credit(ctx context.Context, amount domain.Money, target domain.CreditTarget, opts *domain.TransactionOptions) (*ports.GatewayResult, error) {
	m.lastOperation, m.lastAmount, m.lastTarget, m.lastOpts = "credit", amount, target, opts
	return m.result, m.err
}

func (m *mockGateway) Refund(ctx context.Context, amount domain.Money, reference domain.Reference, opts *domain.TransactionOptions) (*ports.GatewayResult, error) {
	m.lastOperation, m.lastAmount, m.lastReference, m.lastOpts = "refund", amount, reference, opts
	return m.result, m.err
}

func approvedResult() *ports.GatewayResult {
	return &ports.GatewayResult{
		Success:       true,
		Message:       "The transaction was successful",
		Params:        map[string]string{"PAYID": "3014726", "NCERROR": "0"},
		Authorization: "3014726;SAL",
		Test:          true,
	}
}

func newTestService(gateway *mockGateway) *Service {
	return NewService(gateway, zap.NewNop())
}

func cardRequest() *CardRequest {
	return &CardRequest{
		Name:         "John Doe",
		Number:       "4000100011112224",
		Month:        5,
		Year:         2027,
		Verification: "123",
	}
}

func TestPurchaseWithCard(t *testing.T) {
	gateway := &mockGateway{result: approvedResult()}
	service := newTestService(gateway)

	resp, err := service.Purchase(context.Background(), &PaymentRequest{
		Amount:   "10.00",
		Currency: "EUR",
		Card:     cardRequest(),
	})
	require.NoError(t, err)

	assert.Equal(t, "purchase", gateway.lastOperation)
	assert.Equal(t, int64(1000), gateway.lastAmount.Units)
	assert.Equal(t, "EUR", gateway.lastOpts.Currency)

	card, ok := gateway.lastSource.(domain.CreditCard)
	require.True(t, ok)
	assert.Equal(t, "4000100011112224", card.Number)

	assert.True(t, resp.Success)
	assert.Equal(t, "3014726;SAL", resp.Authorization)
	assert.Equal(t, "3014726", resp.TransactionID)
}

func TestAuthorizeWithAlias(t *testing.T) {
	gateway := &mockGateway{result: approvedResult()}
	service := newTestService(gateway)

	_, err := service.Authorize(context.Background(), &PaymentRequest{
		Amount: "5.00",
		Alias:  "cust-42",
	})
	require.NoError(t, err)

	assert.Equal(t, "authorize", gateway.lastOperation)
	assert.Equal(t, domain.Alias("cust-42"), gateway.lastSource)
}

func TestOrderValidation(t *testing.T) {
	tests := []struct {
		name string
		req  PaymentRequest
	}{
		{"missing amount", PaymentRequest{Alias: "a"}},
		{"invalid amount", PaymentRequest{Amount: "ten", Alias: "a"}},
		{"sub-cent amount", PaymentRequest{Amount: "1.001", Alias: "a"}},
		{"missing source", PaymentRequest{Amount: "10.00"}},
		{"card and alias together", PaymentRequest{Amount: "10.00", Card: cardRequest(), Alias: "a"}},
	}

	service := newTestService(&mockGateway{result: approvedResult()})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Purchase(context.Background(), &tt.req)
			var validationErr *pkgerrors.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestCaptureRequiresAuthorization(t *testing.T) {
	service := newTestService(&mockGateway{result: approvedResult()})

	_, err := service.Capture(context.Background(), &PaymentRequest{Amount: "10.00"})
	var validationErr *pkgerrors.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestCapturePassesReference(t *testing.T) {
	gateway := &mockGateway{result: approvedResult()}
	service := newTestService(gateway)

	_, err := service.Capture(context.Background(), &PaymentRequest{
		Amount:        "10.00",
		Authorization: "3014726;RES",
	})
	require.NoError(t, err)

	assert.Equal(t, "capture", gateway.lastOperation)
	assert.Equal(t, domain.Reference("3014726;RES"), gateway.lastReference)
}

func TestVoidRequiresAuthorization(t *testing.T) {
	service := newTestService(&mockGateway{result: approvedResult()})

	_, err := service.Void(context.Background(), &PaymentRequest{})
	var validationErr *pkgerrors.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestCreditTargetSelection(t *testing.T) {
	t.Run("authorization becomes a reference", func(t *testing.T) {
		gateway := &mockGateway{result: approvedResult()}
		service := newTestService(gateway)

		_, err := service.Credit(context.Background(), &PaymentRequest{
			Amount:        "5.00",
			Authorization: "3014726;SAL",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.Reference("3014726;SAL"), gateway.lastTarget)
	})

	t.Run("card target", func(t *testing.T) {
		gateway := &mockGateway{result: approvedResult()}
		service := newTestService(gateway)

		_, err := service.Credit(context.Background(), &PaymentRequest{
			Amount: "5.00",
			Card:   cardRequest(),
		})
		require.NoError(t, err)
		_, ok := gateway.lastTarget.(domain.CreditCard)
		assert.True(t, ok)
	})

	t.Run("alias target", func(t *testing.T) {
		gateway := &mockGateway{result: approvedResult()}
		service := newTestService(gateway)

		_, err := service.Credit(context.Background(), &PaymentRequest{
			Amount: "5.00",
			Alias:  "cust-42",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.Alias("cust-42"), gateway.lastTarget)
	})

	t.Run("no target is a validation error", func(t *testing.T) {
		service := newTestService(&mockGateway{result: approvedResult()})

		_, err := service.Credit(context.Background(), &PaymentRequest{Amount: "5.00"})
		var validationErr *pkgerrors.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestRefund(t *testing.T) {
	gateway := &mockGateway{result: approvedResult()}
	service := newTestService(gateway)

	_, err := service.Refund(context.Background(), &PaymentRequest{
		Amount:        "5.00",
		Authorization: "3014726;SAL",
	})
	require.NoError(t, err)
	assert.Equal(t, "refund", gateway.lastOperation)
	assert.Equal(t, domain.Reference("3014726;SAL"), gateway.lastReference)
}

func TestOptionsMapping(t *testing.T) {
	gateway := &mockGateway{result: approvedResult()}
	service := newTestService(gateway)

	_, err := service.Purchase(context.Background(), &PaymentRequest{
		Amount:   "10.00",
		Currency: "USD",
		Card:     cardRequest(),
		Options: OptionsRequest{
			OrderID:      "o-1",
			Description:  "Order one",
			Email:        "jane@example.com",
			IP:           "10.0.0.1",
			Store:        "alias-1",
			ThreeDSecure: true,
			Window3DS:    "pop_up",
			BillingAddress: &AddressRequest{
				Address1: "1 Main St",
				City:     "Brussels",
			},
		},
	})
	require.NoError(t, err)

	opts := gateway.lastOpts
	assert.Equal(t, "o-1", opts.OrderID)
	assert.Equal(t, "Order one", opts.Description)
	assert.Equal(t, "USD", opts.Currency)
	assert.Equal(t, "jane@example.com", opts.Email)
	assert.Equal(t, "alias-1", opts.Store)
	assert.True(t, opts.ThreeDSecure)
	assert.Equal(t, domain.ThreeDSPopUp, opts.Window3DS)
	require.NotNil(t, opts.BillingAddress)
	assert.Equal(t, "1 Main St", opts.BillingAddress.Address1)
	assert.Equal(t, "Brussels", opts.BillingAddress.City)
}

func TestGatewayErrorPassesThrough(t *testing.T) {
	gateway := &mockGateway{err: errors.New("connection refused")}
	service := newTestService(gateway)

	_, err := service.Purchase(context.Background(), &PaymentRequest{
		Amount: "10.00",
		Alias:  "cust-42",
	})
	assert.Error(t, err)
}
