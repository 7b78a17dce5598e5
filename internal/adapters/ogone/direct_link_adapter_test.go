package ogone

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/merchantkit/ogone-service/internal/domain"
	pkgerrors "github.com/merchantkit/ogone-service/pkg/errors"
)

type capturedRequest struct {
	path string
	form url.Values
}

// newCapturingServer records each DirectLink POST and replies with the given
// XML body.
func newCapturingServer(t *testing.T, response string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		captured = append(captured, capturedRequest{path: r.URL.Path, form: r.PostForm})
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func newServerGateway(t *testing.T, server *httptest.Server, mutate func(*Config)) *directLinkGateway {
	t.Helper()
	config := &Config{
		PSPID:    "pspid",
		UserID:   "userid",
		Password: "password",
		Test:     true,
		BaseURL:  server.URL,
	}
	if mutate != nil {
		mutate(config)
	}
	gw, err := NewGateway(config, server.Client(), zap.NewNop())
	require.NoError(t, err)
	return gw.(*directLinkGateway)
}

func testCard() domain.CreditCard {
	return domain.CreditCard{
		Name:         "John Doe",
		Number:       "4000100011112224",
		Month:        5,
		Year:         2027,
		Verification: "123",
	}
}

func TestNewGatewayRequiresCredentials(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"missing pspid", Config{UserID: "u", Password: "p"}},
		{"missing userid", Config{PSPID: "id", Password: "p"}},
		{"missing password", Config{PSPID: "id", UserID: "u"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGateway(&tt.config, nil, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestPurchaseSendsOrderFields(t *testing.T) {
	server, captured := newCapturingServer(t, approvedResponse)
	g := newServerGateway(t, server, nil)

	amount, err := domain.ParseAmount("10.00", "EUR")
	require.NoError(t, err)

	opts := &domain.TransactionOptions{
		OrderID:     "order-77",
		Description: "Store purchase",
		Email:       "jane@example.com",
		IP:          "10.0.0.1",
		BillingAddress: &domain.Address{
			Address1: "1 Main St",
			Zip:      "1000",
			City:     "Brussels",
			Country:  "BE",
			Phone:    "+32123456",
		},
	}

	result, err := g.Purchase(context.Background(), amount, testCard(), opts)
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Len(t, *captured, 1)
	form := (*captured)[0].form

	assert.Equal(t, "pspid", form.Get("PSPID"))
	assert.Equal(t, "userid", form.Get("USERID"))
	assert.Equal(t, "password", form.Get("PSWD"))
	assert.Equal(t, "SAL", form.Get("OPERATION"))
	assert.Equal(t, "order-77", form.Get("ORDERID"))
	assert.Equal(t, "Store purchase", form.Get("COM"))
	assert.Equal(t, "1000", form.Get("AMOUNT"))
	assert.Equal(t, "EUR", form.Get("CURRENCY"))
	assert.Equal(t, "John Doe", form.Get("CN"))
	assert.Equal(t, "4000100011112224", form.Get("CARDNO"))
	assert.Equal(t, "0527", form.Get("ED"))
	assert.Equal(t, "123", form.Get("CVC"))
	assert.Equal(t, "jane@example.com", form.Get("EMAIL"))
	assert.Equal(t, "10.0.0.1", form.Get("REMOTE_ADDR"))
	assert.Equal(t, "1 Main St", form.Get("OWNERADDRESS"))
	assert.Equal(t, "1000", form.Get("OWNERZIP"))
	assert.Equal(t, "Brussels", form.Get("OWNERTOWN"))
	assert.Equal(t, "BE", form.Get("OWNERCTY"))
	assert.Equal(t, "+32123456", form.Get("OWNERTELNO"))
}

func TestAuthorizeUsesReservation(t *testing.T) {
	server, captured := newCapturingServer(t, approvedResponse)
	g := newServerGateway(t, server, nil)

	amount, _ := domain.ParseAmount("5.00", "EUR")
	_, err := g.Authorize(context.Background(), amount, testCard(), nil)
	require.NoError(t, err)

	form := (*captured)[0].form
	assert.Equal(t, "RES", form.Get("OPERATION"))
	// No options supplied: an ORDERID is generated within the size limit.
	orderID := form.Get("ORDERID")
	assert.NotEmpty(t, orderID)
	assert.LessOrEqual(t, len(orderID), orderIDLength)
}

func TestPurchaseWithAliasSendsECI(t *testing.T) {
	server, captured := newCapturingServer(t, approvedResponse)
	g := newServerGateway(t, server, nil)

	amount, _ := domain.ParseAmount("10.00", "EUR")
	_, err := g.Purchase(context.Background(), amount, domain.Alias("cust-42"), nil)
	require.NoError(t, err)

	form := (*captured)[0].form
	assert.Equal(t, "cust-42", form.Get("ALIAS"))
	assert.Equal(t, "9", form.Get("ECI"))
	assert.Empty(t, form.Get("CARDNO"))
	assert.Empty(t, form.Get("CVC"))
}

func TestPurchaseStoresCardUnderAlias(t *testing.T) {
	server, captured := newCapturingServer(t, approvedResponse)
	g := newServerGateway(t, server, nil)

	amount, _ := domain.ParseAmount("10.00", "EUR")
	opts := &domain.TransactionOptions{Store: "new-alias"}
	_, err := g.Purchase(context.Background(), amount, testCard(), opts)
	require.NoError(t, err)

	form := (*captured)[0].form
	assert.Equal(t, "new-alias", form.Get("ALIAS"))
	assert.Empty(t, form.Get("ECI"))
	assert.Equal(t, "4000100011112224", form.Get("CARDNO"))
}

func TestPurchaseThreeDSecureFields(t *testing.T) {
	server, captured := newCapturingServer(t, threeDSResponse)
	g := newServerGateway(t, server, nil)

	amount, _ := domain.ParseAmount("10.00", "EUR")
	opts := &domain.TransactionOptions{
		ThreeDSecure:  true,
		Window3DS:     domain.ThreeDSPopUp,
		HTTPUserAgent: "test-agent",
		AcceptURL:     "https://shop.example/ok",
		DeclineURL:    "https://shop.example/no",
		ExceptionURL:  "https://shop.example/err",
	}

	result, err := g.Purchase(context.Background(), amount, testCard(), opts)
	require.NoError(t, err)
	assert.Equal(t, "PGZvcm0+redirect", result.HTMLAnswer)

	form := (*captured)[0].form
	assert.Equal(t, "Y", form.Get("FLAG3D"))
	assert.Equal(t, "POPUP", form.Get("WIN3DS"))
	assert.Equal(t, "*/*", form.Get("HTTP_ACCEPT"))
	assert.Equal(t, "test-agent", form.Get("HTTP_USER_AGENT"))
	assert.Equal(t, "https://shop.example/ok", form.Get("ACCEPTURL"))
	assert.Equal(t, "https://shop.example/no", form.Get("DECLINEURL"))
	assert.Equal(t, "https://shop.example/err", form.Get("EXCEPTIONURL"))
}

func TestPurchaseWithoutThreeDSecureOmitsFlags(t *testing.T) {
	server, captured := newCapturingServer(t, approvedResponse)
	g := newServerGateway(t, server, nil)

	amount, _ := domain.ParseAmount("10.00", "EUR")
	_, err := g.Purchase(context.Background(), amount, testCard(), &domain.TransactionOptions{HTTPUserAgent: "agent"})
	require.NoError(t, err)

	form := (*captured)[0].form
	assert.False(t, form.Has("FLAG3D"))
	assert.False(t, form.Has("WIN3DS"))
	assert.False(t, form.Has("HTTP_USER_AGENT"))
}

func TestBlankValuesOmitted(t *testing.T) {
	server, captured := newCapturingServer(t, approvedResponse)
	g := newServerGateway(t, server, nil)

	amount, _ := domain.ParseAmount("10.00", "EUR")
	opts := &domain.TransactionOptions{
		OrderID:     "o1",
		Description: "   ",
		Email:       "",
	}
	card := testCard()
	card.Verification = ""

	_, err := g.Purchase(context.Background(), amount, card, opts)
	require.NoError(t, err)

	form := (*captured)[0].form
	assert.False(t, form.Has("COM"))
	assert.False(t, form.Has("EMAIL"))
	assert.False(t, form.Has("CVC"))
}

func TestCurrencyResolutionOrder(t *testing.T) {
	tests := []struct {
		name            string
		optsCurrency    string
		defaultCurrency string
		amountCurrency  string
		expected        string
	}{
		{"options win", "USD", "EUR", "GBP", "USD"},
		{"gateway default next", "", "EUR", "GBP", "EUR"},
		{"amount currency last", "", "", "GBP", "GBP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, captured := newCapturingServer(t, approvedResponse)
			g := newServerGateway(t, server, func(c *Config) {
				c.DefaultCurrency = tt.defaultCurrency
			})

			amount := domain.Money{Units: 1000, Currency: tt.amountCurrency}
			opts := &domain.TransactionOptions{Currency: tt.optsCurrency}

			_, err := g.Purchase(context.Background(), amount, testCard(), opts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, (*captured)[0].form.Get("CURRENCY"))
		})
	}
}

func TestEndpointRouting(t *testing.T) {
	server, captured := newCapturingServer(t, approvedResponse)
	g := newServerGateway(t, server, nil)

	amount, _ := domain.ParseAmount("10.00", "EUR")

	_, err := g.Purchase(context.Background(), amount, testCard(), nil)
	require.NoError(t, err)
	assert.Equal(t, "/ncol/test/orderdirect.asp", (*captured)[0].path)

	_, err = g.Capture(context.Background(), amount, domain.Reference("3014726;RES"), nil)
	require.NoError(t, err)
	assert.Equal(t, "/ncol/test/maintenancedirect.asp", (*captured)[1].path)
}

func TestProductionEndpoint(t *testing.T) {
	server, captured := newCapturingServer(t, approvedResponse)
	g := newServerGateway(t, server, func(c *Config) { c.Test = false })

	amount, _ := domain.ParseAmount("10.00", "EUR")
	_, err := g.Purchase(context.Background(), amount, testCard(), nil)
	require.NoError(t, err)
	assert.Equal(t, "/ncol/prod/orderdirect.asp", (*captured)[0].path)
}

func TestCaptureUsesTransactionID(t *testing.T) {
	server, captured := newCapturingServer(t, approvedResponse)
	g := newServerGateway(t, server, nil)

	amount, _ := domain.ParseAmount("10.00", "EUR")
	result, err := g.Capture(context.Background(), amount, domain.Reference("3014726;RES"), nil)
	require.NoError(t, err)

	form := (*captured)[0].form
	assert.Equal(t, "3014726", form.Get("PAYID"))
	assert.Equal(t, "SAL", form.Get("OPERATION"))
	assert.Equal(t, "1000", form.Get("AMOUNT"))
	assert.Equal(t, "3014726;SAL", result.Authorization)
}

func TestVoid(t *testing.T) {
	server, captured := newCapturingServer(t, approvedResponse)
	g := newServerGateway(t, server, nil)

	_, err := g.Void(context.Background(), domain.Reference("3014726;RES"), nil)
	require.NoError(t, err)

	form := (*captured)[0].form
	assert.Equal(t, "3014726", form.Get("PAYID"))
	assert.Equal(t, "DES", form.Get("OPERATION"))
	assert.False(t, form.Has("AMOUNT"))
}

func TestRefund(t *testing.T) {
	server, captured := newCapturingServer(t, approvedResponse)
	g := newServerGateway(t, server, nil)

	amount, _ := domain.ParseAmount("5.00", "EUR")
	_, err := g.Refund(context.Background(), amount, domain.Reference("3014726;SAL"), nil)
	require.NoError(t, err)

	form := (*captured)[0].form
	assert.Equal(t, "3014726", form.Get("PAYID"))
	assert.Equal(t, "RFD", form.Get("OPERATION"))
	assert.Equal(t, "500", form.Get("AMOUNT"))
	assert.Equal(t, "/ncol/test/maintenancedirect.asp", (*captured)[0].path)
}

func TestCreditDispatch(t *testing.T) {
	amountStr := "5.00"

	t.Run("transaction reference becomes a refund", func(t *testing.T) {
		server, captured := newCapturingServer(t, approvedResponse)
		g := newServerGateway(t, server, nil)

		amount, _ := domain.ParseAmount(amountStr, "EUR")
		_, err := g.Credit(context.Background(), amount, domain.Reference("3014726;SAL"), nil)
		require.NoError(t, err)

		form := (*captured)[0].form
		assert.Equal(t, "3014726", form.Get("PAYID"))
		assert.Equal(t, "RFD", form.Get("OPERATION"))
		assert.Equal(t, "/ncol/test/maintenancedirect.asp", (*captured)[0].path)
	})

	t.Run("bare reference treated as alias", func(t *testing.T) {
		server, captured := newCapturingServer(t, approvedResponse)
		g := newServerGateway(t, server, nil)

		amount, _ := domain.ParseAmount(amountStr, "EUR")
		_, err := g.Credit(context.Background(), amount, domain.Reference("cust-42"), nil)
		require.NoError(t, err)

		form := (*captured)[0].form
		assert.Equal(t, "cust-42", form.Get("ALIAS"))
		assert.Equal(t, "9", form.Get("ECI"))
		assert.Equal(t, "RFD", form.Get("OPERATION"))
		assert.Equal(t, "/ncol/test/orderdirect.asp", (*captured)[0].path)
	})

	t.Run("card target is a non-referenced credit", func(t *testing.T) {
		server, captured := newCapturingServer(t, approvedResponse)
		g := newServerGateway(t, server, nil)

		amount, _ := domain.ParseAmount(amountStr, "EUR")
		_, err := g.Credit(context.Background(), amount, testCard(), nil)
		require.NoError(t, err)

		form := (*captured)[0].form
		assert.Equal(t, "4000100011112224", form.Get("CARDNO"))
		assert.Equal(t, "RFD", form.Get("OPERATION"))
		assert.False(t, form.Has("PAYID"))
	})
}

func TestSignatureAppendedWhenConfigured(t *testing.T) {
	server, captured := newCapturingServer(t, approvedResponse)
	g := newServerGateway(t, server, func(c *Config) {
		c.SHAIn = "Mysecretsig1875!?"
		c.SignAllParameters = true
	})

	amount, _ := domain.ParseAmount("10.00", "EUR")
	_, err := g.Purchase(context.Background(), amount, testCard(), &domain.TransactionOptions{OrderID: "o1"})
	require.NoError(t, err)

	form := (*captured)[0].form
	shasign := form.Get("SHASIGN")
	require.NotEmpty(t, shasign)
	assert.Len(t, shasign, 40)

	// Recompute over all posted fields except the signature itself.
	p := newParamSet()
	for key := range form {
		if key == "SHASIGN" {
			continue
		}
		p.add(key, form.Get(key))
	}
	assert.Equal(t, sign(p, "Mysecretsig1875!?", HashSHA1, true), shasign)
}

func TestUnsignedWhenNoPassphrase(t *testing.T) {
	server, captured := newCapturingServer(t, approvedResponse)
	g := newServerGateway(t, server, nil)

	amount, _ := domain.ParseAmount("10.00", "EUR")
	_, err := g.Purchase(context.Background(), amount, testCard(), nil)
	require.NoError(t, err)

	assert.False(t, (*captured)[0].form.Has("SHASIGN"))
}

func TestDeclinedTransaction(t *testing.T) {
	server, _ := newCapturingServer(t, declinedResponse)
	g := newServerGateway(t, server, nil)

	amount, _ := domain.ParseAmount("10.00", "EUR")
	result, err := g.Purchase(context.Background(), amount, testCard(), nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "No orderid", result.Message)
}

func TestMalformedResponseIsASystemError(t *testing.T) {
	server, _ := newCapturingServer(t, "not xml at all")
	g := newServerGateway(t, server, nil)

	amount, _ := domain.ParseAmount("10.00", "EUR")
	_, err := g.Purchase(context.Background(), amount, testCard(), nil)
	require.Error(t, err)

	var paymentErr *pkgerrors.PaymentError
	require.ErrorAs(t, err, &paymentErr)
	assert.Equal(t, pkgerrors.CategorySystemError, paymentErr.Category)
	assert.False(t, paymentErr.IsRetriable)
}

// failingClient simulates a transport that never reaches the processor.
type failingClient struct {
	err error
}

func (f failingClient) Do(*http.Request) (*http.Response, error) {
	return nil, f.err
}

func TestTransportFailureIsANetworkError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	gw, err := NewGateway(&Config{
		PSPID:    "pspid",
		UserID:   "userid",
		Password: "password",
		Test:     true,
	}, failingClient{err: cause}, zap.NewNop())
	require.NoError(t, err)

	amount, _ := domain.ParseAmount("10.00", "EUR")
	_, err = gw.Purchase(context.Background(), amount, testCard(), nil)
	require.Error(t, err)

	var paymentErr *pkgerrors.PaymentError
	require.ErrorAs(t, err, &paymentErr)
	assert.Equal(t, pkgerrors.CategoryNetworkError, paymentErr.Category)
	assert.True(t, paymentErr.IsRetriable)
	assert.ErrorIs(t, err, cause)
}

func TestGenerateOrderID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateOrderID()
		assert.LessOrEqual(t, len(id), orderIDLength)
		assert.NotContains(t, id, "-")
		assert.False(t, seen[id])
		seen[id] = true
	}
}
