package ogone

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/merchantkit/ogone-service/internal/adapters/ports"
	"github.com/merchantkit/ogone-service/internal/domain"
	pkgerrors "github.com/merchantkit/ogone-service/pkg/errors"
	"github.com/merchantkit/ogone-service/pkg/observability"
)

// Operation codes for the DirectLink order and maintenance APIs.
const (
	OperationAuthorize = "RES" // reservation
	OperationPurchase  = "SAL" // sale (also settles a prior RES when PAYID is present)
	OperationVoid      = "DES" // delete authorization
	OperationCredit    = "RFD" // refund
)

// productionBaseURL is the DirectLink host. The environment segment of the
// path ("test" or "prod") is chosen per request from the gateway config.
const productionBaseURL = "https://secure.ogone.com"

// orderIDLength is the processor's ORDERID size limit; generated ids are
// truncated to it.
const orderIDLength = 30

// Config contains configuration for the DirectLink gateway adapter
type Config struct {
	// Account credentials (required)
	PSPID    string // Merchant account identifier
	UserID   string // API user
	Password string // API user password

	// SHAIn is the shared SHA-IN passphrase. When empty, requests are sent
	// unsigned.
	SHAIn string

	// HashAlgorithm selects the request signature digest (default sha1)
	HashAlgorithm HashAlgorithm

	// SignAllParameters selects the full-parameter signature convention used
	// by accounts created after 10 May 2010. Older accounts sign a fixed
	// seven-field string; that field order is a processor contract and must
	// not change.
	SignAllParameters bool

	// DefaultCurrency is used when neither the options nor the amount carry
	// a currency
	DefaultCurrency string

	// Test routes requests to the processor's test platform
	Test bool

	// BaseURL overrides the DirectLink host (httptest servers)
	BaseURL string
}

// DefaultConfig returns default configuration for the given environment
func DefaultConfig(environment string) *Config {
	return &Config{
		BaseURL:       productionBaseURL,
		HashAlgorithm: HashSHA1,
		Test:          environment != "production",
	}
}

// directLinkGateway implements the PaymentGateway port against the Ogone
// DirectLink API
type directLinkGateway struct {
	config     *Config
	httpClient ports.HTTPClient
	logger     *zap.Logger
}

// NewGateway creates a new DirectLink gateway adapter. It fails fast when the
// required credentials are missing, before any network call can happen.
func NewGateway(config *Config, httpClient ports.HTTPClient, logger *zap.Logger) (ports.PaymentGateway, error) {
	if config.PSPID == "" {
		return nil, fmt.Errorf("pspid is required")
	}
	if config.UserID == "" {
		return nil, fmt.Errorf("userid is required")
	}
	if config.Password == "" {
		return nil, fmt.Errorf("password is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = productionBaseURL
	}
	if config.HashAlgorithm == "" {
		config.HashAlgorithm = HashSHA1
	}

	return &directLinkGateway{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Authorize places a reservation (RES) on the cardholder's account
func (g *directLinkGateway) Authorize(ctx context.Context, amount domain.Money, source domain.PaymentSource, opts *domain.TransactionOptions) (*ports.GatewayResult, error) {
	return g.order(ctx, OperationAuthorize, amount, source, opts)
}

// Purchase authorizes and settles (SAL) in a single exchange
func (g *directLinkGateway) Purchase(ctx context.Context, amount domain.Money, source domain.PaymentSource, opts *domain.TransactionOptions) (*ports.GatewayResult, error) {
	return g.order(ctx, OperationPurchase, amount, source, opts)
}

func (g *directLinkGateway) order(ctx context.Context, operation string, amount domain.Money, source domain.PaymentSource, opts *domain.TransactionOptions) (*ports.GatewayResult, error) {
	opts = normalizeOptions(opts)

	p := newParamSet()
	g.addInvoice(p, opts)
	g.addPayment(p, source, opts)
	g.addAddress(p, opts)
	g.addCustomer(p, opts)
	g.addMoney(p, amount, opts)

	return g.commit(ctx, operation, p)
}

// Capture settles a previously authorized transaction. DirectLink uses the
// SAL operation with the original PAYID for captures.
func (g *directLinkGateway) Capture(ctx context.Context, amount domain.Money, authorization domain.Reference, opts *domain.TransactionOptions) (*ports.GatewayResult, error) {
	opts = normalizeOptions(opts)

	p := newParamSet()
	p.add("PAYID", authorization.TransactionID())
	g.addInvoice(p, opts)
	g.addCustomer(p, opts)
	g.addMoney(p, amount, opts)

	return g.commit(ctx, OperationPurchase, p)
}

// Void cancels (DES) a previously authorized transaction
func (g *directLinkGateway) Void(ctx context.Context, authorization domain.Reference, opts *domain.TransactionOptions) (*ports.GatewayResult, error) {
	p := newParamSet()
	p.add("PAYID", authorization.TransactionID())

	return g.commit(ctx, OperationVoid, p)
}

// Credit dispatches on the target: a reference to a prior transaction becomes
// a referenced credit (identical to Refund), anything else a non-referenced
// credit against fresh card data or a stored alias.
func (g *directLinkGateway) Credit(ctx context.Context, amount domain.Money, target domain.CreditTarget, opts *domain.TransactionOptions) (*ports.GatewayResult, error) {
	var source domain.PaymentSource
	switch t := target.(type) {
	case domain.Reference:
		if t.IsTransaction() {
			g.logger.Warn("Credit called with a transaction reference, use Refund instead",
				zap.String("reference", string(t)),
			)
			return g.Refund(ctx, amount, t, opts)
		}
		// A bare reference without the delimiter is a stored alias.
		source = domain.Alias(t)
	case domain.CreditCard:
		source = t
	case domain.Alias:
		source = t
	default:
		return nil, fmt.Errorf("unsupported credit target %T", target)
	}

	return g.order(ctx, OperationCredit, amount, source, opts)
}

// Refund performs a referenced credit (RFD) against a settled transaction
func (g *directLinkGateway) Refund(ctx context.Context, amount domain.Money, reference domain.Reference, opts *domain.TransactionOptions) (*ports.GatewayResult, error) {
	opts = normalizeOptions(opts)

	p := newParamSet()
	p.add("PAYID", reference.TransactionID())
	g.addMoney(p, amount, opts)

	return g.commit(ctx, OperationCredit, p)
}

// commit finalizes the parameter set (credentials, operation, signature),
// posts it to the appropriate endpoint and normalizes the reply.
func (g *directLinkGateway) commit(ctx context.Context, operation string, p *paramSet) (*ports.GatewayResult, error) {
	p.add("PSPID", g.config.PSPID)
	p.add("USERID", g.config.UserID)
	p.add("PSWD", g.config.Password)
	p.add("OPERATION", operation)

	// The signature covers the final field set, so it goes in last.
	if g.config.SHAIn != "" {
		p.add("SHASIGN", sign(p, g.config.SHAIn, g.config.HashAlgorithm, g.config.SignAllParameters))
	}

	endpoint := g.endpointURL(p.has("PAYID"))

	g.logger.Info("Submitting DirectLink request",
		zap.String("operation", operation),
		zap.String("order_id", p.get("ORDERID")),
		zap.String("pay_id", p.get("PAYID")),
		zap.String("endpoint", endpoint),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(p.encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	startTime := time.Now()
	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		g.logger.Error("Failed to send DirectLink request",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(startTime)),
		)
		observability.RecordGatewayExchange(operation, "transport_error", time.Since(startTime))
		return nil, pkgerrors.NewPaymentError("transport_failure", "failed to send request",
			pkgerrors.CategoryNetworkError, true, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, pkgerrors.NewPaymentError("transport_failure", "failed to read response",
			pkgerrors.CategoryNetworkError, true, err)
	}

	g.logger.Debug("Received DirectLink response",
		zap.Int("status_code", httpResp.StatusCode),
		zap.Duration("elapsed", time.Since(startTime)),
		zap.Int("body_length", len(body)),
	)

	params, err := parseResponse(body)
	if err != nil {
		g.logger.Error("Failed to parse DirectLink response",
			zap.Error(err),
			zap.String("body", string(body)),
		)
		observability.RecordGatewayExchange(operation, "parse_error", time.Since(startTime))
		return nil, pkgerrors.NewPaymentError("malformed_response", "failed to parse response",
			pkgerrors.CategorySystemError, false, err)
	}

	result := g.normalize(params, operation)

	outcome := "declined"
	if result.Success {
		outcome = "approved"
	}
	observability.RecordGatewayExchange(operation, outcome, time.Since(startTime))

	g.logger.Info("Processed DirectLink transaction",
		zap.String("operation", operation),
		zap.String("pay_id", result.TransactionID()),
		zap.String("ncerror", params["NCERROR"]),
		zap.Bool("success", result.Success),
	)

	return result, nil
}

// endpointURL selects between the order endpoint (new transactions) and the
// maintenance endpoint (operations on an existing PAYID).
func (g *directLinkGateway) endpointURL(maintenance bool) string {
	env := "prod"
	if g.config.Test {
		env = "test"
	}
	page := "orderdirect"
	if maintenance {
		page = "maintenancedirect"
	}
	return fmt.Sprintf("%s/ncol/%s/%s.asp", g.config.BaseURL, env, page)
}

func (g *directLinkGateway) addInvoice(p *paramSet, opts *domain.TransactionOptions) {
	orderID := opts.OrderID
	if orderID == "" {
		orderID = generateOrderID()
	}
	p.add("ORDERID", orderID)
	p.add("COM", opts.Description)
}

func (g *directLinkGateway) addCustomer(p *paramSet, opts *domain.TransactionOptions) {
	p.add("EMAIL", opts.Email)
	p.add("REMOTE_ADDR", opts.IP)
}

func (g *directLinkGateway) addAddress(p *paramSet, opts *domain.TransactionOptions) {
	if opts.BillingAddress == nil {
		return
	}
	p.add("OWNERADDRESS", opts.BillingAddress.Address1)
	p.add("OWNERZIP", opts.BillingAddress.Zip)
	p.add("OWNERTOWN", opts.BillingAddress.City)
	p.add("OWNERCTY", opts.BillingAddress.Country)
	p.add("OWNERTELNO", opts.BillingAddress.Phone)
}

func (g *directLinkGateway) addMoney(p *paramSet, amount domain.Money, opts *domain.TransactionOptions) {
	currency := opts.Currency
	if currency == "" {
		currency = g.config.DefaultCurrency
	}
	if currency == "" {
		currency = amount.Currency
	}
	p.add("CURRENCY", currency)
	p.add("AMOUNT", amount.MinorUnits())
}

// threeDSWindows maps the display-mode option to its wire value.
var threeDSWindows = map[domain.ThreeDSWindow]string{
	domain.ThreeDSMainWindow: "MAINW",
	domain.ThreeDSPopUp:      "POPUP",
	domain.ThreeDSPopIX:      "POPIX",
}

func (g *directLinkGateway) addPayment(p *paramSet, source domain.PaymentSource, opts *domain.TransactionOptions) {
	switch s := source.(type) {
	case domain.Alias:
		p.add("ALIAS", string(s))
		// ECI 9: recurring transaction on a stored alias, no CVC available.
		p.add("ECI", "9")

	case domain.CreditCard:
		p.add("ALIAS", opts.Store)

		if opts.ThreeDSecure {
			p.add("FLAG3D", "Y")
			win, ok := threeDSWindows[opts.Window3DS]
			if !ok {
				win = threeDSWindows[domain.ThreeDSMainWindow]
			}
			p.add("WIN3DS", win)
			accept := opts.HTTPAccept
			if accept == "" {
				accept = "*/*"
			}
			p.add("HTTP_ACCEPT", accept)
			p.add("HTTP_USER_AGENT", opts.HTTPUserAgent)
			p.add("ACCEPTURL", opts.AcceptURL)
			p.add("DECLINEURL", opts.DeclineURL)
			p.add("EXCEPTIONURL", opts.ExceptionURL)
			p.add("PARAMPLUS", opts.ParamPlus)
			p.add("COMPLUS", opts.ComPlus)
			p.add("LANGUAGE", opts.Language)
			p.add("TP", opts.TransactionProfile)
		}

		p.add("CN", s.Name)
		p.add("CARDNO", s.Number)
		p.add("ED", s.ExpiryDate())
		p.add("CVC", s.Verification)
	}
}

// generateOrderID produces a unique ORDERID within the processor's size limit
func generateOrderID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(id) > orderIDLength {
		id = id[:orderIDLength]
	}
	return id
}

func normalizeOptions(opts *domain.TransactionOptions) *domain.TransactionOptions {
	if opts == nil {
		return &domain.TransactionOptions{}
	}
	return opts
}

// paramSet is the flat field set of one request. Built fresh per call and
// discarded after the exchange; blank values are never added.
type paramSet struct {
	values url.Values
}

func newParamSet() *paramSet {
	return &paramSet{values: url.Values{}}
}

// add inserts a field unless the value is blank (empty or whitespace-only)
func (p *paramSet) add(key, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	p.values.Set(key, value)
}

func (p *paramSet) get(key string) string {
	return p.values.Get(key)
}

func (p *paramSet) has(key string) bool {
	return p.values.Has(key)
}

func (p *paramSet) encode() string {
	return p.values.Encode()
}
