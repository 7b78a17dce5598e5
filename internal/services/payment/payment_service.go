package payment

import (
	"context"

	"go.uber.org/zap"

	"github.com/merchantkit/ogone-service/internal/adapters/ports"
	"github.com/merchantkit/ogone-service/internal/domain"
	pkgerrors "github.com/merchantkit/ogone-service/pkg/errors"
)

// Service orchestrates payment operations against the gateway port. It holds
// no state beyond its collaborators, so one instance serves all requests.
type Service struct {
	gateway ports.PaymentGateway
	logger  *zap.Logger
}

// NewService creates a new payment service
func NewService(gateway ports.PaymentGateway, logger *zap.Logger) *Service {
	return &Service{
		gateway: gateway,
		logger:  logger,
	}
}

// CardRequest is raw card data from the API client
type CardRequest struct {
	Name         string `json:"name"`
	Number       string `json:"number"`
	Month        int    `json:"month"`
	Year         int    `json:"year"`
	Verification string `json:"verification"`
}

// AddressRequest is the cardholder billing address
type AddressRequest struct {
	Address1 string `json:"address1"`
	Zip      string `json:"zip"`
	City     string `json:"city"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

// OptionsRequest carries the optional per-transaction parameters
type OptionsRequest struct {
	OrderID     string `json:"order_id"`
	Description string `json:"description"`
	Email       string `json:"email"`
	IP          string `json:"ip"`

	BillingAddress *AddressRequest `json:"billing_address,omitempty"`

	Store string `json:"store"`

	ThreeDSecure       bool   `json:"d3d"`
	Window3DS          string `json:"win3ds"`
	HTTPAccept         string `json:"http_accept"`
	HTTPUserAgent      string `json:"http_user_agent"`
	AcceptURL          string `json:"accept_url"`
	DeclineURL         string `json:"decline_url"`
	ExceptionURL       string `json:"exception_url"`
	ParamPlus          string `json:"paramplus"`
	ComPlus            string `json:"complus"`
	Language           string `json:"language"`
	TransactionProfile string `json:"tp"`
}

// PaymentRequest is the body of every payment call. Exactly one of Card,
// Alias or Authorization identifies the payment instrument or the prior
// transaction, depending on the operation.
type PaymentRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`

	Card  *CardRequest `json:"card,omitempty"`
	Alias string       `json:"alias,omitempty"`

	// Authorization references a prior transaction (capture/void/refund, or
	// a referenced credit)
	Authorization string `json:"authorization,omitempty"`

	Options OptionsRequest `json:"options"`
}

// PaymentResponse is the normalized outcome returned to API clients
type PaymentResponse struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	Authorization string            `json:"authorization"`
	TransactionID string            `json:"transaction_id"`
	AVSResult     string            `json:"avs_result,omitempty"`
	CVVResult     string            `json:"cvv_result,omitempty"`
	HTMLAnswer    string            `json:"html_answer,omitempty"`
	Test          bool              `json:"test"`
	Raw           map[string]string `json:"raw,omitempty"`
}

// Authorize reserves funds without settling
func (s *Service) Authorize(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	amount, source, opts, err := s.orderArguments(req)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Authorizing payment", zap.String("currency", req.Currency))
	result, err := s.gateway.Authorize(ctx, amount, source, opts)
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(result), nil
}

// Purchase authorizes and settles in one step
func (s *Service) Purchase(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	amount, source, opts, err := s.orderArguments(req)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Processing purchase", zap.String("currency", req.Currency))
	result, err := s.gateway.Purchase(ctx, amount, source, opts)
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(result), nil
}

// Capture settles a prior authorization
func (s *Service) Capture(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	if req.Authorization == "" {
		return nil, pkgerrors.NewValidationError("authorization", "authorization is required")
	}
	amount, err := s.parseAmount(req)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Capturing authorization",
		zap.String("transaction_id", domain.Reference(req.Authorization).TransactionID()))
	result, err := s.gateway.Capture(ctx, amount, domain.Reference(req.Authorization), s.options(req))
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(result), nil
}

// Void cancels a prior authorization
func (s *Service) Void(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	if req.Authorization == "" {
		return nil, pkgerrors.NewValidationError("authorization", "authorization is required")
	}

	result, err := s.gateway.Void(ctx, domain.Reference(req.Authorization), s.options(req))
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(result), nil
}

// Credit refunds a prior transaction or pushes funds to a card/alias
func (s *Service) Credit(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	amount, err := s.parseAmount(req)
	if err != nil {
		return nil, err
	}

	var target domain.CreditTarget
	switch {
	case req.Authorization != "":
		target = domain.Reference(req.Authorization)
	case req.Card != nil:
		target = toCard(req.Card)
	case req.Alias != "":
		target = domain.Alias(req.Alias)
	default:
		return nil, pkgerrors.NewValidationError("card", "a card, alias or authorization is required")
	}

	result, err := s.gateway.Credit(ctx, amount, target, s.options(req))
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(result), nil
}

// Refund performs a referenced credit
func (s *Service) Refund(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	if req.Authorization == "" {
		return nil, pkgerrors.NewValidationError("authorization", "authorization is required")
	}
	amount, err := s.parseAmount(req)
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.Refund(ctx, amount, domain.Reference(req.Authorization), s.options(req))
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(result), nil
}

func (s *Service) orderArguments(req *PaymentRequest) (domain.Money, domain.PaymentSource, *domain.TransactionOptions, error) {
	amount, err := s.parseAmount(req)
	if err != nil {
		return domain.Money{}, nil, nil, err
	}

	var source domain.PaymentSource
	switch {
	case req.Card != nil && req.Alias != "":
		return domain.Money{}, nil, nil, pkgerrors.NewValidationError("card", "card and alias are mutually exclusive")
	case req.Card != nil:
		source = toCard(req.Card)
	case req.Alias != "":
		source = domain.Alias(req.Alias)
	default:
		return domain.Money{}, nil, nil, pkgerrors.NewValidationError("card", "a card or alias is required")
	}

	return amount, source, s.options(req), nil
}

func (s *Service) parseAmount(req *PaymentRequest) (domain.Money, error) {
	if req.Amount == "" {
		return domain.Money{}, pkgerrors.NewValidationError("amount", "amount is required")
	}
	amount, err := domain.ParseAmount(req.Amount, req.Currency)
	if err != nil {
		return domain.Money{}, pkgerrors.NewValidationError("amount", err.Error())
	}
	return amount, nil
}

// options maps the request options to domain options. The request-level
// currency rides along as the caller's currency override.
func (s *Service) options(req *PaymentRequest) *domain.TransactionOptions {
	o := &req.Options
	opts := &domain.TransactionOptions{
		OrderID:            o.OrderID,
		Description:        o.Description,
		Currency:           req.Currency,
		Email:              o.Email,
		IP:                 o.IP,
		Store:              o.Store,
		ThreeDSecure:       o.ThreeDSecure,
		Window3DS:          domain.ThreeDSWindow(o.Window3DS),
		HTTPAccept:         o.HTTPAccept,
		HTTPUserAgent:      o.HTTPUserAgent,
		AcceptURL:          o.AcceptURL,
		DeclineURL:         o.DeclineURL,
		ExceptionURL:       o.ExceptionURL,
		ParamPlus:          o.ParamPlus,
		ComPlus:            o.ComPlus,
		Language:           o.Language,
		TransactionProfile: o.TransactionProfile,
	}
	if o.BillingAddress != nil {
		opts.BillingAddress = &domain.Address{
			Address1: o.BillingAddress.Address1,
			Zip:      o.BillingAddress.Zip,
			City:     o.BillingAddress.City,
			Country:  o.BillingAddress.Country,
			Phone:    o.BillingAddress.Phone,
		}
	}
	return opts
}

func toCard(c *CardRequest) domain.CreditCard {
	return domain.CreditCard{
		Name:         c.Name,
		Number:       c.Number,
		Month:        c.Month,
		Year:         c.Year,
		Verification: c.Verification,
	}
}

func toPaymentResponse(result *ports.GatewayResult) *PaymentResponse {
	return &PaymentResponse{
		Success:       result.Success,
		Message:       result.Message,
		Authorization: result.Authorization,
		TransactionID: result.TransactionID(),
		AVSResult:     result.AVSResult,
		CVVResult:     result.CVVResult,
		HTMLAnswer:    result.HTMLAnswer,
		Test:          result.Test,
		Raw:           result.Params,
	}
}
