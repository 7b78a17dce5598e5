package ports

import (
	"context"

	"github.com/merchantkit/ogone-service/internal/domain"
)

// GatewayResult is the normalized outcome of one processor exchange. Declines
// are reported here with Success=false, never as errors: callers branch on the
// flag. An error return from the gateway means the exchange itself failed
// (transport, malformed reply).
type GatewayResult struct {
	// Success is true iff the processor accepted the transaction.
	Success bool

	// Message is a human-readable outcome description.
	Message string

	// Params holds every field of the raw processor reply.
	Params map[string]string

	// Authorization references this transaction in later capture/void/refund
	// calls, in the form "PAYID;OPERATION".
	Authorization string

	// AVSResult and CVVResult are canonical single-letter verification codes.
	AVSResult string
	CVVResult string

	// HTMLAnswer is the 3-D Secure challenge fragment, when present.
	HTMLAnswer string

	// Test indicates the gateway is pointed at the processor's test platform.
	Test bool
}

// TransactionID returns the processor transaction id from the reply.
func (r *GatewayResult) TransactionID() string {
	return r.Params["PAYID"]
}

// PaymentGateway is the port for the DirectLink payment processor.
// Implementations are stateless per call and safe for concurrent use as long
// as the underlying HTTP client is.
type PaymentGateway interface {
	// Authorize places a reservation on the cardholder's account without
	// settling funds.
	Authorize(ctx context.Context, amount domain.Money, source domain.PaymentSource, opts *domain.TransactionOptions) (*GatewayResult, error)

	// Purchase authorizes and settles in a single exchange.
	Purchase(ctx context.Context, amount domain.Money, source domain.PaymentSource, opts *domain.TransactionOptions) (*GatewayResult, error)

	// Capture settles a previously authorized transaction.
	Capture(ctx context.Context, amount domain.Money, authorization domain.Reference, opts *domain.TransactionOptions) (*GatewayResult, error)

	// Void cancels a previously authorized transaction.
	Void(ctx context.Context, authorization domain.Reference, opts *domain.TransactionOptions) (*GatewayResult, error)

	// Credit refunds a prior transaction when target is a transaction
	// reference, or pushes funds to fresh card data otherwise.
	//
	// Deprecated: for referenced credits call Refund directly. The dispatch
	// remains for callers that still pass references here.
	Credit(ctx context.Context, amount domain.Money, target domain.CreditTarget, opts *domain.TransactionOptions) (*GatewayResult, error)

	// Refund performs a referenced credit against a settled transaction.
	Refund(ctx context.Context, amount domain.Money, reference domain.Reference, opts *domain.TransactionOptions) (*GatewayResult, error)
}
