package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ReferenceDelimiter separates the processor transaction id from the
// operation code inside an authorization reference ("3014726;SAL").
const ReferenceDelimiter = ";"

// Money is an amount in the minor unit of its currency (cents for EUR/USD,
// whole yen for JPY).
type Money struct {
	Units    int64
	Currency string
}

// currencyExponents lists ISO 4217 currencies whose minor unit is not the
// usual two decimal places.
var currencyExponents = map[string]int32{
	// Zero-decimal currencies
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0,
	"KMF": 0, "KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0,
	"VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	// Three-decimal currencies
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// currencyExponent returns how many decimal places the currency's minor unit
// carries. Unknown or empty currencies fall back to two.
func currencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// ParseAmount converts a decimal amount string ("12.34") into the minor units
// of its currency ("1234" for EUR, "12" stays "12" for JPY). The processor
// only accepts integral minor-unit amounts, so anything with more precision
// than the currency carries is rejected.
func ParseAmount(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	units := d.Mul(decimal.New(1, currencyExponent(currency)))
	if !units.IsInteger() {
		return Money{}, fmt.Errorf("amount %q has sub-unit precision for %s", amount, currency)
	}
	return Money{Units: units.IntPart(), Currency: currency}, nil
}

// MinorUnits returns the wire form of the amount ("1000" for EUR 10.00).
func (m Money) MinorUnits() string {
	return fmt.Sprintf("%d", m.Units)
}

// CreditCard is raw card data supplied by the cardholder.
type CreditCard struct {
	Name         string
	Number       string
	Month        int // 1-12
	Year         int // four digits
	Verification string
}

// ExpiryDate returns the card expiry in the processor's MMYY format.
func (c CreditCard) ExpiryDate() string {
	year := fmt.Sprintf("%04d", c.Year)
	return fmt.Sprintf("%02d%s", c.Month, year[len(year)-2:])
}

// Alias is an opaque token referencing a card previously stored with the
// processor, usable in place of raw card data.
type Alias string

// Reference is an authorization reference returned by a prior transaction,
// in the form "PAYID;OPERATION".
type Reference string

// TransactionID returns the processor transaction id part of the reference.
// References without a delimiter yield the string as-is; the processor
// rejects anything it does not recognize.
func (r Reference) TransactionID() string {
	id, _, _ := strings.Cut(string(r), ReferenceDelimiter)
	return id
}

// IsTransaction reports whether the reference points at a prior transaction,
// distinguishing referenced credits from alias-based ones.
func (r Reference) IsTransaction() bool {
	return strings.Contains(string(r), ReferenceDelimiter)
}

// PaymentSource is the payment instrument for a new transaction: either raw
// card data or a stored alias.
type PaymentSource interface {
	paymentSource()
}

func (CreditCard) paymentSource() {}
func (Alias) paymentSource()      {}

// CreditTarget is the target of a credit: a prior transaction reference
// (referenced credit) or a payment source (non-referenced credit).
type CreditTarget interface {
	creditTarget()
}

func (Reference) creditTarget()  {}
func (CreditCard) creditTarget() {}
func (Alias) creditTarget()      {}

// Address is the cardholder billing address.
type Address struct {
	Address1 string
	Zip      string
	City     string
	Country  string
	Phone    string
}

// ThreeDSWindow selects how the 3-D Secure identification page is displayed.
type ThreeDSWindow string

const (
	ThreeDSMainWindow ThreeDSWindow = "main_window"
	ThreeDSPopUp      ThreeDSWindow = "pop_up"
	ThreeDSPopIX      ThreeDSWindow = "pop_ix"
)

// TransactionOptions carries the optional per-transaction parameters. Zero
// values are omitted from the outgoing request.
type TransactionOptions struct {
	OrderID     string
	Description string
	Currency    string
	Email       string
	IP          string

	BillingAddress *Address

	// Store asks the processor to save the card under this alias.
	Store string

	// ThreeDSecure enables the 3-D Secure identification flow.
	ThreeDSecure       bool
	Window3DS          ThreeDSWindow
	HTTPAccept         string
	HTTPUserAgent      string
	AcceptURL          string
	DeclineURL         string
	ExceptionURL       string
	ParamPlus          string
	ComPlus            string
	Language           string
	TransactionProfile string
}
