package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrGateway            = errors.New("payment gateway error")
	ErrGatewayUnavailable = fmt.Errorf("%w: unavailable", ErrGateway)
	ErrGatewayRejected    = fmt.Errorf("%w: rejected", ErrGateway)
	ErrGatewayTimeout     = fmt.Errorf("%w: timeout", ErrGateway)
)

type CreateInput struct {
	Amount      decimal.Decimal
	Currency    string
	Message     string
	CallbackURL string

	CallbackIdentifier string
}

type CreateOutput struct {
	ID    string
	Token string
}

// PaymentRequest is the provider's view of a payment request. Its fields
// mirror the callback payload the provider posts to CallbackURL.
type PaymentRequest struct {
	ID           string `json:"id"`
	PayerAlias   string `json:"payerAlias"`
	PayeeAlias   string `json:"payeeAlias"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Message      string `json:"message"`
	Status       string `json:"status"`
	DateCreated  string `json:"dateCreated"`
	DatePaid     string `json:"datePaid"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`

	CallbackIdentifier string `json:"callbackIdentifier,omitempty"`
}

type Gateway interface {
	RequestPayment(ctx context.Context, input *CreateInput) (*CreateOutput, error)
	GetPaymentRequest(ctx context.Context, id string) (*PaymentRequest, error)
}

// GatewayError classifies a failed provider call. errors.Is matches both the
// kind (ErrGatewayRejected, ...) and the underlying cause.
type GatewayError struct {
	Kind       error
	StatusCode int
	Codes      []string
	Err        error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": status=%d", e.StatusCode)
	}
	if len(e.Codes) > 0 {
		fmt.Fprintf(&b, " codes=%s", strings.Join(e.Codes, ","))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *GatewayError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func (r *PaymentRequest) GetID() string           { return r.ID }
func (r *PaymentRequest) GetStatus() string       { return r.Status }
func (r *PaymentRequest) GetPayerAlias() string   { return r.PayerAlias }
func (r *PaymentRequest) GetDatePaid() string     { return r.DatePaid }
func (r *PaymentRequest) GetErrorCode() string    { return r.ErrorCode }
func (r *PaymentRequest) GetErrorMessage() string { return r.ErrorMessage }

func (r *PaymentRequest) GetCallbackIdentifier() string { return r.CallbackIdentifier }

// GetPayload returns the request as the JSON document the provider sent.
func (r *PaymentRequest) GetPayload() string {
	raw, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(raw)
}
