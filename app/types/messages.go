package types

import "github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"

type CreatePaymentRequest struct {
	Message string `json:"message"`
}

func (r *CreatePaymentRequest) GetMessage() string { return r.Message }

// CallbackRequest is the provider webhook body. Payload keeps the raw
// document for the callback audit trail; CallbackIdentifier comes from the
// request header, not the body.
type CallbackRequest struct {
	ID           string `json:"id"`
	PayerAlias   string `json:"payerAlias"`
	Status       string `json:"status"`
	DatePaid     string `json:"datePaid"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	Payload      string `json:"-"`

	CallbackIdentifier string `json:"-"`
}

func (r *CallbackRequest) GetID() string           { return r.ID }
func (r *CallbackRequest) GetStatus() string       { return r.Status }
func (r *CallbackRequest) GetPayerAlias() string   { return r.PayerAlias }
func (r *CallbackRequest) GetDatePaid() string     { return r.DatePaid }
func (r *CallbackRequest) GetErrorCode() string    { return r.ErrorCode }
func (r *CallbackRequest) GetErrorMessage() string { return r.ErrorMessage }
func (r *CallbackRequest) GetPayload() string      { return r.Payload }

func (r *CallbackRequest) GetCallbackIdentifier() string { return r.CallbackIdentifier }

type GetPaymentRequest struct {
	ID string
}

type CreditPaymentRequest struct {
	ID string
}

type ListPaymentEventsRequest struct {
	ID string
}

type ListPaymentsRequest struct {
	HasStatus bool
	Status    entity.PaymentStatus
	Limit     int32
	Offset    int32
}

func (r *ListPaymentsRequest) GetHasStatus() bool              { return r.HasStatus }
func (r *ListPaymentsRequest) GetStatus() entity.PaymentStatus { return r.Status }
func (r *ListPaymentsRequest) GetLimit() int32                 { return r.Limit }
func (r *ListPaymentsRequest) GetOffset() int32                { return r.Offset }

type Payment struct {
	ID           string `json:"id"`
	Token        string `json:"token"`
	Status       string `json:"status"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Message      string `json:"message,omitempty"`
	PayerAlias   string `json:"payerAlias,omitempty"`
	PayeeAlias   string `json:"payeeAlias,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	DateCreated  string `json:"dateCreated"`
	DateUpdated  string `json:"dateUpdated"`
	DatePaid     string `json:"datePaid,omitempty"`
}

type CreatePaymentResponse struct {
	ID          string `json:"id"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirectUrl"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	DateCreated string `json:"dateCreated"`
}

type PaymentEnvelopeResponse struct {
	Payment *Payment `json:"payment"`
}

type ListPaymentsResponse struct {
	Payments []*Payment `json:"payments"`
}

type PaymentEvent struct {
	ID        uint64 `json:"id"`
	EventType string `json:"eventType"`
	Source    string `json:"source"`
	OldStatus string `json:"oldStatus,omitempty"`
	NewStatus string `json:"newStatus"`
	CreatedAt string `json:"createdAt"`
}

type ListPaymentEventsResponse struct {
	PaymentID string          `json:"paymentId"`
	Events    []*PaymentEvent `json:"events"`
}

type CallbackResponse struct {
	Message   string `json:"message"`
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
	Warning   string `json:"warning,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
