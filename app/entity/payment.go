package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "CREATED"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusDeclined  PaymentStatus = "DECLINED"
	PaymentStatusError     PaymentStatus = "ERROR"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusCredited  PaymentStatus = "CREDITED"
)

// Payment is keyed by the provider instruction id, so no local id mapping exists.
type Payment struct {
	ID    string
	Token string

	Status PaymentStatus

	Amount   decimal.Decimal
	Currency string
	Message  string

	PayerAlias  *string
	PayeeAlias  string
	CallbackURL string

	// CallbackIdentifier is sent to the provider on create and echoed back
	// on every callback for this payment. It is never exposed to the payer.
	CallbackIdentifier string

	ErrorCode    *string
	ErrorMessage *string

	DateCreated time.Time
	DateUpdated time.Time
	DatePaid    *time.Time
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	c.PayerAlias = cloneString(p.PayerAlias)
	c.ErrorCode = cloneString(p.ErrorCode)
	c.ErrorMessage = cloneString(p.ErrorMessage)
	if p.DatePaid != nil {
		t := *p.DatePaid
		c.DatePaid = &t
	}
	return &c
}

// SettlementTime orders PAID payments for settlement.
func (p *Payment) SettlementTime() time.Time {
	if p.DatePaid != nil {
		return *p.DatePaid
	}
	return p.DateUpdated
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
