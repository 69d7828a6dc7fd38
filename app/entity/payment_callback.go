package entity

import "time"

const (
	PaymentCallbackProcessed int32 = 10
	PaymentCallbackIgnored   int32 = 15
	PaymentCallbackRejected  int32 = 20
)

// PaymentCallback is the raw audit row for one inbound provider delivery.
type PaymentCallback struct {
	ID uint64

	PaymentID *string

	DeclaredStatus *string
	PayloadJSON    string
	Status         int32
	Error          *string

	CreatedAt time.Time
}
