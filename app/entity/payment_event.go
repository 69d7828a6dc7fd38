package entity

import "time"

const (
	PaymentEventSourceAPI        = "api"
	PaymentEventSourceCallback   = "callback"
	PaymentEventSourceReconcile  = "reconcile"
	PaymentEventSourceSettlement = "settlement"
)

type PaymentEvent struct {
	ID uint64

	PaymentID string

	EventType string
	Source    string

	OldStatus *PaymentStatus
	NewStatus PaymentStatus

	PayloadJSON *string

	CreatedAt time.Time
}
