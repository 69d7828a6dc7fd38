// Package lifecycle holds the payment status machine and the merge rules for
// provider callback data. It has no I/O; callers persist the mutated record.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown payment status")
)

var transitions = map[entity.PaymentStatus][]entity.PaymentStatus{
	entity.PaymentStatusCreated: {
		entity.PaymentStatusPaid,
		entity.PaymentStatusDeclined,
		entity.PaymentStatusError,
		entity.PaymentStatusCancelled,
	},
	entity.PaymentStatusPaid: {
		entity.PaymentStatusCredited,
	},
}

// Patch carries optional callback fields. Nil fields are left untouched.
type Patch struct {
	Status       *entity.PaymentStatus
	PayerAlias   *string
	DatePaid     *time.Time
	ErrorCode    *string
	ErrorMessage *string
}

type Result struct {
	OldStatus entity.PaymentStatus
	NewStatus entity.PaymentStatus
}

func (r Result) Changed() bool {
	return r.OldStatus != r.NewStatus
}

func ParseStatus(raw string) (entity.PaymentStatus, error) {
	status := entity.PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !IsValidStatus(status) {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return status, nil
}

func IsValidStatus(status entity.PaymentStatus) bool {
	switch status {
	case entity.PaymentStatusCreated,
		entity.PaymentStatusPaid,
		entity.PaymentStatusDeclined,
		entity.PaymentStatusError,
		entity.PaymentStatusCancelled,
		entity.PaymentStatusCredited:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is allowed. Resubmitting the
// current status is always allowed so replayed callbacks stay idempotent.
func CanTransition(from, to entity.PaymentStatus) bool {
	if !IsValidStatus(from) || !IsValidStatus(to) {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Apply merges patch into payment. On error the payment is not modified.
// DateUpdated is owned by the store and is never touched here.
func Apply(payment *entity.Payment, patch Patch, now time.Time) (Result, error) {
	result := Result{OldStatus: payment.Status, NewStatus: payment.Status}

	if patch.Status != nil {
		declared := *patch.Status
		if !IsValidStatus(declared) {
			return result, fmt.Errorf("%w: %q", ErrUnknownStatus, declared)
		}
		if !CanTransition(payment.Status, declared) {
			return result, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, payment.Status, declared)
		}
		result.NewStatus = declared
	}

	payment.Status = result.NewStatus
	if patch.PayerAlias != nil {
		alias := *patch.PayerAlias
		payment.PayerAlias = &alias
	}

	switch payment.Status {
	case entity.PaymentStatusPaid:
		if patch.DatePaid != nil {
			paidAt := patch.DatePaid.UTC()
			payment.DatePaid = &paidAt
		} else if payment.DatePaid == nil {
			paidAt := now.UTC()
			payment.DatePaid = &paidAt
		}
	case entity.PaymentStatusError, entity.PaymentStatusDeclined:
		if patch.ErrorCode != nil {
			code := *patch.ErrorCode
			payment.ErrorCode = &code
		}
		if patch.ErrorMessage != nil {
			msg := *patch.ErrorMessage
			payment.ErrorMessage = &msg
		}
	}

	return result, nil
}
