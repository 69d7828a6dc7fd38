package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/lifecycle"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/repository"
)

const (
	CallbackOutcomeApplied   = "applied"
	CallbackOutcomeUnchanged = "unchanged"
	CallbackOutcomeIgnored   = "ignored"
)

// Column widths of the payment fields a callback may set.
const (
	maxPayerAliasLength   = 64
	maxErrorCodeLength    = 64
	maxErrorMessageLength = 1024
)

var datePaidLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
}

type callbackRequest interface {
	GetID() string
	GetStatus() string
	GetPayerAlias() string
	GetDatePaid() string
	GetErrorCode() string
	GetErrorMessage() string
	GetPayload() string
	GetCallbackIdentifier() string
}

type CallbackResult struct {
	Payment *entity.Payment
	Outcome string
	// Warning is set when the declared status was not applied.
	Warning error
}

// HandleCallback reconciles a provider webhook into the stored payment.
// Each authentic delivery for a known payment results in exactly one store
// mutation. A delivery whose callback identifier does not match the one
// issued at create time is rejected before anything is written.
func (s *PaymentService) HandleCallback(ctx context.Context, req callbackRequest) (*CallbackResult, error) {
	return s.reconcile(ctx, req, entity.PaymentEventSourceCallback)
}

func (s *PaymentService) reconcile(ctx context.Context, req callbackRequest, source string) (*CallbackResult, error) {
	audit := source == entity.PaymentEventSourceCallback
	paymentID := strings.TrimSpace(req.GetID())
	declared := strings.TrimSpace(req.GetStatus())
	payload := req.GetPayload()

	if paymentID == "" {
		if audit {
			s.recordCallback(ctx, "", declared, payload, entity.PaymentCallbackRejected, ErrMissingIdentifier)
		}
		return nil, ErrMissingIdentifier
	}

	patch, err := buildPatch(req)
	if err != nil {
		if audit {
			s.recordCallback(ctx, paymentID, declared, payload, entity.PaymentCallbackRejected, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var (
		result        lifecycle.Result
		transitionErr error
	)
	now := s.now()
	updated, err := s.paymentRepo.Update(ctx, paymentID, func(payment *entity.Payment) error {
		result = lifecycle.Result{OldStatus: payment.Status, NewStatus: payment.Status}
		transitionErr = nil

		if audit && !callbackIdentifierMatches(payment.CallbackIdentifier, req.GetCallbackIdentifier()) {
			return ErrCallbackRejected
		}

		if patch.Status != nil && *patch.Status == entity.PaymentStatusCredited {
			transitionErr = fmt.Errorf("%w: %s cannot be declared by the provider", lifecycle.ErrInvalidTransition, entity.PaymentStatusCredited)
			return nil
		}

		applied, err := lifecycle.Apply(payment, patch, now)
		if errors.Is(err, lifecycle.ErrInvalidTransition) {
			// The record keeps its status; the store still stamps dateUpdated.
			transitionErr = err
			return nil
		}
		if err != nil {
			return err
		}
		result = applied
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			s.logger.WithFields(logrus.Fields{
				"payment_id":      paymentID,
				"declared_status": declared,
				"source":          source,
			}).Warn("Callback for unknown payment")
			if audit {
				s.recordCallback(ctx, paymentID, declared, payload, entity.PaymentCallbackRejected, ErrPaymentNotFound)
			}
			return nil, ErrPaymentNotFound
		}
		if errors.Is(err, ErrCallbackRejected) {
			s.logger.WithFields(logrus.Fields{
				"payment_id":      paymentID,
				"declared_status": declared,
			}).Warn("Rejecting callback with mismatched callback identifier")
			s.recordCallback(ctx, paymentID, declared, payload, entity.PaymentCallbackRejected, errors.New("callback identifier mismatch"))
			return nil, ErrCallbackRejected
		}
		return nil, err
	}

	if transitionErr != nil {
		s.logger.WithFields(logrus.Fields{
			"payment_id":      paymentID,
			"current_status":  updated.Status,
			"declared_status": declared,
			"source":          source,
		}).WithError(transitionErr).Warn("Ignoring invalid payment status transition")
		if audit {
			s.recordCallback(ctx, paymentID, declared, payload, entity.PaymentCallbackIgnored, transitionErr)
		}
		return &CallbackResult{Payment: updated, Outcome: CallbackOutcomeIgnored, Warning: transitionErr}, nil
	}

	outcome := CallbackOutcomeUnchanged
	if result.Changed() {
		outcome = CallbackOutcomeApplied
		event := &entity.PaymentEvent{
			PaymentID: paymentID,
			EventType: "status_changed",
			Source:    source,
			OldStatus: statusPtr(result.OldStatus),
			NewStatus: result.NewStatus,
			CreatedAt: now,
		}
		if payload != "" {
			event.PayloadJSON = &payload
		}
		s.recordEvent(ctx, event)
	}
	if audit {
		s.recordCallback(ctx, paymentID, declared, payload, entity.PaymentCallbackProcessed, nil)
	}

	return &CallbackResult{Payment: updated, Outcome: outcome}, nil
}

func buildPatch(req callbackRequest) (lifecycle.Patch, error) {
	var patch lifecycle.Patch

	if raw := strings.TrimSpace(req.GetStatus()); raw != "" {
		status, err := lifecycle.ParseStatus(raw)
		if err != nil {
			return patch, err
		}
		patch.Status = &status
	}
	if raw := strings.TrimSpace(req.GetDatePaid()); raw != "" {
		paidAt, err := parseDatePaid(raw)
		if err != nil {
			return patch, err
		}
		patch.DatePaid = &paidAt
	}
	patch.PayerAlias = optionalString(truncate(strings.TrimSpace(req.GetPayerAlias()), maxPayerAliasLength))
	patch.ErrorCode = optionalString(truncate(strings.TrimSpace(req.GetErrorCode()), maxErrorCodeLength))
	patch.ErrorMessage = optionalString(truncate(strings.TrimSpace(req.GetErrorMessage()), maxErrorMessageLength))

	return patch, nil
}

// callbackIdentifierMatches compares in constant time. A payment without an
// issued identifier accepts no callbacks.
func callbackIdentifierMatches(expected, got string) bool {
	expected = strings.TrimSpace(expected)
	got = strings.TrimSpace(got)
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func parseDatePaid(raw string) (time.Time, error) {
	for _, layout := range datePaidLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("datePaid %q is not a valid timestamp", raw)
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func (s *PaymentService) recordCallback(ctx context.Context, paymentID, declared, payload string, status int32, reason error) {
	callback := &entity.PaymentCallback{
		PaymentID:      optionalString(paymentID),
		DeclaredStatus: optionalString(truncate(declared, 16)),
		PayloadJSON:    payload,
		Status:         status,
		CreatedAt:      s.now(),
	}
	if reason != nil {
		msg := truncate(reason.Error(), 1024)
		callback.Error = &msg
	}

	if err := s.callbackRepo.Create(ctx, callback); err != nil {
		s.logger.WithError(err).WithField("payment_id", paymentID).Warn("Failed to record payment callback")
	}
}
