package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/lifecycle"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/repository"
)

func (s *PaymentService) GetOldestPaid(ctx context.Context) (*entity.Payment, error) {
	payment, err := s.paymentRepo.FindOldest(ctx, entity.PaymentStatusPaid)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrNoneAvailable
	}
	return payment, nil
}

// CreditOldestPaid moves the longest-waiting PAID payment to CREDITED.
// A payment credited by a concurrent caller between lookup and update is
// reported as ErrNoneAvailable; callers may retry to pick the next one.
func (s *PaymentService) CreditOldestPaid(ctx context.Context) (*entity.Payment, error) {
	oldest, err := s.GetOldestPaid(ctx)
	if err != nil {
		return nil, err
	}

	credited, err := s.credit(ctx, oldest.ID)
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, repository.ErrPaymentNotFound) {
			s.logger.WithField("payment_id", oldest.ID).Debug("Payment settled concurrently")
			return nil, ErrNoneAvailable
		}
		return nil, err
	}

	return credited, nil
}

func (s *PaymentService) CreditPayment(ctx context.Context, id string) (*entity.Payment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrMissingIdentifier
	}

	credited, err := s.credit(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPaymentNotFound):
			return nil, ErrPaymentNotFound
		case errors.Is(err, ErrConcurrencyConflict):
			return nil, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
		default:
			return nil, err
		}
	}

	return credited, nil
}

// credit applies PAID -> CREDITED only if the payment is still PAID when the
// store holds its lock.
func (s *PaymentService) credit(ctx context.Context, id string) (*entity.Payment, error) {
	now := s.now()
	updated, err := s.paymentRepo.Update(ctx, id, func(payment *entity.Payment) error {
		if payment.Status != entity.PaymentStatusPaid {
			return fmt.Errorf("%w: payment is %s, not %s", ErrConcurrencyConflict, payment.Status, entity.PaymentStatusPaid)
		}
		_, err := lifecycle.Apply(payment, lifecycle.Patch{Status: statusPtr(entity.PaymentStatusCredited)}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, &entity.PaymentEvent{
		PaymentID: id,
		EventType: "status_changed",
		Source:    entity.PaymentEventSourceSettlement,
		OldStatus: statusPtr(entity.PaymentStatusPaid),
		NewStatus: entity.PaymentStatusCredited,
		CreatedAt: now,
	})
	s.logger.WithFields(logrus.Fields{
		"payment_id": id,
		"amount":     updated.Amount.StringFixed(2),
		"currency":   updated.Currency,
	}).Info("Payment credited")

	return updated, nil
}
