package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"
)

type ReconcileStats struct {
	Checked int
	Changed int
	Failed  int
}

// RunReconcileBatch polls the provider for CREATED payments that have not
// been updated within the stale window and feeds the answers through the
// callback reconciliation path. It recovers payments whose webhook was lost.
// Every polled payment gets a fresh dateUpdated, including failed polls, so
// the next batch moves on to the following stale payments.
func (s *PaymentService) RunReconcileBatch(ctx context.Context) (ReconcileStats, error) {
	var (
		stats ReconcileStats
		errs  []error
	)

	cutoff := s.now().Add(-s.paymentsCfg.ReconcileStaleAfter)
	payments, err := s.paymentRepo.ListForReconcile(ctx, cutoff, s.batchSize())
	if err != nil {
		return stats, err
	}

	for _, payment := range payments {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		stats.Checked++

		remote, err := s.gateway.GetPaymentRequest(ctx, payment.ID)
		if err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("fetch payment %s: %w", payment.ID, err))
			s.deferReconcile(ctx, payment.ID)
			continue
		}

		result, err := s.reconcile(ctx, remote, entity.PaymentEventSourceReconcile)
		if err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("reconcile payment %s: %w", payment.ID, err))
			s.deferReconcile(ctx, payment.ID)
			continue
		}
		if result.Outcome == CallbackOutcomeApplied {
			stats.Changed++
		}
	}

	return stats, errors.Join(errs...)
}

// deferReconcile restamps a still CREATED payment so it rotates to the back
// of the reconcile order.
func (s *PaymentService) deferReconcile(ctx context.Context, id string) {
	_, err := s.paymentRepo.Update(ctx, id, func(payment *entity.Payment) error {
		if payment.Status != entity.PaymentStatusCreated {
			return ErrConcurrencyConflict
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrConcurrencyConflict) {
		s.logger.WithError(err).WithField("payment_id", id).Warn("Failed to defer payment reconcile")
	}
}

// RunSettleBatch credits paid payments oldest first until none remain or
// limit is reached. A limit of zero or less uses the configured batch size.
func (s *PaymentService) RunSettleBatch(ctx context.Context, limit int) ([]*entity.Payment, error) {
	if limit <= 0 {
		limit = int(s.batchSize())
	}

	credited := make([]*entity.Payment, 0)
	for len(credited) < limit {
		if err := ctx.Err(); err != nil {
			return credited, err
		}
		payment, err := s.CreditOldestPaid(ctx)
		if errors.Is(err, ErrNoneAvailable) {
			if _, lookupErr := s.GetOldestPaid(ctx); errors.Is(lookupErr, ErrNoneAvailable) {
				return credited, nil
			}
			continue
		}
		if err != nil {
			return credited, err
		}
		credited = append(credited, payment)
	}

	return credited, nil
}
