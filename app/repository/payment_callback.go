package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"
)

// PaymentCallbackRepository stores every inbound provider delivery, applied or not.
type PaymentCallbackRepository struct {
	db DBTX
}

func NewPaymentCallbackRepository(db DBTX) *PaymentCallbackRepository {
	return &PaymentCallbackRepository{db: db}
}

func (r *PaymentCallbackRepository) Create(ctx context.Context, callback *entity.PaymentCallback) error {
	id, err := insertReturningID(ctx, r.db, `
		INSERT INTO payment_callbacks (payment_id, declared_status, payload_json, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nullableStringValue(callback.PaymentID),
		nullableStringValue(callback.DeclaredStatus),
		callback.PayloadJSON,
		callback.Status,
		nullableStringValue(callback.Error),
		callback.CreatedAt,
	)
	if err != nil {
		return err
	}
	callback.ID = id
	return nil
}
