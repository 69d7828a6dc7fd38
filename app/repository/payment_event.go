package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"
)

// PaymentEventRepository persists the lifecycle audit trail of payments.
type PaymentEventRepository struct {
	db DBTX
}

func NewPaymentEventRepository(db DBTX) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

func (r *PaymentEventRepository) Create(ctx context.Context, event *entity.PaymentEvent) error {
	id, err := insertReturningID(ctx, r.db, `
		INSERT INTO payment_events (payment_id, event_type, source, old_status, new_status, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.PaymentID,
		event.EventType,
		event.Source,
		nullableStatusValue(event.OldStatus),
		string(event.NewStatus),
		nullableStringValue(event.PayloadJSON),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}
	event.ID = id
	return nil
}

// ListByPayment returns the events of one payment in insertion order.
func (r *PaymentEventRepository) ListByPayment(ctx context.Context, paymentID string) ([]*entity.PaymentEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payment_id, event_type, source, old_status, new_status, payload_json, created_at
		FROM payment_events
		WHERE payment_id = ?
		ORDER BY id ASC`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.PaymentEvent, 0)
	for rows.Next() {
		var (
			event     entity.PaymentEvent
			oldStatus sql.NullString
			newStatus string
			payload   sql.NullString
		)
		if err := rows.Scan(
			&event.ID,
			&event.PaymentID,
			&event.EventType,
			&event.Source,
			&oldStatus,
			&newStatus,
			&payload,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		if oldStatus.Valid {
			status := entity.PaymentStatus(oldStatus.String)
			event.OldStatus = &status
		}
		event.NewStatus = entity.PaymentStatus(newStatus)
		event.PayloadJSON = stringPtrFromNull(payload)
		event.CreatedAt = event.CreatedAt.UTC()
		items = append(items, &event)
	}
	return items, rows.Err()
}
