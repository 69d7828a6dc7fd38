package repository

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"time"

	"github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
)

const paymentColumns = `
	id, token, status, amount, currency, message,
	payer_alias, payee_alias, callback_url, callback_identifier,
	error_code, error_message,
	date_created, date_updated, date_paid
`

type PaymentFilter struct {
	HasStatus bool
	Status    entity.PaymentStatus
	Limit     int32
	Offset    int32
}

// PaymentMutator edits a payment inside Update. Returning an error aborts the
// update and leaves the stored record as it was.
type PaymentMutator func(payment *entity.Payment) error

type PaymentRepository struct {
	db  DB
	now func() time.Time
}

func NewPaymentRepository(db DB) *PaymentRepository {
	return &PaymentRepository{db: db, now: time.Now}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.Token,
		string(payment.Status),
		payment.Amount,
		payment.Currency,
		payment.Message,
		nullableStringValue(payment.PayerAlias),
		payment.PayeeAlias,
		payment.CallbackURL,
		payment.CallbackIdentifier,
		nullableStringValue(payment.ErrorCode),
		nullableStringValue(payment.ErrorMessage),
		payment.DateCreated,
		payment.DateUpdated,
		nullableTimeValue(payment.DatePaid),
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}

	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, id), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

// Update locks the row for the duration of fn, so concurrent updates of the
// same id are serialized by the database.
func (r *PaymentRepository) Update(ctx context.Context, id string, fn PaymentMutator) (*entity.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ? FOR UPDATE`
	payment := &entity.Payment{}
	if err := scanPayment(tx.QueryRowContext(ctx, query, id), payment); err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	} else if err != nil {
		return nil, err
	}

	if err := fn(payment); err != nil {
		return nil, err
	}
	payment.ID = id
	stampUpdated(payment, r.now())

	update := `
		UPDATE payments SET
			token = ?,
			status = ?,
			payer_alias = ?,
			error_code = ?,
			error_message = ?,
			date_updated = ?,
			date_paid = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, update,
		payment.Token,
		string(payment.Status),
		nullableStringValue(payment.PayerAlias),
		nullableStringValue(payment.ErrorCode),
		nullableStringValue(payment.ErrorMessage),
		payment.DateUpdated,
		nullableTimeValue(payment.DatePaid),
		id,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	return payment, nil
}

// ListByStatus streams payments in the given status. Ordering is unspecified.
func (r *PaymentRepository) ListByStatus(ctx context.Context, status entity.PaymentStatus) iter.Seq2[*entity.Payment, error] {
	return func(yield func(*entity.Payment, error) bool) {
		query := `SELECT ` + paymentColumns + ` FROM payments WHERE status = ?`
		rows, err := r.db.QueryContext(ctx, query, string(status))
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			item, err := scanPaymentFromRows(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// ListForReconcile returns up to limit CREATED payments last updated at or
// before the cutoff, least recently updated first.
func (r *PaymentRepository) ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ?
		  AND date_updated <= ?
		ORDER BY date_updated ASC, id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, string(entity.PaymentStatusCreated), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item, err := scanPaymentFromRows(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *PaymentRepository) FindOldest(ctx context.Context, status entity.PaymentStatus) (*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ?
		ORDER BY COALESCE(date_paid, date_updated) ASC, id ASC
		LIMIT 1
	`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, string(status)), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

func (r *PaymentRepository) List(ctx context.Context, filter PaymentFilter) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments`
	args := make([]interface{}, 0, 3)

	if filter.HasStatus {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}

	query += " ORDER BY date_created DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item, err := scanPaymentFromRows(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var status string
	var payerAlias sql.NullString
	var errorCode sql.NullString
	var errorMessage sql.NullString
	var datePaid sql.NullTime

	err := scan.Scan(
		&payment.ID,
		&payment.Token,
		&status,
		&payment.Amount,
		&payment.Currency,
		&payment.Message,
		&payerAlias,
		&payment.PayeeAlias,
		&payment.CallbackURL,
		&payment.CallbackIdentifier,
		&errorCode,
		&errorMessage,
		&payment.DateCreated,
		&payment.DateUpdated,
		&datePaid,
	)
	if err != nil {
		return err
	}

	payment.Status = entity.PaymentStatus(status)
	payment.PayerAlias = stringPtrFromNull(payerAlias)
	payment.ErrorCode = stringPtrFromNull(errorCode)
	payment.ErrorMessage = stringPtrFromNull(errorMessage)
	payment.DateCreated = payment.DateCreated.UTC()
	payment.DateUpdated = payment.DateUpdated.UTC()
	payment.DatePaid = timePtrFromNull(datePaid)

	return nil
}

func scanPaymentFromRows(rows *sql.Rows) (*entity.Payment, error) {
	item := &entity.Payment{}
	if err := scanPayment(rows, item); err != nil {
		return nil, err
	}
	return item, nil
}
