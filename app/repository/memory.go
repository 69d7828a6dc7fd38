package repository

import (
	"context"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"
)

// MemoryPaymentRepository implements the payment store contract in process.
// It does not survive restarts and is meant for local runs and tests.
type MemoryPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*entity.Payment
	locks    sync.Map
	now      func() time.Time
}

func NewMemoryPaymentRepository() *MemoryPaymentRepository {
	return &MemoryPaymentRepository{
		payments: make(map[string]*entity.Payment),
		now:      time.Now,
	}
}

// WithClock replaces the clock used to stamp DateUpdated.
func (r *MemoryPaymentRepository) WithClock(now func() time.Time) *MemoryPaymentRepository {
	r.now = now
	return r
}

func (r *MemoryPaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[payment.ID]; ok {
		return ErrPaymentAlreadyExists
	}
	r.payments[payment.ID] = payment.Clone()
	return nil
}

func (r *MemoryPaymentRepository) FindByID(ctx context.Context, id string) (*entity.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.payments[id].Clone(), nil
}

func (r *MemoryPaymentRepository) Update(ctx context.Context, id string, fn PaymentMutator) (*entity.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	current, ok := r.payments[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrPaymentNotFound
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.ID = id
	stampUpdated(working, r.now())

	r.mu.Lock()
	r.payments[id] = working.Clone()
	r.mu.Unlock()

	return working, nil
}

// ListByStatus yields from a snapshot taken on the first iteration, so the
// consumer may call Update while ranging.
func (r *MemoryPaymentRepository) ListByStatus(ctx context.Context, status entity.PaymentStatus) iter.Seq2[*entity.Payment, error] {
	return func(yield func(*entity.Payment, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}
		for _, item := range r.snapshot(func(p *entity.Payment) bool { return p.Status == status }) {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// ListForReconcile scans CREATED payments and keeps those due at before.
func (r *MemoryPaymentRepository) ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	items := make([]*entity.Payment, 0)
	for item, err := range r.ListByStatus(ctx, entity.PaymentStatusCreated) {
		if err != nil {
			return nil, err
		}
		if !item.DateUpdated.After(before) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].DateUpdated.Equal(items[j].DateUpdated) {
			return items[i].ID < items[j].ID
		}
		return items[i].DateUpdated.Before(items[j].DateUpdated)
	})
	if limit > 0 && len(items) > int(limit) {
		items = items[:limit]
	}
	return items, nil
}

func (r *MemoryPaymentRepository) FindOldest(ctx context.Context, status entity.PaymentStatus) (*entity.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var oldest *entity.Payment
	for _, item := range r.payments {
		if item.Status != status {
			continue
		}
		if oldest == nil || settlesBefore(item, oldest) {
			oldest = item
		}
	}
	return oldest.Clone(), nil
}

func (r *MemoryPaymentRepository) List(ctx context.Context, filter PaymentFilter) ([]*entity.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items := r.snapshot(func(p *entity.Payment) bool {
		return !filter.HasStatus || p.Status == filter.Status
	})
	sort.Slice(items, func(i, j int) bool {
		if items[i].DateCreated.Equal(items[j].DateCreated) {
			return items[i].ID > items[j].ID
		}
		return items[i].DateCreated.After(items[j].DateCreated)
	})

	start := int(filter.Offset)
	if start > len(items) {
		return []*entity.Payment{}, nil
	}
	if filter.Limit <= 0 {
		return items[start:], nil
	}
	end := start + int(filter.Limit)
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], nil
}

func (r *MemoryPaymentRepository) snapshot(match func(*entity.Payment) bool) []*entity.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]*entity.Payment, 0, len(r.payments))
	for _, item := range r.payments {
		if match(item) {
			items = append(items, item.Clone())
		}
	}
	return items
}

func (r *MemoryPaymentRepository) lockFor(id string) *sync.Mutex {
	lock, _ := r.locks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func settlesBefore(a, b *entity.Payment) bool {
	at, bt := a.SettlementTime(), b.SettlementTime()
	if at.Equal(bt) {
		return a.ID < b.ID
	}
	return at.Before(bt)
}

type MemoryPaymentEventRepository struct {
	mu     sync.Mutex
	events []*entity.PaymentEvent
}

func NewMemoryPaymentEventRepository() *MemoryPaymentEventRepository {
	return &MemoryPaymentEventRepository{}
}

func (r *MemoryPaymentEventRepository) Create(_ context.Context, event *entity.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uint64(len(r.events) + 1)
	item := *event
	r.events = append(r.events, &item)
	return nil
}

func (r *MemoryPaymentEventRepository) ListByPayment(_ context.Context, paymentID string) ([]*entity.PaymentEvent, error) {
	return r.Events(paymentID), nil
}

// Events is ListByPayment without the context, for tests.
func (r *MemoryPaymentEventRepository) Events(paymentID string) []*entity.PaymentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.PaymentEvent, 0)
	for _, event := range r.events {
		if event.PaymentID == paymentID {
			item := *event
			items = append(items, &item)
		}
	}
	return items
}

type MemoryPaymentCallbackRepository struct {
	mu        sync.Mutex
	callbacks []*entity.PaymentCallback
}

func NewMemoryPaymentCallbackRepository() *MemoryPaymentCallbackRepository {
	return &MemoryPaymentCallbackRepository{}
}

func (r *MemoryPaymentCallbackRepository) Create(_ context.Context, callback *entity.PaymentCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	callback.ID = uint64(len(r.callbacks) + 1)
	item := *callback
	r.callbacks = append(r.callbacks, &item)
	return nil
}

func (r *MemoryPaymentCallbackRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.callbacks)
}
