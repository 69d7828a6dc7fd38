//go:build integration
// +build integration

package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"
	"github.com/vibast-solutions/ms-go-kiosk-payments/migrations"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("MYSQL_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	items, err := migrations.All()
	if err != nil {
		t.Fatalf("load migrations failed: %v", err)
	}
	for _, m := range items {
		for _, stmt := range m.Statements {
			if _, err := db.Exec(stmt); err != nil {
				t.Fatalf("apply %s failed: %v", m.Name, err)
			}
		}
	}
	return db
}

func TestMySQLPaymentRepositoryContract(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.NewString()

	if err := repo.Create(ctx, newTestPayment(id, entity.PaymentStatusCreated, now)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(ctx, newTestPayment(id, entity.PaymentStatusCreated, now)); !errors.Is(err, ErrPaymentAlreadyExists) {
		t.Fatalf("expected ErrPaymentAlreadyExists, got %v", err)
	}

	item, err := repo.FindByID(ctx, id)
	if err != nil || item == nil {
		t.Fatalf("find failed: %v", err)
	}
	if !item.Amount.Equal(newTestPayment(id, entity.PaymentStatusCreated, now).Amount) || item.Currency != "SEK" {
		t.Fatalf("amount/currency not preserved: %s %s", item.Amount, item.Currency)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Update(ctx, id, func(p *entity.Payment) error {
				p.Token += "x"
				return nil
			})
		}()
	}
	wg.Wait()

	item, _ = repo.FindByID(ctx, id)
	if len(item.Token) != len("tok-"+id)+10 {
		t.Fatalf("lost updates: token=%s", item.Token)
	}

	if _, err := repo.Update(ctx, uuid.NewString(), func(*entity.Payment) error { return nil }); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}

	if item.CallbackIdentifier != "cb-"+id {
		t.Fatalf("callback identifier not preserved: %q", item.CallbackIdentifier)
	}

	found := false
	for p, err := range repo.ListByStatus(ctx, entity.PaymentStatusCreated) {
		if err != nil {
			t.Fatalf("list by status failed: %v", err)
		}
		if p.ID == id {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected created payment in ListByStatus")
	}

	early, err := repo.ListForReconcile(ctx, now.Add(-time.Hour), 1000)
	if err != nil {
		t.Fatalf("list for reconcile failed: %v", err)
	}
	for _, p := range early {
		if p.ID == id {
			t.Fatal("expected cutoff to exclude the just updated payment")
		}
	}

	due, err := repo.ListForReconcile(ctx, time.Now().Add(time.Minute), 1<<20)
	if err != nil {
		t.Fatalf("list for reconcile failed: %v", err)
	}
	found = false
	for i, p := range due {
		if i > 0 && p.DateUpdated.Before(due[i-1].DateUpdated) {
			t.Fatal("expected least recently updated first")
		}
		if p.ID == id {
			found = true
		}
	}
	if !found {
		t.Fatal("expected created payment in ListForReconcile")
	}
}

func TestMySQLPaymentEventRepositoryListByPayment(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentEventRepository(db)
	ctx := context.Background()
	id := uuid.NewString()
	created := entity.PaymentStatusCreated
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := &entity.PaymentEvent{PaymentID: id, EventType: "payment_created", Source: entity.PaymentEventSourceAPI, NewStatus: created, CreatedAt: now}
	second := &entity.PaymentEvent{PaymentID: id, EventType: "status_changed", Source: entity.PaymentEventSourceCallback, OldStatus: &created, NewStatus: entity.PaymentStatusPaid, CreatedAt: now}
	for _, event := range []*entity.PaymentEvent{first, second} {
		if err := repo.Create(ctx, event); err != nil {
			t.Fatalf("create event failed: %v", err)
		}
	}
	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("expected increasing ids, got %d and %d", first.ID, second.ID)
	}

	items, err := repo.ListByPayment(ctx, id)
	if err != nil {
		t.Fatalf("list events failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 events, got %d", len(items))
	}
	if items[0].OldStatus != nil || items[1].OldStatus == nil || *items[1].OldStatus != created {
		t.Fatalf("old status not preserved: %+v %+v", items[0], items[1])
	}
	if items[1].NewStatus != entity.PaymentStatusPaid || items[1].PayloadJSON != nil {
		t.Fatalf("unexpected second event: %+v", items[1])
	}
}
