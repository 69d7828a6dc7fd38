package lifecycle

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"
)

var allStatuses = []entity.PaymentStatus{
	entity.PaymentStatusCreated,
	entity.PaymentStatusPaid,
	entity.PaymentStatusDeclined,
	entity.PaymentStatusError,
	entity.PaymentStatusCancelled,
	entity.PaymentStatusCredited,
}

func statusPtr(s entity.PaymentStatus) *entity.PaymentStatus { return &s }
func strPtr(s string) *string                                { return &s }

func newPayment(status entity.PaymentStatus, created time.Time) *entity.Payment {
	p := &entity.Payment{
		ID:          "6B2F4C9E1A0D4E7F8A3B5C6D7E8F9012",
		Status:      status,
		Amount:      decimal.NewFromInt(12),
		Currency:    "SEK",
		DateCreated: created,
		DateUpdated: created,
	}
	if status == entity.PaymentStatusPaid || status == entity.PaymentStatusCredited {
		paid := created.Add(time.Minute)
		p.DatePaid = &paid
	}
	return p
}

func TestCanTransitionTable(t *testing.T) {
	allowed := map[[2]entity.PaymentStatus]bool{
		{entity.PaymentStatusCreated, entity.PaymentStatusPaid}:      true,
		{entity.PaymentStatusCreated, entity.PaymentStatusDeclined}:  true,
		{entity.PaymentStatusCreated, entity.PaymentStatusError}:     true,
		{entity.PaymentStatusCreated, entity.PaymentStatusCancelled}: true,
		{entity.PaymentStatusPaid, entity.PaymentStatusCredited}:     true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := from == to || allowed[[2]entity.PaymentStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus(" paid ")
	if err != nil || got != entity.PaymentStatusPaid {
		t.Fatalf("expected PAID, got %q err=%v", got, err)
	}
	if _, err := ParseStatus("REFUNDED"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestApplyValidTransitionsAreIdempotent(t *testing.T) {
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)
	paidAt := created.Add(30 * time.Second)

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if !CanTransition(from, to) {
				continue
			}
			patch := Patch{
				Status:       statusPtr(to),
				PayerAlias:   strPtr("46712345678"),
				DatePaid:     &paidAt,
				ErrorCode:    strPtr("RF07"),
				ErrorMessage: strPtr("Transaction declined"),
			}

			once := newPayment(from, created)
			if _, err := Apply(once, patch, now); err != nil {
				t.Fatalf("%s -> %s: unexpected error %v", from, to, err)
			}
			twice := once.Clone()
			res, err := Apply(twice, patch, now)
			if err != nil {
				t.Fatalf("%s -> %s replay: unexpected error %v", from, to, err)
			}
			if res.Changed() {
				t.Fatalf("%s -> %s replay must not change status", from, to)
			}
			if !reflect.DeepEqual(once, twice) {
				t.Fatalf("%s -> %s not idempotent:\n%+v\n%+v", from, to, once, twice)
			}
		}
	}
}

func TestApplyInvalidTransitionLeavesRecordUntouched(t *testing.T) {
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if CanTransition(from, to) {
				continue
			}
			p := newPayment(from, created)
			before := p.Clone()
			_, err := Apply(p, Patch{Status: statusPtr(to), PayerAlias: strPtr("46700000000")}, created.Add(time.Hour))
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%s -> %s: expected ErrInvalidTransition, got %v", from, to, err)
			}
			if !reflect.DeepEqual(before, p) {
				t.Fatalf("%s -> %s mutated record", from, to)
			}
		}
	}
}

func TestApplyMetadataOnlyKeepsStatus(t *testing.T) {
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	p := newPayment(entity.PaymentStatusCreated, created)
	paidAt := created.Add(time.Minute)

	res, err := Apply(p, Patch{PayerAlias: strPtr("46712345678"), DatePaid: &paidAt}, created)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Changed() || p.Status != entity.PaymentStatusCreated {
		t.Fatalf("expected CREATED to be kept, got %s", p.Status)
	}
	if p.PayerAlias == nil || *p.PayerAlias != "46712345678" {
		t.Fatalf("expected payer alias merged, got %v", p.PayerAlias)
	}
	if p.DatePaid != nil {
		t.Fatal("datePaid must not be set on a payment that was never paid")
	}
}

func TestApplyAbsentFieldsAreNotCleared(t *testing.T) {
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	p := newPayment(entity.PaymentStatusCreated, created)

	if _, err := Apply(p, Patch{Status: statusPtr(entity.PaymentStatusError), ErrorCode: strPtr("BANKIDCL"), ErrorMessage: strPtr("cancelled in app")}, created); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Apply(p, Patch{Status: statusPtr(entity.PaymentStatusError), ErrorMessage: strPtr("corrected")}, created); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ErrorCode == nil || *p.ErrorCode != "BANKIDCL" {
		t.Fatalf("expected error code preserved, got %v", p.ErrorCode)
	}
	if p.ErrorMessage == nil || *p.ErrorMessage != "corrected" {
		t.Fatalf("expected error message overwritten, got %v", p.ErrorMessage)
	}
}

func TestApplyPaidStampsDatePaidWhenMissing(t *testing.T) {
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	now := created.Add(2 * time.Minute)
	p := newPayment(entity.PaymentStatusCreated, created)

	res, err := Apply(p, Patch{Status: statusPtr(entity.PaymentStatusPaid)}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed() {
		t.Fatal("expected status change")
	}
	if p.DatePaid == nil || !p.DatePaid.Equal(now) {
		t.Fatalf("expected datePaid=%v, got %v", now, p.DatePaid)
	}
	if p.ErrorCode != nil {
		t.Fatal("error fields must stay empty on PAID")
	}
}

func TestApplyRejectsPaidToCreated(t *testing.T) {
	p := newPayment(entity.PaymentStatusPaid, time.Now().UTC())
	if _, err := Apply(p, Patch{Status: statusPtr(entity.PaymentStatusCreated)}, time.Now().UTC()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if p.Status != entity.PaymentStatusPaid {
		t.Fatalf("expected PAID, got %s", p.Status)
	}
}
