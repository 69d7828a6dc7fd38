package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/lifecycle"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/provider"
)

func TestHandleCallbackReplayedPaidIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	created := f.create(t)
	paidAt := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	callback := &provider.PaymentRequest{
		ID:         created.ID,
		Status:     "PAID",
		PayerAlias: "46701234567",
		DatePaid:   paidAt.Format(time.RFC3339),

		CallbackIdentifier: created.CallbackIdentifier,
	}

	f.clock.Advance(time.Minute)
	first, err := f.svc.HandleCallback(context.Background(), callback)
	if err != nil {
		t.Fatalf("first callback failed: %v", err)
	}
	if first.Outcome != CallbackOutcomeApplied {
		t.Fatalf("expected applied outcome, got %s", first.Outcome)
	}

	f.clock.Advance(time.Minute)
	second, err := f.svc.HandleCallback(context.Background(), callback)
	if err != nil {
		t.Fatalf("replayed callback failed: %v", err)
	}
	if second.Outcome != CallbackOutcomeUnchanged {
		t.Fatalf("expected unchanged outcome, got %s", second.Outcome)
	}

	stored, _ := f.repo.FindByID(context.Background(), created.ID)
	if stored.Status != entity.PaymentStatusPaid {
		t.Fatalf("expected PAID, got %s", stored.Status)
	}
	if stored.DatePaid == nil || !stored.DatePaid.Equal(paidAt) {
		t.Fatalf("expected datePaid %s, got %v", paidAt, stored.DatePaid)
	}
	if !stored.DateUpdated.Equal(f.clock.Now()) {
		t.Fatalf("expected dateUpdated to reflect the last callback, got %s", stored.DateUpdated)
	}
	if stored.PayerAlias == nil || *stored.PayerAlias != "46701234567" {
		t.Fatalf("expected payer alias to be stored, got %v", stored.PayerAlias)
	}

	transitions := 0
	for _, event := range f.events.Events(created.ID) {
		if event.EventType == "status_changed" {
			transitions++
		}
	}
	if transitions != 1 {
		t.Fatalf("expected one status_changed event, got %d", transitions)
	}
	if f.callbacks.Count() != 2 {
		t.Fatalf("expected two callback audit rows, got %d", f.callbacks.Count())
	}
}

func TestHandleCallbackInvalidTransitionKeepsStatus(t *testing.T) {
	cases := []struct {
		name     string
		from     entity.PaymentStatus
		declared string
	}{
		{name: "paid to created", from: entity.PaymentStatusPaid, declared: "CREATED"},
		{name: "paid to declined", from: entity.PaymentStatusPaid, declared: "DECLINED"},
		{name: "declined to paid", from: entity.PaymentStatusDeclined, declared: "PAID"},
		{name: "error to paid", from: entity.PaymentStatusError, declared: "PAID"},
		{name: "cancelled to paid", from: entity.PaymentStatusCancelled, declared: "PAID"},
		{name: "credited to paid", from: entity.PaymentStatusCredited, declared: "PAID"},
		{name: "created to credited", from: entity.PaymentStatusCreated, declared: "CREDITED"},
		{name: "paid to credited", from: entity.PaymentStatusPaid, declared: "CREDITED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newServiceFixture(t)
			now := f.clock.Now()
			if err := f.repo.Create(context.Background(), &entity.Payment{
				ID:          "P1",
				Status:      tc.from,
				Currency:    "SEK",
				DateCreated: now,
				DateUpdated: now,

				CallbackIdentifier: "cb-P1",
			}); err != nil {
				t.Fatalf("seed payment failed: %v", err)
			}

			f.clock.Advance(time.Minute)
			result, err := f.svc.HandleCallback(context.Background(), &provider.PaymentRequest{
				ID:           "P1",
				Status:       tc.declared,
				ErrorMessage: "late",

				CallbackIdentifier: "cb-P1",
			})
			if err != nil {
				t.Fatalf("expected callback to be acknowledged, got %v", err)
			}
			if result.Outcome != CallbackOutcomeIgnored || !errors.Is(result.Warning, lifecycle.ErrInvalidTransition) {
				t.Fatalf("expected ignored outcome with transition warning, got %+v", result)
			}

			stored, _ := f.repo.FindByID(context.Background(), "P1")
			if stored.Status != tc.from {
				t.Fatalf("expected status %s to be kept, got %s", tc.from, stored.Status)
			}
			if stored.ErrorMessage != nil {
				t.Fatalf("expected no field merge on invalid transition, got %q", *stored.ErrorMessage)
			}
			if !stored.DateUpdated.Equal(f.clock.Now()) {
				t.Fatalf("expected dateUpdated to be stamped, got %s", stored.DateUpdated)
			}
			if len(f.events.Events("P1")) != 0 {
				t.Fatalf("expected no transition event")
			}
		})
	}
}

func TestHandleCallbackMissingID(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.HandleCallback(context.Background(), &provider.PaymentRequest{Status: "PAID"})
	if !errors.Is(err, ErrMissingIdentifier) {
		t.Fatalf("expected ErrMissingIdentifier, got %v", err)
	}
	if f.callbacks.Count() != 1 {
		t.Fatalf("expected rejected callback to be audited")
	}
}

func TestHandleCallbackUnknownPayment(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.HandleCallback(context.Background(), &provider.PaymentRequest{ID: "nope", Status: "PAID"})
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestHandleCallbackRejectsUnknownStatus(t *testing.T) {
	f := newServiceFixture(t)
	created := f.create(t)

	_, err := f.svc.HandleCallback(context.Background(), &provider.PaymentRequest{ID: created.ID, Status: "SETTLED", CallbackIdentifier: created.CallbackIdentifier})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	stored, _ := f.repo.FindByID(context.Background(), created.ID)
	if stored.Status != entity.PaymentStatusCreated {
		t.Fatalf("expected CREATED to be kept, got %s", stored.Status)
	}
}

func TestHandleCallbackRejectsBadDatePaid(t *testing.T) {
	f := newServiceFixture(t)
	created := f.create(t)

	_, err := f.svc.HandleCallback(context.Background(), &provider.PaymentRequest{ID: created.ID, Status: "PAID", DatePaid: "yesterday", CallbackIdentifier: created.CallbackIdentifier})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestHandleCallbackMetadataOnly(t *testing.T) {
	f := newServiceFixture(t)
	created := f.create(t)

	result, err := f.svc.HandleCallback(context.Background(), &provider.PaymentRequest{ID: created.ID, PayerAlias: "46700000000", CallbackIdentifier: created.CallbackIdentifier})
	if err != nil {
		t.Fatalf("metadata callback failed: %v", err)
	}
	if result.Outcome != CallbackOutcomeUnchanged {
		t.Fatalf("expected unchanged outcome, got %s", result.Outcome)
	}
	if result.Payment.Status != entity.PaymentStatusCreated {
		t.Fatalf("expected CREATED, got %s", result.Payment.Status)
	}
	if result.Payment.PayerAlias == nil || *result.Payment.PayerAlias != "46700000000" {
		t.Fatalf("expected payer alias merged, got %v", result.Payment.PayerAlias)
	}
}

func TestHandleCallbackErrorMergesErrorFields(t *testing.T) {
	f := newServiceFixture(t)
	created := f.create(t)

	result, err := f.svc.HandleCallback(context.Background(), &provider.PaymentRequest{
		ID:           created.ID,
		Status:       "ERROR",
		ErrorCode:    "TM01",
		ErrorMessage: "Swish timed out before the payment was started",

		CallbackIdentifier: created.CallbackIdentifier,
	})
	if err != nil {
		t.Fatalf("error callback failed: %v", err)
	}
	if result.Payment.Status != entity.PaymentStatusError {
		t.Fatalf("expected ERROR, got %s", result.Payment.Status)
	}
	if result.Payment.ErrorCode == nil || *result.Payment.ErrorCode != "TM01" {
		t.Fatalf("expected error code merged, got %v", result.Payment.ErrorCode)
	}
}

func TestHandleCallbackRejectsMismatchedCallbackIdentifier(t *testing.T) {
	cases := []struct {
		name       string
		identifier string
	}{
		{name: "missing header", identifier: ""},
		{name: "guessed value", identifier: "00000000000000000000000000000000"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newServiceFixture(t)
			created := f.create(t)
			f.clock.Advance(time.Minute)

			_, err := f.svc.HandleCallback(context.Background(), &provider.PaymentRequest{
				ID:       created.ID,
				Status:   "PAID",
				DatePaid: f.clock.Now().Format(time.RFC3339),

				CallbackIdentifier: tc.identifier,
			})
			if !errors.Is(err, ErrCallbackRejected) {
				t.Fatalf("expected ErrCallbackRejected, got %v", err)
			}

			stored, _ := f.repo.FindByID(context.Background(), created.ID)
			if stored.Status != entity.PaymentStatusCreated {
				t.Fatalf("expected CREATED to be kept, got %s", stored.Status)
			}
			if !stored.DateUpdated.Equal(created.DateUpdated) {
				t.Fatalf("expected rejected callback to leave the record untouched")
			}
			if _, err := f.svc.GetOldestPaid(context.Background()); !errors.Is(err, ErrNoneAvailable) {
				t.Fatalf("expected nothing to settle, got %v", err)
			}
			if f.callbacks.Count() != 1 {
				t.Fatalf("expected rejected callback to be audited, got %d rows", f.callbacks.Count())
			}
		})
	}
}

func TestHandleCallbackRejectsPaymentWithoutIdentifier(t *testing.T) {
	f := newServiceFixture(t)
	now := f.clock.Now()
	if err := f.repo.Create(context.Background(), &entity.Payment{
		ID:          "LEGACY",
		Status:      entity.PaymentStatusCreated,
		Currency:    "SEK",
		DateCreated: now,
		DateUpdated: now,
	}); err != nil {
		t.Fatalf("seed payment failed: %v", err)
	}

	_, err := f.svc.HandleCallback(context.Background(), &provider.PaymentRequest{ID: "LEGACY", Status: "PAID"})
	if !errors.Is(err, ErrCallbackRejected) {
		t.Fatalf("expected ErrCallbackRejected, got %v", err)
	}
}

func TestHandleCallbackTruncatesOversizedFields(t *testing.T) {
	f := newServiceFixture(t)
	created := f.create(t)

	result, err := f.svc.HandleCallback(context.Background(), &provider.PaymentRequest{
		ID:           created.ID,
		Status:       "ERROR",
		PayerAlias:   strings.Repeat("4", 100),
		ErrorCode:    strings.Repeat("C", 100),
		ErrorMessage: strings.Repeat("é", 2000),

		CallbackIdentifier: created.CallbackIdentifier,
	})
	if err != nil {
		t.Fatalf("error callback failed: %v", err)
	}
	if got := utf8.RuneCountInString(*result.Payment.PayerAlias); got != maxPayerAliasLength {
		t.Fatalf("expected payer alias cut to %d, got %d", maxPayerAliasLength, got)
	}
	if got := utf8.RuneCountInString(*result.Payment.ErrorCode); got != maxErrorCodeLength {
		t.Fatalf("expected error code cut to %d, got %d", maxErrorCodeLength, got)
	}
	if got := utf8.RuneCountInString(*result.Payment.ErrorMessage); got != maxErrorMessageLength {
		t.Fatalf("expected error message cut to %d, got %d", maxErrorMessageLength, got)
	}
}

func TestParseDatePaidLayouts(t *testing.T) {
	want := time.Date(2015, 2, 19, 21, 1, 53, 0, time.UTC)
	for _, raw := range []string{
		"2015-02-19T22:01:53+01:00",
		"2015-02-19T22:01:53.000+0100",
		"2015-02-19T21:01:53Z",
	} {
		got, err := parseDatePaid(raw)
		if err != nil {
			t.Fatalf("parse %q failed: %v", raw, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q: expected %s, got %s", raw, want, got)
		}
	}
}
