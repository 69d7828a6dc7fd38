package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/service"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/types"
)

func PaymentToResponse(item *entity.Payment) *types.Payment {
	if item == nil {
		return nil
	}

	return &types.Payment{
		ID:           item.ID,
		Token:        item.Token,
		Status:       string(item.Status),
		Amount:       item.Amount.StringFixed(2),
		Currency:     item.Currency,
		Message:      item.Message,
		PayerAlias:   derefString(item.PayerAlias),
		PayeeAlias:   item.PayeeAlias,
		ErrorCode:    derefString(item.ErrorCode),
		ErrorMessage: derefString(item.ErrorMessage),
		DateCreated:  formatTime(item.DateCreated),
		DateUpdated:  formatTime(item.DateUpdated),
		DatePaid:     formatTimePtr(item.DatePaid),
	}
}

func PaymentsToResponse(items []*entity.Payment) []*types.Payment {
	result := make([]*types.Payment, 0, len(items))
	for _, item := range items {
		result = append(result, PaymentToResponse(item))
	}
	return result
}

func PaymentEventsToResponse(paymentID string, items []*entity.PaymentEvent) *types.ListPaymentEventsResponse {
	events := make([]*types.PaymentEvent, 0, len(items))
	for _, item := range items {
		event := &types.PaymentEvent{
			ID:        item.ID,
			EventType: item.EventType,
			Source:    item.Source,
			NewStatus: string(item.NewStatus),
			CreatedAt: formatTime(item.CreatedAt),
		}
		if item.OldStatus != nil {
			event.OldStatus = string(*item.OldStatus)
		}
		events = append(events, event)
	}
	return &types.ListPaymentEventsResponse{PaymentID: paymentID, Events: events}
}

func PaymentToCreateResponse(item *entity.Payment, redirectURL string) *types.CreatePaymentResponse {
	return &types.CreatePaymentResponse{
		ID:          item.ID,
		Token:       item.Token,
		RedirectURL: redirectURL,
		Amount:      item.Amount.StringFixed(2),
		Currency:    item.Currency,
		Status:      string(item.Status),
		DateCreated: formatTime(item.DateCreated),
	}
}

func CallbackResultToResponse(result *service.CallbackResult) *types.CallbackResponse {
	resp := &types.CallbackResponse{
		Message:   "Callback processed",
		PaymentID: result.Payment.ID,
		Status:    string(result.Payment.Status),
	}
	if result.Warning != nil {
		resp.Message = "Callback acknowledged"
		resp.Warning = result.Warning.Error()
	}
	return resp
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339)
}

func formatTimePtr(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTime(*value)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
