package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/lifecycle"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/provider"
)

const (
	maxListLimit    = 500
	maxCallbackBody = 64 << 10
)

func NewCreatePaymentRequestFromContext(ctx echo.Context) (*CreatePaymentRequest, error) {
	var body CreatePaymentRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	body.Message = strings.TrimSpace(body.Message)

	return &body, nil
}

func (r *CreatePaymentRequest) Validate() error {
	if utf8.RuneCountInString(r.GetMessage()) > provider.MaxMessageLength {
		return fmt.Errorf("message must be at most %d characters", provider.MaxMessageLength)
	}
	return nil
}

func NewCallbackRequestFromContext(ctx echo.Context) (*CallbackRequest, error) {
	rawBody, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxCallbackBody))
	if err != nil {
		return nil, err
	}

	req := &CallbackRequest{
		Payload:            string(rawBody),
		CallbackIdentifier: strings.TrimSpace(ctx.Request().Header.Get(provider.CallbackIdentifierHeader)),
	}
	if len(strings.TrimSpace(req.Payload)) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(rawBody, req); err != nil {
		return nil, err
	}
	req.ID = strings.TrimSpace(req.ID)
	req.Status = strings.TrimSpace(req.Status)

	return req, nil
}

func (r *CallbackRequest) Validate() error {
	if strings.TrimSpace(r.GetPayload()) == "" {
		return errors.New("request body is required")
	}
	return nil
}

func NewGetPaymentRequestFromContext(ctx echo.Context) (*GetPaymentRequest, error) {
	return &GetPaymentRequest{ID: strings.TrimSpace(ctx.Param("id"))}, nil
}

func (r *GetPaymentRequest) Validate() error {
	if r.ID == "" {
		return errors.New("invalid payment id")
	}
	return nil
}

func NewListPaymentEventsRequestFromContext(ctx echo.Context) (*ListPaymentEventsRequest, error) {
	return &ListPaymentEventsRequest{ID: strings.TrimSpace(ctx.Param("id"))}, nil
}

func (r *ListPaymentEventsRequest) Validate() error {
	if r.ID == "" {
		return errors.New("invalid payment id")
	}
	return nil
}

func NewCreditPaymentRequestFromContext(ctx echo.Context) (*CreditPaymentRequest, error) {
	return &CreditPaymentRequest{ID: strings.TrimSpace(ctx.Param("id"))}, nil
}

func (r *CreditPaymentRequest) Validate() error {
	if r.ID == "" {
		return errors.New("invalid payment id")
	}
	return nil
}

func NewListPaymentsRequestFromContext(ctx echo.Context) (*ListPaymentsRequest, error) {
	req := &ListPaymentsRequest{
		Limit:  100,
		Offset: 0,
	}

	if statusRaw := strings.TrimSpace(ctx.QueryParam("status")); statusRaw != "" {
		status, err := lifecycle.ParseStatus(statusRaw)
		if err != nil {
			return nil, err
		}
		req.HasStatus = true
		req.Status = status
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListPaymentsRequest) Validate() error {
	if r.GetLimit() <= 0 || r.GetLimit() > maxListLimit {
		return errors.New("limit must be between 1 and 500")
	}
	if r.GetOffset() < 0 {
		return errors.New("offset must be >= 0")
	}
	if r.GetHasStatus() && !lifecycle.IsValidStatus(r.GetStatus()) {
		return errors.New("invalid status")
	}
	return nil
}
