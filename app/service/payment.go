package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/factory"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/provider"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/repository"
	"github.com/vibast-solutions/ms-go-kiosk-payments/config"
)

const (
	defaultListLimit = int32(100)
	defaultBatchSize = int32(100)
)

type createPaymentRequest interface {
	GetMessage() string
}

type listPaymentsRequest interface {
	GetHasStatus() bool
	GetStatus() entity.PaymentStatus
	GetLimit() int32
	GetOffset() int32
}

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id string) (*entity.Payment, error)
	Update(ctx context.Context, id string, fn repository.PaymentMutator) (*entity.Payment, error)
	ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error)
	FindOldest(ctx context.Context, status entity.PaymentStatus) (*entity.Payment, error)
	List(ctx context.Context, filter repository.PaymentFilter) ([]*entity.Payment, error)
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
	ListByPayment(ctx context.Context, paymentID string) ([]*entity.PaymentEvent, error)
}

type paymentCallbackRepository interface {
	Create(ctx context.Context, callback *entity.PaymentCallback) error
}

type PaymentService struct {
	paymentRepo  paymentRepository
	eventRepo    paymentEventRepository
	callbackRepo paymentCallbackRepository
	gateway      provider.Gateway
	paymentsCfg  config.PaymentsConfig
	swishCfg     config.SwishConfig
	logger       logrus.FieldLogger
	now          func() time.Time
}

func NewPaymentService(
	paymentRepo paymentRepository,
	eventRepo paymentEventRepository,
	callbackRepo paymentCallbackRepository,
	gateway provider.Gateway,
	paymentsCfg config.PaymentsConfig,
	swishCfg config.SwishConfig,
) *PaymentService {
	return &PaymentService{
		paymentRepo:  paymentRepo,
		eventRepo:    eventRepo,
		callbackRepo: callbackRepo,
		gateway:      gateway,
		paymentsCfg:  paymentsCfg,
		swishCfg:     swishCfg,
		logger:       factory.NewModuleLogger("payments-service"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreatePayment asks the provider for a payment request at the configured
// unit price and stores it as CREATED. Once the provider has accepted the
// request the record is persisted even if the caller has gone away, so no
// provider-side payment is left without a local record.
func (s *PaymentService) CreatePayment(ctx context.Context, req createPaymentRequest) (*entity.Payment, error) {
	if !s.paymentsCfg.UnitPrice.IsPositive() {
		return nil, errors.New("unit price is not configured")
	}

	message := strings.TrimSpace(req.GetMessage())
	if message == "" {
		message = strings.TrimSpace(s.paymentsCfg.Message)
	}
	message = truncate(message, provider.MaxMessageLength)
	currency := strings.ToUpper(strings.TrimSpace(s.paymentsCfg.Currency))

	callbackIdentifier := provider.NewCallbackIdentifier()

	detached := context.WithoutCancel(ctx)
	out, err := s.gateway.RequestPayment(detached, &provider.CreateInput{
		Amount:      s.paymentsCfg.UnitPrice,
		Currency:    currency,
		Message:     message,
		CallbackURL: s.swishCfg.CallbackURL,

		CallbackIdentifier: callbackIdentifier,
	})
	if err != nil {
		if errors.Is(err, provider.ErrGateway) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	now := s.now()
	payment := &entity.Payment{
		ID:          out.ID,
		Token:       out.Token,
		Status:      entity.PaymentStatusCreated,
		Amount:      s.paymentsCfg.UnitPrice,
		Currency:    currency,
		Message:     message,
		PayeeAlias:  s.swishCfg.PayeeAlias,
		CallbackURL: s.swishCfg.CallbackURL,
		DateCreated: now,
		DateUpdated: now,

		CallbackIdentifier: callbackIdentifier,
	}

	if err := s.paymentRepo.Create(detached, payment); err != nil {
		if errors.Is(err, repository.ErrPaymentAlreadyExists) {
			return nil, ErrPaymentAlreadyExists
		}
		s.logger.WithError(err).WithField("payment_id", payment.ID).Error("Provider payment request created but not persisted")
		return nil, err
	}

	s.recordEvent(detached, &entity.PaymentEvent{
		PaymentID: payment.ID,
		EventType: "payment_created",
		Source:    entity.PaymentEventSourceAPI,
		NewStatus: payment.Status,
		CreatedAt: now,
	})

	return payment, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id string) (*entity.Payment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrMissingIdentifier
	}
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// ListPaymentEvents returns the lifecycle audit trail of one payment.
func (s *PaymentService) ListPaymentEvents(ctx context.Context, id string) ([]*entity.PaymentEvent, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.ListByPayment(ctx, payment.ID)
}

func (s *PaymentService) ListPayments(ctx context.Context, req listPaymentsRequest) ([]*entity.Payment, error) {
	limit := req.GetLimit()
	if limit <= 0 {
		limit = defaultListLimit
	}

	return s.paymentRepo.List(ctx, repository.PaymentFilter{
		HasStatus: req.GetHasStatus(),
		Status:    req.GetStatus(),
		Limit:     limit,
		Offset:    req.GetOffset(),
	})
}

// RedirectURL builds the deep link that opens the provider app for payment.
func (s *PaymentService) RedirectURL(payment *entity.Payment) string {
	return buildRedirectURL(payment, s.paymentsCfg.ReceiptBaseURL)
}

func (s *PaymentService) recordEvent(ctx context.Context, event *entity.PaymentEvent) {
	if err := s.eventRepo.Create(ctx, event); err != nil {
		s.logger.WithError(err).WithField("payment_id", event.PaymentID).Warn("Failed to record payment event")
	}
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func statusPtr(status entity.PaymentStatus) *entity.PaymentStatus {
	return &status
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
