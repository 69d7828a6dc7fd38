package service

import (
	"errors"

	"github.com/vibast-solutions/ms-go-kiosk-payments/app/lifecycle"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/provider"
)

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrMissingIdentifier    = errors.New("payment id is required")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrNoneAvailable        = errors.New("no paid payment available")
	ErrConcurrencyConflict  = errors.New("payment changed concurrently")
	ErrCallbackRejected     = errors.New("callback rejected")
	ErrGateway              = provider.ErrGateway
	ErrInvalidTransition    = lifecycle.ErrInvalidTransition
)
