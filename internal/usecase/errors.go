package usecase

import "errors"

var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrGateway          = errors.New("payment gateway error")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInternal         = errors.New("internal error")
	ErrDuplicate        = errors.New("duplicate idempotency key")
	ErrConflict         = errors.New("conflict with current order status")
	ErrForbidden        = errors.New("operation disabled")
)
