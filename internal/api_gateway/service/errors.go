package service

import "errors"

// Order creation errors
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrOrderConflict       = errors.New("order reference conflict")
	ErrOrderCreationFailed = errors.New("order creation failed")
)

// Settlement errors. ErrOrderNotFound is also returned by order status queries.
var (
	ErrSignatureInvalid    = errors.New("notification signature invalid")
	ErrInvalidNotification = errors.New("invalid notification")
	ErrOrderNotFound       = errors.New("order not found")
	ErrAmountMismatch      = errors.New("notified amount does not match order")
	ErrInvalidTransition   = errors.New("order cannot be settled from its current status")
)
