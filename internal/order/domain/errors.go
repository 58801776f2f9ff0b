package domain

import "errors"

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidRequest   = errors.New("invalid booking request")
	ErrPersistence      = errors.New("persistence failure")
	ErrDeliveryGap      = errors.New("order-created not delivered")
	ErrMalformedMessage = errors.New("malformed message")
)
