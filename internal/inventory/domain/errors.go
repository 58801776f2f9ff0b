package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrTicketTypeNotFound    = errors.New("ticket type not found")
	ErrLockUnavailable       = errors.New("reservation lock unavailable")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidEvent          = errors.New("invalid event")
)

// InsufficientInventoryError reports the ticket type that could not be
// reserved and how many units were left.
type InsufficientInventoryError struct {
	Type      string
	Available int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("type %s only %d tickets left", e.Type, e.Available)
}

func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}
