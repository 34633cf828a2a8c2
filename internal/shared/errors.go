package shared

import "errors"

// Error kinds surfaced by the billing core. Domain packages wrap these with
// context; the HTTP layer maps them to responses with errors.Is.
var (
	// ErrNotFound indicates a missing customer/product/invoice/payment/entry.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates an operation against a record whose status
	// forbids it, e.g. editing a cancelled invoice.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidAmount indicates a zero/negative amount or one exceeding the
	// remaining balance.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientStock indicates a requested quantity exceeds available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrValidation indicates malformed input shape or range.
	ErrValidation = errors.New("validation failed")
)
