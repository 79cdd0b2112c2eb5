package domain

import "errors"

// Domain errors
var (
	// Validation errors
	ErrInvalidVenueID        = errors.New("invalid venue id")
	ErrInvalidVenueName      = errors.New("venue name is required")
	ErrInvalidMode           = errors.New("invalid venue mode")
	ErrInvalidAcceptingState = errors.New("invalid accepting state")
	ErrInvalidCapacity       = errors.New("capacity per slot must be greater than zero")
	ErrInvalidUserID         = errors.New("invalid user id")
	ErrInvalidSlotLabel      = errors.New("invalid slot label")
	ErrInvalidReservationID  = errors.New("invalid reservation id")
	ErrInvalidPartySize      = errors.New("party size must be between 1 and 20")
	ErrInvalidTicketNumber   = errors.New("ticket number must be greater than zero")
	ErrInvalidOutcome        = errors.New("outcome must be completed or canceled")
	ErrInvalidQuantity       = errors.New("quantity must be greater than zero")
	ErrEmptyOrder            = errors.New("order must contain at least one line")
	ErrInvalidOrderID        = errors.New("invalid order id")
	ErrInvalidOrderTarget    = errors.New("order can only advance to paying or completed")
	ErrInvalidMenuItem       = errors.New("invalid menu item")
	ErrInvalidMenuItemID     = errors.New("invalid menu item id")
	ErrInvalidUnitPrice      = errors.New("unit price must be between 0 and 1000000000000")
	ErrInvalidStock          = errors.New("stock cannot be negative")
	ErrInvalidPerOrderLimit  = errors.New("per order limit cannot be negative")
	ErrOrderTotalOverflow    = errors.New("order total is too large")

	// Capacity errors
	ErrSlotFull                     = errors.New("slot is full")
	ErrInsufficientStock            = errors.New("insufficient stock")
	ErrQuantityExceedsPerOrderLimit = errors.New("quantity exceeds per order limit")

	// State errors
	ErrInvalidTransition          = errors.New("invalid status transition")
	ErrDuplicateActiveReservation = errors.New("user already holds an active reservation at this venue")
	ErrDuplicateActiveTicket      = errors.New("user already holds an active ticket at this venue")
	ErrVenueNotAcceptingRequests  = errors.New("venue is not accepting requests")
	ErrVenueAlreadyExists         = errors.New("venue already exists")

	// Contention errors
	ErrContendedResource = errors.New("venue is contended, try again")

	// Not found errors
	ErrVenueNotFound       = errors.New("venue not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrOrderNotFound       = errors.New("order not found")
)

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidVenueID) ||
		errors.Is(err, ErrInvalidVenueName) ||
		errors.Is(err, ErrInvalidMode) ||
		errors.Is(err, ErrInvalidAcceptingState) ||
		errors.Is(err, ErrInvalidCapacity) ||
		errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidSlotLabel) ||
		errors.Is(err, ErrInvalidReservationID) ||
		errors.Is(err, ErrInvalidPartySize) ||
		errors.Is(err, ErrInvalidTicketNumber) ||
		errors.Is(err, ErrInvalidOutcome) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrEmptyOrder) ||
		errors.Is(err, ErrInvalidOrderID) ||
		errors.Is(err, ErrInvalidOrderTarget) ||
		errors.Is(err, ErrInvalidMenuItem) ||
		errors.Is(err, ErrInvalidMenuItemID) ||
		errors.Is(err, ErrInvalidUnitPrice) ||
		errors.Is(err, ErrInvalidStock) ||
		errors.Is(err, ErrInvalidPerOrderLimit) ||
		errors.Is(err, ErrOrderTotalOverflow)
}

// IsCapacityError checks if the error reports an exhausted resource
func IsCapacityError(err error) bool {
	return errors.Is(err, ErrSlotFull) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrQuantityExceedsPerOrderLimit)
}

// IsStateError checks if the error is a state conflict
func IsStateError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateActiveReservation) ||
		errors.Is(err, ErrDuplicateActiveTicket) ||
		errors.Is(err, ErrVenueNotAcceptingRequests) ||
		errors.Is(err, ErrVenueAlreadyExists)
}

// IsContentionError checks if the error is a retry exhaustion
func IsContentionError(err error) bool {
	return errors.Is(err, ErrContendedResource)
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrVenueNotFound) ||
		errors.Is(err, ErrReservationNotFound) ||
		errors.Is(err, ErrTicketNotFound) ||
		errors.Is(err, ErrMenuItemNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsDomainError reports whether err is one of the classified domain errors.
// Such errors abort a transaction without retry.
func IsDomainError(err error) bool {
	return IsValidationError(err) ||
		IsCapacityError(err) ||
		IsStateError(err) ||
		IsNotFoundError(err)
}
