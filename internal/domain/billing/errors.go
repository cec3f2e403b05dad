package billing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a payment or invoice does not exist.
var ErrNotFound = errors.New("billing: not found")

// ErrInvalidRequest is the sentinel behind every 400-class billing failure.
// Callers match it with errors.Is; the wrapped message carries the reason.
var ErrInvalidRequest = errors.New("billing: invalid request")

// DuplicateChargeError reports that the target aggregate already carries a
// line for the catalog item. It unwraps to ErrInvalidRequest so handlers can
// map it to a 400 while still exposing the offending ids in the body.
type DuplicateChargeError struct {
	Aggregate     string    // "payment" or "invoice"
	AggregateID   uuid.UUID
	CatalogItemID uuid.UUID
}

func (e *DuplicateChargeError) Error() string {
	return fmt.Sprintf("catalog item %s already charged on %s %s",
		e.CatalogItemID, e.Aggregate, e.AggregateID)
}

func (e *DuplicateChargeError) Unwrap() error { return ErrInvalidRequest }
