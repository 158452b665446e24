// Package repository defines the sentinel errors shared by the data access
// layer and the services built on top of it. Every value below is an
// expected, recoverable outcome of a buyer or seller action; handlers
// translate each into a distinct user-facing message so that "this item is
// no longer available", "some items in your cart are no longer available"
// and "invalid code, try again" are never collapsed into one generic
// failure. Only datastore unavailability surfaces as a plain wrapped error.
package repository

import "errors"

// ErrItemNotFound is returned when an item ID does not resolve to a row.
var ErrItemNotFound = errors.New("item not found")

// ErrNotAvailable is returned by TryReserve when the item exists but is not
// currently reservable: it is already reserved, already sold, or the seller
// has unlisted it.
var ErrNotAvailable = errors.New("item not available")

// ErrSelfReservation is returned when a seller attempts to reserve their own
// listing.
var ErrSelfReservation = errors.New("cannot reserve own item")

// ErrSomeItemsUnavailable is returned by checkout when at least one requested
// item is no longer held by the buyer. The whole checkout fails closed; no
// order is created.
var ErrSomeItemsUnavailable = errors.New("some items unavailable")

// ErrOrderNotFound is returned when an order ID does not resolve to a row.
var ErrOrderNotFound = errors.New("order not found")

// ErrLineNotFound is returned when an order has no line for the given item.
var ErrLineNotFound = errors.New("order line not found")

// ErrInvalidCode is returned when a presented one-time code does not match
// the stored hash. The check is side-effect free; the code may be retried.
var ErrInvalidCode = errors.New("invalid code")

// ErrCodeStillValid is returned when code regeneration is attempted before
// the current code has expired.
var ErrCodeStillValid = errors.New("code still valid")

// ErrCodeExpired is returned when verification is attempted after the code's
// deadline. The buyer must regenerate a fresh code first.
var ErrCodeExpired = errors.New("code expired")

// ErrAlreadyResolved is returned when an operation targets a line that has
// already reached a terminal state (Completed, Cancelled or Expired).
var ErrAlreadyResolved = errors.New("line already resolved")

// ErrAlreadyCompleted is returned by code regeneration when the line has
// already been completed.
var ErrAlreadyCompleted = errors.New("line already completed")

// ErrNotPending is returned by cancellation when the line is no longer
// Pending.
var ErrNotPending = errors.New("line not pending")

// ErrUnauthorized is returned when the caller does not own the resource the
// operation targets, such as toggling another seller's listing or cancelling
// another buyer's order line.
var ErrUnauthorized = errors.New("unauthorized")

// ErrEmailExists is returned on registration when the email is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrDuplicateReview is returned when a buyer reviews the same purchase twice.
var ErrDuplicateReview = errors.New("review already exists")
