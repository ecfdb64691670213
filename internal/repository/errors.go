// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting SQL driver errors. ErrForbidden
// indicates that the current user is not authorized to act on a
// resource owned by someone else, while ErrConflict signals that an
// operation cannot proceed due to conflicting state.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as confirming a payment intent that has
// already reached a terminal status. Handlers should translate this
// into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrReservationNotFound is returned when a reservation id does not exist.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrIntentNotFound is returned when a payment intent id does not exist.
var ErrIntentNotFound = errors.New("payment intent not found")

// ErrInvoiceNotFound is returned when an invoice id does not exist.
var ErrInvoiceNotFound = errors.New("invoice not found")
