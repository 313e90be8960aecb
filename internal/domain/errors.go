package domain

import "errors"

// Domain errors (no external dependencies). Handlers and the orchestrator map
// these to HTTP statuses and terminal invoice states; lower layers only wrap them.
var (
	ErrNotFound               = errors.New("resource not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrDuplicateInvoice       = errors.New("invoice number already exists for tenant")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("access denied")
	ErrConflict               = errors.New("conflict with current state")
	ErrSigningNotConfigured   = errors.New("signing certificate not configured for tenant")
	ErrTenantIsolation        = errors.New("cross-tenant access attempt")
	ErrProductionNotConfirmed = errors.New("production submission requires explicit confirmation")
)
