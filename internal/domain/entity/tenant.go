package entity

import "time"

// TenantContext is the resolved identity of the calling tenant. It is built by
// the auth middleware and passed explicitly to every persistence and clearance
// call, never pulled from ambient request state, so tenant isolation is
// visible in type signatures.
type TenantContext struct {
	TenantID string
	VAT      string // 15-digit VAT registration number from the token
}

// Tenant is the registry row for an onboarded tenant.
type Tenant struct {
	ID         string
	VAT        string
	NameEn     string
	NameAr     string
	WebhookURL string // Optional; terminal-state notifications are POSTed here
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
