package entity

import "time"

// Audit actions recorded per processing attempt.
const (
	ActionSubmit = "SUBMIT" // First processing of an invoice number
	ActionRetry  = "RETRY"  // Explicit caller-requested reprocessing of a terminal invoice
	ActionReport = "REPORT" // Best-effort reporting follow-up after clearance
)

// InvoiceLog is one append-only audit entry for an invoice processing action.
// Entries are value objects: constructed once, inserted, and never edited.
// The one exception is that the most recent entry may be enriched with
// artifacts that only become available later (signed XML, authority response,
// clearance timestamp).
// All payload fields are masked before the entry is built.
type InvoiceLog struct {
	ID             string
	TenantID       string
	InvoiceNumber  string
	Action         string // SUBMIT | RETRY | REPORT
	PreviousStatus string
	Status         string
	Attempt        int    // Clearance attempt number (1-based); 0 for non-submission actions
	RequestPayload string // Masked request JSON
	XMLContent     string // Masked, size-capped XML
	ResponseRaw    string // Masked authority response JSON
	ErrorMessage   string
	SubmittedAt    time.Time
	ClearedAt      *time.Time
	CreatedAt      time.Time
}
