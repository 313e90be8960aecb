package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice processing states. The order is monotonic: once an invoice reaches a
// terminal state (CLEARED, REJECTED, FAILED) it never moves back.
const (
	StatusCreated    = "CREATED"    // Row persisted, no external call made yet
	StatusProcessing = "PROCESSING" // Pipeline running (totals, XML, signing, clearance)
	StatusCleared    = "CLEARED"    // Accepted by ZATCA (Phase-2) or QR issued locally (Phase-1)
	StatusRejected   = "REJECTED"   // Permanent rejection by the authority (4xx), message preserved
	StatusFailed     = "FAILED"     // Retries exhausted, signing unavailable or encoding error
)

// statusRank defines the partial order CREATED < PROCESSING < terminal.
var statusRank = map[string]int{
	StatusCreated:    0,
	StatusProcessing: 1,
	StatusCleared:    2,
	StatusRejected:   2,
	StatusFailed:     2,
}

// IsTerminal reports whether status is one of CLEARED, REJECTED or FAILED.
func IsTerminal(status string) bool {
	return statusRank[status] == 2
}

// CanTransition reports whether moving from -> to respects state monotonicity.
func CanTransition(from, to string) bool {
	rf, okF := statusRank[from]
	rt, okT := statusRank[to]
	if !okF || !okT {
		return false
	}
	return rt > rf
}

// Invoice generation modes.
const (
	ModePhase1 = "PHASE_1" // QR-only: TLV payload issued locally, no clearance round-trip
	ModePhase2 = "PHASE_2" // XML + signature + real-time clearance/reporting
)

// Invoice is the persisted master record of one e-invoice.
// (TenantID, InvoiceNumber) is the idempotency key, enforced by a unique
// constraint at the storage layer. Mutated only by the orchestrator.
type Invoice struct {
	ID            string
	TenantID      string
	InvoiceNumber string
	Mode          string // PHASE_1 | PHASE_2
	InvoiceType   string // UBL type code: 388 invoice, 381 credit note, 383 debit note
	Environment   string // sandbox | production
	InvoiceDate   time.Time
	SellerName    string
	SellerVAT     string // 15-digit VAT registration number
	BuyerName     string
	BuyerVAT      string
	TotalExclVAT  decimal.Decimal
	TotalVAT      decimal.Decimal
	TotalInclVAT  decimal.Decimal
	Status        string
	UUID          string // Phase-2 document UUID (mandatory for PHASE_2)
	Hash          string // SHA-256 of the canonical XML, base64 (Phase-2)
	PreviousHash  string // PIH; empty only for the first invoice in the tenant chain
	XMLContent    string // Signed XML (Phase-2), size-capped before persistence
	QRPayload     string // Base64 TLV payload
	QRImage       string // Base64 PNG render of the QR; empty when rendering degraded
	ClearanceRaw  string // Authority response, opaque JSON preserved verbatim
	ReportingRaw  string // Reporting follow-up response, opaque JSON
	ErrorMessage  string // Terminal error detail for REJECTED/FAILED
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LineItem is one ordered invoice line. Derived amounts are computed, never stored.
type LineItem struct {
	Name        string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal // percent, 0..100
	TaxCategory string          // S, Z, E, O
	Discount    decimal.Decimal
}
