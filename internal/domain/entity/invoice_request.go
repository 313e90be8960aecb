package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceRequest is the validated input of the processing pipeline, immutable
// once accepted. Declared totals are advisory: the calculator's results are
// authoritative.
type InvoiceRequest struct {
	Mode              string // PHASE_1 | PHASE_2
	Environment       string // sandbox | production
	InvoiceNumber     string
	InvoiceType       string // 388 invoice, 381 credit note, 383 debit note
	InvoiceDate       time.Time
	SellerName        string
	SellerVAT         string
	BuyerName         string
	BuyerVAT          string
	Items             []LineItem
	DeclaredExclVAT   decimal.Decimal
	DeclaredVAT       decimal.Decimal
	DeclaredTotal     decimal.Decimal
	UUID              string // mandatory for PHASE_2
	PreviousHash      string // optional; absent only for the first invoice of the chain
	ConfirmProduction bool   // must be true when Environment is production
	Retry             bool   // caller intent: reprocess an invoice already in a terminal state
}
