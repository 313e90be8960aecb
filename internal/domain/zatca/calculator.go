// Package zatca holds the pure domain logic for ZATCA e-invoicing (Saudi
// Arabia): tax/totals math, TLV QR payload codec, invoice hash chain, request
// validation and audit-payload masking. No I/O anywhere in this package.
package zatca

import (
	"github.com/shopspring/decimal"

	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
)

// LineAmounts are the derived amounts of one invoice line.
// Subtotal equals TaxableAmount by definition (post-discount base), never the
// pre-discount gross: the amount used for signing and the one displayed must
// not drift apart.
type LineAmounts struct {
	TaxableAmount decimal.Decimal // quantity*unit_price - discount
	TaxAmount     decimal.Decimal // taxable * rate/100
	Total         decimal.Decimal // taxable + tax
}

// InvoiceTotals aggregates line amounts at invoice level.
type InvoiceTotals struct {
	TotalExclVAT decimal.Decimal
	TotalVAT     decimal.Decimal
	TotalInclVAT decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// CalculateLine computes the derived amounts of a line deterministically.
// TaxableAmount may be <= 0 when discount >= gross; sanity of that case is the
// caller's concern, not the calculator's.
func CalculateLine(item entity.LineItem) LineAmounts {
	gross := item.Quantity.Mul(item.UnitPrice)
	taxable := gross.Sub(item.Discount)
	tax := taxable.Mul(item.TaxRate).Div(hundred)
	return LineAmounts{
		TaxableAmount: taxable,
		TaxAmount:     tax,
		Total:         taxable.Add(tax),
	}
}

// CalculateTotals aggregates all lines. Per-line amounts are rounded to two
// decimals before summing, matching the authority's display rules.
func CalculateTotals(items []entity.LineItem) InvoiceTotals {
	var excl, vat decimal.Decimal
	for _, item := range items {
		amounts := CalculateLine(item)
		excl = excl.Add(amounts.TaxableAmount.Round(2))
		vat = vat.Add(amounts.TaxAmount.Round(2))
	}
	return InvoiceTotals{
		TotalExclVAT: excl,
		TotalVAT:     vat,
		TotalInclVAT: excl.Add(vat),
	}
}

// FormatAmount formats a monetary amount for TLV/XML fields: no thousands
// separator, dot decimal, exactly two decimals (e.g. 1500.00).
func FormatAmount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}
