package zatca_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
	"github.com/sadeem-tech/fatoora-api/internal/domain/zatca"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Reference scenario: 2 x 100.00 at 15% VAT → 200.00 / 30.00 / 230.00.
func TestCalculateTotals_StandardRate(t *testing.T) {
	totals := zatca.CalculateTotals([]entity.LineItem{
		{Name: "Consulting", Quantity: d("2"), UnitPrice: d("100"), TaxRate: d("15")},
	})

	assert.True(t, totals.TotalExclVAT.Equal(d("200")), "excl = %s", totals.TotalExclVAT)
	assert.True(t, totals.TotalVAT.Equal(d("30")), "vat = %s", totals.TotalVAT)
	assert.True(t, totals.TotalInclVAT.Equal(d("230")), "incl = %s", totals.TotalInclVAT)
}

// Discount is subtracted from the gross before tax applies.
func TestCalculateLine_Discount(t *testing.T) {
	amounts := zatca.CalculateLine(entity.LineItem{
		Quantity: d("1"), UnitPrice: d("100"), TaxRate: d("15"), Discount: d("20"),
	})

	assert.True(t, amounts.TaxableAmount.Equal(d("80")))
	assert.True(t, amounts.TaxAmount.Equal(d("12")))
	assert.True(t, amounts.Total.Equal(d("92")))
}

// Zero-rated lines produce no VAT.
func TestCalculateLine_ZeroRate(t *testing.T) {
	amounts := zatca.CalculateLine(entity.LineItem{
		Quantity: d("3"), UnitPrice: d("50"), TaxRate: d("0"), TaxCategory: "Z",
	})

	assert.True(t, amounts.TaxAmount.IsZero())
	assert.True(t, amounts.Total.Equal(d("150")))
}

// Per-line rounding happens before summing, so the invoice total equals the
// sum of the rounded lines, not the rounded sum of raw lines.
func TestCalculateTotals_PerLineRounding(t *testing.T) {
	// 0.333 * 15% = 0.04995 → 0.05 per line after rounding
	items := []entity.LineItem{
		{Quantity: d("1"), UnitPrice: d("0.333"), TaxRate: d("15")},
		{Quantity: d("1"), UnitPrice: d("0.333"), TaxRate: d("15")},
		{Quantity: d("1"), UnitPrice: d("0.333"), TaxRate: d("15")},
	}
	totals := zatca.CalculateTotals(items)

	assert.Equal(t, "0.99", totals.TotalExclVAT.StringFixed(2))
	assert.Equal(t, "0.15", totals.TotalVAT.StringFixed(2))
}

// Invariant: incl = excl + vat, always exact on decimals.
func TestCalculateTotals_AdditionInvariant(t *testing.T) {
	items := []entity.LineItem{
		{Quantity: d("7"), UnitPrice: d("13.37"), TaxRate: d("15")},
		{Quantity: d("2"), UnitPrice: d("0.05"), TaxRate: d("5"), Discount: d("0.01")},
		{Quantity: d("1"), UnitPrice: d("999.99"), TaxRate: d("0")},
	}
	totals := zatca.CalculateTotals(items)
	assert.True(t, totals.TotalInclVAT.Equal(totals.TotalExclVAT.Add(totals.TotalVAT)))
}

// FormatAmount: fixed two decimals, dot separator, no thousands grouping.
func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1500.00", zatca.FormatAmount(d("1500")))
	assert.Equal(t, "0.10", zatca.FormatAmount(d("0.1")))
	assert.Equal(t, "12345678.99", zatca.FormatAmount(d("12345678.987")))
}
