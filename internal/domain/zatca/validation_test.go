package zatca_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadeem-tech/fatoora-api/internal/domain"
	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
	"github.com/sadeem-tech/fatoora-api/internal/domain/zatca"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func validRequest(mode string) *entity.InvoiceRequest {
	req := &entity.InvoiceRequest{
		Mode:          mode,
		InvoiceNumber: "INV-001",
		InvoiceDate:   testNow.Add(-time.Hour),
		SellerName:    "Qoyod Co.",
		SellerVAT:     "310122393500003",
		Items: []entity.LineItem{
			{Name: "Consulting", Quantity: d("2"), UnitPrice: d("100"), TaxRate: d("15")},
		},
	}
	if mode == entity.ModePhase2 {
		req.UUID = "8e6e76cb-1a44-46fd-9a41-1a2db1a483cd"
		req.InvoiceType = "388"
	}
	return req
}

// Case 1: complete requests pass for both modes.
func TestValidateRequest_Valid(t *testing.T) {
	assert.NoError(t, zatca.ValidateRequest(validRequest(entity.ModePhase1), testNow))
	assert.NoError(t, zatca.ValidateRequest(validRequest(entity.ModePhase2), testNow))
}

// Case 2: Phase-2 without uuid fails fast, before any processing begins.
func TestValidateRequest_Phase2MissingUUID(t *testing.T) {
	req := validRequest(entity.ModePhase2)
	req.UUID = ""

	err := zatca.ValidateRequest(req, testNow)
	require.Error(t, err)
	assert.ErrorIs(t, err, zatca.ErrInvalidRequest)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "uuid is required")
}

// Case 3: the same uuid-less request is fine in Phase-1.
func TestValidateRequest_Phase1NoUUIDNeeded(t *testing.T) {
	req := validRequest(entity.ModePhase1)
	req.UUID = ""
	req.InvoiceType = ""
	assert.NoError(t, zatca.ValidateRequest(req, testNow))
}

// Case 4: VAT numbers must be exactly 15 digits.
func TestValidateRequest_BadVAT(t *testing.T) {
	for _, vat := range []string{"", "12345", "31012239350000X", "3101223935000031"} {
		req := validRequest(entity.ModePhase1)
		req.SellerVAT = vat
		assert.Error(t, zatca.ValidateRequest(req, testNow), "vat %q must be rejected", vat)
	}

	// Buyer VAT is optional but validated when present.
	req := validRequest(entity.ModePhase1)
	req.BuyerVAT = "bad"
	assert.Error(t, zatca.ValidateRequest(req, testNow))
	req.BuyerVAT = "311111111100003"
	assert.NoError(t, zatca.ValidateRequest(req, testNow))
}

// Case 5: future-dated invoices are rejected.
func TestValidateRequest_FutureDate(t *testing.T) {
	req := validRequest(entity.ModePhase1)
	req.InvoiceDate = testNow.Add(time.Hour)

	err := zatca.ValidateRequest(req, testNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in the future")
}

// Case 6: line sanity. Every offending field is named in one error.
func TestValidateRequest_BadItems(t *testing.T) {
	req := validRequest(entity.ModePhase1)
	req.Items = []entity.LineItem{
		{Quantity: d("0"), UnitPrice: d("10"), TaxRate: d("15")},
		{Quantity: d("1"), UnitPrice: d("-1"), TaxRate: d("101"), Discount: d("-5")},
	}

	err := zatca.ValidateRequest(req, testNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item 0: quantity must be > 0")
	assert.Contains(t, err.Error(), "item 1: unit_price must be >= 0")
	assert.Contains(t, err.Error(), "item 1: tax_rate must be between 0 and 100")
	assert.Contains(t, err.Error(), "item 1: discount must be >= 0")

	req.Items = nil
	err = zatca.ValidateRequest(req, testNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one line item")
}

// Case 7: unknown mode is rejected.
func TestValidateRequest_UnknownMode(t *testing.T) {
	req := validRequest(entity.ModePhase1)
	req.Mode = "PHASE_3"
	assert.Error(t, zatca.ValidateRequest(req, testNow))
}
