package zatca

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sadeem-tech/fatoora-api/internal/domain"
	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
)

// ErrInvalidRequest groups invoice request validation failures.
var ErrInvalidRequest = errors.New("invalid invoice request")

// VATNumberLength is the exact length of a Saudi VAT registration number.
const VATNumberLength = 15

// ValidateRequest checks mode-specific mandatory fields and line sanity.
// It runs before any state is created: a request failing here leaves no
// Invoice or InvoiceLog rows behind. Returned errors wrap both
// ErrInvalidRequest and domain.ErrInvalidInput and name every offending field.
func ValidateRequest(req *entity.InvoiceRequest, now time.Time) error {
	if req == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	var errs []error

	switch req.Mode {
	case entity.ModePhase1, entity.ModePhase2:
	default:
		errs = append(errs, fmt.Errorf("mode must be %s or %s, got %q",
			entity.ModePhase1, entity.ModePhase2, req.Mode))
	}

	if req.InvoiceNumber == "" {
		errs = append(errs, errors.New("invoice_number is required"))
	}
	if req.SellerName == "" {
		errs = append(errs, errors.New("seller_name is required"))
	}
	if err := validateVAT("seller_tax_number", req.SellerVAT); err != nil {
		errs = append(errs, err)
	}
	if req.BuyerVAT != "" {
		if err := validateVAT("buyer_tax_number", req.BuyerVAT); err != nil {
			errs = append(errs, err)
		}
	}

	if req.InvoiceDate.IsZero() {
		errs = append(errs, errors.New("invoice_date is required"))
	} else if req.InvoiceDate.UTC().After(now.UTC()) {
		errs = append(errs, fmt.Errorf("invoice_date %s is in the future",
			req.InvoiceDate.UTC().Format(time.RFC3339)))
	}

	// Phase-2 mandatory fields fail fast, before any processing begins.
	if req.Mode == entity.ModePhase2 {
		if req.UUID == "" {
			errs = append(errs, errors.New("uuid is required for PHASE_2"))
		}
		if req.InvoiceType == "" {
			errs = append(errs, errors.New("invoice_type is required for PHASE_2"))
		}
	}

	if len(req.Items) == 0 {
		errs = append(errs, errors.New("at least one line item is required"))
	}
	for i, item := range req.Items {
		if !item.Quantity.GreaterThan(decimal.Zero) {
			errs = append(errs, fmt.Errorf("item %d: quantity must be > 0", i))
		}
		if item.UnitPrice.LessThan(decimal.Zero) {
			errs = append(errs, fmt.Errorf("item %d: unit_price must be >= 0", i))
		}
		if item.TaxRate.LessThan(decimal.Zero) || item.TaxRate.GreaterThan(hundred) {
			errs = append(errs, fmt.Errorf("item %d: tax_rate must be between 0 and 100", i))
		}
		if item.Discount.LessThan(decimal.Zero) {
			errs = append(errs, fmt.Errorf("item %d: discount must be >= 0", i))
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidRequest, domain.ErrInvalidInput}, errs...)...)
	}
	return nil
}

func validateVAT(field, vat string) error {
	if vat == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(vat) != VATNumberLength {
		return fmt.Errorf("%s must be exactly %d characters, got %d", field, VATNumberLength, len(vat))
	}
	for _, r := range vat {
		if r < '0' || r > '9' {
			return fmt.Errorf("%s must contain only digits", field)
		}
	}
	return nil
}
