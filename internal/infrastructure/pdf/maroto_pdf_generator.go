// Package pdf renders the human-readable representation of a processed
// e-invoice.
//
// A4 page layout:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Seller name + VAT   │  Invoice number + date       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  SELLER: registered names (EN/AR)                           │
//	│  BUYER: name + VAT                                          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALS: excl. VAT / VAT / TOTAL DUE (SAR)                  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: invoice hash + TLV QR + legal note                 │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
	domzatca "github.com/sadeem-tech/fatoora-api/internal/domain/zatca"
)

// ── Color palette ─────────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 90, Blue: 60}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoPDFGenerator implements invoicing.InvoicePDFGenerator with Maroto v2.
type MarotoPDFGenerator struct{}

// NewMarotoPDFGenerator builds the generator.
func NewMarotoPDFGenerator() *MarotoPDFGenerator { return &MarotoPDFGenerator{} }

// GenerateInvoicePDF renders the invoice and returns the PDF bytes.
func (g *MarotoPDFGenerator) GenerateInvoicePDF(
	_ context.Context,
	invoice *entity.Invoice,
	tenant *entity.Tenant,
) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Tax Invoice", true).
		WithAuthor(tenant.NameEn, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(invoice))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(sellerRow(invoice, tenant))
	m.AddRows(buyerRow(invoice))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(invoice))
	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	for _, r := range footerRows(invoice) {
		m.AddRows(r)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generate document: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Sections ──────────────────────────────────────────────────────────────────

// headerRow: seller name + VAT (left), invoice number + date (right).
func headerRow(invoice *entity.Invoice) core.Row {
	title := "TAX INVOICE / فاتورة ضريبية"
	if invoice.Mode == entity.ModePhase1 {
		title = "SIMPLIFIED TAX INVOICE / فاتورة ضريبية مبسطة"
	}
	return row.New(18).Add(
		col.New(7).Add(
			text.New(invoice.SellerName, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("VAT: "+invoice.SellerVAT, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(title, props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(invoice.InvoiceNumber, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Date: "+invoice.InvoiceDate.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// sellerRow: registered names from the tenant registry.
func sellerRow(invoice *entity.Invoice, tenant *entity.Tenant) core.Row {
	name := tenant.NameEn
	if tenant.NameAr != "" {
		name = fmt.Sprintf("%s   |   %s", tenant.NameEn, tenant.NameAr)
	}
	return row.New(12).Add(
		col.New(12).Add(
			text.New("SELLER", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("%s   |   VAT: %s", name, invoice.SellerVAT),
				props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

// buyerRow: buyer name + VAT; simplified invoices may have neither.
func buyerRow(invoice *entity.Invoice) core.Row {
	name := nonEmpty(invoice.BuyerName, "—")
	vat := nonEmpty(invoice.BuyerVAT, "—")
	return row.New(14).Add(
		col.New(12).Add(
			text.New("BUYER", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(name, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New("VAT: "+vat, props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

// totalsRow: right-aligned totals block in SAR.
func totalsRow(invoice *entity.Invoice) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2,
		})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	grandLabel := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 2,
		})
	}
	grandValue := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 1,
		})
	}

	return row.New(26).Add(
		col.New(3),
		col.New(4).Add(
			label("Total (excl. VAT):"),
			label("VAT (15%):"),
			grandLabel("TOTAL DUE:"),
		),
		col.New(3).Add(
			value(domzatca.FormatAmount(invoice.TotalExclVAT)+" SAR"),
			value(domzatca.FormatAmount(invoice.TotalVAT)+" SAR"),
			grandValue(domzatca.FormatAmount(invoice.TotalInclVAT)+" SAR"),
		),
		col.New(2),
	)
}

// footerRows: invoice hash in chunks + TLV QR + legal note.
func footerRows(invoice *entity.Invoice) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("E-INVOICING INFORMATION", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
	}

	if invoice.Hash != "" {
		rows = append(rows, row.New(5).Add(col.New(12).Add(
			text.New("Invoice Hash (SHA-256):", props.Text{
				Style: fontstyle.Bold, Size: 7, Top: 1,
			}),
		)))
		for _, chunk := range splitEvery(invoice.Hash, 80) {
			rows = append(rows, row.New(4).Add(col.New(12).Add(
				text.New(chunk, props.Text{Size: 6.5, Color: colorGray, Top: 0.5, Left: 2}),
			)))
		}
	}

	rows = append(rows, row.New(3))

	if invoice.QRPayload != "" {
		rows = append(rows, row.New(50).Add(
			col.New(4).Add(code.NewQr(invoice.QRPayload, props.Rect{
				Percent: 95,
				Center:  true,
			})),
			col.New(8).Add(
				text.New("Scan the QR code with the ZATCA app\nto verify this invoice.", props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
				text.New("Status: "+invoice.Status, props.Text{
					Style: fontstyle.Bold, Size: 10, Top: 22,
					Left: 3, Color: colorPrimary,
				}),
			),
		))
	}

	rows = append(rows, row.New(8).Add(col.New(12).Add(
		text.New(
			"This e-invoice was generated in accordance with the ZATCA E-Invoicing "+
				"Regulation. Keep this document as fiscal evidence.",
			props.Text{Size: 6.5, Color: colorGray, Top: 2},
		),
	)))

	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// splitEvery splits s into chunks of at most n characters.
func splitEvery(s string, n int) []string {
	var parts []string
	for len(s) > n {
		parts = append(parts, s[:n])
		s = s[n:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
