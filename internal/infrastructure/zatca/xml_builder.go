// Package zatca implements the infrastructure side of ZATCA e-invoicing:
// UBL 2.1 XML generation and the REST clearance/reporting client.
package zatca

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
	domzatca "github.com/sadeem-tech/fatoora-api/internal/domain/zatca"
)

// Official UBL 2.1 namespaces plus the signature namespaces used by the signer.
const (
	NsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NsCac     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NsCbc     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NsExt     = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
	NsDs      = "http://www.w3.org/2000/09/xmldsig#"
	NsXades   = "http://uri.etsi.org/01903/v1.3.2#"

	// ProfileID and CustomizationID required by the ZATCA implementation standard.
	profileID       = "reporting:1.0"
	customizationID = "urn:sa:qoyod"

	// InvoiceElementID is referenced by the signature (Reference URI).
	InvoiceElementID = "invoice"
)

// BuildContext carries everything needed to construct the invoice XML.
type BuildContext struct {
	Invoice      *entity.Invoice
	Items        []entity.LineItem
	Counter      int64  // ICV: per-tenant monotonically increasing counter
	PreviousHash string // PIH: hash of the previous invoice in the chain
	CurrencyCode string // defaults to SAR
}

// XMLBuilderService builds the UBL 2.1 invoice document (without signature).
type XMLBuilderService struct{}

// NewXMLBuilderService creates the service.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build generates the Invoice document per UBL 2.1 with ZATCA additional
// document references (ICV, PIH). The second ext:ExtensionContent is left
// empty for the signer to fill.
func (s *XMLBuilderService) Build(ctx *BuildContext) ([]byte, error) {
	if ctx == nil || ctx.Invoice == nil {
		return nil, fmt.Errorf("zatca: build context requires an invoice")
	}
	inv := ctx.Invoice
	currency := ctx.CurrencyCode
	if currency == "" {
		currency = "SAR"
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	// Root <Invoice> with mandatory attributes. Id is the signature Reference URI target.
	root := xml.StartElement{
		Name: xml.Name{Local: "Invoice"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "Id"}, Value: InvoiceElementID},
			{Name: xml.Name{Local: "xmlns"}, Value: NsInvoice},
			{Name: xml.Name{Local: "xmlns:cac"}, Value: NsCac},
			{Name: xml.Name{Local: "xmlns:cbc"}, Value: NsCbc},
			{Name: xml.Name{Local: "xmlns:ext"}, Value: NsExt},
			{Name: xml.Name{Local: "xmlns:ds"}, Value: NsDs},
			{Name: xml.Name{Local: "xmlns:xades"}, Value: NsXades},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	// ext:UBLExtensions must be the first child: the signer injects ds:Signature
	// into the second (empty) ExtensionContent.
	if err := s.writeUBLExtensions(enc); err != nil {
		return nil, err
	}

	writeLeaf(enc, "cbc:ProfileID", profileID, nil)
	writeLeaf(enc, "cbc:CustomizationID", customizationID, nil)
	writeLeaf(enc, "cbc:ID", inv.InvoiceNumber, nil)
	if inv.UUID != "" {
		writeLeaf(enc, "cbc:UUID", inv.UUID, nil)
	}
	issue := inv.InvoiceDate.UTC()
	writeLeaf(enc, "cbc:IssueDate", issue.Format("2006-01-02"), nil)
	writeLeaf(enc, "cbc:IssueTime", issue.Format("15:04:05"), nil)
	// 388 invoice, 381 credit note, 383 debit note. The name attribute
	// encodes the transaction subtype: 01 = standard (B2B, cleared).
	typeCode := inv.InvoiceType
	if typeCode == "" {
		typeCode = "388"
	}
	writeLeaf(enc, "cbc:InvoiceTypeCode", typeCode, []xml.Attr{
		{Name: xml.Name{Local: "name"}, Value: "0100000"},
	})
	writeLeaf(enc, "cbc:DocumentCurrencyCode", currency, nil)
	writeLeaf(enc, "cbc:TaxCurrencyCode", currency, nil)

	// ICV and PIH document references (ZATCA hash chain).
	s.writeDocumentReference(enc, "ICV", fmt.Sprintf("%d", ctx.Counter), "")
	if ctx.PreviousHash != "" {
		s.writeDocumentReference(enc, "PIH", "", ctx.PreviousHash)
	}

	s.writeParty(enc, "cac:AccountingSupplierParty", inv.SellerName, inv.SellerVAT)
	s.writeParty(enc, "cac:AccountingCustomerParty", inv.BuyerName, inv.BuyerVAT)

	s.writeTaxTotal(enc, inv, currency)
	s.writeMonetaryTotal(enc, inv, currency)

	for i, item := range ctx.Items {
		s.writeInvoiceLine(enc, i+1, item, currency)
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeUBLExtensions emits two UBLExtension blocks: ZATCA metadata and the
// empty placeholder the signer fills with ds:Signature.
func (s *XMLBuilderService) writeUBLExtensions(enc *xml.Encoder) error {
	exts := xml.StartElement{Name: xml.Name{Local: "ext:UBLExtensions"}}
	if err := enc.EncodeToken(exts); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		ext := xml.StartElement{Name: xml.Name{Local: "ext:UBLExtension"}}
		enc.EncodeToken(ext)
		if i == 0 {
			writeLeaf(enc, "ext:ExtensionURI", "urn:oasis:names:specification:ubl:dsig:enveloped:xades", nil)
		}
		content := xml.StartElement{Name: xml.Name{Local: "ext:ExtensionContent"}}
		enc.EncodeToken(content)
		enc.EncodeToken(content.End())
		enc.EncodeToken(ext.End())
	}
	return enc.EncodeToken(exts.End())
}

func (s *XMLBuilderService) writeDocumentReference(enc *xml.Encoder, id, uuid, hashB64 string) {
	ref := xml.StartElement{Name: xml.Name{Local: "cac:AdditionalDocumentReference"}}
	enc.EncodeToken(ref)
	writeLeaf(enc, "cbc:ID", id, nil)
	if uuid != "" {
		writeLeaf(enc, "cbc:UUID", uuid, nil)
	}
	if hashB64 != "" {
		att := xml.StartElement{Name: xml.Name{Local: "cac:Attachment"}}
		enc.EncodeToken(att)
		writeLeaf(enc, "cbc:EmbeddedDocumentBinaryObject", hashB64, []xml.Attr{
			{Name: xml.Name{Local: "mimeCode"}, Value: "text/plain"},
		})
		enc.EncodeToken(att.End())
	}
	enc.EncodeToken(ref.End())
}

func (s *XMLBuilderService) writeParty(enc *xml.Encoder, elem, name, vat string) {
	party := xml.StartElement{Name: xml.Name{Local: elem}}
	enc.EncodeToken(party)
	inner := xml.StartElement{Name: xml.Name{Local: "cac:Party"}}
	enc.EncodeToken(inner)

	if vat != "" {
		scheme := xml.StartElement{Name: xml.Name{Local: "cac:PartyTaxScheme"}}
		enc.EncodeToken(scheme)
		writeLeaf(enc, "cbc:CompanyID", vat, nil)
		tax := xml.StartElement{Name: xml.Name{Local: "cac:TaxScheme"}}
		enc.EncodeToken(tax)
		writeLeaf(enc, "cbc:ID", "VAT", nil)
		enc.EncodeToken(tax.End())
		enc.EncodeToken(scheme.End())
	}

	legal := xml.StartElement{Name: xml.Name{Local: "cac:PartyLegalEntity"}}
	enc.EncodeToken(legal)
	writeLeaf(enc, "cbc:RegistrationName", name, nil)
	enc.EncodeToken(legal.End())

	enc.EncodeToken(inner.End())
	enc.EncodeToken(party.End())
}

func (s *XMLBuilderService) writeTaxTotal(enc *xml.Encoder, inv *entity.Invoice, currency string) {
	total := xml.StartElement{Name: xml.Name{Local: "cac:TaxTotal"}}
	enc.EncodeToken(total)
	writeAmount(enc, "cbc:TaxAmount", inv.TotalVAT, currency)
	enc.EncodeToken(total.End())
}

func (s *XMLBuilderService) writeMonetaryTotal(enc *xml.Encoder, inv *entity.Invoice, currency string) {
	total := xml.StartElement{Name: xml.Name{Local: "cac:LegalMonetaryTotal"}}
	enc.EncodeToken(total)
	writeAmount(enc, "cbc:LineExtensionAmount", inv.TotalExclVAT, currency)
	writeAmount(enc, "cbc:TaxExclusiveAmount", inv.TotalExclVAT, currency)
	writeAmount(enc, "cbc:TaxInclusiveAmount", inv.TotalInclVAT, currency)
	writeAmount(enc, "cbc:PayableAmount", inv.TotalInclVAT, currency)
	enc.EncodeToken(total.End())
}

func (s *XMLBuilderService) writeInvoiceLine(enc *xml.Encoder, idx int, item entity.LineItem, currency string) {
	amounts := domzatca.CalculateLine(item)

	line := xml.StartElement{Name: xml.Name{Local: "cac:InvoiceLine"}}
	enc.EncodeToken(line)
	writeLeaf(enc, "cbc:ID", fmt.Sprintf("%d", idx), nil)
	writeLeaf(enc, "cbc:InvoicedQuantity", item.Quantity.String(), []xml.Attr{
		{Name: xml.Name{Local: "unitCode"}, Value: "PCE"},
	})
	writeAmount(enc, "cbc:LineExtensionAmount", amounts.TaxableAmount, currency)

	taxTotal := xml.StartElement{Name: xml.Name{Local: "cac:TaxTotal"}}
	enc.EncodeToken(taxTotal)
	writeAmount(enc, "cbc:TaxAmount", amounts.TaxAmount, currency)
	writeAmount(enc, "cbc:RoundingAmount", amounts.Total, currency)
	enc.EncodeToken(taxTotal.End())

	elem := xml.StartElement{Name: xml.Name{Local: "cac:Item"}}
	enc.EncodeToken(elem)
	writeLeaf(enc, "cbc:Name", item.Name, nil)
	category := xml.StartElement{Name: xml.Name{Local: "cac:ClassifiedTaxCategory"}}
	enc.EncodeToken(category)
	writeLeaf(enc, "cbc:ID", taxCategoryOrDefault(item.TaxCategory), nil)
	writeLeaf(enc, "cbc:Percent", item.TaxRate.StringFixed(2), nil)
	tax := xml.StartElement{Name: xml.Name{Local: "cac:TaxScheme"}}
	enc.EncodeToken(tax)
	writeLeaf(enc, "cbc:ID", "VAT", nil)
	enc.EncodeToken(tax.End())
	enc.EncodeToken(category.End())
	enc.EncodeToken(elem.End())

	price := xml.StartElement{Name: xml.Name{Local: "cac:Price"}}
	enc.EncodeToken(price)
	writeAmount(enc, "cbc:PriceAmount", item.UnitPrice, currency)
	enc.EncodeToken(price.End())

	enc.EncodeToken(line.End())
}

// ── low-level helpers ─────────────────────────────────────────────────────────

func writeLeaf(enc *xml.Encoder, name, value string, attrs []xml.Attr) {
	start := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	enc.EncodeToken(start)
	enc.EncodeToken(xml.CharData(value))
	enc.EncodeToken(start.End())
}

func writeAmount(enc *xml.Encoder, name string, amount decimal.Decimal, currency string) {
	writeLeaf(enc, name, domzatca.FormatAmount(amount), []xml.Attr{
		{Name: xml.Name{Local: "currencyID"}, Value: currency},
	})
}

func taxCategoryOrDefault(cat string) string {
	if cat == "" {
		return "S" // standard rate
	}
	return cat
}
