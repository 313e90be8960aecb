package zatca

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
)

// TLV tags defined by the ZATCA QR specification. Order is fixed and significant.
const (
	TagSellerName   = 1
	TagSellerVAT    = 2
	TagTimestamp    = 3
	TagInvoiceTotal = 4
	TagVATTotal     = 5
	TagXMLHash      = 6 // Phase-2 only
	TagSignature    = 7 // Phase-2 only, present when the document is signed
)

// ErrFieldTooLong is returned when a field value exceeds the one-byte TLV
// length limit of 255 UTF-8 bytes. Encoding produces no partial output.
type ErrFieldTooLong struct {
	Tag int
	Len int
}

func (e *ErrFieldTooLong) Error() string {
	return fmt.Sprintf("zatca: tlv field %d is %d bytes, max 255", e.Tag, e.Len)
}

// TLVField is one (tag, value) pair of the QR payload.
type TLVField struct {
	Tag   int
	Value string
}

// EncodeTLV encodes the ordered fields as 1-byte tag + 1-byte length + UTF-8
// value. Fails without partial output when any value exceeds 255 bytes.
func EncodeTLV(fields []TLVField) ([]byte, error) {
	for _, f := range fields {
		if n := len([]byte(f.Value)); n > 255 {
			return nil, &ErrFieldTooLong{Tag: f.Tag, Len: n}
		}
	}
	var buf bytes.Buffer
	for _, f := range fields {
		value := []byte(f.Value)
		buf.WriteByte(byte(f.Tag))
		buf.WriteByte(byte(len(value)))
		buf.Write(value)
	}
	return buf.Bytes(), nil
}

// DecodeTLV parses a TLV byte sequence back into its ordered fields.
func DecodeTLV(data []byte) ([]TLVField, error) {
	var fields []TLVField
	for i := 0; i < len(data); {
		if i+2 > len(data) {
			return nil, fmt.Errorf("zatca: truncated tlv header at offset %d", i)
		}
		tag := int(data[i])
		length := int(data[i+1])
		i += 2
		if i+length > len(data) {
			return nil, fmt.Errorf("zatca: tlv field %d value truncated", tag)
		}
		fields = append(fields, TLVField{Tag: tag, Value: string(data[i : i+length])})
		i += length
	}
	return fields, nil
}

// QRFields builds the ordered field set for an invoice. Phase-1 emits the five
// base fields; Phase-2 appends the XML hash and, when present, the signature.
func QRFields(inv *entity.Invoice, signature string) []TLVField {
	fields := []TLVField{
		{Tag: TagSellerName, Value: inv.SellerName},
		{Tag: TagSellerVAT, Value: inv.SellerVAT},
		{Tag: TagTimestamp, Value: inv.InvoiceDate.UTC().Format(time.RFC3339)},
		{Tag: TagInvoiceTotal, Value: FormatAmount(inv.TotalInclVAT)},
		{Tag: TagVATTotal, Value: FormatAmount(inv.TotalVAT)},
	}
	if inv.Mode == entity.ModePhase2 {
		fields = append(fields, TLVField{Tag: TagXMLHash, Value: inv.Hash})
		if signature != "" {
			fields = append(fields, TLVField{Tag: TagSignature, Value: signature})
		}
	}
	return fields
}

// QRPayload encodes the invoice's TLV fields and returns the base64 payload
// embedded in the rendered QR image.
func QRPayload(inv *entity.Invoice, signature string) (string, error) {
	raw, err := EncodeTLV(QRFields(inv, signature))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
