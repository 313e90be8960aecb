// Package qr renders the base64 TLV payload into a scannable PNG image.
// Rendering is best-effort: a failure here never fails invoice processing,
// the TLV compliance payload stays intact.
package qr

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	qrcode "github.com/boombuler/barcode/qr"
)

// Renderer produces base64 PNG QR images at a fixed pixel size.
type Renderer struct {
	pixels int
}

// NewRenderer builds the renderer; pixels is the square image size.
func NewRenderer(pixels int) *Renderer {
	if pixels <= 0 {
		pixels = 256
	}
	return &Renderer{pixels: pixels}
}

// Render encodes the payload (the base64 TLV string) as a QR image and
// returns it base64-encoded.
func (r *Renderer) Render(payload string) (string, error) {
	code, err := qrcode.Encode(payload, qrcode.M, qrcode.Auto)
	if err != nil {
		return "", fmt.Errorf("qr: encode: %w", err)
	}
	scaled, err := barcode.Scale(code, r.pixels, r.pixels)
	if err != nil {
		return "", fmt.Errorf("qr: scale: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return "", fmt.Errorf("qr: png encode: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
