package zatca

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// InvoiceHash computes the SHA-256 content hash of the canonical XML and
// returns it base64-encoded, the form ZATCA expects in the QR (tag 6), the
// clearance request and the next invoice's PIH.
func InvoiceHash(canonicalXML []byte) string {
	sum := sha256.Sum256(canonicalXML)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// InvoiceHashHex returns the same digest hex-encoded, used in the UBL
// additional document reference.
func InvoiceHashHex(canonicalXML []byte) string {
	sum := sha256.Sum256(canonicalXML)
	return hex.EncodeToString(sum[:])
}

// GenesisPreviousHash is the PIH of the first invoice in a tenant's chain:
// SHA-256 of "0", base64, per the ZATCA implementation standard.
func GenesisPreviousHash() string {
	return InvoiceHash([]byte("0"))
}
