package invoicing

import (
	"crypto/tls"

	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
	"github.com/sadeem-tech/fatoora-api/internal/infrastructure/webhook"
)

// Signer signs a built XML document and returns the signed document plus the
// base64 SignatureValue (TLV tag 7 of the Phase-2 QR).
type Signer interface {
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, string, error)
}

// CertificateResolver resolves the signing material of a tenant for one
// environment. Returns domain.ErrSigningNotConfigured when the tenant has no
// material and domain.ErrTenantIsolation on a path escape attempt.
type CertificateResolver interface {
	Resolve(tenant entity.TenantContext, environment string) (tls.Certificate, error)
}

// QRRenderer renders a TLV payload as a base64 PNG. Rendering is a degradable
// step: the orchestrator treats its failure as a warning, never a pipeline error.
type QRRenderer interface {
	Render(payload string) (string, error)
}

// Notifier delivers terminal-state events to the tenant's webhook,
// fire-and-forget.
type Notifier interface {
	Notify(event webhook.Event)
}
