// Package certs resolves per-tenant signing certificate material from a
// convention-based directory layout and enforces that a resolved path can
// never cross a tenant boundary.
package certs

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sadeem-tech/fatoora-api/internal/domain"
	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
	"github.com/sadeem-tech/fatoora-api/internal/infrastructure/zatca/signer"
)

// Resolver locates tenant certificates under:
//
//	<base>/<tenant_id>/<environment>/cert.p12
//	<base>/<tenant_id>/<environment>/cert.pem [+ key.pem]
//
// Certificate files are read-only from the pipeline's perspective; rotation
// takes effect on the next invoice, not mid-flight.
type Resolver struct {
	basePath string
	password string // .p12 password, shared deployment-wide
}

// NewResolver builds the resolver rooted at basePath.
func NewResolver(basePath, p12Password string) *Resolver {
	return &Resolver{basePath: basePath, password: p12Password}
}

// Resolve returns the tenant's certificate for the given environment.
// A missing certificate is domain.ErrSigningNotConfigured (an operational
// gap, not bad input); a path escaping the tenant directory is
// domain.ErrTenantIsolation.
func (r *Resolver) Resolve(tenant entity.TenantContext, environment string) (tls.Certificate, error) {
	if tenant.TenantID == "" {
		return tls.Certificate{}, fmt.Errorf("certs: %w", domain.ErrSigningNotConfigured)
	}
	dir := filepath.Join(r.basePath, tenant.TenantID, environment)

	// The cleaned path must still belong to the requesting tenant's subtree,
	// even if tenant IDs were ever attacker-influenced.
	if err := r.checkContainment(dir, tenant.TenantID); err != nil {
		return tls.Certificate{}, err
	}

	if p12 := filepath.Join(dir, "cert.p12"); fileExists(p12) {
		cert, err := signer.LoadFromP12(p12, r.password)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("certs: %w: %v", domain.ErrSigningNotConfigured, err)
		}
		return cert, nil
	}

	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	if !fileExists(certPath) {
		return tls.Certificate{}, fmt.Errorf("certs: no certificate for tenant in %s: %w", environment, domain.ErrSigningNotConfigured)
	}
	if !fileExists(keyPath) {
		keyPath = "" // cert.pem may contain both cert and key
	}
	cert, err := signer.LoadFromPEM(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("certs: %w: %v", domain.ErrSigningNotConfigured, err)
	}
	if len(cert.Certificate) == 0 || cert.PrivateKey == nil {
		return tls.Certificate{}, fmt.Errorf("certs: empty certificate material: %w", domain.ErrSigningNotConfigured)
	}
	return cert, nil
}

// checkContainment verifies the resolved directory sits under the tenant's
// own subtree of the base path.
func (r *Resolver) checkContainment(dir, tenantID string) error {
	base, err := filepath.Abs(filepath.Join(r.basePath, tenantID))
	if err != nil {
		return fmt.Errorf("certs: %w", domain.ErrTenantIsolation)
	}
	resolved, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("certs: %w", domain.ErrTenantIsolation)
	}
	if resolved != base && !strings.HasPrefix(resolved, base+string(filepath.Separator)) {
		return fmt.Errorf("certs: resolved path %q escapes tenant directory: %w", resolved, domain.ErrTenantIsolation)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
