package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sadeem-tech/fatoora-api/internal/domain"
	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
	"github.com/sadeem-tech/fatoora-api/internal/domain/repository"
)

var _ repository.TenantRepository = (*TenantRepo)(nil)

// TenantRepo implements the tenant registry over PostgreSQL.
type TenantRepo struct {
	q Querier
}

// NewTenantRepository builds the adapter. Pass a pool or tx (Querier).
func NewTenantRepository(q Querier) *TenantRepo {
	return &TenantRepo{q: q}
}

// Create registers a new tenant. The VAT number is unique across the registry.
func (r *TenantRepo) Create(ctx context.Context, tenant *entity.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	query := `
		INSERT INTO tenants (id, vat, name_en, name_ar, webhook_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		tenant.ID, tenant.VAT, tenant.NameEn, nullIfEmpty(tenant.NameAr),
		nullIfEmpty(tenant.WebhookURL), tenant.CreatedAt, tenant.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant vat %s: %w", tenant.VAT, domain.ErrConflict)
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// GetByID returns the tenant or nil when not found.
func (r *TenantRepo) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	return r.getBy(ctx, "id", id)
}

// GetByVAT returns the tenant or nil when not found.
func (r *TenantRepo) GetByVAT(ctx context.Context, vat string) (*entity.Tenant, error) {
	return r.getBy(ctx, "vat", vat)
}

func (r *TenantRepo) getBy(ctx context.Context, column, value string) (*entity.Tenant, error) {
	query := fmt.Sprintf(`
		SELECT id, vat, name_en, COALESCE(name_ar, ''), COALESCE(webhook_url, ''), created_at, updated_at
		FROM tenants WHERE %s = $1`, column)
	var t entity.Tenant
	err := r.q.QueryRow(ctx, query, value).Scan(
		&t.ID, &t.VAT, &t.NameEn, &t.NameAr, &t.WebhookURL, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}
