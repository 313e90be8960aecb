package repository

import (
	"context"

	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
)

// TenantRepository is the persistence port for the tenant registry.
type TenantRepository interface {
	Create(ctx context.Context, tenant *entity.Tenant) error
	GetByID(ctx context.Context, id string) (*entity.Tenant, error)
	GetByVAT(ctx context.Context, vat string) (*entity.Tenant, error)
}
