package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/groweasy/groweasy/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxLedger) error) error
	CreateProduct(ctx context.Context, input CreateProductInput) (Product, error)
	GetProduct(ctx context.Context, tenantID, id int64) (Product, error)
	GetProductBySKU(ctx context.Context, tenantID int64, sku string) (Product, error)
	ListProducts(ctx context.Context, tenantID int64, activeOnly bool) ([]Product, error)
	UpdateProduct(ctx context.Context, tenantID, id int64, input UpdateProductInput) error
	DeactivateProduct(ctx context.Context, tenantID, id int64) error
	ListMovements(ctx context.Context, tenantID int64, filter MovementFilter) ([]Movement, error)
	GetLowStockAlerts(ctx context.Context, tenantID int64) ([]LowStockAlert, error)
	ResolveAlert(ctx context.Context, tenantID, alertID int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations outside order processing:
// catalog maintenance, manual adjustments and the alert dashboard read.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache *AlertsCache
	group singleflight.Group
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cache *AlertsCache) *Service {
	return &Service{repo: repo, audit: audit, cache: cache}
}

// CreateProduct registers a product, recording opening stock as an initial
// movement.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	if input.TenantID == 0 {
		return Product{}, errors.New("inventory: tenant required")
	}
	if input.Name == "" {
		return Product{}, errors.New("inventory: product name required")
	}
	if input.OpeningStock < 0 || input.MinStockLevel < 0 {
		return Product{}, errors.New("inventory: stock levels must be >= 0")
	}
	if input.CostPrice.IsNegative() || input.SellingPrice.IsNegative() {
		return Product{}, errors.New("inventory: prices must be >= 0")
	}

	product, err := s.repo.CreateProduct(ctx, input)
	if err != nil {
		return Product{}, err
	}
	s.cache.Invalidate(ctx, input.TenantID)
	s.recordAudit(ctx, input.TenantID, "inventory:create", product.ID, map[string]any{
		"name":          product.Name,
		"opening_stock": input.OpeningStock,
	})
	return product, nil
}

// adjustable movement types for manual mutations. Sale, purchase and
// initial are reserved for the order processor and product creation.
func adjustable(t MovementType) bool {
	switch t {
	case MovementAdjustment, MovementRemoval, MovementDamaged, MovementFound:
		return true
	}
	return false
}

// Adjust applies a signed manual delta under the product's row lock.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (int64, error) {
	if input.TenantID == 0 || input.ProductID == 0 {
		return 0, errors.New("inventory: tenant and product required")
	}
	if !adjustable(input.Type) {
		return 0, fmt.Errorf("%w: type %q not allowed for manual adjustment", ErrInvalidMovement, input.Type)
	}
	if input.Quantity == 0 && !input.ForceAudit {
		return 0, fmt.Errorf("%w: zero delta", ErrInvalidMovement)
	}

	var newStock int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxLedger) error {
		if _, err := tx.LockProducts(ctx, input.TenantID, []int64{input.ProductID}); err != nil {
			return err
		}
		n, err := tx.ApplyDelta(ctx, DeltaParams{
			TenantID:   input.TenantID,
			ProductID:  input.ProductID,
			Quantity:   input.Quantity,
			Type:       input.Type,
			Notes:      input.Notes,
			ForceAudit: input.ForceAudit,
		})
		if err != nil {
			return err
		}
		newStock = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.cache.Invalidate(ctx, input.TenantID)
	s.recordAudit(ctx, input.TenantID, "inventory:"+string(input.Type), input.ProductID, map[string]any{
		"qty":       input.Quantity,
		"new_stock": newStock,
		"notes":     input.Notes,
	})
	return newStock, nil
}

// SetQuantity sets an absolute stock level. The delta is computed under
// the row lock so a concurrent mutation cannot be silently overwritten.
func (s *Service) SetQuantity(ctx context.Context, tenantID, productID, target int64, notes string) (int64, error) {
	if tenantID == 0 || productID == 0 {
		return 0, errors.New("inventory: tenant and product required")
	}
	if target < 0 {
		return 0, ErrNegativeStock
	}

	var newStock int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxLedger) error {
		n, err := tx.SetStock(ctx, tenantID, productID, target, notes)
		if err != nil {
			return err
		}
		newStock = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.cache.Invalidate(ctx, tenantID)
	s.recordAudit(ctx, tenantID, "inventory:set_quantity", productID, map[string]any{
		"target": target,
		"notes":  notes,
	})
	return newStock, nil
}

// LowStockAlerts returns the tenant's unresolved alerts, served from the
// cache when possible. Concurrent misses for the same tenant collapse
// into a single database read.
func (s *Service) LowStockAlerts(ctx context.Context, tenantID int64) ([]LowStockAlert, error) {
	if alerts, ok := s.cache.Get(ctx, tenantID); ok {
		return alerts, nil
	}
	v, err, _ := s.group.Do(strconv.FormatInt(tenantID, 10), func() (any, error) {
		alerts, err := s.repo.GetLowStockAlerts(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, tenantID, alerts)
		return alerts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]LowStockAlert), nil
}

// ResolveAlert marks an alert as handled and drops the cached dashboard.
func (s *Service) ResolveAlert(ctx context.Context, tenantID, alertID int64) error {
	if err := s.repo.ResolveAlert(ctx, tenantID, alertID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, tenantID)
	return nil
}

// Products lists the tenant's catalog.
func (s *Service) Products(ctx context.Context, tenantID int64, activeOnly bool) ([]Product, error) {
	return s.repo.ListProducts(ctx, tenantID, activeOnly)
}

// Product returns one product.
func (s *Service) Product(ctx context.Context, tenantID, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, tenantID, id)
}

// ProductBySKU returns one active product by SKU.
func (s *Service) ProductBySKU(ctx context.Context, tenantID int64, sku string) (Product, error) {
	return s.repo.GetProductBySKU(ctx, tenantID, sku)
}

// UpdateProduct applies catalog field changes.
func (s *Service) UpdateProduct(ctx context.Context, tenantID, id int64, input UpdateProductInput) error {
	if err := s.repo.UpdateProduct(ctx, tenantID, id, input); err != nil {
		return err
	}
	s.recordAudit(ctx, tenantID, "inventory:update", id, nil)
	return nil
}

// DeactivateProduct soft-deletes a product.
func (s *Service) DeactivateProduct(ctx context.Context, tenantID, id int64) error {
	if err := s.repo.DeactivateProduct(ctx, tenantID, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, tenantID)
	s.recordAudit(ctx, tenantID, "inventory:deactivate", id, nil)
	return nil
}

// Movements reads the audit log.
func (s *Service) Movements(ctx context.Context, tenantID int64, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, tenantID, filter)
}

func (s *Service) recordAudit(ctx context.Context, tenantID int64, action string, productID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		Action:   action,
		Entity:   "inventory_item",
		EntityID: strconv.FormatInt(productID, 10),
		Meta:     meta,
	})
}
