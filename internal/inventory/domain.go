package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates the closed set of stock-affecting events.
type MovementType string

const (
	// MovementSale deducts stock for a sales invoice line.
	MovementSale MovementType = "sale"
	// MovementPurchase adds stock received via a purchase order.
	MovementPurchase MovementType = "purchase"
	// MovementAdjustment is a manual correction, either sign.
	MovementAdjustment MovementType = "adjustment"
	// MovementInitial records opening stock at product creation.
	MovementInitial MovementType = "initial"
	// MovementRemoval deducts stock removed outside a sale.
	MovementRemoval MovementType = "removal"
	// MovementDamaged deducts stock written off as damaged.
	MovementDamaged MovementType = "damaged"
	// MovementFound adds stock discovered during a count.
	MovementFound MovementType = "found"
)

// Valid reports whether the movement type belongs to the closed set.
func (m MovementType) Valid() bool {
	switch m {
	case MovementSale, MovementPurchase, MovementAdjustment,
		MovementInitial, MovementRemoval, MovementDamaged, MovementFound:
		return true
	}
	return false
}

// AllowsSign reports whether the signed quantity is legal for the
// movement type. Adjustments may carry either sign; the rest are fixed.
func (m MovementType) AllowsSign(qty int64) bool {
	switch m {
	case MovementSale, MovementRemoval, MovementDamaged:
		return qty < 0
	case MovementPurchase, MovementInitial, MovementFound:
		return qty > 0
	case MovementAdjustment:
		return true
	}
	return false
}

// AlertType classifies a stock alert.
type AlertType string

const (
	// AlertLowStock fires while 0 < stock <= min level.
	AlertLowStock AlertType = "low_stock"
	// AlertOutOfStock fires when stock reaches 0.
	AlertOutOfStock AlertType = "out_of_stock"
)

// Product is one tenant-owned inventory item. CurrentStock only changes
// through ApplyDelta so it always reconciles with the movement log.
type Product struct {
	ID            int64
	TenantID      int64
	Name          string
	SKU           string
	Category      string
	Description   string
	CurrentStock  int64
	MinStockLevel int64
	CostPrice     decimal.Decimal
	SellingPrice  decimal.Decimal
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LockedProduct is the row snapshot taken under FOR UPDATE. Values stay
// authoritative until the surrounding transaction ends.
type LockedProduct struct {
	ID            int64
	Name          string
	CurrentStock  int64
	MinStockLevel int64
	IsActive      bool
}

// Movement is one immutable entry in the stock audit log.
type Movement struct {
	ID          int64
	TenantID    int64
	ProductID   int64
	Type        MovementType
	Quantity    int64
	ReferenceID string
	Notes       string
	CreatedAt   time.Time
}

// Alert is the derived low/out-of-stock state for a product. At most one
// unresolved alert exists per product at any time.
type Alert struct {
	ID         int64
	TenantID   int64
	ProductID  int64
	Type       AlertType
	Message    string
	IsResolved bool
	CreatedAt  time.Time
}

// LowStockAlert is the dashboard row shape for unresolved alerts.
type LowStockAlert struct {
	ProductID     int64     `json:"product_id"`
	ProductName   string    `json:"product_name"`
	CurrentStock  int64     `json:"current_stock"`
	MinStockLevel int64     `json:"min_stock_level"`
	AlertType     AlertType `json:"alert_type"`
	Message       string    `json:"message"`
}

// Demand is one product's requested quantity within an order, used for
// stock validation against locked rows.
type Demand struct {
	ProductID int64
	Quantity  int64
}

// DeltaParams describes one stock mutation. Quantity is the signed delta.
// ForceAudit logs a zero delta as an adjustment instead of dropping it.
type DeltaParams struct {
	TenantID    int64
	ProductID   int64
	Quantity    int64
	Type        MovementType
	ReferenceID string
	Notes       string
	ForceAudit  bool
}

// CreateProductInput carries the fields needed to register a product.
// Opening stock above zero is recorded as an initial movement.
type CreateProductInput struct {
	TenantID      int64
	Name          string `validate:"required"`
	SKU           string
	Category      string
	Description   string
	OpeningStock  int64 `validate:"gte=0"`
	MinStockLevel int64 `validate:"gte=0"`
	CostPrice     decimal.Decimal
	SellingPrice  decimal.Decimal
}

// AdjustInput describes a manual stock mutation outside order processing.
type AdjustInput struct {
	TenantID   int64
	ProductID  int64
	Quantity   int64
	Type       MovementType
	Notes      string
	ForceAudit bool
}

// MovementFilter narrows the movement log read.
type MovementFilter struct {
	ProductID int64
	Type      MovementType
	Limit     int
}

// InsufficientStockError reports a sale that would overdraw a product.
// It carries enough detail for an actionable user message.
type InsufficientStockError struct {
	ProductName string
	Requested   int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

// ProductNotFoundError reports a dangling or inactive product reference.
type ProductNotFoundError struct {
	ProductID int64
	Name      string
	Inactive  bool
}

func (e *ProductNotFoundError) Error() string {
	if e.Inactive {
		return fmt.Sprintf("product %q is inactive", e.Name)
	}
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// ErrNegativeStock guards ApplyDelta against driving stock below zero.
var ErrNegativeStock = errors.New("inventory: negative stock not allowed")

// ErrInvalidMovement rejects movement types outside the closed set or
// deltas whose sign contradicts the type.
var ErrInvalidMovement = errors.New("inventory: invalid movement")

// ErrNotFound indicates a missing product row.
var ErrNotFound = errors.New("inventory: product not found")

// ErrDuplicateSKU indicates a SKU collision within the tenant.
var ErrDuplicateSKU = errors.New("inventory: sku already in use")
