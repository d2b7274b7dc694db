package orders

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/groweasy/groweasy/internal/counterparty"
	"github.com/groweasy/groweasy/internal/inventory"
	"github.com/groweasy/groweasy/internal/sequence"
	"github.com/groweasy/groweasy/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StockAlertNote describes a product that crossed its reorder threshold
// during order processing, dispatched to the notification worker after
// commit. EventID deduplicates redelivery on the queue side.
type StockAlertNote struct {
	EventID       string              `json:"event_id"`
	TenantID      int64               `json:"tenant_id"`
	ProductID     int64               `json:"product_id"`
	ProductName   string              `json:"product_name"`
	CurrentStock  int64               `json:"current_stock"`
	MinStockLevel int64               `json:"min_stock_level"`
	AlertType     inventory.AlertType `json:"alert_type"`
}

// NotifierPort dispatches post-commit stock alert notifications.
type NotifierPort interface {
	NotifyStockAlert(ctx context.Context, note StockAlertNote) error
}

// AlertsInvalidator drops cached alert dashboards after stock changed.
type AlertsInvalidator interface {
	Invalidate(ctx context.Context, tenantID int64)
}

// MetricsPort counts processed orders by outcome and raised stock alerts.
type MetricsPort interface {
	ObserveOrder(orderType, outcome string)
	ObserveStockAlert(alertType string)
}

// Processor runs one order as a single all-or-nothing transaction:
// validate, assign the document number, lock and adjust stock, persist the
// document, fold the counterparty aggregate. A failed attempt leaves no
// rows behind; only the sequence value it consumed stays burned, which is
// the accepted price of the atomic counter design.
type Processor struct {
	repo        RepositoryPort
	audit       AuditPort
	notifier    NotifierPort
	invalidator AlertsInvalidator
	metrics     MetricsPort
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewProcessor builds Processor. Audit, notifier, invalidator and metrics
// are optional; the transaction semantics never depend on them.
func NewProcessor(repo RepositoryPort, audit AuditPort, notifier NotifierPort, invalidator AlertsInvalidator, metrics MetricsPort, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		repo:        repo,
		audit:       audit,
		notifier:    notifier,
		invalidator: invalidator,
		metrics:     metrics,
		validate:    validator.New(),
		logger:      logger,
	}
}

func (p *Processor) observeOrder(orderType OrderType, outcome string) {
	if p.metrics != nil {
		p.metrics.ObserveOrder(string(orderType), outcome)
	}
}

// ProcessSale processes a sales invoice and returns its document number.
func (p *Processor) ProcessSale(ctx context.Context, tenantID int64, payload Payload) (string, error) {
	return p.process(ctx, tenantID, payload, OrderTypeSale)
}

// ProcessPurchase processes a purchase order and returns its document number.
func (p *Processor) ProcessPurchase(ctx context.Context, tenantID int64, payload Payload) (string, error) {
	return p.process(ctx, tenantID, payload, OrderTypePurchase)
}

func (p *Processor) process(ctx context.Context, tenantID int64, payload Payload, orderType OrderType) (string, error) {
	if tenantID == 0 {
		p.observeOrder(orderType, "rejected")
		return "", &InvalidOrderDataError{Reason: "tenant required"}
	}
	if err := p.validatePayload(payload); err != nil {
		p.observeOrder(orderType, "rejected")
		return "", err
	}
	f := flows[orderType]

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		p.observeOrder(orderType, "rejected")
		return "", &InvalidOrderDataError{Reason: "payload not serialisable"}
	}

	status := payload.Status
	if status == "" {
		status = f.defaultStatus
	}

	var (
		productIDs []int64
		demands    []inventory.Demand
		perProduct = map[int64]int64{}
	)
	for _, item := range payload.Items {
		if item.ProductID == 0 {
			continue
		}
		if _, seen := perProduct[item.ProductID]; !seen {
			productIDs = append(productIDs, item.ProductID)
		}
		perProduct[item.ProductID] += item.Quantity
	}
	for _, id := range productIDs {
		demands = append(demands, inventory.Demand{ProductID: id, Quantity: perProduct[id]})
	}

	var (
		docNumber string
		notes     []StockAlertNote
	)
	err = p.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextDocumentNumber(ctx, tenantID, f.docType)
		if err != nil {
			return err
		}
		docNumber = number

		locked, err := tx.LockProducts(ctx, tenantID, productIDs)
		if err != nil {
			return err
		}
		if f.validateStock {
			if err := inventory.ValidateSale(locked, demands); err != nil {
				return err
			}
		}

		doc := Document{
			TenantID:         tenantID,
			DocumentType:     f.docType,
			DocumentNumber:   docNumber,
			CounterpartyName: payload.CounterpartyName,
			DocumentDate:     parseDocumentDate(payload.DocumentDate, time.Now().UTC()),
			DueDate:          parseDueDate(payload.DueDate),
			GrandTotal:       payload.GrandTotal,
			Status:           status,
			Payload:          payloadJSON,
		}
		if _, err := tx.InsertOrder(ctx, doc); err != nil {
			return err
		}

		for _, d := range demands {
			delta := d.Quantity
			var movementNote string
			if orderType == OrderTypeSale {
				delta = -delta
				movementNote = fmt.Sprintf("Sold %d units via Invoice: %s", d.Quantity, docNumber)
			} else {
				movementNote = fmt.Sprintf("Purchased %d units via PO: %s", d.Quantity, docNumber)
			}
			newStock, err := tx.ApplyDelta(ctx, inventory.DeltaParams{
				TenantID:    tenantID,
				ProductID:   d.ProductID,
				Quantity:    delta,
				Type:        f.movement,
				ReferenceID: docNumber,
				Notes:       movementNote,
			})
			if err != nil {
				return err
			}
			product := locked[d.ProductID]
			switch {
			case newStock == 0:
				notes = append(notes, StockAlertNote{
					EventID:  uuid.NewString(),
					TenantID: tenantID, ProductID: d.ProductID, ProductName: product.Name,
					CurrentStock: newStock, MinStockLevel: product.MinStockLevel,
					AlertType: inventory.AlertOutOfStock,
				})
			case newStock <= product.MinStockLevel:
				notes = append(notes, StockAlertNote{
					EventID:  uuid.NewString(),
					TenantID: tenantID, ProductID: d.ProductID, ProductName: product.Name,
					CurrentStock: newStock, MinStockLevel: product.MinStockLevel,
					AlertType: inventory.AlertLowStock,
				})
			}
		}

		return tx.UpsertCounterparty(ctx, counterparty.UpsertParams{
			TenantID: tenantID,
			Kind:     f.counterpart,
			Name:     payload.CounterpartyName,
			Contact: counterparty.Contact{
				Email:   payload.Email,
				Phone:   payload.Phone,
				Address: payload.Address,
				TaxID:   payload.TaxID,
			},
			Amount: payload.GrandTotal,
		})
	})
	if err != nil {
		if IsBusinessError(err) {
			p.observeOrder(orderType, "rejected")
			return "", err
		}
		pe := &ProcessingError{Op: string(orderType), Err: err}
		p.logger.Error("order processing failed",
			slog.Int64("tenant_id", tenantID),
			slog.String("order_type", string(orderType)),
			slog.String("payload_hash", payloadHash(payloadJSON)),
			slog.Any("error", err),
		)
		p.observeOrder(orderType, "error")
		return "", pe
	}

	p.observeOrder(orderType, "success")
	if p.metrics != nil {
		for _, note := range notes {
			p.metrics.ObserveStockAlert(string(note.AlertType))
		}
	}
	if p.invalidator != nil && len(productIDs) > 0 {
		p.invalidator.Invalidate(ctx, tenantID)
	}
	if p.audit != nil {
		_ = p.audit.Record(ctx, shared.AuditLog{
			TenantID: tenantID,
			Action:   "orders:" + string(orderType),
			Entity:   "order",
			EntityID: docNumber,
			Meta: map[string]any{
				"counterparty": payload.CounterpartyName,
				"grand_total":  payload.GrandTotal.String(),
				"items":        len(payload.Items),
			},
		})
	}
	if p.notifier != nil {
		for _, note := range notes {
			if err := p.notifier.NotifyStockAlert(ctx, note); err != nil {
				p.logger.Warn("stock alert dispatch failed",
					slog.Int64("tenant_id", tenantID),
					slog.Int64("product_id", note.ProductID),
					slog.Any("error", err),
				)
			}
		}
	}
	p.logger.Info("order processed",
		slog.Int64("tenant_id", tenantID),
		slog.String("order_type", string(orderType)),
		slog.String("document_number", docNumber),
	)
	return docNumber, nil
}

func (p *Processor) validatePayload(payload Payload) error {
	if len(payload.Items) == 0 {
		return &InvalidOrderDataError{Reason: "order must contain at least one item"}
	}
	if payload.CounterpartyName == "" {
		return &InvalidOrderDataError{Reason: "client/supplier name is required"}
	}
	if payload.GrandTotal.IsNegative() {
		return &InvalidOrderDataError{Reason: "grand total cannot be negative"}
	}
	if err := p.validate.Struct(payload); err != nil {
		return &InvalidOrderDataError{Reason: err.Error()}
	}
	return nil
}

// CurrentSequence returns the last issued number of a series for display.
// It must never be used for allocation.
func (p *Processor) CurrentSequence(ctx context.Context, tenantID int64, docType sequence.DocType) (int64, error) {
	if !docType.Valid() {
		return 0, sequence.ErrUnknownDocType
	}
	return p.repo.CurrentSequence(ctx, tenantID, docType)
}

func payloadHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:6])
}
