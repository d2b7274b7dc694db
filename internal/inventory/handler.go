package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/groweasy/groweasy/internal/platform/httpx"
	"github.com/groweasy/groweasy/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes on a tenant-scoped router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{productID}", h.getProduct)
	r.Patch("/products/{productID}", h.updateProduct)
	r.Delete("/products/{productID}", h.deactivateProduct)
	r.Post("/products/{productID}/adjustments", h.adjust)
	r.Put("/products/{productID}/stock", h.setQuantity)
	r.Get("/movements", h.listMovements)
	r.Get("/alerts", h.listAlerts)
	r.Post("/alerts/{alertID}/resolve", h.resolveAlert)
}

type productRequest struct {
	Name          string `json:"name"`
	SKU           string `json:"sku"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	OpeningStock  int64  `json:"opening_stock"`
	MinStockLevel int64  `json:"min_stock_level"`
	CostPrice     string `json:"cost_price"`
	SellingPrice  string `json:"selling_price"`
}

type productResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SKU           string `json:"sku,omitempty"`
	Category      string `json:"category,omitempty"`
	Description   string `json:"description,omitempty"`
	CurrentStock  int64  `json:"current_stock"`
	MinStockLevel int64  `json:"min_stock_level"`
	CostPrice     string `json:"cost_price"`
	SellingPrice  string `json:"selling_price"`
	IsActive      bool   `json:"is_active"`
}

func toProductResponse(p Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		SKU:           p.SKU,
		Category:      p.Category,
		Description:   p.Description,
		CurrentStock:  p.CurrentStock,
		MinStockLevel: p.MinStockLevel,
		CostPrice:     p.CostPrice.String(),
		SellingPrice:  p.SellingPrice.String(),
		IsActive:      p.IsActive,
	}
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant required")
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	cost, selling, ok := parsePrices(w, req.CostPrice, req.SellingPrice)
	if !ok {
		return
	}
	product, err := h.service.CreateProduct(r.Context(), CreateProductInput{
		TenantID:      tenantID,
		Name:          req.Name,
		SKU:           req.SKU,
		Category:      req.Category,
		Description:   req.Description,
		OpeningStock:  req.OpeningStock,
		MinStockLevel: req.MinStockLevel,
		CostPrice:     cost,
		SellingPrice:  selling,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant required")
		return
	}
	activeOnly := r.URL.Query().Get("include_inactive") == ""
	if sku := r.URL.Query().Get("sku"); sku != "" {
		product, err := h.service.ProductBySKU(r.Context(), tenantID, sku)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, []productResponse{toProductResponse(product)})
		return
	}
	products, err := h.service.Products(r.Context(), tenantID, activeOnly)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	tenantID, productID, ok := h.tenantAndProduct(w, r)
	if !ok {
		return
	}
	product, err := h.service.Product(r.Context(), tenantID, productID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(product))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	tenantID, productID, ok := h.tenantAndProduct(w, r)
	if !ok {
		return
	}
	var req struct {
		Name          *string `json:"name"`
		SKU           *string `json:"sku"`
		Category      *string `json:"category"`
		Description   *string `json:"description"`
		MinStockLevel *int64  `json:"min_stock_level"`
		CostPrice     *string `json:"cost_price"`
		SellingPrice  *string `json:"selling_price"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	input := UpdateProductInput{
		Name:          req.Name,
		SKU:           req.SKU,
		Category:      req.Category,
		Description:   req.Description,
		MinStockLevel: req.MinStockLevel,
	}
	if req.CostPrice != nil {
		d, err := decimal.NewFromString(*req.CostPrice)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid cost price")
			return
		}
		input.CostPrice = &d
	}
	if req.SellingPrice != nil {
		d, err := decimal.NewFromString(*req.SellingPrice)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid selling price")
			return
		}
		input.SellingPrice = &d
	}
	if err := h.service.UpdateProduct(r.Context(), tenantID, productID, input); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deactivateProduct(w http.ResponseWriter, r *http.Request) {
	tenantID, productID, ok := h.tenantAndProduct(w, r)
	if !ok {
		return
	}
	if err := h.service.DeactivateProduct(r.Context(), tenantID, productID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

type adjustRequest struct {
	Quantity   int64  `json:"quantity"`
	Type       string `json:"type"`
	Notes      string `json:"notes"`
	ForceAudit bool   `json:"force_audit"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	tenantID, productID, ok := h.tenantAndProduct(w, r)
	if !ok {
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	movementType := MovementType(req.Type)
	if req.Type == "" {
		movementType = MovementAdjustment
	}
	newStock, err := h.service.Adjust(r.Context(), AdjustInput{
		TenantID:   tenantID,
		ProductID:  productID,
		Quantity:   req.Quantity,
		Type:       movementType,
		Notes:      req.Notes,
		ForceAudit: req.ForceAudit,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"current_stock": newStock})
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	tenantID, productID, ok := h.tenantAndProduct(w, r)
	if !ok {
		return
	}
	var req struct {
		Quantity int64  `json:"quantity"`
		Notes    string `json:"notes"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	newStock, err := h.service.SetQuantity(r.Context(), tenantID, productID, req.Quantity, req.Notes)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"current_stock": newStock})
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant required")
		return
	}
	filter := MovementFilter{}
	q := r.URL.Query()
	if s := q.Get("product_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product_id")
			return
		}
		filter.ProductID = id
	}
	if s := q.Get("type"); s != "" {
		filter.Type = MovementType(s)
	}
	if s := q.Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			filter.Limit = n
		}
	}
	movements, err := h.service.Movements(r.Context(), tenantID, filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant required")
		return
	}
	alerts, err := h.service.LowStockAlerts(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if alerts == nil {
		alerts = []LowStockAlert{}
	}
	httpx.JSON(w, http.StatusOK, alerts)
}

func (h *Handler) resolveAlert(w http.ResponseWriter, r *http.Request) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant required")
		return
	}
	alertID, err := strconv.ParseInt(chi.URLParam(r, "alertID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid alert id")
		return
	}
	if err := h.service.ResolveAlert(r.Context(), tenantID, alertID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (h *Handler) tenantAndProduct(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant required")
		return 0, 0, false
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return 0, 0, false
	}
	return tenantID, productID, true
}

func parsePrices(w http.ResponseWriter, costStr, sellingStr string) (decimal.Decimal, decimal.Decimal, bool) {
	cost := decimal.Zero
	selling := decimal.Zero
	var err error
	if costStr != "" {
		if cost, err = decimal.NewFromString(costStr); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid cost price")
			return cost, selling, false
		}
	}
	if sellingStr != "" {
		if selling, err = decimal.NewFromString(sellingStr); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid selling price")
			return cost, selling, false
		}
	}
	return cost, selling, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var notFound *ProductNotFoundError
	var shortfall *InsufficientStockError
	switch {
	case errors.Is(err, ErrNotFound), errors.As(err, &notFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateSKU):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.As(err, &shortfall), errors.Is(err, ErrNegativeStock), errors.Is(err, ErrInvalidMovement):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Business Rule Violation", err.Error())
	default:
		h.logger.Error("inventory request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
