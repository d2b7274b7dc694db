package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/groweasy/groweasy/internal/inventory"
	"github.com/groweasy/groweasy/internal/platform/httpx"
	"github.com/groweasy/groweasy/internal/sequence"
	"github.com/groweasy/groweasy/internal/shared"
)

// Handler wires HTTP endpoints for order processing.
type Handler struct {
	logger    *slog.Logger
	processor *Processor
	repo      *Repository
}

// NewHandler constructs orders handler.
func NewHandler(logger *slog.Logger, processor *Processor, repo *Repository) *Handler {
	return &Handler{logger: logger, processor: processor, repo: repo}
}

// MountRoutes registers order routes on a tenant-scoped router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices", h.createInvoice)
	r.Post("/purchase-orders", h.createPurchaseOrder)
	r.Get("/documents", h.listDocuments)
	r.Get("/documents/{documentNumber}", h.getDocument)
	r.Get("/sequences/{docType}", h.currentSequence)
}

type documentResponse struct {
	DocumentType     string  `json:"document_type"`
	DocumentNumber   string  `json:"document_number"`
	CounterpartyName string  `json:"counterparty_name"`
	DocumentDate     string  `json:"document_date"`
	DueDate          *string `json:"due_date,omitempty"`
	GrandTotal       string  `json:"grand_total"`
	Status           string  `json:"status"`
	CreatedAt        string  `json:"created_at"`
}

func toDocumentResponse(d Document) documentResponse {
	resp := documentResponse{
		DocumentType:     string(d.DocumentType),
		DocumentNumber:   d.DocumentNumber,
		CounterpartyName: d.CounterpartyName,
		DocumentDate:     d.DocumentDate.Format("2006-01-02"),
		GrandTotal:       d.GrandTotal.String(),
		Status:           d.Status,
		CreatedAt:        d.CreatedAt.Format(time.RFC3339),
	}
	if d.DueDate != nil {
		s := d.DueDate.Format("2006-01-02")
		resp.DueDate = &s
	}
	return resp
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.processor.ProcessSale)
}

func (h *Handler) createPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.processor.ProcessPurchase)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, tenantID int64, payload Payload) (string, error)) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant required")
		return
	}
	var payload Payload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	number, err := run(r.Context(), tenantID, payload)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"document_number": number})
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant required")
		return
	}
	filter := ListFilter{}
	q := r.URL.Query()
	if s := q.Get("type"); s != "" {
		docType := sequence.DocType(s)
		if !docType.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown document type")
			return
		}
		filter.DocumentType = docType
	}
	applyListQuery(&filter, q)
	documents, err := h.repo.List(r.Context(), tenantID, filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]documentResponse, 0, len(documents))
	for _, d := range documents {
		out = append(out, toDocumentResponse(d))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// applyListQuery fills status, date range and paging from the query
// string. Non-positive paging values are ignored instead of being
// forwarded to SQL, where a negative OFFSET is an error.
func applyListQuery(filter *ListFilter, q url.Values) {
	filter.Status = q.Get("status")
	if s := q.Get("from"); s != "" {
		if d, err := time.Parse("2006-01-02", s); err == nil {
			filter.DateFrom = &d
		}
	}
	if s := q.Get("to"); s != "" {
		if d, err := time.Parse("2006-01-02", s); err == nil {
			filter.DateTo = &d
		}
	}
	if s := q.Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if s := q.Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			filter.Offset = n
		}
	}
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant required")
		return
	}
	number := chi.URLParam(r, "documentNumber")
	docType := sequence.DocTypeInvoice
	if s := r.URL.Query().Get("type"); s != "" {
		docType = sequence.DocType(s)
		if !docType.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown document type")
			return
		}
	}
	document, err := h.repo.GetByNumber(r.Context(), tenantID, docType, number)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(document))
}

func (h *Handler) currentSequence(w http.ResponseWriter, r *http.Request) {
	tenantID, err := shared.TenantFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant required")
		return
	}
	docType := sequence.DocType(chi.URLParam(r, "docType"))
	current, err := h.processor.CurrentSequence(r.Context(), tenantID, docType)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"doc_type": docType,
		"current":  current,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var invalid *InvalidOrderDataError
	var shortfall *inventory.InsufficientStockError
	var missing *inventory.ProductNotFoundError
	switch {
	case errors.As(err, &invalid):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &missing):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &shortfall):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, sequence.ErrUnknownDocType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("order request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
