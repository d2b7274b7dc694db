package counterparty

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/groweasy/groweasy/internal/platform/httpx"
	"github.com/groweasy/groweasy/internal/shared"
)

// Handler exposes counterparty aggregate reads.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs counterparty handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers counterparty routes on a tenant-scoped router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/customers", h.listKind(KindCustomer))
	r.Get("/suppliers", h.listKind(KindSupplier))
	r.Get("/customers/{name}", h.getKind(KindCustomer))
	r.Get("/suppliers/{name}", h.getKind(KindSupplier))
}

type counterpartyResponse struct {
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
	TaxID         string `json:"tax_id,omitempty"`
	TotalAmount   string `json:"total_amount"`
	DocumentCount int64  `json:"document_count"`
	UpdatedAt     string `json:"updated_at"`
}

func toResponse(c Counterparty) counterpartyResponse {
	return counterpartyResponse{
		Name:          c.Name,
		Email:         c.Email,
		Phone:         c.Phone,
		Address:       c.Address,
		TaxID:         c.TaxID,
		TotalAmount:   c.TotalAmount.String(),
		DocumentCount: c.DocumentCount,
		UpdatedAt:     c.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) listKind(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := shared.TenantFromContext(r.Context())
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant required")
			return
		}
		rows, err := h.repo.List(r.Context(), tenantID, kind)
		if err != nil {
			h.logger.Error("counterparty list failed", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		out := make([]counterpartyResponse, 0, len(rows))
		for _, c := range rows {
			out = append(out, toResponse(c))
		}
		httpx.JSON(w, http.StatusOK, out)
	}
}

func (h *Handler) getKind(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := shared.TenantFromContext(r.Context())
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant required")
			return
		}
		name := chi.URLParam(r, "name")
		row, err := h.repo.GetByName(r.Context(), tenantID, kind, name)
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		if err != nil {
			h.logger.Error("counterparty get failed", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		httpx.JSON(w, http.StatusOK, toResponse(row))
	}
}
