package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/vending/internal/core/domain"
	"github.com/rl1809/vending/internal/core/service"
	"github.com/rl1809/vending/internal/port"
)

const itemsPath = "/api/items/"

type HTTPHandler struct {
	vending     *service.VendingService
	idempotency port.IdempotencyRepository // optional
	logger      *zap.Logger
}

type PurchaseHTTPRequest struct {
	RequestID string `json:"request_id"`
	Position  *int   `json:"position"`
}

type MoneyHTTPRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type StockHTTPRequest struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Count    int             `json:"count"`
	Price    decimal.Decimal `json:"price"`
	Position *int            `json:"position,omitempty"`
}

type VendingHTTPResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Item    *ItemView        `json:"item,omitempty"`
	Change  *decimal.Decimal `json:"change,omitempty"`
	TxID    string           `json:"tx_id,omitempty"`
}

func NewHTTPHandler(vending *service.VendingService, idempotency port.IdempotencyRepository, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{vending: vending, idempotency: idempotency, logger: logger}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/items", h.ListItems)
	mux.HandleFunc(itemsPath, h.RemoveItem)
	mux.HandleFunc("/api/money", h.AddMoney)
	mux.HandleFunc("/api/purchase", h.Purchase)
	mux.HandleFunc("/api/cancel", h.Cancel)
	mux.HandleFunc("/api/stock", h.Stock)
}

func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	slots := h.vending.List(r.Context())
	items := make([]ItemView, 0, len(slots))
	for _, slot := range slots {
		items = append(items, newItemView(slot.Position, slot.Item))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HTTPHandler) AddMoney(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MoneyHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, VendingHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	if err := h.vending.AddMoney(r.Context(), req.Amount); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, VendingHTTPResponse{
		Success: true,
		Message: "money accepted",
	})
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PurchaseHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, VendingHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	if req.RequestID == "" || req.Position == nil {
		writeJSON(w, http.StatusBadRequest, VendingHTTPResponse{
			Success: false,
			Message: "missing required fields",
		})
		return
	}

	if h.idempotency != nil {
		ok, err := h.idempotency.SetIdempotency(r.Context(), req.RequestID)
		if err != nil {
			h.logger.Error("idempotency check failed", zap.String("request_id", req.RequestID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, VendingHTTPResponse{
				Success: false,
				Message: "internal error",
			})
			return
		}
		if !ok {
			writeJSON(w, http.StatusConflict, VendingHTTPResponse{
				Success: false,
				Message: "duplicate request",
			})
			return
		}
	}

	purchase, err := h.vending.Buy(r.Context(), *req.Position)
	if err != nil {
		if chargeFree(err) {
			h.releaseRequest(r.Context(), req.RequestID)
		}
		h.writeError(w, err)
		return
	}

	item := newItemView(purchase.Position, purchase.Item)
	writeJSON(w, http.StatusOK, VendingHTTPResponse{
		Success: true,
		Message: "item dispensed",
		Item:    &item,
		Change:  changePtr(purchase.Change),
		TxID:    purchase.Tx.ID.String(),
	})
}

func (h *HTTPHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	change, err := h.vending.Cancel(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, VendingHTTPResponse{
		Success: true,
		Message: "transaction cancelled",
		Change:  changePtr(change),
	})
}

func (h *HTTPHandler) Stock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StockHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, VendingHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	if req.Code == "" || req.Count <= 0 || req.Price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, VendingHTTPResponse{
			Success: false,
			Message: "missing required fields",
		})
		return
	}

	product := domain.NewProduct(req.Code, req.Name, req.Count, req.Price)
	if err := h.vending.Stock(r.Context(), product, req.Position); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, VendingHTTPResponse{
		Success: true,
		Message: "item stocked",
	})
}

func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	code := strings.TrimPrefix(r.URL.Path, itemsPath)
	if code == "" || strings.Contains(code, "/") {
		writeJSON(w, http.StatusBadRequest, VendingHTTPResponse{
			Success: false,
			Message: "missing item code",
		})
		return
	}

	if err := h.vending.Remove(r.Context(), code); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, VendingHTTPResponse{
		Success: true,
		Message: "item removed",
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) releaseRequest(ctx context.Context, requestID string) {
	if h.idempotency == nil {
		return
	}
	if err := h.idempotency.ReleaseIdempotency(ctx, requestID); err != nil {
		h.logger.Warn("failed to release request id", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, VendingHTTPResponse{
		Success: false,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
