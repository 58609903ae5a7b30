package order

import (
	"encoding/json"
	"net/http"
	"strconv"

	"vox-be/internal/apperr"
	"vox-be/internal/logger"
	"vox-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxRequestBody = 1 << 20

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// CreateIntent handles POST /payment/intent.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	in, err := req.toInput(userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.svc.CreateIntent(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   MapIntentToResponse(res.Intent),
		"keyId":   res.KeyID,
	})
}

// Create handles POST /order/create.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	in, err := req.toInput(userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.svc.PlaceOrder(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "Order placed successfully",
		"order":           MapOrderToResponse(o),
		"orderId":         o.SequentialID,
		"razorpayOrderId": o.RazorpayOrderID,
	})
}

// List handles GET /order/list for the signed-in user.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	orders, err := h.svc.ListOrders(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		res = append(res, MapOrderToResponse(o))
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orders":  res,
	})
}

// Get handles GET /order/{sequentialId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseInt(chi.URLParam(r, "sequentialId"), 10, 64)
	if err != nil || seq <= 0 {
		writeError(w, r, apperr.New(apperr.KindNotFound, "get order", "order not found"))
		return
	}

	userID, _ := utils.GetUserIDFromContext(r.Context())
	o, err := h.svc.GetOrder(r.Context(), userID, seq)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   MapOrderToResponse(o),
	})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, "", "Invalid JSON in request body", err)
	}
	return nil
}

func userFrom(r *http.Request) *string {
	if id, ok := utils.GetUserIDFromContext(r.Context()); ok {
		return &id
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	if status >= http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("request failed",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}

	utils.WriteJSON(w, status, map[string]any{
		"success":   false,
		"message":   apperr.PublicMessage(err),
		"retryable": apperr.Retryable(err),
	})
}
