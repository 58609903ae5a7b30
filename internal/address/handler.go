package address

import (
	"encoding/json"
	"net/http"
	"strings"

	"vox-be/internal/apperr"
	"vox-be/internal/utils"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /user/address.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input CreateAddressInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, apperr.Validation("invalid JSON payload"))
		return
	}

	phone, err := sessionPhone(r, input.PhoneNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	input.PhoneNumber = phone

	addr, err := h.svc.Create(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"address": addr,
	})
}

// List handles GET /user/address. A phone query param, if given, must be the
// session phone.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	phone, err := sessionPhone(r, r.URL.Query().Get("phone"))
	if err != nil {
		writeError(w, err)
		return
	}

	addresses, err := h.svc.ListByPhone(r.Context(), phone)
	if err != nil {
		writeError(w, err)
		return
	}
	if addresses == nil {
		addresses = []*Address{}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"addresses": addresses,
	})
}

// sessionPhone resolves the phone a request may act on. Other users' phones
// read as not found so their existence is not disclosed.
func sessionPhone(r *http.Request, requested string) (string, error) {
	own := utils.GetUserPhoneFromContext(r.Context())
	if own == "" {
		return "", apperr.New(apperr.KindUnauthenticated, "address", "unauthorized")
	}

	requested = strings.TrimSpace(requested)
	if requested != "" && requested != own {
		return "", apperr.New(apperr.KindNotFound, "address", "address not found")
	}
	return own, nil
}

func writeError(w http.ResponseWriter, err error) {
	utils.WriteJSON(w, apperr.HTTPStatus(apperr.KindOf(err)), map[string]any{
		"success": false,
		"message": apperr.PublicMessage(err),
	})
}
