package order

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"vox-be/internal/address"
	"vox-be/internal/apperr"
	"vox-be/internal/catalog"
	"vox-be/internal/payment"
)

type itemRequest struct {
	Product   string      `json:"product"`
	ProductID string      `json:"productId"`
	Variant   string      `json:"variant"`
	Color     string      `json:"color"`
	Quantity  json.Number `json:"quantity"`
}

type createOrderRequest struct {
	Address           *address.Address `json:"address"`
	Items             []itemRequest    `json:"items"`
	PaymentMethod     string           `json:"paymentMethod"`
	TotalAmount       json.Number      `json:"totalAmount"`
	RazorpayOrderID   string           `json:"razorpay_order_id"`
	RazorpayPaymentID string           `json:"razorpay_payment_id"`
	RazorpaySignature string           `json:"razorpay_signature"`
}

type createIntentRequest struct {
	Amount        json.Number      `json:"amount"`
	Address       *address.Address `json:"address"`
	Items         []itemRequest    `json:"items"`
	PaymentMethod string           `json:"paymentMethod"`
}

type OrderResponse struct {
	ID                string          `json:"id"`
	SequentialID      int64           `json:"sequentialId"`
	UserID            *string         `json:"userId"`
	Address           address.Address `json:"address"`
	Items             []Item          `json:"items"`
	PaymentMethod     string          `json:"paymentMethod"`
	Amount            int64           `json:"amount"`
	Currency          string          `json:"currency"`
	RazorpayOrderID   *string         `json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID *string         `json:"razorpayPaymentId,omitempty"`
	RazorpaySignature *string         `json:"razorpaySignature,omitempty"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"createdAt"`
}

type IntentResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Receipt  string `json:"receipt"`
}

func MapOrderToResponse(o *Order) OrderResponse {
	items := o.Items
	if items == nil {
		items = []Item{}
	}
	return OrderResponse{
		ID:                o.ID.String(),
		SequentialID:      o.SequentialID,
		UserID:            o.UserID,
		Address:           o.Address,
		Items:             items,
		PaymentMethod:     string(o.PaymentMethod),
		Amount:            o.Amount,
		Currency:          o.Currency,
		RazorpayOrderID:   o.RazorpayOrderID,
		RazorpayPaymentID: o.RazorpayPaymentID,
		RazorpaySignature: o.RazorpaySignature,
		Status:            string(o.Status),
		CreatedAt:         o.CreatedAt,
	}
}

func MapIntentToResponse(in *payment.Intent) IntentResponse {
	return IntentResponse{
		ID:       in.ID,
		Amount:   in.Amount,
		Currency: in.Currency,
		Status:   string(in.Status),
		Receipt:  in.Receipt,
	}
}

// toLines accepts both the composite "product|variant|color" reference and
// separate variant/color fields; composite parts win when both are present.
func toLines(items []itemRequest) ([]catalog.Line, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	lines := make([]catalog.Line, 0, len(items))
	for i, it := range items {
		raw := it.Product
		if raw == "" {
			raw = it.ProductID
		}
		productID, variant, color := catalog.ParseRef(raw)
		if variant == "" {
			variant = strings.TrimSpace(it.Variant)
		}
		if color == "" {
			color = strings.TrimSpace(it.Color)
		}

		qty, err := parsePositiveInt(it.Quantity)
		if err != nil || qty > math.MaxInt32 {
			return nil, apperr.Validationf("item %d: quantity must be a positive integer", i+1)
		}

		lines = append(lines, catalog.Line{
			ProductID: productID,
			VariantID: variant,
			Color:     color,
			Quantity:  int(qty),
		})
	}
	return lines, nil
}

func parsePositiveInt(n json.Number) (int64, error) {
	v, err := n.Int64()
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, strconv.ErrRange
	}
	return v, nil
}

// majorToMinor converts a rupee amount with up to two decimals to paise,
// rounding to the nearest paisa.
func majorToMinor(n json.Number) (int64, error) {
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, apperr.Validation("invalid amount")
	}
	minor := math.Round(f * 100)
	if minor > math.MaxInt64/2 {
		return 0, apperr.Validation("invalid amount")
	}
	return int64(minor), nil
}

func (r createOrderRequest) toInput(userID *string) (CheckoutInput, error) {
	if r.Address == nil || len(r.Items) == 0 || r.PaymentMethod == "" || r.TotalAmount == "" {
		return CheckoutInput{}, apperr.Validation("Invalid order data")
	}

	method, ok := payment.ParseMethod(r.PaymentMethod)
	if !ok {
		return CheckoutInput{}, apperr.Validationf("unsupported payment method %q", r.PaymentMethod)
	}

	total, err := majorToMinor(r.TotalAmount)
	if err != nil {
		return CheckoutInput{}, err
	}

	lines, err := toLines(r.Items)
	if err != nil {
		return CheckoutInput{}, err
	}

	return CheckoutInput{
		UserID:      userID,
		Address:     r.Address,
		Items:       lines,
		Method:      method,
		ClientTotal: &total,
		Confirmation: payment.Confirmation{
			IntentID:  strings.TrimSpace(r.RazorpayOrderID),
			PaymentID: strings.TrimSpace(r.RazorpayPaymentID),
			Signature: strings.TrimSpace(r.RazorpaySignature),
		},
	}, nil
}

func (r createIntentRequest) toInput(userID *string) (CheckoutInput, error) {
	if r.Address == nil || len(r.Items) == 0 {
		return CheckoutInput{}, apperr.Validation("Invalid order data")
	}

	method := payment.MethodRazorpay
	if r.PaymentMethod != "" {
		m, ok := payment.ParseMethod(r.PaymentMethod)
		if !ok || m != payment.MethodRazorpay {
			return CheckoutInput{}, apperr.Validation("payment intents are only created for online payments")
		}
		method = m
	}

	lines, err := toLines(r.Items)
	if err != nil {
		return CheckoutInput{}, err
	}

	in := CheckoutInput{
		UserID:  userID,
		Address: r.Address,
		Items:   lines,
		Method:  method,
	}

	if r.Amount != "" {
		amount, err := parsePositiveInt(r.Amount)
		if err != nil {
			return CheckoutInput{}, apperr.Validation("amount must be a positive integer in minor units")
		}
		in.ClientTotal = &amount
	}

	return in, nil
}
