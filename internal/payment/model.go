package payment

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	ProviderRazorpay = "razorpay"
	CurrencyINR      = "INR"
)

type Method string

const (
	MethodCOD      Method = "cod"
	MethodRazorpay Method = "razorpay"
)

// ParseMethod accepts the storefront's method names; "online" and "gateway"
// are treated as Razorpay.
func ParseMethod(s string) (Method, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cod", "cash_on_delivery", "cash-on-delivery":
		return MethodCOD, true
	case "razorpay", "online", "gateway":
		return MethodRazorpay, true
	}
	return "", false
}

type IntentStatus string

const (
	IntentCreated  IntentStatus = "created"
	IntentCaptured IntentStatus = "captured"
	IntentFailed   IntentStatus = "failed"
)

// Intent is the provider-side order created before the customer pays.
// Amount is in minor units.
type Intent struct {
	ID        string       `json:"id"`
	Receipt   string       `json:"receipt"`
	Amount    int64        `json:"amount"`
	Currency  string       `json:"currency"`
	Status    IntentStatus `json:"status"`
	UserID    *string      `json:"-"`
	CreatedAt time.Time    `json:"-"`

	// Cart holds the order lines as priced when the intent was created.
	Cart json.RawMessage `json:"-"`
}

// Confirmation is the triplet the checkout widget hands back after payment.
type Confirmation struct {
	IntentID  string
	PaymentID string
	Signature string
}

func (c Confirmation) Complete() bool {
	return c.IntentID != "" && c.PaymentID != "" && c.Signature != ""
}

// Webhook events handled by the service.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

type PaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorCode        string `json:"error_code,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}
