package order

import (
	"time"

	"vox-be/internal/address"
	"vox-be/internal/catalog"
	"vox-be/internal/payment"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
	StatusFailed  Status = "Failed"
)

// Item is the persisted line; UnitPrice is the server-side price at order time.
type Item struct {
	ProductID   string `json:"product"`
	ProductName string `json:"productName,omitempty"`
	Variant     string `json:"variant"`
	Color       string `json:"color"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
}

// Order is immutable after creation apart from Status. Amount is in minor units.
type Order struct {
	ID                uuid.UUID
	SequentialID      int64
	UserID            *string
	Address           address.Address
	Items             []Item
	PaymentMethod     payment.Method
	Amount            int64
	Currency          string
	RazorpayOrderID   *string
	RazorpayPaymentID *string
	RazorpaySignature *string
	Status            Status
	CreatedAt         time.Time
}

// CheckoutInput is a cart snapshot plus everything needed to finalize it.
type CheckoutInput struct {
	UserID  *string
	Address *address.Address
	Items   []catalog.Line
	Method  payment.Method

	// ClientTotal is the amount the client believes it is paying, in minor
	// units. Optional; when set it must agree with the server price.
	ClientTotal *int64

	Confirmation payment.Confirmation
}

type IntentResult struct {
	Intent *payment.Intent
	KeyID  string
}

func itemsFromQuote(q *catalog.Quote) []Item {
	items := make([]Item, 0, len(q.Lines))
	for _, l := range q.Lines {
		items = append(items, Item{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Variant:     l.VariantID,
			Color:       l.Color,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}
	return items
}
