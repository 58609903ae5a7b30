package order

import (
	"encoding/json"
	"testing"

	"vox-be/internal/address"
	"vox-be/internal/apperr"
	"vox-be/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLines(t *testing.T) {
	t.Run("CompositeReference", func(t *testing.T) {
		lines, err := toLines([]itemRequest{
			{Product: "p1|v2|Walnut", Variant: "ignored", Quantity: "2"},
			{ProductID: "p2", Variant: " v1 ", Color: "Oak", Quantity: "1"},
		})
		require.NoError(t, err)
		require.Len(t, lines, 2)

		assert.Equal(t, "p1", lines[0].ProductID)
		assert.Equal(t, "v2", lines[0].VariantID)
		assert.Equal(t, "Walnut", lines[0].Color)
		assert.Equal(t, 2, lines[0].Quantity)

		assert.Equal(t, "p2", lines[1].ProductID)
		assert.Equal(t, "v1", lines[1].VariantID)
		assert.Equal(t, "Oak", lines[1].Color)
	})

	t.Run("BadQuantity", func(t *testing.T) {
		for _, q := range []json.Number{"0", "-1", "1.5", "", "99999999999"} {
			_, err := toLines([]itemRequest{{Product: "p1", Quantity: q}})
			assert.True(t, apperr.Is(err, apperr.KindValidation), string(q))
		}
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := toLines(nil)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestMajorToMinor(t *testing.T) {
	tests := map[json.Number]int64{
		"5000":  500000,
		"49.99": 4999,
		"0.1":   10,
	}
	for in, want := range tests {
		got, err := majorToMinor(in)
		require.NoError(t, err, string(in))
		assert.Equal(t, want, got, string(in))
	}

	for _, bad := range []json.Number{"0", "-10", "abc", "NaN", "1e300"} {
		_, err := majorToMinor(bad)
		assert.Error(t, err, string(bad))
	}
}

func TestCreateOrderRequest_ToInput(t *testing.T) {
	user := "user_1"
	req := createOrderRequest{
		Address:           &address.Address{FullName: "Asha Rao"},
		Items:             []itemRequest{{Product: "p1", Quantity: "2"}},
		PaymentMethod:     "online",
		TotalAmount:       "5000",
		RazorpayOrderID:   " order_abc ",
		RazorpayPaymentID: "pay_xyz",
		RazorpaySignature: "sig",
	}

	in, err := req.toInput(&user)
	require.NoError(t, err)
	assert.Equal(t, payment.MethodRazorpay, in.Method)
	assert.Equal(t, int64(500000), *in.ClientTotal)
	assert.Equal(t, "order_abc", in.Confirmation.IntentID)
	assert.Equal(t, &user, in.UserID)

	t.Run("MissingFields", func(t *testing.T) {
		_, err := createOrderRequest{Items: req.Items, PaymentMethod: "cod", TotalAmount: "1"}.toInput(nil)
		assert.EqualError(t, err, "Invalid order data")
	})

	t.Run("UnknownMethod", func(t *testing.T) {
		bad := req
		bad.PaymentMethod = "upi-direct"
		_, err := bad.toInput(nil)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestCreateIntentRequest_ToInput(t *testing.T) {
	req := createIntentRequest{
		Amount:  "500000",
		Address: &address.Address{FullName: "Asha Rao"},
		Items:   []itemRequest{{Product: "p1", Quantity: "2"}},
	}

	in, err := req.toInput(nil)
	require.NoError(t, err)
	assert.Equal(t, payment.MethodRazorpay, in.Method)
	assert.Equal(t, int64(500000), *in.ClientTotal)

	req.PaymentMethod = "cod"
	_, err = req.toInput(nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	req.PaymentMethod = ""
	req.Amount = "12.5"
	_, err = req.toInput(nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
