package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateReceipt builds the merchant receipt sent with a payment intent.
// Razorpay limits receipts to 40 characters.
func GenerateReceipt() string {
	now := time.Now().UTC()

	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 1_000_000)
	}

	return fmt.Sprintf("rcpt_%s_%06d", now.Format("20060102150405"), n.Int64())
}
