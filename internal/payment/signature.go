package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign returns the hex HMAC-SHA256 of payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against the HMAC of payload in constant time.
// Malformed signatures and empty secrets never verify.
func Verify(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

// ConfirmationPayload is "<intentId>|<paymentId>".
func ConfirmationPayload(intentID, paymentID string) []byte {
	return []byte(intentID + "|" + paymentID)
}

// VerifyConfirmation checks the checkout callback signature, made with the
// API key secret.
func VerifyConfirmation(c Confirmation, secret string) bool {
	return Verify(ConfirmationPayload(c.IntentID, c.PaymentID), c.Signature, secret)
}

// VerifyWebhook checks a webhook delivery. body must be the raw bytes as
// received; re-encoding a parsed body changes the digest.
func VerifyWebhook(body []byte, signature, webhookSecret string) bool {
	return Verify(body, signature, webhookSecret)
}
