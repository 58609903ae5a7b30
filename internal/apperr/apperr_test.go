package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := New(KindProviderUnavailable, "razorpay.CreateIntent", "timeout")
	wrapped := fmt.Errorf("create intent: %w", base)

	assert.Equal(t, KindProviderUnavailable, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindProviderUnavailable))
	assert.False(t, Is(nil, KindProviderUnavailable))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestErrorString(t *testing.T) {
	cause := errors.New("connection reset")

	assert.Equal(t, "op: storage failure: connection reset", Storage("op", cause).Error())
	assert.Equal(t, "items must not be empty", Validation("items must not be empty").Error())
	assert.Equal(t, "op: bad", New(KindInternal, "op", "bad").Error())
	assert.Equal(t, "bad: connection reset", Wrap(KindInternal, "", "bad", cause).Error())
	assert.ErrorIs(t, Storage("op", cause), cause)
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindValidation:          http.StatusBadRequest,
		KindAuthentication:      http.StatusBadRequest,
		KindProviderRejected:    http.StatusBadRequest,
		KindUnauthenticated:     http.StatusUnauthorized,
		KindNotFound:            http.StatusNotFound,
		KindProviderUnavailable: http.StatusServiceUnavailable,
		KindConfiguration:       http.StatusInternalServerError,
		KindStorage:             http.StatusInternalServerError,
		KindInternal:            http.StatusInternalServerError,
	}

	for kind, want := range tests {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "quantity must be a positive integer", PublicMessage(Validation("quantity must be a positive integer")))
	assert.Equal(t, "payment verification failed", PublicMessage(New(KindAuthentication, "verify", "signature mismatch for pay_123")))
	assert.Equal(t, "payment service temporarily unavailable, please retry", PublicMessage(New(KindProviderUnavailable, "", "dial tcp")))
	assert.NotContains(t, PublicMessage(Storage("insert order", errors.New("pq: deadlock"))), "pq")
	assert.NotContains(t, PublicMessage(errors.New("raw internal")), "raw")
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(KindProviderUnavailable, "", "timeout")))
	assert.False(t, Retryable(Validation("bad")))
	assert.False(t, Retryable(New(KindConfiguration, "", "missing key")))
}
