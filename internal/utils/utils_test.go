package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"pay_Ab12Cd34Ef56", "pay_****Ef56"},
		{"order_abc", "order_***"},
		{"+919876543210", "****3210"},
		{"abc", "***"},
		{"trailing_", "****ing_"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskID(tt.in), tt.in)
	}
}

func TestGenerateReceipt(t *testing.T) {
	r1 := GenerateReceipt()
	r2 := GenerateReceipt()

	assert.Regexp(t, regexp.MustCompile(`^rcpt_\d{14}_\d{6}$`), r1)
	assert.LessOrEqual(t, len(r1), 40)
	assert.NotEqual(t, r1, r2)
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSONError(w, "invalid signature", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid signature", body["error"])
}

func TestUserContext(t *testing.T) {
	ctx := SetUserContext(context.Background(), "user_1", "+919876543210")

	id, ok := GetUserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user_1", id)
	assert.Equal(t, "+919876543210", GetUserPhoneFromContext(ctx))

	_, ok = GetUserIDFromContext(context.Background())
	assert.False(t, ok)
}

func TestPtrHelpers(t *testing.T) {
	assert.Equal(t, "x", PtrString(StrPtr("x")))
	assert.Equal(t, "", PtrString(nil))
}
