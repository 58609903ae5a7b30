package utils

import (
	"encoding/json"
	"net/http"
	"strings"
)

func StrPtr(s string) *string {
	return &s
}

func PtrString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func WriteJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteJSONError(w http.ResponseWriter, message string, code int) {
	WriteJSON(w, code, map[string]string{"error": message})
}

// MaskID keeps the provider prefix and the last four characters of an
// identifier, e.g. "pay_Ab12Cd34Ef56" -> "pay_****Ef56".
func MaskID(id string) string {
	if id == "" {
		return ""
	}

	prefix := ""
	rest := id
	if i := strings.IndexByte(id, '_'); i >= 0 && i < len(id)-1 {
		prefix, rest = id[:i+1], id[i+1:]
	}

	if len(rest) <= 4 {
		return prefix + strings.Repeat("*", len(rest))
	}
	return prefix + "****" + rest[len(rest)-4:]
}
