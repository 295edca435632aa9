package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// AdminKeyParam names the admin secret in both the query string and the JSON
// body.
const AdminKeyParam = "adminKey"

// AdminGate compares a caller-supplied secret with the configured one. An
// empty configured secret rejects everyone.
type AdminGate struct {
	secret string
}

func NewAdminGate(secret string) AdminGate {
	return AdminGate{secret: secret}
}

func (g AdminGate) Check(supplied string) bool {
	return g.secret != "" && supplied != "" && supplied == g.secret
}

// IsAdmin looks for the secret in the query string first, then in the JSON
// body. The body is restored so the handler can still decode it.
func (g AdminGate) IsAdmin(r *http.Request) bool {
	if key := r.URL.Query().Get(AdminKeyParam); key != "" {
		return g.Check(key)
	}
	return g.Check(adminKeyFromBody(r))
}

func (g AdminGate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.IsAdmin(r) {
			writeError(w, requestID(r), http.StatusForbidden, "forbidden", "admin key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func adminKeyFromBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	contentType := r.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "application/json") {
		return ""
	}
	body, err := readBody(r)
	if err != nil || len(body) == 0 {
		return ""
	}
	var payload struct {
		AdminKey string `json:"adminKey"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.AdminKey
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
