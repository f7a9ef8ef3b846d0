package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calebdock/comphub/internal/app/system/identity"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewJSONRequest builds a request with a JSON body.
func NewJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AsUser stamps the request with the forwarded-identity headers the
// handlers trust.
func AsUser(r *http.Request, userID primitive.ObjectID, role string) *http.Request {
	r.Header.Set(identity.HeaderUserID, userID.Hex())
	if role != "" {
		r.Header.Set(identity.HeaderUserRole, role)
	}
	return r
}

// DecodeJSON parses a response recorder body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("parse response %q: %v", rec.Body.String(), err)
	}
}
