package voucher

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func preview(t *testing.T, body string) (*httptest.ResponseRecorder, map[string]map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	(&Handler{Registry: DefaultRegistry()}).Routes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/promos/preview", strings.NewReader(body)))
	var out map[string]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec, out
}

func TestPreviewKnownCode(t *testing.T) {
	rec, out := preview(t, `{"code":"save10","subtotal":729.97}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := out["data"]
	if data["code"] != "SAVE10" {
		t.Fatalf("unexpected code %v", data["code"])
	}
	if data["discount"] != "73" {
		t.Fatalf("unexpected discount %v", data["discount"])
	}
	if data["discountDisplay"] != "$73.00" {
		t.Fatalf("unexpected display %v", data["discountDisplay"])
	}
}

func TestPreviewRejections(t *testing.T) {
	cases := map[string]struct {
		body string
		code string
	}{
		"unknown code":      {`{"code":"FREE","subtotal":"10"}`, "NOT_ELIGIBLE"},
		"missing subtotal":  {`{"code":"SAVE10"}`, "BAD_REQUEST"},
		"negative subtotal": {`{"code":"SAVE10","subtotal":"-5"}`, "BAD_REQUEST"},
		"malformed":         {`{"code":`, "BAD_REQUEST"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec, out := preview(t, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if out["error"]["code"] != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, out["error"]["code"])
			}
		})
	}
}
