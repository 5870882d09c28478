package kit_test

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"MediStore/pkg/kit"
)

func TestMetricsAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	cases := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"no token configured", "", "Bearer x", http.StatusForbidden},
		{"missing header", "secret", "", http.StatusForbidden},
		{"wrong scheme", "secret", "Basic secret", http.StatusForbidden},
		{"wrong token", "secret", "Bearer nope", http.StatusForbidden},
		{"valid", "secret", "Bearer secret", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			kit.MetricsAuth(tc.token)(ok).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status=%d want=%d", rec.Code, tc.want)
			}
		})
	}
}

func TestWriteValidationError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/create", nil)
	rec := httptest.NewRecorder()

	kit.WriteValidationError(rec, req, map[string]string{"price": "value is not a valid float"})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%s", ct)
	}

	var body kit.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "validation error" {
		t.Fatalf("error=%q", body.Error)
	}
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()

	kit.WriteJSON(rec, http.StatusOK, map[string]float64{"average": math.Inf(1)})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	var body kit.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v body=%q", err, rec.Body.String())
	}
	if body.Error != "server error" {
		t.Fatalf("error=%q", body.Error)
	}
}

func TestChiRoutePatternOrPath(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Get("/medicines/{name}", func(w http.ResponseWriter, r *http.Request) {
		got = kit.ChiRoutePatternOrPath(r)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/medicines/aspirin", nil))
	if got != "/medicines/{name}" {
		t.Fatalf("pattern=%q", got)
	}

	plain := httptest.NewRequest(http.MethodGet, "/unrouted", nil)
	if p := kit.ChiRoutePatternOrPath(plain); p != "/unrouted" {
		t.Fatalf("path=%q", p)
	}
}

func TestNewLogger(t *testing.T) {
	log, err := kit.NewLogger("medicine", "debug")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !log.Core().Enabled(-1) {
		t.Fatalf("debug level should be enabled")
	}

	if _, err := kit.NewLogger("medicine", "loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
