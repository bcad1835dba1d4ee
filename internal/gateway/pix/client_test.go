package pix

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateCharge(t *testing.T) {
	var gotValue int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/pix/cashIn" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Idempotency-Key") == "" {
			t.Error("missing idempotency key")
		}
		var body map[string]int64
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotValue = body["value"]
		_, _ = w.Write([]byte(`{"id":"tx-1","qr_code":"000201...","qr_code_base64":"data:image/png;base64,AAA","status":"created","value":2700}`))
	}))
	defer srv.Close()

	charge, err := NewClient(srv.URL).CreateCharge(context.Background(), "tok", 2700)
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	if gotValue != 2700 {
		t.Errorf("value sent = %d, want 2700", gotValue)
	}
	if charge.ID != "tx-1" || charge.QRCode == "" || charge.QRCodeBase64 == "" {
		t.Errorf("unexpected charge: %+v", charge)
	}
}

func TestCreateChargeWithoutToken(t *testing.T) {
	if _, err := NewClient("http://unused").CreateCharge(context.Background(), "", 100); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestGatewayErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"value too low"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CreateCharge(context.Background(), "tok", 10)
	if !errors.Is(err, ErrGateway) {
		t.Fatalf("err = %v, want ErrGateway", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("err = %#v, want *APIError with 422", err)
	}
}

func TestGetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/transactions/tx-9" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"tx-9","status":"PAID"}`))
	}))
	defer srv.Close()

	status, err := NewClient(srv.URL).GetStatus(context.Background(), "tok", "tx-9")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status != StatusPaid {
		t.Fatalf("status = %q, want %q", status, StatusPaid)
	}
}
