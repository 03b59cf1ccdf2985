package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsHTMLLike(t *testing.T) {
	cases := []struct {
		body string
		want bool
	}{
		{"<!DOCTYPE html><html></html>", true},
		{"  <html><body>portal</body></html>", true},
		{"<div>partial</div>", true},
		{`{"rows": []}`, false},
		{`[1, 2, 3]`, false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsHTMLLike([]byte(tc.body)); got != tc.want {
			t.Fatalf("IsHTMLLike(%q) = %v, want %v", tc.body, got, tc.want)
		}
	}
}

func TestHTMLResponseIsProtocolMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>Sign in to the corporate network</body></html>"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	var out []any
	err := c.GetJSON(context.Background(), "/api/mobile/inventory", nil, "tok", &out)
	var pm *ProtocolMismatchError
	if !errors.As(err, &pm) {
		t.Fatalf("err = %v, want ProtocolMismatchError", err)
	}
	if pm.URL == "" {
		t.Fatalf("mismatch error lost its URL")
	}
}

func TestRejectionMessageFromErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "missing fields"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.PostJSON(context.Background(), "/api/mobile/movements", "tok", map[string]any{}, nil)
	var rej *ServerRejection
	if !errors.As(err, &rej) {
		t.Fatalf("err = %v, want ServerRejection", err)
	}
	if rej.Status != http.StatusBadRequest || rej.Message != "missing fields" {
		t.Fatalf("got %+v, want 400 missing fields", rej)
	}
}

func TestRejectionFallsBackToRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`upstream exploded`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.GetJSON(context.Background(), "/x", nil, "", nil)
	var rej *ServerRejection
	if !errors.As(err, &rej) {
		t.Fatalf("err = %v, want ServerRejection", err)
	}
	if rej.Message != "upstream exploded" {
		t.Fatalf("message = %q", rej.Message)
	}
}

func TestTransportErrorKeepsURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := New(srv.URL)
	err := c.GetJSON(context.Background(), "/api/mobile/inventory", nil, "", nil)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if te.URL == "" || te.Unwrap() == nil {
		t.Fatalf("transport error incomplete: %+v", te)
	}
}

func TestEmptyBaseFailsClosed(t *testing.T) {
	c := &Client{}
	err := c.GetJSON(context.Background(), "/x", nil, "", nil)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}

func TestBearerHeaderAndBaseTrim(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "///")
	if err := c.GetJSON(context.Background(), "/api/mobile/inventory", nil, "tok-123", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotPath != "/api/mobile/inventory" {
		t.Fatalf("path = %q, trailing slashes leaked", gotPath)
	}
}
