package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"etapabot/internal/core/errx"
	"etapabot/internal/protocol"
	"github.com/google/go-cmp/cmp"
)

func TestExchangePostsAndDecodes(t *testing.T) {
	var got protocol.Request
	var requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != protocol.Path {
			t.Errorf("expected POST %s, got %s %s", protocol.Path, r.Method, r.URL.Path)
		}
		requestID = r.Header.Get(RequestIDHeader)
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"estado":2,"mensaje":"Done","mostrar_reinicio":true,"proceso":["a"]}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	resp, err := c.Exchange(context.Background(), protocol.Request{Estado: 1, Mensaje: "12345678"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(protocol.Request{Estado: 1, Mensaje: "12345678"}, got); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
	want := protocol.Response{Estado: 2, Mensaje: "Done", MostrarReinicio: true, Proceso: []string{"a"}}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}
	if requestID == "" {
		t.Fatalf("expected %s header", RequestIDHeader)
	}
}

func TestExchangeOmitsEmptyContext(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"estado":1}`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Exchange(context.Background(), protocol.Request{Estado: 1, Mensaje: "hola"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := raw["contexto"]; ok {
		t.Fatalf("expected contexto omitted, got %#v", raw)
	}
}

func TestExchangeFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
			},
			want: ErrStatus,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>oops</html>"))
			},
			want: ErrDecode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := New(srv.URL).Exchange(context.Background(), protocol.Request{Estado: 1, Mensaje: "x"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var appErr *errx.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *errx.AppError, got %T", err)
			}
		})
	}
}

func TestExchangeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).Exchange(context.Background(), protocol.Request{Estado: 1, Mensaje: "x"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if status := errx.StatusOf(err); status != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", status)
	}
}

func TestExchangeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.URL, WithTimeout(50*time.Millisecond)).Exchange(context.Background(), protocol.Request{Estado: 1, Mensaje: "x"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport on timeout, got %v", err)
	}
}

func TestNewKeepsExplicitPath(t *testing.T) {
	if got := New("http://localhost:5000/procesar").Endpoint(); got != "http://localhost:5000/procesar" {
		t.Fatalf("expected path kept once, got %q", got)
	}
	if got := New(" http://localhost:5000 ").Endpoint(); got != "http://localhost:5000/procesar" {
		t.Fatalf("expected path appended, got %q", got)
	}
}

type countingTransport struct {
	calls int
	next  http.RoundTripper
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls++
	return c.next.RoundTrip(r)
}

func TestWithHTTPClientIsUsed(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"estado":1,"mensaje":"hola"}`))
	}))
	defer srv.Close()

	rt := &countingTransport{next: srv.Client().Transport}
	c := New(srv.URL, WithHTTPClient(&http.Client{Transport: rt}), WithTimeout(time.Second))
	resp, err := c.Exchange(context.Background(), protocol.Request{Estado: 1, Mensaje: "x"})
	if err != nil {
		t.Fatalf("expected exchange over the supplied client, got %v", err)
	}
	if rt.calls != 1 || resp.Mensaje != "hola" {
		t.Fatalf("expected one call through the custom transport, got %d calls, resp %+v", rt.calls, resp)
	}
}
