// Package client talks to the /procesar endpoint over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"etapabot/internal/core/errx"
	"etapabot/internal/protocol"
	logx "etapabot/pkg/logger"
	"github.com/google/uuid"
)

var (
	// ErrTransport means the request never produced an HTTP response.
	ErrTransport = errors.New("transport failure")
	// ErrStatus means the server answered with a non-2xx status.
	ErrStatus = errors.New("unexpected status")
	// ErrDecode means the response body was not the expected JSON.
	ErrDecode = errors.New("malformed response")
)

// RequestIDHeader carries the per-exchange id to the server logs.
const RequestIDHeader = "X-Request-ID"

const maxErrorBody = 240

type Client struct {
	endpoint string
	http     *http.Client
}

type Option func(*Client)

// WithTimeout bounds every exchange. Zero means no client-side timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New builds a client for the server at baseURL. The /procesar path is
// appended unless baseURL already ends with it.
func New(baseURL string, opts ...Option) *Client {
	endpoint := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasSuffix(endpoint, protocol.Path) {
		endpoint += protocol.Path
	}
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the full URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Exchange posts one turn and decodes the answer. Every failure is an
// *errx.AppError wrapping ErrTransport, ErrStatus or ErrDecode.
func (c *Client) Exchange(ctx context.Context, in protocol.Request) (protocol.Response, error) {
	var out protocol.Response

	buf, err := json.Marshal(in)
	if err != nil {
		return out, errx.New(fmt.Errorf("%w: encode request: %v", ErrTransport, err), 0, "could not encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(buf))
	if err != nil {
		return out, errx.New(fmt.Errorf("%w: %v", ErrTransport, err), 0, "could not build request")
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logx.Warn().Err(err).Str("request_id", requestID).Msg("procesar request failed")
		return out, errx.New(fmt.Errorf("%w: %v", ErrTransport, err), http.StatusBadGateway, "server unreachable")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, errx.New(fmt.Errorf("%w: read body: %v", ErrTransport, err), http.StatusBadGateway, "server unreachable")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logx.Warn().
			Int("status", resp.StatusCode).
			Str("request_id", requestID).
			Str("body", compactSingleLine(string(payload), maxErrorBody)).
			Msg("procesar returned non-2xx")
		return out, errx.New(fmt.Errorf("%w: http %d", ErrStatus, resp.StatusCode), resp.StatusCode, "server error")
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return protocol.Response{}, errx.New(fmt.Errorf("%w: %v", ErrDecode, err), http.StatusBadGateway, "server returned non-json payload")
	}

	logx.Debug().
		Str("request_id", requestID).
		Int("estado", out.Estado).
		Dur("elapsed", time.Since(started)).
		Msg("procesar exchange complete")
	return out, nil
}

func compactSingleLine(text string, limit int) string {
	compact := strings.Join(strings.Fields(text), " ")
	if len(compact) <= limit {
		return compact
	}
	return compact[:limit-3] + "..."
}
