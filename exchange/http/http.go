// Package http provides an HTTP health/metrics surface for a running
// worker group, mirroring pipe.go's /health endpoint, plus a generic
// request/response client usable as an alternate, non-persistent exchange
// for one-off payloads. Grounded on edge/http/http.go's client pattern.
package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Snapshot reports a point-in-time health/metrics view, supplied by the
// caller (a launcher.Launcher, a Worker, or anything else worth exposing).
type Snapshot func() map[string]any

// HealthApp builds a fiber app exposing a single GET /health route backed
// by snapshot, the same shape pipe.go's Run wires up directly but usable
// standalone by an embedding app that isn't using the launcher package.
func HealthApp(snapshot Snapshot, config ...fiber.Config) *fiber.App {
	app := fiber.New(config...)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(snapshot())
	})
	return app
}

// Client posts an encoded T to a URL and decodes the response as a T,
// generalizing edge/http/http.go's edge type (which hardcoded JSON) with a
// caller-supplied encode and decode functions so it can carry any of this
// module's wire types.
type Client[T any] struct {
	httpClient *http.Client
	url        string
	encode     func(T) ([]byte, error)
	decode     func([]byte) (T, error)
}

// NewClient builds a Client posting to url with timeout as the HTTP
// client's deadline.
func NewClient[T any](url string, timeout time.Duration, encode func(T) ([]byte, error), decode func([]byte) (T, error)) *Client[T] {
	return &Client[T]{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		encode:     encode,
		decode:     decode,
	}
}

// Send posts payload and decodes the response body as T.
func (c *Client[T]) Send(payload T) (T, error) {
	var zero T
	body, err := c.encode(payload)
	if err != nil {
		return zero, fmt.Errorf("exchange/http: encode: %w", err)
	}

	res, err := c.httpClient.Post(c.url, "application/octet-stream", bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("exchange/http: post: %w", err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return zero, fmt.Errorf("exchange/http: read response: %w", err)
	}

	out, err := c.decode(respBody)
	if err != nil {
		return zero, fmt.Errorf("exchange/http: decode: %w", err)
	}
	return out, nil
}
