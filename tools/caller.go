package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
)

const defaultTimeout = 30 * time.Second

// caller is the shared HTTP plumbing for one upstream API: retries with
// backoff behind a circuit breaker, so a flapping upstream neither fails a
// request on the first hiccup nor gets hammered while it is down.
type caller struct {
	name    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func newCaller(name string, client *http.Client) *caller {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &caller{name: name, client: client, breaker: breaker}
}

// doJSON performs one HTTP exchange and returns the response body and
// status. Transport errors and 5xx responses are retried; any other
// status is handed back for the adapter to interpret.
func (c *caller) doJSON(ctx context.Context, method, url string, header http.Header, payload []byte) ([]byte, int, error) {
	var body []byte
	var status int

	_, err := c.breaker.Execute(func() (any, error) {
		r := retry.New(retry.Context(ctx), retry.Attempts(3))
		return nil, r.Do(func() error {
			var reader io.Reader
			if payload != nil {
				reader = bytes.NewReader(payload)
			}
			req, err := http.NewRequestWithContext(ctx, method, url, reader)
			if err != nil {
				return fmt.Errorf("%s: build request: %w", c.name, err)
			}
			for key, values := range header {
				for _, value := range values {
					req.Header.Add(key, value)
				}
			}
			if payload != nil && req.Header.Get("Content-Type") == "" {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := c.client.Do(req)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrNetwork, c.name, err)
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrNetwork, c.name, err)
			}
			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("%w: %s: status %d", ErrUpstream, c.name, resp.StatusCode)
			}
			body = data
			status = resp.StatusCode
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}
	return body, status, nil
}
