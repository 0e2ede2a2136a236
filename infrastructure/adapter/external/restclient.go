// Package external implements the outbound clients for the two integrated
// systems over plain JSON/HTTP. Both clients share one REST core that maps
// failures onto the engine's error taxonomy: network faults, timeouts and
// server errors are transient; client errors are permanent.
package external

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

	"github.com/syncora/syncora/domain"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

type restClient struct {
	baseURL    string
	token      string
	system     domain.System
	httpClient *http.Client
	log        logger.Logger
}

func newRESTClient(baseURL, token string, system domain.System, timeout time.Duration, log logger.Logger) *restClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &restClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		system:     system,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// do performs one JSON request. A non-nil out is filled from the response
// body on 2xx.
func (c *restClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &domain.ValidationError{Field: "body", Reason: err.Error()}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &domain.ValidationError{Field: "request", Reason: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Context expiry and transport faults are retriable by definition.
		return &domain.TransientExternalError{System: c.system, Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &domain.TransientExternalError{System: c.system, Op: op, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || len(payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return &domain.PermanentExternalError{
				System: c.system, Op: op, Status: resp.StatusCode,
				Err: fmt.Errorf("undecodable response: %w", err),
			}
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &domain.TransientExternalError{
			System: c.system, Op: op,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(payload)),
		}
	default:
		return &domain.PermanentExternalError{
			System: c.system, Op: op, Status: resp.StatusCode,
			Err: errors.New(truncate(payload)),
		}
	}
}

func (c *restClient) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *restClient) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *restClient) put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *restClient) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func truncate(payload []byte) string {
	const max = 256
	s := strings.TrimSpace(string(payload))
	if len(s) > max {
		return s[:max] + "..."
	}
	if s == "" {
		return "empty body"
	}
	return s
}
