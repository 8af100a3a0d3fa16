// Package client talks to a running idsreplay server over its JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xoelrdgz/idsreplay/internal/domain"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// SetAttackMode switches the server's replay category and returns the
// server's confirmation message.
func (c *Client) SetAttackMode(ctx context.Context, mode string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/set_attack_mode", map[string]string{"attack_mode": mode}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) AttackMode(ctx context.Context) (domain.Category, error) {
	var out struct {
		AttackMode string `json:"attack_mode"`
	}
	if err := c.do(ctx, http.MethodGet, "/attack_mode", nil, &out); err != nil {
		return "", err
	}
	return domain.ParseCategory(out.AttackMode)
}

// StreamData fetches the current row. Numbers stay json.Number so they can
// be sent back to /predict unchanged.
func (c *Client) StreamData(ctx context.Context) (domain.FeatureRow, error) {
	var row domain.FeatureRow
	if err := c.do(ctx, http.MethodGet, "/stream_data", nil, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func (c *Client) Predict(ctx context.Context, row domain.FeatureRow) (string, error) {
	var out struct {
		Prediction string `json:"prediction"`
	}
	if err := c.do(ctx, http.MethodPost, "/predict", row, &out); err != nil {
		return "", err
	}
	return out.Prediction, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(io.LimitReader(resp.Body, 1<<20))
	dec.UseNumber()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if err := dec.Decode(&e); err != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
