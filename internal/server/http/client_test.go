package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/leshachaplin/loginpipe/internal/apierror"
	"github.com/leshachaplin/loginpipe/internal/worker"
)

type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

type Client struct {
	url  string
	http HTTPClient
}

func NewClient(url string, httpClient HTTPClient) *Client {
	return &Client{
		url:  url,
		http: httpClient,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url+path, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	return req, nil
}

func (c *Client) Ready(ctx context.Context) (int, *apierror.Error, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/_/ready", nil)
	if err != nil {
		return 0, nil, fmt.Errorf("could not create request: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("could not send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return res.StatusCode, nil, nil
	}

	var apiErr apierror.Error
	if err = json.NewDecoder(res.Body).Decode(&apiErr); err != nil {
		return res.StatusCode, nil, fmt.Errorf("decode api error: %w", err)
	}
	return res.StatusCode, &apiErr, nil
}

func (c *Client) Stats(ctx context.Context) (worker.Stats, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/stats", nil)
	if err != nil {
		return worker.Stats{}, fmt.Errorf("could not create request: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return worker.Stats{}, fmt.Errorf("could not send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return worker.Stats{}, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var stats worker.Stats
	if err = json.NewDecoder(res.Body).Decode(&stats); err != nil {
		return worker.Stats{}, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}
