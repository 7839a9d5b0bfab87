// Package lookup resolves caller metadata (name, carrier, line type)
// from a line-intelligence API. Lookups are best effort: any failure
// degrades to empty fields, never to an error on the call path.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"voicehub-platform/internal/config"
)

type CallerInfo struct {
	Name     string `json:"name"`
	Carrier  string `json:"carrier"`
	LineType string `json:"line_type"`
}

// Client talks to the configured lookup endpoint. A zero BaseURL
// disables the client entirely.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(cfg config.LookupConfig, log *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 5 * time.Second},
		log:     log,
	}
}

func (c *Client) Enabled() bool { return c.baseURL != "" }

// Resolve fetches caller info for number. It returns the zero value on
// any failure; the failure is logged and swallowed.
func (c *Client) Resolve(ctx context.Context, number string) CallerInfo {
	if !c.Enabled() || number == "" {
		return CallerInfo{}
	}
	info, err := c.resolve(ctx, number)
	if err != nil {
		c.log.Warn("caller lookup failed", "number", number, "error", err)
		return CallerInfo{}
	}
	return info
}

func (c *Client) resolve(ctx context.Context, number string) (CallerInfo, error) {
	u := fmt.Sprintf("%s/lookup?number=%s", c.baseURL, url.QueryEscape(number))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return CallerInfo{}, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return CallerInfo{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 256))
		return CallerInfo{}, fmt.Errorf("lookup status %d: %s", res.StatusCode, body)
	}

	var out struct {
		CallerName string `json:"caller_name"`
		Carrier    struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"carrier"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&out); err != nil {
		return CallerInfo{}, fmt.Errorf("decode lookup response: %w", err)
	}
	return CallerInfo{
		Name:     out.CallerName,
		Carrier:  out.Carrier.Name,
		LineType: out.Carrier.Type,
	}, nil
}
