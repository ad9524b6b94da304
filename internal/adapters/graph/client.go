package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// ClientConfig configures the authenticated resource-graph client used for
// enrichment fetches. TokenURL and Scopes default to the tenant's authority.
type ClientConfig struct {
	BaseURL      string
	TenantID     string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	Timeout      time.Duration
}

// Client fetches minimal projections of changed resources. Tokens are acquired
// and refreshed by the client-credentials transport underneath.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
}

func NewClient(ctx context.Context, cfg ClientConfig) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://graph.microsoft.com/v1.0"
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		cfg.TokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"https://graph.microsoft.com/.default"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	httpClient := creds.Client(ctx)
	httpClient.Timeout = cfg.Timeout
	return &Client{cfg: cfg, httpClient: httpClient}
}

func (c *Client) Get(ctx context.Context, path string, selectFields []string) (map[string]any, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, fmt.Errorf("empty resource path")
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + path
	if len(selectFields) > 0 {
		q := url.Values{}
		q.Set("$select", strings.Join(selectFields, ","))
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("resource fetch failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var projection map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&projection); err != nil {
		return nil, fmt.Errorf("decode resource projection: %w", err)
	}
	return projection, nil
}
