package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// CategoryClient resolves category codes to display names through a
// lookup API ("GET <base>/categories/<code>").
type CategoryClient struct {
	base   string
	client *http.Client
}

// NewCategoryClient creates a CategoryClient. A nil client uses
// http.DefaultClient.
func NewCategoryClient(base string, client *http.Client) *CategoryClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &CategoryClient{base: strings.TrimRight(base, "/"), client: client}
}

type categoryPayload struct {
	Name         string `json:"name"`
	PathFromRoot []struct {
		Name string `json:"name"`
	} `json:"path_from_root"`
}

// Lookup returns the name for code, falling back to the last element of the
// category path. An unknown code yields an empty name and no error.
func (c *CategoryClient) Lookup(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", nil
	}
	endpoint := c.base + "/categories/" + url.PathEscape(code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("category: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("category: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("category: read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Engine: "category", Status: resp.StatusCode}
	}

	var p categoryPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", fmt.Errorf("category: decode: %w", err)
	}
	if name := strings.TrimSpace(p.Name); name != "" {
		return name, nil
	}
	for i := len(p.PathFromRoot) - 1; i >= 0; i-- {
		if name := strings.TrimSpace(p.PathFromRoot[i].Name); name != "" {
			return name, nil
		}
	}
	return "", nil
}
