package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/use-agent/rankscope/models"
)

// RemoteRenderer calls a /render-title endpoint on another host.
type RemoteRenderer struct {
	origin string
	client *http.Client
}

// NewRemoteRenderer creates a RemoteRenderer for the endpoint at origin.
// A nil client uses http.DefaultClient.
func NewRemoteRenderer(origin string, client *http.Client) *RemoteRenderer {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteRenderer{origin: origin, client: client}
}

func (r *RemoteRenderer) Name() string { return "remote-render" }

func (r *RemoteRenderer) RenderTitle(ctx context.Context, target, acceptLanguage string) (string, error) {
	q := url.Values{}
	q.Set("url", target)
	q.Set("al", acceptLanguageOr(acceptLanguage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.origin+"/render-title?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("remote_render: build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote_render: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("remote_render: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e models.RenderErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return "", fmt.Errorf("remote_render: HTTP %d: %s", resp.StatusCode, e.Error)
		}
		return "", &StatusError{Engine: r.Name(), Status: resp.StatusCode, Body: string(body)}
	}

	var out models.RenderTitleResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("remote_render: decode: %w", err)
	}
	return out.Title, nil
}
