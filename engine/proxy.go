package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/use-agent/rankscope/models"
)

// ProxyEngine delegates the fetch to a remote /proxy-fetch endpoint, which
// performs the request server-side with the caller's Accept-Language.
type ProxyEngine struct {
	origin string
	client *http.Client
}

// NewProxyEngine creates a ProxyEngine for the endpoint at origin
// (e.g. "https://edge.example.com"). A nil client uses http.DefaultClient.
func NewProxyEngine(origin string, client *http.Client) *ProxyEngine {
	if client == nil {
		client = http.DefaultClient
	}
	return &ProxyEngine{origin: origin, client: client}
}

func (e *ProxyEngine) Name() string { return models.MethodProxy }

func (e *ProxyEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	q := url.Values{}
	q.Set("url", req.URL)
	q.Set("al", acceptLanguageOr(req.AcceptLanguage))
	endpoint := e.origin + "/proxy-fetch?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("proxy_engine: build request: %w", err)
	}
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("proxy_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("proxy_engine: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Engine: e.Name(), Status: resp.StatusCode, Body: string(body)}
	}
	return &FetchResult{
		Body:       string(body),
		StatusCode: resp.StatusCode,
		FinalURL:   req.URL,
		EngineName: e.Name(),
	}, nil
}
