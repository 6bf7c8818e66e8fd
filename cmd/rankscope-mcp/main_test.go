package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/rankscope/models"
)

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestExtractTitleTool(t *testing.T) {
	t.Parallel()

	got := make(chan models.TitleRequest, 1)
	keys := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/title", r.URL.Path)
		var req models.TitleRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		got <- req
		keys <- r.Header.Get("X-API-Key")
		_ = json.NewEncoder(w).Encode(models.TitleResponse{
			Success: true,
			Title:   "Best sellers in Garden",
			Method:  models.MethodRule,
			Timing:  models.TimingInfo{TotalMs: 12},
		})
	}))
	defer srv.Close()

	res := callTool(t, handleExtractTitle(newAPIClient(srv.URL, "k1")), map[string]any{
		"url":             "https://example.com/best-sellers/garden",
		"accept_language": "en-GB",
	})
	assert.False(t, res.IsError)
	assert.Equal(t, "Title: Best sellers in Garden\nMethod: rule\nElapsed: 12ms", resultText(t, res))
	assert.Equal(t, models.TitleRequest{URL: "https://example.com/best-sellers/garden", AcceptLanguage: "en-GB"}, <-got)
	assert.Equal(t, "k1", <-keys)
}

func TestExtractTitleToolErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(models.TitleResponse{
			Error: &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "invalid url"},
		})
	}))
	defer srv.Close()
	h := handleExtractTitle(newAPIClient(srv.URL, ""))

	res := callTool(t, h, map[string]any{})
	assert.True(t, res.IsError)
	assert.Equal(t, "url is required", resultText(t, res))

	res = callTool(t, h, map[string]any{"url": "garden"})
	assert.True(t, res.IsError)
	assert.Equal(t, "[INVALID_INPUT] invalid url", resultText(t, res))
}

func TestExtractRankingTool(t *testing.T) {
	t.Parallel()

	reviews := 1234
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.RankingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, models.VariantSimple, req.Variant)
		_ = json.NewEncoder(w).Encode(models.RankingResponse{
			Success: true,
			Variant: models.VariantSimple,
			Source:  models.MethodDirect,
			Simple: &models.SimpleRanking{
				Title: "Amazon Best Sellers",
				Items: []models.SimpleItem{
					{Name: "Alpha Phone Case", Reviews: &reviews},
					{Name: "Gamma Cable"},
				},
			},
		})
	}))
	defer srv.Close()

	res := callTool(t, handleExtractRanking(newAPIClient(srv.URL, "")), map[string]any{
		"url":     "https://www.amazon.com/gp/bestsellers",
		"variant": models.VariantSimple,
	})
	assert.False(t, res.IsError)
	assert.Equal(t, "Title: Amazon Best Sellers\nSource: direct\n\n"+
		"1. Alpha Phone Case (1234 reviews)\n"+
		"2. Gamma Cable (no reviews)\n", resultText(t, res))
}

func TestExtractContentTool(t *testing.T) {
	t.Parallel()

	got := make(chan models.ContentRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/content", r.URL.Path)
		var req models.ContentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		got <- req
		_ = json.NewEncoder(w).Encode(models.ContentResponse{
			Success:  true,
			Title:    "Kitchen Guide",
			Text:     "Pick a kettle.",
			Markdown: "Pick a [kettle](https://example.com/k).",
			Source:   models.MethodDirect,
		})
	}))
	defer srv.Close()

	res := callTool(t, handleExtractContent(newAPIClient(srv.URL, "")), map[string]any{
		"url":      "https://example.com/guide",
		"markdown": true,
	})
	assert.False(t, res.IsError)
	assert.Equal(t, "Title: Kitchen Guide\nSource: direct\n\nPick a [kettle](https://example.com/k).", resultText(t, res))
	assert.True(t, (<-got).IncludeMarkdown)
}

func TestFormatRankingJSON(t *testing.T) {
	t.Parallel()

	out := formatRanking(&models.RankingResponse{
		Source: "request",
		JSON: &models.RankingJSON{
			RankingTitle: "Best Sellers in Kitchen",
			Items: []models.JSONRankedItem{
				{Rank: 1, ProductName: "Kettle", ReviewCount: models.KnownReviews(5)},
				{Rank: 2, ProductName: "Scale"},
			},
		},
	})
	assert.Equal(t, "Title: Best Sellers in Kitchen\nSource: request\n\n"+
		"1. Kettle (5 reviews)\n"+
		"2. Scale ("+models.NoReviewInfo+")\n", out)
}
