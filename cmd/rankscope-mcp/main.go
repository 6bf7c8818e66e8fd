package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/rankscope/models"
)

func main() {
	apiURL := os.Getenv("RANKSCOPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	c := newAPIClient(apiURL, os.Getenv("RANKSCOPE_API_KEY"))

	s := server.NewMCPServer(
		"rankscope",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	extractTitleTool := mcp.NewTool("extract_title",
		mcp.WithDescription("Resolve a readable title for a marketplace best-seller or category page. Tries URL rules, direct fetch, a reader service, a category API and headless rendering in turn, and reports which source produced the title."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The best-seller or category page URL"),
		),
		mcp.WithString("accept_language",
			mcp.Description("Accept-Language to send upstream (default: derived from the URL host)"),
		),
	)
	s.AddTool(extractTitleTool, handleExtractTitle(c))

	extractRankingTool := mcp.NewTool("extract_ranking",
		mcp.WithDescription("Extract the ranked products of a best-seller page: rank, name, review count and, for the structured variant, price, rating and category sidebar."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The best-seller page URL, also used to resolve relative links"),
		),
		mcp.WithString("variant",
			mcp.Description("Extractor: 'structured' (default), 'json' (rank/name/reviews only) or 'simple' (lightweight name/reviews scan)"),
			mcp.Enum(models.VariantStructured, models.VariantJSON, models.VariantSimple),
		),
		mcp.WithString("html",
			mcp.Description("Page markup to parse instead of fetching the URL"),
		),
	)
	s.AddTool(extractRankingTool, handleExtractRanking(c))

	extractContentTool := mcp.NewTool("extract_content",
		mcp.WithDescription("Extract the title and main-content text of any page, optionally as Markdown."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The page URL"),
		),
		mcp.WithBoolean("markdown",
			mcp.Description("Return the content block as Markdown instead of plain text (default: false)"),
		),
	)
	s.AddTool(extractContentTool, handleExtractContent(c))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiClient calls the rankscope REST API.
type apiClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newAPIClient(baseURL, apiKey string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 180 * time.Second},
	}
}

// post sends payload to path and decodes the JSON response into out. The
// HTTP status is not checked: every API response carries success/error.
func (c *apiClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}

func apiError(fallback string, detail *models.ErrorDetail) string {
	if detail == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", detail.Code, detail.Message)
}

func handleExtractTitle(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var resp models.TitleResponse
		err = c.post(ctx, "/api/v1/title", models.TitleRequest{
			URL:            url,
			AcceptLanguage: request.GetString("accept_language", ""),
		}, &resp)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(apiError("title extraction failed", resp.Error)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Title: %s\nMethod: %s\nElapsed: %dms",
			resp.Title, resp.Method, resp.Timing.TotalMs)), nil
	}
}

func handleExtractRanking(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var resp models.RankingResponse
		err = c.post(ctx, "/api/v1/ranking", models.RankingRequest{
			URL:     url,
			HTML:    request.GetString("html", ""),
			Variant: request.GetString("variant", ""),
		}, &resp)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(apiError("ranking extraction failed", resp.Error)), nil
		}

		return mcp.NewToolResultText(formatRanking(&resp)), nil
	}
}

func handleExtractContent(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		markdown := request.GetBool("markdown", false)

		var resp models.ContentResponse
		err = c.post(ctx, "/api/v1/content", models.ContentRequest{
			URL:             url,
			IncludeMarkdown: markdown,
		}, &resp)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(apiError("content extraction failed", resp.Error)), nil
		}

		body := resp.Text
		if markdown && resp.Markdown != "" {
			body = resp.Markdown
		}
		return mcp.NewToolResultText(fmt.Sprintf("Title: %s\nSource: %s\n\n%s", resp.Title, resp.Source, body)), nil
	}
}

// formatRanking renders a ranking response as a numbered list.
func formatRanking(resp *models.RankingResponse) string {
	var sb strings.Builder
	writeItem := func(rank int, name, reviews string) {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", rank, name, reviews)
	}

	switch {
	case resp.Structured != nil:
		r := resp.Structured
		fmt.Fprintf(&sb, "Title: %s\n", r.Title)
		if r.ActiveCategory != "" {
			fmt.Fprintf(&sb, "Category: %s (%s)\n", r.ActiveCategory, r.ActiveCategoryID)
		}
		fmt.Fprintf(&sb, "Source: %s\n\n", resp.Source)
		for _, it := range r.Items {
			writeItem(it.Rank, it.ProductName, reviewsText(it.ReviewCount))
		}
		if len(r.Sidebar) > 0 {
			sb.WriteString("\nCategories:\n")
			for _, l := range r.Sidebar {
				fmt.Fprintf(&sb, "- %s %s\n", l.Name, l.URL)
			}
		}
	case resp.JSON != nil:
		fmt.Fprintf(&sb, "Title: %s\nSource: %s\n\n", resp.JSON.RankingTitle, resp.Source)
		for _, it := range resp.JSON.Items {
			reviews := models.NoReviewInfo
			if it.ReviewCount.Known {
				reviews = fmt.Sprintf("%d reviews", it.ReviewCount.Value)
			}
			writeItem(it.Rank, it.ProductName, reviews)
		}
	case resp.Simple != nil:
		fmt.Fprintf(&sb, "Title: %s\nSource: %s\n\n", resp.Simple.Title, resp.Source)
		for i, it := range resp.Simple.Items {
			writeItem(i+1, it.Name, reviewsText(it.Reviews))
		}
	}
	return sb.String()
}

func reviewsText(n *int) string {
	if n == nil {
		return "no reviews"
	}
	return fmt.Sprintf("%d reviews", *n)
}
