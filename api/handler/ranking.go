package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rankscope/models"
	"github.com/use-agent/rankscope/ranking"
)

// sourceRequest marks a ranking parsed from caller-supplied HTML.
const sourceRequest = "request"

// HTMLFetcher acquires page markup for a URL.
type HTMLFetcher interface {
	FetchHTML(ctx context.Context, rawURL, acceptLanguage string) (html, method string, err error)
}

// Ranking returns a handler for POST /api/v1/ranking.
//
// Flow:
//  1. Parse & validate request, apply defaults.
//  2. Use the supplied HTML, or acquire it (records acquire_ms).
//  3. Run the requested extractor variant.
func Ranking(fetcher HTMLFetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.RankingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.RankingResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		// ── 2. Acquire ──────────────────────────────────────────────
		html, source := req.HTML, sourceRequest
		var acquireMs int64
		if html == "" {
			acquireStart := time.Now()
			var err error
			html, source, err = fetcher.FetchHTML(c.Request.Context(), req.URL, "")
			acquireMs = time.Since(acquireStart).Milliseconds()
			if err != nil {
				respondRankingError(c, err, models.TimingInfo{
					TotalMs:   time.Since(totalStart).Milliseconds(),
					AcquireMs: acquireMs,
				})
				return
			}
			if html == "" {
				respondRankingError(c, models.NewScrapeError(models.ErrCodeUpstream, "no source returned the page", nil), models.TimingInfo{
					TotalMs:   time.Since(totalStart).Milliseconds(),
					AcquireMs: acquireMs,
				})
				return
			}
		}

		// ── 3. Extract ──────────────────────────────────────────────
		resp := models.RankingResponse{Success: true, Variant: req.Variant, Source: source}
		var err error
		switch req.Variant {
		case models.VariantJSON:
			resp.JSON, err = ranking.ExtractJSON(html, req.URL)
		case models.VariantSimple:
			resp.Simple, err = ranking.ExtractSimple(html)
		default:
			resp.Structured, err = ranking.Extract(html, req.URL)
		}
		resp.Timing = models.TimingInfo{
			TotalMs:   time.Since(totalStart).Milliseconds(),
			AcquireMs: acquireMs,
		}
		if err != nil {
			respondRankingError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), resp.Timing)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

func respondRankingError(c *gin.Context, err error, timing models.TimingInfo) {
	scrapeErr := asScrapeError(err)
	c.JSON(mapErrorToStatus(scrapeErr), models.RankingResponse{
		Success: false,
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	})
}
