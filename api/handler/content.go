package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rankscope/cleaner"
	"github.com/use-agent/rankscope/models"
)

// Content returns a handler for POST /api/v1/content. It shares the
// acquisition path of the ranking handler and returns the page title plus
// a main-content snippet.
func Content(fetcher HTMLFetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.ContentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ContentResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		html, source := req.HTML, sourceRequest
		var acquireMs int64
		if html == "" {
			acquireStart := time.Now()
			var err error
			html, source, err = fetcher.FetchHTML(c.Request.Context(), req.URL, "")
			acquireMs = time.Since(acquireStart).Milliseconds()
			if err == nil && html == "" {
				err = models.NewScrapeError(models.ErrCodeUpstream, "no source returned the page", nil)
			}
			if err != nil {
				scrapeErr := asScrapeError(err)
				c.JSON(mapErrorToStatus(scrapeErr), models.ContentResponse{
					Success: false,
					Error:   scrapeErr.ToDetail(),
					Timing: models.TimingInfo{
						TotalMs:   time.Since(totalStart).Milliseconds(),
						AcquireMs: acquireMs,
					},
				})
				return
			}
		}

		gc := cleaner.ExtractGenericContent(html, req.URL)
		resp := models.ContentResponse{
			Success: true,
			Title:   gc.Title,
			Text:    gc.Text,
			Locator: gc.Source,
			Source:  source,
			Timing: models.TimingInfo{
				TotalMs:   time.Since(totalStart).Milliseconds(),
				AcquireMs: acquireMs,
			},
		}
		if req.IncludeMarkdown {
			resp.Markdown = gc.Markdown
		}
		c.JSON(http.StatusOK, resp)
	}
}
