package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rankscope/models"
)

// ProxyFetcher performs the server-side fetch behind /proxy-fetch.
type ProxyFetcher interface {
	ProxyFetch(ctx context.Context, targetURL, acceptLanguage string) (string, error)
}

// TitleRenderer renders a page headlessly and reports its title.
type TitleRenderer interface {
	RenderTitle(ctx context.Context, targetURL, acceptLanguage string) (string, error)
}

// ProxyFetch returns a handler for GET /proxy-fetch?url=&al=.
//
// The upstream body is relayed as text whatever its status. A refused or
// malformed target answers 400, any other failure 500, both with the error
// message as a plain-text body.
func ProxyFetch(f ProxyFetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Query("url")
		if target == "" {
			c.String(http.StatusBadRequest, "Missing url")
			return
		}

		body, err := f.ProxyFetch(c.Request.Context(), target, c.Query("al"))
		if err != nil {
			status := http.StatusInternalServerError
			var se *models.ScrapeError
			if errors.As(err, &se) && se.Code == models.ErrCodeInvalidInput {
				status = http.StatusBadRequest
			}
			slog.Warn("proxy-fetch failed", "url", target, "status", status, "error", err)
			c.String(status, err.Error())
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body))
	}
}

// RenderTitle returns a handler for GET /render-title?url=&al=.
//
// A nil renderer, or one reporting RENDER_UNAVAILABLE, answers 501 so
// callers can tell a missing capability from a failed render.
func RenderTitle(r TitleRenderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Query("url")
		if target == "" {
			c.JSON(http.StatusBadRequest, models.RenderErrorResponse{Error: "Missing url"})
			return
		}
		if r == nil {
			c.JSON(http.StatusNotImplemented, models.RenderErrorResponse{
				Error:   "Browser unavailable",
				Message: "headless rendering is disabled",
			})
			return
		}

		title, err := r.RenderTitle(c.Request.Context(), target, c.Query("al"))
		if err != nil {
			if scrapeErr := asScrapeError(err); scrapeErr.Code == models.ErrCodeRenderUnavailable {
				c.JSON(http.StatusNotImplemented, models.RenderErrorResponse{
					Error:   "Browser unavailable",
					Message: err.Error(),
				})
				return
			}
			slog.Warn("render-title failed", "url", target, "error", err)
			c.JSON(http.StatusInternalServerError, models.RenderErrorResponse{
				Error:   "Render error",
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, models.RenderTitleResponse{Title: title})
	}
}
