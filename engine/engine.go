package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/use-agent/rankscope/models"
)

// Engine is the interface that all acquisition strategies implement.
type Engine interface {
	// Name returns the engine identifier ("direct", "proxy", "reader").
	// The pipeline uses it as the method tag of titles the engine produced.
	Name() string

	// Fetch retrieves the payload for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL string

	// AcceptLanguage is forwarded to the target (or intermediary) verbatim.
	AcceptLanguage string

	// Headers override the engine's default headers.
	Headers map[string]string
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	Body       string
	StatusCode int
	FinalURL   string
	EngineName string
}

// StatusError reports a non-success HTTP status from an upstream.
type StatusError struct {
	Engine string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Engine, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Engine, e.Status, truncate(e.Body, 200))
}

// Acquire runs one engine under its own deadline and reduces every failure
// to an empty payload. Only caller cancellation escapes, as a ScrapeError
// with code REQUEST_CANCELED; an expired per-call deadline is an ordinary
// empty result.
func Acquire(ctx context.Context, e Engine, req *FetchRequest, timeout time.Duration) (string, error) {
	if req == nil || req.URL == "" {
		return "", models.NewScrapeError(models.ErrCodeInvalidInput, "acquire: empty url", nil)
	}
	if err := ctx.Err(); err != nil {
		return "", canceledErr(e.Name(), err)
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := e.Fetch(callCtx, req)
	if err != nil {
		// The parent context tells caller abandonment apart from our own
		// deadline firing.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", canceledErr(e.Name(), ctxErr)
		}
		return "", nil
	}
	if res == nil {
		return "", nil
	}
	return res.Body, nil
}

func canceledErr(engine string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewScrapeError(models.ErrCodeTimeout, engine+": caller deadline exceeded", err)
	}
	return models.NewScrapeError(models.ErrCodeCanceled, engine+": request canceled", err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
