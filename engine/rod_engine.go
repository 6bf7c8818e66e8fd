package engine

import (
	"context"
	"fmt"
)

// Renderer produces a title by rendering a page in a headless browser.
type Renderer interface {
	Name() string
	RenderTitle(ctx context.Context, url, acceptLanguage string) (string, error)
}

// RenderFunc is the callback type that wraps scraper.Scraper.RenderTitle.
// It is injected from main.go to avoid a circular import (engine/ -> scraper/).
type RenderFunc func(ctx context.Context, url, acceptLanguage string) (string, error)

// RodRenderer is the in-process browser renderer.
type RodRenderer struct {
	renderFunc RenderFunc
}

// NewRodRenderer creates a RodRenderer around fn.
func NewRodRenderer(fn RenderFunc) *RodRenderer {
	return &RodRenderer{renderFunc: fn}
}

func (r *RodRenderer) Name() string { return "rod" }

func (r *RodRenderer) RenderTitle(ctx context.Context, url, acceptLanguage string) (string, error) {
	if r.renderFunc == nil {
		return "", fmt.Errorf("%s: renderFunc not configured", r.Name())
	}
	title, err := r.renderFunc(ctx, url, acceptLanguage)
	if err != nil {
		return "", fmt.Errorf("%s: %w", r.Name(), err)
	}
	return title, nil
}
