package models

// Method tags record which strategy produced a returned title.
const (
	MethodRule        = "rule"
	MethodDirect      = "direct"
	MethodProxy       = "proxy"
	MethodReader      = "reader"
	MethodOpenGraph   = "og"
	MethodRender      = "render"
	MethodMeliAPI     = "meli-api"
	MethodURLFallback = "url-fallback"
)

// TitleResult is the final outcome of one pipeline run.
type TitleResult struct {
	Title  string `json:"title"`
	Method string `json:"method"`
	RunID  string `json:"run_id,omitempty"`
}

// TitleRequest is the payload for POST /api/v1/title.
type TitleRequest struct {
	// URL is the bestseller or category page to title. Required.
	URL string `json:"url" binding:"required,url"`

	// AcceptLanguage overrides the host-derived language preference.
	AcceptLanguage string `json:"accept_language,omitempty"`
}

// TitleResponse is the response for POST /api/v1/title.
type TitleResponse struct {
	Success bool         `json:"success"`
	Title   string       `json:"title,omitempty"`
	Method  string       `json:"method,omitempty"`
	RunID   string       `json:"run_id,omitempty"`
	Timing  TimingInfo   `json:"timing"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// RenderTitleResponse is the body of a successful /render-title call.
type RenderTitleResponse struct {
	Title string `json:"title"`
}

// RenderErrorResponse is the body of a failed /render-title call.
type RenderErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// TimingInfo provides duration breakdowns for an operation.
type TimingInfo struct {
	TotalMs   int64 `json:"total_ms"`
	AcquireMs int64 `json:"acquire_ms,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports render page pool utilisation.
type PoolStats struct {
	MaxPages    int  `json:"max_pages"`
	ActivePages int  `json:"active_pages"`
	Enabled     bool `json:"enabled"`
}
