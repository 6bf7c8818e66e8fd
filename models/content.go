package models

// ContentRequest is the payload for POST /api/v1/content.
type ContentRequest struct {
	// URL is the page to read. Required; also resolves relative links in
	// the Markdown rendering.
	URL string `json:"url" binding:"required,url"`

	// HTML, when set, is parsed directly instead of fetching URL.
	HTML string `json:"html,omitempty"`

	// IncludeMarkdown adds a Markdown rendering of the content block.
	IncludeMarkdown bool `json:"include_markdown,omitempty"`
}

// ContentResponse is the response for POST /api/v1/content.
type ContentResponse struct {
	Success  bool   `json:"success"`
	Title    string `json:"title,omitempty"`
	Text     string `json:"text,omitempty"`
	Markdown string `json:"markdown,omitempty"`

	// Locator names the step that found the content block: a container
	// selector, "readability", "pruning" or "body".
	Locator string `json:"locator,omitempty"`

	// Source is the engine that acquired the page, or "request".
	Source string       `json:"source,omitempty"`
	Timing TimingInfo   `json:"timing"`
	Error  *ErrorDetail `json:"error,omitempty"`
}
