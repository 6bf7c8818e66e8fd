package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// NoReviewInfo is the sentinel emitted by the JSON-ranking variant when a
// card carries no review count.
const NoReviewInfo = "无评论数信息"

// Ranking variants accepted by POST /api/v1/ranking.
const (
	VariantStructured = "structured"
	VariantJSON       = "json"
	VariantSimple     = "simple"
)

// RankedItem is one product in a structured ranking. ReviewCount is nil when
// the card carries no parsable count.
type RankedItem struct {
	Rank        int    `json:"rank"`
	ProductName string `json:"product_name"`
	ReviewCount *int   `json:"review_count"`
	ProductURL  string `json:"product_url"`
	RatingText  string `json:"rating_text"`
	ReviewsURL  string `json:"reviews_url"`
	PriceText   string `json:"price_text"`
}

// SidebarLink is a category-navigation link found next to a ranking.
type SidebarLink struct {
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	NavLevel    *int    `json:"nav_level"`
	NavAncestor *string `json:"nav_ancestor"`
	CategoryID  *string `json:"category_id"`
}

// Ranking is the output of the structured extractor.
type Ranking struct {
	Title            string        `json:"title"`
	ActiveCategory   string        `json:"active_category"`
	ActiveCategoryID string        `json:"active_category_id"`
	Sidebar          []SidebarLink `json:"sidebar"`
	Items            []RankedItem  `json:"items"`
}

// ReviewCount is either a known non-negative count or unknown. Unknown values
// marshal to the NoReviewInfo sentinel string.
type ReviewCount struct {
	Value int
	Known bool
}

// KnownReviews returns a ReviewCount holding n.
func KnownReviews(n int) ReviewCount { return ReviewCount{Value: n, Known: true} }

func (r ReviewCount) MarshalJSON() ([]byte, error) {
	if !r.Known {
		return json.Marshal(NoReviewInfo)
	}
	return []byte(strconv.Itoa(r.Value)), nil
}

func (r *ReviewCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*r = ReviewCount{}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = KnownReviews(n)
	return nil
}

// JSONRankedItem is one product in the JSON-ranking variant.
type JSONRankedItem struct {
	Rank        int         `json:"rank"`
	ProductName string      `json:"product_name"`
	ReviewCount ReviewCount `json:"review_count"`
}

// RankingJSON is the output of the JSON-ranking extractor.
type RankingJSON struct {
	RankingTitle string           `json:"ranking_title"`
	Items        []JSONRankedItem `json:"items"`
}

// SimpleItem is a product from the lightweight extractor.
type SimpleItem struct {
	Name    string `json:"name"`
	Reviews *int   `json:"reviews"`
}

// SimpleRanking is the output of the lightweight extractor.
type SimpleRanking struct {
	Title string       `json:"title"`
	Items []SimpleItem `json:"items"`
}

// RankingRequest is the payload for POST /api/v1/ranking.
type RankingRequest struct {
	// URL is the ranking page. Required; also used to resolve relative links.
	URL string `json:"url" binding:"required,url"`

	// HTML, when set, is parsed directly instead of fetching URL.
	HTML string `json:"html,omitempty"`

	// Variant selects the extractor. Default: "structured".
	Variant string `json:"variant,omitempty" binding:"omitempty,oneof=structured json simple"`
}

// Defaults applies default values to unset fields.
func (r *RankingRequest) Defaults() {
	if r.Variant == "" {
		r.Variant = VariantStructured
	}
}

// RankingResponse is the response for POST /api/v1/ranking. Exactly one of
// the payload fields is set on success, matching the requested variant.
type RankingResponse struct {
	Success    bool           `json:"success"`
	Variant    string         `json:"variant,omitempty"`
	Structured *Ranking       `json:"structured,omitempty"`
	JSON       *RankingJSON   `json:"json,omitempty"`
	Simple     *SimpleRanking `json:"simple,omitempty"`
	Source     string         `json:"source,omitempty"`
	Timing     TimingInfo     `json:"timing"`
	Error      *ErrorDetail   `json:"error,omitempty"`
}
