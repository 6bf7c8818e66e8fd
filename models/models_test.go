package models_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/rankscope/models"
)

func TestReviewCountJSON(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal([]models.JSONRankedItem{
		{Rank: 1, ProductName: "Kettle", ReviewCount: models.KnownReviews(0)},
		{Rank: 2, ProductName: "Scale"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"rank":1,"product_name":"Kettle","review_count":0},
		{"rank":2,"product_name":"Scale","review_count":"`+models.NoReviewInfo+`"}
	]`, string(out))

	var back []models.JSONRankedItem
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, models.KnownReviews(0), back[0].ReviewCount)
	assert.False(t, back[1].ReviewCount.Known)
}

func TestRankedItemNullReviews(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(models.RankedItem{Rank: 1, ProductName: "Kettle"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"review_count":null`)
}

func TestIsCanceled(t *testing.T) {
	t.Parallel()

	assert.False(t, models.IsCanceled(nil))
	assert.True(t, models.IsCanceled(context.Canceled))
	assert.True(t, models.IsCanceled(fmt.Errorf("wrapped: %w", context.Canceled)))
	assert.True(t, models.IsCanceled(models.NewScrapeError(models.ErrCodeCanceled, "gone", nil)))
	assert.False(t, models.IsCanceled(models.NewScrapeError(models.ErrCodeTimeout, "slow", context.DeadlineExceeded)))
	assert.False(t, models.IsCanceled(errors.New("boom")))
}

func TestScrapeErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial refused")
	err := models.NewScrapeError(models.ErrCodeUpstream, "fetch failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "UPSTREAM_FAILED: fetch failed: dial refused", err.Error())
	assert.Equal(t, &models.ErrorDetail{Code: models.ErrCodeUpstream, Message: "fetch failed"}, err.ToDetail())
}

func TestRankingRequestDefaults(t *testing.T) {
	t.Parallel()

	req := models.RankingRequest{URL: "https://example.com"}
	req.Defaults()
	assert.Equal(t, models.VariantStructured, req.Variant)
}
