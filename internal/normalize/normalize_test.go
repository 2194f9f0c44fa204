package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satyamrathirar/popularity-vision/internal/model"
	"github.com/satyamrathirar/popularity-vision/internal/resilience"
	"github.com/satyamrathirar/popularity-vision/internal/source"
)

func TestRecordBasic(t *testing.T) {
	item := &source.RawItem{
		Keyword:   "n8n slack",
		Name:      "slack alert workflow",
		Country:   "us",
		SourceURL: "https://example.com/v/1",
		Fields: map[string]any{
			"views": int64(1200),
			"likes": 34,
		},
	}

	rec, err := Record(item, model.PlatformYouTube)
	require.NoError(t, err)

	assert.Equal(t, "Slack Alert Workflow", rec.WorkflowName)
	assert.Equal(t, model.PlatformYouTube, rec.Platform)
	assert.Equal(t, "US", rec.Country)
	assert.Equal(t, "https://example.com/v/1", rec.SourceURL)
	assert.Equal(t, 1200.0, rec.Metrics["views"])
	assert.Equal(t, 34.0, rec.Metrics["likes"])
}

func TestRecordMissingCountryIsGlobal(t *testing.T) {
	item := &source.RawItem{Name: "Webhook Relay", Fields: map[string]any{}}

	rec, err := Record(item, model.PlatformDiscourse)
	require.NoError(t, err)
	assert.Equal(t, model.GlobalCountry, rec.Country)
}

func TestRecordEmptyNameIsPermanent(t *testing.T) {
	item := &source.RawItem{Keyword: "n8n", Name: "   ", Fields: map[string]any{}}

	_, err := Record(item, model.PlatformYouTube)
	require.Error(t, err)
	assert.True(t, resilience.IsPermanentItem(err))
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{int(5), 5.0},
		{int64(5), 5.0},
		{uint32(7), 7.0},
		{float32(1.5), 1.5},
		{float64(2.5), 2.5},
		{json.Number("42"), 42.0},
		{"123", 123.0},
		{"-1.5", -1.5},
		{"rising", "rising"},
		{"12abc", "12abc"},
		{"", ""},
		{true, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, coerce(tc.in), "coerce(%v)", tc.in)
	}
}
