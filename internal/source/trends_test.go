package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satyamrathirar/popularity-vision/internal/resilience"
	"github.com/satyamrathirar/popularity-vision/pkg/gtrends"
)

type fakeTrends struct {
	interest map[string]*gtrends.KeywordInterest // keyword+"/"+country
	errs     map[string]error
}

func (f *fakeTrends) Interest(ctx context.Context, keyword, country string) (*gtrends.KeywordInterest, error) {
	key := keyword + "/" + country
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	if ki, ok := f.interest[key]; ok {
		return ki, nil
	}
	return &gtrends.KeywordInterest{Keyword: keyword, Country: country}, nil
}

func TestTrendsIteratorPerKeywordPerCountry(t *testing.T) {
	client := &fakeTrends{
		interest: map[string]*gtrends.KeywordInterest{
			"n8n/US": {Keyword: "n8n", Country: "US", SearchVolume: 1000, Competition: 0.4, CPC: 1.2, TrendDirection: "rising"},
			"n8n/IN": {Keyword: "n8n", Country: "IN", SearchVolume: 700},
		},
	}

	it := NewTrends(client, []string{"US", "IN"}).Fetch(FetchParams{Keywords: []string{"n8n", "zapier"}})
	items := drain(t, it)

	require.Len(t, items, 4)
	assert.Equal(t, "n8n", items[0].Name)
	assert.Equal(t, "US", items[0].Country)
	assert.Equal(t, 1000.0, items[0].Fields["search_volume"])
	assert.Equal(t, "rising", items[0].Fields["trend_direction"])
	assert.Equal(t, "IN", items[1].Country)
	assert.Equal(t, "zapier", items[2].Name)
}

func TestTrendsIteratorWorldwideDefault(t *testing.T) {
	client := &fakeTrends{}

	it := NewTrends(client, nil).Fetch(FetchParams{Keywords: []string{"n8n"}})
	items := drain(t, it)

	require.Len(t, items, 1)
	assert.Empty(t, items[0].Country, "worldwide data carries no country; normalizer maps it to GLOBAL")
}

func TestTrendsIteratorQuota(t *testing.T) {
	client := &fakeTrends{
		errs: map[string]error{
			"n8n/US": &gtrends.APIError{StatusCode: 403, Message: "quota"},
		},
	}

	it := NewTrends(client, []string{"US"}).Fetch(FetchParams{Keywords: []string{"n8n"}})
	_, err := it.Next(context.Background())
	require.Error(t, err)
	assert.True(t, resilience.IsQuotaExceeded(err))
}

func TestTrendsIteratorSkipsPermanent(t *testing.T) {
	client := &fakeTrends{
		errs: map[string]error{
			"bad kw/US": &gtrends.APIError{StatusCode: 400, Message: "invalid keyword"},
		},
	}

	it := NewTrends(client, []string{"US"}).Fetch(FetchParams{Keywords: []string{"bad kw", "good kw"}})

	_, err := it.Next(context.Background())
	require.True(t, resilience.IsPermanentItem(err))

	item, err := it.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "good kw", item.Name)
}
