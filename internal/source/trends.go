package source

import (
	"context"
	"errors"
	"io"

	"github.com/rotisserie/eris"

	"github.com/satyamrathirar/popularity-vision/internal/model"
	"github.com/satyamrathirar/popularity-vision/internal/resilience"
	"github.com/satyamrathirar/popularity-vision/pkg/gtrends"
)

// TrendsConnector ingests search-volume and ad metrics per keyword and
// market. Unlike the other connectors it has no paging: each keyword yields
// one item per configured country.
type TrendsConnector struct {
	client    gtrends.Client
	countries []string
}

// NewTrends creates the search-trends/ads connector. An empty country list
// requests worldwide data only.
func NewTrends(client gtrends.Client, countries []string) *TrendsConnector {
	return &TrendsConnector{client: client, countries: countries}
}

func (c *TrendsConnector) Name() string             { return "trends" }
func (c *TrendsConnector) Platform() model.Platform { return model.PlatformGoogleTrends }

func (c *TrendsConnector) Fetch(params FetchParams) Iterator {
	if len(params.Keywords) == 0 {
		return done{}
	}
	countries := c.countries
	if len(countries) == 0 {
		countries = []string{""}
	}
	return &trendsIterator{
		client:    c.client,
		params:    params,
		countries: countries,
	}
}

type trendsIterator struct {
	client    gtrends.Client
	params    FetchParams
	countries []string

	kwIndex      int
	countryIndex int
}

func (it *trendsIterator) Next(ctx context.Context) (*RawItem, error) {
	if it.kwIndex >= len(it.params.Keywords) {
		return nil, io.EOF
	}

	keyword := it.params.Keywords[it.kwIndex]
	country := it.countries[it.countryIndex]

	ki, err := it.client.Interest(ctx, keyword, country)
	if err != nil {
		cerr := classifyTrendsErr(err)
		if resilience.IsPermanentItem(cerr) {
			it.advance()
		}
		return nil, cerr
	}
	it.advance()

	return &RawItem{
		Keyword: keyword,
		Name:    keyword,
		Country: ki.Country,
		Fields: map[string]any{
			"search_volume":   ki.SearchVolume,
			"competition":     ki.Competition,
			"cpc":             ki.CPC,
			"trend_direction": ki.TrendDirection,
		},
	}, nil
}

func (it *trendsIterator) advance() {
	it.countryIndex++
	if it.countryIndex >= len(it.countries) {
		it.countryIndex = 0
		it.kwIndex++
	}
}

func classifyTrendsErr(err error) error {
	var apiErr *gtrends.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 403:
			return resilience.NewQuotaExceeded("trends", apiErr)
		case resilience.IsTransientHTTPStatus(apiErr.StatusCode):
			return resilience.NewTransient(apiErr, apiErr.StatusCode)
		default:
			return resilience.NewPermanentItem(apiErr)
		}
	}
	if resilience.IsTransient(err) {
		return err
	}
	return eris.Wrap(err, "trends connector")
}
