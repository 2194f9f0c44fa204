package source

import (
	"context"
	"errors"
	"io"

	"github.com/rotisserie/eris"

	"github.com/satyamrathirar/popularity-vision/internal/model"
	"github.com/satyamrathirar/popularity-vision/internal/resilience"
	"github.com/satyamrathirar/popularity-vision/pkg/youtube"
)

// YouTubeConnector ingests video popularity via the YouTube Data API.
type YouTubeConnector struct {
	client youtube.Client
}

// NewYouTube creates the video platform connector.
func NewYouTube(client youtube.Client) *YouTubeConnector {
	return &YouTubeConnector{client: client}
}

func (c *YouTubeConnector) Name() string             { return "youtube" }
func (c *YouTubeConnector) Platform() model.Platform { return model.PlatformYouTube }

func (c *YouTubeConnector) Fetch(params FetchParams) Iterator {
	if len(params.Keywords) == 0 {
		return done{}
	}
	return &youtubeIterator{
		client: c.client,
		params: params,
	}
}

type youtubeIterator struct {
	client youtube.Client
	params FetchParams

	kwIndex   int
	pageToken string
	pagesDone int
	buffer    []youtube.Video
}

func (it *youtubeIterator) Next(ctx context.Context) (*RawItem, error) {
	for {
		if len(it.buffer) > 0 {
			v := it.buffer[0]
			it.buffer = it.buffer[1:]
			return it.item(v), nil
		}

		if it.kwIndex >= len(it.params.Keywords) {
			return nil, io.EOF
		}

		// Current keyword exhausted its page budget: advance.
		if it.pagesDone >= it.params.PagesPerKeyword {
			it.advanceKeyword()
			continue
		}

		keyword := it.params.Keywords[it.kwIndex]
		page, err := it.client.SearchPage(ctx, keyword, it.pageToken, 50)
		if err != nil {
			cerr := classifyYouTubeErr(err)
			if resilience.IsPermanentItem(cerr) {
				it.advanceKeyword()
			}
			return nil, cerr
		}
		it.pagesDone++

		if page.NextPageToken == "" {
			// No more pages for this keyword regardless of budget.
			it.pagesDone = it.params.PagesPerKeyword
		}
		it.pageToken = page.NextPageToken

		if len(page.VideoIDs) == 0 {
			it.advanceKeyword()
			continue
		}

		videos, err := it.client.VideoStats(ctx, page.VideoIDs)
		if err != nil {
			cerr := classifyYouTubeErr(err)
			if resilience.IsPermanentItem(cerr) {
				it.advanceKeyword()
			}
			return nil, cerr
		}
		it.buffer = videos
	}
}

func (it *youtubeIterator) advanceKeyword() {
	it.kwIndex++
	it.pageToken = ""
	it.pagesDone = 0
}

func (it *youtubeIterator) item(v youtube.Video) *RawItem {
	fields := map[string]any{
		"views":    v.ViewCount,
		"likes":    v.LikeCount,
		"comments": v.CommentCount,
		"channel":  v.ChannelTitle,
	}
	if v.ViewCount > 0 {
		fields["like_ratio"] = float64(v.LikeCount) / float64(v.ViewCount)
		fields["comment_ratio"] = float64(v.CommentCount) / float64(v.ViewCount)
	}
	return &RawItem{
		Keyword:   it.params.Keywords[it.kwIndex],
		Name:      v.Title,
		SourceURL: "https://www.youtube.com/watch?v=" + v.ID,
		Fields:    fields,
	}
}

func classifyYouTubeErr(err error) error {
	var apiErr *youtube.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.QuotaExhausted():
			return resilience.NewQuotaExceeded("youtube", apiErr)
		case resilience.IsTransientHTTPStatus(apiErr.StatusCode):
			return resilience.NewTransient(apiErr, apiErr.StatusCode)
		default:
			return resilience.NewPermanentItem(apiErr)
		}
	}
	if resilience.IsTransient(err) {
		return err
	}
	return eris.Wrap(err, "youtube connector")
}
