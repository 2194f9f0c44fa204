package source

import (
	"context"
	"errors"
	"io"

	"github.com/rotisserie/eris"

	"github.com/satyamrathirar/popularity-vision/internal/model"
	"github.com/satyamrathirar/popularity-vision/internal/resilience"
	"github.com/satyamrathirar/popularity-vision/pkg/discourse"
)

// DiscourseConnector ingests forum topic engagement from a Discourse forum.
type DiscourseConnector struct {
	client discourse.Client
}

// NewDiscourse creates the forum connector.
func NewDiscourse(client discourse.Client) *DiscourseConnector {
	return &DiscourseConnector{client: client}
}

func (c *DiscourseConnector) Name() string             { return "discourse" }
func (c *DiscourseConnector) Platform() model.Platform { return model.PlatformDiscourse }

func (c *DiscourseConnector) Fetch(params FetchParams) Iterator {
	if len(params.Keywords) == 0 {
		return done{}
	}
	return &discourseIterator{
		client: c.client,
		params: params,
		page:   1,
	}
}

type discourseIterator struct {
	client discourse.Client
	params FetchParams

	kwIndex int
	page    int
	buffer  []discourse.Topic
}

func (it *discourseIterator) Next(ctx context.Context) (*RawItem, error) {
	for {
		if len(it.buffer) > 0 {
			topic := it.buffer[0]
			it.buffer = it.buffer[1:]

			detail, err := it.client.Topic(ctx, topic.ID)
			if err != nil {
				cerr := classifyDiscourseErr(err)
				if resilience.IsPermanentItem(cerr) {
					// One bad topic; the rest of the page is still good.
					continue
				}
				// Put the topic back so a retried Next resumes here.
				it.buffer = append([]discourse.Topic{topic}, it.buffer...)
				return nil, cerr
			}
			return it.item(detail), nil
		}

		if it.kwIndex >= len(it.params.Keywords) {
			return nil, io.EOF
		}

		if it.page > it.params.PagesPerKeyword {
			it.kwIndex++
			it.page = 1
			continue
		}

		keyword := it.params.Keywords[it.kwIndex]
		topics, err := it.client.Search(ctx, keyword, it.page)
		if err != nil {
			cerr := classifyDiscourseErr(err)
			if resilience.IsPermanentItem(cerr) {
				it.kwIndex++
				it.page = 1
			}
			return nil, cerr
		}
		it.page++

		if len(topics) == 0 {
			// Empty page means this keyword is drained.
			it.kwIndex++
			it.page = 1
			continue
		}
		it.buffer = topics
	}
}

func (it *discourseIterator) item(d *discourse.TopicDetail) *RawItem {
	fields := map[string]any{
		"views":   d.Views,
		"replies": d.ReplyCount,
		"likes":   d.LikeCount,
		"solved":  d.HasAcceptedAnswer,
	}
	return &RawItem{
		Keyword:   it.params.Keywords[it.kwIndex],
		Name:      d.Title,
		SourceURL: it.client.TopicURL(d.Slug, d.ID),
		Fields:    fields,
	}
}

func classifyDiscourseErr(err error) error {
	var apiErr *discourse.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			// Discourse signals quota purely through 429s; a single one is
			// retryable, the orchestrator escalates if they persist.
			return resilience.NewTransient(apiErr, apiErr.StatusCode)
		case resilience.IsTransientHTTPStatus(apiErr.StatusCode):
			return resilience.NewTransient(apiErr, apiErr.StatusCode)
		default:
			return resilience.NewPermanentItem(apiErr)
		}
	}
	if resilience.IsTransient(err) {
		return err
	}
	return eris.Wrap(err, "discourse connector")
}
