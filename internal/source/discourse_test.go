package source

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satyamrathirar/popularity-vision/internal/resilience"
	"github.com/satyamrathirar/popularity-vision/pkg/discourse"
)

type fakeDiscourse struct {
	topics    map[string][][]discourse.Topic // keyword -> pages of topics
	details   map[int64]*discourse.TopicDetail
	topicErrs map[int64]error
	searchErr error
}

func (f *fakeDiscourse) Search(ctx context.Context, query string, page int) ([]discourse.Topic, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	pages := f.topics[query]
	if page-1 >= len(pages) {
		return nil, nil
	}
	return pages[page-1], nil
}

func (f *fakeDiscourse) Topic(ctx context.Context, id int64) (*discourse.TopicDetail, error) {
	if err := f.topicErrs[id]; err != nil {
		return nil, err
	}
	d, ok := f.details[id]
	if !ok {
		return nil, &discourse.APIError{StatusCode: 404}
	}
	return d, nil
}

func (f *fakeDiscourse) TopicURL(slug string, id int64) string {
	return fmt.Sprintf("https://forum.example.com/t/%s/%d", slug, id)
}

func TestDiscourseIteratorYieldsTopics(t *testing.T) {
	client := &fakeDiscourse{
		topics: map[string][][]discourse.Topic{
			"n8n webhook": {
				{{ID: 1, Title: "Webhook Relay", Slug: "webhook-relay"}},
				{{ID: 2, Title: "Webhook Auth", Slug: "webhook-auth"}},
			},
		},
		details: map[int64]*discourse.TopicDetail{
			1: {ID: 1, Title: "Webhook Relay", Slug: "webhook-relay", Views: 500, ReplyCount: 12, LikeCount: 3, HasAcceptedAnswer: true},
			2: {ID: 2, Title: "Webhook Auth", Slug: "webhook-auth", Views: 90},
		},
	}

	it := NewDiscourse(client).Fetch(FetchParams{
		Keywords:        []string{"n8n webhook"},
		PagesPerKeyword: 2,
	})
	items := drain(t, it)

	require.Len(t, items, 2)
	assert.Equal(t, "Webhook Relay", items[0].Name)
	assert.Equal(t, "https://forum.example.com/t/webhook-relay/1", items[0].SourceURL)
	assert.Equal(t, int64(500), items[0].Fields["views"])
	assert.Equal(t, true, items[0].Fields["solved"])
	assert.Equal(t, "Webhook Auth", items[1].Name)
}

func TestDiscourseIteratorSkipsBadTopic(t *testing.T) {
	client := &fakeDiscourse{
		topics: map[string][][]discourse.Topic{
			"kw": {{{ID: 1, Title: "Good"}, {ID: 2, Title: "Gone"}, {ID: 3, Title: "Also Good"}}},
		},
		details: map[int64]*discourse.TopicDetail{
			1: {ID: 1, Title: "Good", Slug: "good"},
			3: {ID: 3, Title: "Also Good", Slug: "also-good"},
		},
	}

	it := NewDiscourse(client).Fetch(FetchParams{Keywords: []string{"kw"}, PagesPerKeyword: 1})
	items := drain(t, it)

	require.Len(t, items, 2)
	assert.Equal(t, "Good", items[0].Name)
	assert.Equal(t, "Also Good", items[1].Name)
}

func TestDiscourseIteratorResumesAfterTransient(t *testing.T) {
	client := &fakeDiscourse{
		topics: map[string][][]discourse.Topic{
			"kw": {{{ID: 1, Title: "Flaky"}}},
		},
		topicErrs: map[int64]error{
			1: &discourse.APIError{StatusCode: 503},
		},
		details: map[int64]*discourse.TopicDetail{
			1: {ID: 1, Title: "Flaky", Slug: "flaky", Views: 7},
		},
	}

	it := NewDiscourse(client).Fetch(FetchParams{Keywords: []string{"kw"}, PagesPerKeyword: 1})

	_, err := it.Next(context.Background())
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	// Clear the failure; a retried Next picks up the same topic.
	client.topicErrs = nil
	item, err := it.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Flaky", item.Name)
}

func TestDiscourseIteratorRateLimitIsTransient(t *testing.T) {
	client := &fakeDiscourse{
		searchErr: &discourse.APIError{StatusCode: 429},
	}
	it := NewDiscourse(client).Fetch(FetchParams{Keywords: []string{"kw"}, PagesPerKeyword: 1})

	_, err := it.Next(context.Background())
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}
