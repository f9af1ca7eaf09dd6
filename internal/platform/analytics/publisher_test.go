package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilPublisherDropsEvents(t *testing.T) {
	var p *Publisher
	p.Publish(AnimeViewed, "u1", map[string]any{"anime_id": "frieren"})
	assert.NoError(t, p.Flush(context.Background()))

	stub := New(nil, nil)
	stub.Publish(CommentPosted, "", nil)
	assert.NoError(t, stub.Flush(context.Background()))
}

func TestKindSubjects(t *testing.T) {
	assert.Equal(t, SubjectAnimeViewed, AnimeViewed.Subject())
	assert.Equal(t, "analytics.catalog.search_performed", SearchPerformed.Subject())
	assert.Equal(t, "analytics.catalog.report_filed", ReportFiled.Subject())
	assert.Equal(t, "analytics.social.comment_posted", CommentPosted.Subject())
	assert.Equal(t, "analytics.social.list_changed", ListChanged.Subject())
}

func TestEventIDsAreTimeOrdered(t *testing.T) {
	a, b := newEventID(), newEventID()
	assert.Len(t, a, 36)
	assert.Less(t, a, b)
}
