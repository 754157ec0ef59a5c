package duplicate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/domain"
)

type fakeSearcher struct {
	results []domain.Ticket
	err     error
	lastJQL string
}

func (f *fakeSearcher) SearchTickets(ctx context.Context, jql string, maxResults int) ([]domain.Ticket, error) {
	f.lastJQL = jql
	return f.results, f.err
}

func TestSignificantWords(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{
			name:  "picks long words up to limit",
			text:  "payment gateway timeout on eu checkout",
			limit: 3,
			want:  []string{"payment", "gateway", "timeout"},
		},
		{
			name:  "single word yields nothing",
			text:  "broken",
			limit: 3,
			want:  nil,
		},
		{
			name:  "short words fall back to first two",
			text:  "app is up",
			limit: 3,
			want:  []string{"app", "is"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SignificantWords(tt.text, tt.limit))
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Payment fails", "payment FAILS"))
	assert.Equal(t, 0.0, Similarity("alpha beta", "gamma delta"))
	assert.Equal(t, 0.0, Similarity("", "anything"))
	assert.InDelta(t, 1.0/3.0, Similarity("alpha beta", "alpha gamma"), 1e-9)
}

func TestFindSimilarRanksByOverlap(t *testing.T) {
	searcher := &fakeSearcher{results: []domain.Ticket{
		{Key: "SUP-2", Summary: "totally unrelated words here", Status: "Open"},
		{Key: "SUP-3", Summary: "payment gateway timeout on checkout", Status: "Open"},
	}}
	detector := NewDetector(searcher, zap.NewNop())

	candidates := detector.FindSimilar(context.Background(), &domain.Ticket{
		Key:        "SUP-1",
		ProjectKey: "SUP",
		Summary:    "payment gateway timeout on checkout",
	})

	require.Len(t, candidates, 2)
	assert.Equal(t, "SUP-3", candidates[0].Key)
	assert.Greater(t, candidates[0].Similarity, candidates[1].Similarity)
	assert.Contains(t, searcher.lastJQL, `project = "SUP"`)
	assert.Contains(t, searcher.lastJQL, `key != "SUP-1"`)
	assert.Contains(t, searcher.lastJQL, `summary ~ "payment"`)
}

func TestFindSimilarExcludesSelf(t *testing.T) {
	searcher := &fakeSearcher{results: []domain.Ticket{
		{Key: "SUP-1", Summary: "payment gateway timeout", Status: "Open"},
	}}
	detector := NewDetector(searcher, zap.NewNop())

	candidates := detector.FindSimilar(context.Background(), &domain.Ticket{
		Key:        "SUP-1",
		ProjectKey: "SUP",
		Summary:    "payment gateway timeout",
	})

	assert.Empty(t, candidates)
}

func TestFindSimilarSearchFailureIsEmpty(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("search unavailable")}
	detector := NewDetector(searcher, zap.NewNop())

	candidates := detector.FindSimilar(context.Background(), &domain.Ticket{
		Key:        "SUP-1",
		ProjectKey: "SUP",
		Summary:    "payment gateway timeout",
	})

	assert.Nil(t, candidates)
}

func TestFindSimilarShortSummarySkipsSearch(t *testing.T) {
	searcher := &fakeSearcher{}
	detector := NewDetector(searcher, zap.NewNop())

	candidates := detector.FindSimilar(context.Background(), &domain.Ticket{Key: "SUP-1", Summary: "broken"})

	assert.Nil(t, candidates)
	assert.Empty(t, searcher.lastJQL)
}
