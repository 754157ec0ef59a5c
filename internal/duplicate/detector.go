package duplicate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/domain"
)

// TicketSearcher is the slice of the ticket store the detector needs.
type TicketSearcher interface {
	SearchTickets(ctx context.Context, jql string, maxResults int) ([]domain.Ticket, error)
}

const maxCandidates = 10

// Detector finds potential duplicate tickets. Best-effort: any internal
// failure yields an empty result, never an error that blocks processing.
type Detector struct {
	searcher TicketSearcher
	logger   *zap.Logger
}

// NewDetector constructs the detector.
func NewDetector(searcher TicketSearcher, logger *zap.Logger) *Detector {
	return &Detector{searcher: searcher, logger: logger}
}

// FindSimilar searches for tickets resembling the given one and ranks them by
// word-overlap similarity, highest first.
func (d *Detector) FindSimilar(ctx context.Context, ticket *domain.Ticket) []domain.DuplicateCandidate {
	words := SignificantWords(ticket.Summary, 3)
	if len(words) == 0 {
		d.logger.Debug("summary too short for duplicate search", zap.String("ticket", ticket.Key))
		return nil
	}

	var terms []string
	for _, w := range words {
		terms = append(terms, fmt.Sprintf("summary ~ %q", w))
	}
	jql := fmt.Sprintf("project = %q AND %s AND key != %q AND status != \"Closed\"",
		ticket.ProjectKey, strings.Join(terms, " AND "), ticket.Key)

	results, err := d.searcher.SearchTickets(ctx, jql, maxCandidates)
	if err != nil {
		d.logger.Warn("duplicate search failed", zap.String("ticket", ticket.Key), zap.Error(err))
		return nil
	}

	candidates := make([]domain.DuplicateCandidate, 0, len(results))
	for i := range results {
		other := &results[i]
		if other.Key == ticket.Key {
			continue
		}
		candidates = append(candidates, domain.DuplicateCandidate{
			Key:        other.Key,
			Summary:    other.Summary,
			Status:     other.Status,
			Similarity: Similarity(ticket.Summary, other.Summary),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	if len(candidates) > 0 {
		d.logger.Info("potential duplicates found",
			zap.String("ticket", ticket.Key),
			zap.Int("count", len(candidates)))
	}
	return candidates
}

// SignificantWords extracts up to limit words longer than three characters
// from the text, falling back to the first two words for short summaries.
func SignificantWords(text string, limit int) []string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil
	}

	words := make([]string, 0, limit)
	for _, f := range fields {
		if len(f) > 3 {
			words = append(words, f)
			if len(words) == limit {
				break
			}
		}
	}
	if len(words) == 0 {
		words = fields[:2]
	}
	return words
}

// Similarity computes the Jaccard index of the lowercased word sets of two
// summaries: intersection over union, in [0, 1].
func Similarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}
