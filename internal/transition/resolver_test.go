package transition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/domain"
)

func testTransitionConfig() config.TransitionConfig {
	return config.TransitionConfig{
		UnderInvestigationStatus:  "Under Investigation",
		PendingCustomerStatus:     "Pending Customer Info",
		ReadyForDevStatus:         "Ready for Development",
		UnreproducibleIssueType:   "Unreproducible Bug",
		MinScoreForInvestigation:  50,
		MaxIssuesForInvestigation: 4,
		MinUnreproducibleDescLen:  10,
	}
}

func TestResolveTarget(t *testing.T) {
	resolver := NewResolver(testTransitionConfig())

	tests := []struct {
		name       string
		ticket     *domain.Ticket
		assessment *domain.QualityAssessment
		want       string
	}{
		{
			name: "unreproducible with description and login info",
			ticket: &domain.Ticket{
				IssueType:   "Unreproducible Bug",
				Description: "Customer email is jane@example.com, happens intermittently at checkout.",
			},
			assessment: &domain.QualityAssessment{Score: 0, IssuesFound: []string{"a", "b", "c", "d", "e"}},
			want:       "Ready for Development",
		},
		{
			name: "unreproducible issue type matches case-insensitively",
			ticket: &domain.Ticket{
				IssueType:   "unreproducible bug",
				Description: "Customer email is jane@example.com, happens intermittently at checkout.",
			},
			assessment: &domain.QualityAssessment{},
			want:       "Ready for Development",
		},
		{
			name: "unreproducible with short description",
			ticket: &domain.Ticket{
				IssueType:   "Unreproducible Bug",
				Description: "broken",
			},
			assessment: &domain.QualityAssessment{Score: 100},
			want:       "Pending Customer Info",
		},
		{
			name: "unreproducible without login info",
			ticket: &domain.Ticket{
				IssueType:   "Unreproducible Bug",
				Description: "It fails sometimes when the page is refreshed during a storm.",
			},
			assessment: &domain.QualityAssessment{Score: 100},
			want:       "Pending Customer Info",
		},
		{
			name:       "score clears the threshold",
			ticket:     &domain.Ticket{IssueType: "Bug"},
			assessment: &domain.QualityAssessment{Score: 60, IssuesFound: []string{"a", "b", "c", "d", "e"}},
			want:       "Under Investigation",
		},
		{
			name:       "low score but few issues",
			ticket:     &domain.Ticket{IssueType: "Bug"},
			assessment: &domain.QualityAssessment{Score: 40, IssuesFound: []string{"a", "b"}},
			want:       "Under Investigation",
		},
		{
			name:       "low score and many issues",
			ticket:     &domain.Ticket{IssueType: "Bug"},
			assessment: &domain.QualityAssessment{Score: 0, IssuesFound: []string{"a", "b", "c", "d", "e"}},
			want:       "Pending Customer Info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolver.ResolveTarget(tt.ticket, tt.assessment))
		})
	}
}
