package transition

import (
	"strings"

	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/domain"
	"github.com/spec-kit/triage-bot/internal/quality"
)

// Resolver turns a ticket plus its quality outcome into a target workflow
// status name. Pure decision table; it never talks to the external system.
type Resolver struct {
	cfg config.TransitionConfig
}

// NewResolver constructs a resolver from configuration.
func NewResolver(cfg config.TransitionConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// ResolveTarget picks the target status name.
//
// Unreproducible tickets move to development when the description is long
// enough and the combined text carries login/contact identifying information;
// otherwise the reporter must supply more. All other tickets move to
// investigation when score or issue count clears the configured thresholds.
func (r *Resolver) ResolveTarget(ticket *domain.Ticket, assessment *domain.QualityAssessment) string {
	if strings.EqualFold(ticket.IssueType, r.cfg.UnreproducibleIssueType) {
		descriptionOK := len(strings.TrimSpace(ticket.Description)) >= r.cfg.MinUnreproducibleDescLen
		loginOK := quality.HasLoginInfo(ticket.CombinedText())
		if descriptionOK && loginOK {
			return r.cfg.ReadyForDevStatus
		}
		return r.cfg.PendingCustomerStatus
	}

	if assessment.Score >= r.cfg.MinScoreForInvestigation || assessment.IssueCount() <= r.cfg.MaxIssuesForInvestigation {
		return r.cfg.UnderInvestigationStatus
	}
	return r.cfg.PendingCustomerStatus
}
