package dto

import (
	"time"

	"github.com/spec-kit/triage-bot/internal/domain"
)

// AssessRequest is a ticket snapshot submitted for a dry-run assessment.
type AssessRequest struct {
	TicketKey       string `json:"ticket_key"`
	Summary         string `json:"summary"`
	Description     string `json:"description"`
	IssueType       string `json:"issue_type"`
	Priority        string `json:"priority"`
	StepsToRepro    string `json:"steps_to_reproduce"`
	AffectedVersion string `json:"affected_version"`
	CustomerImpact  string `json:"customer_impact"`
	AttachmentCount int    `json:"attachment_count"`
}

// Ticket converts the request into the domain snapshot the rules read.
func (r AssessRequest) Ticket() *domain.Ticket {
	return &domain.Ticket{
		Key:             r.TicketKey,
		Summary:         r.Summary,
		Description:     r.Description,
		IssueType:       r.IssueType,
		Priority:        domain.TicketPriority(r.Priority),
		StepsToRepro:    r.StepsToRepro,
		AffectedVersion: r.AffectedVersion,
		CustomerImpact:  r.CustomerImpact,
		AttachmentCount: r.AttachmentCount,
	}
}

// AssessResponse reports the assessment plus reporter-facing suggestions.
type AssessResponse struct {
	TicketKey    string          `json:"ticket_key"`
	Quality      string          `json:"quality"`
	Score        int             `json:"score"`
	IssuesFound  []string        `json:"issues_found"`
	RuleResults  map[string]bool `json:"rule_results"`
	Suggestions  []string        `json:"suggestions,omitempty"`
	RulesVersion string          `json:"rules_version"`
	AssessedAt   time.Time       `json:"assessed_at"`
}

// RuleInfo describes one configured rule.
type RuleInfo struct {
	Name     string `json:"name"`
	Weight   int    `json:"weight"`
	Optional bool   `json:"optional"`
}
