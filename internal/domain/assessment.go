package domain

import "time"

// QualityLevel buckets an assessment outcome.
type QualityLevel string

const (
	QualityHigh   QualityLevel = "high"
	QualityMedium QualityLevel = "medium"
	QualityLow    QualityLevel = "low"
)

// QualityAssessment is the scored outcome of running the rule set against a
// ticket snapshot. Immutable once produced.
type QualityAssessment struct {
	TicketKey      string          `json:"ticket_key"`
	OverallQuality QualityLevel    `json:"overall_quality"`
	Score          int             `json:"score"`
	IssuesFound    []string        `json:"issues_found"`
	RuleResults    map[string]bool `json:"rule_results"`
	AssessedAt     time.Time       `json:"assessed_at"`
	RulesVersion   string          `json:"rules_version"`
}

// IssueCount returns the number of failed applicable rules.
func (a *QualityAssessment) IssueCount() int {
	return len(a.IssuesFound)
}

// RulePassed reports the result for a named rule, defaulting to passed when
// the rule was not applicable.
func (a *QualityAssessment) RulePassed(name string) bool {
	passed, ok := a.RuleResults[name]
	if !ok {
		return true
	}
	return passed
}
