package quality

import (
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/domain"
)

type evaluator func(*domain.Ticket) Result

// Engine assesses ticket completeness against a weighted rule set. It is
// pure with respect to its configuration and performs no I/O.
type Engine struct {
	cfg        config.QualityConfig
	rules      []Rule
	evaluators map[RuleName]evaluator
	logger     *zap.Logger
}

// NewEngine builds the engine with the default rule set.
func NewEngine(cfg config.QualityConfig, logger *zap.Logger) *Engine {
	e := &Engine{cfg: cfg, logger: logger}
	e.rules = defaultRules(cfg)
	e.evaluators = map[RuleName]evaluator{
		RuleSummaryLength:        e.evaluateSummaryLength,
		RuleDescriptionLength:    e.evaluateDescriptionLength,
		RuleStepsToReproduce:     e.evaluateStepsToReproduce,
		RuleAffectedVersion:      e.evaluateAffectedVersion,
		RuleAttachments:          e.evaluateAttachments,
		RulePICField:             e.evaluatePICField,
		RuleCustomerLoginDetails: e.evaluateCustomerLoginDetails,
		RuleTopMerchantsImpact:   e.evaluateTopMerchantsImpact,
		RuleProductField:         e.evaluateProductField,
		RuleActualResult:         e.evaluateActualResult,
		RuleExpectedResult:       e.evaluateExpectedResult,
		RuleHighPriorityComplete: e.evaluateHighPriorityCompleteness,
	}
	logger.Info("quality engine initialized", zap.Int("rules", len(e.rules)))
	return e
}

// Rules exposes the immutable rule set for documentation endpoints.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Assess evaluates all applicable rules against the ticket snapshot and
// returns the scored assessment. Deterministic for a given snapshot.
func (e *Engine) Assess(ticket *domain.Ticket) *domain.QualityAssessment {
	score := 100
	issues := make([]string, 0)
	ruleResults := make(map[string]bool, len(e.rules))

	for _, rule := range e.rules {
		if !rule.AppliesTo(ticket) {
			continue
		}
		eval, ok := e.evaluators[rule.Name]
		if !ok {
			// Configuration error: fail open rather than abort the run.
			e.logger.Error("no evaluator registered for rule", zap.String("rule", string(rule.Name)))
			ruleResults[string(rule.Name)] = true
			continue
		}
		result := eval(ticket)
		ruleResults[string(rule.Name)] = result.Passed
		if result.Passed {
			continue
		}
		issues = append(issues, result.Message)
		if rule.Required {
			score -= rule.Weight
		} else {
			score -= rule.Weight / 2
		}
	}

	if score < 0 {
		score = 0
	}

	level := e.determineLevel(len(issues), ticket)

	assessment := &domain.QualityAssessment{
		TicketKey:      ticket.Key,
		OverallQuality: level,
		Score:          score,
		IssuesFound:    issues,
		RuleResults:    ruleResults,
		AssessedAt:     time.Now().UTC(),
		RulesVersion:   e.cfg.RulesVersion,
	}

	e.logger.Info("quality assessment complete",
		zap.String("ticket", ticket.Key),
		zap.String("quality", string(level)),
		zap.Int("score", score),
		zap.Int("issues", len(issues)))
	return assessment
}

// determineLevel buckets the issue count. Tickets in the high-priority set
// get the stricter path when enforcement is on: only a clean sheet rates
// high and a single issue caps the level at medium.
func (e *Engine) determineLevel(issueCount int, ticket *domain.Ticket) domain.QualityLevel {
	if e.cfg.IsHighPriority(string(ticket.Priority)) && e.cfg.HighPriorityEnforceAll {
		switch {
		case issueCount == 0:
			return domain.QualityHigh
		case issueCount <= 1:
			return domain.QualityMedium
		default:
			return domain.QualityLow
		}
	}

	switch {
	case issueCount <= e.cfg.HighQualityMaxIssues:
		return domain.QualityHigh
	case issueCount <= e.cfg.MediumQualityMaxIssues:
		return domain.QualityMedium
	default:
		return domain.QualityLow
	}
}

// Suggestions maps failed rules to concrete reporter guidance for comments.
func (e *Engine) Suggestions(assessment *domain.QualityAssessment, ticket *domain.Ticket) []string {
	var suggestions []string

	if !assessment.RulePassed(string(RuleSummaryLength)) {
		suggestions = append(suggestions, "Provide a clear, descriptive summary that explains the issue concisely")
	}
	if !assessment.RulePassed(string(RuleDescriptionLength)) {
		suggestions = append(suggestions, "Add a detailed description explaining what happened, what was expected, and the impact")
	}
	if !assessment.RulePassed(string(RuleStepsToReproduce)) && ticket.IsBugLike() {
		suggestions = append(suggestions, "Include step-by-step instructions to reproduce the issue")
	}
	if !assessment.RulePassed(string(RuleAffectedVersion)) {
		suggestions = append(suggestions, "Specify the affected version, environment, or system where the issue occurs")
	}
	if !assessment.RulePassed(string(RuleAttachments)) && ticket.IsBugLike() {
		suggestions = append(suggestions, "Attach relevant screenshots, error logs, or other supporting files")
	}
	if !assessment.RulePassed(string(RulePICField)) {
		suggestions = append(suggestions, "Specify PIC (Person in Charge) or responsible person for this issue")
	}
	if !assessment.RulePassed(string(RuleCustomerLoginDetails)) {
		suggestions = append(suggestions, "Provide customer login details (username, email, account ID, or customer ID) to help with investigation")
	}
	if !assessment.RulePassed(string(RuleTopMerchantsImpact)) {
		suggestions = append(suggestions, "Specify if this issue affects top merchants or high-value customers")
	}
	if !assessment.RulePassed(string(RuleProductField)) {
		suggestions = append(suggestions, "Specify the product, system, or application where the issue occurs")
	}
	if !assessment.RulePassed(string(RuleActualResult)) && ticket.IsBugLike() {
		suggestions = append(suggestions, "Describe the actual result - what actually happened or what you observed")
	}
	if !assessment.RulePassed(string(RuleExpectedResult)) && ticket.IsBugLike() {
		suggestions = append(suggestions, "Describe the expected result - what should have happened or what you expected to see")
	}
	if e.cfg.IsHighPriority(string(ticket.Priority)) {
		suggestions = append(suggestions, "High priority tickets require complete information for immediate attention")
	}

	return suggestions
}
