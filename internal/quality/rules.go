package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/domain"
)

// RuleName identifies a quality rule. Evaluators are dispatched through a
// typed table rather than string comparison so an unmapped name is caught
// when the engine is built.
type RuleName string

const (
	RuleSummaryLength           RuleName = "summary_length"
	RuleDescriptionLength       RuleName = "description_length"
	RuleStepsToReproduce        RuleName = "steps_to_reproduce"
	RuleAffectedVersion         RuleName = "affected_version"
	RuleAttachments             RuleName = "attachments"
	RulePICField                RuleName = "pic_field"
	RuleCustomerLoginDetails    RuleName = "customer_login_details"
	RuleTopMerchantsImpact      RuleName = "top_merchants_impact"
	RuleProductField            RuleName = "product_field"
	RuleActualResult            RuleName = "actual_result"
	RuleExpectedResult          RuleName = "expected_result"
	RuleHighPriorityComplete    RuleName = "high_priority_completeness"
)

// Rule is an immutable, weighted, conditionally-applicable completeness check.
type Rule struct {
	Name        RuleName
	Description string
	Required    bool
	Weight      int
	IssueTypes  []string // "*" matches all
	Priorities  []string // "*" matches all
}

// AppliesTo checks the rule's applicability predicate against a ticket.
func (r Rule) AppliesTo(ticket *domain.Ticket) bool {
	if !matchList(r.IssueTypes, ticket.IssueType) {
		return false
	}
	return matchList(r.Priorities, string(ticket.Priority))
}

func matchList(allowed []string, value string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, value) {
			return true
		}
	}
	return false
}

// Result is a single rule evaluation outcome.
type Result struct {
	Passed  bool
	Message string
}

var (
	numberedStepsPattern = regexp.MustCompile(`\b\d+\.\s`)
	emailPattern         = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

var stepsKeywords = []string{
	"steps", "step", "reproduce", "reproduction", "step by step", "step-by-step",
	"how to", "procedure", "process", "instructions", "to reproduce",
	"1.", "2.", "3.", "first", "second", "third", "then", "next",
	"follow these", "do this", "click", "navigate", "go to",
}

var loginKeywords = []string{
	"login", "username", "user name", "email", "account", "user id", "userid",
	"customer id", "customerid", "credential", "password", "auth", "authentication",
	"sign in", "signin", "log in", "account number", "member id", "memberid",
}

var picKeywords = []string{
	"pic", "person in charge", "contact person", "responsible person",
	"assigned to", "handled by", "owner", "point of contact", "poc",
}

var merchantKeywords = []string{
	"top 450", "top merchants", "merchant", "affecting merchants",
	"merchant impact", "450 merchants", "top 450 merchants",
	"merchant affected", "merchant list", "high value merchants",
}

var productKeywords = []string{
	"product", "application", "system", "platform", "service",
	"module", "feature", "component", "app", "website", "portal",
}

var actualResultKeywords = []string{
	"actual result", "actual", "what happened", "current behavior",
	"observed", "seeing", "getting", "result", "outcome", "behavior",
}

var expectedResultKeywords = []string{
	"expected result", "expected", "should", "supposed to", "intended",
	"expected behavior", "should be", "should have", "expectation",
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// HasStepsInfo reports whether the combined text contains reproduction steps.
func HasStepsInfo(text string) bool {
	return containsAny(text, stepsKeywords) || numberedStepsPattern.MatchString(text)
}

// HasLoginInfo reports whether the combined text contains customer login or
// contact identifying information.
func HasLoginInfo(text string) bool {
	return containsAny(text, loginKeywords) || emailPattern.MatchString(text)
}

func defaultRules(cfg config.QualityConfig) []Rule {
	return []Rule{
		{
			Name:        RuleSummaryLength,
			Description: "Summary must be between minimum and maximum length",
			Required:    true,
			Weight:      20,
			IssueTypes:  []string{"*"},
			Priorities:  []string{"*"},
		},
		{
			Name:        RuleDescriptionLength,
			Description: "Description must meet minimum length requirements",
			Required:    true,
			Weight:      25,
			IssueTypes:  []string{"*"},
			Priorities:  []string{"*"},
		},
		{
			Name:        RuleStepsToReproduce,
			Description: "Steps to reproduce must be provided for bugs and problems",
			Required:    true,
			Weight:      15,
			IssueTypes:  []string{"Bug", "Problem"},
			Priorities:  []string{"*"},
		},
		{
			Name:        RuleAffectedVersion,
			Description: "Affected version must be specified",
			Required:    true,
			Weight:      15,
			IssueTypes:  []string{"Bug", "Support Request"},
			Priorities:  []string{"*"},
		},
		{
			Name:        RuleAttachments,
			Description: "Attachments are recommended for bug reports",
			Required:    false,
			Weight:      10,
			IssueTypes:  []string{"Bug"},
			Priorities:  []string{"*"},
		},
		{
			Name:        RulePICField,
			Description: "PIC (Person in Charge) must be specified",
			Required:    true,
			Weight:      10,
			IssueTypes:  []string{"Support Request", "Problem", "Bug"},
			Priorities:  []string{"*"},
		},
		{
			Name:        RuleCustomerLoginDetails,
			Description: "Customer login details should be provided for support tickets",
			Required:    true,
			Weight:      10,
			IssueTypes:  []string{"Support Request", "Problem", "Bug"},
			Priorities:  []string{"*"},
		},
		{
			Name:        RuleTopMerchantsImpact,
			Description: "Impact on top merchants must be specified",
			Required:    true,
			Weight:      10,
			IssueTypes:  []string{"Support Request", "Problem", "Bug"},
			Priorities:  []string{"*"},
		},
		{
			Name:        RuleProductField,
			Description: "Product must be specified",
			Required:    true,
			Weight:      10,
			IssueTypes:  []string{"Support Request", "Problem", "Bug"},
			Priorities:  []string{"*"},
		},
		{
			Name:        RuleActualResult,
			Description: "Actual result must be provided",
			Required:    true,
			Weight:      15,
			IssueTypes:  []string{"Problem", "Bug"},
			Priorities:  []string{"*"},
		},
		{
			Name:        RuleExpectedResult,
			Description: "Expected result must be provided",
			Required:    true,
			Weight:      15,
			IssueTypes:  []string{"Problem", "Bug"},
			Priorities:  []string{"*"},
		},
		{
			Name:        RuleHighPriorityComplete,
			Description: "High priority tickets must meet all quality criteria",
			Required:    cfg.HighPriorityEnforceAll,
			Weight:      50,
			IssueTypes:  []string{"*"},
			Priorities:  cfg.HighPriorityLevels,
		},
	}
}

func (e *Engine) evaluateSummaryLength(ticket *domain.Ticket) Result {
	summary := strings.TrimSpace(ticket.Summary)
	if len(summary) < e.cfg.SummaryMinLength {
		return Result{Message: fmt.Sprintf("Summary is too short (minimum %d characters required)", e.cfg.SummaryMinLength)}
	}
	if len(summary) > e.cfg.SummaryMaxLength {
		return Result{Message: fmt.Sprintf("Summary is too long (maximum %d characters allowed)", e.cfg.SummaryMaxLength)}
	}
	return Result{Passed: true}
}

func (e *Engine) evaluateDescriptionLength(ticket *domain.Ticket) Result {
	description := strings.TrimSpace(ticket.Description)
	if len(description) < e.cfg.DescriptionMinLength {
		return Result{Message: fmt.Sprintf("Description is too short (minimum %d characters required)", e.cfg.DescriptionMinLength)}
	}
	if len(description) > e.cfg.DescriptionMaxLength {
		return Result{Message: fmt.Sprintf("Description is too long (maximum %d characters allowed)", e.cfg.DescriptionMaxLength)}
	}
	return Result{Passed: true}
}

func (e *Engine) evaluateStepsToReproduce(ticket *domain.Ticket) Result {
	if strings.TrimSpace(ticket.StepsToRepro) != "" {
		return Result{Passed: true}
	}
	if HasStepsInfo(ticket.CombinedText()) {
		return Result{Passed: true}
	}
	return Result{Message: "Steps to reproduce should be provided"}
}

func (e *Engine) evaluateAffectedVersion(ticket *domain.Ticket) Result {
	if strings.TrimSpace(ticket.AffectedVersion) == "" {
		return Result{Message: "Affected version is not specified"}
	}
	return Result{Passed: true}
}

func (e *Engine) evaluateAttachments(ticket *domain.Ticket) Result {
	if !ticket.HasAttachments() {
		return Result{Message: "Attachments are recommended for bug reports (screenshots, logs, etc.)"}
	}
	return Result{Passed: true}
}

func (e *Engine) evaluatePICField(ticket *domain.Ticket) Result {
	if containsAny(ticket.CombinedText(), picKeywords) {
		return Result{Passed: true}
	}
	return Result{Message: "PIC (Person in Charge) should be specified"}
}

func (e *Engine) evaluateCustomerLoginDetails(ticket *domain.Ticket) Result {
	if HasLoginInfo(ticket.CombinedText()) {
		return Result{Passed: true}
	}
	return Result{Message: "Customer login details should be provided (username, email, account ID, or customer ID)"}
}

func (e *Engine) evaluateTopMerchantsImpact(ticket *domain.Ticket) Result {
	if containsAny(ticket.CombinedText(), merchantKeywords) {
		return Result{Passed: true}
	}
	return Result{Message: "Impact on top merchants should be specified"}
}

func (e *Engine) evaluateProductField(ticket *domain.Ticket) Result {
	if containsAny(ticket.CombinedText(), productKeywords) {
		return Result{Passed: true}
	}
	return Result{Message: "Product/System should be specified"}
}

func (e *Engine) evaluateActualResult(ticket *domain.Ticket) Result {
	if containsAny(ticket.CombinedText(), actualResultKeywords) {
		return Result{Passed: true}
	}
	return Result{Message: "Actual result should be provided (what actually happened)"}
}

func (e *Engine) evaluateExpectedResult(ticket *domain.Ticket) Result {
	if containsAny(ticket.CombinedText(), expectedResultKeywords) {
		return Result{Passed: true}
	}
	return Result{Message: "Expected result should be provided (what should have happened)"}
}

// evaluateHighPriorityCompleteness re-checks a subset of base rules for
// tickets in the configured high-priority set. Its message enumerates exactly
// which base fields are missing.
func (e *Engine) evaluateHighPriorityCompleteness(ticket *domain.Ticket) Result {
	if !e.cfg.IsHighPriority(string(ticket.Priority)) {
		return Result{Passed: true}
	}

	var missing []string
	if len(strings.TrimSpace(ticket.Summary)) < e.cfg.SummaryMinLength {
		missing = append(missing, "summary")
	}
	if len(strings.TrimSpace(ticket.Description)) < e.cfg.DescriptionMinLength {
		missing = append(missing, "description")
	}
	if ticket.IsBugLike() {
		if strings.TrimSpace(ticket.StepsToRepro) == "" && !HasStepsInfo(ticket.CombinedText()) {
			missing = append(missing, "steps to reproduce")
		}
	}
	if strings.TrimSpace(ticket.AffectedVersion) == "" {
		missing = append(missing, "affected version")
	}

	if len(missing) > 0 {
		return Result{Message: "High priority tickets must have complete information. Missing: " + strings.Join(missing, ", ")}
	}
	return Result{Passed: true}
}
