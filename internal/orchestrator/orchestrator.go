package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/domain"
	"github.com/spec-kit/triage-bot/internal/gemini"
	"github.com/spec-kit/triage-bot/internal/quality"
)

// Step names recorded in ProcessingResult.ErrorStep.
const (
	StepIngestion    = "ingestion"
	StepFieldsCheck  = "fields_check"
	StepDuplicates   = "duplicate_search"
	StepQuality      = "quality_assessment"
	StepComment      = "comment_generation"
	StepCommentPost  = "comment_posting"
	StepTransition   = "status_transition"
)

// TicketStore is the external ticket system collaborator.
type TicketStore interface {
	GetTicket(ctx context.Context, key string) (*domain.Ticket, error)
	AddComment(ctx context.Context, key, body string) (string, error)
	ListTransitions(ctx context.Context, key string) ([]domain.Transition, error)
	ExecuteTransition(ctx context.Context, key, transitionID string) error
}

// CommentGenerator is the generative text collaborator.
type CommentGenerator interface {
	GenerateComment(ctx context.Context, ticket *domain.Ticket, assessment *domain.QualityAssessment, duplicates []domain.DuplicateCandidate) (string, error)
}

// DuplicateFinder is the read-only similarity search collaborator.
type DuplicateFinder interface {
	FindSimilar(ctx context.Context, ticket *domain.Ticket) []domain.DuplicateCandidate
}

// TargetResolver decides the workflow status a ticket should move to.
type TargetResolver interface {
	ResolveTarget(ticket *domain.Ticket, assessment *domain.QualityAssessment) string
}

// Dependencies bundles collaborators for the orchestrator.
type Dependencies struct {
	Store      TicketStore
	Engine     *quality.Engine
	Duplicates DuplicateFinder
	Generator  CommentGenerator
	Resolver   TargetResolver
}

// Orchestrator drives the fixed stage pipeline for one ticket run. Stages
// run strictly in order; only ingestion and a non-skipped quality assessment
// are fatal, everything after degrades to warnings.
type Orchestrator struct {
	store      TicketStore
	engine     *quality.Engine
	duplicates DuplicateFinder
	generator  CommentGenerator
	resolver   TargetResolver
	jiraCfg    config.JiraConfig
	logger     *zap.Logger
}

// New constructs the orchestrator.
func New(cfg config.JiraConfig, deps Dependencies, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:      deps.Store,
		engine:     deps.Engine,
		duplicates: deps.Duplicates,
		generator:  deps.Generator,
		resolver:   deps.Resolver,
		jiraCfg:    cfg,
		logger:     logger,
	}
}

// Run executes the pipeline for a task. The returned error is non-nil only
// for fatal failures and wraps the underlying cause so the scheduler can
// classify it as transient or permanent; the result always reflects exactly
// how far the run progressed.
func (o *Orchestrator) Run(ctx context.Context, task *domain.ProcessingTask) (*domain.ProcessingResult, error) {
	start := time.Now()
	result := &domain.ProcessingResult{TicketKey: task.TicketKey}
	log := o.logger.With(zap.String("ticket", task.TicketKey), zap.String("task_id", task.ID))

	log.Info("starting run", zap.String("event", task.TriggerEvent))

	// Stage 1: ingest the ticket snapshot.
	ticket, err := o.store.GetTicket(ctx, task.TicketKey)
	if err != nil {
		result.ErrorStep = StepIngestion
		result.ErrorMessage = fmt.Sprintf("failed to fetch ticket: %v", err)
		result.Duration = time.Since(start)
		log.Error("ingestion failed", zap.Error(err))
		return result, fmt.Errorf("%s: %w", StepIngestion, err)
	}
	result.Ingested = true

	// Gate: issue types outside the configured set complete successfully
	// without further work.
	if !o.jiraCfg.ShouldProcessIssueType(ticket.IssueType) {
		result.Success = true
		result.Message = fmt.Sprintf("issue type %q not configured for processing", ticket.IssueType)
		result.Duration = time.Since(start)
		log.Info("skipping ticket", zap.String("issue_type", ticket.IssueType))
		return result, nil
	}

	// Stage 2: field presence checks. Annotations only, never blocking.
	result.FieldWarnings = o.checkFields(ticket)
	result.FieldsChecked = true

	// Stage 3: duplicate search. Informational context for the comment.
	result.Duplicates = o.duplicates.FindSimilar(ctx, ticket)
	result.DuplicatesChecked = true

	// Stage 4: quality assessment, or a neutral stand-in when skipped.
	assessment, err := o.assess(ticket, task.Options)
	if err != nil {
		result.ErrorStep = StepQuality
		result.ErrorMessage = err.Error()
		result.Duration = time.Since(start)
		log.Error("quality assessment failed", zap.Error(err))
		return result, fmt.Errorf("%s: %w", StepQuality, err)
	}
	result.Assessment = assessment
	result.QualityAssessed = !task.Options.SkipQualityCheck

	// Stage 5: comment generation and posting.
	if task.Options.SkipAIComment {
		log.Info("comment stage skipped by option")
	} else {
		o.comment(ctx, ticket, assessment, result, log)
	}

	// Stage 6: status transition.
	if task.Options.SkipTransition {
		log.Info("transition stage skipped by option")
	} else {
		o.transition(ctx, ticket, assessment, result, log)
	}

	result.Success = true
	result.Duration = time.Since(start)
	log.Info("run complete",
		zap.Duration("duration", result.Duration),
		zap.String("quality", string(assessment.OverallQuality)),
		zap.String("new_status", result.NewStatus))
	return result, nil
}

// assess runs the quality engine, converting any internal panic into a fatal
// error rather than crashing the worker. When the check is skipped a neutral
// medium assessment gives downstream stages a value to act on.
func (o *Orchestrator) assess(ticket *domain.Ticket, opts domain.ProcessingOptions) (assessment *domain.QualityAssessment, err error) {
	if opts.SkipQualityCheck {
		return &domain.QualityAssessment{
			TicketKey:      ticket.Key,
			OverallQuality: domain.QualityMedium,
			Score:          70,
			IssuesFound:    []string{},
			RuleResults:    map[string]bool{},
			AssessedAt:     time.Now().UTC(),
			RulesVersion:   "skipped",
		}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			assessment = nil
			err = fmt.Errorf("quality engine panic: %v", r)
		}
	}()
	return o.engine.Assess(ticket), nil
}

// checkFields runs lightweight required-field presence checks.
func (o *Orchestrator) checkFields(ticket *domain.Ticket) []string {
	var warnings []string
	if len(strings.TrimSpace(ticket.Summary)) < 5 {
		warnings = append(warnings, "summary is missing or trivially short")
	}
	if len(strings.TrimSpace(ticket.Description)) < 10 {
		warnings = append(warnings, "description is missing or trivially short")
	}
	if ticket.IsBugLike() {
		if strings.TrimSpace(ticket.StepsToRepro) == "" && !quality.HasStepsInfo(ticket.CombinedText()) {
			warnings = append(warnings, "reproduction steps not provided")
		}
		if strings.TrimSpace(ticket.AffectedVersion) == "" {
			warnings = append(warnings, "affected version not provided")
		}
	}
	if strings.TrimSpace(string(ticket.Priority)) == "" {
		warnings = append(warnings, "priority not set")
	}
	if strings.TrimSpace(ticket.Reporter.DisplayName) == "" && strings.TrimSpace(ticket.Reporter.AccountID) == "" {
		warnings = append(warnings, "reporter not identified")
	}
	return warnings
}

// comment obtains a comment (generated or fallback) and posts it. Posting
// failure is a warning, not fatal.
func (o *Orchestrator) comment(ctx context.Context, ticket *domain.Ticket, assessment *domain.QualityAssessment, result *domain.ProcessingResult, log *zap.Logger) {
	text, err := o.generator.GenerateComment(ctx, ticket, assessment, result.Duplicates)
	if err != nil {
		log.Warn("comment generation failed, using fallback", zap.Error(err))
		text = gemini.FallbackComment(assessment)
		result.CommentSource = "fallback"
	} else {
		result.CommentSource = "ai"
	}
	result.CommentGenerated = true
	result.GeneratedComment = text

	if _, err := o.store.AddComment(ctx, ticket.Key, text); err != nil {
		warning := fmt.Sprintf("%s: %v", StepCommentPost, err)
		result.Warnings = append(result.Warnings, warning)
		log.Warn("comment posting failed", zap.Error(err))
		return
	}
	result.CommentPosted = true
}

// transition resolves the target status and executes the matching transition
// from the ticket's currently available set. Any failure is a warning.
func (o *Orchestrator) transition(ctx context.Context, ticket *domain.Ticket, assessment *domain.QualityAssessment, result *domain.ProcessingResult, log *zap.Logger) {
	target := o.resolver.ResolveTarget(ticket, assessment)

	available, err := o.store.ListTransitions(ctx, ticket.Key)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: list transitions: %v", StepTransition, err))
		log.Warn("listing transitions failed", zap.Error(err))
		return
	}

	var transitionID string
	for _, t := range available {
		if strings.EqualFold(t.TargetStatus, target) {
			transitionID = t.ID
			break
		}
	}
	if transitionID == "" {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: no transition from %q to %q", StepTransition, ticket.Status, target))
		log.Warn("no matching transition",
			zap.String("from", ticket.Status),
			zap.String("target", target))
		return
	}

	if err := o.store.ExecuteTransition(ctx, ticket.Key, transitionID); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", StepTransition, err))
		log.Warn("transition execution failed", zap.Error(err))
		return
	}

	result.StatusTransitioned = true
	result.NewStatus = target
	log.Info("ticket transitioned", zap.String("from", ticket.Status), zap.String("to", target))
}
