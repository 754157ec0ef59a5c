package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/domain"
)

// TicketSearcher finds tickets matching a JQL query.
type TicketSearcher interface {
	SearchTickets(ctx context.Context, jql string, maxResults int) ([]domain.Ticket, error)
}

// TaskSubmitter enqueues a processing task for a ticket.
type TaskSubmitter interface {
	Submit(ctx context.Context, ticketKey, triggerEvent string, priority domain.PriorityClass, opts domain.ProcessingOptions) (string, bool, error)
}

// Scanner sweeps for open tickets the webhook may have missed and
// enqueues them. The submission dedup window keeps repeated sweeps from
// double-processing the same ticket.
type Scanner struct {
	cfg       config.Config
	searcher  TicketSearcher
	submitter TaskSubmitter
	logger    *zap.Logger
	cron      *cron.Cron
}

func New(cfg config.Config, searcher TicketSearcher, submitter TaskSubmitter, logger *zap.Logger) *Scanner {
	return &Scanner{
		cfg:       cfg,
		searcher:  searcher,
		submitter: submitter,
		logger:    logger,
	}
}

// Start registers the sweep on the configured cron spec and begins the
// schedule. It is a no-op when scanning is disabled.
func (s *Scanner) Start(ctx context.Context) error {
	if !s.cfg.Scan.Enabled {
		s.logger.Info("periodic scan disabled")
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cfg.Scan.CronSpec, func() {
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("scan sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("registering scan schedule: %w", err)
	}
	s.cron.Start()
	s.logger.Info("periodic scan started", zap.String("cron_spec", s.cfg.Scan.CronSpec))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Scanner) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep runs one pass: search for open tickets created inside the
// lookback window and enqueue any that are not mid-update.
func (s *Scanner) Sweep(ctx context.Context) error {
	tickets, err := s.searcher.SearchTickets(ctx, s.buildJQL(), s.cfg.Scan.MaxResults)
	if err != nil {
		return fmt.Errorf("searching for open tickets: %w", err)
	}

	now := time.Now()
	var submitted, deduped, skipped int
	for _, ticket := range tickets {
		if !s.cfg.Jira.ShouldProcessIssueType(ticket.IssueType) {
			skipped++
			continue
		}
		// A ticket updated moments ago is likely being edited or already
		// handled by a webhook-triggered run; leave it for the next pass.
		if !ticket.Updated.IsZero() && now.Sub(ticket.Updated) < s.cfg.Scan.RecencyWindow() {
			skipped++
			continue
		}

		_, wasDeduped, err := s.submitter.Submit(ctx, ticket.Key, "scheduled_scan", s.classify(ticket, now), domain.ProcessingOptions{})
		if err != nil {
			s.logger.Error("enqueueing scanned ticket failed",
				zap.String("ticket_key", ticket.Key), zap.Error(err))
			continue
		}
		if wasDeduped {
			deduped++
			continue
		}
		submitted++
	}

	s.logger.Info("scan sweep finished",
		zap.Int("found", len(tickets)),
		zap.Int("submitted", submitted),
		zap.Int("deduped", deduped),
		zap.Int("skipped", skipped))
	return nil
}

// classify ranks high-priority tickets first, fresh tickets next, and
// everything else last.
func (s *Scanner) classify(ticket domain.Ticket, now time.Time) domain.PriorityClass {
	if s.cfg.Quality.IsHighPriority(string(ticket.Priority)) {
		return domain.PriorityHigh
	}
	if !ticket.Created.IsZero() && now.Sub(ticket.Created) < time.Hour {
		return domain.PriorityNormal
	}
	return domain.PriorityLow
}

func (s *Scanner) buildJQL() string {
	clauses := []string{
		fmt.Sprintf("created >= -%dh", s.cfg.Scan.LookbackHours),
		`status = "Open"`,
	}
	if len(s.cfg.Jira.ProjectKeys) > 0 {
		quoted := make([]string, 0, len(s.cfg.Jira.ProjectKeys))
		for _, key := range s.cfg.Jira.ProjectKeys {
			quoted = append(quoted, fmt.Sprintf("%q", key))
		}
		clauses = append(clauses, fmt.Sprintf("project in (%s)", strings.Join(quoted, ", ")))
	}
	return strings.Join(clauses, " AND ") + " ORDER BY created DESC"
}
