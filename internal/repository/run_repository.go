package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-bot/internal/domain"
)

// RunRecord is one archived processing run.
type RunRecord struct {
	ID           int64
	TaskID       string
	TicketKey    string
	TriggerEvent string
	Priority     string
	Success      bool
	QualityLevel *string
	QualityScore *int
	IssueCount   *int
	NewStatus    *string
	ErrorStep    *string
	ErrorMessage *string
	DurationMS   int64
	RetryCount   int
	CreatedAt    time.Time
}

// RunRepository archives completed processing runs for operator review.
type RunRepository interface {
	Insert(ctx context.Context, task *domain.ProcessingTask, result *domain.ProcessingResult) error
	ListByTicketKey(ctx context.Context, ticketKey string, limit int) ([]RunRecord, error)
}

type runRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository instantiates the repository. A nil pool disables
// archiving; both operations become no-ops.
func NewRunRepository(pool *pgxpool.Pool) RunRepository {
	return &runRepository{pool: pool}
}

func (r *runRepository) Insert(ctx context.Context, task *domain.ProcessingTask, result *domain.ProcessingResult) error {
	if r.pool == nil {
		return nil
	}

	var qualityLevel *string
	var qualityScore, issueCount *int
	if result.Assessment != nil {
		level := string(result.Assessment.OverallQuality)
		score := result.Assessment.Score
		issues := result.Assessment.IssueCount()
		qualityLevel, qualityScore, issueCount = &level, &score, &issues
	}

	const query = `
        INSERT INTO processing_runs (task_id, ticket_key, trigger_event, priority, success,
            quality_level, quality_score, issue_count, new_status, error_step, error_message,
            duration_ms, retry_count)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.TicketKey,
		task.TriggerEvent,
		string(task.Priority),
		result.Success,
		qualityLevel,
		qualityScore,
		issueCount,
		nullable(result.NewStatus),
		nullable(result.ErrorStep),
		nullable(result.ErrorMessage),
		result.Duration.Milliseconds(),
		task.RetryCount,
	)
	return err
}

func (r *runRepository) ListByTicketKey(ctx context.Context, ticketKey string, limit int) ([]RunRecord, error) {
	if r.pool == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	const query = `
        SELECT id, task_id, ticket_key, trigger_event, priority, success,
               quality_level, quality_score, issue_count, new_status, error_step, error_message,
               duration_ms, retry_count, created_at
        FROM processing_runs
        WHERE ticket_key=$1
        ORDER BY created_at DESC
        LIMIT $2`
	rows, err := r.pool.Query(ctx, query, ticketKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.TaskID,
			&rec.TicketKey,
			&rec.TriggerEvent,
			&rec.Priority,
			&rec.Success,
			&rec.QualityLevel,
			&rec.QualityScore,
			&rec.IssueCount,
			&rec.NewStatus,
			&rec.ErrorStep,
			&rec.ErrorMessage,
			&rec.DurationMS,
			&rec.RetryCount,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
