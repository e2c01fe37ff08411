package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/sports-feed-sync/internal/domain/jobscheduler"
	qb "github.com/riskibarqy/sports-feed-sync/internal/platform/querybuilder"
)

type jobRunTableModel struct {
	RunID        string    `db:"run_id"`
	JobName      string    `db:"job_name"`
	Status       string    `db:"status"`
	Processed    int       `db:"processed"`
	Payload      string    `db:"payload"`
	ErrorMessage string    `db:"error_message"`
	OccurredAt   time.Time `db:"occurred_at"`
	TraceID      string    `db:"trace_id"`
	SpanID       string    `db:"span_id"`
}

// JobRunRepository keeps one row per run id; the terminal event of a run
// overwrites its started row.
type JobRunRepository struct {
	db *sqlx.DB
}

func NewJobRunRepository(db *sqlx.DB) *JobRunRepository {
	return &JobRunRepository{db: db}
}

func (r *JobRunRepository) UpsertEvent(ctx context.Context, event jobscheduler.RunEvent) error {
	payload := "{}"
	if len(event.Payload) > 0 {
		raw, err := sonic.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("marshal job run payload: %w", err)
		}
		payload = string(raw)
	}

	query, args, err := qb.InsertModel("job_runs", jobRunTableModel{
		RunID:        event.RunID,
		JobName:      event.JobName,
		Status:       string(event.Status),
		Processed:    event.Processed,
		Payload:      payload,
		ErrorMessage: event.ErrorMessage,
		OccurredAt:   event.OccurredAt.UTC(),
		TraceID:      event.TraceID,
		SpanID:       event.SpanID,
	}, `
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			processed = EXCLUDED.processed,
			payload = EXCLUDED.payload,
			error_message = EXCLUDED.error_message,
			occurred_at = EXCLUDED.occurred_at,
			trace_id = EXCLUDED.trace_id,
			span_id = EXCLUDED.span_id
	`)
	if err != nil {
		return fmt.Errorf("build upsert job run query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert job run %s: %w", event.RunID, err)
	}
	return nil
}

func (r *JobRunRepository) ListRecent(ctx context.Context, jobName string, limit int) ([]jobscheduler.RunEvent, error) {
	builder := qb.Select("*").From("job_runs")
	if jobName != "" {
		builder = builder.Where(qb.Eq("job_name", jobName))
	}
	if limit > 0 {
		builder = builder.Limit(limit)
	}
	query, args, err := builder.OrderBy("occurred_at DESC", "run_id").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list job runs query: %w", err)
	}

	var rows []jobRunTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select job runs: %w", err)
	}

	out := make([]jobscheduler.RunEvent, 0, len(rows))
	for _, row := range rows {
		event := jobscheduler.RunEvent{
			RunID:        row.RunID,
			JobName:      row.JobName,
			Status:       jobscheduler.RunStatus(row.Status),
			Processed:    row.Processed,
			ErrorMessage: row.ErrorMessage,
			OccurredAt:   row.OccurredAt.UTC(),
			TraceID:      row.TraceID,
			SpanID:       row.SpanID,
		}
		if len(row.Payload) > 0 {
			if err := sonic.UnmarshalString(row.Payload, &event.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal job run payload %s: %w", row.RunID, err)
			}
		}
		out = append(out, event)
	}
	return out, nil
}
