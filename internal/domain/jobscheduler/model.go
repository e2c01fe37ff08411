package jobscheduler

import "time"

type RunStatus string

const (
	StatusStarted   RunStatus = "started"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusSkipped   RunStatus = "skipped"
)

// RunEvent is one audit row of a scheduled job invocation. Started and the
// terminal status of a run share RunID.
type RunEvent struct {
	RunID        string
	JobName      string
	Status       RunStatus
	Processed    int
	Payload      map[string]any
	ErrorMessage string
	OccurredAt   time.Time
	TraceID      string
	SpanID       string
}
