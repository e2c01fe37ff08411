package jobscheduler

import "context"

type Repository interface {
	UpsertEvent(ctx context.Context, event RunEvent) error
	ListRecent(ctx context.Context, jobName string, limit int) ([]RunEvent, error)
}
