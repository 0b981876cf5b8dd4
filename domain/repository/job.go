package repository

import (
	"context"
	"time"

	"crosspost/domain/model"
)

// IJob persists publish jobs. Jobs are retained after completion for status
// queries; eviction is an external concern.
type IJob interface {
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	ListByRequest(ctx context.Context, requestID string) ([]*model.Job, error)
	// LoadPendingDue returns pending jobs whose schedule time has arrived,
	// oldest first. Used by the scheduler trigger.
	LoadPendingDue(ctx context.Context, now time.Time, limit int) ([]*model.Job, error)
}
