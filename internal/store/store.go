package store

import (
	"context"

	"github.com/me/ppsched/pkg/model"
)

// Store persists delivered Job results. It is also a sink.Sink so it can
// sit directly behind the scheduler.
type Store interface {
	// Deliver records r using a background context.
	Deliver(r model.Result) error

	SaveResult(ctx context.Context, r model.Result) error
	GetResult(ctx context.Context, id model.JobID) (*model.Result, error)
	ListResults(ctx context.Context, opts model.ListOptions) ([]*model.Result, int, error)
	ListResultsBySession(ctx context.Context, session model.SessionID, opts model.ListOptions) ([]*model.Result, int, error)
	CountByStatus(ctx context.Context) (map[model.JobStatus]int, error)

	// Lifecycle
	RunID() string
	Close() error
	Migrate(ctx context.Context) error
}
