package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// ReporterConfig holds stats reporter configuration.
type ReporterConfig struct {
	Interval time.Duration
}

// DefaultReporterConfig returns sensible defaults.
func DefaultReporterConfig() ReporterConfig {
	return ReporterConfig{Interval: 10 * time.Second}
}

// Reporter periodically logs scheduler stats. A tick whose snapshot equals
// the previous one is logged at debug level only.
type Reporter struct {
	sched  *Scheduler
	config ReporterConfig
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
	last   Stats
}

// NewReporter creates a stats reporter for s.
func NewReporter(s *Scheduler, cfg ReporterConfig, logger *slog.Logger) *Reporter {
	return &Reporter{
		sched:  s,
		config: cfg,
		logger: logger.With("component", "reporter"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the reporting loop. Blocks until ctx is cancelled or Stop is called.
func (r *Reporter) Start(ctx context.Context) error {
	r.logger.Info("reporter started", "interval", r.config.Interval)
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reporter stopping (context cancelled)")
			close(r.doneCh)
			return ctx.Err()
		case <-r.stopCh:
			r.logger.Info("reporter stopping (stop called)")
			close(r.doneCh)
			return nil
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Stop shuts the reporter down and waits for the loop to exit.
func (r *Reporter) Stop() error {
	close(r.stopCh)
	<-r.doneCh
	return nil
}

// Tick logs a single snapshot and returns it.
func (r *Reporter) Tick() Stats {
	st := r.sched.Stats()
	level := slog.LevelInfo
	if st == r.last {
		level = slog.LevelDebug
	}
	r.last = st

	r.logger.Log(context.Background(), level, "scheduler stats",
		"slots", st.Slots,
		"idle", st.Idle,
		"working", st.Working,
		"queued", st.Queued,
		"pause_count", st.PauseCount,
		"last_job_id", st.LastJobID,
	)
	return st
}
