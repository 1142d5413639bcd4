package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/memora-health/memora-api/internal/service/reconcile"
)

type Reconciler interface {
	Run(ctx context.Context) (*reconcile.Report, error)
}

type ReconcileJobConfig struct {
	Schedule   string
	RunTimeout time.Duration
	RunOnStart bool
}

// ReconcileJob runs the orphan report on a cron schedule.
type ReconcileJob struct {
	reconciler Reconciler
	cfg        ReconcileJobConfig
	scheduler  *cron.Cron
	logger     zerolog.Logger
	lastRun    atomic.Pointer[time.Time]
}

func NewReconcileJob(reconciler Reconciler, cfg ReconcileJobConfig, logger zerolog.Logger) *ReconcileJob {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	logger = logger.With().Str("component", "reconcile_job").Logger()
	cl := &cronLogger{zl: logger}

	return &ReconcileJob{
		reconciler: reconciler,
		cfg:        cfg,
		scheduler:  cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		logger:     logger,
	}
}

// Start schedules the job and starts the scheduler in the background.
func (j *ReconcileJob) Start() error {
	if j.cfg.Schedule == "" {
		return fmt.Errorf("reconcile schedule is empty")
	}

	id, err := j.scheduler.AddFunc(j.cfg.Schedule, j.run)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", j.cfg.Schedule, err)
	}

	j.logger.Info().Str("schedule", j.cfg.Schedule).Int("entry_id", int(id)).Msg("Reconcile job scheduled")
	j.scheduler.Start()

	if j.cfg.RunOnStart {
		go j.run()
	}
	return nil
}

// Stop waits for a running report to finish, up to ctx's deadline.
func (j *ReconcileJob) Stop(ctx context.Context) {
	stopped := j.scheduler.Stop()
	select {
	case <-stopped.Done():
		j.logger.Info().Msg("Reconcile job stopped")
	case <-ctx.Done():
		j.logger.Warn().Msg("Reconcile job stop timed out")
	}
}

// LastRun reports when a report last completed successfully.
func (j *ReconcileJob) LastRun() (time.Time, bool) {
	t := j.lastRun.Load()
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

func (j *ReconcileJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.RunTimeout)
	defer cancel()

	report, err := j.reconciler.Run(ctx)
	if err != nil {
		// Already logged by the reconciler.
		return
	}
	finished := report.StartedAt.Add(report.Duration)
	j.lastRun.Store(&finished)
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	zl zerolog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.zl.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.zl.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
