package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"bookforge/internal/config"
	"bookforge/internal/history"
	"bookforge/internal/logging"
)

// Daemon runs batches on the configured daily schedule and enforces
// single-instance execution through a lock file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	scheduler *Scheduler

	lockPath string
	lock     *flock.Flock
	inFlight atomic.Bool
}

// NewDaemon constructs the daemon around an existing scheduler.
func NewDaemon(cfg *config.Config, logger *slog.Logger, sched *Scheduler) *Daemon {
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		scheduler: sched,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
}

// Run blocks until ctx is canceled, triggering a batch at the configured
// upload time each day. When run_on_startup is set, one batch runs
// immediately before the schedule takes over. Triggers that fire while a
// batch is still running are skipped.
func (d *Daemon) Run(ctx context.Context) error {
	hour, minute, err := config.ParseClock(d.cfg.Schedule.UploadTime)
	if err != nil {
		return fmt.Errorf("parse upload time: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another bookforge daemon holds %s", d.lockPath)
	}
	defer func() {
		if unlockErr := d.lock.Unlock(); unlockErr != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(unlockErr))
		}
	}()

	schedule := cron.New()
	entryID, err := schedule.AddFunc(fmt.Sprintf("%d %d * * *", minute, hour), func() {
		d.trigger(ctx, history.TriggerSchedule)
	})
	if err != nil {
		return fmt.Errorf("register daily schedule: %w", err)
	}
	schedule.Start()
	defer func() {
		<-schedule.Stop().Done()
	}()

	d.logger.Info("daemon started",
		logging.String("upload_time", d.cfg.Schedule.UploadTime),
		logging.String("lock", d.lockPath))

	if d.cfg.Schedule.RunOnStartup {
		d.trigger(ctx, history.TriggerStartup)
	}

	poll := time.Duration(d.cfg.Schedule.TriggerPollSeconds) * time.Second
	if poll <= 0 {
		poll = time.Minute
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping")
			return nil
		case <-ticker.C:
			d.logger.Debug("daemon heartbeat",
				logging.String("next_run", schedule.Entry(entryID).Next.Format(time.RFC3339)))
		}
	}
}

func (d *Daemon) trigger(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	if !d.inFlight.CompareAndSwap(false, true) {
		d.logger.Warn("previous batch still running; skipping trigger",
			logging.String("trigger", trigger))
		return
	}
	defer d.inFlight.Store(false)

	if _, err := d.scheduler.RunBatch(ctx, trigger); err != nil {
		d.logger.Error("batch run failed", logging.Error(err))
	}
}
