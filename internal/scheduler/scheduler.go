package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"bookforge/internal/category"
	"bookforge/internal/config"
	"bookforge/internal/history"
	"bookforge/internal/ledger"
	"bookforge/internal/logging"
	"bookforge/internal/notifications"
	"bookforge/internal/preparer"
	"bookforge/internal/publisher"
	"bookforge/internal/services"
	"bookforge/internal/session"
	"bookforge/internal/workqueue"
)

// Session is the browser surface a batch drives. One session spans the whole
// batch; authentication happens once.
type Session interface {
	session.Driver
	CaptureState(ctx context.Context) (*session.State, error)
	RestoreState(ctx context.Context, state *session.State) error
	Close()
}

// Pipeline publishes a single prepared book through the console.
type Pipeline interface {
	Authenticate(ctx context.Context) error
	PublishBook(ctx context.Context, directory string, descriptor *preparer.Descriptor) *publisher.Result
}

// BatchReport summarizes the outcome of one batch run.
type BatchReport struct {
	RunID     int64
	Trigger   string
	Attempted int
	Published int
	Failed    int
	Aborted   bool
	Results   []publisher.Result
}

// Scheduler runs publication batches against the work queue.
type Scheduler struct {
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
	history  *history.Store

	openSession func(ctx context.Context) (Session, error)
	newPipeline func(driver session.Driver) (Pipeline, error)
	sleep       func(ctx context.Context, d time.Duration) error
	randIntn    func(n int) int
}

// Option configures optional Scheduler behavior.
type Option func(*Scheduler)

// WithNotifier overrides the notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(s *Scheduler) { s.notifier = notifier }
}

// WithHistory records run outcomes in the given store.
func WithHistory(store *history.Store) Option {
	return func(s *Scheduler) { s.history = store }
}

// WithSessionFactory overrides how batch browser sessions are opened.
func WithSessionFactory(fn func(ctx context.Context) (Session, error)) Option {
	return func(s *Scheduler) { s.openSession = fn }
}

// WithPipelineFactory overrides how the upload pipeline is built.
func WithPipelineFactory(fn func(driver session.Driver) (Pipeline, error)) Option {
	return func(s *Scheduler) { s.newPipeline = fn }
}

// New constructs a batch scheduler.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		notifier: notifications.NewService(cfg),
		sleep:    sleepContext,
		randIntn: rand.Intn,
	}
	s.openSession = func(ctx context.Context) (Session, error) {
		browser := session.NewBrowser(cfg, logger)
		if err := browser.Start(ctx); err != nil {
			return nil, err
		}
		return browser, nil
	}
	s.newPipeline = func(driver session.Driver) (Pipeline, error) {
		var pipelineOpts []publisher.Option
		if cfg.Paths.CategoryFile != "" {
			resolver, err := category.LoadResolver(cfg.Paths.CategoryFile)
			if err != nil {
				return nil, fmt.Errorf("load category data: %w", err)
			}
			pipelineOpts = append(pipelineOpts, publisher.WithCategories(resolver))
		}
		return publisher.New(cfg, driver, logger, pipelineOpts...), nil
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunBatch publishes the next pending batch of prepared books. Authentication
// failure aborts the batch; individual book failures are recorded and the
// batch continues. Interrupts are honored between books, never mid-book.
func (s *Scheduler) RunBatch(ctx context.Context, trigger string) (*BatchReport, error) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	log := logging.WithContext(ctx, s.logger)
	// Bookkeeping still runs after an interrupt cancels ctx.
	bg := context.WithoutCancel(ctx)

	led, err := ledger.Load(s.cfg.LedgerPath(), s.logger)
	if err != nil {
		return nil, fmt.Errorf("load completion ledger: %w", err)
	}
	prepared, err := preparer.ListPrepared(s.cfg.Paths.PreparedDir)
	if err != nil {
		return nil, fmt.Errorf("list prepared books: %w", err)
	}

	report := &BatchReport{Trigger: trigger}
	batch := workqueue.NextBatch(prepared, led, s.cfg.Schedule.BooksPerRun)
	if len(batch) == 0 {
		log.Info("no books pending publication",
			logging.Int("prepared", len(prepared)),
			logging.Int("completed", len(led.Entries())))
		return report, nil
	}

	log.Info("starting publication batch",
		logging.String("trigger", trigger),
		logging.Int("books", len(batch)))
	report.RunID = s.beginRun(bg, trigger, log)
	s.notify(log, func() error { return s.notifier.NotifyBatchStarted(ctx, len(batch)) })

	startedAt := time.Now()
	sess, err := s.openSession(ctx)
	if err != nil {
		err = fmt.Errorf("open browser session: %w", err)
		s.abortRun(bg, report, err, log)
		return report, err
	}
	defer sess.Close()

	s.restoreState(ctx, sess, log)

	pipe, err := s.newPipeline(sess)
	if err != nil {
		s.abortRun(bg, report, err, log)
		return report, err
	}

	if err := pipe.Authenticate(ctx); err != nil {
		s.persistState(bg, sess, log)
		s.abortRun(bg, report, err, log)
		return report, err
	}
	s.persistState(bg, sess, log)

	for i, dir := range batch {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Warn("batch interrupted between books", logging.Error(ctxErr))
			report.Aborted = true
			break
		}
		if i > 0 {
			if pauseErr := s.pause(ctx); pauseErr != nil {
				log.Warn("batch interrupted during delay", logging.Error(pauseErr))
				report.Aborted = true
				break
			}
		}

		report.Attempted++
		bookCtx := services.WithBookID(ctx, dir)
		result := s.publishOne(bookCtx, pipe, dir)
		report.Results = append(report.Results, *result)
		s.recordBook(bg, report.RunID, result, log)

		if result.Succeeded() {
			if markErr := led.MarkDone(dir); markErr != nil {
				log.Error("failed to record completion; book may be retried",
					logging.String("directory", dir), logging.Error(markErr))
			}
			report.Published++
			s.notify(log, func() error {
				return s.notifier.NotifyBookPublished(ctx, result.Title, result.Confirmed)
			})
			continue
		}

		report.Failed++
		log.Error("book publication failed",
			logging.String("directory", dir),
			logging.String("stage", string(result.Stage)),
			logging.Error(result.Err))
		if services.IsBatchFatal(result.Err) {
			s.persistState(bg, sess, log)
			s.abortRun(bg, report, result.Err, log)
			return report, result.Err
		}
	}

	s.persistState(bg, sess, log)
	s.finishRun(bg, report, "", log)
	duration := time.Since(startedAt)
	log.Info("publication batch finished",
		logging.Int("published", report.Published),
		logging.Int("failed", report.Failed),
		logging.Duration("duration", duration))
	if s.cfg.Schedule.NotifyBatchComplete {
		s.notify(log, func() error {
			return s.notifier.NotifyBatchCompleted(bg, report.Published, report.Failed, duration)
		})
	}
	return report, nil
}

func (s *Scheduler) publishOne(ctx context.Context, pipe Pipeline, dir string) *publisher.Result {
	bookDir := filepath.Join(s.cfg.Paths.PreparedDir, dir)
	descriptor, err := preparer.LoadDescriptor(bookDir)
	if err != nil {
		return &publisher.Result{
			Directory: dir,
			Stage:     "load_metadata",
			Err:       fmt.Errorf("load book metadata: %w", err),
		}
	}
	return pipe.PublishBook(ctx, dir, descriptor)
}

// pause sleeps for a randomized duration between the configured delay bounds.
func (s *Scheduler) pause(ctx context.Context) error {
	minDelay := s.cfg.Schedule.MinDelaySeconds
	maxDelay := s.cfg.Schedule.MaxDelaySeconds
	delay := minDelay
	if span := maxDelay - minDelay; span > 0 {
		delay += s.randIntn(span + 1)
	}
	if delay <= 0 {
		return ctx.Err()
	}
	s.logger.Debug("waiting before next book", logging.Int("seconds", delay))
	return s.sleep(ctx, time.Duration(delay)*time.Second)
}

func (s *Scheduler) restoreState(ctx context.Context, sess Session, log *slog.Logger) {
	state, err := session.LoadState(s.cfg.Paths.SessionFile)
	if err != nil {
		log.Warn("failed to load session state; starting fresh", logging.Error(err))
		return
	}
	if state == nil {
		return
	}
	if err := sess.RestoreState(ctx, state); err != nil {
		log.Warn("failed to restore session state; starting fresh", logging.Error(err))
	}
}

func (s *Scheduler) persistState(ctx context.Context, sess Session, log *slog.Logger) {
	state, err := sess.CaptureState(ctx)
	if err != nil {
		log.Warn("failed to capture session state", logging.Error(err))
		return
	}
	if err := session.SaveState(s.cfg.Paths.SessionFile, state); err != nil {
		log.Warn("failed to save session state", logging.Error(err))
	}
}

func (s *Scheduler) beginRun(ctx context.Context, trigger string, log *slog.Logger) int64 {
	if s.history == nil {
		return 0
	}
	id, err := s.history.BeginRun(ctx, trigger)
	if err != nil {
		log.Warn("failed to record run start", logging.Error(err))
		return 0
	}
	return id
}

func (s *Scheduler) recordBook(ctx context.Context, runID int64, result *publisher.Result, log *slog.Logger) {
	if s.history == nil || runID == 0 {
		return
	}
	record := history.BookRecord{
		Directory:  result.Directory,
		Title:      result.Title,
		Stage:      string(result.Stage),
		Succeeded:  result.Succeeded(),
		Confirmed:  result.Confirmed,
		Warnings:   len(result.Warnings),
		FinishedAt: time.Now().UTC(),
	}
	if result.Err != nil {
		record.ErrorMessage = result.Err.Error()
	}
	if err := s.history.RecordBook(ctx, runID, record); err != nil {
		log.Warn("failed to record book outcome", logging.Error(err))
	}
}

func (s *Scheduler) finishRun(ctx context.Context, report *BatchReport, note string, log *slog.Logger) {
	if s.history == nil || report.RunID == 0 {
		return
	}
	err := s.history.FinishRun(ctx, report.RunID, report.Attempted, report.Published, report.Failed, report.Aborted, note)
	if err != nil {
		log.Warn("failed to record run completion", logging.Error(err))
	}
}

func (s *Scheduler) abortRun(ctx context.Context, report *BatchReport, reason error, log *slog.Logger) {
	report.Aborted = true
	log.Error("publication batch aborted", logging.Error(reason))
	note := ""
	if reason != nil {
		note = reason.Error()
	}
	s.finishRun(ctx, report, note, log)
	s.notify(log, func() error { return s.notifier.NotifyBatchAborted(ctx, reason) })
}

func (s *Scheduler) notify(log *slog.Logger, send func() error) {
	if err := send(); err != nil {
		log.Warn("notification delivery failed", logging.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
