package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bookforge/internal/config"
	"bookforge/internal/history"
	"bookforge/internal/ledger"
	"bookforge/internal/logging"
	"bookforge/internal/preparer"
	"bookforge/internal/publisher"
	"bookforge/internal/scheduler"
	"bookforge/internal/services"
	"bookforge/internal/session"
	"bookforge/internal/testsupport"
)

type fakeSession struct {
	closed   bool
	captured bool
	restored *session.State
	state    *session.State
}

func (f *fakeSession) Navigate(context.Context, string) error        { return nil }
func (f *fakeSession) CurrentURL(context.Context) (string, error)    { return "about:blank", nil }
func (f *fakeSession) WaitVisible(context.Context, string) error     { return nil }
func (f *fakeSession) Exists(context.Context, string) (bool, error)  { return false, nil }
func (f *fakeSession) Click(context.Context, string) error           { return nil }
func (f *fakeSession) Type(context.Context, string, string) error    { return nil }
func (f *fakeSession) SetFiles(ctx context.Context, selector string, files ...string) error {
	return nil
}
func (f *fakeSession) SelectOption(context.Context, string, string) error { return nil }
func (f *fakeSession) Text(context.Context, string) (string, error)       { return "", nil }

func (f *fakeSession) FirstMatch(ctx context.Context, selectors ...string) (string, error) {
	return "", services.Wrap(services.ErrTimeout, "session", "first match", "no match", nil)
}

func (f *fakeSession) CaptureState(context.Context) (*session.State, error) {
	f.captured = true
	if f.state != nil {
		return f.state, nil
	}
	return &session.State{Timestamp: time.Now().UTC(), CurrentURL: "about:blank"}, nil
}

func (f *fakeSession) RestoreState(_ context.Context, state *session.State) error {
	f.restored = state
	return nil
}

func (f *fakeSession) Close() { f.closed = true }

type fakePipeline struct {
	authErr  error
	failures map[string]error
	fatal    map[string]bool
	order    []string
}

func (f *fakePipeline) Authenticate(context.Context) error { return f.authErr }

func (f *fakePipeline) PublishBook(_ context.Context, directory string, descriptor *preparer.Descriptor) *publisher.Result {
	f.order = append(f.order, directory)
	result := &publisher.Result{
		Directory: directory,
		Title:     descriptor.Title,
		Stage:     publisher.StagePublish,
		Confirmed: true,
	}
	if err, ok := f.failures[directory]; ok {
		result.Err = err
		result.Stage = publisher.StageSubmitDetails
		if f.fatal[directory] {
			result.Stage = publisher.StageAuthenticate
		}
	}
	return result
}

type fakeNotifier struct {
	started   int
	published []string
	completed bool
	failed    int
	aborted   error
}

func (f *fakeNotifier) NotifyBatchStarted(_ context.Context, count int) error {
	f.started = count
	return nil
}

func (f *fakeNotifier) NotifyBookPublished(_ context.Context, title string, confirmed bool) error {
	f.published = append(f.published, title)
	return nil
}

func (f *fakeNotifier) NotifyBatchCompleted(_ context.Context, published, failed int, _ time.Duration) error {
	f.completed = true
	f.failed = failed
	return nil
}

func (f *fakeNotifier) NotifyBatchAborted(_ context.Context, reason error) error {
	f.aborted = reason
	return nil
}

func (f *fakeNotifier) TestNotification(context.Context) error { return nil }

func writePreparedBook(t *testing.T, cfg *config.Config, index int, title string) string {
	t.Helper()
	dir := preparer.DirName(index, preparer.SanitizeTitle(title))
	metadata := fmt.Sprintf(`{"title":%q,"author":"Test Author","language":"en","bisac":"FIC000000","price_ebook_usd":9.99,"files":{}}`, title)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.PreparedDir, dir, preparer.DescriptorFilename), metadata)
	return dir
}

func newScheduler(t *testing.T, cfg *config.Config, pipe *fakePipeline, notifier *fakeNotifier, opts ...scheduler.Option) (*scheduler.Scheduler, *fakeSession) {
	t.Helper()
	sess := &fakeSession{}
	opts = append(opts,
		scheduler.WithNotifier(notifier),
		scheduler.WithSessionFactory(func(context.Context) (scheduler.Session, error) {
			return sess, nil
		}),
		scheduler.WithPipelineFactory(func(session.Driver) (scheduler.Pipeline, error) {
			return pipe, nil
		}),
	)
	return scheduler.New(cfg, logging.NewNop(), opts...), sess
}

func TestRunBatchPublishesPendingBooks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := writePreparedBook(t, cfg, 1, "First Book")
	second := writePreparedBook(t, cfg, 2, "Second Book")

	pipe := &fakePipeline{}
	notifier := &fakeNotifier{}
	sched, sess := newScheduler(t, cfg, pipe, notifier)

	report, err := sched.RunBatch(context.Background(), history.TriggerManual)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if report.Attempted != 2 || report.Published != 2 || report.Failed != 0 {
		t.Fatalf("unexpected tallies: %+v", report)
	}
	if len(pipe.order) != 2 || pipe.order[0] != first || pipe.order[1] != second {
		t.Fatalf("unexpected publish order: %v", pipe.order)
	}
	if !sess.closed {
		t.Error("session was not closed")
	}
	if !sess.captured {
		t.Error("session state was not captured")
	}
	if _, statErr := os.Stat(cfg.Paths.SessionFile); statErr != nil {
		t.Errorf("session state file missing: %v", statErr)
	}
	if notifier.started != 2 || len(notifier.published) != 2 || !notifier.completed {
		t.Errorf("unexpected notifications: %+v", notifier)
	}

	led, err := ledger.Load(cfg.LedgerPath(), logging.NewNop())
	if err != nil {
		t.Fatalf("reload ledger: %v", err)
	}
	if !led.Contains(first) || !led.Contains(second) {
		t.Errorf("ledger missing completed books: %v", led.Entries())
	}
}

func TestRunBatchSkipsCompletedBooks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := writePreparedBook(t, cfg, 1, "First Book")
	second := writePreparedBook(t, cfg, 2, "Second Book")

	led, err := ledger.Load(cfg.LedgerPath(), logging.NewNop())
	if err != nil {
		t.Fatalf("ledger.Load: %v", err)
	}
	if err := led.MarkDone(first); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	pipe := &fakePipeline{}
	sched, _ := newScheduler(t, cfg, pipe, &fakeNotifier{})
	report, err := sched.RunBatch(context.Background(), history.TriggerManual)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if report.Attempted != 1 {
		t.Fatalf("expected 1 attempt, got %d", report.Attempted)
	}
	if len(pipe.order) != 1 || pipe.order[0] != second {
		t.Fatalf("unexpected publish order: %v", pipe.order)
	}
}

func TestRunBatchRespectsBatchSize(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBooksPerRun(1))
	first := writePreparedBook(t, cfg, 1, "First Book")
	writePreparedBook(t, cfg, 2, "Second Book")

	pipe := &fakePipeline{}
	sched, _ := newScheduler(t, cfg, pipe, &fakeNotifier{})
	report, err := sched.RunBatch(context.Background(), history.TriggerManual)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if report.Attempted != 1 || len(pipe.order) != 1 || pipe.order[0] != first {
		t.Fatalf("expected only the first book, got %v", pipe.order)
	}
}

func TestRunBatchResumesAcrossRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBooksPerRun(3))
	titles := []string{"Book One", "Book Two", "Book Three", "Book Four", "Book Five"}
	dirs := make([]string, len(titles))
	for i, title := range titles {
		dirs[i] = writePreparedBook(t, cfg, i, title)
	}

	firstPipe := &fakePipeline{}
	sched, _ := newScheduler(t, cfg, firstPipe, &fakeNotifier{})
	report, err := sched.RunBatch(context.Background(), history.TriggerManual)
	if err != nil {
		t.Fatalf("first RunBatch: %v", err)
	}
	if report.Attempted != 3 || report.Published != 3 {
		t.Fatalf("unexpected first run tallies: %+v", report)
	}
	if len(firstPipe.order) != 3 || firstPipe.order[0] != dirs[0] || firstPipe.order[2] != dirs[2] {
		t.Fatalf("unexpected first run order: %v", firstPipe.order)
	}

	secondPipe := &fakePipeline{}
	sched, _ = newScheduler(t, cfg, secondPipe, &fakeNotifier{})
	report, err = sched.RunBatch(context.Background(), history.TriggerManual)
	if err != nil {
		t.Fatalf("second RunBatch: %v", err)
	}
	if report.Attempted != 2 || report.Published != 2 {
		t.Fatalf("short final batch should succeed: %+v", report)
	}
	if len(secondPipe.order) != 2 || secondPipe.order[0] != dirs[3] || secondPipe.order[1] != dirs[4] {
		t.Fatalf("second run must pick up where the first stopped: %v", secondPipe.order)
	}

	led, err := ledger.Load(cfg.LedgerPath(), logging.NewNop())
	if err != nil {
		t.Fatalf("reload ledger: %v", err)
	}
	for _, dir := range dirs {
		if !led.Contains(dir) {
			t.Errorf("ledger missing %s", dir)
		}
	}
}

func TestRunBatchNothingPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	notifier := &fakeNotifier{}
	sched := scheduler.New(cfg, logging.NewNop(),
		scheduler.WithNotifier(notifier),
		scheduler.WithSessionFactory(func(context.Context) (scheduler.Session, error) {
			t.Fatal("session opened for an empty batch")
			return nil, nil
		}),
	)
	report, err := sched.RunBatch(context.Background(), history.TriggerSchedule)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if report.Attempted != 0 || notifier.started != 0 {
		t.Fatalf("expected idle run, got %+v", report)
	}
}

func TestRunBatchAbortsOnAuthenticationFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writePreparedBook(t, cfg, 1, "First Book")

	pipe := &fakePipeline{
		authErr: services.Wrap(services.ErrAuthentication, "authenticate", "login", "sign-in rejected", nil),
	}
	notifier := &fakeNotifier{}
	sched, sess := newScheduler(t, cfg, pipe, notifier)

	report, err := sched.RunBatch(context.Background(), history.TriggerManual)
	if err == nil {
		t.Fatal("expected authentication error")
	}
	if !errors.Is(err, services.ErrAuthentication) {
		t.Fatalf("expected authentication marker, got %v", err)
	}
	if !report.Aborted || report.Attempted != 0 {
		t.Fatalf("expected aborted report, got %+v", report)
	}
	if notifier.aborted == nil {
		t.Error("abort notification not sent")
	}
	if !sess.closed {
		t.Error("session was not closed after abort")
	}
}

func TestRunBatchContinuesAfterBookFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := writePreparedBook(t, cfg, 1, "First Book")
	second := writePreparedBook(t, cfg, 2, "Second Book")

	pipe := &fakePipeline{
		failures: map[string]error{
			first: services.Wrap(services.ErrNotFound, "submit_details", "title", "field missing", nil),
		},
	}
	notifier := &fakeNotifier{}
	sched, _ := newScheduler(t, cfg, pipe, notifier)

	report, err := sched.RunBatch(context.Background(), history.TriggerManual)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if report.Published != 1 || report.Failed != 1 || report.Attempted != 2 {
		t.Fatalf("unexpected tallies: %+v", report)
	}

	led, err := ledger.Load(cfg.LedgerPath(), logging.NewNop())
	if err != nil {
		t.Fatalf("reload ledger: %v", err)
	}
	if led.Contains(first) {
		t.Error("failed book must not enter the ledger")
	}
	if !led.Contains(second) {
		t.Error("published book missing from ledger")
	}
}

func TestRunBatchAbortsWhenSessionExpiresMidBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := writePreparedBook(t, cfg, 1, "First Book")
	writePreparedBook(t, cfg, 2, "Second Book")

	pipe := &fakePipeline{
		failures: map[string]error{
			first: services.Wrap(services.ErrAuthentication, "submit_details", "session", "session expired", nil),
		},
		fatal: map[string]bool{first: true},
	}
	notifier := &fakeNotifier{}
	sched, _ := newScheduler(t, cfg, pipe, notifier)

	report, err := sched.RunBatch(context.Background(), history.TriggerManual)
	if err == nil {
		t.Fatal("expected batch-fatal error")
	}
	if len(pipe.order) != 1 {
		t.Fatalf("expected batch to stop after first book, got %v", pipe.order)
	}
	if !report.Aborted || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if notifier.aborted == nil {
		t.Error("abort notification not sent")
	}
}

func TestRunBatchRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := writePreparedBook(t, cfg, 1, "First Book")
	second := writePreparedBook(t, cfg, 2, "Second Book")

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	defer store.Close()

	pipe := &fakePipeline{
		failures: map[string]error{
			second: services.Wrap(services.ErrTimeout, "set_price", "price", "field never appeared", nil),
		},
	}
	sched, _ := newScheduler(t, cfg, pipe, &fakeNotifier{}, scheduler.WithHistory(store))

	report, err := sched.RunBatch(context.Background(), history.TriggerSchedule)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if report.RunID == 0 {
		t.Fatal("expected a recorded run id")
	}

	ctx := context.Background()
	runs, err := store.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Trigger != history.TriggerSchedule || run.BooksAttempted != 2 || run.BooksPublished != 1 || run.BooksFailed != 1 {
		t.Fatalf("unexpected run record: %+v", run)
	}

	books, err := store.BooksForRun(ctx, report.RunID)
	if err != nil {
		t.Fatalf("BooksForRun: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("expected 2 book records, got %d", len(books))
	}
	if books[0].Directory != first || !books[0].Succeeded {
		t.Fatalf("unexpected first book record: %+v", books[0])
	}
	if books[1].Succeeded || books[1].ErrorMessage == "" {
		t.Fatalf("expected recorded failure, got %+v", books[1])
	}
}

func TestRunBatchRestoresSavedSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writePreparedBook(t, cfg, 1, "First Book")

	saved := &session.State{
		Cookies:    []session.Cookie{{Name: "session-token", Value: "abc", Domain: ".example.com"}},
		CurrentURL: "https://example.com/",
		Timestamp:  time.Now().UTC(),
	}
	if err := session.SaveState(cfg.Paths.SessionFile, saved); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	sched, sess := newScheduler(t, cfg, &fakePipeline{}, &fakeNotifier{})
	if _, err := sched.RunBatch(context.Background(), history.TriggerManual); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if sess.restored == nil {
		t.Fatal("saved session state was not restored")
	}
	if len(sess.restored.Cookies) != 1 || sess.restored.Cookies[0].Name != "session-token" {
		t.Fatalf("unexpected restored state: %+v", sess.restored)
	}
}
