// Package publisher drives a prepared book through the publishing console:
// authenticate once per batch, then for each book walk the strict stage
// sequence from form navigation through publish confirmation.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"bookforge/internal/catalog"
	"bookforge/internal/category"
	"bookforge/internal/config"
	"bookforge/internal/logging"
	"bookforge/internal/preparer"
	"bookforge/internal/services"
	"bookforge/internal/session"
)

// Stage identifies a step of the upload pipeline.
type Stage string

const (
	StageAuthenticate   Stage = "authenticate"
	StageNavigateToForm Stage = "navigate_to_form"
	StageSubmitDetails  Stage = "submit_details"
	StageUploadFiles    Stage = "upload_files"
	StageSetPrice       Stage = "set_price"
	StagePublish        Stage = "publish"
)

// Result reports the outcome of publishing one book. Err is nil on success;
// Warnings collects soft issues that did not abort the book, including an
// unconfirmed publish.
type Result struct {
	Directory string
	Title     string
	Stage     Stage
	Err       error
	Warnings  []string
	Confirmed bool
}

// Succeeded reports whether the book completed the pipeline, confirmed or
// not.
func (r *Result) Succeeded() bool {
	return r.Err == nil
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Pipeline publishes prepared books through a browser session.
type Pipeline struct {
	cfg        *config.Config
	driver     session.Driver
	categories *category.Resolver
	logger     *slog.Logger
	pause      func(time.Duration)
}

// Pacing bounds for the pauses between form interactions.
const (
	pacingFloor  = 200 * time.Millisecond
	pacingJitter = 500 * time.Millisecond
)

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithCategories enables category selection using the given resolver.
func WithCategories(resolver *category.Resolver) Option {
	return func(p *Pipeline) {
		p.categories = resolver
	}
}

// New constructs a Pipeline over the given driver.
func New(cfg *config.Config, driver session.Driver, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		driver: driver,
		logger: logging.NewComponentLogger(logger, "publisher"),
		pause:  time.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// firstMatch probes a selector chain. A timeout means none matched, which is
// reported via found=false; any other error is returned as-is.
func (p *Pipeline) firstMatch(ctx context.Context, selectors []string) (string, bool, error) {
	selector, err := p.driver.FirstMatch(ctx, selectors...)
	if err != nil {
		if errors.Is(err, services.ErrTimeout) {
			return "", false, nil
		}
		return "", false, err
	}
	return selector, true, nil
}

func (p *Pipeline) isLoggedIn(ctx context.Context) (bool, error) {
	_, found, err := p.firstMatch(ctx, loggedInSelectors)
	return found, err
}

// Authenticate establishes a logged-in session, reusing restored cookies
// when they are still valid and falling back to the login form otherwise.
// An authentication failure aborts the whole batch.
func (p *Pipeline) Authenticate(ctx context.Context) error {
	ctx = services.WithStage(ctx, string(StageAuthenticate))
	logger := logging.WithContext(ctx, p.logger)

	if err := p.driver.Navigate(ctx, p.cfg.Publisher.BaseURL); err != nil {
		return services.Wrap(services.ErrAuthentication, string(StageAuthenticate), "open console", "load publisher console", err)
	}

	if loggedIn, err := p.isLoggedIn(ctx); err != nil {
		return err
	} else if loggedIn {
		logger.Info("session restored, already authenticated")
		return nil
	}

	for attempt := 1; attempt <= p.cfg.Publisher.MaxLoginAttempts; attempt++ {
		logger.Info("logging in", logging.Int("attempt", attempt))
		if err := p.submitLoginForm(ctx); err != nil {
			logger.Warn("login attempt failed", logging.Int("attempt", attempt), logging.Error(err))
			continue
		}
		if loggedIn, err := p.isLoggedIn(ctx); err != nil {
			return err
		} else if loggedIn {
			logger.Info("authenticated", logging.Int("attempt", attempt))
			return nil
		}
		logger.Warn("login submitted but dashboard not reached", logging.Int("attempt", attempt))
	}
	return services.Wrap(services.ErrAuthentication, string(StageAuthenticate), "login",
		fmt.Sprintf("login failed after %d attempt(s)", p.cfg.Publisher.MaxLoginAttempts), nil)
}

func (p *Pipeline) submitLoginForm(ctx context.Context) error {
	// Not every entry point shows the sign-in link; the email form may
	// already be up.
	if selector, found, err := p.firstMatch(ctx, signInLinkSelectors); err != nil {
		return err
	} else if found {
		if err := p.driver.Click(ctx, selector); err != nil {
			return err
		}
	}

	if err := p.driver.Type(ctx, emailFieldSelector, p.cfg.Publisher.Email); err != nil {
		return err
	}
	if err := p.driver.Click(ctx, continueSelector); err != nil {
		return err
	}
	if err := p.driver.Type(ctx, passwordFieldSelector, p.cfg.Publisher.Password); err != nil {
		return err
	}
	return p.driver.Click(ctx, signInSubmitSelector)
}

// PublishBook runs the full stage sequence for one prepared book. The
// returned result always names the stage that was running when the book
// finished or failed.
func (p *Pipeline) PublishBook(ctx context.Context, directory string, descriptor *preparer.Descriptor) *Result {
	ctx = services.WithBookID(ctx, directory)
	result := &Result{Directory: directory, Title: descriptor.Title}

	stages := []struct {
		stage Stage
		run   func(context.Context, *preparer.Descriptor, *Result) error
	}{
		{StageNavigateToForm, p.navigateToForm},
		{StageSubmitDetails, p.submitDetails},
		{StageUploadFiles, p.uploadFiles},
		{StageSetPrice, p.setPrice},
		{StagePublish, p.publish},
	}

	for _, step := range stages {
		result.Stage = step.stage
		stageCtx := services.WithStage(ctx, string(step.stage))
		logger := logging.WithContext(stageCtx, p.logger)
		logger.Info("starting stage", logging.String("title", descriptor.Title))
		if err := step.run(stageCtx, descriptor, result); err != nil {
			result.Err = err
			logger.Error("stage failed", logging.Error(err))
			return result
		}
	}

	logger := logging.WithContext(ctx, p.logger)
	logger.Info("book published",
		logging.String("title", descriptor.Title),
		logging.Bool("confirmed", result.Confirmed),
		logging.Int("warnings", len(result.Warnings)))
	return result
}

func (p *Pipeline) navigateToForm(ctx context.Context, _ *preparer.Descriptor, result *Result) error {
	logger := logging.WithContext(ctx, p.logger)

	if selector, found, err := p.firstMatch(ctx, createNewSelectors); err != nil {
		return err
	} else if found {
		if err := p.driver.Click(ctx, selector); err != nil {
			return err
		}
	} else {
		// No create button anywhere; go straight to the setup URL.
		logger.Info("create button not found, navigating directly")
		if err := p.driver.Navigate(ctx, p.cfg.Publisher.BaseURL+"/en_US/title-setup/kindle"); err != nil {
			return err
		}
	}

	if selector, found, err := p.firstMatch(ctx, createEbookSelectors); err != nil {
		return err
	} else if found {
		if err := p.driver.Click(ctx, selector); err != nil {
			return err
		}
	}

	if _, found, err := p.firstMatch(ctx, formReadySelectors); err != nil {
		return err
	} else if !found {
		return services.Wrap(services.ErrValidation, string(StageNavigateToForm), "confirm form",
			"book creation form did not load", nil)
	}
	return nil
}

func (p *Pipeline) submitDetails(ctx context.Context, descriptor *preparer.Descriptor, result *Result) error {
	logger := logging.WithContext(ctx, p.logger)

	if displayLang := DisplayLanguage(descriptor.Language); displayLang != "" && displayLang != "English" {
		if err := p.selectLanguage(ctx, displayLang); err != nil {
			result.warnf("could not select language %q: %v", displayLang, err)
		}
	}

	// Title is the one detail the form cannot proceed without.
	if err := p.typeFirst(ctx, titleFieldSelectors, descriptor.Title); err != nil {
		return services.Wrap(services.ErrValidation, string(StageSubmitDetails), "fill title",
			fmt.Sprintf("could not fill title for %q", descriptor.Title), err)
	}

	if descriptor.Subtitle != nil && *descriptor.Subtitle != "" {
		if err := p.typeFirst(ctx, subtitleFieldSelectors, *descriptor.Subtitle); err != nil {
			result.warnf("could not fill subtitle: %v", err)
		}
	}

	first, last := SplitAuthor(descriptor.Author)
	if err := p.typeFirst(ctx, firstNameSelectors, first); err != nil {
		result.warnf("could not fill author first name: %v", err)
	} else if last != "" {
		if err := p.typeFirst(ctx, lastNameSelectors, last); err != nil {
			result.warnf("could not fill author last name: %v", err)
		}
	}

	if description := StripHTML(descriptor.DescriptionHTML); description != "" {
		if err := p.typeFirst(ctx, descriptionFieldSelectors, description); err != nil {
			result.warnf("could not fill description: %v", err)
		}
	}

	if keyword := FirstKeyword(descriptor.Keywords); keyword != "" {
		if err := p.typeFirst(ctx, keywordsFieldSelectors, keyword); err != nil {
			result.warnf("could not fill keywords: %v", err)
		}
	}

	if err := p.clickFirst(ctx, rightsRadioSelectors); err != nil {
		result.warnf("could not select publishing rights: %v", err)
	}
	if err := p.clickFirst(ctx, adultContentNoSelectors); err != nil {
		result.warnf("could not set audience selection: %v", err)
	}

	if p.categories != nil {
		if err := p.selectCategory(ctx, descriptor.BISAC, result); err != nil {
			return err
		}
	}

	if err := p.clickFirst(ctx, saveAndContinueSelectors); err != nil {
		return services.Wrap(services.ErrValidation, string(StageSubmitDetails), "save details",
			"could not advance past the details form", err)
	}
	logger.Info("details submitted", logging.String("title", descriptor.Title))
	return nil
}

func (p *Pipeline) selectLanguage(ctx context.Context, displayLang string) error {
	selector, found, err := p.firstMatch(ctx, languageSelectSelectors)
	if err != nil {
		return err
	}
	if !found {
		return services.Wrap(services.ErrNotFound, string(StageSubmitDetails), "select language",
			"language dropdown not found", nil)
	}
	p.pace()
	return p.driver.SelectOption(ctx, selector, displayLang)
}

// selectCategory resolves the book's classification code and clicks through
// the category chooser. An unresolvable code is a hard failure: publishing
// without a category would leave the listing unclassified. Chooser UI
// misses, by contrast, are soft.
func (p *Pipeline) selectCategory(ctx context.Context, code string, result *Result) error {
	resolved, err := p.categories.Resolve(code)
	if err != nil {
		return err
	}
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("resolved category",
		logging.String("code", code),
		logging.String("path", resolved.PathString))

	if err := p.clickFirst(ctx, categorySectionSelectors); err != nil {
		result.warnf("could not open category chooser: %v", err)
		return nil
	}
	for _, component := range resolved.Path {
		selector := fmt.Sprintf(`//*[contains(text(), %q)]`, component)
		if err := p.driver.Click(ctx, selector); err != nil {
			result.warnf("could not select category component %q: %v", component, err)
			return nil
		}
	}
	return nil
}

func (p *Pipeline) uploadFiles(ctx context.Context, descriptor *preparer.Descriptor, result *Result) error {
	logger := logging.WithContext(ctx, p.logger)

	if _, found, err := p.firstMatch(ctx, contentPageSelectors); err != nil {
		return err
	} else if !found {
		result.warnf("could not confirm the content page")
	}

	p.uploadRole(ctx, descriptor, catalog.RoleEbookCover, coverUploadSelectors, result)
	p.uploadRole(ctx, descriptor, catalog.RoleEpub, manuscriptUploadSelectors, result)

	if err := p.clickFirst(ctx, saveAndContinueSelectors); err != nil {
		return services.Wrap(services.ErrValidation, string(StageUploadFiles), "save content",
			"could not advance past the content page", err)
	}
	logger.Info("file uploads completed", logging.Int("warnings", len(result.Warnings)))
	return nil
}

// uploadRole attaches one asset file. Every failure mode here is soft: a
// missing file, a vanished upload field, or a rejected attach all log a
// warning and let the book continue.
func (p *Pipeline) uploadRole(ctx context.Context, descriptor *preparer.Descriptor, role string, selectors []string, result *Result) {
	logger := logging.WithContext(ctx, p.logger)

	path, ok := descriptor.Files[role]
	if !ok || path == "" {
		result.warnf("no %s file prepared", role)
		logger.Warn("asset not prepared", logging.String("role", role))
		return
	}
	if _, err := os.Stat(path); err != nil {
		result.warnf("%s file missing on disk: %s", role, path)
		logger.Warn("asset file missing", logging.String("role", role), logging.String("path", path))
		return
	}

	selector, found, err := p.firstMatch(ctx, selectors)
	if err != nil || !found {
		result.warnf("could not find %s upload field", role)
		logger.Warn("upload field not found", logging.String("role", role), logging.Error(err))
		return
	}
	p.pace()
	if err := p.driver.SetFiles(ctx, selector, path); err != nil {
		result.warnf("could not attach %s file: %v", role, err)
		logger.Warn("attach failed", logging.String("role", role), logging.Error(err))
		return
	}
	logger.Info("asset uploaded", logging.String("role", role), logging.String("path", path))
}

func (p *Pipeline) setPrice(ctx context.Context, descriptor *preparer.Descriptor, result *Result) error {
	if _, found, err := p.firstMatch(ctx, pricingPageSelectors); err != nil {
		return err
	} else if !found {
		result.warnf("could not confirm the pricing page")
	}

	price := FormatPrice(descriptor.PriceEbookUSD)
	if err := p.typeFirst(ctx, priceFieldSelectors, price); err != nil {
		return services.Wrap(services.ErrValidation, string(StageSetPrice), "fill price",
			fmt.Sprintf("could not set list price %s", price), err)
	}
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("price set", logging.String("list_price_usd", price))
	return nil
}

func (p *Pipeline) publish(ctx context.Context, descriptor *preparer.Descriptor, result *Result) error {
	logger := logging.WithContext(ctx, p.logger)

	if err := p.clickFirst(ctx, publishButtonSelectors); err != nil {
		return services.Wrap(services.ErrValidation, string(StagePublish), "click publish",
			"publish button not found", err)
	}

	// Some flows interpose a confirmation dialog.
	if selector, found, err := p.firstMatch(ctx, publishConfirmSelectors); err != nil {
		return err
	} else if found {
		if err := p.driver.Click(ctx, selector); err != nil {
			return err
		}
	}

	if _, found, err := p.firstMatch(ctx, publishSuccessSelectors); err != nil {
		return err
	} else if found {
		result.Confirmed = true
		logger.Info("publication confirmed", logging.String("title", descriptor.Title))
	} else {
		// Submission went through without an error page; count the book as
		// published but flag it for manual verification.
		result.warnf("publication submitted but not confirmed; verify on the bookshelf")
		logger.Warn("publication not confirmed", logging.String("title", descriptor.Title))
	}
	return nil
}

// pace waits briefly so form input arrives at a human rhythm rather than as
// a burst.
func (p *Pipeline) pace() {
	p.pause(pacingFloor + time.Duration(rand.Int63n(int64(pacingJitter))))
}

func (p *Pipeline) typeFirst(ctx context.Context, selectors []string, text string) error {
	p.pace()
	selector, found, err := p.firstMatch(ctx, selectors)
	if err != nil {
		return err
	}
	if !found {
		return services.Wrap(services.ErrNotFound, "publisher", "locate field",
			fmt.Sprintf("no selector matched (%s...)", shorten(selectors[0])), nil)
	}
	return p.driver.Type(ctx, selector, text)
}

func (p *Pipeline) clickFirst(ctx context.Context, selectors []string) error {
	p.pace()
	selector, found, err := p.firstMatch(ctx, selectors)
	if err != nil {
		return err
	}
	if !found {
		return services.Wrap(services.ErrNotFound, "publisher", "locate element",
			fmt.Sprintf("no selector matched (%s...)", shorten(selectors[0])), nil)
	}
	return p.driver.Click(ctx, selector)
}

func shorten(selector string) string {
	if len(selector) > 40 {
		return selector[:40]
	}
	return selector
}
