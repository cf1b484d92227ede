// Package session manages the driven browser: launching it with a
// persistent profile, restoring and saving cookie state, and exposing a
// bounded-wait capability surface for the upload pipeline.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"bookforge/internal/config"
	"bookforge/internal/logging"
	"bookforge/internal/services"
)

const pollInterval = 250 * time.Millisecond

// queryOption picks the chromedp matching strategy for a selector. Selectors
// beginning with // or ( are XPath expressions, everything else is CSS.
func queryOption(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func existsScript(selector string) string {
	if strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(") {
		return fmt.Sprintf(
			"document.evaluate(%q, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null).snapshotLength > 0",
			selector)
	}
	return fmt.Sprintf("document.querySelector(%q) !== null", selector)
}

// Browser owns one Chrome instance for the duration of a batch.
type Browser struct {
	cfg    *config.Config
	logger *slog.Logger

	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

// NewBrowser constructs an unstarted Browser.
func NewBrowser(cfg *config.Config, logger *slog.Logger) *Browser {
	return &Browser{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "session"),
	}
}

// Start launches Chrome and verifies it responds. Close must be called.
func (b *Browser) Start(ctx context.Context) error {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			b.logger.Debug(fmt.Sprintf("chromedp: "+format, args...))
		}),
	)
	b.browserCtx = browserCtx
	b.allocCancel = allocCancel
	b.browserCancel = browserCancel

	startCtx, cancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(startCtx, network.Enable(), chromedp.Navigate("about:blank")); err != nil {
		b.Close()
		return services.Wrap(services.ErrTransient, "session", "start browser", "browser failed startup check", err)
	}
	b.logger.Info("browser started",
		logging.Bool("headless", b.cfg.Browser.Headless),
		logging.String("user_data_dir", b.cfg.Browser.UserDataDir))
	return nil
}

// Close tears the browser down. Safe to call more than once.
func (b *Browser) Close() {
	if b.browserCancel != nil {
		b.browserCancel()
		b.browserCancel = nil
	}
	if b.allocCancel != nil {
		b.allocCancel()
		b.allocCancel = nil
	}
}

func (b *Browser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserAgent(b.cfg.Browser.UserAgent),
		chromedp.WindowSize(b.cfg.Browser.WindowWidth, b.cfg.Browser.WindowHeight),

		// Keep the automated session indistinguishable from a manual one;
		// the publishing console rejects obviously automated browsers.
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-popup-blocking", true),
	}
	if b.cfg.Browser.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(b.cfg.Browser.UserDataDir))
	}
	if b.cfg.Browser.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}
	return opts
}

func (b *Browser) pageTimeout() time.Duration {
	return time.Duration(b.cfg.Browser.PageLoadTimeout) * time.Second
}

func (b *Browser) elementTimeout() time.Duration {
	return time.Duration(b.cfg.Browser.ElementTimeout) * time.Second
}

// run executes actions against the browser with the given deadline, bailing
// out early when the caller's context is already cancelled.
func (b *Browser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(b.browserCtx, timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate implements Driver.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	err := b.run(ctx, b.pageTimeout(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return services.Wrap(services.ErrTimeout, "session", "navigate",
			fmt.Sprintf("navigate to %s", url), err)
	}
	return nil
}

// CurrentURL implements Driver.
func (b *Browser) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := b.run(ctx, b.elementTimeout(), chromedp.Location(&location)); err != nil {
		return "", services.Wrap(services.ErrTimeout, "session", "current url", "read page location", err)
	}
	return location, nil
}

// WaitVisible implements Driver.
func (b *Browser) WaitVisible(ctx context.Context, selector string) error {
	err := b.run(ctx, b.elementTimeout(), chromedp.WaitVisible(selector, queryOption(selector)))
	if err != nil {
		return services.Wrap(services.ErrTimeout, "session", "wait visible",
			fmt.Sprintf("element %q did not appear", selector), err)
	}
	return nil
}

// Exists implements Driver.
func (b *Browser) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	if err := b.run(ctx, b.elementTimeout(), chromedp.Evaluate(existsScript(selector), &found)); err != nil {
		return false, services.Wrap(services.ErrTimeout, "session", "query",
			fmt.Sprintf("probe selector %q", selector), err)
	}
	return found, nil
}

// FirstMatch implements Driver. It polls the selectors in order until one of
// them matches or the element timeout elapses.
func (b *Browser) FirstMatch(ctx context.Context, selectors ...string) (string, error) {
	deadline := time.Now().Add(b.elementTimeout())
	for {
		for _, selector := range selectors {
			found, err := b.Exists(ctx, selector)
			if err != nil {
				return "", err
			}
			if found {
				return selector, nil
			}
		}
		if time.Now().After(deadline) {
			return "", services.Wrap(services.ErrTimeout, "session", "first match",
				fmt.Sprintf("none of %d selectors matched within %s", len(selectors), b.elementTimeout()), nil)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Click implements Driver.
func (b *Browser) Click(ctx context.Context, selector string) error {
	err := b.run(ctx, b.elementTimeout(),
		chromedp.WaitVisible(selector, queryOption(selector)),
		chromedp.Click(selector, queryOption(selector)),
	)
	if err != nil {
		return services.Wrap(services.ErrTimeout, "session", "click",
			fmt.Sprintf("click %q", selector), err)
	}
	return nil
}

// Type implements Driver.
func (b *Browser) Type(ctx context.Context, selector, text string) error {
	err := b.run(ctx, b.elementTimeout(),
		chromedp.WaitVisible(selector, queryOption(selector)),
		chromedp.Clear(selector, queryOption(selector)),
		chromedp.SendKeys(selector, text, queryOption(selector)),
	)
	if err != nil {
		return services.Wrap(services.ErrTimeout, "session", "type",
			fmt.Sprintf("type into %q", selector), err)
	}
	return nil
}

// SetFiles implements Driver.
func (b *Browser) SetFiles(ctx context.Context, selector string, files ...string) error {
	err := b.run(ctx, b.elementTimeout(),
		chromedp.SetUploadFiles(selector, files, queryOption(selector)),
	)
	if err != nil {
		return services.Wrap(services.ErrTimeout, "session", "set files",
			fmt.Sprintf("attach %d file(s) to %q", len(files), selector), err)
	}
	return nil
}

// SelectOption implements Driver. It matches the option by its visible text
// and fires a change event so framework listeners observe the selection.
func (b *Browser) SelectOption(ctx context.Context, selector, visibleText string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		for (const opt of el.options) {
			if (opt.text.trim() === %q) {
				el.value = opt.value;
				el.dispatchEvent(new Event('change', { bubbles: true }));
				return true;
			}
		}
		return false;
	})()`, selector, visibleText)
	var selected bool
	if err := b.run(ctx, b.elementTimeout(), chromedp.Evaluate(script, &selected)); err != nil {
		return services.Wrap(services.ErrTimeout, "session", "select option",
			fmt.Sprintf("select %q in %q", visibleText, selector), err)
	}
	if !selected {
		return services.Wrap(services.ErrNotFound, "session", "select option",
			fmt.Sprintf("option %q not present in %q", visibleText, selector), nil)
	}
	return nil
}

// Text implements Driver.
func (b *Browser) Text(ctx context.Context, selector string) (string, error) {
	var out string
	err := b.run(ctx, b.elementTimeout(),
		chromedp.Text(selector, &out, queryOption(selector)),
	)
	if err != nil {
		return "", services.Wrap(services.ErrTimeout, "session", "text",
			fmt.Sprintf("read text of %q", selector), err)
	}
	return strings.TrimSpace(out), nil
}

// CaptureState snapshots the current cookies and location for later restore.
func (b *Browser) CaptureState(ctx context.Context) (*State, error) {
	state := &State{
		Timestamp: time.Now(),
		UserAgent: b.cfg.Browser.UserAgent,
	}
	err := b.run(ctx, b.elementTimeout(),
		chromedp.Location(&state.CurrentURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := network.GetCookies().Do(ctx)
			if err != nil {
				return err
			}
			for _, c := range cookies {
				state.Cookies = append(state.Cookies, Cookie{
					Name:     c.Name,
					Value:    c.Value,
					Domain:   c.Domain,
					Path:     c.Path,
					Expires:  c.Expires,
					HTTPOnly: c.HTTPOnly,
					Secure:   c.Secure,
					SameSite: string(c.SameSite),
				})
			}
			return nil
		}),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "session", "capture state", "read browser cookies", err)
	}
	return state, nil
}

// RestoreState injects a saved session snapshot into the running browser.
// Individual cookie failures are logged and skipped; an expired or partial
// restore just means the pipeline falls back to the login form.
func (b *Browser) RestoreState(ctx context.Context, state *State) error {
	if state == nil || len(state.Cookies) == 0 {
		return nil
	}
	err := b.run(ctx, b.elementTimeout(),
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			restored := 0
			for _, c := range state.Cookies {
				setter := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly)
				if c.SameSite != "" {
					setter = setter.WithSameSite(network.CookieSameSite(c.SameSite))
				}
				if c.Expires > 0 {
					expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
					setter = setter.WithExpires(&expires)
				}
				if err := setter.Do(ctx); err != nil {
					b.logger.Warn("failed to restore cookie",
						logging.String("cookie", c.Name),
						logging.Error(err))
					continue
				}
				restored++
			}
			b.logger.Info("restored session cookies",
				logging.Int("restored", restored),
				logging.Int("total", len(state.Cookies)))
			return nil
		}),
	)
	if err != nil {
		return services.Wrap(services.ErrTransient, "session", "restore state", "inject session cookies", err)
	}
	return nil
}
