package session

import "context"

// Driver is the browser capability surface the upload pipeline drives. All
// waits are bounded by the configured element and page timeouts; none of the
// methods block indefinitely.
type Driver interface {
	// Navigate loads url and waits for the page to become interactive.
	Navigate(ctx context.Context, url string) error
	// CurrentURL reports the location of the active page.
	CurrentURL(ctx context.Context) (string, error)
	// WaitVisible blocks until the selector matches a visible node.
	WaitVisible(ctx context.Context, selector string) error
	// FirstMatch polls the given selectors and returns the first one that
	// matches a node on the page.
	FirstMatch(ctx context.Context, selectors ...string) (string, error)
	// Exists reports whether the selector currently matches a node.
	Exists(ctx context.Context, selector string) (bool, error)
	// Click waits for the selector to become visible and clicks it.
	Click(ctx context.Context, selector string) error
	// Type clears the matched input and types text into it.
	Type(ctx context.Context, selector, text string) error
	// SetFiles attaches local files to a file input.
	SetFiles(ctx context.Context, selector string, files ...string) error
	// SelectOption selects a dropdown option by its visible text.
	SelectOption(ctx context.Context, selector, visibleText string) error
	// Text returns the trimmed text content of the matched node.
	Text(ctx context.Context, selector string) (string, error)
}
