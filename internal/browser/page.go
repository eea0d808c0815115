package browser

import "time"

// Page is the automation capability the extraction engine consumes. The
// engine only issues these calls and interprets results and timeouts; the
// browser process lifecycle stays behind this interface. Tests substitute
// fakes.
type Page interface {
	// Navigate loads the URL and waits for DOM content. Retries are the
	// implementation's concern.
	Navigate(url string) error

	// URL is the page's current address, after any redirects.
	URL() string

	// Content returns the full rendered markup.
	Content() (string, error)

	// IsVisible reports whether the selector resolves to a visible element
	// right now, without waiting.
	IsVisible(selector string) bool

	// WaitVisible blocks until the selector is visible or the timeout
	// elapses.
	WaitVisible(selector string, timeout time.Duration) error

	// Click waits for the selector (bounded) and activates it.
	Click(selector string, timeout time.Duration) error

	// Fill clears the matched input and types the text.
	Fill(selector, text string, timeout time.Duration) error

	// Text returns the inner text of the first match.
	Text(selector string) (string, error)

	// Settle pauses for a fixed delay. Used only where no observable state
	// change exists to wait on; a heuristic, not a correctness guarantee.
	Settle(d time.Duration)

	// Screenshot captures the viewport to a file, for offline debugging.
	Screenshot(path string) error

	Close() error
}
