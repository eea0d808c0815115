// Package actions implements the fallback protocol for interacting with
// unstable UI widgets. Target pages use inconsistent widget implementations
// across releases and regions, so each interaction is described as an
// ordered list of candidates tried cheaply in turn rather than one selector
// trusted to survive redesigns.
package actions

import (
	"log/slog"
	"time"

	"github.com/quickshelf/qcom-scraper/internal/browser"
)

// Candidate describes one way to locate an element: a selector plus an
// optional per-candidate wait budget. Pure configuration.
type Candidate struct {
	Selector string
	Wait     time.Duration
}

// List builds candidates with the resolver's default wait budget.
func List(selectors ...string) []Candidate {
	candidates := make([]Candidate, len(selectors))
	for i, s := range selectors {
		candidates[i] = Candidate{Selector: s}
	}
	return candidates
}

// Resolver tries candidates in order against a live page; the first one
// that resolves wins. Exhaustion is reported as a non-fatal false, never an
// error; the caller decides whether the miss matters.
type Resolver struct {
	defaultWait time.Duration
	logger      *slog.Logger
}

func NewResolver(defaultWait time.Duration) *Resolver {
	if defaultWait <= 0 {
		defaultWait = 3 * time.Second
	}
	return &Resolver{
		defaultWait: defaultWait,
		logger:      slog.Default().With("component", "action_resolver"),
	}
}

func (r *Resolver) wait(c Candidate) time.Duration {
	if c.Wait > 0 {
		return c.Wait
	}
	return r.defaultWait
}

// ClickFirst activates the first candidate that resolves to an actionable
// element.
func (r *Resolver) ClickFirst(page browser.Page, goal string, candidates []Candidate) (Candidate, bool) {
	for _, c := range candidates {
		if err := page.Click(c.Selector, r.wait(c)); err != nil {
			r.logger.Debug("candidate miss", "goal", goal, "selector", c.Selector, "error", err)
			continue
		}
		r.logger.Debug("candidate hit", "goal", goal, "selector", c.Selector)
		return c, true
	}
	r.logger.Info("all candidates exhausted", "goal", goal, "count", len(candidates))
	return Candidate{}, false
}

// FillFirst clears and fills the first candidate input that resolves.
func (r *Resolver) FillFirst(page browser.Page, goal, text string, candidates []Candidate) (Candidate, bool) {
	for _, c := range candidates {
		if err := page.Fill(c.Selector, text, r.wait(c)); err != nil {
			r.logger.Debug("candidate miss", "goal", goal, "selector", c.Selector, "error", err)
			continue
		}
		r.logger.Debug("candidate hit", "goal", goal, "selector", c.Selector)
		return c, true
	}
	r.logger.Info("all candidates exhausted", "goal", goal, "count", len(candidates))
	return Candidate{}, false
}

// WaitFirst blocks until one candidate becomes visible.
func (r *Resolver) WaitFirst(page browser.Page, goal string, candidates []Candidate) (Candidate, bool) {
	for _, c := range candidates {
		if err := page.WaitVisible(c.Selector, r.wait(c)); err != nil {
			r.logger.Debug("candidate miss", "goal", goal, "selector", c.Selector, "error", err)
			continue
		}
		return c, true
	}
	r.logger.Info("all candidates exhausted", "goal", goal, "count", len(candidates))
	return Candidate{}, false
}

// TextFirst returns the inner text of the first candidate that yields a
// non-empty value.
func (r *Resolver) TextFirst(page browser.Page, goal string, candidates []Candidate) (string, bool) {
	for _, c := range candidates {
		if !page.IsVisible(c.Selector) {
			continue
		}
		text, err := page.Text(c.Selector)
		if err != nil || text == "" {
			continue
		}
		return text, true
	}
	return "", false
}
