// Package session scopes a browsing session to a delivery location and
// captures the resulting delivery-time estimate. The flow degrades
// gracefully: every step that fails leaves the session usable for catalog
// and availability calls, at worst with the ETA left "unknown".
package session

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/quickshelf/qcom-scraper/internal/actions"
	"github.com/quickshelf/qcom-scraper/internal/browser"
	"github.com/quickshelf/qcom-scraper/internal/models"
)

// State is the progress of the location flow.
type State string

const (
	StateInit             State = "init"
	StateNavigated        State = "navigated"
	StateTriggerActivated State = "trigger_activated"
	StateModalVisible     State = "modal_visible"
	StateQueryEntered     State = "query_entered"
	StateSuggestionChosen State = "suggestion_chosen"
	StateConfirmed        State = "confirmed"
	StateEtaCaptured      State = "eta_captured"
)

// PincodePlaceholder in a candidate selector is replaced with the target
// location code at run time.
const PincodePlaceholder = "{pincode}"

// Flow is the per-platform wiring of the location state machine: where the
// picker lives, how the search input and suggestion list are found, and
// which containers may carry the delivery estimate. Pure configuration.
type Flow struct {
	BaseURL       string
	Trigger       []actions.Candidate
	SearchInput   []actions.Candidate
	Suggestion    []actions.Candidate
	Confirm       []actions.Candidate
	EtaContainers []actions.Candidate

	// Settle delays cover widget transitions with no observable completion
	// signal (modal open animation, suggestion population, location apply).
	ModalSettle      time.Duration
	SuggestionSettle time.Duration
	ApplySettle      time.Duration
}

// EtaCache remembers the last delivery estimate observed for a location, so
// a session whose capture step fails can still report a recent value.
type EtaCache interface {
	LastETA(ctx context.Context, platform models.Platform, pincode string) (string, bool)
	StoreETA(ctx context.Context, platform models.Platform, pincode, eta string)
}

var etaPattern = regexp.MustCompile(`(?i)(\d+\s*min(?:ute)?s?)`)

// Session holds the location scope of one adapter. The captured ETA lives
// here, threaded explicitly into record construction, never read from
// ambient state.
type Session struct {
	platform models.Platform
	page     browser.Page
	resolver *actions.Resolver
	flow     Flow
	cache    EtaCache
	logger   *slog.Logger

	pincode string
	eta     string
	state   State
}

func New(platform models.Platform, page browser.Page, resolver *actions.Resolver, flow Flow, cache EtaCache) *Session {
	return &Session{
		platform: platform,
		page:     page,
		resolver: resolver,
		flow:     flow,
		cache:    cache,
		logger:   slog.Default().With("component", "location_session", "platform", platform),
		eta:      "unknown",
		state:    StateInit,
	}
}

func (s *Session) ETA() string        { return s.eta }
func (s *Session) State() State       { return s.state }
func (s *Session) Pincode() string    { return s.pincode }
func (s *Session) Page() browser.Page { return s.page }
func (s *Session) Matches(platform models.Platform, pincode string) bool {
	return s.platform == platform && s.pincode == pincode
}

// Run walks the location flow for the given pincode. It never returns an
// error: widget misses either continue in a degraded state or end the flow
// early with the ETA falling back to the cache, then "unknown".
func (s *Session) Run(ctx context.Context, pincode string) {
	s.pincode = pincode
	s.logger.Info("setting location", "pincode", pincode)

	defer s.fallbackETA(ctx)

	if ctx.Err() != nil {
		return
	}

	if err := s.page.Navigate(s.flow.BaseURL); err != nil {
		s.logger.Error("failed to load base page", "error", err)
		return
	}
	s.state = StateNavigated

	// Trigger miss is non-fatal: some flows open with a default location
	// already applied and extraction can still run against it.
	if _, ok := s.resolver.ClickFirst(s.page, "location trigger", s.flow.Trigger); ok {
		s.state = StateTriggerActivated
		s.page.Settle(s.flow.ModalSettle)
	} else {
		s.logger.Warn("location trigger not found, proceeding with default location")
	}

	if ctx.Err() != nil {
		return
	}

	input, ok := s.resolver.WaitFirst(s.page, "location search input", s.flow.SearchInput)
	if !ok {
		s.logger.Warn("location search input not visible, keeping current location")
		return
	}
	s.state = StateModalVisible

	if _, ok := s.resolver.FillFirst(s.page, "pincode query", pincode, []actions.Candidate{input}); !ok {
		s.logger.Warn("could not enter pincode")
		return
	}
	s.state = StateQueryEntered

	if ctx.Err() != nil {
		return
	}

	suggestions := s.expand(s.flow.Suggestion, pincode)
	if _, ok := s.resolver.WaitFirst(s.page, "location suggestions", suggestions); !ok {
		s.logger.Warn("no location suggestions appeared")
		return
	}
	s.page.Settle(s.flow.SuggestionSettle)
	if _, ok := s.resolver.ClickFirst(s.page, "location suggestion", suggestions); !ok {
		s.logger.Warn("could not choose a suggestion")
		return
	}
	s.state = StateSuggestionChosen

	// Confirm is optional: absence within the short budget means the flow
	// does not require it.
	if len(s.flow.Confirm) > 0 {
		if _, ok := s.resolver.ClickFirst(s.page, "confirm location", s.flow.Confirm); ok {
			s.logger.Debug("location confirmed")
		}
	}
	s.state = StateConfirmed

	s.page.Settle(s.flow.ApplySettle)
	s.captureETA(ctx)
}

// captureETA scans the candidate header containers for a duration like
// "8 minutes". First match wins; total failure leaves the ETA untouched.
func (s *Session) captureETA(ctx context.Context) {
	text, ok := s.resolver.TextFirst(s.page, "delivery eta", s.flow.EtaContainers)
	if !ok {
		s.logger.Warn("no eta container found")
		return
	}

	match := etaPattern.FindString(text)
	if match == "" {
		s.logger.Warn("eta container text did not match", "text", firstLine(text))
		return
	}

	s.eta = strings.ToLower(strings.TrimSpace(match))
	s.state = StateEtaCaptured
	s.logger.Info("captured delivery eta", "eta", s.eta)

	if s.cache != nil {
		s.cache.StoreETA(ctx, s.platform, s.pincode, s.eta)
	}
}

// fallbackETA consults the cache when the flow ended without a capture.
func (s *Session) fallbackETA(ctx context.Context) {
	if s.eta != "unknown" || s.cache == nil {
		return
	}
	if eta, ok := s.cache.LastETA(ctx, s.platform, s.pincode); ok {
		s.eta = eta
		s.logger.Info("using cached delivery eta", "eta", eta)
	}
}

func (s *Session) expand(candidates []actions.Candidate, pincode string) []actions.Candidate {
	out := make([]actions.Candidate, len(candidates))
	for i, c := range candidates {
		c.Selector = strings.ReplaceAll(c.Selector, PincodePlaceholder, pincode)
		out[i] = c
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
