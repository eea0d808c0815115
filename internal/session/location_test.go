package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickshelf/qcom-scraper/internal/actions"
	"github.com/quickshelf/qcom-scraper/internal/models"
)

type fakePage struct {
	navErr    error
	navigated []string
	visible   map[string]bool
	texts     map[string]string
	clicked   []string
	filled    map[string]string
}

func newFakePage() *fakePage {
	return &fakePage{
		visible: make(map[string]bool),
		texts:   make(map[string]string),
		filled:  make(map[string]string),
	}
}

func (p *fakePage) Navigate(url string) error {
	if p.navErr != nil {
		return p.navErr
	}
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *fakePage) URL() string              { return "" }
func (p *fakePage) Content() (string, error) { return "", nil }

func (p *fakePage) IsVisible(selector string) bool { return p.visible[selector] }

func (p *fakePage) WaitVisible(selector string, _ time.Duration) error {
	if p.visible[selector] {
		return nil
	}
	return errors.New("not visible")
}

func (p *fakePage) Click(selector string, _ time.Duration) error {
	if !p.visible[selector] {
		return errors.New("not visible")
	}
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *fakePage) Fill(selector, text string, _ time.Duration) error {
	if !p.visible[selector] {
		return errors.New("not visible")
	}
	p.filled[selector] = text
	return nil
}

func (p *fakePage) Text(selector string) (string, error) {
	text, ok := p.texts[selector]
	if !ok {
		return "", errors.New("no such element")
	}
	return text, nil
}

func (p *fakePage) Settle(time.Duration)    {}
func (p *fakePage) Screenshot(string) error { return nil }
func (p *fakePage) Close() error            { return nil }

type fakeCache struct {
	stored map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{stored: make(map[string]string)} }

func (c *fakeCache) key(platform models.Platform, pincode string) string {
	return string(platform) + ":" + pincode
}

func (c *fakeCache) LastETA(_ context.Context, platform models.Platform, pincode string) (string, bool) {
	eta, ok := c.stored[c.key(platform, pincode)]
	return eta, ok
}

func (c *fakeCache) StoreETA(_ context.Context, platform models.Platform, pincode, eta string) {
	c.stored[c.key(platform, pincode)] = eta
}

func testFlow() Flow {
	return Flow{
		BaseURL:       "https://example.com",
		Trigger:       actions.List("#location-trigger"),
		SearchInput:   actions.List("#location-input"),
		Suggestion:    actions.List(`[data-pincode="` + PincodePlaceholder + `"]`, ".suggestion-item"),
		EtaContainers: actions.List("#eta-header"),
	}
}

func newTestSession(page *fakePage, cache EtaCache) *Session {
	resolver := actions.NewResolver(10 * time.Millisecond)
	return New(models.PlatformBlinkit, page, resolver, testFlow(), cache)
}

func TestRunFullFlow(t *testing.T) {
	page := newFakePage()
	page.visible["#location-trigger"] = true
	page.visible["#location-input"] = true
	page.visible[`[data-pincode="560001"]`] = true
	page.visible["#eta-header"] = true
	page.texts["#eta-header"] = "Delivery in 8 minutes\nBangalore 560001"

	cache := newFakeCache()
	s := newTestSession(page, cache)
	s.Run(context.Background(), "560001")

	assert.Equal(t, StateEtaCaptured, s.State())
	assert.Equal(t, "8 minutes", s.ETA())
	assert.Equal(t, "560001", page.filled["#location-input"])
	assert.Equal(t, []string{"#location-trigger", `[data-pincode="560001"]`}, page.clicked)

	eta, ok := cache.LastETA(context.Background(), models.PlatformBlinkit, "560001")
	require.True(t, ok)
	assert.Equal(t, "8 minutes", eta)
}

func TestRunTriggerMissIsNonFatal(t *testing.T) {
	page := newFakePage()
	page.visible["#location-input"] = true
	page.visible[".suggestion-item"] = true
	page.visible["#eta-header"] = true
	page.texts["#eta-header"] = "12 mins"

	s := newTestSession(page, nil)
	s.Run(context.Background(), "110001")

	assert.Equal(t, StateEtaCaptured, s.State())
	assert.Equal(t, "12 mins", s.ETA())
}

func TestRunInputMissEndsFlowQuietly(t *testing.T) {
	page := newFakePage()
	page.visible["#location-trigger"] = true

	s := newTestSession(page, nil)
	s.Run(context.Background(), "560001")

	assert.Equal(t, StateTriggerActivated, s.State())
	assert.Equal(t, "unknown", s.ETA())
}

func TestRunNoSuggestionsEndsFlowQuietly(t *testing.T) {
	page := newFakePage()
	page.visible["#location-trigger"] = true
	page.visible["#location-input"] = true

	s := newTestSession(page, nil)
	s.Run(context.Background(), "560001")

	assert.Equal(t, StateQueryEntered, s.State())
	assert.Equal(t, "unknown", s.ETA())
}

func TestRunNavigateFailure(t *testing.T) {
	page := newFakePage()
	page.navErr = errors.New("net::ERR_CONNECTION_RESET")

	s := newTestSession(page, nil)
	s.Run(context.Background(), "560001")

	assert.Equal(t, StateInit, s.State())
	assert.Equal(t, "unknown", s.ETA())
}

func TestRunFallsBackToCachedETA(t *testing.T) {
	page := newFakePage() // no widgets at all

	cache := newFakeCache()
	cache.StoreETA(context.Background(), models.PlatformBlinkit, "560001", "10 mins")

	s := newTestSession(page, cache)
	s.Run(context.Background(), "560001")

	assert.Equal(t, "10 mins", s.ETA())
	assert.NotEqual(t, StateEtaCaptured, s.State())
}

func TestRunEtaTextWithoutDuration(t *testing.T) {
	page := newFakePage()
	page.visible["#location-trigger"] = true
	page.visible["#location-input"] = true
	page.visible[".suggestion-item"] = true
	page.visible["#eta-header"] = true
	page.texts["#eta-header"] = "Service not available at this location"

	s := newTestSession(page, nil)
	s.Run(context.Background(), "999999")

	assert.Equal(t, StateConfirmed, s.State())
	assert.Equal(t, "unknown", s.ETA())
}

func TestRunConfirmMissIsNonFatal(t *testing.T) {
	flow := testFlow()
	flow.Confirm = actions.List("#confirm-button")

	page := newFakePage()
	page.visible["#location-trigger"] = true
	page.visible["#location-input"] = true
	page.visible[".suggestion-item"] = true
	page.visible["#eta-header"] = true
	page.texts["#eta-header"] = "9 mins"
	// #confirm-button never appears

	resolver := actions.NewResolver(10 * time.Millisecond)
	s := New(models.PlatformZepto, page, resolver, flow, nil)
	s.Run(context.Background(), "560001")

	assert.Equal(t, StateEtaCaptured, s.State())
	assert.Equal(t, "9 mins", s.ETA())
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := newFakePage()
	s := newTestSession(page, nil)
	s.Run(ctx, "560001")

	assert.Empty(t, page.navigated)
	assert.Equal(t, StateInit, s.State())
}

func TestMatches(t *testing.T) {
	s := newTestSession(newFakePage(), nil)
	s.Run(context.Background(), "560001")

	assert.True(t, s.Matches(models.PlatformBlinkit, "560001"))
	assert.False(t, s.Matches(models.PlatformBlinkit, "110001"))
	assert.False(t, s.Matches(models.PlatformZepto, "560001"))
}
