package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/gamepulse/catalog-ingest/internal/archive"
	"github.com/gamepulse/catalog-ingest/internal/catalog"
)

// Proxy widget selectors, matching the access UI the scraper drives.
const (
	widgetFrameSelector = "iframe#widget-frame"
	widgetInputSelector = `input[placeholder="Enter an URL or a search query to access"]`
	widgetGoSelector    = `button[type="button"]`
)

// BrowserConfig controls the rendered-page detail fetcher.
type BrowserConfig struct {
	// ProxyURL is the indirect access UI navigated before each game page.
	ProxyURL string
	// GameURLBase is the base of the target game pages, without trailing slash.
	GameURLBase string
	UserAgent   string
	Headless    bool
	// NavTimeout bounds one whole render attempt.
	NavTimeout time.Duration
	// MarkerTimeout bounds the wait for the detail marker once navigation
	// starts; exceeding it counts as one failed attempt.
	MarkerTimeout time.Duration
}

// Session is an exclusive retrieval session owned by one worker. Sessions
// are re-acquired periodically to bound browser resource growth.
type Session interface {
	DetailFetcher
	Close()
}

// SessionFactory mints fresh retrieval sessions.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// BrowserFactory creates chromedp-backed sessions sharing one exec
// allocator, one browser context per session.
type BrowserFactory struct {
	cfg         BrowserConfig
	policy      Policy
	pause       Pauser
	logger      *zap.Logger
	arch        archive.Store
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewBrowserFactory validates the config and prepares the allocator.
// arch may be nil to disable raw-page archiving.
func NewBrowserFactory(
	cfg BrowserConfig,
	policy Policy,
	pause Pauser,
	arch archive.Store,
	logger *zap.Logger,
) (*BrowserFactory, error) {
	if cfg.ProxyURL == "" {
		return nil, fmt.Errorf("browser proxy url is required")
	}
	if cfg.GameURLBase == "" {
		return nil, fmt.Errorf("game url base is required")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}
	if cfg.MarkerTimeout <= 0 {
		cfg.MarkerTimeout = 20 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &BrowserFactory{
		cfg:         cfg,
		policy:      policy,
		pause:       pause,
		logger:      logger,
		arch:        arch,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close tears down the shared allocator and every browser spawned from it.
func (f *BrowserFactory) Close() {
	f.allocCancel()
}

// NewSession launches a fresh browser context. The browser starts eagerly
// so a broken Chrome install fails at acquisition, not mid-chunk.
func (f *BrowserFactory) NewSession(_ context.Context) (Session, error) {
	browserCtx, cancel := chromedp.NewContext(f.allocator)
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return &browserSession{
		factory: f,
		ctx:     browserCtx,
		cancel:  cancel,
	}, nil
}

type browserSession struct {
	factory *BrowserFactory
	ctx     context.Context
	cancel  context.CancelFunc
}

// Close releases the browser context and its tabs.
func (s *browserSession) Close() {
	s.cancel()
}

// Details renders the game page through the proxy UI and extracts the four
// name lists, retrying per the factory's policy.
func (s *browserSession) Details(ctx context.Context, id int64) (catalog.Details, error) {
	f := s.factory

	var details catalog.Details
	err := Retry(ctx, f.policy, f.pause, f.logger, UnitGame, id, func(ctx context.Context) error {
		html, err := s.render(ctx, id)
		if err != nil {
			return err
		}
		if f.arch != nil {
			path := fmt.Sprintf("pages/%d.html", id)
			if _, archErr := f.arch.Put(ctx, path, "text/html; charset=utf-8", []byte(html)); archErr != nil {
				f.logger.Warn("archive rendered page failed", zap.Int64("game_id", id), zap.Error(archErr))
			}
		}
		extracted, err := ExtractDetails(html)
		if err != nil {
			return err
		}
		if err := validateRendered(extracted, id); err != nil {
			return err
		}
		details = extracted
		return nil
	})
	if err != nil {
		return catalog.Details{}, err
	}
	return details, nil
}

func (s *browserSession) render(ctx context.Context, id int64) (string, error) {
	f := s.factory
	target := fmt.Sprintf("%s/%d", f.cfg.GameURLBase, id)

	runCtx, cancel := context.WithTimeout(s.ctx, f.cfg.NavTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	actions := []chromedp.Action{
		s.userAgentAction(),
		chromedp.Navigate(f.cfg.ProxyURL),
		chromedp.WaitVisible(widgetFrameSelector, chromedp.ByQuery),
		s.submitThroughWidget(target),
		s.waitForGamePage(id),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return "", fmt.Errorf("render game %d via proxy: %w", id, err)
	}
	return html, nil
}

// submitThroughWidget drives the access widget, which lives inside its own
// iframe. Selector queries never cross document boundaries, so the frame
// node is resolved first and the input/button queries run from it.
func (s *browserSession) submitThroughWidget(target string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var frames []*cdp.Node
		if err := chromedp.Nodes(widgetFrameSelector, &frames, chromedp.ByQuery).Do(ctx); err != nil {
			return fmt.Errorf("locate widget frame: %w", err)
		}
		frame, err := widgetFrame(frames)
		if err != nil {
			return err
		}
		scope := chromedp.FromNode(frame)
		if err := chromedp.WaitVisible(widgetInputSelector, chromedp.ByQuery, scope).Do(ctx); err != nil {
			return fmt.Errorf("wait for widget input: %w", err)
		}
		if err := chromedp.SendKeys(widgetInputSelector, target, chromedp.ByQuery, scope).Do(ctx); err != nil {
			return fmt.Errorf("fill widget input: %w", err)
		}
		if err := chromedp.Click(widgetGoSelector, chromedp.ByQuery, scope).Do(ctx); err != nil {
			return fmt.Errorf("submit widget: %w", err)
		}
		return nil
	})
}

// widgetFrame picks the frame node the widget queries are scoped to.
func widgetFrame(frames []*cdp.Node) (*cdp.Node, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("widget frame %q not found", widgetFrameSelector)
	}
	return frames[0], nil
}

func (s *browserSession) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if s.factory.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(s.factory.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

// waitForGamePage polls until the proxied navigation has landed on the
// game's page and the detail marker is present in the DOM.
func (s *browserSession) waitForGamePage(id int64) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		fragment := fmt.Sprintf("game/%d", id)
		script := fmt.Sprintf(
			`window.location.href.indexOf(%q) !== -1 && document.body !== null && document.body.innerText.indexOf(%q) !== -1`,
			fragment, detailMarker,
		)

		deadline := time.Now().Add(s.factory.cfg.MarkerTimeout)
		for {
			var ready bool
			if err := chromedp.Evaluate(script, &ready).Do(ctx); err != nil {
				// Evaluation races the proxied navigation; treat a
				// transient failure like "not ready yet".
				if !isNavigationRace(err) {
					return fmt.Errorf("poll for detail marker: %w", err)
				}
			}
			if ready {
				return nil
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("game %d: detail marker %q not found within %s", id, detailMarker, s.factory.cfg.MarkerTimeout)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}
	})
}

func isNavigationRace(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "context changed") ||
		strings.Contains(msg, "execution context") ||
		strings.Contains(msg, "Cannot find context")
}
