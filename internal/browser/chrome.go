package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cepsync/internal/model"
)

// ChromeOptions configures the browser process and per-query timing.
type ChromeOptions struct {
	ExecPath        string
	Headless        bool
	UserAgent       string
	SelectorTimeout time.Duration // wait for a form element
	ResultTimeout   time.Duration // wait for the result container after submit
	SettleDelay     time.Duration // pause before capturing the page
	PageTimeout     time.Duration // hard bound on one whole query
}

// CodeForm holds the selectors of the direct postal-code lookup form.
type CodeForm struct {
	URL    string
	Input  string
	Submit string
	Result string
}

// LocalityForm holds the selectors of the region/locality lookup form.
// LetterLink may contain the placeholder {letter}.
type LocalityForm struct {
	URL           string
	RegionSelect  string
	LocalityInput string
	Submit        string
	LetterLink    string
	Result        string
}

// Site describes the two forms of the source website.
type Site struct {
	Code     CodeForm
	Locality LocalityForm
}

func (o ChromeOptions) withDefaults() ChromeOptions {
	if o.SelectorTimeout <= 0 {
		o.SelectorTimeout = 10 * time.Second
	}
	if o.ResultTimeout <= 0 {
		o.ResultTimeout = o.SelectorTimeout
	}
	if o.PageTimeout <= 0 {
		o.PageTimeout = 60 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	}
	return o
}

// allocatorOptions builds the exec allocator flags for o.
func (o ChromeOptions) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(o.UserAgent),
	)
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	return opts
}

// ChromeOpener launches chromedp-controlled Chrome sessions.
type ChromeOpener struct {
	opts   ChromeOptions
	site   Site
	labels Labels
}

// NewChromeOpener creates a ChromeOpener. A nil labels value selects
// DefaultLabels.
func NewChromeOpener(opts ChromeOptions, site Site, labels Labels) *ChromeOpener {
	if labels == nil {
		labels = DefaultLabels()
	}
	return &ChromeOpener{opts: opts.withDefaults(), site: site, labels: labels}
}

// Open starts the browser and waits for its first tab to come up.
func (o *ChromeOpener) Open(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, o.opts.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, &InitError{Err: eris.Wrap(err, "chrome: start")}
	}

	zap.L().Debug("chrome session started", zap.Bool("headless", o.opts.Headless))
	return &ChromeSession{
		opts:          o.opts,
		site:          o.site,
		labels:        o.labels,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

// ChromeSession is a Session backed by one Chrome process. Each query runs in
// a fresh tab that is closed before Extract returns.
type ChromeSession struct {
	mu            sync.Mutex
	opts          ChromeOptions
	site          Site
	labels        Labels
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	closed        bool
}

// Extract runs one query in a new tab.
func (s *ChromeSession) Extract(ctx context.Context, key model.QueryKey) (model.ExtractionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.ExtractionResult{}, eris.Wrap(ErrSessionLost, "session closed")
	}
	if err := ctx.Err(); err != nil {
		return model.ExtractionResult{}, eris.Wrapf(err, "browser: extract %s", key)
	}
	if err := s.browserCtx.Err(); err != nil {
		return model.ExtractionResult{}, eris.Wrapf(ErrSessionLost, "browser context: %v", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, s.opts.PageTimeout)
	defer cancel()

	var res model.ExtractionResult
	switch key.Kind() {
	case model.KeyCode:
		res = s.lookupCode(tabCtx, key)
	case model.KeyLocality:
		res = s.lookupLocality(tabCtx, key)
	default:
		return model.ExtractionResult{}, eris.Errorf("browser: unsupported key kind %q", key.Kind())
	}

	// The browser shares the run context, so a cancelled run also kills it.
	if err := ctx.Err(); err != nil {
		return model.ExtractionResult{}, eris.Wrapf(err, "browser: extract %s", key)
	}
	// A dead browser surfaces as a failed tab; report it as fatal rather than
	// letting the walk burn through the remaining keys.
	if res.Outcome == model.OutcomeFailed && s.browserCtx.Err() != nil {
		return model.ExtractionResult{}, eris.Wrapf(ErrSessionLost, "during %s: %s", key, res.Detail)
	}
	return res, nil
}

func (s *ChromeSession) lookupCode(ctx context.Context, key model.QueryKey) model.ExtractionResult {
	form := s.site.Code

	if err := chromedp.Run(ctx, chromedp.Navigate(form.URL)); err != nil {
		return model.Failed(model.ReasonNavigation, err.Error())
	}
	if res, ok := s.waitFor(ctx, form.Input); !ok {
		return res
	}
	if err := chromedp.Run(ctx,
		chromedp.SendKeys(form.Input, key.Code(), chromedp.ByQuery),
		chromedp.Click(form.Submit, chromedp.ByQuery, chromedp.NodeVisible),
	); err != nil {
		return model.Failed(model.ReasonNavigation, eris.Wrap(err, "submit code form").Error())
	}
	return s.capture(ctx, form.Result, form.Input)
}

func (s *ChromeSession) lookupLocality(ctx context.Context, key model.QueryKey) model.ExtractionResult {
	form := s.site.Locality

	if err := chromedp.Run(ctx, chromedp.Navigate(form.URL)); err != nil {
		return model.Failed(model.ReasonNavigation, err.Error())
	}
	if res, ok := s.waitFor(ctx, form.RegionSelect); !ok {
		return res
	}
	var dispatched bool
	if err := chromedp.Run(ctx,
		chromedp.SetValue(form.RegionSelect, key.Region(), chromedp.ByQuery),
		chromedp.Evaluate(changeEventJS(form.RegionSelect), &dispatched),
	); err != nil {
		return model.Failed(model.ReasonNavigation, eris.Wrap(err, "select region").Error())
	}
	if res, ok := s.waitFor(ctx, form.LocalityInput); !ok {
		return res
	}
	if err := chromedp.Run(ctx,
		chromedp.SendKeys(form.LocalityInput, key.City(), chromedp.ByQuery),
		chromedp.Click(form.Submit, chromedp.ByQuery, chromedp.NodeVisible),
	); err != nil {
		return model.Failed(model.ReasonNavigation, eris.Wrap(err, "submit locality form").Error())
	}

	if form.LetterLink != "" && key.Letter() != "" {
		sel := LetterSelector(form.LetterLink, key.Letter())
		if _, ok := s.waitFor(ctx, sel); !ok {
			// No index entry for this letter.
			return model.NotFound()
		}
		if err := chromedp.Run(ctx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
			return model.Failed(model.ReasonNavigation, eris.Wrap(err, "select letter").Error())
		}
	}
	return s.capture(ctx, form.Result, form.RegionSelect, form.LocalityInput)
}

// waitFor blocks until sel is visible or the selector timeout elapses.
func (s *ChromeSession) waitFor(ctx context.Context, sel string) (model.ExtractionResult, bool) {
	wctx, cancel := context.WithTimeout(ctx, s.opts.SelectorTimeout)
	defer cancel()

	err := chromedp.Run(wctx, chromedp.WaitVisible(sel, chromedp.ByQuery))
	if err == nil {
		return model.ExtractionResult{}, true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(wctx.Err(), context.DeadlineExceeded) {
		return model.Failed(model.ReasonSelectorTimeout, fmt.Sprintf("%s not visible after %s", sel, s.opts.SelectorTimeout)), false
	}
	return model.Failed(model.ReasonNavigation, err.Error()), false
}

// capture waits for the result container (when configured), lets the page
// settle and classifies its HTML. A missing result container is not an error:
// "not found" pages usually render a message instead of a table.
func (s *ChromeSession) capture(ctx context.Context, resultSel string, formSelectors ...string) model.ExtractionResult {
	if resultSel != "" {
		rctx, cancel := context.WithTimeout(ctx, s.opts.ResultTimeout)
		_ = chromedp.Run(rctx, chromedp.WaitVisible(resultSel, chromedp.ByQuery))
		cancel()
	}

	var html string
	actions := []chromedp.Action{}
	if s.opts.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(s.opts.SettleDelay))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err := chromedp.Run(ctx, actions...); err != nil {
		return model.Failed(model.ReasonNavigation, eris.Wrap(err, "capture page").Error())
	}
	return Classify(html, s.labels, formSelectors...)
}

// Close shuts the browser down. Subsequent Extract calls fail with
// ErrSessionLost.
func (s *ChromeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := chromedp.Cancel(s.browserCtx)
	s.browserCancel()
	s.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return eris.Wrap(err, "chrome: close")
	}
	return nil
}

// LetterSelector fills the {letter} placeholder of a letter-index selector.
func LetterSelector(tmpl, letter string) string {
	return strings.ReplaceAll(tmpl, "{letter}", letter)
}

func changeEventJS(sel string) string {
	return fmt.Sprintf(`document.querySelector(%q).dispatchEvent(new Event("change", {bubbles: true}))`, sel)
}
