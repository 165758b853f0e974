// Package browser drives the registry's search page with a headless Chrome
// session through chromedp.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"medverify/internal/registry"
)

// Config configures launched sessions.
type Config struct {
	BaseURL   string
	Headless  bool
	ExecPath  string
	UserAgent string
	Selectors registry.Selectors
}

// Launcher starts one Chrome process per session.
type Launcher struct {
	cfg    Config
	logger *slog.Logger
}

// NewLauncher creates a Launcher. Empty selectors fall back to
// registry.DefaultSelectors.
func NewLauncher(cfg Config, logger *slog.Logger) *Launcher {
	if cfg.Selectors == (registry.Selectors{}) {
		cfg.Selectors = registry.DefaultSelectors()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Launcher{cfg: cfg, logger: logger}
}

// Launch starts a fresh browser and tab. The browser outlives ctx; only
// Close ends it.
func (l *Launcher) Launch(ctx context.Context) (registry.Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	)
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		l.logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
	}))

	s := &session{
		cfg:    l.cfg,
		tabCtx: tabCtx,
		closeFn: func() {
			cancelTab()
			cancelAlloc()
		},
	}
	// An empty Run starts the browser process and opens the tab.
	if err := s.run(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

type session struct {
	cfg     Config
	tabCtx  context.Context
	closeFn func()
	once    sync.Once
}

// run executes actions on the tab, aborting when ctx is done. Cancelling a
// context derived from the tab context stops the actions without closing the
// tab.
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (s *session) Open(ctx context.Context) error {
	idle := newIdleWaiter()

	listenCtx, stopListening := context.WithCancel(s.tabCtx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev any) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			idle.observe(e.LoaderID)
		}
	})

	return s.run(ctx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.ActionFunc(func(c context.Context) error {
			_, loaderID, errText, err := page.Navigate(s.cfg.BaseURL).Do(c)
			if err != nil {
				return err
			}
			if errText != "" {
				return fmt.Errorf("navigate %s: %s", s.cfg.BaseURL, errText)
			}
			idle.expect(loaderID)
			return nil
		}),
		chromedp.ActionFunc(func(c context.Context) error {
			select {
			case <-idle.done:
				return nil
			case <-c.Done():
				return c.Err()
			}
		}),
		chromedp.WaitVisible(s.cfg.Selectors.SearchInput, chromedp.ByQuery),
	)
}

// idleWaiter closes done once the loader started by our navigation reports
// networkIdle. Idle events from other loaders, such as the initial
// about:blank, are ignored. Events may arrive before the navigation returns
// its loader ID.
type idleWaiter struct {
	mu   sync.Mutex
	seen map[cdp.LoaderID]bool
	want cdp.LoaderID
	once sync.Once
	done chan struct{}
}

func newIdleWaiter() *idleWaiter {
	return &idleWaiter{seen: make(map[cdp.LoaderID]bool), done: make(chan struct{})}
}

func (w *idleWaiter) observe(loaderID cdp.LoaderID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen[loaderID] = true
	if w.want != "" && loaderID == w.want {
		w.once.Do(func() { close(w.done) })
	}
}

// expect records the navigation's loader. An empty ID means a same-document
// navigation that never reports its own lifecycle.
func (w *idleWaiter) expect(loaderID cdp.LoaderID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.want = loaderID
	if loaderID == "" || w.seen[loaderID] {
		w.once.Do(func() { close(w.done) })
	}
}

func (s *session) Search(ctx context.Context, licenseNumber string) error {
	sel := s.cfg.Selectors
	return s.run(ctx,
		chromedp.SetValue(sel.SearchInput, "", chromedp.ByQuery),
		chromedp.SendKeys(sel.SearchInput, licenseNumber, chromedp.ByQuery),
		chromedp.Click(sel.SearchButton, chromedp.ByQuery),
	)
}

func (s *session) WaitForResult(ctx context.Context) (string, error) {
	var markup string
	err := s.run(ctx,
		chromedp.WaitReady(s.cfg.Selectors.ResultRows, chromedp.ByQuery),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	)
	return markup, err
}

func (s *session) OpenDetail(ctx context.Context) error {
	return s.run(ctx, chromedp.Click(s.cfg.Selectors.DetailLink, chromedp.ByQuery))
}

func (s *session) WaitForDetail(ctx context.Context) (string, error) {
	var markup string
	err := s.run(ctx,
		chromedp.WaitVisible(s.cfg.Selectors.DetailPanel, chromedp.ByQuery),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	)
	return markup, err
}

func (s *session) Close() error {
	s.once.Do(s.closeFn)
	return nil
}
