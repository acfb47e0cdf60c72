// Package browser decides engine steps by driving the betting site in Chrome.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/Vodeneev/betrunner/internal/engine"
	"github.com/Vodeneev/betrunner/internal/pkg/config"
	"github.com/Vodeneev/betrunner/internal/pkg/models"
)

const defaultActionTimeout = 30 * time.Second

// Selector keys read from engine.browser.selectors. Missing keys skip the action.
const (
	SelUsername     = "username"
	SelPassword     = "password"
	SelSubmit       = "login_submit"
	SelLoggedIn     = "logged_in"
	SelRacingLink   = "racing_link"
	SelRacingPage   = "racing_page"
	SelPlaceBet     = "place_bet"
	SelConfirmation = "bet_confirmation"
	SelLogout       = "logout"
)

// Ensure Decider implements engine.StepDecider
var _ engine.StepDecider = (*Decider)(nil)

// Decider runs each step as a chromedp task list. Chrome is started lazily
// on the first step and reused for the engine's lifetime.
type Decider struct {
	cfg           config.BrowserConfig
	actionTimeout time.Duration

	mu            sync.Mutex
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

func NewDecider(cfg config.BrowserConfig) (*Decider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("browser base URL is required")
	}
	return &Decider{cfg: cfg, actionTimeout: defaultActionTimeout}, nil
}

func (d *Decider) Decide(ctx context.Context, step engine.Step, req models.BetRequest, creds engine.Credentials) error {
	tasks := d.tasks(step, req, creds)
	if len(tasks) == 0 {
		return nil
	}

	browserCtx, err := d.browser()
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}

	// chromedp needs the browser context; the caller's ctx only bounds the wait
	runCtx, cancel := context.WithTimeout(browserCtx, d.actionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, tasks); err != nil {
		slog.Warn("Browser step failed", "step", step.String(), "error", err)
		return fmt.Errorf("%w: %v", engine.ErrStepFailed, err)
	}
	return nil
}

func (d *Decider) tasks(step engine.Step, req models.BetRequest, creds engine.Credentials) chromedp.Tasks {
	var t chromedp.Tasks
	switch step {
	case engine.StepAuthenticating:
		t = append(t, chromedp.Navigate(d.cfg.BaseURL))
		t = d.appendSendKeys(t, SelUsername, creds.Username)
		t = d.appendSendKeys(t, SelPassword, creds.Password)
		t = d.appendClick(t, SelSubmit)
		t = d.appendWait(t, SelLoggedIn)
	case engine.StepNavigating:
		if _, ok := d.cfg.Selectors[SelRacingLink]; !ok {
			t = append(t, chromedp.Navigate(d.cfg.BaseURL))
		}
		t = d.appendClick(t, SelRacingLink)
		t = d.appendWait(t, SelRacingPage)
	case engine.StepSearchingRace:
		t = appendTextClick(t, req.RaceName)
	case engine.StepSearchingHorse:
		t = appendTextClick(t, req.Horse)
	case engine.StepPlacingBet:
		t = d.appendClick(t, SelPlaceBet)
		t = d.appendWait(t, SelConfirmation)
	case engine.StepLoggingOut:
		t = d.appendClick(t, SelLogout)
	}
	return t
}

func (d *Decider) appendSendKeys(t chromedp.Tasks, key, text string) chromedp.Tasks {
	if sel, ok := d.cfg.Selectors[key]; ok {
		t = append(t, chromedp.WaitVisible(sel, chromedp.ByQuery), chromedp.SendKeys(sel, text, chromedp.ByQuery))
	}
	return t
}

func (d *Decider) appendClick(t chromedp.Tasks, key string) chromedp.Tasks {
	if sel, ok := d.cfg.Selectors[key]; ok {
		t = append(t, chromedp.Click(sel, chromedp.ByQuery))
	}
	return t
}

func (d *Decider) appendWait(t chromedp.Tasks, key string) chromedp.Tasks {
	if sel, ok := d.cfg.Selectors[key]; ok {
		t = append(t, chromedp.WaitVisible(sel, chromedp.ByQuery))
	}
	return t
}

// appendTextClick clicks the first visible element whose text contains text.
func appendTextClick(t chromedp.Tasks, text string) chromedp.Tasks {
	xpath := fmt.Sprintf("//*[contains(normalize-space(.), %s) and not(*[contains(normalize-space(.), %s)])]", xpathLiteral(text), xpathLiteral(text))
	return append(t, chromedp.WaitVisible(xpath, chromedp.BySearch), chromedp.Click(xpath, chromedp.BySearch))
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

func (d *Decider) browser() (context.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browserCtx != nil && d.browserCtx.Err() == nil {
		return d.browserCtx, nil
	}

	chromeDir, err := os.MkdirTemp("", "betrunner-chrome-*")
	if err != nil {
		return nil, fmt.Errorf("chrome profile dir: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !d.cfg.ShowBrowser),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserDataDir(chromeDir),
	)
	if d.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(d.cfg.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		slog.Debug("chromedp", "message", fmt.Sprintf(format, v...))
	}))

	// Start the browser now so a launch failure is reported by this step
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}

	d.browserCtx = browserCtx
	d.cancelAlloc = cancelAlloc
	d.cancelBrowser = cancelBrowser
	slog.Info("Browser started", "headless", !d.cfg.ShowBrowser, "base_url", d.cfg.BaseURL)
	return browserCtx, nil
}

// Close shuts Chrome down.
func (d *Decider) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancelBrowser != nil {
		d.cancelBrowser()
		d.cancelAlloc()
		d.browserCtx = nil
		d.cancelBrowser = nil
		d.cancelAlloc = nil
	}
	return nil
}
