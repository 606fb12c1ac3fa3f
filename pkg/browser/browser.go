// Package browser wraps a headless Chrome instance behind a small
// synchronous API so catalog tools tagged browser-automation have a
// live page to drive. The browser process is launched lazily on first
// use and torn down by Cleanup.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// Browser owns one Chrome process and one page. Operations are
// serialized; the session is single threaded like the CLI tools it
// sits beside.
type Browser struct {
	cfg       Config
	validator *SecurityValidator

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// New creates a browser wrapper. No process is spawned until the first
// operation.
func New(cfg Config) *Browser {
	return &Browser{
		cfg:       cfg,
		validator: NewSecurityValidator(cfg.Security),
	}
}

// ensureLocked launches Chrome and opens a blank page if none is live.
func (b *Browser) ensureLocked() error {
	if b.page != nil {
		return nil
	}

	l := launcher.New().Headless(b.cfg.Headless)
	if b.cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	if b.cfg.ChromePath != "" {
		l = l.Bin(b.cfg.ChromePath)
	}
	if b.cfg.UserDataDir != "" {
		l = l.UserDataDir(b.cfg.UserDataDir)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return &BrowserError{
			Code:    ErrCodeCrash,
			Message: fmt.Sprintf("failed to launch browser: %v", err),
		}
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return &BrowserError{
			Code:    ErrCodeCrash,
			Message: fmt.Sprintf("failed to connect to browser: %v", err),
		}
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Cleanup()
		return &BrowserError{
			Code:    ErrCodeCrash,
			Message: fmt.Sprintf("failed to open page: %v", err),
		}
	}

	b.launcher = l
	b.browser = browser
	b.page = page

	log.Info().Bool("headless", b.cfg.Headless).Msg("Browser launched")
	return nil
}

// Navigate loads a URL in the page after validating it against the
// security policy.
func (b *Browser) Navigate(ctx context.Context, urlStr string) (*NavigateResult, error) {
	if err := b.validator.ValidateURL(urlStr); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLocked(); err != nil {
		return nil, err
	}

	page := b.page.Context(ctx)
	if err := page.Navigate(urlStr); err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeCrash,
			Message: fmt.Sprintf("navigation failed: %v", err),
		}
	}
	if err := page.WaitLoad(); err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeTimeout,
			Message: fmt.Sprintf("page load did not complete: %v", err),
		}
	}

	info, err := page.Info()
	if err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeCrash,
			Message: fmt.Sprintf("failed to read page info: %v", err),
		}
	}

	return &NavigateResult{URL: info.URL, Title: info.Title}, nil
}

// Content returns the page's current HTML.
func (b *Browser) Content(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLocked(); err != nil {
		return "", err
	}

	html, err := b.page.Context(ctx).HTML()
	if err != nil {
		return "", &BrowserError{
			Code:    ErrCodeCrash,
			Message: fmt.Sprintf("failed to read page content: %v", err),
		}
	}
	return html, nil
}

// Click clicks the first element matching the selector.
func (b *Browser) Click(ctx context.Context, selector string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLocked(); err != nil {
		return err
	}

	el, err := b.page.Context(ctx).Element(selector)
	if err != nil {
		return &BrowserError{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("element not found: %s", selector),
		}
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return &BrowserError{
			Code:    ErrCodeCrash,
			Message: fmt.Sprintf("click failed: %v", err),
		}
	}
	return nil
}

// Type focuses the element matching the selector and types text into it.
func (b *Browser) Type(ctx context.Context, selector, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLocked(); err != nil {
		return err
	}

	el, err := b.page.Context(ctx).Element(selector)
	if err != nil {
		return &BrowserError{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("element not found: %s", selector),
		}
	}
	if err := el.Input(text); err != nil {
		return &BrowserError{
			Code:    ErrCodeCrash,
			Message: fmt.Sprintf("input failed: %v", err),
		}
	}
	return nil
}

// Eval runs a JavaScript expression in the page and returns its value.
func (b *Browser) Eval(ctx context.Context, js string) (interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLocked(); err != nil {
		return nil, err
	}

	obj, err := b.page.Context(ctx).Eval(js)
	if err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeCrash,
			Message: fmt.Sprintf("script evaluation failed: %v", err),
		}
	}
	return obj.Value.Val(), nil
}

// Screenshot captures the page as PNG bytes.
func (b *Browser) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLocked(); err != nil {
		return nil, err
	}

	data, err := b.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeCrash,
			Message: fmt.Sprintf("screenshot failed: %v", err),
		}
	}
	return data, nil
}

// Running reports whether a browser process is live.
func (b *Browser) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page != nil
}

// Cleanup closes the page, the browser, and the Chrome process.
// Idempotent.
func (b *Browser) Cleanup(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}

	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
	b.page = nil
	b.browser = nil
	b.launcher = nil

	if err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	log.Info().Msg("Browser closed")
	return nil
}
