// Package browser provides the page-reading capability backed by a
// headless Chromium instance via go-rod. The browser launches lazily
// on first use and is shared across reads.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"openmoose/internal/logging"
)

// Reader reads web pages. Implements skills.PageReader.
type Reader struct {
	mu      sync.Mutex
	browser *rod.Browser

	// Timeout bounds a single page load and extraction.
	Timeout time.Duration
}

// NewReader creates a Reader. The underlying browser starts on the
// first PageText call, not here.
func NewReader() *Reader {
	return &Reader{Timeout: 30 * time.Second}
}

// connect launches Chromium once.
func (r *Reader) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	url, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(url)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logging.Get(logging.CategoryBrowser).Info("headless browser launched")
	r.browser = b
	return b, nil
}

// PageText navigates to url and returns the page's visible text.
func (r *Reader) PageText(ctx context.Context, url string) (text string, err error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("unsupported URL scheme: %s", url)
	}

	b, err := r.connect()
	if err != nil {
		return "", err
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// rod panics on navigation failures; convert to errors.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page read failed for %s: %v", url, rec)
		}
	}()

	page := b.Context(loadCtx).MustPage(url)
	defer page.MustClose()

	page.MustWaitLoad()
	body := page.MustElement("body").MustText()

	logging.Get(logging.CategoryBrowser).Info("read %s (%d chars)", url, len(body))
	return strings.TrimSpace(body), nil
}

// Close shuts the browser down.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}
