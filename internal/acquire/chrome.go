// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/pdiddy/propextract/pkg/types"
)

const defaultPageTimeout = 30 * time.Second

// ChromeDriver drives a Chrome/Chromium instance through the DevTools
// protocol. Downloads land in a per-session directory.
type ChromeDriver struct {
	ctx         context.Context
	cancel      context.CancelFunc
	downloadDir string
	ownsDir     bool
	pageTimeout time.Duration
}

// NewChromeDriver launches a browser configured to save downloads without
// prompting. The browser stays open until Close.
func NewChromeDriver(ctx context.Context, cfg types.BrowserConfig, userAgent string) (*ChromeDriver, error) {
	dir := cfg.DownloadDir
	ownsDir := false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "propextract-downloads-*")
		if err != nil {
			return nil, fmt.Errorf("creating download directory: %w", err)
		}
		dir, ownsDir = tmp, true
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating download directory %s: %w", dir, err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	err := chromedp.Run(tabCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
	)
	if err != nil {
		cancel()
		if ownsDir {
			os.RemoveAll(dir)
		}
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	pageTimeout := cfg.PageTimeout
	if pageTimeout <= 0 {
		pageTimeout = defaultPageTimeout
	}
	return &ChromeDriver{
		ctx:         tabCtx,
		cancel:      cancel,
		downloadDir: dir,
		ownsDir:     ownsDir,
		pageTimeout: pageTimeout,
	}, nil
}

// ChromeFactory returns a DriverFactory that launches ChromeDriver sessions.
func ChromeFactory(cfg types.BrowserConfig, userAgent string) DriverFactory {
	return func(ctx context.Context) (Driver, error) {
		return NewChromeDriver(ctx, cfg, userAgent)
	}
}

// DownloadDir returns the directory the browser saves files to.
func (d *ChromeDriver) DownloadDir() string { return d.downloadDir }

// scoped derives a context from the browser tab that also ends when the
// caller's ctx does.
func (d *ChromeDriver) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(d.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	tctx, cancel := d.scoped(ctx, d.pageTimeout)
	defer cancel()
	err := chromedp.Run(tctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
	// Navigating straight to a file aborts the page load once the browser
	// hands the response to the download manager.
	if err != nil && strings.Contains(err.Error(), "net::ERR_ABORTED") {
		return nil
	}
	return err
}

func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	tctx, cancel := d.scoped(ctx, d.pageTimeout)
	defer cancel()
	var loc string
	if err := chromedp.Run(tctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (d *ChromeDriver) WaitForElement(ctx context.Context, loc Locator, timeout time.Duration) (Element, error) {
	tctx, cancel := d.scoped(ctx, timeout)
	defer cancel()

	by := chromedp.BySearch
	if loc.Kind == ByCSS {
		by = chromedp.ByQuery
	}
	var nodes []*cdp.Node
	err := chromedp.Run(tctx, chromedp.Nodes(loc.Query, &nodes, by, chromedp.NodeVisible, chromedp.AtLeast(1)))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return Element{}, fmt.Errorf("%w: %s", ErrElementNotFound, loc.Name)
		}
		return Element{}, err
	}
	if len(nodes) == 0 {
		return Element{}, fmt.Errorf("%w: %s", ErrElementNotFound, loc.Name)
	}
	return NewElement(loc, nodes[0]), nil
}

func (d *ChromeDriver) Click(ctx context.Context, el Element) error {
	node, ok := el.Handle().(*cdp.Node)
	if !ok {
		return fmt.Errorf("element %q was not located by this driver", el.Locator.Name)
	}
	tctx, cancel := d.scoped(ctx, d.pageTimeout)
	defer cancel()
	return chromedp.Run(tctx, chromedp.MouseClickNode(node))
}

func (d *ChromeDriver) WaitForDownload(ctx context.Context, since time.Time, timeout time.Duration) (string, error) {
	return awaitDownload(ctx, d.downloadDir, since, timeout, downloadPollInterval)
}

func (d *ChromeDriver) ReadDownloadedFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Close shuts the browser down and removes the session's download
// directory when the driver created it.
func (d *ChromeDriver) Close() error {
	d.cancel()
	if d.ownsDir {
		return os.RemoveAll(d.downloadDir)
	}
	return nil
}
