// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"time"
)

// ErrElementNotFound is returned by Driver.WaitForElement when the locator
// matched nothing before the timeout.
var ErrElementNotFound = errors.New("element not found")

// LocatorKind selects how a Locator's query is interpreted.
type LocatorKind int

const (
	ByXPath LocatorKind = iota
	ByCSS
)

// Locator identifies an element on a rendered page.
type Locator struct {
	Name  string
	Kind  LocatorKind
	Query string
}

// Strategy is an ordered sequence of clicks that should end in a download,
// e.g. opening a "Download" menu and then picking "Download PDF".
type Strategy struct {
	Name  string
	Steps []Locator
}

// Element is a located, clickable page element. The handle is only valid
// for the Driver that returned it.
type Element struct {
	Locator Locator
	handle  any
}

// NewElement wraps a driver-specific handle. Driver implementations outside
// this package use it to return elements.
func NewElement(loc Locator, handle any) Element {
	return Element{Locator: loc, handle: handle}
}

// Handle returns the driver-specific handle.
func (e Element) Handle() any { return e.handle }

// Driver is the subset of browser automation the downloader consumes.
// A Driver is a single stateful session and must not be shared between
// concurrent downloads.
type Driver interface {
	// Navigate opens url and waits for the page load event.
	Navigate(ctx context.Context, url string) error

	// CurrentURL returns the URL of the page after redirects.
	CurrentURL(ctx context.Context) (string, error)

	// WaitForElement polls until loc matches a visible element or timeout
	// elapses, returning ErrElementNotFound in the latter case.
	WaitForElement(ctx context.Context, loc Locator, timeout time.Duration) (Element, error)

	// Click clicks a previously located element.
	Click(ctx context.Context, el Element) error

	// WaitForDownload waits for a download started at or after since to
	// complete and returns the path of the finished file.
	WaitForDownload(ctx context.Context, since time.Time, timeout time.Duration) (string, error)

	// ReadDownloadedFile returns the contents of a finished download.
	ReadDownloadedFile(path string) ([]byte, error)

	// Close ends the session and releases the browser.
	Close() error
}

// DriverFactory opens a new browser session.
type DriverFactory func(ctx context.Context) (Driver, error)

// DefaultStrategies are tried in order on each landing page. The first
// opens a "Download" menu before picking the PDF entry; the rest click a
// single PDF affordance.
var DefaultStrategies = []Strategy{
	{
		Name: "download-menu",
		Steps: []Locator{
			{Name: "download menu", Kind: ByXPath, Query: `//button[contains(text(), 'Download')]`},
			{Name: "menu pdf entry", Kind: ByXPath, Query: `//a[contains(text(), 'Download PDF')]`},
		},
	},
	{Name: "pdf-button", Steps: []Locator{{Name: "pdf button", Kind: ByXPath, Query: `//button[contains(text(), 'Download PDF')]`}}},
	{Name: "pdf-link", Steps: []Locator{{Name: "pdf link", Kind: ByXPath, Query: `//a[contains(text(), 'Download PDF')]`}}},
	{Name: "download-class", Steps: []Locator{{Name: "download class", Kind: ByXPath, Query: `//button[contains(@class, 'download')]//span[contains(text(), 'PDF')]`}}},
	{Name: "open-dropdown", Steps: []Locator{{Name: "open dropdown", Kind: ByXPath, Query: `//div[@class='dropdown-menu show']//a[contains(text(), 'Download PDF')]`}}},
	{Name: "download-id", Steps: []Locator{{Name: "download id", Kind: ByCSS, Query: `#download-button`}}},
	{Name: "pdf-href", Steps: []Locator{{Name: "pdf href", Kind: ByCSS, Query: `a[href$=".pdf"], a[href$="/pdf"]`}}},
}

// PublisherRule derives a direct PDF URL from a landing page on a known
// host by appending a suffix.
type PublisherRule struct {
	Host   string
	Suffix string
}

// DefaultPublisherRules covers hosts whose landing page plus "/pdf" serves
// the article PDF.
var DefaultPublisherRules = []PublisherRule{
	{Host: "mdpi.com", Suffix: "/pdf"},
}
