package browser

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/sirupsen/logrus"

	"idc-renew/config"
)

// Cookie is an engine-neutral cookie entry, the unit of persisted session
// state.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

// Rect is an element bounding box in page coordinates.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Page is the capability set the login flow needs from a rendering engine:
// navigation, URL/title/text inspection, script evaluation, cookie access,
// element lookup, and low-level pointer input. Everything above this
// interface is engine-independent.
type Page interface {
	Navigate(url string) error
	URL() string
	Title() string
	HasText(text string) bool
	Eval(js string) (string, error)
	Element(selector string) (Element, bool)
	Click(x, y float64) error
	Cookies() ([]Cookie, error)
	SetCookies(cookies []Cookie) error
	Close() error
}

// Element is a located DOM element
type Element interface {
	Input(text string) error
	Click() error
	Box() (Rect, error)
}

// Engine owns a browser process and hands out pages. One engine is acquired
// per account and released when the account's run ends.
type Engine interface {
	NewPage() (Page, error)
	Close() error
}

// Locators is an ordered list of selector candidates with first-match
// semantics, shared between the credential and second-factor stages.
type Locators []string

// First returns the first element matched by any selector in priority order.
func (l Locators) First(page Page) (Element, bool) {
	for _, selector := range l {
		if el, ok := page.Element(selector); ok {
			return el, true
		}
	}
	return nil, false
}

// Browser wraps a launched rod browser process
type Browser struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
	logger  *logrus.Logger
	rng     *rand.Rand
}

// New launches a browser process and connects to it
func New(cfg config.BrowserConfig, logger *logrus.Logger) (*Browser, error) {
	logger.Info("Launching browser")

	l := launcher.New().
		Leakless(false).
		Headless(cfg.Headless).
		Set("user-agent", cfg.UserAgent).
		Set("no-sandbox", "true").
		Set("disable-setuid-sandbox", "true").
		Set("disable-dev-shm-usage", "true").
		Set("no-first-run", "true").
		Set("no-default-browser-check", "true").
		Set("disable-sync", "true").
		Set("disable-extensions", "true")

	// Unique user data directory per launch to keep accounts isolated from
	// each other and from any already-running browser
	timestamp := time.Now().Format("20060102-150405.000")
	userDataDir := filepath.Join(cfg.DataDir, fmt.Sprintf("browser-data-%s", timestamp))
	if err := os.MkdirAll(userDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create user data directory: %w", err)
	}
	l = l.Set("user-data-dir", userDataDir)

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(url)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logger.Info("Browser launched successfully")
	return &Browser{
		browser: b,
		cfg:     cfg,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// NewPage opens a fresh page in this browser
func (b *Browser) NewPage() (Page, error) {
	page, err := b.browser.Page(pageTarget())
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	navTimeout := b.cfg.NavTimeout
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}

	return &rodPage{
		page:       page,
		navTimeout: navTimeout,
		logger:     b.logger,
		rng:        b.rng,
	}, nil
}

// Close shuts down the browser process
func (b *Browser) Close() error {
	if b.browser != nil {
		return b.browser.Close()
	}
	return nil
}
