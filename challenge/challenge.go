// Package challenge drives the anti-bot surfaces in front of the login page:
// the full-page interstitial and the embedded verification widget. Both are
// designed to resist programmatic DOM interaction, so the resolver relies on
// geometric pointer input and confirms success only through independently
// observable signals (page title, hidden token field).
package challenge

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"idc-renew/browser"
	"idc-renew/config"
)

// Outcome is the tri-state result of a challenge stage
type Outcome int

const (
	Unresolved Outcome = iota
	Resolved
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	case TimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Solver is a pluggable challenge-solving strategy. Implementations must be
// best-effort: a TimedOut outcome means the caller proceeds anyway and may
// fail later at verification.
type Solver interface {
	Attempt(page browser.Page) Outcome
}

// interstitialTitles are title fragments that identify the transitional
// anti-bot page
var interstitialTitles = []string{
	"Just a moment",
	"Checking your browser",
	"Attention Required",
}

// widgetLocators are selector candidates for the embedded challenge widget
var widgetLocators = browser.Locators{
	"div.cf-turnstile",
	"#cf-turnstile",
	`iframe[src*="challenges.cloudflare.com"]`,
	`iframe[src*="turnstile"]`,
}

const tokenScript = `() => {
	const input = document.querySelector('input[name="cf-turnstile-response"]');
	return input ? input.value : '';
}`

// PointerSolver resolves both challenge stages with simulated pointer input
// at fixed or geometrically estimated coordinates.
type PointerSolver struct {
	cfg    config.ChallengeConfig
	logger *logrus.Logger
}

// NewPointerSolver creates a solver tuned by the challenge configuration
func NewPointerSolver(cfg config.ChallengeConfig, logger *logrus.Logger) *PointerSolver {
	return &PointerSolver{cfg: cfg, logger: logger}
}

// Attempt drives the page past the interstitial and the embedded widget.
// Returns Resolved only when both stages confirmed success; TimedOut
// otherwise. Never fatal to the caller.
func (s *PointerSolver) Attempt(page browser.Page) Outcome {
	interstitial := s.passInterstitial(page)
	widget := s.solveWidget(page)

	if interstitial == Resolved && widget == Resolved {
		return Resolved
	}
	return TimedOut
}

// passInterstitial polls the page title and clicks a fixed coordinate inside
// the interstitial's interactive region until the title no longer identifies
// the interstitial or attempts run out.
func (s *PointerSolver) passInterstitial(page browser.Page) Outcome {
	for attempt := 0; attempt < s.cfg.InterstitialAttempts; attempt++ {
		title := page.Title()
		if !IsInterstitialTitle(title) {
			if attempt > 0 {
				s.logger.WithField("attempts", attempt).Info("Interstitial cleared")
			}
			return Resolved
		}

		s.logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"title":   title,
		}).Debug("Interstitial still active, clicking")

		if err := page.Click(s.cfg.InterstitialX, s.cfg.InterstitialY); err != nil {
			s.logger.WithError(err).Debug("Interstitial click failed")
		}

		time.Sleep(s.cfg.InterstitialInterval)
	}

	s.logger.Warn("Interstitial not cleared within budget, proceeding anyway")
	return TimedOut
}

// solveWidget locates the embedded widget, clicks a point estimated from its
// bounding box, then polls the hidden verification token until it is
// populated. An absent widget satisfies the stage trivially.
func (s *PointerSolver) solveWidget(page browser.Page) Outcome {
	widget, ok := widgetLocators.First(page)
	if !ok {
		s.logger.Debug("No challenge widget on page")
		return Resolved
	}

	box, err := widget.Box()
	if err != nil {
		s.logger.WithError(err).Warn("Cannot measure challenge widget")
		return TimedOut
	}

	// The widget's checkbox is not addressable through the DOM, estimate its
	// position from the bounding box plus a fixed offset
	x := box.X + s.cfg.WidgetOffsetX
	y := box.Y + s.cfg.WidgetOffsetY

	s.logger.WithFields(logrus.Fields{
		"x": x,
		"y": y,
	}).Info("Clicking challenge widget")

	if err := page.Click(x, y); err != nil {
		s.logger.WithError(err).Warn("Widget click failed")
	}

	for attempt := 0; attempt < s.cfg.TokenAttempts; attempt++ {
		token, err := page.Eval(tokenScript)
		if err == nil && len(token) > s.cfg.MinTokenLength {
			s.logger.WithField("attempts", attempt+1).Info("Challenge widget verified")
			return Resolved
		}

		time.Sleep(s.cfg.TokenInterval)
	}

	s.logger.Warn("Challenge token not populated within budget, proceeding anyway")
	return TimedOut
}

// IsInterstitialTitle reports whether a page title identifies the anti-bot
// interstitial
func IsInterstitialTitle(title string) bool {
	for _, marker := range interstitialTitles {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}
