// Package auth holds the login state machine: the retry-bounded sequence
// that takes a fresh browser context from "unauthenticated, possibly
// challenged" to "confirmed authenticated" for a single account.
//
// States: Init -> SessionCheck -> Challenge -> FormSubmit -> TwoFactor ->
// Verify -> {Success, Failure}. Each step is validated by an independent
// success signal and never assumed from the action alone.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"idc-renew/browser"
	"idc-renew/challenge"
	"idc-renew/config"
	"idc-renew/session"
)

// Outcome is the per-account login result
type Outcome struct {
	Email   string
	Success bool
	Message string
}

// LaunchFunc acquires a fresh isolated browser context for one account
type LaunchFunc func() (browser.Engine, error)

// SecondFactor completes a second-factor prompt when one is present
type SecondFactor interface {
	Complete(ctx context.Context, page browser.Page, secret string) error
}

// authenticatedURLFragments identify the authenticated area by URL. The
// logout affordance check in Authenticated covers pages these fragments miss.
var authenticatedURLFragments = []string{
	"clientarea.php",
	"dashboard",
}

var usernameLocators = browser.Locators{
	`input[name="username"]`,
	`input#inputEmail`,
	`input[type="email"]`,
}

var passwordLocators = browser.Locators{
	`input[name="password"]`,
	`input#inputPassword`,
	`input[type="password"]`,
}

var submitLocators = browser.Locators{
	`input[type="submit"]`,
	`button[type="submit"]`,
}

// Machine runs the login sequence for one account at a time
type Machine struct {
	cfg    *config.Config
	store  *session.Store
	solver challenge.Solver
	second SecondFactor
	launch LaunchFunc
	logger *logrus.Logger
	sleep  func(time.Duration)
}

// NewMachine creates a login state machine
func NewMachine(cfg *config.Config, store *session.Store, solver challenge.Solver, second SecondFactor, launch LaunchFunc, logger *logrus.Logger) *Machine {
	return &Machine{
		cfg:    cfg,
		store:  store,
		solver: solver,
		second: second,
		launch: launch,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// Run executes the full login sequence for an account. The browser context
// is acquired here and released on every exit path. Run never panics and
// never returns an error; every failure becomes a failure outcome so one
// account cannot abort the batch.
func (m *Machine) Run(ctx context.Context, account config.Account) Outcome {
	log := m.logger.WithField("account", account.Email)
	log.Info("Starting login")

	engine, err := m.launch()
	if err != nil {
		log.WithError(err).Error("Failed to acquire browser context")
		return Outcome{Email: account.Email, Message: fmt.Sprintf("browser launch failed: %v", err)}
	}
	defer engine.Close()

	return m.runStates(ctx, engine, account, log)
}

func (m *Machine) runStates(ctx context.Context, engine browser.Engine, account config.Account, log *logrus.Entry) (outcome Outcome) {
	// Any uncaught fault while driving the browser is converted to a failure
	// outcome at this boundary
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Unexpected fault during login")
			outcome = Outcome{Email: account.Email, Message: fmt.Sprintf("unexpected fault: %v", r)}
		}
	}()

	page, err := engine.NewPage()
	if err != nil {
		log.WithError(err).Error("Failed to open page")
		return Outcome{Email: account.Email, Message: fmt.Sprintf("page open failed: %v", err)}
	}

	// Init: attach any stored session cookies before the first navigation
	if cookies, ok := m.store.Load(account.Email); ok {
		if err := page.SetCookies(cookies); err != nil {
			log.WithError(err).Warn("Failed to attach saved session, logging in fresh")
		} else {
			log.Info("Attached saved session")
		}
	}

	// SessionCheck
	log.WithField("url", m.cfg.Target.LoginURL).Info("Navigating to login page")
	if err := page.Navigate(m.cfg.Target.LoginURL); err != nil {
		log.WithError(err).Error("Navigation failed")
		return Outcome{Email: account.Email, Message: fmt.Sprintf("navigation failed: %v", err)}
	}

	if Authenticated(page) {
		log.Info("Saved session still valid, skipping credential submission")
		return m.verify(page, account, log)
	}

	// Challenge: best effort, proceed regardless of outcome
	result := m.solver.Attempt(page)
	log.WithField("outcome", result.String()).Info("Challenge stage finished")

	// FormSubmit
	if err := m.submitCredentials(page, account, log); err != nil {
		log.WithError(err).Error("Credential submission failed")
		return Outcome{Email: account.Email, Message: err.Error()}
	}

	// TwoFactor: its failure is terminal for this account
	if err := m.second.Complete(ctx, page, account.TOTPSecret); err != nil {
		log.WithError(err).Error("Second factor failed")
		return Outcome{Email: account.Email, Message: err.Error()}
	}

	// Verify
	if !Authenticated(page) {
		log.WithField("url", page.URL()).Error("Login not confirmed")
		return Outcome{Email: account.Email, Message: "login not confirmed after submission"}
	}

	return m.verify(page, account, log)
}

// verify persists the session and holds the context open for the configured
// stay duration before release
func (m *Machine) verify(page browser.Page, account config.Account, log *logrus.Entry) Outcome {
	cookies, err := page.Cookies()
	if err != nil {
		log.WithError(err).Warn("Failed to read cookies, session not saved")
	} else if err := m.store.Save(account.Email, cookies); err != nil {
		log.WithError(err).Warn("Failed to save session")
	}

	if m.cfg.Run.StayDuration > 0 {
		log.WithField("duration", m.cfg.Run.StayDuration).Info("Staying on authenticated page")
		m.sleep(m.cfg.Run.StayDuration)
	}

	log.Info("Login successful")
	return Outcome{Email: account.Email, Success: true, Message: "authenticated"}
}

func (m *Machine) submitCredentials(page browser.Page, account config.Account, log *logrus.Entry) error {
	log.Info("Filling login form")

	username, ok := usernameLocators.First(page)
	if !ok {
		return fmt.Errorf("username field not found")
	}
	if err := username.Input(account.Email); err != nil {
		return fmt.Errorf("failed to fill username: %w", err)
	}

	password, ok := passwordLocators.First(page)
	if !ok {
		return fmt.Errorf("password field not found")
	}
	if err := password.Input(account.Password); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}

	submit, ok := submitLocators.First(page)
	if !ok {
		return fmt.Errorf("submit control not found")
	}
	if err := submit.Click(); err != nil {
		return fmt.Errorf("failed to click submit: %w", err)
	}

	m.sleep(m.cfg.Run.SettleDelay)
	return nil
}

// Authenticated is the single authenticated-state predicate used by both
// SessionCheck and Verify: an authenticated-area URL fragment, or the
// presence of a logout affordance in the page text.
func Authenticated(page browser.Page) bool {
	url := strings.ToLower(page.URL())
	for _, fragment := range authenticatedURLFragments {
		if strings.Contains(url, fragment) {
			return true
		}
	}
	return page.HasText("Logout")
}
