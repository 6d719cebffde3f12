// Package twofactor completes the second-factor step after credential
// submission. All of its failures are terminal for the account's run; nothing
// here is retried beyond the single fresh-code wait inside the oracle client.
package twofactor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"idc-renew/browser"
)

var (
	// ErrSecretMissing means the site demanded a second factor but the
	// account has no enrolled secret
	ErrSecretMissing = errors.New("two-factor required but account has no secret enrolled")

	// ErrNoInputField means no known code input surface was found on the page
	ErrNoInputField = errors.New("no two-factor input surface found")

	// ErrWrongCode means the submitted code was rejected
	ErrWrongCode = errors.New("two-factor code rejected")
)

// urlMarkers identify a second-factor prompt by URL fragment
var urlMarkers = []string{
	"twofactor",
	"two-factor",
	"2fa",
}

// textMarkers identify a second-factor prompt by visible page text
var textMarkers = []string{
	"Two-Factor Authentication",
	"Authenticator Code",
	"Security Code",
}

// rejectedMarkers identify an incorrect-code redirect by URL fragment
var rejectedMarkers = []string{
	"incorrect2fa",
	"incorrect=true",
}

// codeLocators are selector candidates for the code input, in priority order
var codeLocators = browser.Locators{
	`input[name="code"]`,
	`input[name="twoFactorCode"]`,
	`input[name="totp"]`,
	`input#totp`,
	`input[autocomplete="one-time-code"]`,
}

// submitLocators are selector candidates for the submit control
var submitLocators = browser.Locators{
	`input[type="submit"]`,
	`button[type="submit"]`,
}

// CodeSource supplies a fresh one-time code for a shared secret
type CodeSource interface {
	FreshCode(ctx context.Context, secret string) (string, error)
}

// Handler detects and completes a second-factor prompt
type Handler struct {
	codes  CodeSource
	settle time.Duration
	logger *logrus.Logger
	sleep  func(time.Duration)
}

// NewHandler creates a second-factor handler
func NewHandler(codes CodeSource, settle time.Duration, logger *logrus.Logger) *Handler {
	return &Handler{
		codes:  codes,
		settle: settle,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// Complete runs the second-factor sequence against the current page. Returns
// nil when no second factor is required or the code was accepted; any error
// is terminal for the account.
func (h *Handler) Complete(ctx context.Context, page browser.Page, secret string) error {
	if !Required(page) {
		h.logger.Debug("No second-factor prompt detected")
		return nil
	}

	h.logger.Info("Second-factor prompt detected")

	if secret == "" {
		return ErrSecretMissing
	}

	code, err := h.codes.FreshCode(ctx, secret)
	if err != nil {
		return fmt.Errorf("failed to acquire two-factor code: %w", err)
	}

	field, ok := codeLocators.First(page)
	if !ok {
		return ErrNoInputField
	}

	if err := field.Input(code); err != nil {
		return fmt.Errorf("failed to fill two-factor code: %w", err)
	}

	if submit, ok := submitLocators.First(page); ok {
		if err := submit.Click(); err != nil {
			return fmt.Errorf("failed to submit two-factor code: %w", err)
		}
	}

	h.sleep(h.settle)

	if Rejected(page.URL()) {
		return ErrWrongCode
	}

	h.logger.Info("Second-factor code accepted")
	return nil
}

// Required reports whether the current page is a second-factor prompt
func Required(page browser.Page) bool {
	url := strings.ToLower(page.URL())
	for _, marker := range urlMarkers {
		if strings.Contains(url, marker) {
			return true
		}
	}

	for _, marker := range textMarkers {
		if page.HasText(marker) {
			return true
		}
	}

	return false
}

// Rejected reports whether a URL signals an incorrect-code state
func Rejected(url string) bool {
	lowered := strings.ToLower(url)
	for _, marker := range rejectedMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
