// Package totp fetches time-based one-time passwords from a remote code
// oracle. Code generation itself is delegated entirely to the oracle.
package totp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"idc-renew/config"
)

// Code is the oracle's response: the current code and how long it remains
// valid.
type Code struct {
	Code             string `json:"code"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// Client talks to the TOTP oracle over HTTP
type Client struct {
	baseURL string
	margin  time.Duration
	client  *http.Client
	logger  *logrus.Logger
	sleep   func(time.Duration)
}

// NewClient creates a TOTP oracle client
func NewClient(cfg config.TOTPConfig, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: cfg.APIURL,
		margin:  cfg.Margin,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// Fetch requests the current code for a secret
func (c *Client) Fetch(ctx context.Context, secret string) (Code, error) {
	if c.baseURL == "" {
		return Code{}, fmt.Errorf("totp oracle URL is not configured")
	}
	if secret == "" {
		return Code{}, fmt.Errorf("totp secret is empty")
	}

	url := fmt.Sprintf("%s/totp/%s", c.baseURL, secret)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Code{}, fmt.Errorf("failed to build totp request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Code{}, fmt.Errorf("totp oracle unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Code{}, fmt.Errorf("totp oracle returned status %d", resp.StatusCode)
	}

	var code Code
	if err := json.NewDecoder(resp.Body).Decode(&code); err != nil {
		return Code{}, fmt.Errorf("failed to decode totp response: %w", err)
	}

	if code.Code == "" {
		return Code{}, fmt.Errorf("totp oracle returned an empty code")
	}

	return code, nil
}

// FreshCode returns a code guaranteed to have at least the configured safety
// margin of validity left. When the current window is about to roll over it
// waits it out and fetches again, so a code never expires mid-submission.
func (c *Client) FreshCode(ctx context.Context, secret string) (string, error) {
	code, err := c.Fetch(ctx, secret)
	if err != nil {
		return "", err
	}

	remaining := time.Duration(code.RemainingSeconds) * time.Second
	if remaining < c.margin {
		wait := remaining + time.Second
		c.logger.WithFields(logrus.Fields{
			"remaining": remaining,
			"wait":      wait,
		}).Info("TOTP window too short, waiting for rollover")

		c.sleep(wait)

		code, err = c.Fetch(ctx, secret)
		if err != nil {
			return "", err
		}
	}

	return code.Code, nil
}
