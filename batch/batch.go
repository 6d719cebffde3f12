// Package batch runs the login state machine across all configured accounts,
// strictly sequentially, and reports the aggregate result.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"idc-renew/auth"
	"idc-renew/config"
)

// ErrNoAccounts is fatal to the whole run and raised before any browser
// activity
var ErrNoAccounts = errors.New("no valid accounts configured")

// Runner executes the login sequence for one account
type Runner interface {
	Run(ctx context.Context, account config.Account) auth.Outcome
}

// Notifier delivers the run report, best effort
type Notifier interface {
	Send(text string)
}

// History records per-account outcomes for later inspection
type History interface {
	SaveOutcome(email string, success bool, message string, duration time.Duration) error
}

// Result is the ordered set of per-account outcomes for one run
type Result struct {
	Outcomes []auth.Outcome
}

// Succeeded returns the number of successful accounts
func (r Result) Succeeded() int {
	count := 0
	for _, o := range r.Outcomes {
		if o.Success {
			count++
		}
	}
	return count
}

// Failed returns the number of failed accounts
func (r Result) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// AllSuccessful reports whether every account authenticated
func (r Result) AllSuccessful() bool {
	return r.Failed() == 0
}

// Orchestrator iterates accounts in input order, isolating each one:
// a failure in one account never blocks the accounts after it.
type Orchestrator struct {
	runner   Runner
	notifier Notifier
	history  History
	pause    time.Duration
	logger   *logrus.Logger
	sleep    func(time.Duration)
}

// New creates a batch orchestrator. history may be nil when run recording is
// unavailable.
func New(runner Runner, notifier Notifier, history History, pause time.Duration, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		runner:   runner,
		notifier: notifier,
		history:  history,
		pause:    pause,
		logger:   logger,
		sleep:    time.Sleep,
	}
}

// Run processes every account sequentially and delivers the summary report.
// The returned result holds exactly one outcome per account, in input order.
func (o *Orchestrator) Run(ctx context.Context, accounts []config.Account) (Result, error) {
	if len(accounts) == 0 {
		return Result{}, ErrNoAccounts
	}

	o.logger.WithField("accounts", len(accounts)).Info("Starting batch run")

	var result Result
	for i, account := range accounts {
		o.logger.WithFields(logrus.Fields{
			"account":  account.Email,
			"progress": fmt.Sprintf("%d/%d", i+1, len(accounts)),
		}).Info("Processing account")

		start := time.Now()
		outcome := o.runner.Run(ctx, account)
		elapsed := time.Since(start)

		result.Outcomes = append(result.Outcomes, outcome)

		if o.history != nil {
			if err := o.history.SaveOutcome(outcome.Email, outcome.Success, outcome.Message, elapsed); err != nil {
				o.logger.WithError(err).Warn("Failed to record outcome")
			}
		}

		if i < len(accounts)-1 {
			o.logger.WithField("pause", o.pause).Info("Waiting before next account")
			o.sleep(o.pause)
		}
	}

	summary := Summary(result)
	o.logger.WithFields(logrus.Fields{
		"succeeded": result.Succeeded(),
		"failed":    result.Failed(),
	}).Info("Batch run finished")

	if o.notifier != nil {
		o.notifier.Send(summary)
	}

	return result, nil
}

// Summary renders the human-readable run report: one status line per account
// plus an overall tally.
func Summary(result Result) string {
	var b strings.Builder
	b.WriteString("Login run report\n")

	for _, outcome := range result.Outcomes {
		status := "FAIL"
		if outcome.Success {
			status = "OK"
		}
		fmt.Fprintf(&b, "%s %s", status, outcome.Email)
		if !outcome.Success && outcome.Message != "" {
			fmt.Fprintf(&b, " (%s)", outcome.Message)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Succeeded: %d, Failed: %d", result.Succeeded(), result.Failed())
	return b.String()
}
