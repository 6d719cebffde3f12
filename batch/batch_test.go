package batch

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idc-renew/auth"
	"idc-renew/config"
)

type fakeRunner struct {
	// failures lists the emails that should produce a failed outcome
	failures map[string]string
	ran      []string
}

func (r *fakeRunner) Run(ctx context.Context, account config.Account) auth.Outcome {
	r.ran = append(r.ran, account.Email)
	if msg, ok := r.failures[account.Email]; ok {
		return auth.Outcome{Email: account.Email, Message: msg}
	}
	return auth.Outcome{Email: account.Email, Success: true, Message: "authenticated"}
}

type fakeNotifier struct {
	sent []string
}

func (n *fakeNotifier) Send(text string) { n.sent = append(n.sent, text) }

type fakeHistory struct {
	records []string
}

func (h *fakeHistory) SaveOutcome(email string, success bool, message string, duration time.Duration) error {
	h.records = append(h.records, email)
	return nil
}

func testOrchestrator(runner Runner, notifier Notifier, history History) *Orchestrator {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	o := New(runner, notifier, history, time.Millisecond, logger)
	o.sleep = func(time.Duration) {}
	return o
}

func accounts(emails ...string) []config.Account {
	var out []config.Account
	for _, email := range emails {
		out = append(out, config.Account{Email: email, Password: "pw"})
	}
	return out
}

func TestEmptyBatchIsFatal(t *testing.T) {
	runner := &fakeRunner{}
	o := testOrchestrator(runner, nil, nil)

	_, err := o.Run(context.Background(), nil)

	assert.ErrorIs(t, err, ErrNoAccounts)
	assert.Empty(t, runner.ran, "no account may be processed on an empty batch")
}

func TestAccountsProcessedInInputOrder(t *testing.T) {
	runner := &fakeRunner{}
	o := testOrchestrator(runner, nil, nil)

	result, err := o.Run(context.Background(), accounts("a@x.com", "b@x.com", "c@x.com"))

	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, runner.ran)
	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, "a@x.com", result.Outcomes[0].Email)
	assert.Equal(t, "c@x.com", result.Outcomes[2].Email)
}

func TestFailureDoesNotBlockLaterAccounts(t *testing.T) {
	runner := &fakeRunner{failures: map[string]string{"a@x.com": "challenge timed out"}}
	o := testOrchestrator(runner, nil, nil)

	result, err := o.Run(context.Background(), accounts("a@x.com", "b@x.com"))

	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, runner.ran)
	assert.Equal(t, 1, result.Succeeded())
	assert.Equal(t, 1, result.Failed())
	assert.False(t, result.AllSuccessful())
}

func TestPauseOnlyBetweenAccounts(t *testing.T) {
	runner := &fakeRunner{}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	o := New(runner, nil, nil, 5*time.Second, logger)

	pauses := 0
	o.sleep = func(d time.Duration) {
		pauses++
		assert.Equal(t, 5*time.Second, d)
	}

	_, err := o.Run(context.Background(), accounts("a@x.com", "b@x.com", "c@x.com"))

	require.NoError(t, err)
	assert.Equal(t, 2, pauses, "no pause after the final account")
}

func TestSummaryDelivered(t *testing.T) {
	runner := &fakeRunner{failures: map[string]string{"b@x.com": "login not confirmed after submission"}}
	notifier := &fakeNotifier{}
	o := testOrchestrator(runner, notifier, nil)

	_, err := o.Run(context.Background(), accounts("a@x.com", "b@x.com"))

	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	report := notifier.sent[0]
	assert.Contains(t, report, "Login run report")
	assert.Contains(t, report, "OK a@x.com")
	assert.Contains(t, report, "FAIL b@x.com (login not confirmed after submission)")
	assert.Contains(t, report, "Succeeded: 1, Failed: 1")
}

func TestOutcomesRecordedInHistory(t *testing.T) {
	runner := &fakeRunner{}
	history := &fakeHistory{}
	o := testOrchestrator(runner, nil, history)

	_, err := o.Run(context.Background(), accounts("a@x.com", "b@x.com"))

	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, history.records)
}

func TestNilHistoryIsTolerated(t *testing.T) {
	runner := &fakeRunner{}
	o := testOrchestrator(runner, nil, nil)

	result, err := o.Run(context.Background(), accounts("a@x.com"))

	require.NoError(t, err)
	assert.True(t, result.AllSuccessful())
}

func TestSummaryFormat(t *testing.T) {
	result := Result{Outcomes: []auth.Outcome{
		{Email: "a@x.com", Success: true, Message: "authenticated"},
		{Email: "b@x.com", Message: "browser launch failed"},
	}}

	report := Summary(result)

	assert.Equal(t, "Login run report\nOK a@x.com\nFAIL b@x.com (browser launch failed)\nSucceeded: 1, Failed: 1", report)
}
