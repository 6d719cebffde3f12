// Package notify delivers run reports to an outbound messaging sink.
// Delivery is strictly best-effort: a run never fails because a
// notification could not be sent.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"idc-renew/config"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram sends messages through the Telegram bot API
type Telegram struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
	logger   *logrus.Logger
}

// NewTelegram creates a Telegram notifier. With an empty token or chat id
// the notifier is disabled and Send becomes a no-op.
func NewTelegram(cfg config.TelegramConfig, logger *logrus.Logger) *Telegram {
	return &Telegram{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// Enabled reports whether the notifier is configured for delivery
func (t *Telegram) Enabled() bool {
	return t.botToken != "" && t.chatID != ""
}

// Send delivers a message. Failures are logged and swallowed.
func (t *Telegram) Send(text string) {
	if !t.Enabled() {
		return
	}

	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		t.logger.WithError(err).Warn("Failed to encode notification")
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.logger.WithError(err).Warn("Failed to deliver notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.WithField("status", resp.StatusCode).Warn("Notification rejected")
		return
	}

	t.logger.Debug("Notification delivered")
}
