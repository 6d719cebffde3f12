package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Accounts  string          `yaml:"accounts"`
	Target    TargetConfig    `yaml:"target"`
	Browser   BrowserConfig   `yaml:"browser"`
	Challenge ChallengeConfig `yaml:"challenge"`
	TOTP      TOTPConfig      `yaml:"totp"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Run       RunConfig       `yaml:"run"`
	Session   SessionConfig   `yaml:"session"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Account holds one set of login credentials. TOTPSecret is empty for
// accounts without a second factor enrolled.
type Account struct {
	Email      string
	Password   string
	TOTPSecret string
}

// TargetConfig contains the endpoints of the site being renewed
type TargetConfig struct {
	LoginURL     string `yaml:"login_url"`
	DashboardURL string `yaml:"dashboard_url"`
}

// BrowserConfig contains browser automation settings
type BrowserConfig struct {
	Headless       bool          `yaml:"headless"`
	UserAgent      string        `yaml:"user_agent"`
	ViewportWidth  int           `yaml:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height"`
	DataDir        string        `yaml:"data_dir"`
	NavTimeout     time.Duration `yaml:"nav_timeout"`
}

// ChallengeConfig tunes the anti-bot challenge resolver
type ChallengeConfig struct {
	InterstitialX        float64       `yaml:"interstitial_x"`
	InterstitialY        float64       `yaml:"interstitial_y"`
	InterstitialAttempts int           `yaml:"interstitial_attempts"`
	InterstitialInterval time.Duration `yaml:"interstitial_interval"`
	WidgetOffsetX        float64       `yaml:"widget_offset_x"`
	WidgetOffsetY        float64       `yaml:"widget_offset_y"`
	TokenAttempts        int           `yaml:"token_attempts"`
	TokenInterval        time.Duration `yaml:"token_interval"`
	MinTokenLength       int           `yaml:"min_token_length"`
}

// TOTPConfig contains settings for the remote TOTP code oracle
type TOTPConfig struct {
	APIURL  string        `yaml:"api_url"`
	Margin  time.Duration `yaml:"margin"`
	Timeout time.Duration `yaml:"timeout"`
}

// TelegramConfig contains the notification sink credentials
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// RunConfig contains per-run timing settings
type RunConfig struct {
	StayDuration time.Duration `yaml:"stay_duration"`
	AccountPause time.Duration `yaml:"account_pause"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
}

// SessionConfig contains session persistence settings
type SessionConfig struct {
	Dir string `yaml:"dir"`
}

// StorageConfig contains run-history database settings
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvPrefix("IDC")

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine, env vars and defaults still apply
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	overrideFromEnv(v)

	// Underscored keys do not unmarshal into field names reliably, build the
	// config from explicit reads instead
	config := Config{
		Accounts: v.GetString("accounts"),
		Target: TargetConfig{
			LoginURL:     v.GetString("target.login_url"),
			DashboardURL: v.GetString("target.dashboard_url"),
		},
		Browser: BrowserConfig{
			Headless:       v.GetBool("browser.headless"),
			UserAgent:      v.GetString("browser.user_agent"),
			ViewportWidth:  v.GetInt("browser.viewport_width"),
			ViewportHeight: v.GetInt("browser.viewport_height"),
			DataDir:        v.GetString("browser.data_dir"),
			NavTimeout:     v.GetDuration("browser.nav_timeout"),
		},
		Challenge: ChallengeConfig{
			InterstitialX:        v.GetFloat64("challenge.interstitial_x"),
			InterstitialY:        v.GetFloat64("challenge.interstitial_y"),
			InterstitialAttempts: v.GetInt("challenge.interstitial_attempts"),
			InterstitialInterval: v.GetDuration("challenge.interstitial_interval"),
			WidgetOffsetX:        v.GetFloat64("challenge.widget_offset_x"),
			WidgetOffsetY:        v.GetFloat64("challenge.widget_offset_y"),
			TokenAttempts:        v.GetInt("challenge.token_attempts"),
			TokenInterval:        v.GetDuration("challenge.token_interval"),
			MinTokenLength:       v.GetInt("challenge.min_token_length"),
		},
		TOTP: TOTPConfig{
			APIURL:  v.GetString("totp.api_url"),
			Margin:  v.GetDuration("totp.margin"),
			Timeout: v.GetDuration("totp.timeout"),
		},
		Telegram: TelegramConfig{
			BotToken: v.GetString("telegram.bot_token"),
			ChatID:   v.GetString("telegram.chat_id"),
		},
		Run: RunConfig{
			StayDuration: v.GetDuration("run.stay_duration"),
			AccountPause: v.GetDuration("run.account_pause"),
			SettleDelay:  v.GetDuration("run.settle_delay"),
		},
		Session: SessionConfig{
			Dir: v.GetString("session.dir"),
		},
		Storage: StorageConfig{
			Path: v.GetString("storage.path"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
			Output: v.GetString("logging.output"),
		},
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// ParseAccounts parses the accounts string in the form
// "email:password:totp_secret,email:password" (totp secret optional).
// Malformed entries are skipped rather than failing the batch.
func ParseAccounts(accountsStr string) []Account {
	var accounts []Account
	if accountsStr == "" {
		return accounts
	}

	for _, item := range strings.Split(accountsStr, ",") {
		item = strings.TrimSpace(item)
		parts := strings.Split(item, ":")
		if len(parts) < 2 {
			continue
		}

		email := strings.TrimSpace(parts[0])
		password := strings.TrimSpace(parts[1])
		if email == "" || password == "" {
			continue
		}

		account := Account{Email: email, Password: password}
		if len(parts) >= 3 {
			account.TOTPSecret = strings.TrimSpace(parts[2])
		}
		accounts = append(accounts, account)
	}

	return accounts
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("target.login_url", "https://56idc.net/login")
	v.SetDefault("target.dashboard_url", "https://56idc.net/clientarea.php")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.data_dir", "./sessions/browser-data")
	v.SetDefault("browser.nav_timeout", "60s")

	v.SetDefault("challenge.interstitial_x", 210)
	v.SetDefault("challenge.interstitial_y", 290)
	v.SetDefault("challenge.interstitial_attempts", 20)
	v.SetDefault("challenge.interstitial_interval", "2s")
	v.SetDefault("challenge.widget_offset_x", 30)
	v.SetDefault("challenge.widget_offset_y", 30)
	v.SetDefault("challenge.token_attempts", 60)
	v.SetDefault("challenge.token_interval", "1s")
	v.SetDefault("challenge.min_token_length", 10)

	v.SetDefault("totp.margin", "5s")
	v.SetDefault("totp.timeout", "10s")

	v.SetDefault("run.stay_duration", "10s")
	v.SetDefault("run.account_pause", "5s")
	v.SetDefault("run.settle_delay", "3s")

	v.SetDefault("session.dir", "./sessions")

	v.SetDefault("storage.path", "./data/idc-renew.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// overrideFromEnv overrides configuration with environment variables
func overrideFromEnv(v *viper.Viper) {
	if accounts := os.Getenv("IDC_ACCOUNTS"); accounts != "" {
		v.Set("accounts", accounts)
	}
	if stay := os.Getenv("IDC_STAY_DURATION"); stay != "" {
		v.Set("run.stay_duration", stay)
	}
	if apiURL := os.Getenv("IDC_TOTP_API_URL"); apiURL != "" {
		v.Set("totp.api_url", apiURL)
	}
	if token := os.Getenv("IDC_TELEGRAM_BOT_TOKEN"); token != "" {
		v.Set("telegram.bot_token", token)
	}
	if chatID := os.Getenv("IDC_TELEGRAM_CHAT_ID"); chatID != "" {
		v.Set("telegram.chat_id", chatID)
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Target.LoginURL == "" {
		return fmt.Errorf("target login URL is required")
	}
	if config.Target.DashboardURL == "" {
		return fmt.Errorf("target dashboard URL is required")
	}
	if config.Challenge.InterstitialAttempts <= 0 {
		return fmt.Errorf("interstitial attempts must be positive")
	}
	if config.Challenge.TokenAttempts <= 0 {
		return fmt.Errorf("token attempts must be positive")
	}
	return nil
}
