package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"idc-renew/auth"
	"idc-renew/batch"
	"idc-renew/browser"
	"idc-renew/challenge"
	"idc-renew/config"
	"idc-renew/logger"
	"idc-renew/notify"
	"idc-renew/session"
	"idc-renew/storage"
	"idc-renew/totp"
	"idc-renew/twofactor"
)

var (
	configFile string
	verbose    bool
	headless   bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "idc-renew",
		Short: "Automated session renewal for anti-bot protected accounts",
		Long:  `Logs in each configured account through the anti-bot challenge layer and optional two-factor step, keeping sessions warm and reporting the outcome.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./config/config.yaml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "Run browser in headless mode")

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createStatusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func createRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Log in all configured accounts",
		Long:  `Processes every configured account in order, renewing or establishing its session, and delivers a summary report.`,
		RunE:  runBatch,
	}
}

func createStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show run history and statistics",
		RunE:  runStatus,
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Browser.Headless = headless

	if err := setupLogger(cfg.Logging); err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	log := logger.GetLogger()

	accounts := config.ParseAccounts(cfg.Accounts)
	if len(accounts) == 0 {
		return batch.ErrNoAccounts
	}

	var history batch.History
	db, err := storage.NewDatabase(cfg.Storage.Path, log)
	if err != nil {
		log.WithError(err).Warn("Run history unavailable")
	} else {
		defer db.Close()
		history = db
	}

	store := session.NewStore(cfg.Session.Dir, log)
	solver := challenge.NewPointerSolver(cfg.Challenge, log)
	oracle := totp.NewClient(cfg.TOTP, log)
	second := twofactor.NewHandler(oracle, cfg.Run.SettleDelay, log)
	notifier := notify.NewTelegram(cfg.Telegram, log)

	launch := func() (browser.Engine, error) {
		return browser.New(cfg.Browser, log)
	}
	machine := auth.NewMachine(cfg, store, solver, second, launch, log)

	orchestrator := batch.New(machine, notifier, history, cfg.Run.AccountPause, log)

	result, err := orchestrator.Run(context.Background(), accounts)
	if err != nil {
		return err
	}

	fmt.Println(batch.Summary(result))

	if !result.AllSuccessful() {
		return fmt.Errorf("%d of %d accounts failed", result.Failed(), len(result.Outcomes))
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := setupLogger(cfg.Logging); err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}

	db, err := storage.NewDatabase(cfg.Storage.Path, logger.GetLogger())
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer db.Close()

	stats, err := db.DailyStats(time.Now())
	if err != nil {
		return fmt.Errorf("failed to get daily stats: %w", err)
	}

	records, err := db.RecentRuns(10)
	if err != nil {
		return fmt.Errorf("failed to get recent runs: %w", err)
	}

	fmt.Printf("Session Renewal Status\n")
	fmt.Printf("======================\n\n")
	fmt.Printf("Today: %d runs, %d succeeded, %d failed\n\n", stats["runs"], stats["successes"], stats["failures"])

	fmt.Printf("Recent runs:\n")
	for _, record := range records {
		status := "FAIL"
		if record.Success {
			status = "OK"
		}
		fmt.Printf("  %s  %-4s %s (%dms)\n", record.RanAt.Format("2006-01-02 15:04:05"), status, record.Email, record.DurationMS)
	}

	return nil
}

func setupLogger(cfg config.LoggingConfig) error {
	level := cfg.Level
	if verbose {
		level = "debug"
	}
	if level == "" {
		level = "info"
	}

	return logger.InitLogger(level, cfg.Format, cfg.Output)
}
