package main

import (
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tradebot/dashboard/internal/app"
	"github.com/tradebot/dashboard/internal/client"
	"github.com/tradebot/dashboard/internal/config"
	"github.com/tradebot/dashboard/internal/logging"
	"github.com/tradebot/dashboard/internal/nav"
	"github.com/tradebot/dashboard/internal/notify"
	"github.com/tradebot/dashboard/internal/session"
	"github.com/tradebot/dashboard/internal/store"
)

var (
	cfgFile   string
	apiURL    string
	feedURL   string
	logLevel  string
	ephemeral bool
	reconnect bool
)

var rootCmd = &cobra.Command{
	Use:           "tradebot-tui",
	Short:         "Terminal dashboard for the trading bot",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDashboard,
}

// consoleLogging keeps session records readable for commands that print to
// the terminal. The dashboard replaces it with a file logger once the config
// is loaded.
func consoleLogging(cmd *cobra.Command, args []string) {
	level := "warn"
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	logging.ConsoleTo(cmd.ErrOrStderr(), level)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		session.NewManager(st).Logout()
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		m := session.NewManager(st)
		s := m.RestoreFromStorage()
		if !s.Authenticated {
			fmt.Fprintln(cmd.OutOrStdout(), s.String())
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (expires %s)\n", s, m.ExpiresAt().Local().Format(time.DateTime))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "config.yaml", "path to the yaml config file")
	pf.StringVar(&apiURL, "api-url", "", "REST base URL, e.g. http://localhost:8000/api/v1")
	pf.StringVar(&feedURL, "feed-url", "", "realtime feed URL (derived from --api-url when empty)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&ephemeral, "ephemeral", false, "keep the credential in memory only")
	rootCmd.Flags().BoolVar(&reconnect, "reconnect", false, "reconnect the feed automatically after a drop")

	rootCmd.PersistentPreRun = consoleLogging
	rootCmd.AddCommand(logoutCmd, whoamiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flags set on the command
// line on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.API.BaseURL = apiURL
	}
	if flags.Changed("feed-url") {
		cfg.API.FeedURL = feedURL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("reconnect") {
		cfg.Feed.Reconnect = reconnect
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (store.CredentialStore, func(), error) {
	if ephemeral {
		return store.NewMemoryStore(""), func() {}, nil
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening credential store: %w", err)
	}
	return st, func() {
		if c, ok := st.(io.Closer); ok {
			c.Close()
		}
	}, nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logFile, err := logging.Setup(cfg.LogPath(), cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logFile.Close()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	router := nav.NewRouter()
	sess := session.NewManager(st, session.WithNavigator(router))
	deps := app.Deps{
		Config:  cfg,
		Session: sess,
		Router:  router,
		Feed: client.NewFeedClient(client.FeedOptions{
			URL:          cfg.FeedURL(),
			PingInterval: cfg.Feed.PingInterval,
			PongTimeout:  cfg.Feed.PongTimeout,
		}),
		HTTP:  client.NewHTTPClient(cfg.API.BaseURL, sess, cfg.API.Timeout, cfg.API.RequestsPerSecond),
		Queue: notify.NewQueue(),
	}
	if err := deps.Err(); err != nil {
		return err
	}

	log.Info().Str("api", cfg.API.BaseURL).Str("feed", cfg.FeedURL()).Msg("starting dashboard")
	p := tea.NewProgram(app.New(deps), tea.WithAltScreen())
	_, err = p.Run()
	deps.Feed.Close()
	return err
}
