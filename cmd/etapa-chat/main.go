package main

import (
	"fmt"
	"os"
	"strings"

	"etapabot/internal/client"
	"etapabot/internal/config"
	"etapabot/internal/core"
	logx "etapabot/pkg/logger"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "etapa-chat",
	Short: "Terminal chat with the SENA etapa productiva assistant",
	Long: `etapa-chat talks to the etapa productiva assistant over POST /procesar
and renders the conversation in the terminal. The server drives the dialogue;
the client carries its state and context between turns.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/etapa/config.yaml)")
	flags.String("url", "", "server base URL")
	flags.Duration("timeout", 0, "per-exchange timeout (0 disables)")
	flags.String("variant", "", "widget variant: basic or contextual")
	flags.String("markup", "", "bot markup policy: sanitized, trusted or plain")
	flags.Duration("menu-delay", 0, "pause before the main menu (contextual only)")
	flags.String("log-file", "", "write debug logs to this file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("alt-screen", true, "use the terminal alternate screen")

	bind := map[string]string{
		"config":          "config",
		"server.url":      "url",
		"server.timeout":  "timeout",
		"chat.variant":    "variant",
		"chat.markup":     "markup",
		"chat.menu_delay": "menu-delay",
		"logging.file":    "log-file",
		"logging.level":   "log-level",
		"tui.alt_screen":  "alt-screen",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ETAPA")
	// ETAPA_SERVER_URL for server.url
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}

func run(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	closeLog, err := setupLogging(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	c := client.New(cfg.Server.URL, client.WithTimeout(cfg.Server.Timeout))
	logx.Info().
		Str("endpoint", c.Endpoint()).
		Str("variant", cfg.Chat.Variant).
		Str("markup", cfg.Chat.Markup).
		Msg("starting etapa-chat")

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if cfg.TUI.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(newModel(cfg, c), opts...)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("etapa-chat failed: %w", err)
	}
	return nil
}

// setupLogging routes logs to the configured file; without one the
// logger is silenced so nothing bleeds into the TUI.
func setupLogging(cfg config.LoggingConfig) (func(), error) {
	if strings.TrimSpace(cfg.File) == "" {
		logx.Disable()
		return func() {}, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logx.Init(logx.LoggerOpts{
		Environment: core.Development,
		Output:      f,
		Level:       cfg.Level,
	})
	return func() { _ = f.Close() }, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
