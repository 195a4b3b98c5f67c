package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"etapabot/internal/conversation"
	"etapabot/internal/transcript"
	"github.com/spf13/viper"
)

// Config is the complete chat client configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Chat    ChatConfig    `mapstructure:"chat"`
	States  StatesConfig  `mapstructure:"states"`
	TUI     TUIConfig     `mapstructure:"tui"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig locates the /procesar endpoint
type ServerConfig struct {
	// URL is the server base URL; /procesar is appended when missing
	URL string `mapstructure:"url"`
	// Timeout bounds each exchange (0 = no client-side timeout)
	Timeout time.Duration `mapstructure:"timeout"`
}

// ChatConfig selects the widget behaviour
type ChatConfig struct {
	// Variant is "basic" or "contextual"
	Variant string `mapstructure:"variant"`
	// Markup is "sanitized", "trusted" or "plain"
	Markup string `mapstructure:"markup"`
	// MenuDelay is the pause between the greeting and the menu (contextual only)
	MenuDelay time.Duration `mapstructure:"menu_delay"`
}

// StatesConfig holds the server codes the client recognises
type StatesConfig struct {
	AwaitingFirstInput int `mapstructure:"awaiting_first_input"`
	MainMenu           int `mapstructure:"main_menu"`
	Complete           int `mapstructure:"complete"`
}

// TUIConfig controls the terminal UI
type TUIConfig struct {
	AltScreen bool `mapstructure:"alt_screen"`
}

// LoggingConfig controls the debug log. The TUI owns the terminal, so
// logs go to a file or nowhere.
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

func Default() *Config {
	conv := conversation.DefaultConfig(conversation.VariantBasic)
	return &Config{
		Server: ServerConfig{
			URL: "http://localhost:5000",
		},
		Chat: ChatConfig{
			Variant:   string(conversation.VariantBasic),
			Markup:    string(transcript.MarkupSanitized),
			MenuDelay: conversation.DefaultMenuDelay,
		},
		States: StatesConfig{
			AwaitingFirstInput: conv.States.AwaitingFirstInput,
			MainMenu:           conv.States.MainMenu,
			Complete:           conv.States.Complete,
		},
		TUI: TUIConfig{
			AltScreen: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers every default with viper so env vars and flags
// resolve even without a config file.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("server.url", defaults.Server.URL)
	viper.SetDefault("server.timeout", defaults.Server.Timeout)

	viper.SetDefault("chat.variant", defaults.Chat.Variant)
	viper.SetDefault("chat.markup", defaults.Chat.Markup)
	viper.SetDefault("chat.menu_delay", defaults.Chat.MenuDelay)

	viper.SetDefault("states.awaiting_first_input", defaults.States.AwaitingFirstInput)
	viper.SetDefault("states.main_menu", defaults.States.MainMenu)
	viper.SetDefault("states.complete", defaults.States.Complete)

	viper.SetDefault("tui.alt_screen", defaults.TUI.AltScreen)

	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.URL) == "" {
		errs = append(errs, errors.New("server.url must not be empty"))
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, fmt.Errorf("server.timeout must not be negative, got %s", c.Server.Timeout))
	}
	if c.Chat.MenuDelay < 0 {
		errs = append(errs, fmt.Errorf("chat.menu_delay must not be negative, got %s", c.Chat.MenuDelay))
	}
	if _, err := conversation.ParseVariant(c.Chat.Variant); err != nil {
		errs = append(errs, fmt.Errorf("chat.variant: %w", err))
	}
	if _, err := transcript.ParseMarkupPolicy(c.Chat.Markup); err != nil {
		errs = append(errs, fmt.Errorf("chat.markup: %w", err))
	}
	if c.States.AwaitingFirstInput == c.States.Complete {
		errs = append(errs, fmt.Errorf("states.awaiting_first_input and states.complete must differ, both are %d", c.States.Complete))
	}
	if c.States.MainMenu == c.States.AwaitingFirstInput || c.States.MainMenu == c.States.Complete {
		errs = append(errs, fmt.Errorf("states.main_menu must differ from awaiting_first_input and complete, got %d", c.States.MainMenu))
	}
	return errors.Join(errs...)
}

// Conversation builds the controller configuration.
func (c *Config) Conversation() conversation.Config {
	variant, err := conversation.ParseVariant(c.Chat.Variant)
	if err != nil {
		variant = conversation.VariantBasic
	}
	cfg := conversation.DefaultConfig(variant)
	cfg.States.AwaitingFirstInput = c.States.AwaitingFirstInput
	cfg.States.Complete = c.States.Complete
	cfg.States.MainMenu = c.States.MainMenu
	if variant == conversation.VariantContextual {
		cfg.MenuDelay = c.Chat.MenuDelay
	}
	return cfg
}

// MarkupPolicy returns the parsed markup policy, sanitized when invalid.
func (c *Config) MarkupPolicy() transcript.MarkupPolicy {
	p, err := transcript.ParseMarkupPolicy(c.Chat.Markup)
	if err != nil {
		return transcript.MarkupSanitized
	}
	return p
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "etapa")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".etapa"
	}
	return filepath.Join(home, ".config", "etapa")
}
