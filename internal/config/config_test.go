package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"etapabot/internal/conversation"
	"etapabot/internal/transcript"
	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.URL != "http://localhost:5000" {
		t.Errorf("Server.URL = %q, want %q", cfg.Server.URL, "http://localhost:5000")
	}
	if cfg.Server.Timeout != 0 {
		t.Errorf("Server.Timeout = %v, want no timeout", cfg.Server.Timeout)
	}
	if cfg.Chat.Variant != "basic" {
		t.Errorf("Chat.Variant = %q, want basic", cfg.Chat.Variant)
	}
	if cfg.Chat.Markup != "sanitized" {
		t.Errorf("Chat.Markup = %q, want sanitized", cfg.Chat.Markup)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() should be valid, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`server:
  url: http://example.test:8080
  timeout: 5s
chat:
  variant: contextual
  markup: plain
  menu_delay: 2s
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	SetDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Timeout != 5*time.Second {
		t.Errorf("Server.Timeout = %v, want 5s", cfg.Server.Timeout)
	}
	if cfg.MarkupPolicy() != transcript.MarkupPlain {
		t.Errorf("MarkupPolicy = %q, want plain", cfg.MarkupPolicy())
	}

	conv := cfg.Conversation()
	if conv.Variant != conversation.VariantContextual || !conv.States.HasMainMenu {
		t.Errorf("expected contextual conversation with main menu, got %+v", conv)
	}
	if conv.MenuDelay != 2*time.Second {
		t.Errorf("MenuDelay = %v, want 2s", conv.MenuDelay)
	}
	if cfg.States.Complete != 2 {
		t.Errorf("States.Complete = %d, want default 2", cfg.States.Complete)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.URL = " "
	cfg.Chat.Variant = "fancy"
	cfg.Chat.Markup = "raw"
	cfg.Server.Timeout = -time.Second

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.url", "chat.variant", "chat.markup", "server.timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestValidateRejectsStateCollisions(t *testing.T) {
	tests := []struct {
		name   string
		states StatesConfig
		want   string
	}{
		{"menu equals initial", StatesConfig{AwaitingFirstInput: 1, MainMenu: 1, Complete: 2}, "states.main_menu"},
		{"menu equals complete", StatesConfig{AwaitingFirstInput: 1, MainMenu: 2, Complete: 2}, "states.main_menu"},
		{"initial equals complete", StatesConfig{AwaitingFirstInput: 4, MainMenu: 3, Complete: 4}, "states.awaiting_first_input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.States = tt.states
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q error, got %v", tt.want, err)
			}
		})
	}

	cfg := Default()
	cfg.States = StatesConfig{AwaitingFirstInput: 10, MainMenu: 30, Complete: 20}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected distinct codes to validate, got %v", err)
	}
}

func TestConfigDirHonoursXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := ConfigDir(); got != filepath.Join("/tmp/xdg", "etapa") {
		t.Errorf("ConfigDir() = %q", got)
	}
}
