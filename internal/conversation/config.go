package conversation

import (
	"fmt"
	"time"
)

// Variant selects between the two widget behaviours.
type Variant string

const (
	// VariantBasic sends estado and mensaje only.
	VariantBasic Variant = "basic"
	// VariantContextual also round-trips contexto, reveals a menu after the
	// greeting and renders process traces.
	VariantContextual Variant = "contextual"
)

// ParseVariant validates a variant name.
func ParseVariant(v string) (Variant, error) {
	switch Variant(v) {
	case VariantBasic, VariantContextual:
		return Variant(v), nil
	default:
		return "", fmt.Errorf("unknown variant %q (want %q or %q)", v, VariantBasic, VariantContextual)
	}
}

const (
	GreetingBasic      = "¡Hola! Soy tu asistente SENA. Por favor ingresa tu número de identificación para verificar el estado de los documentos de tu etapa productiva:"
	GreetingContextual = "¡Hola! Soy tu asistente SENA para la etapa productiva."
	MainMenuText       = "¿Qué deseas hacer?<br>1. Consultar mis documentos con mi número de identificación<br>2. Buscar por nombre<br>3. Buscar por código de programa<br><br>Escribe el número de la opción."
	ConnectionError    = "⚠️ Error de conexión. Intenta nuevamente."
	RestartLabel       = "Hacer otra consulta"

	DefaultMenuDelay = 1200 * time.Millisecond
)

// Config holds the hard-coded texts and the state table for one variant.
type Config struct {
	Variant      Variant
	States       StateTable
	Greeting     string
	Menu         string
	MenuDelay    time.Duration
	ErrorText    string
	RestartLabel string
}

// DefaultConfig returns the configuration of the given variant.
func DefaultConfig(v Variant) Config {
	cfg := Config{
		Variant: VariantBasic,
		States: StateTable{
			AwaitingFirstInput: 1,
			Complete:           2,
			MainMenu:           3,
		},
		Greeting:     GreetingBasic,
		ErrorText:    ConnectionError,
		RestartLabel: RestartLabel,
	}
	if v == VariantContextual {
		cfg.Variant = VariantContextual
		cfg.States.HasMainMenu = true
		cfg.Greeting = GreetingContextual
		cfg.Menu = MainMenuText
		cfg.MenuDelay = DefaultMenuDelay
	}
	return cfg
}

// Contextual reports whether contexto, the menu reveal and traces are in use.
func (c Config) Contextual() bool {
	return c.Variant == VariantContextual
}
