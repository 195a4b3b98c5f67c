package conversation

import "fmt"

// Kind tags the states the client has to recognise. Everything the server
// sends that is not a sentinel is Opaque and is echoed back untouched.
type Kind int

const (
	KindOpaque Kind = iota
	KindAwaitingFirstInput
	KindMainMenu
	KindComplete
)

func (k Kind) String() string {
	switch k {
	case KindAwaitingFirstInput:
		return "awaiting-first-input"
	case KindMainMenu:
		return "main-menu"
	case KindComplete:
		return "complete"
	default:
		return "opaque"
	}
}

// State is a server state code together with its client-side classification.
// The zero value is Opaque(0).
type State struct {
	kind Kind
	code int
}

// Code returns the integer to echo back in the next request.
func (s State) Code() int {
	return s.code
}

// Kind returns the classification of the code.
func (s State) Kind() Kind {
	return s.kind
}

// IsComplete reports whether the state is the terminal sentinel.
func (s State) IsComplete() bool {
	return s.kind == KindComplete
}

func (s State) String() string {
	if s.kind == KindOpaque {
		return fmt.Sprintf("opaque(%d)", s.code)
	}
	return fmt.Sprintf("%s(%d)", s.kind, s.code)
}

// StateTable maps the sentinel kinds to the server's integer codes.
// MainMenu is only recognised when HasMainMenu is set.
type StateTable struct {
	AwaitingFirstInput int  `mapstructure:"awaiting_first_input"`
	MainMenu           int  `mapstructure:"main_menu"`
	Complete           int  `mapstructure:"complete"`
	HasMainMenu        bool `mapstructure:"has_main_menu"`
}

// Classify wraps a code received from the server. Unknown codes are never
// rejected.
func (t StateTable) Classify(code int) State {
	switch {
	case code == t.AwaitingFirstInput:
		return State{kind: KindAwaitingFirstInput, code: code}
	case code == t.Complete:
		return State{kind: KindComplete, code: code}
	case t.HasMainMenu && code == t.MainMenu:
		return State{kind: KindMainMenu, code: code}
	default:
		return State{kind: KindOpaque, code: code}
	}
}

// Initial returns the state a fresh or restarted session starts in.
func (t StateTable) Initial() State {
	return State{kind: KindAwaitingFirstInput, code: t.AwaitingFirstInput}
}

// Menu returns the state reached after the staged menu reveal.
func (t StateTable) Menu() State {
	return State{kind: KindMainMenu, code: t.MainMenu}
}
