// Package transcript keeps the visible chat log and projects it onto the
// terminal.
package transcript

import (
	"strings"
	"sync"

	"etapabot/internal/conversation"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// TraceTail is how many trailing process steps are shown.
const TraceTail = 3

const typingText = "escribiendo..."

type EntryKind int

const (
	EntryMessage EntryKind = iota
	EntryTyping
	EntryTrace
	EntryRestart
)

// Entry is one rendered block of the transcript.
type Entry struct {
	Kind  EntryKind
	Role  conversation.Role
	Text  string
	Steps []string
}

// Styles are the lipgloss styles used by Render.
type Styles struct {
	UserLabel lipgloss.Style
	BotLabel  lipgloss.Style
	User      lipgloss.Style
	Bot       lipgloss.Style
	Typing    lipgloss.Style
	Trace     lipgloss.Style
	Restart   lipgloss.Style
}

func DefaultStyles() Styles {
	green := lipgloss.Color("#39a900")
	blue := lipgloss.Color("#01cdfe")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")

	return Styles{
		UserLabel: lipgloss.NewStyle().Foreground(blue).Bold(true),
		BotLabel:  lipgloss.NewStyle().Foreground(green).Bold(true),
		User: lipgloss.NewStyle().
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		Bot: lipgloss.NewStyle().
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(green).
			Padding(0, 1),
		Typing: lipgloss.NewStyle().Foreground(muted).Italic(true),
		Trace: lipgloss.NewStyle().
			Foreground(muted).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderTop(false).
			BorderRight(false).
			BorderBottom(false).
			BorderForeground(muted).
			PaddingLeft(1),
		Restart: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#120924")).
			Background(green).
			Bold(true).
			Padding(0, 2),
	}
}

// Transcript is an append-only chat log with at most one typing
// placeholder. It implements conversation.Renderer and is safe for
// concurrent use.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
	format  *formatter
	styles  Styles
}

var _ conversation.Renderer = (*Transcript)(nil)

func New(policy MarkupPolicy) *Transcript {
	return &Transcript{
		format: newFormatter(policy),
		styles: DefaultStyles(),
	}
}

func (t *Transcript) AppendMessage(text string, role conversation.Role) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Kind: EntryMessage, Role: role, Text: text})
}

// ShowTyping moves the placeholder to the end, creating it when absent.
func (t *Transcript) ShowTyping() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeTypingLocked()
	t.entries = append(t.entries, Entry{Kind: EntryTyping, Role: conversation.RoleBot})
}

func (t *Transcript) HideTyping() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeTypingLocked()
}

func (t *Transcript) removeTypingLocked() {
	for i, e := range t.entries {
		if e.Kind == EntryTyping {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

// ShowProcessTrace keeps only the last TraceTail steps.
func (t *Transcript) ShowProcessTrace(steps []string) {
	if len(steps) == 0 {
		return
	}
	tail := steps
	if len(tail) > TraceTail {
		tail = tail[len(tail)-TraceTail:]
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{
		Kind:  EntryTrace,
		Role:  conversation.RoleBot,
		Steps: append([]string(nil), tail...),
	})
}

func (t *Transcript) ShowRestart(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Kind: EntryRestart, Role: conversation.RoleBot, Text: label})
}

func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}

// Entries returns a copy of the log.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Typing reports whether the placeholder is shown.
func (t *Transcript) Typing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.Kind == EntryTyping {
			return true
		}
	}
	return false
}

// Render projects the log onto a terminal of the given width. User turns
// are right aligned, everything else sits on the left.
func (t *Transcript) Render(width int) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if width < 20 {
		width = 20
	}
	bubbleWidth := width * 3 / 4
	blocks := make([]string, 0, len(t.entries))

	for _, e := range t.entries {
		switch e.Kind {
		case EntryMessage:
			if e.Role == conversation.RoleUser {
				body := t.styles.User.Width(bubbleWidth).Render(strings.TrimSpace(ansi.Strip(e.Text)))
				label := t.styles.UserLabel.Render("Tú")
				block := lipgloss.JoinVertical(lipgloss.Right, label, body)
				blocks = append(blocks, lipgloss.PlaceHorizontal(width, lipgloss.Right, block))
				continue
			}
			body := t.styles.Bot.Width(bubbleWidth).Render(t.format.Format(e.Text))
			blocks = append(blocks, lipgloss.JoinVertical(lipgloss.Left, t.styles.BotLabel.Render("Asistente SENA"), body))
		case EntryTyping:
			blocks = append(blocks, t.styles.Typing.Render(typingText))
		case EntryTrace:
			lines := make([]string, 0, len(e.Steps))
			for _, step := range e.Steps {
				lines = append(lines, t.format.Format(step))
			}
			blocks = append(blocks, t.styles.Trace.Width(bubbleWidth).Render(strings.Join(lines, "\n")))
		case EntryRestart:
			hint := t.styles.Typing.Render("Enter o Ctrl+R")
			blocks = append(blocks, t.styles.Restart.Render(e.Text)+" "+hint)
		}
	}
	return strings.Join(blocks, "\n\n")
}
