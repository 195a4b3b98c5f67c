package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"etapabot/internal/config"
	"etapabot/internal/conversation"
	"etapabot/internal/protocol"
	"etapabot/internal/transcript"
	logx "etapabot/pkg/logger"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type exchangeDoneMsg struct {
	pending *conversation.Pending
	resp    protocol.Response
	err     error
}

type revealMsg struct {
	reveal *conversation.Reveal
}

type uiTheme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	badge       lipgloss.Style
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	footer      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	inputPanel  lipgloss.Style
	helpText    lipgloss.Style
}

func newTheme() uiTheme {
	green := lipgloss.Color("#39a900")
	blue := lipgloss.Color("#01cdfe")
	pink := lipgloss.Color("#ff71ce")
	panelBg := lipgloss.Color("#10231a")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")

	return uiTheme{
		root: lipgloss.NewStyle().
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(green).
			Padding(0, 1),
		badge: lipgloss.NewStyle().
			Background(green).
			Foreground(lipgloss.Color("#0b1a12")).
			Bold(true).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().
			Foreground(green).
			Bold(true),
		footer: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(pink).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		inputPanel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(green).
			Padding(0, 1),
		helpText: lipgloss.NewStyle().Foreground(muted),
	}
}

type model struct {
	cfg       *config.Config
	ctrl      *conversation.Controller
	log       *transcript.Transcript
	transport conversation.Transport

	reveal     *conversation.Reveal
	pending    *conversation.Pending
	statusLine string
	failed     bool

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	theme    uiTheme

	width  int
	height int
}

func newModel(cfg *config.Config, transport conversation.Transport) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 500
	input.Placeholder = "Escribe tu mensaje y presiona Enter"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#39a900"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true
	timeline.MouseWheelDelta = 4

	log := transcript.New(cfg.MarkupPolicy())
	ctrl := conversation.NewController(cfg.Conversation(), log, transport)

	m := model{
		cfg:        cfg,
		ctrl:       ctrl,
		log:        log,
		transport:  transport,
		statusLine: "conectado a " + cfg.Server.URL,
		input:      input,
		timeline:   timeline,
		spinner:    sp,
		theme:      newTheme(),
	}
	m.reveal = ctrl.Initialize()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textinput.Blink,
		revealCmd(m.reveal),
	)
}

func (m model) exchangeCmd(p *conversation.Pending) tea.Cmd {
	transport := m.transport
	return func() tea.Msg {
		resp, err := transport.Exchange(context.Background(), p.Request)
		return exchangeDoneMsg{pending: p, resp: resp, err: err}
	}
}

func revealCmd(r *conversation.Reveal) tea.Cmd {
	if r == nil {
		return nil
	}
	return tea.Tick(r.Delay, func(time.Time) tea.Msg {
		return revealMsg{reveal: r}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case exchangeDoneMsg:
		out := m.ctrl.Resolve(msg.pending, msg.resp, msg.err)
		if out.Stale {
			logx.Debug().Uint64("generation", msg.pending.Generation).Msg("ignored superseded response")
			break
		}
		m.pending = nil
		switch {
		case out.Failed:
			m.logError(out.Err)
		case out.Terminated:
			m.input.Blur()
			m.setStatus("consulta finalizada · Enter o Ctrl+R para " + strings.ToLower(m.ctrl.Config().RestartLabel))
		default:
			m.setStatus(fmt.Sprintf("respuesta recibida · estado %d", out.State.Code()))
		}
		m.renderPanes(true)
	case revealMsg:
		if m.ctrl.RevealMenu(msg.reveal) {
			m.renderPanes(true)
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderPanes(false)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+r":
			return m, m.restart()
		case "enter":
			if m.ctrl.Locked() {
				return m, m.restart()
			}
			p, ok := m.ctrl.Begin(m.input.Value())
			if !ok {
				return m, nil
			}
			m.input.SetValue("")
			m.pending = p
			m.setStatus("enviando...")
			m.renderPanes(true)
			return m, m.exchangeCmd(p)
		case "pgup", "ctrl+b":
			m.timeline.LineUp(8)
			return m, nil
		case "pgdown", "ctrl+f":
			m.timeline.LineDown(8)
			return m, nil
		case "home":
			m.timeline.GotoTop()
			return m, nil
		case "end":
			m.timeline.GotoBottom()
			return m, nil
		}
		if m.ctrl.Locked() {
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) restart() tea.Cmd {
	reveal := m.ctrl.Restart()
	m.reveal = reveal
	m.pending = nil
	m.input.SetValue("")
	m.input.Focus()
	m.setStatus("nueva consulta")
	m.renderPanes(true)
	return revealCmd(reveal)
}

func (m model) View() string {
	header := m.renderHeader()
	content := m.renderContent()
	input := m.renderInput()
	footer := m.renderFooter()
	return m.theme.root.Render(lipgloss.JoinVertical(lipgloss.Left, header, content, input, footer))
}

func (m *model) renderHeader() string {
	snap := m.ctrl.Snapshot()
	title := m.theme.badge.Render("Asistente SENA")
	meta := m.theme.helpText.Render(fmt.Sprintf(" Etapa productiva · variante %s · estado %d", m.cfg.Chat.Variant, snap.State.Code()))
	return m.theme.header.Width(maxInt(20, m.width-4)).Render(lipgloss.JoinHorizontal(lipgloss.Left, title, meta))
}

func (m *model) renderContent() string {
	contentWidth := maxInt(40, m.width-4)
	return m.theme.panel.Width(contentWidth).Render(
		m.theme.panelTitle.Render("Conversación") + "\n" + m.timeline.View(),
	)
}

func (m *model) renderInput() string {
	contentWidth := maxInt(40, m.width-4)
	if m.ctrl.Locked() {
		label := m.ctrl.Config().RestartLabel
		return m.theme.inputPanel.Width(contentWidth).Render(m.theme.helpText.Render("Conversación finalizada. Enter o Ctrl+R: " + label))
	}
	inputView := m.input.View()
	if m.pending != nil {
		inputView = m.spinner.View() + " escribiendo... " + inputView
	}
	return m.theme.inputPanel.Width(contentWidth).Render(inputView)
}

func (m *model) renderFooter() string {
	contentWidth := maxInt(40, m.width-4)
	statusStyle := m.theme.status
	if m.failed {
		statusStyle = m.theme.errorStatus
	}
	line := statusStyle.Render(compactSingleLine(m.statusLine, 180))
	hints := m.theme.helpText.Render("Teclas: Enter enviar · Ctrl+R reiniciar · PgUp/PgDn desplazar · Esc/Ctrl+C salir")
	return m.theme.footer.Width(contentWidth).Render(line + "\n" + hints)
}

// renderPanes refreshes the transcript viewport. follow scrolls to the
// newest entry; otherwise the reader's position is kept when they have
// scrolled up.
func (m *model) renderPanes(follow bool) {
	prevYOffset := m.timeline.YOffset
	prevAtBottom := m.timeline.AtBottom()

	m.timeline.SetContent(m.log.Render(m.timeline.Width))
	if follow || prevAtBottom {
		m.timeline.GotoBottom()
	} else {
		m.timeline.SetYOffset(prevYOffset)
	}
}

func (m *model) resize() {
	contentWidth := maxInt(40, m.width-4)
	m.input.Width = maxInt(20, contentWidth-6)
	m.timeline.Width = maxInt(20, contentWidth-4)
	m.timeline.Height = maxInt(5, m.height-13)
}

func (m *model) setStatus(line string) {
	m.statusLine = line
	m.failed = false
}

func (m *model) logError(err error) {
	if err == nil {
		return
	}
	m.statusLine = "error: " + compactSingleLine(err.Error(), 160)
	m.failed = true
}

func truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return text
	}
	if limit <= 3 {
		return text[:limit]
	}
	return text[:limit-3] + "..."
}

func compactSingleLine(text string, limit int) string {
	compact := strings.Join(strings.Fields(text), " ")
	return truncate(compact, limit)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
