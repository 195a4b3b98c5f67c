// Package conversation drives the state-numbered dialogue with the /procesar
// endpoint: it owns the session, issues one exchange per user turn and
// tells a Renderer what to show.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"etapabot/internal/protocol"
	logx "etapabot/pkg/logger"
)

// Renderer receives the visible effects of the conversation.
type Renderer interface {
	AppendMessage(text string, role Role)
	ShowTyping()
	HideTyping()
	ShowProcessTrace(steps []string)
	ShowRestart(label string)
	Clear()
}

// Transport performs one request/response exchange. Non-2xx answers and
// undecodable bodies must be reported as errors.
type Transport interface {
	Exchange(ctx context.Context, req protocol.Request) (protocol.Response, error)
}

// Reveal is a staged menu turn scheduled by Initialize. The caller waits
// Delay and hands it back to RevealMenu.
type Reveal struct {
	Generation uint64
	Delay      time.Duration
}

// Pending is an exchange started by Begin and not yet resolved.
type Pending struct {
	Generation uint64
	Request    protocol.Request
}

// Outcome summarises what Resolve did.
type Outcome struct {
	Applied    bool
	Stale      bool
	Failed     bool
	Terminated bool
	State      State
	Err        error
}

// Controller is safe for concurrent use. Every Begin and every Restart
// starts a new generation; only the newest generation may change the
// session.
type Controller struct {
	mu         sync.Mutex
	cfg        Config
	renderer   Renderer
	transport  Transport
	session    Session
	generation uint64
}

func NewController(cfg Config, renderer Renderer, transport Transport) *Controller {
	return &Controller{
		cfg:       cfg,
		renderer:  renderer,
		transport: transport,
		session: Session{
			State:   cfg.States.Initial(),
			Context: map[string]any{},
		},
	}
}

// Config returns the configuration the controller was built with.
func (c *Controller) Config() Config {
	return c.cfg
}

// Initialize sets the initial state and greets. The contextual variant
// returns a Reveal for the delayed menu; the basic variant returns nil.
func (c *Controller) Initialize() *Reveal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializeLocked()
}

func (c *Controller) initializeLocked() *Reveal {
	c.session.State = c.cfg.States.Initial()
	c.renderer.AppendMessage(c.cfg.Greeting, RoleBot)
	logx.Debug().Str("state", c.session.State.String()).Uint64("generation", c.generation).Msg("conversation initialized")

	if !c.cfg.Contextual() || c.cfg.Menu == "" {
		return nil
	}
	return &Reveal{Generation: c.generation, Delay: c.cfg.MenuDelay}
}

// RevealMenu appends the staged menu and advances to MainMenu. It reports
// false when a restart or a new turn happened since the reveal was issued.
func (c *Controller) RevealMenu(r *Reveal) bool {
	if r == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.Generation != c.generation || c.session.Terminated {
		logx.Debug().Uint64("generation", r.Generation).Uint64("current", c.generation).Msg("menu reveal discarded")
		return false
	}
	c.renderer.AppendMessage(c.cfg.Menu, RoleBot)
	c.session.State = c.cfg.States.Menu()
	return true
}

// Begin records a user turn and prepares its request. It returns false for
// blank input or while input is locked.
func (c *Controller) Begin(text string) (*Pending, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Terminated {
		return nil, false
	}

	c.generation++
	c.renderer.AppendMessage(text, RoleUser)
	c.renderer.ShowTyping()

	req := protocol.Request{
		Estado:  c.session.State.Code(),
		Mensaje: text,
	}
	if c.cfg.Contextual() {
		req.Contexto = copyContext(c.session.Context)
	}

	logx.Debug().Int("state", req.Estado).Uint64("generation", c.generation).Msg("turn started")
	return &Pending{Generation: c.generation, Request: req}, true
}

// Resolve applies the result of a Pending exchange. Results from an older
// generation are dropped without touching the renderer.
func (c *Controller) Resolve(p *Pending, resp protocol.Response, err error) Outcome {
	if p == nil {
		return Outcome{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p.Generation != c.generation {
		logx.Debug().Uint64("generation", p.Generation).Uint64("current", c.generation).Msg("stale response discarded")
		return Outcome{Stale: true, State: c.session.State}
	}

	c.renderer.HideTyping()

	if err != nil {
		logx.Warn().Err(err).Int("state", c.session.State.Code()).Msg("exchange failed")
		c.renderer.AppendMessage(c.cfg.ErrorText, RoleBot)
		return Outcome{Failed: true, State: c.session.State, Err: err}
	}

	c.session.State = c.cfg.States.Classify(resp.Estado)
	if resp.Contexto != nil {
		c.session.Context = copyContext(resp.Contexto)
	} else {
		c.session.Context = map[string]any{}
	}

	if resp.Mensaje != "" {
		c.renderer.AppendMessage(resp.Mensaje, RoleBot)
	}
	if c.cfg.Contextual() && len(resp.Proceso) > 0 {
		c.renderer.ShowProcessTrace(resp.Proceso)
	}

	terminated := resp.MostrarReinicio || c.session.State.IsComplete()
	if terminated {
		c.session.Terminated = true
		c.renderer.ShowRestart(c.cfg.RestartLabel)
	}

	logx.Debug().
		Str("state", c.session.State.String()).
		Bool("terminated", terminated).
		Uint64("generation", c.generation).
		Msg("turn resolved")

	return Outcome{Applied: true, Terminated: terminated, State: c.session.State}
}

// SubmitTurn runs Begin, the exchange and Resolve in the calling goroutine.
func (c *Controller) SubmitTurn(ctx context.Context, text string) Outcome {
	p, ok := c.Begin(text)
	if !ok {
		return Outcome{State: c.Snapshot().State}
	}
	resp, err := c.transport.Exchange(ctx, p.Request)
	return c.Resolve(p, resp, err)
}

// Restart clears the transcript, unlocks input and greets again. Pending
// exchanges and reveals issued before the restart become stale.
func (c *Controller) Restart() *Reveal {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.renderer.Clear()
	c.session = Session{
		State:   c.cfg.States.Initial(),
		Context: map[string]any{},
	}
	logx.Info().Uint64("generation", c.generation).Msg("conversation restarted")
	return c.initializeLocked()
}

// Snapshot returns a copy of the session.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Snapshot()
}

// Locked reports whether input is disabled until Restart.
func (c *Controller) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Terminated
}
