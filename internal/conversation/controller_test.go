package conversation

import (
	"context"
	"errors"
	"testing"

	"etapabot/internal/protocol"
	"github.com/google/go-cmp/cmp"
)

type call struct {
	op   string
	text string
	role Role
	list []string
}

type recordingRenderer struct {
	calls []call
}

func (r *recordingRenderer) AppendMessage(text string, role Role) {
	r.calls = append(r.calls, call{op: "append", text: text, role: role})
}
func (r *recordingRenderer) ShowTyping() { r.calls = append(r.calls, call{op: "typing"}) }
func (r *recordingRenderer) HideTyping() { r.calls = append(r.calls, call{op: "untyping"}) }
func (r *recordingRenderer) ShowProcessTrace(steps []string) {
	r.calls = append(r.calls, call{op: "trace", list: append([]string(nil), steps...)})
}
func (r *recordingRenderer) ShowRestart(label string) {
	r.calls = append(r.calls, call{op: "restart", text: label})
}
func (r *recordingRenderer) Clear() { r.calls = append(r.calls, call{op: "clear"}) }

func (r *recordingRenderer) count(op string, role Role) int {
	n := 0
	for _, c := range r.calls {
		if c.op == op && (op != "append" || c.role == role) {
			n++
		}
	}
	return n
}

type stubTransport struct {
	requests []protocol.Request
	resp     protocol.Response
	err      error
}

func (s *stubTransport) Exchange(_ context.Context, req protocol.Request) (protocol.Response, error) {
	s.requests = append(s.requests, req)
	return s.resp, s.err
}

func newBasic(t *testing.T, tr *stubTransport) (*Controller, *recordingRenderer) {
	t.Helper()
	r := &recordingRenderer{}
	return NewController(DefaultConfig(VariantBasic), r, tr), r
}

func TestInitializeGreetsOnce(t *testing.T) {
	c, r := newBasic(t, &stubTransport{})
	if reveal := c.Initialize(); reveal != nil {
		t.Fatalf("expected no reveal for basic variant, got %+v", reveal)
	}

	want := []call{{op: "append", text: GreetingBasic, role: RoleBot}}
	if diff := cmp.Diff(want, r.calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Fatalf("renderer calls mismatch (-want +got):\n%s", diff)
	}
	snap := c.Snapshot()
	if snap.State.Kind() != KindAwaitingFirstInput || snap.State.Code() != 1 {
		t.Fatalf("expected initial state 1, got %s", snap.State)
	}
}

func TestSubmitTurnSendsStateAndMessage(t *testing.T) {
	tr := &stubTransport{resp: protocol.Response{Estado: 7, Mensaje: "ok"}}
	c, r := newBasic(t, tr)
	c.Initialize()

	out := c.SubmitTurn(context.Background(), "12345678")
	if !out.Applied {
		t.Fatalf("expected applied outcome, got %+v", out)
	}
	if len(tr.requests) != 1 {
		t.Fatalf("expected exactly one request, got %d", len(tr.requests))
	}
	want := protocol.Request{Estado: 1, Mensaje: "12345678"}
	if diff := cmp.Diff(want, tr.requests[0]); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
	if got := r.count("append", RoleUser); got != 1 {
		t.Fatalf("expected one user turn, got %d", got)
	}
	// user turn precedes typing which precedes the bot answer
	ops := []string{}
	for _, cl := range r.calls[1:] {
		ops = append(ops, cl.op)
	}
	if diff := cmp.Diff([]string{"append", "typing", "untyping", "append"}, ops); diff != "" {
		t.Fatalf("call order mismatch (-want +got):\n%s", diff)
	}

	snap := c.Snapshot()
	if snap.State.Code() != 7 || snap.State.Kind() != KindOpaque {
		t.Fatalf("expected opaque(7), got %s", snap.State)
	}
	if snap.Context == nil || len(snap.Context) != 0 {
		t.Fatalf("expected empty context, got %#v", snap.Context)
	}
}

func TestBlankInputIsIgnored(t *testing.T) {
	tr := &stubTransport{}
	c, r := newBasic(t, tr)
	c.Initialize()
	before := len(r.calls)

	for _, in := range []string{"", "   ", "\t\n"} {
		if out := c.SubmitTurn(context.Background(), in); out.Applied || out.Failed {
			t.Fatalf("expected no-op for %q, got %+v", in, out)
		}
	}
	if len(tr.requests) != 0 {
		t.Fatalf("expected no requests, got %d", len(tr.requests))
	}
	if len(r.calls) != before {
		t.Fatalf("expected no renderer calls, got %d extra", len(r.calls)-before)
	}
}

func TestCompletionLocksInputUntilRestart(t *testing.T) {
	tr := &stubTransport{resp: protocol.Response{Estado: 2, Mensaje: "Done", MostrarReinicio: true}}
	c, r := newBasic(t, tr)
	c.Initialize()

	out := c.SubmitTurn(context.Background(), "12345678")
	if !out.Terminated || !c.Locked() {
		t.Fatalf("expected terminated and locked, got %+v", out)
	}
	last := r.calls[len(r.calls)-1]
	if last.op != "restart" || last.text != RestartLabel {
		t.Fatalf("expected restart affordance, got %+v", last)
	}
	if r.calls[len(r.calls)-2].text != "Done" {
		t.Fatalf("expected bot turn Done, got %+v", r.calls[len(r.calls)-2])
	}

	if _, ok := c.Begin("again"); ok {
		t.Fatalf("expected Begin to be refused while locked")
	}
	if len(tr.requests) != 1 {
		t.Fatalf("expected no request while locked, got %d", len(tr.requests))
	}

	c.Restart()
	if c.Locked() {
		t.Fatalf("expected input unlocked after restart")
	}
	snap := c.Snapshot()
	if snap.State.Kind() != KindAwaitingFirstInput {
		t.Fatalf("expected initial state after restart, got %s", snap.State)
	}
}

func TestTerminationRule(t *testing.T) {
	tests := []struct {
		name string
		resp protocol.Response
		want bool
	}{
		{"flag only", protocol.Response{Estado: 9, MostrarReinicio: true}, true},
		{"complete state only", protocol.Response{Estado: 2}, true},
		{"neither", protocol.Response{Estado: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newBasic(t, &stubTransport{resp: tt.resp})
			c.Initialize()
			if got := c.SubmitTurn(context.Background(), "x").Terminated; got != tt.want {
				t.Fatalf("expected terminated=%v, got %v", tt.want, got)
			}
		})
	}
}

func TestExchangeFailureKeepsState(t *testing.T) {
	tr := &stubTransport{err: errors.New("connection refused")}
	r := &recordingRenderer{}
	c := NewController(DefaultConfig(VariantContextual), r, tr)
	c.Initialize()
	c.session.Context = map[string]any{"paso": "nombre"}
	before := c.Snapshot()

	out := c.SubmitTurn(context.Background(), "Ana")
	if !out.Failed || out.Err == nil {
		t.Fatalf("expected failed outcome, got %+v", out)
	}
	if got := r.count("append", RoleBot); got != 2 {
		t.Fatalf("expected greeting and one error turn, got %d bot turns", got)
	}
	if last := r.calls[len(r.calls)-1]; last.text != ConnectionError {
		t.Fatalf("expected error text, got %q", last.text)
	}
	after := c.Snapshot()
	if diff := cmp.Diff(before, after, cmp.AllowUnexported(State{})); diff != "" {
		t.Fatalf("session changed on failure (-before +after):\n%s", diff)
	}
}

func TestContextualRoundTripsContextAndTrace(t *testing.T) {
	tr := &stubTransport{resp: protocol.Response{
		Estado:   6,
		Mensaje:  "Elige",
		Contexto: map[string]any{"candidatos": []any{"1", "2"}},
		Proceso:  []string{"a", "b", "c", "d"},
	}}
	r := &recordingRenderer{}
	c := NewController(DefaultConfig(VariantContextual), r, tr)
	c.Initialize()

	c.SubmitTurn(context.Background(), "Ana")
	snap := c.Snapshot()
	if diff := cmp.Diff(map[string]any{"candidatos": []any{"1", "2"}}, snap.Context); diff != "" {
		t.Fatalf("context mismatch (-want +got):\n%s", diff)
	}
	if got := r.count("trace", RoleBot); got != 1 {
		t.Fatalf("expected one trace block, got %d", got)
	}

	tr.resp = protocol.Response{Estado: 1}
	c.SubmitTurn(context.Background(), "1")
	if diff := cmp.Diff(map[string]any{"candidatos": []any{"1", "2"}}, tr.requests[1].Contexto); diff != "" {
		t.Fatalf("second request context mismatch (-want +got):\n%s", diff)
	}
	if len(c.Snapshot().Context) != 0 {
		t.Fatalf("expected context reset when response omits it")
	}
}

func TestBasicVariantOmitsContextAndTrace(t *testing.T) {
	tr := &stubTransport{resp: protocol.Response{Estado: 1, Proceso: []string{"a"}, Contexto: map[string]any{"k": "v"}}}
	c, r := newBasic(t, tr)
	c.Initialize()
	c.SubmitTurn(context.Background(), "1")
	c.SubmitTurn(context.Background(), "2")

	if tr.requests[1].Contexto != nil {
		t.Fatalf("expected no contexto in basic variant, got %#v", tr.requests[1].Contexto)
	}
	if got := r.count("trace", RoleBot); got != 0 {
		t.Fatalf("expected no trace in basic variant, got %d", got)
	}
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	c, r := newBasic(t, &stubTransport{})
	c.Initialize()

	first, _ := c.Begin("11111111")
	second, _ := c.Begin("22222222")

	if out := c.Resolve(first, protocol.Response{Estado: 2, MostrarReinicio: true}, nil); !out.Stale {
		t.Fatalf("expected first response to be stale, got %+v", out)
	}
	if c.Locked() {
		t.Fatalf("stale response must not lock input")
	}
	out := c.Resolve(second, protocol.Response{Estado: 5, Mensaje: "segundo"}, nil)
	if !out.Applied || c.Snapshot().State.Code() != 5 {
		t.Fatalf("expected second response applied, got %+v", out)
	}
	if last := r.calls[len(r.calls)-1]; last.text != "segundo" {
		t.Fatalf("expected last bot turn from second response, got %+v", last)
	}
}

func TestResponseAfterRestartIsDiscarded(t *testing.T) {
	c, r := newBasic(t, &stubTransport{})
	c.Initialize()

	p, _ := c.Begin("12345678")
	c.Restart()
	calls := len(r.calls)

	if out := c.Resolve(p, protocol.Response{Estado: 2, Mensaje: "late"}, nil); !out.Stale {
		t.Fatalf("expected stale outcome, got %+v", out)
	}
	if len(r.calls) != calls {
		t.Fatalf("expected no renderer calls for stale response")
	}
	if c.Snapshot().State.Kind() != KindAwaitingFirstInput {
		t.Fatalf("expected initial state to survive late response")
	}
}

func TestMenuReveal(t *testing.T) {
	r := &recordingRenderer{}
	c := NewController(DefaultConfig(VariantContextual), r, &stubTransport{})

	reveal := c.Initialize()
	if reveal == nil || reveal.Delay != DefaultMenuDelay {
		t.Fatalf("expected reveal with default delay, got %+v", reveal)
	}
	if !c.RevealMenu(reveal) {
		t.Fatalf("expected reveal to apply")
	}
	if got := r.count("append", RoleBot); got != 2 {
		t.Fatalf("expected greeting and menu, got %d bot turns", got)
	}
	snap := c.Snapshot()
	if snap.State.Kind() != KindMainMenu || snap.State.Code() != 3 {
		t.Fatalf("expected main menu state 3, got %s", snap.State)
	}
}

func TestMenuRevealAfterRestartIsDiscarded(t *testing.T) {
	r := &recordingRenderer{}
	c := NewController(DefaultConfig(VariantContextual), r, &stubTransport{})

	old := c.Initialize()
	fresh := c.Restart()
	if c.RevealMenu(old) {
		t.Fatalf("expected reveal from before restart to be discarded")
	}
	if c.Snapshot().State.Kind() != KindAwaitingFirstInput {
		t.Fatalf("expected state untouched by discarded reveal")
	}
	if !c.RevealMenu(fresh) {
		t.Fatalf("expected reveal issued by restart to apply")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	tr := &stubTransport{resp: protocol.Response{Estado: 4, Contexto: map[string]any{"nested": map[string]any{"a": 1.0}}}}
	r := &recordingRenderer{}
	c := NewController(DefaultConfig(VariantContextual), r, tr)
	c.Initialize()
	c.SubmitTurn(context.Background(), "x")

	snap := c.Snapshot()
	snap.Context["nested"].(map[string]any)["a"] = 2.0
	if got := c.Snapshot().Context["nested"].(map[string]any)["a"]; got != 1.0 {
		t.Fatalf("expected session context unchanged, got %v", got)
	}
}
