package conversation

// Role identifies who authored a transcript turn.
type Role int

const (
	RoleUser Role = iota
	RoleBot
)

func (r Role) String() string {
	if r == RoleUser {
		return "user"
	}
	return "bot"
}

// Session is the client-side view of one scripted conversation. It lives
// only in memory and is reset on restart.
type Session struct {
	State      State
	Context    map[string]any
	Terminated bool
}

// Snapshot returns a copy of s whose context can be mutated freely.
func (s Session) Snapshot() Session {
	return Session{
		State:      s.State,
		Context:    copyContext(s.Context),
		Terminated: s.Terminated,
	}
}

// copyContext deep-copies the nested maps and slices produced by
// encoding/json. A nil input yields an empty mapping.
func copyContext(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyContext(t)
	case []any:
		cp := make([]any, len(t))
		for i := range t {
			cp[i] = copyValue(t[i])
		}
		return cp
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
