package fs

import (
	"fmt"
	"strings"
	"sync"
)

// TraceEvent records a single [Chaos] operation.
//
// Events are recorded for passthrough outcomes as well as injected ones, so
// tests can assert on what the caller did (e.g. "no file.seek happened"),
// not only on what failed.
type TraceEvent struct {
	// Seq is the monotonically increasing sequence number.
	Seq uint64
	// Op is the operation name ("open", "create", "file.seek", "file.close", ...).
	Op string
	// Path is the filesystem path involved.
	Path string
	// Err is the error returned by the operation (nil for success).
	Err error
	// Injected is true if Chaos altered the operation's behavior.
	Injected bool
	// Kind is a short label: "ok", "fail", "eof", "short_read",
	// "partial_write", "double_close".
	Kind string
	// Attrs holds extra details such as offset, whence or errno.
	Attrs []TraceAttr
}

// TraceAttr is a key-value pair for trace event context.
type TraceAttr struct {
	Key   string
	Value string
}

// Attr returns the value of the first attribute named key, or "".
func (e TraceEvent) Attr(key string) string {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value
		}
	}

	return ""
}

func (e TraceEvent) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "#%d", e.Seq)

	if e.Injected {
		fmt.Fprintf(&sb, " [CHAOS:%s]", e.Kind)
	}

	fmt.Fprintf(&sb, " %s", e.Op)

	if e.Path != "" {
		fmt.Fprintf(&sb, " path=%q", e.Path)
	}

	for _, a := range e.Attrs {
		fmt.Fprintf(&sb, " %s=%s", a.Key, a.Value)
	}

	if !e.Injected {
		sb.WriteString(" " + e.Kind)
	}

	if e.Err != nil {
		fmt.Fprintf(&sb, " err=%v", e.Err)
	}

	return sb.String()
}

// chaosTrace is a bounded ring of [TraceEvent]. A nil *chaosTrace records
// nothing.
type chaosTrace struct {
	mu     sync.Mutex
	events []TraceEvent
	start  int
	seq    uint64
}

func newChaosTrace(capacity int) *chaosTrace {
	if capacity <= 0 {
		return nil
	}

	return &chaosTrace{events: make([]TraceEvent, 0, capacity)}
}

func (t *chaosTrace) add(op, path, kind string, err error, injected bool, attrs ...TraceAttr) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++

	event := TraceEvent{
		Seq:      t.seq,
		Op:       op,
		Path:     path,
		Err:      err,
		Injected: injected,
		Kind:     kind,
		Attrs:    attrs,
	}

	if len(t.events) < cap(t.events) {
		t.events = append(t.events, event)

		return
	}

	t.events[t.start] = event
	t.start = (t.start + 1) % len(t.events)
}

func (t *chaosTrace) snapshot() []TraceEvent {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]TraceEvent, 0, len(t.events))
	out = append(out, t.events[t.start:]...)
	out = append(out, t.events[:t.start]...)

	return out
}

func (t *chaosTrace) String() string {
	events := t.snapshot()

	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.String()
	}

	return strings.Join(lines, "\n")
}

func boolKind(ok bool) string {
	if ok {
		return "ok"
	}

	return "fail"
}
