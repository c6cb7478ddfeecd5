package sdb

import (
	"fmt"
	"strings"

	"github.com/ycli90/riscv32-iss/internal/elfsym"
)

// maxCallDepth bounds the shadow call stack; a guest that recurses past
// it has a stack bug worth surfacing loudly rather than growing forever.
const maxCallDepth = 100

// maxTraceEvents is the ring buffer capacity for "ftrace" output; once
// full, the oldest event is overwritten.
const maxTraceEvents = 100

// TraceEvent is one CALL or RET line, with the caller's nesting depth
// recorded so the monitor can indent by level.
type TraceEvent struct {
	IsCall bool
	PC     uint32
	Target uint32
	Level  int
	Name   string
}

// FunctionTracer matches CALL/RET targets against an ELF's STT_FUNC
// symbol ranges and keeps a bounded shadow call stack plus an
// overwrite-oldest ring buffer of the last maxTraceEvents transitions.
type FunctionTracer struct {
	funcs []elfsym.Func

	stack []uint32 // call target addresses, depth == len(stack)

	events   [maxTraceEvents]TraceEvent
	evHead   int // next slot to write
	evCount  int
}

// NewFunctionTracer returns a tracer with no symbols loaded; LoadSymbols
// must be called before function names resolve to anything but an
// address.
func NewFunctionTracer() *FunctionTracer {
	return &FunctionTracer{}
}

// LoadSymbols appends every symbol elfsym.Load reads from path (STT_FUNC
// symbols matched by range, all others by exact address) to the
// tracer's table, so that --elf=F1,F2,... can be satisfied with one
// call per file.
func (t *FunctionTracer) LoadSymbols(path string) error {
	funcs, err := elfsym.Load(path)
	if err != nil {
		return err
	}
	t.funcs = append(t.funcs, funcs...)
	return nil
}

// FuncName resolves addr to a symbol name: function symbols match by
// [Start,End) range, other symbols only by exact address.
func (t *FunctionTracer) FuncName(addr uint32) (string, bool) {
	for _, f := range t.funcs {
		if f.IsFunction {
			if addr >= f.Start && addr < f.End {
				return f.Name, true
			}
			continue
		}
		if addr == f.Start {
			return f.Name, true
		}
	}
	return "", false
}

// RecordCall pushes the call target onto the shadow stack and appends a
// CALL event. level is the call depth before the push; a return's level
// is the depth after its pop, so a call and its matching return are
// printed at the same indentation.
func (t *FunctionTracer) RecordCall(pc, target uint32) error {
	level := len(t.stack)
	if level >= maxCallDepth {
		return fmt.Errorf("sdb: function call stack overflow (depth %d)", maxCallDepth)
	}
	t.stack = append(t.stack, target)
	name, _ := t.FuncName(target)
	t.push(TraceEvent{IsCall: true, PC: pc, Target: target, Level: level, Name: name})
	return nil
}

// RecordRet pops the shadow stack and appends a RET event. A return
// with an empty stack is a fatal shadow-stack underflow.
func (t *FunctionTracer) RecordRet(pc, target uint32) error {
	if len(t.stack) == 0 {
		return fmt.Errorf("sdb: return from empty function call stack")
	}
	t.stack = t.stack[:len(t.stack)-1]
	level := len(t.stack)
	name, _ := t.FuncName(target)
	t.push(TraceEvent{IsCall: false, PC: pc, Target: target, Level: level, Name: name})
	return nil
}

func (t *FunctionTracer) push(e TraceEvent) {
	t.events[t.evHead] = e
	t.evHead = (t.evHead + 1) % maxTraceEvents
	if t.evCount < maxTraceEvents {
		t.evCount++
	}
}

// Events returns the retained trace in chronological order.
func (t *FunctionTracer) Events() []TraceEvent {
	out := make([]TraceEvent, 0, t.evCount)
	start := (t.evHead - t.evCount + maxTraceEvents) % maxTraceEvents
	for i := 0; i < t.evCount; i++ {
		out = append(out, t.events[(start+i)%maxTraceEvents])
	}
	return out
}

// Stack returns the current shadow call stack, innermost frame last.
func (t *FunctionTracer) Stack() []uint32 {
	out := make([]uint32, len(t.stack))
	copy(out, t.stack)
	return out
}

// SetStack replaces the shadow call stack wholesale, used when a
// snapshot is restored. It does not touch the event ring buffer.
func (t *FunctionTracer) SetStack(stack []uint32) {
	t.stack = append([]uint32(nil), stack...)
}

// FormatEvents renders the retained trace one line per event, indented
// by nesting level, e.g. "  0x80000104 call [memcpy@0x8000123c]".
func (t *FunctionTracer) FormatEvents() string {
	var b strings.Builder
	for _, e := range t.Events() {
		indent := strings.Repeat("  ", e.Level)
		label := e.Name
		if label == "" {
			label = fmt.Sprintf("0x%x", e.Target)
		}
		if e.IsCall {
			fmt.Fprintf(&b, "%s0x%08x call [%s@0x%08x]\n", indent, e.PC, label, e.Target)
		} else {
			fmt.Fprintf(&b, "%s0x%08x ret  [%s@0x%08x]\n", indent, e.PC, label, e.Target)
		}
	}
	return b.String()
}
