package sdb

import (
	"testing"

	"github.com/ycli90/riscv32-iss/internal/elfsym"
)

func TestFunctionTracerCallRetLevels(t *testing.T) {
	ft := NewFunctionTracer()
	if err := ft.RecordCall(0x100, 0x200); err != nil {
		t.Fatalf("RecordCall: %v", err)
	}
	if err := ft.RecordCall(0x204, 0x300); err != nil {
		t.Fatalf("RecordCall: %v", err)
	}
	if err := ft.RecordRet(0x304, 0x208); err != nil {
		t.Fatalf("RecordRet: %v", err)
	}
	if err := ft.RecordRet(0x20c, 0x104); err != nil {
		t.Fatalf("RecordRet: %v", err)
	}

	events := ft.Events()
	if len(events) != 4 {
		t.Fatalf("len(events) = %d, want 4", len(events))
	}
	want := []int{0, 1, 1, 0}
	for i, e := range events {
		if e.Level != want[i] {
			t.Fatalf("events[%d].Level = %d, want %d", i, e.Level, want[i])
		}
	}
	if len(ft.Stack()) != 0 {
		t.Fatalf("Stack() not empty after matching call/ret pairs")
	}
}

func TestFunctionTracerOverflowFatal(t *testing.T) {
	ft := NewFunctionTracer()
	for i := 0; i < maxCallDepth; i++ {
		if err := ft.RecordCall(uint32(i), uint32(i)+1); err != nil {
			t.Fatalf("RecordCall depth %d: %v", i, err)
		}
	}
	if err := ft.RecordCall(0, 0); err == nil {
		t.Fatalf("RecordCall past maxCallDepth did not error")
	}
}

func TestFunctionTracerRetUnderflowFatal(t *testing.T) {
	ft := NewFunctionTracer()
	if err := ft.RecordRet(0, 0); err == nil {
		t.Fatalf("RecordRet on an empty shadow stack did not error")
	}
}

func TestFunctionTracerRingBufferOverwritesOldest(t *testing.T) {
	ft := NewFunctionTracer()
	for i := 0; i < maxTraceEvents+10; i++ {
		if err := ft.RecordCall(uint32(i), uint32(i)); err != nil {
			t.Fatalf("RecordCall: %v", err)
		}
		if err := ft.RecordRet(uint32(i), uint32(i)); err != nil {
			t.Fatalf("RecordRet: %v", err)
		}
	}
	events := ft.Events()
	if len(events) != maxTraceEvents {
		t.Fatalf("len(events) = %d, want %d", len(events), maxTraceEvents)
	}
	// 110 call/ret pairs make 220 events; the last 100 are events
	// 120..219, so the oldest retained one is the call of iteration 60.
	if !events[0].IsCall || events[0].PC != 60 {
		t.Fatalf("events[0] = %+v, want the call at pc 60", events[0])
	}
}

func TestFunctionTracerFuncNameRangeMatch(t *testing.T) {
	ft := &FunctionTracer{funcs: []elfsym.Func{
		{Name: "main", Start: 0x1000, End: 0x1020, IsFunction: true},
		{Name: "_start", Start: 0x800, End: 0x800, IsFunction: false},
	}}
	if name, ok := ft.FuncName(0x1010); !ok || name != "main" {
		t.Fatalf("FuncName(0x1010) = %q, %v, want \"main\", true", name, ok)
	}
	if _, ok := ft.FuncName(0x1020); ok {
		t.Fatalf("FuncName(0x1020) matched, range end should be exclusive")
	}
	if name, ok := ft.FuncName(0x800); !ok || name != "_start" {
		t.Fatalf("FuncName(0x800) = %q, %v, want \"_start\", true", name, ok)
	}
}
