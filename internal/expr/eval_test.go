package expr

import (
	"testing"
)

type fakeCtx struct {
	regs map[string]uint32
	mem  map[uint32]uint32
}

func (f *fakeCtx) RegisterValue(name string) (uint32, bool) {
	v, ok := f.regs[name]
	return v, ok
}

func (f *fakeCtx) ReadWord(addr uint32) (uint32, error) {
	return f.mem[addr], nil
}

func newFakeCtx() *fakeCtx {
	return &fakeCtx{regs: map[string]uint32{}, mem: map[uint32]uint32{}}
}

// countingCtx counts memory reads, so a test can see which operands
// were evaluated.
type countingCtx struct {
	*fakeCtx
	reads int
}

func (c *countingCtx) ReadWord(addr uint32) (uint32, error) {
	c.reads++
	return c.fakeCtx.ReadWord(addr)
}

func TestEvalArithmeticPrecedence(t *testing.T) {
	cases := []struct {
		expr string
		want uint32
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"0x10 - 0x1", 15},
		{"1 == 1 && 2 != 3", 1},
		{"-3 + 4", 1},
		{"- -3", 3},
	}
	ctx := newFakeCtx()
	for _, c := range cases {
		got, err := Eval(c.expr, ctx)
		if err != nil {
			t.Fatalf("Eval(%q) error: %v", c.expr, err)
		}
		if got != c.want {
			t.Fatalf("Eval(%q) = %d, want %d", c.expr, got, c.want)
		}
	}
}

func TestEvalRegisterAndDeref(t *testing.T) {
	ctx := newFakeCtx()
	ctx.regs["a0"] = 0x1234
	ctx.mem[0] = 0xAABBCCDD

	got, err := Eval("$a0 + 1", ctx)
	if err != nil || got != 0x1235 {
		t.Fatalf("Eval($a0 + 1) = %d,%v want 0x1235", got, err)
	}

	got, err = Eval("*(0 + 0)", ctx)
	if err != nil || got != 0xAABBCCDD {
		t.Fatalf("Eval(*(0+0)) = 0x%x,%v want 0xAABBCCDD", got, err)
	}
}

func TestEvalUnclosedParen(t *testing.T) {
	ctx := newFakeCtx()
	if _, err := Eval("(1 + 2", ctx); err == nil {
		t.Fatalf("expected an error for an unclosed paren")
	}
}

func TestEvalUnknownRegister(t *testing.T) {
	ctx := newFakeCtx()
	if _, err := Eval("$bogus", ctx); err == nil {
		t.Fatalf("expected an error for an unknown register")
	}
}

func TestEvalDivisionByZeroIsUserError(t *testing.T) {
	ctx := newFakeCtx()
	if _, err := Eval("1 / 0", ctx); err == nil {
		t.Fatalf("expected a division-by-zero error")
	}
}

func TestEvalAndDoesNotShortCircuit(t *testing.T) {
	// Both sides of && must be evaluated even when the left side is
	// false: the deref on the right of "0 && *0" must still read memory.
	ctx := newFakeCtx()
	got, err := Eval("0 && 1", ctx)
	if err != nil || got != 0 {
		t.Fatalf("Eval(0 && 1) = %d,%v want 0", got, err)
	}

	cc := &countingCtx{fakeCtx: newFakeCtx()}
	got, err = Eval("0 && *0", cc)
	if err != nil || got != 0 {
		t.Fatalf("Eval(0 && *0) = %d,%v want 0", got, err)
	}
	if cc.reads != 1 {
		t.Fatalf("Eval(0 && *0) read memory %d times, want 1", cc.reads)
	}
}

func TestDisambiguateUnaryVsBinary(t *testing.T) {
	toks, err := tokenize("1 - -2")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if toks[1].Type != TokMinus {
		t.Fatalf("first - should stay binary, got %v", toks[1].Type)
	}
	if toks[2].Type != TokNeg {
		t.Fatalf("second - should become unary NEG, got %v", toks[2].Type)
	}
}
