//go:build linux

package difftest

import (
	"fmt"
	"plugin"

	"github.com/ycli90/riscv32-iss/internal/machine"
)

// pluginRef adapts a reference emulator built as a Go plugin (.so) to
// the Reference interface. The plugin must export the eight symbols this
// type looks up; an emulator that wants to serve as a difftest
// reference implements them once and builds with `go build -buildmode=plugin`.
type pluginRef struct {
	setGPR    func([machine.NumGPR]uint32)
	setPC     func(uint32)
	setMemory func(uint32, []byte)
	step      func() error
	gpr       func() [machine.NumGPR]uint32
	pc        func() uint32
	execRaw   func(uint32) error
	close     func()
}

// LoadPlugin opens a reference emulator .so and binds its exported
// functions. Symbol names are fixed: SetGPR, SetPC, SetMemory, Step,
// GPR, PC, ExecRaw, Close.
func LoadPlugin(path string) (Reference, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("difftest: open plugin %s: %w", path, err)
	}

	r := &pluginRef{}
	lookups := []struct {
		name string
		dst  interface{}
	}{
		{"SetGPR", &r.setGPR},
		{"SetPC", &r.setPC},
		{"SetMemory", &r.setMemory},
		{"Step", &r.step},
		{"GPR", &r.gpr},
		{"PC", &r.pc},
		{"ExecRaw", &r.execRaw},
		{"Close", &r.close},
	}
	for _, l := range lookups {
		sym, err := p.Lookup(l.name)
		if err != nil {
			return nil, fmt.Errorf("difftest: plugin %s: missing symbol %s: %w", path, l.name, err)
		}
		if err := bindSymbol(sym, l.dst); err != nil {
			return nil, fmt.Errorf("difftest: plugin %s: symbol %s: %w", path, l.name, err)
		}
	}
	return r, nil
}

func bindSymbol(sym plugin.Symbol, dst interface{}) error {
	switch d := dst.(type) {
	case *func([machine.NumGPR]uint32):
		f, ok := sym.(func([machine.NumGPR]uint32))
		if !ok {
			return fmt.Errorf("unexpected type %T", sym)
		}
		*d = f
	case *func(uint32):
		f, ok := sym.(func(uint32))
		if !ok {
			return fmt.Errorf("unexpected type %T", sym)
		}
		*d = f
	case *func(uint32, []byte):
		f, ok := sym.(func(uint32, []byte))
		if !ok {
			return fmt.Errorf("unexpected type %T", sym)
		}
		*d = f
	case *func() error:
		f, ok := sym.(func() error)
		if !ok {
			return fmt.Errorf("unexpected type %T", sym)
		}
		*d = f
	case *func() [machine.NumGPR]uint32:
		f, ok := sym.(func() [machine.NumGPR]uint32)
		if !ok {
			return fmt.Errorf("unexpected type %T", sym)
		}
		*d = f
	case *func() uint32:
		f, ok := sym.(func() uint32)
		if !ok {
			return fmt.Errorf("unexpected type %T", sym)
		}
		*d = f
	case *func(uint32) error:
		f, ok := sym.(func(uint32) error)
		if !ok {
			return fmt.Errorf("unexpected type %T", sym)
		}
		*d = f
	case *func():
		f, ok := sym.(func())
		if !ok {
			return fmt.Errorf("unexpected type %T", sym)
		}
		*d = f
	default:
		return fmt.Errorf("difftest: unhandled symbol destination type %T", dst)
	}
	return nil
}

func (r *pluginRef) SetGPR(gpr [machine.NumGPR]uint32)     { r.setGPR(gpr) }
func (r *pluginRef) SetPC(pc uint32)                       { r.setPC(pc) }
func (r *pluginRef) SetMemory(base uint32, ram []byte)     { r.setMemory(base, ram) }
func (r *pluginRef) Step() error                           { return r.step() }
func (r *pluginRef) GPR() [machine.NumGPR]uint32           { return r.gpr() }
func (r *pluginRef) PC() uint32                            { return r.pc() }
func (r *pluginRef) ExecRaw(word uint32) error             { return r.execRaw(word) }
func (r *pluginRef) Close()                                { r.close() }
