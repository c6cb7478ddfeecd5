package sdb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ycli90/riscv32-iss/internal/isa"
)

const helpText = `available commands:
  help                 show this message
  c                     continue execution until a stop condition
  q                     quit the monitor
  si [N]                step N instructions (default 1)
  info r                print registers
  info w                list active watchpoints
  p EXPR                evaluate EXPR and print its value
  x N EXPR              print N words starting at the address EXPR
  w EXPR                set a watchpoint on EXPR
  d N                   delete watchpoint N
  itrace                print the retired-instruction ring buffer
  ftrace                print the function call/return trace
  fstack                print the current shadow call stack
  attach                attach a difftest reference emulator
  detach                detach the difftest reference emulator
  save PATH             write a snapshot to PATH
  load PATH             restore a snapshot from PATH
  test_expr PATH        run an expression test file, report mismatches`

// Result is what one dispatched command produced: text for the REPL to
// print, and whether the monitor should exit afterward.
type Result struct {
	Output string
	Quit   bool
}

// Dispatch parses and executes one command line.
func (mon *Monitor) Dispatch(line string) (Result, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Result{}, nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		return Result{Output: helpText}, nil

	case "q":
		return Result{Quit: true}, nil

	case "c":
		err := mon.Run()
		return mon.runOutcome(err)

	case "si":
		n := 1
		if len(args) > 0 {
			v, perr := strconv.Atoi(args[0])
			if perr != nil {
				return Result{}, fmt.Errorf("sdb: si: bad count %q", args[0])
			}
			n = v
		}
		err := mon.Step(n)
		return mon.runOutcome(err)

	case "info":
		if len(args) != 1 {
			return Result{}, fmt.Errorf("sdb: info: expected r or w")
		}
		return mon.cmdInfo(args[0])

	case "p":
		return mon.cmdPrint(strings.Join(args, " "))

	case "x":
		return mon.cmdExamine(args)

	case "w":
		return mon.cmdWatch(strings.Join(args, " "))

	case "d":
		return mon.cmdDelete(args)

	case "itrace":
		return Result{Output: strings.Join(mon.Hist.Lines(), "\n")}, nil

	case "ftrace":
		return Result{Output: mon.FT.FormatEvents()}, nil

	case "fstack":
		return mon.cmdFstack()

	case "attach":
		return mon.cmdAttach()

	case "detach":
		if mon.Diff != nil {
			mon.Diff.Detach()
		}
		return Result{Output: "difftest detached"}, nil

	case "save":
		return mon.cmdSave(args)

	case "load":
		return mon.cmdLoad(args)

	case "test_expr":
		return mon.cmdTestExpr(args)

	default:
		return Result{}, fmt.Errorf("sdb: unknown command %q (try \"help\")", cmd)
	}
}

func (mon *Monitor) runOutcome(err error) (Result, error) {
	switch {
	case err == nil:
		return Result{Output: "stopped (all instructions executed)"}, nil
	case errors.Is(err, ErrHalted):
		return Result{Output: fmt.Sprintf("program exited with code %d", mon.ExitCode)}, nil
	case errors.Is(err, isa.ErrWatchpointHit):
		return Result{Output: "stopped: watchpoint hit"}, nil
	default:
		return Result{}, err
	}
}

func (mon *Monitor) cmdInfo(which string) (Result, error) {
	switch which {
	case "r":
		var b strings.Builder
		mon.DisplayRegisters(&b)
		return Result{Output: b.String()}, nil
	case "w":
		var b strings.Builder
		for _, e := range mon.WP.List() {
			fmt.Fprintf(&b, "%d: %s\n", e.ID, e.Expr)
		}
		return Result{Output: b.String()}, nil
	default:
		return Result{}, fmt.Errorf("sdb: info: expected r or w, got %q", which)
	}
}

func (mon *Monitor) cmdPrint(expression string) (Result, error) {
	if expression == "" {
		return Result{}, fmt.Errorf("sdb: p: missing expression")
	}
	v, err := mon.evalExpr(expression)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: fmt.Sprintf("%d (0x%x)", v, v)}, nil
}

func (mon *Monitor) cmdExamine(args []string) (Result, error) {
	if len(args) < 2 {
		return Result{}, fmt.Errorf("sdb: x: usage: x N EXPR")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return Result{}, fmt.Errorf("sdb: x: bad count %q", args[0])
	}
	addr, err := mon.evalExpr(strings.Join(args[1:], " "))
	if err != nil {
		return Result{}, err
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		v, err := mon.M.VAddrRead(addr+uint32(i*4), 4)
		if err != nil {
			return Result{}, err
		}
		fmt.Fprintf(&b, "0x%08x: 0x%08x\n", addr+uint32(i*4), v)
	}
	return Result{Output: b.String()}, nil
}

func (mon *Monitor) cmdWatch(expression string) (Result, error) {
	if expression == "" {
		return Result{}, fmt.Errorf("sdb: w: missing expression")
	}
	if _, err := mon.evalExpr(expression); err != nil {
		return Result{}, err
	}
	id, err := mon.WP.Add(expression)
	if err != nil {
		return Result{}, err
	}
	// Record the new watchpoint's current value now, so the first step
	// that changes it is reported.
	_, _ = mon.WP.Check(mon.evalExpr)
	return Result{Output: fmt.Sprintf("watchpoint %d: %s", id, expression)}, nil
}

func (mon *Monitor) cmdDelete(args []string) (Result, error) {
	if len(args) != 1 {
		return Result{}, fmt.Errorf("sdb: d: usage: d N")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return Result{}, fmt.Errorf("sdb: d: bad id %q", args[0])
	}
	if !mon.WP.Delete(id) {
		return Result{}, fmt.Errorf("sdb: d: no watchpoint %d", id)
	}
	return Result{Output: fmt.Sprintf("deleted watchpoint %d", id)}, nil
}

func (mon *Monitor) cmdFstack() (Result, error) {
	var b strings.Builder
	for i, addr := range mon.FT.Stack() {
		name, _ := mon.FT.FuncName(addr)
		if name == "" {
			name = fmt.Sprintf("0x%08x", addr)
		}
		fmt.Fprintf(&b, "#%d %s\n", i, name)
	}
	return Result{Output: b.String()}, nil
}

func (mon *Monitor) cmdAttach() (Result, error) {
	if mon.Diff == nil {
		return Result{}, fmt.Errorf("sdb: attach: no difftest reference configured")
	}
	if err := mon.Diff.Attach(mon.M); err != nil {
		return Result{}, err
	}
	return Result{Output: "difftest attached"}, nil
}

func (mon *Monitor) cmdSave(args []string) (Result, error) {
	if len(args) != 1 {
		return Result{}, fmt.Errorf("sdb: save: usage: save PATH")
	}
	if err := Save(args[0], mon.M, mon.FT); err != nil {
		return Result{}, err
	}
	return Result{Output: fmt.Sprintf("saved to %s", args[0])}, nil
}

func (mon *Monitor) cmdLoad(args []string) (Result, error) {
	if len(args) != 1 {
		return Result{}, fmt.Errorf("sdb: load: usage: load PATH")
	}
	stack, err := Load(args[0], mon.M)
	if err != nil {
		return Result{}, err
	}
	mon.FT.SetStack(stack)
	mon.Halted = false
	if mon.Diff != nil {
		if err := mon.Diff.Attach(mon.M); err != nil && mon.Log != nil {
			mon.Log.Warn(fmt.Sprintf("difftest resync after load failed: %v", err))
		}
	}
	return Result{Output: fmt.Sprintf("loaded from %s", args[0])}, nil
}
