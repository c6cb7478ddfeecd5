package sdb

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// cmdTestExpr runs an expression regression file: each line is
// "EXPECTED EXPRESSION...", EXPECTED a decimal uint32 and the rest the
// expression text. Every line is evaluated against the live machine and
// mismatches are reported; it never aborts on the first failure so a
// whole file's worth of regressions show up in one pass.
func (mon *Monitor) cmdTestExpr(args []string) (Result, error) {
	if len(args) != 1 {
		return Result{}, fmt.Errorf("sdb: test_expr: usage: test_expr PATH")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return Result{}, fmt.Errorf("sdb: test_expr: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	total, failed := 0, 0
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			fmt.Fprintf(&b, "line %d: malformed (want \"EXPECTED EXPR\")\n", lineNo)
			failed++
			total++
			continue
		}
		want, werr := strconv.ParseUint(parts[0], 10, 32)
		if werr != nil {
			fmt.Fprintf(&b, "line %d: bad expected value %q\n", lineNo, parts[0])
			failed++
			total++
			continue
		}
		total++
		got, eerr := mon.evalExpr(parts[1])
		if eerr != nil {
			fmt.Fprintf(&b, "line %d: %q: %v\n", lineNo, parts[1], eerr)
			failed++
			continue
		}
		if uint32(want) != got {
			fmt.Fprintf(&b, "line %d: %q = %d, want %d\n", lineNo, parts[1], got, want)
			failed++
		}
	}
	if err := sc.Err(); err != nil {
		return Result{}, fmt.Errorf("sdb: test_expr: %w", err)
	}
	fmt.Fprintf(&b, "%d/%d passed\n", total-failed, total)
	return Result{Output: b.String()}, nil
}
