package machine

import (
	"fmt"
	"io"
)

// regGroup names a contiguous run of abiNames sharing an ABI role, so
// register dumps group by role instead of a flat x0..x31 list.
type regGroup struct {
	label string
	from  int
	to    int // inclusive
}

var regGroups = []regGroup{
	{"zero", 0, 0},
	{"ret", 1, 1},
	{"stack", 2, 2},
	{"global", 3, 3},
	{"thread", 4, 4},
	{"temp", 5, 7},
	{"saved", 8, 9},
	{"arg", 10, 17},
	{"saved", 18, 27},
	{"temp", 28, 31},
}

// DisplayRegisters prints pc, every GPR grouped by ABI role, every CSR,
// and the current privilege mode.
func (c *CPUState) DisplayRegisters(w io.Writer) {
	fmt.Fprintf(w, "pc       0x%08x\n", c.PC)
	for _, g := range regGroups {
		for i := g.from; i <= g.to; i++ {
			fmt.Fprintf(w, "%-8s 0x%08x  (%s)\n", abiNames[i], c.GPR[i], g.label)
		}
	}
	for i, name := range csrNames {
		fmt.Fprintf(w, "%-8s 0x%08x\n", name, c.CSR[i])
	}
	fmt.Fprintf(w, "mode     %s\n", modeName(c.Mode))
}

func modeName(mode int) string {
	switch mode {
	case ModeU:
		return "U"
	case ModeS:
		return "S"
	case ModeM:
		return "M"
	default:
		return fmt.Sprintf("?(%d)", mode)
	}
}
