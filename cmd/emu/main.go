// Command emu boots a single RV32I/M hart and either runs it to
// completion in batch mode or drops into the interactive sdb monitor.
package main

import (
	"bufio"
	"debug/elf"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ycli90/riscv32-iss/internal/config"
	"github.com/ycli90/riscv32-iss/internal/device"
	"github.com/ycli90/riscv32-iss/internal/difftest"
	"github.com/ycli90/riscv32-iss/internal/log"
	"github.com/ycli90/riscv32-iss/internal/machine"
	"github.com/ycli90/riscv32-iss/internal/sdb"
)

const (
	memBase     = 0x80000000
	memSize     = 128 * 1024 * 1024
	resetVector = memBase
)

var (
	cfg     config.RunConfig
	elfFlag string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "emu [IMAGE]",
		Short: "RV32I/M instruction set simulator with an interactive monitor",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run,
	}

	rootCmd.Flags().BoolVarP(&cfg.Batch, "batch", "b", false, "run to completion with no REPL")
	rootCmd.Flags().StringVarP(&cfg.LogPath, "log", "l", "", "log file path (default: stderr)")
	rootCmd.Flags().StringVarP(&cfg.DiffPlugin, "diff", "d", "", "difftest reference emulator shared library (.so)")
	rootCmd.Flags().IntVarP(&cfg.DiffPort, "port", "p", 1234, "reference port")
	rootCmd.Flags().StringVar(&cfg.RawImage, "img", "", "raw image, loaded at the reset vector")
	rootCmd.Flags().StringVar(&elfFlag, "elf", "", "comma-separated ELF files for symbols")
	rootCmd.Flags().StringVar(&cfg.DiskImage, "diskimg", "", "disk image path (falls back to $diskimg)")
	rootCmd.Flags().BoolVar(&cfg.Debug, "debug", false, "enable debug-level logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg.ImagePath = args[0]
	}
	if elfFlag != "" {
		cfg.ELFSymbols = strings.Split(elfFlag, ",")
	}
	cfg = config.Resolve(cfg)

	lg, err := log.Init(cfg.LogPath, cfg.Debug)
	if err != nil {
		return fmt.Errorf("emu: %w", err)
	}
	defer lg.Sync()

	m := machine.NewMachine(memBase, memSize, resetVector)
	switch {
	case cfg.RawImage != "":
		if err := loadRaw(m, cfg.RawImage); err != nil {
			return fmt.Errorf("emu: %w", err)
		}
	case cfg.ImagePath != "":
		if err := loadELF(m, cfg.ImagePath); err != nil {
			return fmt.Errorf("emu: %w", err)
		}
	default:
		return fmt.Errorf("emu: no image given (pass IMAGE or --img)")
	}

	disk, err := device.NewDisk(cfg.DiskImage, m.Bus)
	if err != nil {
		return fmt.Errorf("emu: %w", err)
	}
	defer disk.Close()
	m.Bus.MapDevice("disk", 0xA0000000, device.DiskRegsSize, disk)

	var audioPlayer device.Player
	if player, err := device.NewOtoPlayer(44100); err != nil {
		lg.Warn(fmt.Sprintf("audio backend unavailable: %v", err))
	} else {
		audioPlayer = player
	}
	audio := device.NewAudioDevice(audioPlayer)
	defer audio.Close()
	m.Bus.MapDevice("audio", 0xA1000000, device.AudioRegsSize, audio)

	var diffSession *difftest.Session
	if cfg.DiffPlugin != "" {
		ref, err := difftest.LoadPlugin(cfg.DiffPlugin)
		if err != nil {
			return fmt.Errorf("emu: %w", err)
		}
		diffSession = difftest.NewSession(ref)
		defer diffSession.Close()
	}

	mon := sdb.NewMonitor(m, diffWrapper{diffSession}, lg)
	if cfg.ImagePath != "" {
		if err := mon.FT.LoadSymbols(cfg.ImagePath); err != nil {
			lg.Warn(fmt.Sprintf("no symbols from image: %v", err))
		}
	}
	for _, p := range cfg.ELFSymbols {
		if err := mon.FT.LoadSymbols(p); err != nil {
			return fmt.Errorf("emu: %w", err)
		}
	}
	if diffSession != nil {
		if err := diffSession.Attach(m); err != nil {
			lg.Warn(fmt.Sprintf("difftest attach failed: %v", err))
		}
	}

	if cfg.Batch {
		return runBatch(mon)
	}
	return runREPL(mon)
}

// diffWrapper lets a possibly-nil *difftest.Session satisfy
// sdb.DiffTest without a nil-interface trap: a nil *Session wrapped
// here still answers Attached()==false instead of panicking.
type diffWrapper struct {
	s *difftest.Session
}

func (d diffWrapper) Attach(m *machine.Machine) error {
	if d.s == nil {
		return fmt.Errorf("emu: no difftest plugin configured (pass --diff)")
	}
	return d.s.Attach(m)
}
func (d diffWrapper) Detach() {
	if d.s != nil {
		d.s.Detach()
	}
}
func (d diffWrapper) Compare(m *machine.Machine) error {
	if d.s == nil {
		return nil
	}
	return d.s.Compare(m)
}
func (d diffWrapper) Attached() bool {
	return d.s != nil && d.s.Attached()
}
func (d diffWrapper) WriteMemory(addr uint32, length int, value uint32) error {
	if d.s == nil {
		return nil
	}
	return d.s.WriteMemory(addr, length, value)
}

func loadRaw(m *machine.Machine, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load image %s: %w", path, err)
	}
	if len(data) > len(m.Bus.RAM()) {
		return fmt.Errorf("load image %s: %d bytes exceeds %d-byte RAM", path, len(data), len(m.Bus.RAM()))
	}
	copy(m.Bus.RAM(), data)
	return nil
}

// loadELF copies every PT_LOAD segment of a 32-bit little-endian ELF
// image into RAM at its physical address minus memBase, and points the
// CPU's PC at the ELF entry point instead of the bus's fixed reset
// vector.
func loadELF(m *machine.Machine, path string) error {
	f, err := elf.Open(path)
	if err != nil {
		return fmt.Errorf("load ELF %s: %w", path, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 {
		return fmt.Errorf("load ELF %s: not a 32-bit ELF", path)
	}

	ram := m.Bus.RAM()
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		off := uint32(prog.Paddr) - memBase
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return fmt.Errorf("load ELF %s: segment at %#x: %w", path, prog.Paddr, err)
		}
		if int(off)+len(data) > len(ram) {
			return fmt.Errorf("load ELF %s: segment at %#x exceeds RAM", path, prog.Paddr)
		}
		copy(ram[off:], data)
	}

	m.CPU.PC = uint32(f.Entry)
	return nil
}

func runBatch(mon *sdb.Monitor) error {
	err := mon.Run()
	switch {
	case err == nil:
		return nil
	case err == sdb.ErrHalted:
		fmt.Printf("program exited with code %d\n", mon.ExitCode)
		return nil
	default:
		return err
	}
}

func runREPL(mon *sdb.Monitor) error {
	fmt.Println("emu monitor — type \"help\" for a command list")
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("(emu) ")
		if !sc.Scan() {
			return sc.Err()
		}
		res, err := mon.Dispatch(sc.Text())
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		if res.Output != "" {
			fmt.Println(res.Output)
		}
		if res.Quit {
			return nil
		}
	}
}
