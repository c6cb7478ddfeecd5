// Package config assembles one immutable RunConfig from CLI flags and
// the "diskimg" environment variable, the way galago's cmd/galago binds
// cobra flags into package-level run state before handing off to the
// emulator.
package config

import "os"

// RunConfig is everything a session needs to boot: the guest image to
// load, where logs go, whether to run headless (batch) or interactively,
// the difftest reference .so to attach at startup, and the attached
// disk image (if any).
type RunConfig struct {
	ImagePath  string   // positional ELF image to load and execute, "" if --img is used instead
	RawImage   string   // --img: raw binary loaded at the reset vector, bypassing ELF parsing
	ELFSymbols []string // --elf: additional ELF files to source ftrace symbols from
	LogPath    string   // "" means stderr
	Debug      bool
	Batch      bool   // run to completion with no REPL
	DiffPlugin string // path to a difftest reference .so, "" disables it
	DiffPort   int    // reference port, accepted for CLI parity (unused by the plugin-based reference)
	DiskImage  string // backing file for the disk device, "" means absent
}

// diskImageEnvVar is the environment variable a disk image path falls
// back to when --diskimg isn't passed on the command line.
const diskImageEnvVar = "diskimg"

// Resolve fills in DiskImage from the environment when the flag-sourced
// cfg.DiskImage is empty, leaving an explicit flag value untouched.
func Resolve(cfg RunConfig) RunConfig {
	if cfg.DiskImage == "" {
		cfg.DiskImage = os.Getenv(diskImageEnvVar)
	}
	return cfg
}
