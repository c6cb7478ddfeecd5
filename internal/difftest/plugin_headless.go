//go:build !linux

package difftest

import "fmt"

// LoadPlugin always fails on non-Linux platforms; emu reports the error
// at startup when --diff is given, instead of the build failing outright.
func LoadPlugin(path string) (Reference, error) {
	return nil, fmt.Errorf("difftest: plugin-based reference emulators are not supported on this platform")
}
