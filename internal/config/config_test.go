package config

import "testing"

func TestResolveFallsBackToEnv(t *testing.T) {
	t.Setenv(diskImageEnvVar, "/tmp/env.img")
	got := Resolve(RunConfig{})
	if got.DiskImage != "/tmp/env.img" {
		t.Fatalf("DiskImage = %q, want /tmp/env.img", got.DiskImage)
	}
}

func TestResolvePrefersExplicitFlag(t *testing.T) {
	t.Setenv(diskImageEnvVar, "/tmp/env.img")
	got := Resolve(RunConfig{DiskImage: "/tmp/flag.img"})
	if got.DiskImage != "/tmp/flag.img" {
		t.Fatalf("DiskImage = %q, want /tmp/flag.img (flag should win)", got.DiskImage)
	}
}
