package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func newSimCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	configFile, preset, noEmitter = "", "", false
	cmd := &cobra.Command{Use: "test"}
	addSimFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cmd
}

func TestResolveConfigDefaults(t *testing.T) {
	cfg, err := resolveConfig(newSimCmd(t))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if cfg.Physics.Substeps != 1 || !cfg.Emitter.Enabled {
		t.Errorf("unexpected defaults: %+v", cfg.Physics)
	}
}

func TestResolveConfigPresetWithOverrides(t *testing.T) {
	cfg, err := resolveConfig(newSimCmd(t, "--preset", "fountain", "--iterations", "3", "--no-emitter"))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if cfg.Physics.Substeps != 6 {
		t.Errorf("expected preset substeps 6 to survive, got %d", cfg.Physics.Substeps)
	}
	if cfg.Physics.Iterations != 3 {
		t.Errorf("expected flag iterations 3, got %d", cfg.Physics.Iterations)
	}
	if cfg.Emitter.Enabled {
		t.Error("expected emitter disabled")
	}
}

func TestResolveConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	if err := os.WriteFile(path, []byte("frames: 42\nphysics:\n  substeps: 5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := resolveConfig(newSimCmd(t, "--config", path, "--substeps", "2"))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if cfg.Frames != 42 {
		t.Errorf("expected frames from file, got %d", cfg.Frames)
	}
	if cfg.Physics.Substeps != 2 {
		t.Errorf("expected flag to override file, got %d", cfg.Physics.Substeps)
	}
}

func TestResolveConfigPresetAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("frames: 42\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := resolveConfig(newSimCmd(t, "--preset", "box", "--config", path))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if cfg.Boundary.Shape != "rect" || cfg.Physics.Substeps != 4 {
		t.Errorf("expected box preset under the file, got shape %s substeps %d", cfg.Boundary.Shape, cfg.Physics.Substeps)
	}
	if cfg.Frames != 42 {
		t.Errorf("expected frames from file, got %d", cfg.Frames)
	}
}

func TestResolveConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown preset", []string{"--preset", "volcano"}},
		{"bad solver", []string{"--solver", "newton"}},
		{"zero substeps", []string{"--substeps", "0"}},
		{"zero frames", []string{"--frames", "0"}},
		{"missing file", []string{"--config", "/nonexistent/sim.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := resolveConfig(newSimCmd(t, tt.args...)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger(true, "debug"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := newLogger(false, "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
