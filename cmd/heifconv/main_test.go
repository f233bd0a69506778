package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"heifconv/internal/config"
	"heifconv/internal/selection"
)

func writeTestConfig(t *testing.T, base string, mutate func(*config.Config)) string {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Codec.Binary = "definitely-missing-codec"
	if mutate != nil {
		mutate(&cfg)
	}

	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootRegistersCommands(t *testing.T) {
	cmd := newRootCommand()
	want := map[string]bool{"convert": false, "deps": false, "config": false, "test-notify": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("command %q not registered", name)
		}
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v\n%s", err, out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("sample config not written: %v", err)
	}
	if !strings.Contains(string(data), "[codec]") {
		t.Fatalf("sample config missing codec section:\n%s", data)
	}
}

func TestConfigInitRefusesExistingWithoutOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if _, err := runCommand(t, "config", "init", "--path", target); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init should refuse to overwrite")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init with --overwrite failed: %v", err)
	}
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	base := t.TempDir()
	path := writeTestConfig(t, base, nil)

	out, err := runCommand(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "output_dir") {
		t.Fatalf("config show output missing paths:\n%s", out)
	}
}

func TestConvertRejectsNonHEICInput(t *testing.T) {
	base := t.TempDir()
	path := writeTestConfig(t, base, nil)
	junk := filepath.Join(base, "notes.txt")
	if err := os.WriteFile(junk, []byte("text"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	_, err := runCommand(t, "--config", path, "convert", junk)
	if !errors.Is(err, selection.ErrNoCandidates) {
		t.Fatalf("convert = %v, want %v", err, selection.ErrNoCandidates)
	}
}

func TestDepsReportsMissingCodec(t *testing.T) {
	base := t.TempDir()
	path := writeTestConfig(t, base, nil)

	out, err := runCommand(t, "--config", path, "deps")
	if err == nil {
		t.Fatalf("deps should fail for a missing codec binary:\n%s", out)
	}
	if !strings.Contains(out, "missing") {
		t.Fatalf("deps output should flag the missing binary:\n%s", out)
	}
}

func TestTestNotifyWithoutTopicIsNoop(t *testing.T) {
	base := t.TempDir()
	path := writeTestConfig(t, base, nil)

	out, err := runCommand(t, "--config", path, "test-notify")
	if err != nil {
		t.Fatalf("test-notify failed: %v", err)
	}
	if !strings.Contains(out, "not configured") {
		t.Fatalf("expected unconfigured notice, got:\n%s", out)
	}
}

func TestConvertEndToEndWithStubCodec(t *testing.T) {
	base := t.TempDir()
	stub := filepath.Join(base, "stub-codec")
	script := "#!/bin/sh\ncp \"$3\" \"$4\"\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub codec: %v", err)
	}
	path := writeTestConfig(t, base, func(cfg *config.Config) {
		cfg.Codec.Binary = stub
	})

	source := filepath.Join(base, "photo.heic")
	if err := os.WriteFile(source, []byte("heic-payload"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	out, err := runCommand(t, "--config", path, "convert", source)
	if err != nil {
		t.Fatalf("convert failed: %v\n%s", err, out)
	}

	converted := filepath.Join(base, "out", "photo.png")
	data, err := os.ReadFile(converted)
	if err != nil {
		t.Fatalf("converted file not exported: %v", err)
	}
	if string(data) != "heic-payload" {
		t.Fatalf("exported payload mismatch: %q", data)
	}
	if !strings.Contains(out, "Wrote 1 file(s)") {
		t.Fatalf("summary missing export count:\n%s", out)
	}
}

func TestConvertJSONSummary(t *testing.T) {
	base := t.TempDir()
	stub := filepath.Join(base, "stub-codec")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\ncp \"$3\" \"$4\"\n"), 0o755); err != nil {
		t.Fatalf("write stub codec: %v", err)
	}
	path := writeTestConfig(t, base, func(cfg *config.Config) {
		cfg.Codec.Binary = stub
	})
	source := filepath.Join(base, "shot.heic")
	if err := os.WriteFile(source, []byte("heic"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	out, err := runCommand(t, "--config", path, "convert", "--json", source)
	if err != nil {
		t.Fatalf("convert --json failed: %v\n%s", err, out)
	}

	var summary struct {
		Items []struct {
			Source string `json:"source"`
			Status string `json:"status"`
			Result string `json:"result"`
		} `json:"items"`
		Completed int      `json:"completed"`
		Exported  []string `json:"exported"`
	}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("summary is not valid JSON: %v\n%s", err, out)
	}
	if summary.Completed != 1 || len(summary.Exported) != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Items[0].Result != "shot.png" {
		t.Fatalf("mapped name = %q, want shot.png", summary.Items[0].Result)
	}
}
