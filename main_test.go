package main

import (
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSetupLogging(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "INFO"} {
		if err := setupLogging(level); err != nil {
			t.Errorf("setupLogging(%q) = %v", level, err)
		}
	}
	if err := setupLogging("loud"); err == nil {
		t.Error("setupLogging(loud) should fail")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "speakup dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestConfigSetShow(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := run(t, "config", "set", "voice", "Puck"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if _, err := run(t, "config", "set", "backend", "smoke-signals"); err == nil {
		t.Error("config set with invalid backend should fail")
	}

	out, err := run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, `"voice": "Puck"`) || !strings.Contains(out, `"backend": "gemini"`) {
		t.Errorf("config show output:\n%s", out)
	}
}
