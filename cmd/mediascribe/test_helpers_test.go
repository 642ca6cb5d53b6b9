package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

// setTestHome isolates the default config, speaker store, and history
// locations under a temp directory.
func setTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func defaultSpeakerStorePath(home string) string {
	return filepath.Join(home, ".local", "share", "mediascribe", "speakers.json")
}

func defaultHistoryDBPath(home string) string {
	return filepath.Join(home, ".local", "share", "mediascribe", "history.db")
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
