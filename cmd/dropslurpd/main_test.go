package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chtzvt/dropslurp/cmd/dropslurpd/config"
	"github.com/chtzvt/dropslurp/internal/logging"
	"github.com/chtzvt/dropslurp/internal/testutil"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	root := t.TempDir()
	body := "storage:\n  root: " + root + "\n" +
		"log:\n  level: error\n" +
		"watch:\n  scan_interval: 20ms\n  patterns: [\"*.xml\"]\n" +
		"routing:\n  completed_dir: done\n  failed_dir: failed\n" +
		"secrets:\n  key_file: store.key\n" + extra
	path := filepath.Join(t.TempDir(), "dropslurpd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, root
}

func runCLI(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestServeRoutesProcessedEntries(t *testing.T) {
	path, root := testConfig(t, "")
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, logging.Nop()) }()

	testutil.WaitFor(t, func() bool { return testutil.Exists(filepath.Join(root, "inbox")) }, 2*time.Second, 10*time.Millisecond, "inbox created")
	testutil.WriteFile(t, filepath.Join(root, "inbox", "order.xml"), "<order/>")
	testutil.WriteFile(t, filepath.Join(root, "inbox", "notes.txt"), "skip me")

	testutil.WaitFor(t, func() bool { return testutil.Exists(filepath.Join(root, "done", "order.xml")) }, 3*time.Second, 10*time.Millisecond, "order.xml routed to done")
	require.FileExists(t, filepath.Join(root, "inbox", "notes.txt"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestBuildFilterDirectoriesNeedsCapableProcessor(t *testing.T) {
	path, _ := testConfig(t, "processor:\n  name: http\n  options:\n    endpoint: http://127.0.0.1:1/\n")
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	cfg.Watch.Directories = true

	_, _, err = buildEngine(cfg, logging.Nop())
	require.ErrorContains(t, err, "watch.directories")
}

func TestInitCommand(t *testing.T) {
	path, root := testConfig(t, "")
	out := runCLI(t, "", "--config", path, "init")
	require.Contains(t, out, filepath.Join(root, "done"))
	require.DirExists(t, filepath.Join(root, "inbox"))
	require.DirExists(t, filepath.Join(root, "done"))
	require.DirExists(t, filepath.Join(root, "failed"))
}

func TestPurgeCommand(t *testing.T) {
	path, root := testConfig(t, "")
	stale := testutil.WriteFile(t, filepath.Join(root, "inbox", "old.txt"), "x")
	testutil.Age(t, stale, 48*time.Hour)
	keep := testutil.WriteFile(t, filepath.Join(root, "inbox", "old.xml"), "<x/>")
	testutil.Age(t, keep, 48*time.Hour)

	out := runCLI(t, "", "--config", path, "purge")
	require.Contains(t, out, "removed 1 stale entries")
	require.NoFileExists(t, stale)
	require.FileExists(t, keep)
}

func TestSecretsCommands(t *testing.T) {
	path, root := testConfig(t, "")

	runCLI(t, "hunter2", "--config", path, "secrets", "set", "AWS_SECRET_ACCESS_KEY")
	require.FileExists(t, filepath.Join(root, "store.key"))

	out := runCLI(t, "", "--config", path, "secrets", "get", "AWS_SECRET_ACCESS_KEY")
	require.Equal(t, "hunter2", out)

	out = runCLI(t, "", "--config", path, "secrets", "list")
	require.Contains(t, out, "AWS_SECRET_ACCESS_KEY")

	runCLI(t, "", "--config", path, "secrets", "delete", "AWS_SECRET_ACCESS_KEY")
	out = runCLI(t, "", "--config", path, "secrets", "list")
	require.Contains(t, out, "No secrets found")
}

func TestSecretsGenKey(t *testing.T) {
	out := runCLI(t, "", "secrets", "genkey")
	require.Len(t, strings.TrimSpace(out), 44)
}
