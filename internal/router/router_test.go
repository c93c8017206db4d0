package router

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chtzvt/dropslurp/internal/failure"
	"github.com/chtzvt/dropslurp/internal/logging"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestCompletedDeletesWithoutTarget(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "a.xml")
	writeFile(t, entry, "<a/>")

	New(Config{DeleteOnSuccess: true}, logging.Nop()).Completed(entry)
	require.NoFileExists(t, entry)
}

func TestCompletedNoopWithoutTargetOrDelete(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "a.xml")
	writeFile(t, entry, "<a/>")

	New(Config{}, logging.Nop()).Completed(entry)
	require.FileExists(t, entry)
}

func TestCompletedArchivesByDate(t *testing.T) {
	inbox, archive := t.TempDir(), t.TempDir()
	day := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.Local)
	r := New(Config{CompletedDir: archive, ArchiveByDate: true, DeleteOnSuccess: true}, logging.Nop(), WithClock(fixedClock(day)))

	first := filepath.Join(inbox, "a.xml")
	second := filepath.Join(inbox, "b.xml")
	writeFile(t, first, "a")
	writeFile(t, second, "b")

	r.Completed(first)
	r.Completed(second)

	want := filepath.Join(archive, "2024", "03", "5")
	require.FileExists(t, filepath.Join(want, "a.xml"))
	require.FileExists(t, filepath.Join(want, "b.xml"))
	require.NoFileExists(t, first, "archive target wins over delete")
	require.Equal(t, 1, r.archive.creation, "partition must be created once per day")
}

func TestArchivePartitionFollowsDayChange(t *testing.T) {
	archive := t.TempDir()
	now := time.Date(2024, time.December, 31, 23, 59, 0, 0, time.Local)
	d := newDatedDir(archive)
	d.now = func() time.Time { return now }

	p1, err := d.path()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(archive, "2024", "12", "31"), p1)

	now = now.Add(2 * time.Minute)
	p2, err := d.path()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(archive, "2025", "01", "1"), p2)
	require.DirExists(t, p2)
	require.Equal(t, 2, d.creation)
}

func TestArchiveCreationFailureFallsBackToBase(t *testing.T) {
	inbox, archive := t.TempDir(), t.TempDir()
	r := New(Config{CompletedDir: archive, ArchiveByDate: true}, logging.Nop())
	r.archive.mkdirAll = func(string, os.FileMode) error { return errors.New("read-only filesystem") }

	entry := filepath.Join(inbox, "a.xml")
	writeFile(t, entry, "a")
	r.Completed(entry)
	require.FileExists(t, filepath.Join(archive, "a.xml"))
	require.Equal(t, 0, r.archive.creation)
}

func TestCompletedMovesDirectoryTree(t *testing.T) {
	inbox, done := t.TempDir(), t.TempDir()
	batch := filepath.Join(inbox, "batch-1")
	writeFile(t, filepath.Join(batch, "one.txt"), "1")
	writeFile(t, filepath.Join(batch, "nested", "two.txt"), "2")

	New(Config{CompletedDir: done}, logging.Nop()).Completed(batch)
	require.NoDirExists(t, batch)
	require.FileExists(t, filepath.Join(done, "batch-1", "one.txt"))
	require.FileExists(t, filepath.Join(done, "batch-1", "nested", "two.txt"))
}

func TestMoveOverwritesExistingFile(t *testing.T) {
	inbox, done := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(done, "a.xml"), "old")
	entry := filepath.Join(inbox, "a.xml")
	writeFile(t, entry, "new")

	New(Config{CompletedDir: done}, logging.Nop()).Completed(entry)
	b, err := os.ReadFile(filepath.Join(done, "a.xml"))
	require.NoError(t, err)
	require.Equal(t, "new", string(b))
}

func TestMoveMergesIntoExistingDirectory(t *testing.T) {
	inbox, done := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(done, "batch", "keep.txt"), "keep")
	writeFile(t, filepath.Join(done, "batch", "one.txt"), "old")
	writeFile(t, filepath.Join(inbox, "batch", "one.txt"), "new")

	New(Config{CompletedDir: done}, logging.Nop()).Completed(filepath.Join(inbox, "batch"))
	require.NoDirExists(t, filepath.Join(inbox, "batch"))
	require.FileExists(t, filepath.Join(done, "batch", "keep.txt"))
	b, err := os.ReadFile(filepath.Join(done, "batch", "one.txt"))
	require.NoError(t, err)
	require.Equal(t, "new", string(b))
}

func TestVanishedSourceIsSkipped(t *testing.T) {
	inbox, done := t.TempDir(), t.TempDir()
	r := New(Config{CompletedDir: done, CheckExists: true}, logging.Nop())
	require.NotPanics(t, func() { r.Completed(filepath.Join(inbox, "gone.xml")) })

	entries, err := os.ReadDir(done)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFailedMovesFileAndWritesReport(t *testing.T) {
	inbox, failed := t.TempDir(), t.TempDir()
	entry := filepath.Join(inbox, "order.xml")
	writeFile(t, entry, "<order/>")

	New(Config{FailedDir: failed}, logging.Nop()).Failed(entry, failure.Errorf("schema violation at line %d", 3))

	require.NoFileExists(t, entry)
	require.FileExists(t, filepath.Join(failed, "order.xml"))
	report, err := os.ReadFile(filepath.Join(failed, "order_error.log"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(report), "schema violation at line 3\n"))
	require.Contains(t, string(report), "router_test.go")
}

func TestFailedDirectoryReportInside(t *testing.T) {
	inbox, failed := t.TempDir(), t.TempDir()
	batch := filepath.Join(inbox, "batch")
	writeFile(t, filepath.Join(batch, "x.txt"), "x")

	New(Config{FailedDir: failed}, logging.Nop()).Failed(batch, errors.New("broken batch"))
	require.FileExists(t, filepath.Join(failed, "batch", "x.txt"))
	report, err := os.ReadFile(filepath.Join(failed, "batch", "error.log"))
	require.NoError(t, err)
	require.Contains(t, string(report), "broken batch")
}

func TestFailedReportIncludesResponseBody(t *testing.T) {
	inbox, failed := t.TempDir(), t.TempDir()
	entry := filepath.Join(inbox, "a.json")
	writeFile(t, entry, "{}")

	cause := failure.New(&failure.ResponseError{
		URL:        "http://ingest.local/a",
		StatusCode: 400,
		Status:     "400 Bad Request",
		Body:       []byte(`{"error":"missing id"}`),
	})
	New(Config{FailedDir: failed}, logging.Nop()).Failed(entry, cause)

	report, err := os.ReadFile(filepath.Join(failed, "a_error.log"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(report), "Response body :\n{\"error\":\"missing id\"}\n"))
	require.Contains(t, string(report), "unexpected response 400 Bad Request")
}

func TestFailedPrefersFailureDestination(t *testing.T) {
	inbox, failed, rejected := t.TempDir(), t.TempDir(), t.TempDir()
	entry := filepath.Join(inbox, "a.xml")
	writeFile(t, entry, "a")

	New(Config{FailedDir: failed}, logging.Nop()).Failed(entry, failure.Redirect(errors.New("rejected"), rejected))
	require.FileExists(t, filepath.Join(rejected, "a.xml"))
	require.FileExists(t, filepath.Join(rejected, "a_error.log"))
	require.NoFileExists(t, filepath.Join(failed, "a.xml"))
}

func TestFailedDeletesOrKeeps(t *testing.T) {
	inbox := t.TempDir()
	kept := filepath.Join(inbox, "kept.xml")
	dropped := filepath.Join(inbox, "dropped.xml")
	writeFile(t, kept, "k")
	writeFile(t, dropped, "d")

	New(Config{}, logging.Nop()).Failed(kept, errors.New("boom"))
	New(Config{DeleteOnFailure: true}, logging.Nop()).Failed(dropped, errors.New("boom"))
	require.FileExists(t, kept)
	require.NoFileExists(t, dropped)
}

func TestDuplicateRouting(t *testing.T) {
	inbox, failed, dups := t.TempDir(), t.TempDir(), t.TempDir()
	entry := filepath.Join(inbox, "a.xml")
	writeFile(t, entry, "a")

	New(Config{FailedDir: failed, DuplicateDir: dups}, logging.Nop()).Failed(entry, failure.Duplicate(errors.New("seen")))
	require.FileExists(t, filepath.Join(dups, "a.xml"))
	require.NoFileExists(t, filepath.Join(dups, "a_error.log"))
	require.NoFileExists(t, filepath.Join(failed, "a.xml"))

	other := filepath.Join(inbox, "b.xml")
	writeFile(t, other, "b")
	New(Config{FailedDir: failed}, logging.Nop()).Failed(other, failure.Duplicate(errors.New("seen")))
	require.NoFileExists(t, other, "duplicates without a target are deleted")
	require.NoFileExists(t, filepath.Join(failed, "b.xml"))
}

func TestReportPath(t *testing.T) {
	dir := t.TempDir()
	require.Equal(t, filepath.Join(dir, "data.tar_error.log"), ReportPath(filepath.Join(dir, "data.tar.gz")))
	require.Equal(t, filepath.Join(dir, "noext_error.log"), ReportPath(filepath.Join(dir, "noext")))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "batch.d"), 0o755))
	require.Equal(t, filepath.Join(dir, "batch.d", "error.log"), ReportPath(filepath.Join(dir, "batch.d")))
}
