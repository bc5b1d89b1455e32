package logbook

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/datarhei/shelllogger/process"
	timesrc "github.com/datarhei/shelllogger/time"

	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) Config {
	return Config{
		LogDir: t.TempDir(),
		Stdout: &bytes.Buffer{},
	}
}

func TestNew(t *testing.T) {
	config := newTestConfig(t)

	root, err := New("My Session", config)
	require.NoError(t, err)

	require.Equal(t, "My Session", root.Name())
	require.Equal(t, 0, root.Depth())
	require.True(t, root.IsRoot())
	require.False(t, root.Finalized())
	require.True(t, root.Done().IsZero())

	require.Equal(t, config.LogDir, root.LogDir())
	require.Equal(t, config.LogDir, filepath.Dir(root.StreamDir()))
	require.DirExists(t, root.StreamDir())

	require.Equal(t, filepath.Join(root.StreamDir(), "My_Session.txt"), root.ReportFile())
	require.FileExists(t, root.ReportFile())
	require.Equal(t, filepath.Join(root.StreamDir(), "My_Session.json"), root.DocumentFile())
}

func TestNewStreamDirPrefix(t *testing.T) {
	config := newTestConfig(t)
	config.Clock = &timesrc.TestSource{
		N: time.Date(2024, 3, 7, 14, 5, 9, 123456000, time.Local),
	}

	root, err := New("root", config)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(filepath.Base(root.StreamDir()), "2024-03-07_14.05.09.123456_"))

	config.StreamPrefix = "run-%Y%m%d"

	root, err = New("root", config)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(filepath.Base(root.StreamDir()), "run-20240307.123456_"))

	config.StreamPrefix = "%Q"

	_, err = New("root", config)
	require.Error(t, err)
}

func TestNewInvalidLogDir(t *testing.T) {
	config := newTestConfig(t)

	blocker := filepath.Join(config.LogDir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte{}, 0644))

	config.LogDir = filepath.Join(blocker, "logs")

	_, err := New("root", config)
	require.Error(t, err)
}

func TestAddChild(t *testing.T) {
	root, err := New("root", newTestConfig(t))
	require.NoError(t, err)

	child, err := root.AddChild("child")
	require.NoError(t, err)
	require.Equal(t, 1, child.Depth())
	require.False(t, child.IsRoot())

	grandchild, err := child.AddChild("grandchild")
	require.NoError(t, err)
	require.Equal(t, 2, grandchild.Depth())

	require.Equal(t, root.StreamDir(), grandchild.StreamDir())
	require.Equal(t, root.ReportFile(), grandchild.ReportFile())

	entries := root.Entries()
	require.Len(t, entries, 1)
	require.Same(t, child, entries[0])
}

func TestPrintAndNote(t *testing.T) {
	config := newTestConfig(t)
	stdout := config.Stdout.(*bytes.Buffer)

	root, err := New("root", config)
	require.NoError(t, err)

	require.NoError(t, root.Print("hello"))
	require.NoError(t, root.Note("Details", "not printed"))
	require.NoError(t, root.Note("", "untitled"))

	require.Equal(t, "hello\n", stdout.String())

	entries := root.Entries()
	require.Len(t, entries, 3)

	msg := entries[0].(*Message)
	require.Equal(t, "hello", msg.Text)
	require.Empty(t, msg.Title)
	require.False(t, msg.Timestamp.IsZero())

	note := entries[1].(*Message)
	require.Equal(t, "Details", note.Title)
	require.Equal(t, "not printed", note.Text)

	require.Equal(t, "Note", entries[2].(*Message).Title)
}

func TestLog(t *testing.T) {
	root, err := New("root", newTestConfig(t))
	require.NoError(t, err)

	result, err := root.Log(context.Background(), "Say hello", process.Options{
		Command:    "echo hello; exit 4",
		ReturnInfo: true,
	})
	require.NoError(t, err)
	require.Equal(t, 4, result.ReturnCode)
	require.Equal(t, "hello\n", *result.Stdout)

	require.FileExists(t, result.CaptureFile(root.StreamDir(), "stdout"))

	entries := root.Entries()
	require.Len(t, entries, 1)

	cmd := entries[0].(*Command)
	require.Equal(t, "Say hello", cmd.Message)
	require.Same(t, result, cmd.Result)
}

func TestLogExecutionError(t *testing.T) {
	root, err := New("root", newTestConfig(t))
	require.NoError(t, err)

	_, err = root.Log(context.Background(), "Missing", process.Options{
		Command: "true",
		Dir:     filepath.Join(t.TempDir(), "missing"),
	})

	var execErr *process.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Empty(t, root.Entries())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{0, "0h 0m 0.00s"},
		{1500 * time.Millisecond, "0h 0m 1.50s"},
		{61*time.Second + 4*time.Millisecond, "0h 1m 1.00s"},
		{time.Hour + 2*time.Minute + 3456*time.Millisecond, "1h 2m 3.46s"},
		{26 * time.Hour, "26h 0m 0.00s"},
		{-time.Second, "0h 0m 0.00s"},
	}

	for _, test := range tests {
		require.Equal(t, test.expected, FormatDuration(test.d), test.d.String())
	}
}

func TestFinalize(t *testing.T) {
	clock := &timesrc.TestSource{}
	clock.Set(1700000000, 0)

	config := newTestConfig(t)
	config.Clock = clock

	root, err := New("root", config)
	require.NoError(t, err)

	child, err := root.AddChild("child")
	require.NoError(t, err)

	clock.Advance(5 * time.Second)

	require.Equal(t, "0h 0m 5.00s", child.CheckDuration())
	require.False(t, child.Finalized())

	require.NoError(t, child.Finalize())
	require.True(t, child.Finalized())
	require.Equal(t, "0h 0m 5.00s", child.Duration())

	done := child.Done()

	clock.Advance(time.Minute)

	require.NoError(t, child.Finalize())
	require.Equal(t, "0h 0m 5.00s", child.Duration())
	require.Equal(t, done, child.Done())

	require.ErrorIs(t, child.UpdateDoneTime(), ErrFinalized)
	require.ErrorIs(t, child.Print("late"), ErrFinalized)
	require.ErrorIs(t, child.Note("late", "late"), ErrFinalized)

	_, err = child.AddChild("late")
	require.ErrorIs(t, err, ErrFinalized)

	_, err = child.Log(context.Background(), "late", process.Options{Command: "true"})
	require.ErrorIs(t, err, ErrFinalized)

	require.Empty(t, child.Entries())

	require.NoError(t, root.Print("still open"))
}

// tickingSource moves one second ahead on every reading.
type tickingSource struct {
	now time.Time
}

func (s *tickingSource) Now() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

func TestFinalizeChildrenFirst(t *testing.T) {
	config := newTestConfig(t)
	config.Clock = &tickingSource{now: time.Unix(1700000000, 0)}

	root, err := New("root", config)
	require.NoError(t, err)

	child, err := root.AddChild("child")
	require.NoError(t, err)

	grandchild, err := child.AddChild("grandchild")
	require.NoError(t, err)

	require.NoError(t, root.Finalize())

	require.True(t, grandchild.Finalized())
	require.True(t, child.Finalized())

	require.True(t, grandchild.Done().Before(child.Done()))
	require.True(t, child.Done().Before(root.Done()))
}

func TestUpdateDoneTime(t *testing.T) {
	clock := &timesrc.TestSource{}
	clock.Set(1700000000, 0)

	config := newTestConfig(t)
	config.Clock = clock

	root, err := New("root", config)
	require.NoError(t, err)

	child, err := root.AddChild("child")
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	require.NoError(t, child.UpdateDoneTime())

	clock.Advance(time.Hour)

	require.Equal(t, "0h 0m 2.00s", child.Duration())
	require.True(t, child.Finalized())
}

func TestDurationIsMonotonic(t *testing.T) {
	root, err := New("root", newTestConfig(t))
	require.NoError(t, err)

	child, err := root.AddChild("child")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	first := child.Duration()

	for i := 0; i < 3; i++ {
		time.Sleep(10 * time.Millisecond)
		require.Equal(t, first, child.Duration())
	}

	require.Equal(t, FormatDuration(child.Done().Sub(child.Created())), first)
}

func TestFinalizeRoot(t *testing.T) {
	root, err := New("My Session", newTestConfig(t))
	require.NoError(t, err)

	require.NoError(t, root.Print("Starting"))

	child, err := root.AddChild("Build")
	require.NoError(t, err)

	_, err = child.Log(context.Background(), "Say hello", process.Options{
		Command: "echo hello",
	})
	require.NoError(t, err)

	require.NoError(t, root.Finalize())

	require.True(t, root.Finalized())
	require.True(t, child.Finalized())

	report, err := os.ReadFile(root.ReportFile())
	require.NoError(t, err)
	require.Contains(t, string(report), "My Session\n")
	require.Contains(t, string(report), "+ Build (")
	require.Contains(t, string(report), "    > Say hello\n")
	require.Contains(t, string(report), "  hello\n")

	link := filepath.Join(root.LogDir(), "My_Session.txt")
	target, err := os.Readlink(link)
	require.NoError(t, err)
	require.Equal(t, root.ReportFile(), target)

	data, err := os.ReadFile(root.DocumentFile())
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	requireEqualNodes(t, root, decoded)

	// Finalizing again writes the same files
	require.NoError(t, root.Finalize())

	again, err := os.ReadFile(root.DocumentFile())
	require.NoError(t, err)
	require.Equal(t, data, again)

	entries, err := os.ReadDir(root.LogDir())
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestFinalizeDetached(t *testing.T) {
	root, err := New("root", newTestConfig(t))
	require.NoError(t, err)

	root.finalize()

	data, err := Encode(root)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	require.ErrorIs(t, decoded.Finalize(), ErrDetached)

	_, err = decoded.Log(context.Background(), "x", process.Options{Command: "true"})
	require.ErrorIs(t, err, ErrFinalized)
}

func TestAppend(t *testing.T) {
	config := newTestConfig(t)

	root, err := New("root", config)
	require.NoError(t, err)

	require.NoError(t, root.Print("first"))

	child, err := root.AddChild("child")
	require.NoError(t, err)
	require.NoError(t, child.Print("inside"))

	require.NoError(t, root.Finalize())

	appended, err := Append(root.LogDir(), config)
	require.NoError(t, err)

	require.False(t, appended.Finalized())
	require.Equal(t, root.StreamDir(), appended.StreamDir())
	require.Equal(t, root.Created(), appended.Created())
	require.Len(t, appended.Entries(), 2)

	report, err := os.ReadFile(appended.ReportFile())
	require.NoError(t, err)
	require.Contains(t, string(report), "Append to log started")

	loadedChild := appended.Entries()[1].(*Node)
	require.True(t, loadedChild.Finalized())
	require.ErrorIs(t, loadedChild.Print("late"), ErrFinalized)

	_, err = appended.Log(context.Background(), "more", process.Options{
		Command: "echo more",
	})
	require.NoError(t, err)

	require.NoError(t, appended.Finalize())

	data, err := os.ReadFile(root.DocumentFile())
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, decoded.Entries(), 3)

	// The document and the report can be given as well
	for _, path := range []string{root.DocumentFile(), root.ReportFile(), filepath.Join(root.LogDir(), "root.txt")} {
		loaded, err := Append(path, config)
		require.NoError(t, err, path)
		require.Len(t, loaded.Entries(), 3)
	}
}

func TestAppendLatestSession(t *testing.T) {
	config := newTestConfig(t)

	first, err := New("first", config)
	require.NoError(t, err)
	require.NoError(t, first.Finalize())

	second, err := New("second", config)
	require.NoError(t, err)
	require.NoError(t, second.Finalize())

	// The first session has been written last
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(second.DocumentFile(), past, past))

	loaded, err := Append(config.LogDir, config)
	require.NoError(t, err)
	require.Equal(t, "first", loaded.Name())
	require.Equal(t, first.StreamDir(), loaded.StreamDir())
}

func TestAppendMissing(t *testing.T) {
	config := newTestConfig(t)

	_, err := Append(config.LogDir, config)
	require.Error(t, err)

	_, err = Append(filepath.Join(config.LogDir, "missing.json"), config)
	require.Error(t, err)
}

func TestChangeLogDir(t *testing.T) {
	root, err := New("root", newTestConfig(t))
	require.NoError(t, err)

	child, err := root.AddChild("child")
	require.NoError(t, err)

	_, err = child.Log(context.Background(), "Say hello", process.Options{
		Command: "echo hello",
	})
	require.NoError(t, err)

	require.ErrorIs(t, child.ChangeLogDir(t.TempDir()), ErrNotRoot)

	oldDir := root.LogDir()
	oldStream := root.StreamDir()
	newDir := filepath.Join(t.TempDir(), "moved")

	require.NoError(t, root.ChangeLogDir(newDir))

	require.NoDirExists(t, oldDir)
	require.Equal(t, newDir, root.LogDir())
	require.Equal(t, newDir, child.LogDir())
	require.Equal(t, filepath.Join(newDir, filepath.Base(oldStream)), child.StreamDir())
	require.Equal(t, filepath.Join(child.StreamDir(), "root.txt"), child.ReportFile())
	require.FileExists(t, root.ReportFile())

	require.NoError(t, root.Finalize())

	report, err := os.ReadFile(root.ReportFile())
	require.NoError(t, err)
	require.Contains(t, string(report), "  hello\n")
}

func requireEqualNodes(t *testing.T, expected, actual *Node) {
	t.Helper()

	require.Equal(t, expected.Name(), actual.Name())
	require.Equal(t, expected.Depth(), actual.Depth())
	require.Equal(t, expected.LoginShell(), actual.LoginShell())
	require.Equal(t, expected.LogDir(), actual.LogDir())
	require.Equal(t, expected.StreamDir(), actual.StreamDir())
	require.Equal(t, expected.ReportFile(), actual.ReportFile())
	require.Equal(t, expected.Created(), actual.Created())
	require.Equal(t, expected.Done(), actual.Done())
	require.Equal(t, expected.Finalized(), actual.Finalized())
	require.Equal(t, expected.duration, actual.duration)

	expectedEntries, actualEntries := expected.Entries(), actual.Entries()
	require.Len(t, actualEntries, len(expectedEntries))

	for i, e := range expectedEntries {
		switch e := e.(type) {
		case *Node:
			child, ok := actualEntries[i].(*Node)
			require.True(t, ok, "entry %d", i)
			requireEqualNodes(t, e, child)
		default:
			require.Equal(t, e, actualEntries[i], "entry %d", i)
		}
	}
}
