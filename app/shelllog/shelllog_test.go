package shelllog

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/datarhei/shelllogger/config"
	mock "github.com/datarhei/shelllogger/internal/mock/psutil"
	"github.com/datarhei/shelllogger/logbook"

	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, cfg *config.Config) (*Session, *bytes.Buffer) {
	stdout := &bytes.Buffer{}

	s, err := New(Config{
		Config: cfg,
		PSUtil: mock.New(),
		Stdout: stdout,
		Stderr: stdout,
	})
	require.NoError(t, err)

	return s, stdout
}

func newConfig(t *testing.T) *config.Config {
	cfg := config.New()
	cfg.Name = "Test Session"
	cfg.LogDir = t.TempDir()

	return cfg
}

func TestNewWithoutConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNewInvalidExclude(t *testing.T) {
	cfg := newConfig(t)
	cfg.Env.Exclude = []string{"["}

	_, err := New(Config{Config: cfg})
	require.Error(t, err)
}

func TestRun(t *testing.T) {
	cfg := newConfig(t)
	cfg.Stats.Metrics = []string{"cpu"}
	cfg.Stats.IntervalMS = 50

	s, stdout := newSession(t, cfg)

	root, code, err := s.Run(context.Background(), Options{
		Commands: []string{"echo one", "echo two"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, "one\ntwo\n", stdout.String())

	require.True(t, root.Finalized())
	require.Len(t, root.Entries(), 2)

	command := root.Entries()[0].(*logbook.Command)
	require.Equal(t, "echo one", command.Message)
	require.Contains(t, command.Stats, "cpu")

	report, err := os.ReadFile(root.ReportFile())
	require.NoError(t, err)
	require.Contains(t, string(report), "Test Session\n")
	require.Contains(t, string(report), "> echo two\n")

	_, err = os.Stat(root.DocumentFile())
	require.NoError(t, err)
}

func TestRunStopsAtFailure(t *testing.T) {
	s, stdout := newSession(t, newConfig(t))

	root, code, err := s.Run(context.Background(), Options{
		Commands: []string{"exit 3", "echo never"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, code)
	require.Empty(t, stdout.String())
	require.Len(t, root.Entries(), 1)
}

func TestRunKeepGoing(t *testing.T) {
	s, stdout := newSession(t, newConfig(t))

	root, code, err := s.Run(context.Background(), Options{
		Commands:  []string{"exit 3", "echo again", "true"},
		KeepGoing: true,
	})
	require.NoError(t, err)
	require.Equal(t, 3, code)
	require.Equal(t, "again\n", stdout.String())
	require.Len(t, root.Entries(), 3)
}

func TestRunAppend(t *testing.T) {
	cfg := newConfig(t)

	s, _ := newSession(t, cfg)

	first, _, err := s.Run(context.Background(), Options{
		Commands: []string{"echo first"},
	})
	require.NoError(t, err)

	second, _, err := s.Run(context.Background(), Options{
		Commands: []string{"echo second"},
		Append:   first.DocumentFile(),
	})
	require.NoError(t, err)

	require.Equal(t, first.StreamDir(), second.StreamDir())
	require.Len(t, second.Entries(), 2)

	report, err := os.ReadFile(second.ReportFile())
	require.NoError(t, err)
	require.Contains(t, string(report), "> echo first\n")
	require.Contains(t, string(report), "> echo second\n")
}

func TestRunCancelled(t *testing.T) {
	s, _ := newSession(t, newConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root, _, err := s.Run(ctx, Options{
		Commands: []string{"echo never"},
	})
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, root.Finalized())
	require.Empty(t, root.Entries())
}

func TestRunWithoutCommands(t *testing.T) {
	s, _ := newSession(t, newConfig(t))

	_, _, err := s.Run(context.Background(), Options{})
	require.Error(t, err)
}
