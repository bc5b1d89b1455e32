// Package logbook records the work of a session as a tree of nodes. Each
// node holds messages, the results of the commands it has run, and child
// nodes. The root owns the stream directory with the capture files of all
// commands, the rendered report, and the serialized document of the tree.
package logbook

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/datarhei/shelllogger/io/file"
	"github.com/datarhei/shelllogger/log"
	"github.com/datarhei/shelllogger/process"
	"github.com/datarhei/shelllogger/render"
	timesrc "github.com/datarhei/shelllogger/time"

	"github.com/lestrrat-go/strftime"
	"github.com/lithammer/shortuuid/v4"
)

// DefaultStreamPrefix is the strftime pattern for the names of the stream
// directories. The microseconds of the creation time are always appended.
const DefaultStreamPrefix = "%Y-%m-%d_%H.%M.%S"

type Config struct {
	LogDir       string          // Directory for the logs. Defaults to the current directory.
	StreamPrefix string          // Strftime pattern for the stream directory. Defaults to DefaultStreamPrefix.
	LoginShell   bool            // Run the commands in a login shell. Only used if Runner is nil.
	Runner       *process.Runner // Runner for the commands.
	Store        Store           // Store for the documents. Defaults to a disk store.
	Renderer     render.Renderer // Renderer for the report. Defaults to plain text.
	Stdout       io.Writer       // Output for Print. Defaults to os.Stdout.
	Clock        timesrc.Source
	Logger       log.Logger
}

// New creates the root of a new tree. The log directory is created if
// it doesn't exist, and a new stream directory is created below it.
func New(name string, config Config) (*Node, error) {
	s, err := newSession(config)
	if err != nil {
		return nil, err
	}

	pattern := config.StreamPrefix
	if len(pattern) == 0 {
		pattern = DefaultStreamPrefix
	}

	streamFormat, err := strftime.New(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid stream prefix '%s': %w", pattern, err)
	}

	logDir := config.LogDir
	if len(logDir) == 0 {
		logDir = "."
	}

	logDir, err = filepath.Abs(logDir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory failed: %w", err)
	}

	created := s.clock.Now()

	prefix := streamFormat.FormatString(created) + fmt.Sprintf(".%06d_", created.Nanosecond()/1000)

	streamDir, err := os.MkdirTemp(logDir, prefix)
	if err != nil {
		return nil, fmt.Errorf("creating stream directory failed: %w", err)
	}

	s.logDir = logDir
	s.streamDir = streamDir
	s.reportFile = filepath.Join(streamDir, fileName(name)+".txt")

	root := &Node{
		name:       name,
		loginShell: loginShell(s.runner),
		session:    s,
		entries:    []Entry{},
		created:    created,
	}

	if err := root.openReport(); err != nil {
		return nil, err
	}

	s.logger.Debug().WithFields(log.Fields{
		"name":       name,
		"stream_dir": streamDir,
	}).Log("Created")

	return root, nil
}

// Append loads the tree of a prior session in order to add more entries to
// it. The path is either the log directory, the report, the link to the
// report, or the document. The root of the loaded tree is Open again.
func Append(path string, config Config) (*Node, error) {
	s, err := newSession(config)
	if err != nil {
		return nil, err
	}

	path, err = documentPath(s.store, path)
	if err != nil {
		return nil, err
	}

	data, err := s.store.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s failed: %w", path, err)
	}

	root, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if !root.IsRoot() {
		return nil, ErrNotRoot
	}

	s.logDir, s.streamDir, s.reportFile = root.session.paths()

	root.attach(s)
	root.reopen()

	if err := root.openReport(); err != nil {
		return nil, err
	}

	s.logger.Debug().WithField("document", path).Log("Appending")

	return root, nil
}

func newSession(config Config) (*session, error) {
	s := &session{
		runner:   config.Runner,
		store:    config.Store,
		renderer: config.Renderer,
		stdout:   config.Stdout,
		clock:    config.Clock,
		logger:   config.Logger,
	}

	if s.logger == nil {
		s.logger = log.New("")
	}

	if s.clock == nil {
		s.clock = &timesrc.StdSource{}
	}

	if s.stdout == nil {
		s.stdout = os.Stdout
	}

	if s.renderer == nil {
		s.renderer = render.NewText(render.TextConfig{})
	}

	if s.runner == nil {
		runner, err := process.New(process.Config{
			Login:  config.LoginShell,
			Stdout: s.stdout,
			Clock:  s.clock,
			Logger: s.logger.WithComponent("Runner"),
		})
		if err != nil {
			return nil, err
		}

		s.runner = runner
	}

	if s.store == nil {
		store, err := NewDiskStore(s.logger.WithComponent("Store"))
		if err != nil {
			return nil, err
		}

		s.store = store
	}

	return s, nil
}

func loginShell(r *process.Runner) bool {
	_, login := r.Shell()
	return login
}

// attach replaces the session of the node and all of its descendants.
func (n *Node) attach(s *session) {
	n.session = s

	for _, e := range n.Entries() {
		if child, ok := e.(*Node); ok {
			child.attach(s)
		}
	}
}

// openReport creates an empty report, or adds a marker to an existing one.
func (n *Node) openReport() error {
	reportFile := n.ReportFile()

	if _, err := os.Stat(reportFile); err == nil {
		f, err := os.OpenFile(reportFile, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("opening report failed: %w", err)
		}
		defer f.Close()

		fmt.Fprintf(f, "# %s Append to log started\n", n.session.clock.Now().Format("2006-01-02 15:04:05.000000"))

		return nil
	}

	f, err := os.Create(reportFile)
	if err != nil {
		return fmt.Errorf("creating report failed: %w", err)
	}

	return f.Close()
}

// writeReport renders the tree into the report and links the report into
// the log directory.
func (n *Node) writeReport() error {
	logDir, _, reportFile := n.session.paths()

	buf := &bytes.Buffer{}

	if err := n.session.renderer.Render(buf, n); err != nil {
		return fmt.Errorf("rendering report failed: %w", err)
	}

	if err := os.WriteFile(reportFile, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing report failed: %w", err)
	}

	return linkReport(logDir, reportFile)
}

// linkReport replaces the link to the report in the log directory.
func linkReport(logDir, reportFile string) error {
	link := filepath.Join(logDir, filepath.Base(reportFile))
	tmp := filepath.Join(logDir, "."+shortuuid.New())

	if err := os.Symlink(reportFile, tmp); err != nil {
		return fmt.Errorf("linking report failed: %w", err)
	}

	if err := os.Rename(tmp, link); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("linking report failed: %w", err)
	}

	return nil
}

func (n *Node) writeDocument() error {
	data, err := Encode(n)
	if err != nil {
		return err
	}

	if err := n.session.store.Save(n.DocumentFile(), data); err != nil {
		return fmt.Errorf("storing document failed: %w", err)
	}

	return nil
}

// DocumentFile is the path of the serialized tree in the stream directory.
func (n *Node) DocumentFile() string {
	_, _, reportFile := n.session.paths()
	return strings.TrimSuffix(reportFile, ".txt") + ".json"
}

// ChangeLogDir moves the log directory with all stream directories to dir.
// It can only be called on the root.
func (n *Node) ChangeLogDir(dir string) error {
	if !n.IsRoot() {
		return ErrNotRoot
	}

	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	s := n.session

	s.lock.Lock()
	defer s.lock.Unlock()

	if dir == s.logDir {
		return nil
	}

	if _, err := os.Stat(s.logDir); err == nil {
		if err := file.MoveTree(s.logDir, dir); err != nil {
			return fmt.Errorf("moving log directory failed: %w", err)
		}
	}

	oldDir := s.logDir

	s.streamDir = rebase(s.streamDir, oldDir, dir)
	s.reportFile = rebase(s.reportFile, oldDir, dir)
	s.logDir = dir

	n.rebaseTraces(oldDir, dir)

	if _, err := os.Lstat(filepath.Join(dir, filepath.Base(s.reportFile))); err == nil {
		if err := linkReport(dir, s.reportFile); err != nil {
			return err
		}
	}

	s.logger.Debug().WithFields(log.Fields{
		"from": oldDir,
		"to":   dir,
	}).Log("Moved log directory")

	return nil
}

func (n *Node) rebaseTraces(from, to string) {
	for _, e := range n.Entries() {
		switch e := e.(type) {
		case *Node:
			e.rebaseTraces(from, to)
		case *Command:
			if len(e.TracePath) != 0 {
				e.TracePath = rebase(e.TracePath, from, to)
			}
		}
	}
}

// rebase replaces the prefix from of path with to. Paths outside of from
// are returned unchanged.
func rebase(path, from, to string) string {
	rel, err := filepath.Rel(from, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}

	return filepath.Join(to, rel)
}

// documentPath finds the document for a path given to Append. Reports and
// their links are local files, the documents are looked up in the store.
func documentPath(s Store, path string) (string, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if strings.HasSuffix(path, ".txt") {
		path, err = filepath.EvalSymlinks(path)
		if err != nil {
			return "", err
		}

		return strings.TrimSuffix(path, ".txt") + ".json", nil
	}

	info, err := s.Stat(path)
	if err != nil {
		return "", err
	}

	if info.IsDir() {
		return s.Latest(path)
	}

	return path, nil
}

func fileName(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}
