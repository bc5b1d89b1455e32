package logbook

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/datarhei/shelllogger/log"
	"github.com/datarhei/shelllogger/process"
	"github.com/datarhei/shelllogger/render"
	timesrc "github.com/datarhei/shelllogger/time"
)

// Entry is one record in a node. It is one of *Message, *Command, or *Node.
type Entry interface {
	entry()
}

// Message is a text that has been printed or noted. Notes have a title.
type Message struct {
	Text      string
	Title     string
	Timestamp time.Time
}

func (m *Message) entry() {}

// Command is a command that has been run, together with the message
// describing it.
type Command struct {
	Message string
	*process.Result
}

func (c *Command) entry() {}

// session is shared by all nodes of a tree.
type session struct {
	lock       sync.RWMutex
	logDir     string
	streamDir  string
	reportFile string

	runner   *process.Runner
	store    Store
	renderer render.Renderer
	stdout   io.Writer
	clock    timesrc.Source
	logger   log.Logger
}

func (s *session) paths() (logDir, streamDir, reportFile string) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.logDir, s.streamDir, s.reportFile
}

func (s *session) attached() bool {
	return s.runner != nil
}

// Node is one scope of recorded work. A node is Open until it is finalized.
// After that its duration is fixed, but its parent may still be Open.
type Node struct {
	name       string
	depth      int
	loginShell bool
	session    *session

	lock     sync.RWMutex
	entries  []Entry
	created  time.Time
	done     time.Time
	duration string
}

func (n *Node) entry() {}

func (n *Node) Name() string {
	return n.name
}

// Depth is 0 for the root and one more than the parent's depth for
// every other node.
func (n *Node) Depth() int {
	return n.depth
}

func (n *Node) IsRoot() bool {
	return n.depth == 0
}

func (n *Node) LoginShell() bool {
	return n.loginShell
}

func (n *Node) LogDir() string {
	logDir, _, _ := n.session.paths()
	return logDir
}

// StreamDir is the directory of the capture files of all commands in the tree.
func (n *Node) StreamDir() string {
	_, streamDir, _ := n.session.paths()
	return streamDir
}

// ReportFile is the path of the rendered report of the tree.
func (n *Node) ReportFile() string {
	_, _, reportFile := n.session.paths()
	return reportFile
}

func (n *Node) Created() time.Time {
	n.lock.RLock()
	defer n.lock.RUnlock()

	return n.created
}

// Done returns the completion time. It is zero as long as it has not
// been set by UpdateDoneTime or Finalize.
func (n *Node) Done() time.Time {
	n.lock.RLock()
	defer n.lock.RUnlock()

	return n.done
}

func (n *Node) Finalized() bool {
	n.lock.RLock()
	defer n.lock.RUnlock()

	return len(n.duration) != 0
}

// Entries returns a copy of the list of entries in insertion order.
func (n *Node) Entries() []Entry {
	n.lock.RLock()
	defer n.lock.RUnlock()

	return append([]Entry{}, n.entries...)
}

// AddChild appends a new Open node to this node.
func (n *Node) AddChild(name string) (*Node, error) {
	n.lock.Lock()
	defer n.lock.Unlock()

	if len(n.duration) != 0 {
		return nil, ErrFinalized
	}

	child := &Node{
		name:       name,
		depth:      n.depth + 1,
		loginShell: n.loginShell,
		session:    n.session,
		entries:    []Entry{},
		created:    n.session.clock.Now(),
	}

	n.entries = append(n.entries, child)

	return child, nil
}

// Print writes the message to the console and appends it to the node.
func (n *Node) Print(msg string) error {
	if err := n.append(&Message{
		Text:      msg,
		Timestamp: n.session.clock.Now(),
	}); err != nil {
		return err
	}

	if n.session.stdout != nil {
		fmt.Fprintln(n.session.stdout, msg)
	}

	return nil
}

// Note appends a titled message to the node without printing it.
func (n *Node) Note(title, msg string) error {
	if len(title) == 0 {
		title = "Note"
	}

	return n.append(&Message{
		Text:      msg,
		Title:     title,
		Timestamp: n.session.clock.Now(),
	})
}

// Log runs the command with the runner of the session and appends the
// result to the node. The capture files are written to the stream
// directory. A non-zero exit code is not an error.
func (n *Node) Log(ctx context.Context, msg string, options process.Options) (*process.Result, error) {
	if n.Finalized() {
		return nil, ErrFinalized
	}

	if !n.session.attached() {
		return nil, ErrDetached
	}

	options.StreamDir = n.StreamDir()

	result, err := n.session.runner.Run(ctx, options)
	if err != nil {
		n.session.logger.WithError(err).WithField("command", options.Command).Log("Running command failed")
		return nil, err
	}

	if err := n.append(&Command{
		Message: msg,
		Result:  result,
	}); err != nil {
		return nil, err
	}

	return result, nil
}

func (n *Node) append(e Entry) error {
	n.lock.Lock()
	defer n.lock.Unlock()

	if len(n.duration) != 0 {
		return ErrFinalized
	}

	n.entries = append(n.entries, e)

	return nil
}

// UpdateDoneTime sets the completion time to now. Finalize keeps this time.
func (n *Node) UpdateDoneTime() error {
	n.lock.Lock()
	defer n.lock.Unlock()

	if len(n.duration) != 0 {
		return ErrFinalized
	}

	n.done = n.session.clock.Now()

	return nil
}

// CheckDuration returns the time since the node has been created. It
// doesn't finalize the node.
func (n *Node) CheckDuration() string {
	n.lock.RLock()
	defer n.lock.RUnlock()

	return FormatDuration(n.session.clock.Now().Sub(n.created))
}

// Duration finalizes the node if necessary and returns its duration.
func (n *Node) Duration() string {
	n.finalize()

	n.lock.RLock()
	defer n.lock.RUnlock()

	return n.duration
}

// finalize fixes the completion time and the duration. Only the first
// call has an effect.
func (n *Node) finalize() {
	n.lock.Lock()
	defer n.lock.Unlock()

	if len(n.duration) != 0 {
		return
	}

	if n.done.IsZero() {
		n.done = n.session.clock.Now()
	}

	if n.done.Before(n.created) {
		n.done = n.created
	}

	n.duration = FormatDuration(n.done.Sub(n.created))
}

// finalizeTree finalizes all descendants of the node and then the node
// itself. No child ends after its parent.
func (n *Node) finalizeTree() {
	for _, e := range n.Entries() {
		if child, ok := e.(*Node); ok {
			child.finalizeTree()
		}
	}

	n.finalize()
}

// reopen makes a finalized node Open again.
func (n *Node) reopen() {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.done = time.Time{}
	n.duration = ""
}

// Finalize fixes the completion time and the duration of the node. On the
// root all descendants are finalized as well, and the report and the
// document of the tree are written.
func (n *Node) Finalize() error {
	if !n.IsRoot() {
		n.finalize()
		return nil
	}

	if !n.session.attached() {
		return ErrDetached
	}

	n.finalizeTree()

	if err := n.writeReport(); err != nil {
		return err
	}

	if err := n.writeDocument(); err != nil {
		return err
	}

	n.session.logger.Info().WithFields(log.Fields{
		"report":   n.ReportFile(),
		"duration": n.Duration(),
	}).Log("Finalized")

	return nil
}

// FormatDuration formats d as hours, minutes, and seconds with two
// decimals, e.g. "1h 2m 3.45s". The hours are not capped at a day.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := d / time.Hour
	d -= hours * time.Hour

	minutes := d / time.Minute
	d -= minutes * time.Minute

	return fmt.Sprintf("%dh %dm %.2fs", hours, minutes, d.Seconds())
}
