package logbook

import (
	"fmt"
	"iter"
	"os"
	"sort"
	"strings"

	"github.com/datarhei/shelllogger/render"
	"github.com/datarhei/shelllogger/stats"
)

// Fragments returns the entries of the node as pre-formatted fragments. The
// details of a command, including its output, are read and formatted only
// when the fragment is reached.
func (n *Node) Fragments() iter.Seq[render.Fragment] {
	return func(yield func(render.Fragment) bool) {
		for _, e := range n.Entries() {
			var f render.Fragment

			switch e := e.(type) {
			case *Message:
				f.Kind = render.KindMessage
				f.Text = e.Text

				if len(e.Title) != 0 {
					f.Kind = render.KindNote
					f.Title = e.Title
				}
			case *Command:
				f.Kind = render.KindCommand
				f.Title = e.Message
				f.Text = formatCommand(e, n.StreamDir())
			case *Node:
				f.Kind = render.KindChild
				f.Title = e.Name()
				f.Text = e.Duration()
				f.Child = e
			default:
				continue
			}

			if !yield(f) {
				return
			}
		}
	}
}

func formatCommand(c *Command, streamDir string) string {
	var b strings.Builder

	field := func(name, value string) {
		fmt.Fprintf(&b, "%-12s %s\n", name+":", value)
	}

	field("Command", c.Result.Command)
	field("ID", c.ID)
	field("Directory", c.Dir)
	field("Started", c.Start.Format("2006-01-02 15:04:05.000"))
	field("Duration", FormatDuration(c.Duration))
	field("Return code", fmt.Sprintf("%d", c.ReturnCode))

	if len(c.TracePath) != 0 {
		field("Trace", c.TracePath)
	}

	names := make([]string, 0, len(c.Stats))
	for name := range c.Stats {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		stat := c.Stats[name]

		if stat.IsEmpty() {
			field(name, "no samples")
			continue
		}

		if len(stat.Series) != 0 {
			field(name, formatSummary(stat.Series.Summary()))
		}

		groups := make([]string, 0, len(stat.Groups))
		for group := range stat.Groups {
			groups = append(groups, group)
		}

		sort.Strings(groups)

		for _, group := range groups {
			field(name+" "+group, formatSummary(stat.Groups[group].Summary()))
		}
	}

	for _, kind := range []string{"stdout", "stderr"} {
		b.WriteString(kind + ":\n")

		data, err := os.ReadFile(c.CaptureFile(streamDir, kind))
		if err != nil {
			b.WriteString("  (not available)\n")
			continue
		}

		for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
			if len(line) == 0 {
				b.WriteString("\n")
				continue
			}

			b.WriteString("  " + line + "\n")
		}
	}

	return b.String()
}

func formatSummary(s stats.Summary) string {
	return fmt.Sprintf("min %.2f, max %.2f, avg %.2f (%d samples)", s.Min, s.Max, s.Avg, s.Count)
}
