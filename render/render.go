// Package render lays out a log as a report. A log is read through the
// Source interface as a lazy sequence of pre-formatted fragments.
package render

import (
	"io"
	"iter"
)

type Kind int

const (
	KindMessage Kind = iota
	KindNote
	KindCommand
	KindChild
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindNote:
		return "note"
	case KindCommand:
		return "command"
	case KindChild:
		return "child"
	}

	return "unknown"
}

// Fragment is one entry of a log.
type Fragment struct {
	Kind  Kind
	Title string // Title of a note, message of a command, or name of a child
	Text  string // Formatted content, the duration of a child
	Child Source // Only set for KindChild
}

// Source is a node of a log. Every call of Fragments returns a new
// sequence that starts from the first entry.
type Source interface {
	Name() string
	Duration() string
	Fragments() iter.Seq[Fragment]
}

type Renderer interface {
	// Render writes the report of the source to w.
	Render(w io.Writer, s Source) error
}
