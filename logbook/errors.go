package logbook

import (
	"errors"
	"strings"
)

var ErrNotRoot = errors.New("not the root of the log")
var ErrFinalized = errors.New("the node is finalized")
var ErrDetached = errors.New("the node is not attached to a session")

// SerializationError is returned if a document can't be encoded or decoded.
// Path is the position in the document, e.g. "entries[2].stats.cpu".
type SerializationError struct {
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	var b strings.Builder

	b.WriteString("serialization")

	if len(e.Path) != 0 {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}

	b.WriteString(": ")
	b.WriteString(e.Err.Error())

	return b.String()
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
