package render

import (
	"bufio"
	"io"
	"strings"
)

type TextConfig struct {
	// Indent is prepended once per level. Defaults to four spaces.
	Indent string
}

type text struct {
	indent string
}

// NewText returns a renderer for plain text. Equal sources are rendered
// to equal bytes.
func NewText(config TextConfig) Renderer {
	r := &text{
		indent: config.Indent,
	}

	if len(r.indent) == 0 {
		r.indent = "    "
	}

	return r
}

func (r *text) Render(w io.Writer, s Source) error {
	bw := bufio.NewWriter(w)

	bw.WriteString(s.Name())
	bw.WriteString("\n")
	bw.WriteString(strings.Repeat("=", len(s.Name())))
	bw.WriteString("\n")
	bw.WriteString("Duration: " + s.Duration() + "\n\n")

	r.render(bw, s, 0)

	return bw.Flush()
}

func (r *text) render(w *bufio.Writer, s Source, depth int) {
	for f := range s.Fragments() {
		switch f.Kind {
		case KindMessage:
			r.lines(w, depth, f.Text)
		case KindNote:
			r.lines(w, depth, "["+f.Title+"]")
			r.lines(w, depth+1, f.Text)
		case KindCommand:
			r.lines(w, depth, "> "+f.Title)
			r.lines(w, depth+1, f.Text)
		case KindChild:
			r.lines(w, depth, "+ "+f.Title+" ("+f.Text+")")

			if f.Child != nil {
				w.WriteString("\n")
				r.render(w, f.Child, depth+1)
				continue
			}
		}

		w.WriteString("\n")
	}
}

// lines writes each line of text with the indentation of the depth. Empty
// lines are not indented.
func (r *text) lines(w *bufio.Writer, depth int, text string) {
	if len(text) == 0 {
		return
	}

	prefix := strings.Repeat(r.indent, depth)

	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		if len(line) != 0 {
			w.WriteString(prefix)
			w.WriteString(line)
		}

		w.WriteString("\n")
	}
}
