package render

import (
	"bytes"
	"iter"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

type source struct {
	name      string
	duration  string
	fragments []Fragment
}

func (s *source) Name() string     { return s.name }
func (s *source) Duration() string { return s.duration }

func (s *source) Fragments() iter.Seq[Fragment] {
	return slices.Values(s.fragments)
}

func TestText(t *testing.T) {
	child := &source{
		name:     "Build",
		duration: "0h 0m 1.50s",
		fragments: []Fragment{
			{Kind: KindCommand, Title: "Compile", Text: "Command: make\nReturn code: 0\n"},
		},
	}

	root := &source{
		name:     "Session",
		duration: "0h 0m 2.00s",
		fragments: []Fragment{
			{Kind: KindMessage, Text: "Starting"},
			{Kind: KindNote, Title: "Info", Text: "first\n\nsecond"},
			{Kind: KindChild, Title: child.Name(), Text: child.Duration(), Child: child},
			{Kind: KindMessage, Text: "Done"},
		},
	}

	r := NewText(TextConfig{})

	buf := &bytes.Buffer{}
	require.NoError(t, r.Render(buf, root))

	expected := "Session\n" +
		"=======\n" +
		"Duration: 0h 0m 2.00s\n" +
		"\n" +
		"Starting\n" +
		"\n" +
		"[Info]\n" +
		"    first\n" +
		"\n" +
		"    second\n" +
		"\n" +
		"+ Build (0h 0m 1.50s)\n" +
		"\n" +
		"    > Compile\n" +
		"        Command: make\n" +
		"        Return code: 0\n" +
		"\n" +
		"Done\n" +
		"\n"

	require.Equal(t, expected, buf.String())

	again := &bytes.Buffer{}
	require.NoError(t, r.Render(again, root))
	require.Equal(t, buf.Bytes(), again.Bytes())
}

func TestTextIndent(t *testing.T) {
	root := &source{
		name:     "x",
		duration: "0h 0m 0.00s",
		fragments: []Fragment{
			{Kind: KindChild, Title: "y", Text: "0h 0m 0.00s", Child: &source{
				name: "y",
				fragments: []Fragment{
					{Kind: KindMessage, Text: "hello"},
				},
			}},
		},
	}

	buf := &bytes.Buffer{}
	require.NoError(t, NewText(TextConfig{Indent: "\t"}).Render(buf, root))
	require.Contains(t, buf.String(), "\n\thello\n")
}

func TestKindString(t *testing.T) {
	require.Equal(t, "message", KindMessage.String())
	require.Equal(t, "note", KindNote.String())
	require.Equal(t, "command", KindCommand.String())
	require.Equal(t, "child", KindChild.String())
	require.Equal(t, "unknown", Kind(42).String())
}
