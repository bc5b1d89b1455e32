package logbook

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/datarhei/shelllogger/encoding/json"
	"github.com/datarhei/shelllogger/process"
	"github.com/datarhei/shelllogger/stats"
	timesrc "github.com/datarhei/shelllogger/time"
)

// Type tags of the compound values in a document.
const (
	tagNode     = "node"
	tagDatetime = "datetime"
	tagPath     = "path"
	tagPair     = "pair"
	tagMessage  = "message"
	tagCommand  = "command"
	tagStat     = "stat"
	tagAux      = "aux"
)

const typeKey = "__type__"

type nodeDoc struct {
	Type       string       `json:"__type__"`
	Name       string       `json:"name"`
	LogDir     *pathDoc     `json:"log_dir"`
	StreamDir  *pathDoc     `json:"stream_dir"`
	ReportFile *pathDoc     `json:"report_file"`
	Indent     int          `json:"indent"`
	LoginShell bool         `json:"login_shell"`
	Entries    []any        `json:"entries"`
	InitTime   *datetimeDoc `json:"init_time"`
	DoneTime   *datetimeDoc `json:"done_time"`
	Duration   *string      `json:"duration"`
}

type datetimeDoc struct {
	Type  string `json:"__type__"`
	Value string `json:"value"`
}

type pathDoc struct {
	Type  string `json:"__type__"`
	Value string `json:"value"`
}

type pairDoc struct {
	Type  string `json:"__type__"`
	Items [2]any `json:"items"`
}

type messageDoc struct {
	Type      string       `json:"__type__"`
	Text      string       `json:"text"`
	Title     *string      `json:"title"`
	Timestamp *datetimeDoc `json:"timestamp"`
}

type commandDoc struct {
	Type       string             `json:"__type__"`
	Message    string             `json:"message"`
	Command    string             `json:"cmd"`
	ID         string             `json:"cmd_id"`
	Dir        *pathDoc           `json:"cwd"`
	Start      *datetimeDoc       `json:"start"`
	Finish     *datetimeDoc       `json:"finish"`
	Duration   int64              `json:"duration_ns"`
	ReturnCode int                `json:"return_code"`
	Stdout     *string            `json:"stdout"`
	Stderr     *string            `json:"stderr"`
	Console    string             `json:"console"`
	Trace      *string            `json:"trace"`
	TracePath  *pathDoc           `json:"trace_path"`
	Stats      map[string]statDoc `json:"stats"`
	Aux        auxDoc             `json:"aux"`
}

type statDoc struct {
	Type   string               `json:"__type__"`
	Series []pairDoc            `json:"series"`
	Groups map[string][]pairDoc `json:"groups"`
}

type auxDoc struct {
	Type        string   `json:"__type__"`
	Pwd         *pathDoc `json:"pwd"`
	Environment string   `json:"environment"`
	Umask       string   `json:"umask"`
	Hostname    string   `json:"hostname"`
	User        string   `json:"user"`
	Group       string   `json:"group"`
	Shell       string   `json:"shell"`
	Ulimit      string   `json:"ulimit"`
	CPU         string   `json:"cpu"`
}

// Encode serializes the tree below n. Every compound value carries a type
// tag. The output is indented and equal trees are encoded to equal bytes.
func Encode(n *Node) ([]byte, error) {
	doc, err := encodeNode(n, "")
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(doc)
	if err != nil {
		return nil, &SerializationError{Err: err}
	}

	return data, nil
}

func encodeNode(n *Node, path string) (*nodeDoc, error) {
	logDir, streamDir, reportFile := n.session.paths()

	n.lock.RLock()
	entries := append([]Entry{}, n.entries...)
	doc := &nodeDoc{
		Type:       tagNode,
		Name:       n.name,
		LogDir:     encodePath(logDir),
		StreamDir:  encodePath(streamDir),
		ReportFile: encodePath(reportFile),
		Indent:     n.depth,
		LoginShell: n.loginShell,
		Entries:    make([]any, 0, len(n.entries)),
		InitTime:   encodeDatetime(n.created),
		DoneTime:   encodeDatetime(n.done),
	}

	if len(n.duration) != 0 {
		duration := n.duration
		doc.Duration = &duration
	}
	n.lock.RUnlock()

	for i, e := range entries {
		epath := index(field(path, "entries"), i)

		switch e := e.(type) {
		case *Message:
			doc.Entries = append(doc.Entries, encodeMessage(e))
		case *Command:
			c, err := encodeCommand(e, epath)
			if err != nil {
				return nil, err
			}

			doc.Entries = append(doc.Entries, c)
		case *Node:
			child, err := encodeNode(e, epath)
			if err != nil {
				return nil, err
			}

			doc.Entries = append(doc.Entries, child)
		default:
			return nil, &SerializationError{Path: epath, Err: fmt.Errorf("unsupported entry %T", e)}
		}
	}

	return doc, nil
}

func encodeMessage(m *Message) *messageDoc {
	doc := &messageDoc{
		Type:      tagMessage,
		Text:      m.Text,
		Timestamp: encodeDatetime(m.Timestamp),
	}

	if len(m.Title) != 0 {
		title := m.Title
		doc.Title = &title
	}

	return doc
}

func encodeCommand(c *Command, path string) (*commandDoc, error) {
	if c.Result == nil {
		return nil, &SerializationError{Path: path, Err: errors.New("command without result")}
	}

	r := c.Result

	doc := &commandDoc{
		Type:       tagCommand,
		Message:    c.Message,
		Command:    r.Command,
		ID:         r.ID,
		Dir:        encodePath(r.Dir),
		Start:      encodeDatetime(r.Start),
		Finish:     encodeDatetime(r.Finish),
		Duration:   int64(r.Duration),
		ReturnCode: r.ReturnCode,
		Stdout:     r.Stdout,
		Stderr:     r.Stderr,
		Console:    r.Console,
		Trace:      r.Trace,
		TracePath:  encodePath(r.TracePath),
		Aux: auxDoc{
			Type:        tagAux,
			Pwd:         encodePath(r.Aux.Pwd),
			Environment: r.Aux.Environment,
			Umask:       r.Aux.Umask,
			Hostname:    r.Aux.Hostname,
			User:        r.Aux.User,
			Group:       r.Aux.Group,
			Shell:       r.Aux.Shell,
			Ulimit:      r.Aux.Ulimit,
			CPU:         r.Aux.CPU,
		},
	}

	if r.Stats != nil {
		doc.Stats = make(map[string]statDoc, len(r.Stats))

		for name, stat := range r.Stats {
			doc.Stats[name] = encodeStat(stat)
		}
	}

	return doc, nil
}

func encodeStat(s stats.Stat) statDoc {
	doc := statDoc{
		Type:   tagStat,
		Series: encodeSeries(s.Series),
	}

	if s.Groups != nil {
		doc.Groups = make(map[string][]pairDoc, len(s.Groups))

		for name, series := range s.Groups {
			doc.Groups[name] = encodeSeries(series)
		}
	}

	return doc
}

// encodeSeries keeps the difference between a nil and an empty series.
func encodeSeries(s stats.Series) []pairDoc {
	if s == nil {
		return nil
	}

	pairs := make([]pairDoc, 0, len(s))

	for _, sample := range s {
		pairs = append(pairs, pairDoc{
			Type:  tagPair,
			Items: [2]any{sample.Timestamp, sample.Value},
		})
	}

	return pairs
}

// encodeDatetime returns nil for the zero time.
func encodeDatetime(t time.Time) *datetimeDoc {
	if t.IsZero() {
		return nil
	}

	return &datetimeDoc{
		Type:  tagDatetime,
		Value: t.Format(time.RFC3339Nano),
	}
}

// encodePath returns nil for an empty path.
func encodePath(p string) *pathDoc {
	if len(p) == 0 {
		return nil
	}

	return &pathDoc{
		Type:  tagPath,
		Value: p,
	}
}

// Decode reconstructs a tree from a document. The returned node is not
// attached to a session, i.e. it can't run commands or be finalized as
// root. Any error is a *SerializationError.
func Decode(data []byte) (*Node, error) {
	var v any

	if err := json.UnmarshalNumber(data, &v); err != nil {
		return nil, &SerializationError{Err: err}
	}

	d := &decoder{}

	return d.node(v, "", -1, nil)
}

type decoder struct{}

func (d *decoder) node(v any, path string, parentDepth int, s *session) (*Node, error) {
	m, err := d.object(v, path, tagNode)
	if err != nil {
		return nil, err
	}

	n := &Node{}

	if n.name, err = d.str(m, path, "name"); err != nil {
		return nil, err
	}

	indent, err := d.integer(m, path, "indent")
	if err != nil {
		return nil, err
	}

	if parentDepth >= 0 && indent != int64(parentDepth+1) {
		return nil, &SerializationError{
			Path: field(path, "indent"),
			Err:  fmt.Errorf("indent %d doesn't match the depth %d", indent, parentDepth+1),
		}
	}

	n.depth = int(indent)

	if n.loginShell, err = d.boolean(m, path, "login_shell"); err != nil {
		return nil, err
	}

	logDir, err := d.path(m, path, "log_dir")
	if err != nil {
		return nil, err
	}

	streamDir, err := d.path(m, path, "stream_dir")
	if err != nil {
		return nil, err
	}

	reportFile, err := d.path(m, path, "report_file")
	if err != nil {
		return nil, err
	}

	if s == nil {
		s = &session{
			logDir:     logDir,
			streamDir:  streamDir,
			reportFile: reportFile,
			clock:      &timesrc.StdSource{},
		}
	}

	n.session = s

	if n.created, err = d.datetime(m, path, "init_time"); err != nil {
		return nil, err
	}

	if n.done, err = d.datetime(m, path, "done_time"); err != nil {
		return nil, err
	}

	duration, err := d.optionalStr(m, path, "duration")
	if err != nil {
		return nil, err
	}

	if duration != nil {
		n.duration = *duration
	}

	list, err := d.array(m, path, "entries")
	if err != nil {
		return nil, err
	}

	n.entries = make([]Entry, 0, len(list))

	for i, item := range list {
		epath := index(field(path, "entries"), i)

		tag, err := d.tag(item, epath)
		if err != nil {
			return nil, err
		}

		var e Entry

		switch tag {
		case tagNode:
			e, err = d.node(item, epath, n.depth, s)
		case tagMessage:
			e, err = d.message(item, epath)
		case tagCommand:
			e, err = d.command(item, epath)
		default:
			err = &SerializationError{Path: epath, Err: fmt.Errorf("unexpected type '%s' for an entry", tag)}
		}

		if err != nil {
			return nil, err
		}

		n.entries = append(n.entries, e)
	}

	return n, nil
}

func (d *decoder) message(v any, path string) (*Message, error) {
	m, err := d.object(v, path, tagMessage)
	if err != nil {
		return nil, err
	}

	msg := &Message{}

	if msg.Text, err = d.str(m, path, "text"); err != nil {
		return nil, err
	}

	title, err := d.optionalStr(m, path, "title")
	if err != nil {
		return nil, err
	}

	if title != nil {
		msg.Title = *title
	}

	if msg.Timestamp, err = d.datetime(m, path, "timestamp"); err != nil {
		return nil, err
	}

	return msg, nil
}

func (d *decoder) command(v any, path string) (*Command, error) {
	m, err := d.object(v, path, tagCommand)
	if err != nil {
		return nil, err
	}

	c := &Command{
		Result: &process.Result{},
	}

	r := c.Result

	if c.Message, err = d.str(m, path, "message"); err != nil {
		return nil, err
	}

	if r.Command, err = d.str(m, path, "cmd"); err != nil {
		return nil, err
	}

	if r.ID, err = d.str(m, path, "cmd_id"); err != nil {
		return nil, err
	}

	if r.Dir, err = d.path(m, path, "cwd"); err != nil {
		return nil, err
	}

	if r.Start, err = d.datetime(m, path, "start"); err != nil {
		return nil, err
	}

	if r.Finish, err = d.datetime(m, path, "finish"); err != nil {
		return nil, err
	}

	duration, err := d.integer(m, path, "duration_ns")
	if err != nil {
		return nil, err
	}

	r.Duration = time.Duration(duration)

	code, err := d.integer(m, path, "return_code")
	if err != nil {
		return nil, err
	}

	r.ReturnCode = int(code)

	if r.Stdout, err = d.optionalStr(m, path, "stdout"); err != nil {
		return nil, err
	}

	if r.Stderr, err = d.optionalStr(m, path, "stderr"); err != nil {
		return nil, err
	}

	if r.Console, err = d.str(m, path, "console"); err != nil {
		return nil, err
	}

	if r.Trace, err = d.optionalStr(m, path, "trace"); err != nil {
		return nil, err
	}

	if r.TracePath, err = d.path(m, path, "trace_path"); err != nil {
		return nil, err
	}

	if r.Stats, err = d.stats(m, path); err != nil {
		return nil, err
	}

	if r.Aux, err = d.aux(m, path); err != nil {
		return nil, err
	}

	return c, nil
}

func (d *decoder) stats(m map[string]any, path string) (map[string]stats.Stat, error) {
	v, err := d.value(m, path, "stats")
	if err != nil {
		return nil, err
	}

	if v == nil {
		return nil, nil
	}

	path = field(path, "stats")

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, d.typeError(path, "object", v)
	}

	result := make(map[string]stats.Stat, len(obj))

	for _, name := range sortedKeys(obj) {
		spath := field(path, name)

		sm, err := d.object(obj[name], spath, tagStat)
		if err != nil {
			return nil, err
		}

		stat := stats.Stat{}

		series, err := d.value(sm, spath, "series")
		if err != nil {
			return nil, err
		}

		if stat.Series, err = d.series(series, field(spath, "series")); err != nil {
			return nil, err
		}

		groups, err := d.value(sm, spath, "groups")
		if err != nil {
			return nil, err
		}

		if groups != nil {
			gpath := field(spath, "groups")

			gm, ok := groups.(map[string]any)
			if !ok {
				return nil, d.typeError(gpath, "object", groups)
			}

			stat.Groups = make(map[string]stats.Series, len(gm))

			for _, group := range sortedKeys(gm) {
				if stat.Groups[group], err = d.series(gm[group], field(gpath, group)); err != nil {
					return nil, err
				}
			}
		}

		result[name] = stat
	}

	return result, nil
}

func (d *decoder) series(v any, path string) (stats.Series, error) {
	if v == nil {
		return nil, nil
	}

	list, ok := v.([]any)
	if !ok {
		return nil, d.typeError(path, "array", v)
	}

	series := make(stats.Series, 0, len(list))

	for i, item := range list {
		ppath := index(path, i)

		items, err := d.pair(item, ppath)
		if err != nil {
			return nil, err
		}

		ts, err := d.number(items[0], index(field(ppath, "items"), 0))
		if err != nil {
			return nil, err
		}

		timestamp, err := ts.Int64()
		if err != nil {
			return nil, &SerializationError{Path: index(field(ppath, "items"), 0), Err: err}
		}

		val, err := d.number(items[1], index(field(ppath, "items"), 1))
		if err != nil {
			return nil, err
		}

		value, err := val.Float64()
		if err != nil {
			return nil, &SerializationError{Path: index(field(ppath, "items"), 1), Err: err}
		}

		series = append(series, stats.Sample{
			Timestamp: timestamp,
			Value:     value,
		})
	}

	return series, nil
}

func (d *decoder) pair(v any, path string) ([]any, error) {
	m, err := d.object(v, path, tagPair)
	if err != nil {
		return nil, err
	}

	items, err := d.array(m, path, "items")
	if err != nil {
		return nil, err
	}

	if len(items) != 2 {
		return nil, &SerializationError{Path: field(path, "items"), Err: fmt.Errorf("a pair needs 2 items, found %d", len(items))}
	}

	return items, nil
}

func (d *decoder) aux(m map[string]any, path string) (process.Aux, error) {
	aux := process.Aux{}

	v, err := d.value(m, path, "aux")
	if err != nil {
		return aux, err
	}

	path = field(path, "aux")

	am, err := d.object(v, path, tagAux)
	if err != nil {
		return aux, err
	}

	if aux.Pwd, err = d.path(am, path, "pwd"); err != nil {
		return aux, err
	}

	fields := []struct {
		key    string
		target *string
	}{
		{"environment", &aux.Environment},
		{"umask", &aux.Umask},
		{"hostname", &aux.Hostname},
		{"user", &aux.User},
		{"group", &aux.Group},
		{"shell", &aux.Shell},
		{"ulimit", &aux.Ulimit},
		{"cpu", &aux.CPU},
	}

	for _, f := range fields {
		if *f.target, err = d.str(am, path, f.key); err != nil {
			return aux, err
		}
	}

	return aux, nil
}

// tag returns the type tag of the object v.
func (d *decoder) tag(v any, path string) (string, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", d.typeError(path, "object", v)
	}

	t, ok := m[typeKey]
	if !ok {
		return "", &SerializationError{Path: path, Err: errors.New("missing type tag")}
	}

	tag, ok := t.(string)
	if !ok {
		return "", d.typeError(field(path, typeKey), "string", t)
	}

	return tag, nil
}

// object returns v as an object after checking its type tag.
func (d *decoder) object(v any, path, tag string) (map[string]any, error) {
	t, err := d.tag(v, path)
	if err != nil {
		return nil, err
	}

	if t != tag {
		return nil, &SerializationError{Path: path, Err: fmt.Errorf("unexpected type '%s', expected '%s'", t, tag)}
	}

	return v.(map[string]any), nil
}

func (d *decoder) value(m map[string]any, path, key string) (any, error) {
	v, ok := m[key]
	if !ok {
		return nil, &SerializationError{Path: field(path, key), Err: errors.New("missing field")}
	}

	return v, nil
}

func (d *decoder) str(m map[string]any, path, key string) (string, error) {
	v, err := d.value(m, path, key)
	if err != nil {
		return "", err
	}

	s, ok := v.(string)
	if !ok {
		return "", d.typeError(field(path, key), "string", v)
	}

	return s, nil
}

// optionalStr returns nil for null.
func (d *decoder) optionalStr(m map[string]any, path, key string) (*string, error) {
	v, err := d.value(m, path, key)
	if err != nil {
		return nil, err
	}

	if v == nil {
		return nil, nil
	}

	s, ok := v.(string)
	if !ok {
		return nil, d.typeError(field(path, key), "string", v)
	}

	return &s, nil
}

func (d *decoder) boolean(m map[string]any, path, key string) (bool, error) {
	v, err := d.value(m, path, key)
	if err != nil {
		return false, err
	}

	b, ok := v.(bool)
	if !ok {
		return false, d.typeError(field(path, key), "boolean", v)
	}

	return b, nil
}

func (d *decoder) number(v any, path string) (json.Number, error) {
	n, ok := v.(json.Number)
	if !ok {
		return "", d.typeError(path, "number", v)
	}

	return n, nil
}

func (d *decoder) integer(m map[string]any, path, key string) (int64, error) {
	v, err := d.value(m, path, key)
	if err != nil {
		return 0, err
	}

	n, err := d.number(v, field(path, key))
	if err != nil {
		return 0, err
	}

	i, err := n.Int64()
	if err != nil {
		return 0, &SerializationError{Path: field(path, key), Err: err}
	}

	return i, nil
}

func (d *decoder) array(m map[string]any, path, key string) ([]any, error) {
	v, err := d.value(m, path, key)
	if err != nil {
		return nil, err
	}

	list, ok := v.([]any)
	if !ok {
		return nil, d.typeError(field(path, key), "array", v)
	}

	return list, nil
}

// datetime returns the zero time for null. Times are returned in the
// local time zone.
func (d *decoder) datetime(m map[string]any, path, key string) (time.Time, error) {
	v, err := d.value(m, path, key)
	if err != nil {
		return time.Time{}, err
	}

	if v == nil {
		return time.Time{}, nil
	}

	path = field(path, key)

	dm, err := d.object(v, path, tagDatetime)
	if err != nil {
		return time.Time{}, err
	}

	value, err := d.str(dm, path, "value")
	if err != nil {
		return time.Time{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, &SerializationError{Path: field(path, "value"), Err: err}
	}

	// Keeps the offset of the writer, not the zone of the reader
	return t, nil
}

// path returns an empty string for null.
func (d *decoder) path(m map[string]any, path, key string) (string, error) {
	v, err := d.value(m, path, key)
	if err != nil {
		return "", err
	}

	if v == nil {
		return "", nil
	}

	path = field(path, key)

	pm, err := d.object(v, path, tagPath)
	if err != nil {
		return "", err
	}

	return d.str(pm, path, "value")
}

func (d *decoder) typeError(path, expected string, v any) error {
	return &SerializationError{Path: path, Err: fmt.Errorf("expected %s, found %s", expected, kind(v))}
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}

	return fmt.Sprintf("%T", v)
}

func field(path, key string) string {
	if len(path) == 0 {
		return key
	}

	return path + "." + key
}

func index(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
