package log

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/datarhei/shelllogger/encoding/json"
)

// Formatter turns an Event into a line of output.
type Formatter interface {
	Bytes(e *Event) []byte
}

type jsonFormatter struct{}

func NewJSONFormatter() Formatter {
	return &jsonFormatter{}
}

func (f *jsonFormatter) Bytes(e *Event) []byte {
	data := make(map[string]interface{}, len(e.Data)+5)

	for k, v := range e.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}

	data["ts"] = e.Time
	data["level"] = e.Level.String()
	data["component"] = e.Component

	if len(e.Caller) != 0 {
		data["caller"] = e.Caller
	}

	if len(e.Message) != 0 {
		data["message"] = e.Message
	}

	line, err := json.Marshal(data)
	if err != nil {
		line, _ = json.Marshal(map[string]string{"error": err.Error()})
	}

	return append(line, '\n')
}

type consoleFormatter struct {
	color bool
}

func NewConsoleFormatter(useColor bool) Formatter {
	return &consoleFormatter{
		color: useColor,
	}
}

func (f *consoleFormatter) Bytes(e *Event) []byte {
	var b strings.Builder

	level := e.Level.String()

	if f.color {
		switch e.Level {
		case Ldebug:
			level = "\033[35m" + level + "\033[0m"
		case Linfo:
			level = "\033[34m" + level + "\033[0m"
		case Lwarn:
			level = "\033[33m" + level + "\033[0m"
		case Lerror:
			level = "\033[31m\033[5m" + level + "\033[0m"
		}
	}

	b.WriteString(f.kv("ts", e.Time.UTC().Format(time.RFC3339)))
	b.WriteByte(' ')
	b.WriteString(f.kv("level", level))
	b.WriteByte(' ')
	b.WriteString(f.kv("component", strconv.Quote(e.Component)))

	if len(e.Message) != 0 {
		b.WriteByte(' ')
		b.WriteString(f.kv("msg", strconv.Quote(e.Message)))
	}

	keys := make([]string, 0, len(e.Data))
	for key := range e.Data {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		b.WriteByte(' ')
		b.WriteString(f.kv(key, f.value(e.Data[key])))
	}

	b.WriteByte('\n')

	return []byte(b.String())
}

func (f *consoleFormatter) value(value interface{}) string {
	switch val := value.(type) {
	case bool:
		return strconv.FormatBool(val)
	case string:
		return strconv.Quote(val)
	case error:
		return strconv.Quote(val.Error())
	case fmt.Stringer:
		return strconv.Quote(val.String())
	}

	data, err := json.Marshal(value)
	if err != nil {
		return strconv.Quote(err.Error())
	}

	return string(data)
}

func (f *consoleFormatter) kv(key, value string) string {
	if !f.color {
		return key + "=" + value
	}

	if key == "error" {
		value = "\033[31m" + value + "\033[0m"
	}

	return "\033[90m" + key + "=\033[0m" + value
}
