package vars

import (
	"testing"

	"github.com/datarhei/shelllogger/config/value"

	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestVars(t *testing.T) {
	v1 := Variables{}

	s := ""

	v1.Register(value.NewString(&s, "foobar"), "string", "", nil, "a string", false, false)

	require.Equal(t, "foobar", s)
	x, _ := v1.Get("string")
	require.Equal(t, "foobar", x)

	v1.Set("string", "foobaz")
	require.Equal(t, "foobaz", s)

	v1.SetDefault("string")
	require.Equal(t, "foobar", s)

	_, err := v1.Get("unknown")
	require.Error(t, err)
	require.Error(t, v1.Set("unknown", "x"))
}

func TestSetDefault(t *testing.T) {
	v := Variables{}
	s := ""

	v.Register(value.NewString(&s, "foobar"), "string", "", nil, "a string", false, false)

	require.Equal(t, "foobar", s)

	v.Set("string", "foobaz")

	require.Equal(t, "foobaz", s)

	v.SetDefault("strong")

	require.Equal(t, "foobaz", s)

	v.SetDefault("string")

	require.Equal(t, "foobar", s)
}

func TestMerge(t *testing.T) {
	v := Variables{
		LookupEnv: env(map[string]string{
			"SHELLLOG_NAME":   "session",
			"SHELLLOG_LOGIN":  "nope",
			"OLD_LOGDIR_NAME": "/var/log",
		}),
	}

	name := ""
	login := false
	logdir := ""
	shell := ""

	v.Register(value.NewString(&name, ""), "name", "SHELLLOG_NAME", nil, "name", false, false)
	v.Register(value.NewBool(&login, false), "login", "SHELLLOG_LOGIN", nil, "login", false, false)
	v.Register(value.NewString(&logdir, "."), "logdir", "SHELLLOG_LOGDIR", []string{"OLD_LOGDIR_NAME"}, "logdir", false, false)
	v.Register(value.NewString(&shell, "/bin/sh"), "shell", "SHELLLOG_SHELL", nil, "shell", false, false)

	v.Merge()

	require.Equal(t, "session", name)
	require.Equal(t, false, login)
	require.Equal(t, "/var/log", logdir)
	require.Equal(t, "/bin/sh", shell)

	require.Equal(t, []string{"name", "login", "logdir"}, v.Overrides())
	require.True(t, v.IsMerged("logdir"))
	require.False(t, v.IsMerged("shell"))
	require.True(t, v.HasErrors())

	levels := map[string]string{}

	v.Messages(func(level string, v Variable, message string) {
		levels[v.Name] = level
	})

	require.Equal(t, map[string]string{"login": Lerror, "logdir": Lwarn}, levels)
}

func TestValidate(t *testing.T) {
	v := Variables{}

	id := ""
	secret := "geheim"
	prefix := "%Q"

	v.Register(value.NewString(&id, ""), "id", "", nil, "id", true, false)
	v.Register(value.NewString(&secret, "geheim"), "secret", "", nil, "secret", false, true)
	v.Register(value.NewStrftime(&prefix, "%Q"), "prefix", "", nil, "prefix", false, false)

	v.Validate()

	require.True(t, v.HasErrors())

	errors := []string{}
	values := map[string]string{}

	v.Messages(func(level string, v Variable, message string) {
		values[v.Name] = v.Value

		if level == Lerror {
			errors = append(errors, v.Name)
		}
	})

	require.Equal(t, []string{"id", "prefix"}, errors)
	require.Equal(t, "***", values["secret"])

	v.ResetLogs()

	require.False(t, v.HasErrors())
}

func TestDescribe(t *testing.T) {
	v := Variables{}

	a := ""
	b := ""

	v.Register(value.NewString(&a, "x"), "a", "SHELLLOG_A", nil, "first", false, false)
	v.Register(value.NewString(&b, "y"), "b", "", nil, "second", false, true)

	require.Equal(t, []Variable{
		{Value: "x", Name: "a", EnvName: "SHELLLOG_A", Description: "first"},
		{Value: "***", Name: "b", Description: "second"},
	}, v.Describe())
}

func TestTransfer(t *testing.T) {
	v1 := Variables{LookupEnv: env(map[string]string{"SHELLLOG_A": "1"})}
	v2 := Variables{}

	a1, a2 := "", ""

	v1.Register(value.NewString(&a1, ""), "a", "SHELLLOG_A", nil, "", false, false)
	v2.Register(value.NewString(&a2, ""), "a", "SHELLLOG_A", nil, "", false, false)

	v1.Merge()
	v2.Transfer(&v1)

	require.True(t, v2.IsMerged("a"))
}
