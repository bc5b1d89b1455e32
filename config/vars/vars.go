// Package vars keeps the registry of configuration variables. Each variable
// binds a typed value to a name and an environment variable.
package vars

import (
	"fmt"
	"os"

	"github.com/datarhei/shelllogger/config/value"
)

// Levels of the messages.
const (
	Lerror = "error"
	Lwarn  = "warn"
	Linfo  = "info"
)

type variable struct {
	value       value.Value // The actual value
	defVal      string      // The default value in string representation
	name        string      // A name for this value
	envName     string      // The environment variable that corresponds to this value
	envAltNames []string    // Alternative environment variable names
	description string      // A description for this value
	required    bool        // Whether a non-empty value is required
	disguise    bool        // Whether the value should be disguised if printed
	merged      bool        // Whether this value has been replaced by its corresponding environment variable
}

// Variable is the printable state of a variable.
type Variable struct {
	Value       string
	Name        string
	EnvName     string
	Description string
	Merged      bool
}

type message struct {
	message  string   // The log message
	variable Variable // The config field this message refers to
	level    string   // The loglevel for this message
}

type Variables struct {
	vars []*variable
	logs []message

	// LookupEnv is the source for Merge. Defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

func (vs *Variables) Register(val value.Value, name, envName string, envAltNames []string, description string, required, disguise bool) {
	vs.vars = append(vs.vars, &variable{
		value:       val,
		defVal:      val.String(),
		name:        name,
		envName:     envName,
		envAltNames: envAltNames,
		description: description,
		required:    required,
		disguise:    disguise,
	})
}

// Transfer copies the merged state of the variables with the same name.
func (vs *Variables) Transfer(vss *Variables) {
	for _, v := range vs.vars {
		if vss.IsMerged(v.name) {
			v.merged = true
		}
	}
}

func (vs *Variables) SetDefault(name string) {
	v := vs.findVariable(name)
	if v == nil {
		return
	}

	v.value.Set(v.defVal)
}

func (vs *Variables) Get(name string) (string, error) {
	v := vs.findVariable(name)
	if v == nil {
		return "", fmt.Errorf("variable '%s' not found", name)
	}

	return v.value.String(), nil
}

func (vs *Variables) Set(name, val string) error {
	v := vs.findVariable(name)
	if v == nil {
		return fmt.Errorf("variable '%s' not found", name)
	}

	return v.value.Set(val)
}

// Describe returns the state of all variables in the order of their
// registration. Disguised values are masked.
func (vs *Variables) Describe() []Variable {
	list := make([]Variable, 0, len(vs.vars))

	for _, v := range vs.vars {
		list = append(list, v.describe())
	}

	return list
}

func (vs *Variables) Log(level, name string, format string, args ...interface{}) {
	v := vs.findVariable(name)
	if v == nil {
		return
	}

	vs.logs = append(vs.logs, message{
		message:  fmt.Sprintf(format, args...),
		variable: v.describe(),
		level:    level,
	})
}

// Merge sets the values from their environment variables. A value found
// under an alternative name is set with a deprecation warning.
func (vs *Variables) Merge() {
	lookup := vs.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	for _, v := range vs.vars {
		if len(v.envName) == 0 {
			continue
		}

		envval, ok := lookup(v.envName)
		if !ok {
			foundAltName := false

			for _, envName := range v.envAltNames {
				envval, ok = lookup(envName)
				if ok {
					foundAltName = true
					vs.Log(Lwarn, v.name, "deprecated name, please use %s", v.envName)
					break
				}
			}

			if !foundAltName {
				continue
			}
		}

		if err := v.value.Set(envval); err != nil {
			vs.Log(Lerror, v.name, "%s", err.Error())
		}

		v.merged = true
	}
}

func (vs *Variables) IsMerged(name string) bool {
	v := vs.findVariable(name)
	if v == nil {
		return false
	}

	return v.merged
}

func (vs *Variables) Validate() {
	for _, v := range vs.vars {
		vs.Log(Linfo, v.name, "%s", "")

		if err := v.value.Validate(); err != nil {
			vs.Log(Lerror, v.name, "%s", err.Error())
		}

		if v.required && v.value.IsEmpty() {
			vs.Log(Lerror, v.name, "a value is required")
		}
	}
}

func (vs *Variables) ResetLogs() {
	vs.logs = nil
}

func (vs *Variables) Messages(logger func(level string, v Variable, message string)) {
	for _, l := range vs.logs {
		logger(l.level, l.variable, l.message)
	}
}

func (vs *Variables) HasErrors() bool {
	for _, l := range vs.logs {
		if l.level == Lerror {
			return true
		}
	}

	return false
}

// Overrides returns the names of the values that have been set from
// the environment.
func (vs *Variables) Overrides() []string {
	overrides := []string{}

	for _, v := range vs.vars {
		if v.merged {
			overrides = append(overrides, v.name)
		}
	}

	return overrides
}

func (vs *Variables) findVariable(name string) *variable {
	for _, v := range vs.vars {
		if v.name == name {
			return v
		}
	}

	return nil
}

func (v *variable) describe() Variable {
	d := Variable{
		Value:       v.value.String(),
		Name:        v.name,
		EnvName:     v.envName,
		Description: v.description,
		Merged:      v.merged,
	}

	if v.disguise {
		d.Value = "***"
	}

	return d
}
