// Package value provides typed configuration values. Each value is bound
// to a field of the configuration data and can be set from its string
// representation, e.g. from an environment variable.
package value

type Value interface {
	// String returns a string representation of the value.
	String() string

	// Set a new value from its string representation. Returns an error
	// if the string can't be converted. The current value is kept in
	// that case.
	Set(string) error

	// Validate the value. The returned error tells what is wrong with
	// the current value. Returns nil if the value is OK.
	Validate() error

	// IsEmpty returns whether the value is the empty value of its type.
	IsEmpty() bool
}
