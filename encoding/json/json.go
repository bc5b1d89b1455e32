// Package json wraps encoding/json with error messages that point to the
// offending position in the input.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type Number = json.Number

// Marshal is a wrapper for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalIndent marshals v with four spaces of indentation.
func MarshalIndent(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "    ")
}

// Unmarshal is a wrapper for json.Unmarshal. Errors are passed through FormatError.
func Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return FormatError(data, err)
	}

	return nil
}

// UnmarshalNumber decodes data like Unmarshal, but numbers are kept as Number
// instead of being converted to float64.
func UnmarshalNumber(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := dec.Decode(v); err != nil {
		return FormatError(data, err)
	}

	if dec.More() {
		return fmt.Errorf("unexpected data after the top-level value")
	}

	return nil
}

// FormatError takes the marshalled data and the error from Unmarshal and returns a detailed
// error message where the error was and what the error is.
func FormatError(input []byte, err error) error {
	var syntaxError *json.SyntaxError
	if errors.As(err, &syntaxError) {
		line, character, offsetError := lineAndCharacter(input, int(syntaxError.Offset))
		if offsetError != nil {
			return err
		}

		return fmt.Errorf("syntax error at line %d, character %d: %w", line, character, err)
	}

	var typeError *json.UnmarshalTypeError
	if errors.As(err, &typeError) {
		line, character, offsetError := lineAndCharacter(input, int(typeError.Offset))
		if offsetError != nil {
			return err
		}

		return fmt.Errorf("expect type '%s' for '%s' at line %d, character %d: %w", typeError.Type.String(), typeError.Field, line, character, err)
	}

	return err
}

func lineAndCharacter(input []byte, offset int) (line int, character int, err error) {
	if offset > len(input) || offset < 0 {
		return 0, 0, fmt.Errorf("couldn't find offset %d within the input", offset)
	}

	// Humans tend to count from 1.
	line = 1

	for i, b := range input {
		if b == '\n' {
			line++
			character = 0
		}
		character++
		if i == offset {
			break
		}
	}

	return line, character, nil
}
