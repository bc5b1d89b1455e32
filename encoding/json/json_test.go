package json

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatSyntaxError(t *testing.T) {
	data := []byte("{\n  \"a\": 1,\n  \"b\": ]\n}")

	var v map[string]interface{}
	err := Unmarshal(data, &v)
	require.Error(t, err)
	require.Contains(t, err.Error(), "syntax error at line 3")
}

func TestFormatTypeError(t *testing.T) {
	data := []byte("{\"a\": \"x\"}")

	var v struct {
		A int `json:"a"`
	}
	err := Unmarshal(data, &v)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expect type 'int' for 'a'")
}

func TestUnmarshalNumber(t *testing.T) {
	var v map[string]interface{}
	err := UnmarshalNumber([]byte(`{"ts": 1700000000123}`), &v)
	require.NoError(t, err)

	n, ok := v["ts"].(Number)
	require.True(t, ok)

	ts, err := n.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(1700000000123), ts)
}

func TestUnmarshalNumberTrailingData(t *testing.T) {
	var v map[string]interface{}
	err := UnmarshalNumber([]byte(`{} {}`), &v)
	require.Error(t, err)
}
