package glob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatterns(t *testing.T) {
	ok, err := Match("**/a/b/**", "/tmp/a/b/out.log", '/')

	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Match("LS_*", "LS_COLORS")

	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Match("{BASH_FUNC_*,_}", "_")

	require.NoError(t, err)
	require.True(t, ok)
}

func TestInvalidPattern(t *testing.T) {
	_, err := Match("[", "a")
	require.Error(t, err)

	_, err = CompileSet([]string{"A*", "["})
	require.Error(t, err)
}

func TestSet(t *testing.T) {
	set, err := CompileSet([]string{"LS_COLORS", "BASH_FUNC_*"})
	require.NoError(t, err)

	require.True(t, set.Match("LS_COLORS"))
	require.True(t, set.Match("BASH_FUNC_module%%"))
	require.False(t, set.Match("HOME"))

	var empty Set
	require.False(t, empty.Match("HOME"))
}
