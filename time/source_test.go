package time

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStdSource(t *testing.T) {
	s := &StdSource{}

	now := s.Now()

	parsed, err := time.Parse(time.RFC3339Nano, now.Format(time.RFC3339Nano))
	require.NoError(t, err)
	require.Equal(t, now, parsed.Local())
}

func TestTestSource(t *testing.T) {
	s := &TestSource{}

	require.True(t, s.Now().IsZero())

	s.Set(1700000000, 500)

	require.Equal(t, time.Unix(1700000000, 500), s.Now())

	s.Advance(1500 * time.Millisecond)

	require.Equal(t, time.Unix(1700000001, 500000500), s.Now())
}
