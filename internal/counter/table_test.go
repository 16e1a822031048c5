package counter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrecondition(t *testing.T) {
	var zero Precondition
	require.False(t, zero.IsSet())
	require.True(t, zero.Matches(""))
	require.True(t, zero.Matches("abc"))
	require.Equal(t, "*", Unconditional().String())

	blank := IfMatch("")
	require.True(t, blank.IsSet())
	require.True(t, blank.Matches(""))
	require.False(t, blank.Matches("abc"))
	require.Equal(t, `""`, blank.String())

	tagged := IfMatch("abc")
	require.True(t, tagged.Matches("abc"))
	require.False(t, tagged.Matches(""))
	require.False(t, tagged.Matches("abd"))
	require.Equal(t, "abc", tagged.ETag())
}
