package streamfile_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/streamfile/pkg/streamfile"
)

func Test_ParseBuffering_Accepts_Known_Forms(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want streamfile.Buffering
	}{
		{"", streamfile.NoBuffering()},
		{"none", streamfile.NoBuffering()},
		{"LINE", streamfile.LineBuffering()},
		{"block", streamfile.BlockBuffering(0)},
		{"block:0", streamfile.BlockBuffering(0)},
		{"block:4096", streamfile.BlockBuffering(4096)},
	}

	for _, tc := range cases {
		got, err := streamfile.ParseBuffering(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func Test_ParseBuffering_Returns_ErrInvalidBuffering_When_Input_Is_Unknown(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"full", "block:-1", "block:abc", "line:10", "none:1"} {
		_, err := streamfile.ParseBuffering(in)
		require.ErrorIs(t, err, streamfile.ErrInvalidBuffering, in)
	}
}

func Test_Buffering_String_Round_Trips_Through_Text(t *testing.T) {
	t.Parallel()

	for _, b := range []streamfile.Buffering{
		streamfile.NoBuffering(),
		streamfile.LineBuffering(),
		streamfile.BlockBuffering(512),
	} {
		text, err := b.MarshalText()
		require.NoError(t, err)

		var got streamfile.Buffering
		require.NoError(t, got.UnmarshalText(text))
		require.Equal(t, b, got, string(text))
	}

	require.Equal(t, "block:32768", streamfile.BlockBuffering(0).String())
}

func Test_ParseMode_Maps_Names_To_Modes(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]streamfile.Mode{
		"write":     streamfile.WriteMode,
		"append":    streamfile.AppendMode,
		"readwrite": streamfile.ReadWriteMode,
		"rw":        streamfile.ReadWriteMode,
	} {
		got, err := streamfile.ParseMode(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
		require.NotEmpty(t, got.String())
	}

	_, err := streamfile.ParseMode("truncate")
	require.ErrorIs(t, err, streamfile.ErrInvalidMode)
	require.Equal(t, "Mode(9)", streamfile.Mode(9).String())
}
