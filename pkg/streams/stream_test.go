package streams_test

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/streamfile/pkg/streams"
)

func Test_InputStream_Returns_EOF_Repeatedly_When_Exhausted(t *testing.T) {
	t.Parallel()

	s := streams.FromSlice([]int{1})

	v, err := s.Read()
	require.NoError(t, err)
	require.Equal(t, 1, v)

	for range 3 {
		_, err = s.Read()
		require.ErrorIs(t, err, io.EOF)
	}
}

func Test_InputStream_Returns_Unread_Values_Before_EOF(t *testing.T) {
	t.Parallel()

	s := streams.FromSlice([]string{"a"})

	v, err := s.Read()
	require.NoError(t, err)

	_, err = s.Read()
	require.ErrorIs(t, err, io.EOF)

	s.Unread(v)

	got, err := s.Read()
	require.NoError(t, err)
	require.Equal(t, "a", got)
}

func Test_InputStream_Peek_Does_Not_Consume(t *testing.T) {
	t.Parallel()

	s := streams.FromSlice([]int{1, 2})

	p, err := s.Peek()
	require.NoError(t, err)
	require.Equal(t, 1, p)

	all, err := streams.ReadAll(s)
	require.NoError(t, err)

	if diff := cmp.Diff([]int{1, 2}, all); diff != "" {
		t.Fatalf("ReadAll mismatch (-want +got):\n%s", diff)
	}
}

func Test_InputStream_Keeps_Error_Sticky_When_Source_Fails(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	calls := 0

	s := streams.NewInputStream(func() (int, error) {
		calls++

		return 0, boom
	})

	_, err := s.Read()
	require.ErrorIs(t, err, boom)

	_, err = s.Read()
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func Test_OutputStream_Rejects_Writes_When_Closed(t *testing.T) {
	t.Parallel()

	var got []int

	closes := 0
	s := streams.NewOutputStream(func(v int) error {
		got = append(got, v)

		return nil
	}, func() error {
		closes++

		return nil
	})

	require.NoError(t, streams.WriteAll(s, 1, 2))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.True(t, s.Closed())
	require.Equal(t, 1, closes)
	require.ErrorIs(t, s.Write(3), streams.ErrClosed)

	if diff := cmp.Diff([]int{1, 2}, got); diff != "" {
		t.Fatalf("written mismatch (-want +got):\n%s", diff)
	}
}

func Test_Connect_Copies_All_Values_When_Input_Ends(t *testing.T) {
	t.Parallel()

	var got []string

	out := streams.NewOutputStream(func(v string) error {
		got = append(got, v)

		return nil
	}, nil)

	n, err := streams.Connect(streams.FromSlice([]string{"x", "y", "z"}), out)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.Equal(t, []string{"x", "y", "z"}, got)
	require.False(t, out.Closed())
}

func Test_FromReader_Yields_Chunks_Of_At_Most_Chunk_Size(t *testing.T) {
	t.Parallel()

	s := streams.FromReader(strings.NewReader("ABCDEFGH"), 3)

	chunks, err := streams.ReadAll(s)
	require.NoError(t, err)

	got := make([]string, len(chunks))
	for i, c := range chunks {
		got[i] = string(c)
	}

	if diff := cmp.Diff([]string{"ABC", "DEF", "GH"}, got); diff != "" {
		t.Fatalf("chunks mismatch (-want +got):\n%s", diff)
	}
}

func Test_FromReader_Yields_Data_Before_Error_When_Reader_Returns_Both(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	r := io.MultiReader(strings.NewReader("abc"), iotest.ErrReader(boom))

	s := streams.FromReader(iotest.DataErrReader(r), 16)

	chunk, err := s.Read()
	require.NoError(t, err)
	require.Equal(t, "abc", string(chunk))

	_, err = s.Read()
	require.ErrorIs(t, err, boom)
}

func Test_FromReader_Uses_Default_Chunk_Size_When_Size_Is_Not_Positive(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("x"), streams.DefaultChunkSize+1)

	chunks, err := streams.ReadAll(streams.FromReader(bytes.NewReader(data), 0))
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Len(t, chunks[0], streams.DefaultChunkSize)
}

func Test_FromReader_Chunks_Do_Not_Alias_When_Retained(t *testing.T) {
	t.Parallel()

	s := streams.FromReader(strings.NewReader("aabb"), 2)

	first, err := s.Read()
	require.NoError(t, err)

	second, err := s.Read()
	require.NoError(t, err)

	require.Equal(t, "aa", string(first))
	require.Equal(t, "bb", string(second))
	require.NotEqual(t, unsafe.Pointer(&first[0]), unsafe.Pointer(&second[0]))
}

func Test_FromReaderReusing_Chunks_Alias_One_Buffer_When_Retained(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 2)
	s := streams.FromReaderReusing(strings.NewReader("aabb"), buf)

	first, err := s.Read()
	require.NoError(t, err)
	require.Equal(t, "aa", string(first))

	second, err := s.Read()
	require.NoError(t, err)

	require.Equal(t, unsafe.Pointer(&buf[0]), unsafe.Pointer(&first[0]))
	require.Equal(t, unsafe.Pointer(&first[0]), unsafe.Pointer(&second[0]))

	// The retained first chunk now shows the second chunk's bytes.
	require.Equal(t, "bb", string(first))
}

func Test_FromReaderReusing_Panics_When_Buffer_Is_Empty(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		streams.FromReaderReusing(strings.NewReader("x"), nil)
	})
}

func Test_ToWriter_Flushes_On_Close_When_Writer_Buffers(t *testing.T) {
	t.Parallel()

	var sink bytes.Buffer

	bw := bufio.NewWriterSize(&sink, 64)
	s := streams.ToWriter(bw)

	require.NoError(t, s.Write([]byte("hello")))
	require.Equal(t, 0, sink.Len())

	require.NoError(t, s.Close())
	require.Equal(t, "hello", sink.String())
}

func Test_ToWriter_Reports_Short_Write_When_Writer_Stops_Early(t *testing.T) {
	t.Parallel()

	s := streams.ToWriter(shortWriter{})

	require.ErrorIs(t, s.Write([]byte("abc")), io.ErrShortWrite)
}

func Test_AsReader_Reassembles_Bytes_When_Read_In_Small_Pieces(t *testing.T) {
	t.Parallel()

	s := streams.FromReader(strings.NewReader("the quick brown fox"), 4)

	got, err := io.ReadAll(iotest.OneByteReader(streams.AsReader(s)))
	require.NoError(t, err)
	require.Equal(t, "the quick brown fox", string(got))
}

func Test_AsWriter_Sends_Copies_When_Caller_Reuses_Buffer(t *testing.T) {
	t.Parallel()

	var chunks [][]byte

	out := streams.NewOutputStream(func(p []byte) error {
		chunks = append(chunks, p)

		return nil
	}, nil)

	w := streams.AsWriter(out)
	buf := []byte("ab")

	_, err := w.Write(buf)
	require.NoError(t, err)

	copy(buf, "cd")

	_, err = w.Write(buf)
	require.NoError(t, err)

	require.Equal(t, "ab", string(chunks[0]))
	require.Equal(t, "cd", string(chunks[1]))
}

func Test_ReadBytes_Concatenates_Chunks(t *testing.T) {
	t.Parallel()

	got, err := streams.ReadBytes(streams.FromReader(strings.NewReader("ABCDEFGH"), 3))
	require.NoError(t, err)
	require.Equal(t, "ABCDEFGH", string(got))
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	return len(p) / 2, nil
}

func Test_CopyBytes_Counts_Bytes_When_Chunks_Differ_In_Size(t *testing.T) {
	t.Parallel()

	in := streams.FromSlice([][]byte{[]byte("ab"), []byte("cde"), {}})

	var buf bytes.Buffer

	n, err := streams.CopyBytes(in, streams.ToWriter(&buf))
	require.NoError(t, err)
	require.Equal(t, int64(5), n)
	require.Equal(t, "abcde", buf.String())
}
