package fileparser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func indexAll(t *testing.T, fp *FileParser) {
	t.Helper()
	ok, err := fp.Index(nil, func() bool { return false })
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUTF8BasicLines(t *testing.T) {
	fp := FromBytes([]byte("alpha\nbeta\ngamma"), nil)
	indexAll(t, fp)
	require.Equal(t, int64(3), fp.LineCount())

	for i, want := range []string{"alpha", "beta", "gamma"} {
		got, err := fp.ReadLine(int64(i))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestUTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("one\ntwo\n")...)
	fp := FromBytes(data, nil)
	indexAll(t, fp)
	require.Equal(t, UTF8, fp.Encoding())
	require.Equal(t, int64(2), fp.LineCount())
	l0, err := fp.ReadLine(0)
	require.NoError(t, err)
	require.Equal(t, "one", l0)
}

// UTF-16LE "12\n3" with no terminator on the final line.
func TestUTF16LELines(t *testing.T) {
	data := []byte{0xFF, 0xFE, 0x31, 0x00, 0x32, 0x00, 0x0A, 0x00, 0x33, 0x00}
	fp := FromBytes(data, nil)
	indexAll(t, fp)
	require.Equal(t, UTF16LE, fp.Encoding())
	require.Equal(t, int64(2), fp.LineCount())

	l0, err := fp.ReadLine(0)
	require.NoError(t, err)
	require.Equal(t, "12", l0)

	l1, err := fp.ReadLine(1)
	require.NoError(t, err)
	require.Equal(t, "3", l1)
}

func TestUTF16BELines(t *testing.T) {
	data := []byte{0xFE, 0xFF, 0x00, 0x31, 0x00, 0x32, 0x00, 0x0A, 0x00, 0x33}
	fp := FromBytes(data, nil)
	indexAll(t, fp)
	require.Equal(t, UTF16BE, fp.Encoding())
	require.Equal(t, int64(2), fp.LineCount())

	l0, err := fp.ReadLine(0)
	require.NoError(t, err)
	require.Equal(t, "12", l0)
	l1, err := fp.ReadLine(1)
	require.NoError(t, err)
	require.Equal(t, "3", l1)
}

func TestUTF32LELines(t *testing.T) {
	data := []byte{
		0xFF, 0xFE, 0x00, 0x00, // BOM
		0x31, 0x00, 0x00, 0x00, // '1'
		0x32, 0x00, 0x00, 0x00, // '2'
		0x0A, 0x00, 0x00, 0x00, // '\n'
		0x33, 0x00, 0x00, 0x00, // '3'
	}
	fp := FromBytes(data, nil)
	indexAll(t, fp)
	require.Equal(t, UTF32LE, fp.Encoding())
	require.Equal(t, int64(2), fp.LineCount())
	l0, err := fp.ReadLine(0)
	require.NoError(t, err)
	require.Equal(t, "12", l0)
	l1, err := fp.ReadLine(1)
	require.NoError(t, err)
	require.Equal(t, "3", l1)
}

func TestUTF32BELines(t *testing.T) {
	data := []byte{
		0x00, 0x00, 0xFE, 0xFF, // BOM
		0x00, 0x00, 0x00, 0x31, // '1'
		0x00, 0x00, 0x00, 0x32, // '2'
		0x00, 0x00, 0x00, 0x0A, // '\n'
		0x00, 0x00, 0x00, 0x33, // '3'
	}
	fp := FromBytes(data, nil)
	indexAll(t, fp)
	require.Equal(t, UTF32BE, fp.Encoding())
	require.Equal(t, int64(2), fp.LineCount())
	l0, err := fp.ReadLine(0)
	require.NoError(t, err)
	require.Equal(t, "12", l0)
	l1, err := fp.ReadLine(1)
	require.NoError(t, err)
	require.Equal(t, "3", l1)
}

func TestReadAfterSeekIsDeterministic(t *testing.T) {
	fp := FromBytes([]byte("a\nb\nc\nd\ne\n"), nil)
	indexAll(t, fp)

	fresh := FromBytes([]byte("a\nb\nc\nd\ne\n"), nil)
	indexAll(t, fresh)

	_, err := fp.ReadLine(4)
	require.NoError(t, err)
	got, err := fp.ReadLine(1)
	require.NoError(t, err)
	want, err := fresh.ReadLine(1)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestStopRequestedDuringIndex(t *testing.T) {
	data := []byte("a\nb\nc\nd\ne\nf\ng\n")
	fp := FromBytes(data, nil)
	calls := 0
	ok, err := fp.Index(nil, func() bool {
		calls++
		return calls > 2
	})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTrailingNULTrimOnUnterminatedLastLine(t *testing.T) {
	data := []byte("only\x00\x00\x00")
	fp := FromBytes(data, nil)
	indexAll(t, fp)
	require.Equal(t, int64(1), fp.LineCount())
	got, err := fp.ReadLine(0)
	require.NoError(t, err)
	require.Equal(t, "only", got)
}
