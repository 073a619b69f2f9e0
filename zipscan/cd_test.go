package zipscan

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntries(t *testing.T) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	contents := []struct {
		name, content string
		method        uint16
	}{
		{"test/a.txt", "hello", zip.Store},
		{"test/path/b.txt", "world, compressed this time", zip.Deflate},
		{"test/empty/", "", zip.Store},
	}
	for _, f := range contents {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.name, Method: f.method})
		require.NoError(t, err)
		_, err = w.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	b := buf.Bytes()
	src := bytes.NewReader(b)

	r, err := Find(src, int64(len(b)))
	require.NoError(t, err)
	assert.Equal(t, len(contents), r.RecordCount())

	// archive/zip's own reader supplies the expected metadata.
	zr, err := zip.NewReader(src, int64(len(b)))
	require.NoError(t, err)

	var got []*FileHeader
	for fh, err := range r.Entries(src) {
		require.NoError(t, err)
		got = append(got, fh)
	}
	require.Len(t, got, len(contents))

	for i, fh := range got {
		want := zr.File[i]
		assert.Equal(t, want.Name, fh.Name)
		assert.Equal(t, want.CRC32, fh.CRC32)
		assert.Equal(t, want.Method, fh.Method)
		assert.Equal(t, want.CompressedSize64, fh.CompressedSize64)
		assert.Equal(t, want.UncompressedSize64, fh.UncompressedSize64)

		wantOffset, err := want.DataOffset()
		require.NoError(t, err)

		gotOffset, err := fh.DataOffset(src)
		require.NoError(t, err)
		assert.Equal(t, wantOffset, gotOffset)
	}
}

func TestEntries_EarlyStop(t *testing.T) {
	b := buildZip(t, map[string]string{"a": "1", "b": "2", "c": "3"}, "")
	src := bytes.NewReader(b)

	r, err := Find(src, int64(len(b)))
	require.NoError(t, err)

	// stopping the iterator early must not panic or over-read.
	count := 0
	for _, err := range r.Entries(src) {
		require.NoError(t, err)
		if count++; count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestEntries_TruncatedCentralDirectory(t *testing.T) {
	b := buildZip(t, map[string]string{"a.txt": "hello"}, "")

	r, err := Find(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)

	// serve a source that cuts off in the middle of the central directory.
	offset, _ := r.CentralDirectory()
	truncated := io.NewSectionReader(bytes.NewReader(b), 0, offset+10)

	for _, err := range r.Entries(truncated) {
		assert.Error(t, err)
		return
	}
	t.Fatal("expected an error from the iterator")
}

func TestDataOffset_BadSignature(t *testing.T) {
	b := buildZip(t, map[string]string{"a.txt": "hello"}, "")
	src := bytes.NewReader(b)

	r, err := Find(src, int64(len(b)))
	require.NoError(t, err)

	for fh, err := range r.Entries(src) {
		require.NoError(t, err)

		fh.Offset += 2 // no longer points at a local file header
		_, err = fh.DataOffset(src)
		assert.ErrorIs(t, err, ErrFormat)
	}
}
