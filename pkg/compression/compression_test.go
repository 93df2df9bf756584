package compression

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_BelowMinBytesPassesThrough(t *testing.T) {
	m := NewManager("gzip", 1024)
	data := []byte("short")

	out, encoding, compressed, err := m.Compress(data)
	require.NoError(t, err)
	assert.False(t, compressed)
	assert.Equal(t, "", encoding)
	assert.Equal(t, data, out)
}

func TestManager_NoneAlgoPassesThrough(t *testing.T) {
	m := NewManager("none", 0)
	data := []byte(strings.Repeat("x", 2000))

	out, encoding, compressed, err := m.Compress(data)
	require.NoError(t, err)
	assert.False(t, compressed)
	assert.Equal(t, "", encoding)
	assert.Equal(t, data, out)
}

func TestManager_GzipRoundTrip(t *testing.T) {
	m := NewManager("gzip", 0)
	data := []byte(strings.Repeat("hello world ", 200))

	out, encoding, compressed, err := m.Compress(data)
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.Equal(t, "gzip", encoding)

	r, err := gzip.NewReader(bytes.NewReader(out))
	require.NoError(t, err)
	decoded, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestManager_ZstdRoundTrip(t *testing.T) {
	m := NewManager("zstd", 0)
	data := []byte(strings.Repeat("hello world ", 200))

	out, encoding, compressed, err := m.Compress(data)
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.Equal(t, "zstd", encoding)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	decoded, err := dec.DecodeAll(out, nil)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestManager_SnappyRoundTrip(t *testing.T) {
	m := NewManager("snappy", 0)
	data := []byte(strings.Repeat("hello world ", 200))

	out, encoding, compressed, err := m.Compress(data)
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.Equal(t, "snappy", encoding)

	decoded, err := snappy.Decode(nil, out)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestManager_LZ4RoundTrip(t *testing.T) {
	m := NewManager("lz4", 0)
	data := []byte(strings.Repeat("hello world ", 200))

	out, encoding, compressed, err := m.Compress(data)
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.Equal(t, "lz4", encoding)

	r := lz4.NewReader(bytes.NewReader(out))
	decoded, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}
