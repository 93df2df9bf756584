// Package compression implements the forwarder's optional push-body
// compression, per spec.md §6 ("compression_algo", "compression_min_bytes").
//
// Grounded on the teacher's pkg/compression/http_compression.go: the
// Compressor interface and the gzip/zstd implementations are kept
// nearly verbatim, trimmed of the teacher's "auto-select by payload
// size against Accept-Encoding" logic (the forwarder is a client, not
// a server, and always knows its one configured algorithm up front).
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor implements a single HTTP body compression algorithm.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	ContentEncoding() string
}

// Algo names the downstream_config.compression_algo values.
type Algo string

const (
	AlgoNone   Algo = "none"
	AlgoGzip   Algo = "gzip"
	AlgoZstd   Algo = "zstd"
	AlgoSnappy Algo = "snappy"
	AlgoLZ4    Algo = "lz4"
)

// Manager picks a Compressor by configured algorithm and the
// configured minimum size floor below which compression is skipped.
type Manager struct {
	algo     Algo
	minBytes int

	gzip   *GzipCompressor
	zstd   *ZstdCompressor
	snappy *SnappyCompressor
	lz4    *LZ4Compressor
}

// NewManager builds a Manager for algo, which defaults to "none"
// (matching the forwarder's uncompressed push when unset).
func NewManager(algo string, minBytes int) *Manager {
	return &Manager{
		algo:     Algo(algo),
		minBytes: minBytes,
		gzip:     &GzipCompressor{},
		zstd:     &ZstdCompressor{},
		snappy:   &SnappyCompressor{},
		lz4:      &LZ4Compressor{},
	}
}

// Compress returns data compressed per the manager's configured
// algorithm, the encoding name to set as Content-Encoding (empty for
// uncompressed), and whether compression was applied. Payloads below
// minBytes, or an unknown/"none" algorithm, pass through unchanged.
func (m *Manager) Compress(data []byte) (out []byte, encoding string, compressed bool, err error) {
	if len(data) < m.minBytes {
		return data, "", false, nil
	}

	var c Compressor
	switch m.algo {
	case AlgoGzip:
		c = m.gzip
	case AlgoZstd:
		c = m.zstd
	case AlgoSnappy:
		c = m.snappy
	case AlgoLZ4:
		c = m.lz4
	default:
		return data, "", false, nil
	}

	compressedData, err := c.Compress(data)
	if err != nil {
		return nil, "", false, fmt.Errorf("compress with %s: %w", m.algo, err)
	}
	return compressedData, c.ContentEncoding(), true, nil
}

// GzipCompressor implements gzip compression.
type GzipCompressor struct{}

func (g *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("gzip write failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip close failed: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *GzipCompressor) ContentEncoding() string { return "gzip" }

// ZstdCompressor implements zstd compression. The encoder is built
// once, on first use, and reused by every later call; EncodeAll may be
// called concurrently, so one Manager can be shared by the forwarder's
// per-tenant workers.
type ZstdCompressor struct {
	once    sync.Once
	encoder *zstd.Encoder
	err     error
}

func (z *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	z.once.Do(func() {
		z.encoder, z.err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	if z.err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", z.err)
	}
	return z.encoder.EncodeAll(data, nil), nil
}

func (z *ZstdCompressor) ContentEncoding() string { return "zstd" }

// SnappyCompressor implements snappy block compression. Snappy favors
// speed over ratio, for downstreams that would rather spend more
// bandwidth than CPU on the push path.
type SnappyCompressor struct{}

func (s *SnappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (s *SnappyCompressor) ContentEncoding() string { return "snappy" }

// LZ4Compressor implements lz4 frame compression.
type LZ4Compressor struct{}

func (l *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := lz4.NewWriter(&buf)

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("lz4 write failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close failed: %w", err)
	}
	return buf.Bytes(), nil
}

func (l *LZ4Compressor) ContentEncoding() string { return "lz4" }
