package backup

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType identifies the algorithm applied to a backup object
type CompressionType string

const (
	CompressionTypeNone CompressionType = "none"
	CompressionTypeGzip CompressionType = "gzip"
	CompressionTypeLZ4  CompressionType = "lz4"
	CompressionTypeZstd CompressionType = "zstd"
)

// Compressor implements one compression algorithm
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Extension() string
}

// CompressionManager dispatches to the registered compressors
type CompressionManager struct {
	compressors map[CompressionType]Compressor
}

// NewCompressionManager creates a manager with every supported algorithm
func NewCompressionManager() *CompressionManager {
	return &CompressionManager{
		compressors: map[CompressionType]Compressor{
			CompressionTypeGzip: &GzipCompressor{},
			CompressionTypeLZ4:  &LZ4Compressor{},
			CompressionTypeZstd: &ZstdCompressor{},
		},
	}
}

// Compress compresses data with the given algorithm. None passes through.
func (cm *CompressionManager) Compress(data []byte, algorithm CompressionType) ([]byte, error) {
	if algorithm == "" || algorithm == CompressionTypeNone {
		return data, nil
	}
	compressor, ok := cm.compressors[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
	return compressor.Compress(data)
}

// Decompress reverses Compress for the given algorithm
func (cm *CompressionManager) Decompress(data []byte, algorithm CompressionType) ([]byte, error) {
	if algorithm == "" || algorithm == CompressionTypeNone {
		return data, nil
	}
	compressor, ok := cm.compressors[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
	return compressor.Decompress(data)
}

// Extension returns the filename suffix for the algorithm ("" for none)
func (cm *CompressionManager) Extension(algorithm CompressionType) string {
	if compressor, ok := cm.compressors[algorithm]; ok {
		return compressor.Extension()
	}
	return ""
}

// IsValidCompressionType reports whether the name is a known algorithm
func IsValidCompressionType(name string) bool {
	switch CompressionType(name) {
	case CompressionTypeNone, CompressionTypeGzip, CompressionTypeLZ4, CompressionTypeZstd:
		return true
	default:
		return false
	}
}

// GzipCompressor implements gzip compression
type GzipCompressor struct{}

// Compress compresses data with gzip
func (g *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress decompresses gzip data
func (g *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// Extension returns ".gz"
func (g *GzipCompressor) Extension() string { return ".gz" }

// LZ4Compressor implements LZ4 compression
type LZ4Compressor struct{}

// Compress compresses data with LZ4
func (l *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := lz4.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress decompresses LZ4 data
func (l *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	reader := lz4.NewReader(bytes.NewReader(data))
	return io.ReadAll(reader)
}

// Extension returns ".lz4"
func (l *LZ4Compressor) Extension() string { return ".lz4" }

// ZstdCompressor implements Zstandard compression
type ZstdCompressor struct{}

// Compress compresses data with zstd
func (z *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, nil), nil
}

// Decompress decompresses zstd data
func (z *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return decoder.DecodeAll(data, nil)
}

// Extension returns ".zst"
func (z *ZstdCompressor) Extension() string { return ".zst" }
