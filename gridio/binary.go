package gridio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/notargets/latgrid/layout"
)

// BinaryWriter writes big-endian records to a file on the primary node
// and counts the bytes as they go out. On other nodes every method does
// nothing.
type BinaryWriter struct {
	f     *os.File
	w     *bufio.Writer
	count uint64
}

// NewBinaryWriter creates path on the primary node of g.
func NewBinaryWriter(g *layout.Grid, path string) (*BinaryWriter, error) {
	if g == nil {
		panic("gridio: nil grid")
	}
	if !g.IsPrimary() {
		return &BinaryWriter{}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("gridio: %w", err)
	}
	return &BinaryWriter{f: f, w: bufio.NewWriter(f)}, nil
}

func (b *BinaryWriter) write(v any, size uint64) error {
	if b.f == nil {
		return nil
	}
	if err := binary.Write(b.w, binary.BigEndian, v); err != nil {
		return fmt.Errorf("gridio: %w", err)
	}
	b.count += size
	return nil
}

// WriteInt32 writes one big-endian int32.
func (b *BinaryWriter) WriteInt32(v int32) error { return b.write(v, 4) }

// WriteInt64 writes one big-endian int64.
func (b *BinaryWriter) WriteInt64(v int64) error { return b.write(v, 8) }

// WriteFloat64 writes one big-endian float64.
func (b *BinaryWriter) WriteFloat64(v float64) error { return b.write(v, 8) }

// WriteFloat64Slice writes the elements of v back to back.
func (b *BinaryWriter) WriteFloat64Slice(v []float64) error {
	return b.write(v, 8*uint64(len(v)))
}

// BytesWritten returns the byte count so far on the primary node.
func (b *BinaryWriter) BytesWritten() uint64 { return b.count }

// Close flushes and closes the file on the primary node.
func (b *BinaryWriter) Close() error {
	if b.f == nil {
		return nil
	}
	if err := b.w.Flush(); err != nil {
		b.f.Close()
		return fmt.Errorf("gridio: %w", err)
	}
	if err := b.f.Close(); err != nil {
		return fmt.Errorf("gridio: %w", err)
	}
	return nil
}

// BinaryReader reads big-endian records from a file on the primary node
// and counts the bytes as they come in. On other nodes the reads return
// zero values.
type BinaryReader struct {
	f     *os.File
	r     *bufio.Reader
	count uint64
}

// NewBinaryReader opens path on the primary node of g.
func NewBinaryReader(g *layout.Grid, path string) (*BinaryReader, error) {
	if g == nil {
		panic("gridio: nil grid")
	}
	if !g.IsPrimary() {
		return &BinaryReader{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gridio: %w", err)
	}
	return &BinaryReader{f: f, r: bufio.NewReader(f)}, nil
}

func (b *BinaryReader) read(v any, size uint64) error {
	if b.f == nil {
		return nil
	}
	if err := binary.Read(b.r, binary.BigEndian, v); err != nil {
		return fmt.Errorf("gridio: %w", err)
	}
	b.count += size
	return nil
}

// ReadInt32 reads one big-endian int32.
func (b *BinaryReader) ReadInt32() (int32, error) {
	var v int32
	err := b.read(&v, 4)
	return v, err
}

// ReadInt64 reads one big-endian int64.
func (b *BinaryReader) ReadInt64() (int64, error) {
	var v int64
	err := b.read(&v, 8)
	return v, err
}

// ReadFloat64 reads one big-endian float64.
func (b *BinaryReader) ReadFloat64() (float64, error) {
	var v float64
	err := b.read(&v, 8)
	return v, err
}

// ReadFloat64Slice fills v from consecutive records.
func (b *BinaryReader) ReadFloat64Slice(v []float64) error {
	return b.read(v, 8*uint64(len(v)))
}

// BytesRead returns the byte count so far on the primary node.
func (b *BinaryReader) BytesRead() uint64 { return b.count }

// Close closes the file on the primary node.
func (b *BinaryReader) Close() error {
	if b.f == nil {
		return nil
	}
	if err := b.f.Close(); err != nil {
		return fmt.Errorf("gridio: %w", err)
	}
	return nil
}
