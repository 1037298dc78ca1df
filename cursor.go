package xlsguard

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// Cursor reads little-endian values sequentially from an immutable buffer.
// A failed read leaves the position unchanged.
type Cursor struct {
	data []byte
	pos  int
}

// NewCursor creates a Cursor over data. The slice is not copied and must not be modified.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// ReadCursor loads r into memory and returns a Cursor over it.
// Record framing needs the remaining byte count, so a stream is buffered whole.
func ReadCursor(r io.Reader) (*Cursor, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}

	return NewCursor(buf.Bytes()), nil
}

// Available returns the number of unread bytes.
func (c *Cursor) Available() int {
	return len(c.data) - c.pos
}

// Pos returns the number of bytes consumed so far.
func (c *Cursor) Pos() int {
	return c.pos
}

func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || c.Available() < n {
		return nil, ErrUnexpectedEndOfData
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Skip advances the position by n bytes.
func (c *Cursor) Skip(n int) error {
	_, err := c.take(n)
	return err
}

// ReadU8 reads one byte.
func (c *Cursor) ReadU8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a little-endian uint16.
func (c *Cursor) ReadU16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 reads a little-endian uint32.
func (c *Cursor) ReadU32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadI64 reads a little-endian two's complement int64.
func (c *Cursor) ReadI64() (int64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// ReadDouble reads an IEEE-754 double.
func (c *Cursor) ReadDouble() (float64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// ReadBytes returns a copy of the next n bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// readInto fills dst from the cursor.
func (c *Cursor) readInto(dst []byte) error {
	b, err := c.take(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// Writer is the output counterpart of Cursor.
type Writer struct {
	w   io.Writer
	buf [8]byte
}

// NewWriter returns a Writer that encodes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) write(b []byte) error {
	_, err := w.w.Write(b)
	return err
}

// WriteU8 writes one byte.
func (w *Writer) WriteU8(v uint8) error {
	w.buf[0] = v
	return w.write(w.buf[:1])
}

// WriteU16 writes v little-endian.
func (w *Writer) WriteU16(v uint16) error {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	return w.write(w.buf[:2])
}

// WriteU32 writes v little-endian.
func (w *Writer) WriteU32(v uint32) error {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	return w.write(w.buf[:4])
}

// WriteI64 writes v little-endian.
func (w *Writer) WriteI64(v int64) error {
	binary.LittleEndian.PutUint64(w.buf[:8], uint64(v))
	return w.write(w.buf[:8])
}

// WriteDouble writes the IEEE-754 bits of v.
func (w *Writer) WriteDouble(v float64) error {
	binary.LittleEndian.PutUint64(w.buf[:8], math.Float64bits(v))
	return w.write(w.buf[:8])
}

// WriteBytes writes b unchanged.
func (w *Writer) WriteBytes(b []byte) error {
	return w.write(b)
}
