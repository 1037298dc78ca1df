package xlsguard

import (
	"fmt"
	"io"
	"iter"
)

// Record sids.
const (
	SidBOF         = 0x0809
	SidBOF4        = 0x0409
	SidBOF3        = 0x0209
	SidBOF2        = 0x0009
	SidEOF         = 0x000A
	SidFilePass    = 0x002F
	SidContinue    = 0x003C
	SidCodepage    = 0x0042
	SidWriteAccess = 0x005C
)

// MaxBIFF8RecordData is the largest payload a single BIFF8 record may carry.
const MaxBIFF8RecordData = 8224

// DefaultMaxRecordSize bounds one logical record, continuations included.
const DefaultMaxRecordSize = 1 << 20

// the information unit in xls file.
type bof struct {
	ID   uint16
	Size uint16
}

// Record is one logical BIFF record. Data already holds the payloads of any
// CONTINUE records that followed the primary record.
type Record struct {
	Sid  uint16
	Data []byte
}

// Cursor returns a fresh cursor over the payload.
func (r Record) Cursor() *Cursor {
	return NewCursor(r.Data)
}

// RecordReader walks a BIFF stream one logical record at a time.
// It is single use: a fresh Cursor is needed to scan again.
type RecordReader struct {
	c       *Cursor
	max     int
	pending *bof
}

// NewRecordReader creates a RecordReader. maxSize <= 0 selects DefaultMaxRecordSize.
func NewRecordReader(c *Cursor, maxSize int) *RecordReader {
	if maxSize <= 0 {
		maxSize = DefaultMaxRecordSize
	}
	return &RecordReader{c: c, max: maxSize}
}

// Available returns the number of stream bytes not yet consumed.
func (r *RecordReader) Available() int {
	return r.c.Available()
}

func (r *RecordReader) readHeader() (*bof, error) {
	if r.c.Available() < 4 {
		return nil, fmt.Errorf("%w: %d byte header fragment at offset %d", ErrTruncatedRecord, r.c.Available(), r.c.Pos())
	}
	h := new(bof)
	h.ID, _ = r.c.ReadU16()
	h.Size, _ = r.c.ReadU16()
	return h, nil
}

func (r *RecordReader) appendPayload(dst []byte, h *bof) ([]byte, error) {
	if int(h.Size) > r.c.Available() {
		return nil, fmt.Errorf("%w: sid 0x%04x declares %d bytes, %d available", ErrTruncatedRecord, h.ID, h.Size, r.c.Available())
	}
	if len(dst)+int(h.Size) > r.max {
		return nil, fmt.Errorf("%w: sid 0x%04x reaches %d bytes, limit %d", ErrRecordTooLarge, h.ID, len(dst)+int(h.Size), r.max)
	}
	b, _ := r.c.take(int(h.Size))
	return append(dst, b...), nil
}

// Next returns the next logical record, or io.EOF once the stream is cleanly exhausted.
func (r *RecordReader) Next() (Record, error) {
	h := r.pending
	r.pending = nil
	if h == nil {
		if r.c.Available() == 0 {
			return Record{}, io.EOF
		}
		var err error
		if h, err = r.readHeader(); err != nil {
			return Record{}, err
		}
	}

	data, err := r.appendPayload(make([]byte, 0, h.Size), h)
	if err != nil {
		return Record{}, err
	}

	for r.c.Available() > 0 {
		next, err := r.readHeader()
		if err != nil {
			return Record{}, err
		}
		if next.ID != SidContinue {
			r.pending = next
			break
		}
		if data, err = r.appendPayload(data, next); err != nil {
			return Record{}, err
		}
	}

	return Record{Sid: h.ID, Data: data}, nil
}

// All yields the remaining records. Iteration stops after the first error;
// clean exhaustion ends the sequence without one.
func (r *RecordReader) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := r.Next()
			if err == io.EOF {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// RecordWriter emits BIFF records, splitting long payloads into CONTINUE records.
type RecordWriter struct {
	w     *Writer
	chunk int
}

// NewRecordWriter returns a RecordWriter emitting to w.
func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{w: NewWriter(w), chunk: MaxBIFF8RecordData}
}

// WriteRecord writes sid with data. Payloads longer than MaxBIFF8RecordData
// continue in as many CONTINUE records as needed.
func (rw *RecordWriter) WriteRecord(sid uint16, data []byte) error {
	for first := true; first || len(data) > 0; first = false {
		n := min(len(data), rw.chunk)
		id := uint16(SidContinue)
		if first {
			id = sid
		}
		if err := rw.w.WriteU16(id); err != nil {
			return err
		}
		if err := rw.w.WriteU16(uint16(n)); err != nil {
			return err
		}
		if err := rw.w.WriteBytes(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
