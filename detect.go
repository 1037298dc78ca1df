package xlsguard

import (
	"errors"
	"fmt"
	"io"
)

// Status is the outcome of a protection scan.
type Status int

const (
	StatusNotProtected Status = iota
	StatusProtected
	StatusCorrupt
)

func (s Status) String() string {
	switch s {
	case StatusNotProtected:
		return "not-protected"
	case StatusProtected:
		return "protected"
	case StatusCorrupt:
		return "corrupt"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Options tunes parsing. A nil *Options selects the defaults.
type Options struct {
	// MaxRecordSize bounds one logical record including its CONTINUE records.
	// Zero selects DefaultMaxRecordSize.
	MaxRecordSize int
}

func (o *Options) maxRecordSize() int {
	if o == nil || o.MaxRecordSize <= 0 {
		return DefaultMaxRecordSize
	}
	return o.MaxRecordSize
}

// Result is what a scan found.
type Result struct {
	Status   Status
	FilePass *FilePass
	Reason   string
	Info     BookInfo
}

// Protected reports whether a FILEPASS record was found.
func (r *Result) Protected() bool {
	return r.Status == StatusProtected
}

func corrupt(info BookInfo, reason string, err error) (*Result, error) {
	e := &CorruptDocumentError{Reason: reason, Err: err}
	return &Result{Status: StatusCorrupt, Reason: e.Error(), Info: info}, e
}

// Detect scans a Workbook stream for a FILEPASS record.
//
// A stream that ends cleanly without FILEPASS is StatusNotProtected. Any
// framing or decoding failure yields a StatusCorrupt result together with a
// *CorruptDocumentError. XOR and CryptoAPI protection is StatusProtected with
// a FilePass whose Supported method returns false.
func Detect(data []byte, opts *Options) (*Result, error) {
	return detect(NewCursor(data), opts)
}

// DetectReader is Detect over a stream, which is buffered into memory first.
func DetectReader(r io.Reader, opts *Options) (*Result, error) {
	c, err := ReadCursor(r)
	if err != nil {
		return nil, err
	}
	return detect(c, opts)
}

func detect(c *Cursor, opts *Options) (*Result, error) {
	var info BookInfo

	for rec, err := range NewRecordReader(c, opts.maxRecordSize()).All() {
		if err != nil {
			return corrupt(info, "reading records", err)
		}

		if rec.Sid == SidFilePass {
			return decodeFilePassRecord(info, rec)
		}

		if handler := recordHandlers[rec.Sid]; handler != nil {
			if err := handler(&info, rec); err != nil {
				return corrupt(info, fmt.Sprintf("record 0x%04x", rec.Sid), err)
			}
		}
	}

	return &Result{Status: StatusNotProtected, Info: info}, nil
}

func decodeFilePassRecord(info BookInfo, rec Record) (*Result, error) {
	decode := DecodeFilePass
	if info.Is5ver() {
		decode = DecodeLegacyFilePass
	}

	fp, err := decode(rec.Data)
	var unsupported *UnsupportedEncryptionError
	if err != nil && !errors.As(err, &unsupported) {
		return corrupt(info, "decoding FILEPASS", err)
	}

	return &Result{Status: StatusProtected, FilePass: fp, Info: info}, nil
}
