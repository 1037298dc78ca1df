package xlsguard

import (
	"errors"
	"fmt"
)

// Framing and cursor errors.
var (
	// ErrUnexpectedEndOfData is returned when a read needs more bytes than remain.
	ErrUnexpectedEndOfData = errors.New("xlsguard: unexpected end of data")

	// ErrTruncatedRecord is returned when a record header declares more payload
	// than the stream still holds.
	ErrTruncatedRecord = errors.New("xlsguard: truncated record")

	// ErrRecordTooLarge is returned when a logical record, continuations included,
	// grows past the configured ceiling.
	ErrRecordTooLarge = errors.New("xlsguard: record exceeds maximum size")

	// ErrRecordSizeMismatch is returned when a fixed-layout record carries trailing bytes.
	ErrRecordSizeMismatch = errors.New("xlsguard: record size mismatch")
)

// Container and cipher errors.
var (
	// ErrWorkbookNotFound is returned when neither "Workbook" nor "Book" stream
	// could be found in the OLE2 directory structure.
	ErrWorkbookNotFound = errors.New("xlsguard: no Workbook or Book stream found")

	// ErrUnknownFormat is returned when the input is neither an OLE2 compound file nor a ZIP package.
	ErrUnknownFormat = errors.New("xlsguard: unknown file format")

	// ErrInvalidKey is returned for an empty RC4 key.
	ErrInvalidKey = errors.New("xlsguard: rc4 key must not be empty")
)

// UnsupportedEncryptionError reports an encryption scheme that is recognized but not decoded.
type UnsupportedEncryptionError struct {
	Type EncryptionType
}

func (e *UnsupportedEncryptionError) Error() string {
	return fmt.Sprintf("xlsguard: unsupported encryption %s", e.Type)
}

// UnrecognizedEncryptionCodeError reports a discriminator value outside the known set.
// It points at either a newer format revision or a damaged header.
type UnrecognizedEncryptionCodeError struct {
	Field string
	Value uint16
}

func (e *UnrecognizedEncryptionCodeError) Error() string {
	return fmt.Sprintf("xlsguard: unrecognized %s code %d", e.Field, e.Value)
}

// CorruptDocumentError wraps any failure met while scanning a stream before it was cleanly exhausted.
type CorruptDocumentError struct {
	Reason string
	Err    error
}

func (e *CorruptDocumentError) Error() string {
	if e.Err == nil {
		return "xlsguard: corrupt document: " + e.Reason
	}
	return fmt.Sprintf("xlsguard: corrupt document: %s: %v", e.Reason, e.Err)
}

func (e *CorruptDocumentError) Unwrap() error {
	return e.Err
}
