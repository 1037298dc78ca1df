package xlsguard

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// Format names the kind of document a Report describes.
type Format string

const (
	FormatCompound       Format = "ole2"
	FormatXLS            Format = "xls"
	FormatDoc            Format = "doc"
	FormatEncryptedOOXML Format = "ooxml-encrypted"
	FormatXLSX           Format = "xlsx"
	FormatODF            Format = "odf"
	FormatZip            Format = "zip"
)

// Report is the classification of one document.
type Report struct {
	Format     Format
	Result     *Result
	Scheme     string
	SheetNames []string
}

// DocID renders the RC4 document id as a UUID string, or "" when there is none.
func (r *Report) DocID() string {
	if r.Result == nil || r.Result.FilePass == nil || !r.Result.FilePass.Supported() {
		return ""
	}
	return uuid.UUID(r.Result.FilePass.DocID).String()
}

// failed turns a *CorruptDocumentError into a corrupt report. Other errors
// are returned without a report.
func failed(rep *Report, err error) (*Report, error) {
	var cde *CorruptDocumentError
	if !errors.As(err, &cde) {
		return nil, err
	}
	rep.Result = &Result{Status: StatusCorrupt, Reason: cde.Error()}
	return rep, err
}

// Open classifies the OLE2 document at file.
func Open(file string, opts *Options) (*Report, error) {
	fi, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fi.Close()

	return OpenReader(fi, opts)
}

// OpenStream loads an OLE2 document from any io.Reader (e.g., network stream, compressed archive).
// Since the OLE2 format requires seeking, the entire input is buffered into memory.
func OpenStream(r io.Reader, opts *Options) (*Report, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}

	return OpenReader(bytes.NewReader(buf.Bytes()), opts)
}

// OpenReader classifies an OLE2 document from a seekable input stream.
//
// Encrypted OOXML packages, Excel workbooks and Word documents are recognized
// by their top-level streams; any other compound file fails with
// ErrWorkbookNotFound. A damaged container yields a corrupt report together
// with a *CorruptDocumentError.
func OpenReader(reader io.ReadSeeker, opts *Options) (*Report, error) {
	c, err := OpenContainer(reader)
	if err != nil {
		return failed(&Report{Format: FormatCompound}, err)
	}

	switch {
	case c.Has("EncryptionInfo") && c.Has("EncryptedPackage"):
		return detectEncryptedPackage(c)
	case c.Has("Workbook") || c.Has("Book"):
		return detectWorkbook(c, opts)
	case c.Has("WordDocument"):
		return detectWord(c)
	}

	return nil, ErrWorkbookNotFound
}

func detectWorkbook(src StreamSource, opts *Options) (*Report, error) {
	// The standard name is "Workbook", but BIFF5 files use "Book" instead.
	for _, name := range []string{"Workbook", "Book"} {
		data, ok, err := src.TryGetStream(name)
		if err != nil {
			return failed(&Report{Format: FormatXLS}, err)
		}
		if ok {
			res, err := Detect(data, opts)
			rep := &Report{Format: FormatXLS, Result: res}
			if res.FilePass != nil {
				rep.Scheme = res.FilePass.Type.String()
			}
			return rep, err
		}
	}

	return nil, ErrWorkbookNotFound
}

// detectEncryptedPackage reports an OOXML package wrapped by ECMA-376 encryption.
func detectEncryptedPackage(src StreamSource) (*Report, error) {
	rep := &Report{Format: FormatEncryptedOOXML}

	data, _, err := src.TryGetStream("EncryptionInfo")
	if err != nil {
		return failed(rep, err)
	}

	c := NewCursor(data)
	major, err := c.ReadU16()
	if err != nil {
		rep.Result, err = corrupt(BookInfo{}, "reading EncryptionInfo version", err)
		return rep, err
	}
	minor, err := c.ReadU16()
	if err != nil {
		rep.Result, err = corrupt(BookInfo{}, "reading EncryptionInfo version", err)
		return rep, err
	}

	switch {
	case major == 4 && minor == 4:
		rep.Scheme = "agile"
	case (major == 3 || major == 4) && minor == 3:
		rep.Scheme = "extensible"
	case major >= 2 && major <= 4 && minor == 2:
		rep.Scheme = "standard"
	default:
		rep.Scheme = fmt.Sprintf("unknown %d.%d", major, minor)
	}
	rep.Result = &Result{Status: StatusProtected}

	return rep, nil
}
