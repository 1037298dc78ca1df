package xlsguard

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tealeg/xlsx"
)

// OLE2Signature is the magic cookie that opens every compound document.
var OLE2Signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// ZipSignature is the magic cookie for ZIP files.
var ZipSignature = []byte("PK\x03\x04")

// ClassifyFile reads the file at path and classifies it.
func ClassifyFile(path string, opts *Options) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Classify(data, opts)
}

// Classify decides whether data is a protected Office document. Compound
// documents go through OpenReader; ZIP packages are checked for an
// OpenDocument encryption manifest or opened as an xlsx workbook.
func Classify(data []byte, opts *Options) (*Report, error) {
	switch {
	case bytes.HasPrefix(data, OLE2Signature):
		return OpenReader(bytes.NewReader(data), opts)
	case bytes.HasPrefix(data, ZipSignature):
		return classifyZip(data)
	}
	return nil, ErrUnknownFormat
}

func classifyZip(data []byte) (*Report, error) {
	zf, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	// Some third party files use backslashes and lower case names, so
	// component names are matched case-insensitively.
	components := make(map[string]*zip.File, len(zf.File))
	for _, f := range zf.File {
		components[strings.ToLower(strings.ReplaceAll(f.Name, "\\", "/"))] = f
	}

	if manifest, ok := components["meta-inf/manifest.xml"]; ok {
		encrypted, err := manifestEncrypted(manifest)
		if err != nil {
			return nil, err
		}
		rep := &Report{Format: FormatODF, Result: &Result{Status: StatusNotProtected}}
		if encrypted {
			rep.Result.Status = StatusProtected
			rep.Scheme = "odf"
		}
		return rep, nil
	}

	if _, ok := components["xl/workbook.xml"]; ok {
		rep := &Report{Format: FormatXLSX}
		book, err := xlsx.OpenBinary(data)
		if err != nil {
			rep.Result, err = corrupt(BookInfo{}, "opening xlsx package", err)
			return rep, err
		}
		for _, sheet := range book.Sheets {
			rep.SheetNames = append(rep.SheetNames, sheet.Name)
		}
		rep.Result = &Result{Status: StatusNotProtected}
		return rep, nil
	}

	return &Report{Format: FormatZip, Result: &Result{Status: StatusNotProtected}}, nil
}

// manifestEncrypted reports whether an OpenDocument manifest lists encryption data for any entry.
func manifestEncrypted(f *zip.File) (bool, error) {
	rc, err := f.Open()
	if err != nil {
		return false, err
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return false, fmt.Errorf("xlsguard: reading %s: %w", f.Name, err)
	}
	return bytes.Contains(body, []byte("encryption-data")), nil
}
