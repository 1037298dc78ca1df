package xlsguard

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
)

func TestDetectWorkbookStreamPreference(t *testing.T) {
	protected := buildStream(t, testRecord{SidBOF, biff8BOF()}, testRecord{SidFilePass, rc4FilePass(fill(16, 1), fill(16, 2), fill(16, 3))})
	plain := buildStream(t, testRecord{SidBOF, biff5BOF()}, testRecord{SidEOF, nil})

	rep, err := detectWorkbook(memSource{"Workbook": protected, "Book": plain}, nil)
	require.NoError(t, err)
	assert.Equal(t, FormatXLS, rep.Format)
	assert.Equal(t, StatusProtected, rep.Result.Status)
	assert.Equal(t, "RC4", rep.Scheme)
	assert.Equal(t, "01010101-0101-0101-0101-010101010101", rep.DocID())

	rep, err = detectWorkbook(memSource{"Book": plain}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusNotProtected, rep.Result.Status)
	assert.Equal(t, 50, rep.Result.Info.BIFFVersion)
	assert.Empty(t, rep.DocID())

	_, err = detectWorkbook(memSource{}, nil)
	assert.ErrorIs(t, err, ErrWorkbookNotFound)
}

func TestDetectWorkbookCorruptStream(t *testing.T) {
	rep, err := detectWorkbook(memSource{"Workbook": {0x09, 0x08, 0x10}}, nil)
	var cde *CorruptDocumentError
	require.ErrorAs(t, err, &cde)
	require.NotNil(t, rep)
	assert.Equal(t, StatusCorrupt, rep.Result.Status)
}

func TestDetectEncryptedPackage(t *testing.T) {
	tests := []struct {
		version []byte
		scheme  string
	}{
		{u16s(4, 4, 0x40), "agile"},
		{u16s(3, 2, 0x24), "standard"},
		{u16s(4, 3), "extensible"},
		{u16s(9, 1), "unknown 9.1"},
	}

	for _, tt := range tests {
		rep, err := detectEncryptedPackage(memSource{"EncryptionInfo": tt.version, "EncryptedPackage": fill(8, 0)})
		require.NoError(t, err)
		assert.Equal(t, FormatEncryptedOOXML, rep.Format)
		assert.Equal(t, StatusProtected, rep.Result.Status)
		assert.Equal(t, tt.scheme, rep.Scheme)
	}

	rep, err := detectEncryptedPackage(memSource{"EncryptionInfo": {4}})
	require.Error(t, err)
	assert.Equal(t, StatusCorrupt, rep.Result.Status)
}

func zipPackage(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestClassifyOpenDocument(t *testing.T) {
	encrypted := zipPackage(t, map[string]string{
		"mimetype": "application/vnd.oasis.opendocument.spreadsheet",
		"META-INF/manifest.xml": `<manifest:manifest><manifest:file-entry manifest:full-path="content.xml">` +
			`<manifest:encryption-data manifest:checksum-type="SHA1/1K"/></manifest:file-entry></manifest:manifest>`,
	})
	rep, err := Classify(encrypted, nil)
	require.NoError(t, err)
	assert.Equal(t, FormatODF, rep.Format)
	assert.Equal(t, StatusProtected, rep.Result.Status)
	assert.Equal(t, "odf", rep.Scheme)

	plain := zipPackage(t, map[string]string{
		"META-INF/manifest.xml": `<manifest:manifest><manifest:file-entry manifest:full-path="content.xml"/></manifest:manifest>`,
	})
	rep, err = Classify(plain, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusNotProtected, rep.Result.Status)
}

func TestClassifyXLSX(t *testing.T) {
	book := xlsx.NewFile()
	for _, name := range []string{"Summary", "Data"} {
		sheet, err := book.AddSheet(name)
		require.NoError(t, err)
		sheet.AddRow().AddCell().SetString(name)
	}
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, book.Save(path))

	rep, err := ClassifyFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, rep.Format)
	assert.Equal(t, StatusNotProtected, rep.Result.Status)
	assert.Equal(t, []string{"Summary", "Data"}, rep.SheetNames)
}

func TestClassifyBrokenXLSX(t *testing.T) {
	data := zipPackage(t, map[string]string{"xl/workbook.xml": "<workbook"})
	rep, err := Classify(data, nil)
	var cde *CorruptDocumentError
	require.ErrorAs(t, err, &cde)
	assert.Equal(t, FormatXLSX, rep.Format)
	assert.Equal(t, StatusCorrupt, rep.Result.Status)
}

func TestClassifyOtherInputs(t *testing.T) {
	rep, err := Classify(zipPackage(t, map[string]string{"readme.txt": "hi"}), nil)
	require.NoError(t, err)
	assert.Equal(t, FormatZip, rep.Format)
	assert.Equal(t, StatusNotProtected, rep.Result.Status)

	_, err = Classify([]byte("plain text file"), nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = ClassifyFile(filepath.Join(t.TempDir(), "missing.xls"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
