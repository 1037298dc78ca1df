package xlsguard

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// BookInfo holds the workbook globals seen before the scan ended.
// Records after FILEPASS are encrypted, so a protected workbook usually
// reports only the BOF fields.
type BookInfo struct {
	BIFFVersion int    `json:"biff_version" yaml:"biff_version"`
	StreamType  uint16 `json:"stream_type" yaml:"stream_type"`
	Codepage    uint16 `json:"codepage,omitempty" yaml:"codepage,omitempty"`
	Author      string `json:"author,omitempty" yaml:"author,omitempty"`
}

// Is5ver reports whether the stream predates BIFF8.
func (b *BookInfo) Is5ver() bool {
	return b.BIFFVersion != 0 && b.BIFFVersion < 80
}

type biffHeader struct {
	Ver    uint16
	Type   uint16
	IDMake uint16
	Year   uint16
	Flags  uint32
	MinVer uint32
}

// Handler function type for BIFF records.
type recordHandler func(info *BookInfo, rec Record) error

var recordHandlers = map[uint16]recordHandler{
	SidBOF:         handleBOF,
	SidBOF4:        handleBOF,
	SidBOF3:        handleBOF,
	SidBOF2:        handleBOF,
	SidCodepage:    handleCodepage,
	SidWriteAccess: handleWriteAccess,
}

func handleBOF(info *BookInfo, rec Record) error {
	// only the first BOF, the workbook globals, describes the file
	if info.BIFFVersion != 0 {
		return nil
	}
	if len(rec.Data) < 4 {
		return fmt.Errorf("%w: BOF record of %d bytes", ErrUnexpectedEndOfData, len(rec.Data))
	}

	// BIFF2-BIFF5 headers are shorter than the BIFF8 layout
	raw := make([]byte, binary.Size(biffHeader{}))
	copy(raw, rec.Data)
	bif := new(biffHeader)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, bif); err != nil {
		return err
	}

	switch rec.Sid {
	case SidBOF2:
		info.BIFFVersion = 21
	case SidBOF3:
		info.BIFFVersion = 30
	case SidBOF4:
		info.BIFFVersion = 40
	default:
		if bif.Ver == 0x0600 {
			info.BIFFVersion = 80
		} else {
			info.BIFFVersion = 50
		}
	}
	info.StreamType = bif.Type

	return nil
}

func handleCodepage(info *BookInfo, rec Record) error {
	cp, err := rec.Cursor().ReadU16()
	if err != nil {
		return err
	}
	info.Codepage = cp
	return nil
}

// WRITEACCESS is padded with spaces; a damaged name is dropped rather than failing the scan.
func handleWriteAccess(info *BookInfo, rec Record) error {
	var name string
	var err error
	if info.Is5ver() {
		name, err = readByteString(rec.Cursor(), info.Codepage)
	} else {
		name, err = readUnicodeString(rec.Cursor())
	}
	if err == nil {
		info.Author = strings.TrimRight(name, " \x00")
	}
	// a read error here only loses Author, so it is not reported as corruption
	return nil
}

var codepages = map[uint16]encoding.Encoding{
	437:   charmap.CodePage437,
	850:   charmap.CodePage850,
	866:   charmap.CodePage866,
	1250:  charmap.Windows1250,
	1251:  charmap.Windows1251,
	1252:  charmap.Windows1252,
	1253:  charmap.Windows1253,
	1254:  charmap.Windows1254,
	1255:  charmap.Windows1255,
	1256:  charmap.Windows1256,
	1257:  charmap.Windows1257,
	1258:  charmap.Windows1258,
	10000: charmap.Macintosh,
	32768: charmap.Macintosh,
	32769: charmap.Windows1252,
}

func decodeCodepage(enc []byte, cp uint16) string {
	e, ok := codepages[cp]
	if !ok {
		e = charmap.Windows1252
	}
	out, err := e.NewDecoder().Bytes(enc)
	if err != nil {
		return string(enc)
	}
	return string(out)
}

// readByteString reads a BIFF5 string: one length byte then code page bytes.
func readByteString(c *Cursor, cp uint16) (string, error) {
	n, err := c.ReadU8()
	if err != nil {
		return "", err
	}
	bts, err := c.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return decodeCodepage(bts, cp), nil
}

// readUnicodeString reads a BIFF8 XLUnicodeString.
func readUnicodeString(c *Cursor) (string, error) {
	size, err := c.ReadU16()
	if err != nil {
		return "", err
	}
	flag, err := c.ReadU8()
	if err != nil {
		return "", err
	}

	bts := make([]uint16, size)
	for i := range bts {
		if flag&0x1 != 0 {
			bts[i], err = c.ReadU16()
		} else {
			var b uint8
			b, err = c.ReadU8()
			bts[i] = uint16(b)
		}
		if err != nil {
			return "", err
		}
	}

	return string(utf16.Decode(bts)), nil
}
