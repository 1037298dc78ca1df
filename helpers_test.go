package xlsguard

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/require"
	"github.com/vstasn/ole2"
)

type testRecord struct {
	sid  uint16
	data []byte
}

// buildStream frames records the way a Workbook stream stores them.
func buildStream(t *testing.T, records ...testRecord) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	rw := NewRecordWriter(buf)
	for _, r := range records {
		require.NoError(t, rw.WriteRecord(r.sid, r.data))
	}
	return buf.Bytes()
}

// rawRecord frames one record without splitting, so tests can lay out CONTINUE records by hand.
func rawRecord(sid uint16, data []byte) []byte {
	buf := new(bytes.Buffer)
	w := NewWriter(buf)
	w.WriteU16(sid)
	w.WriteU16(uint16(len(data)))
	w.WriteBytes(data)
	return buf.Bytes()
}

func fill(n int, b byte) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func biff8BOF() []byte {
	buf := new(bytes.Buffer)
	w := NewWriter(buf)
	w.WriteU16(0x0600) // BIFF8
	w.WriteU16(0x0005) // workbook globals
	w.WriteU16(0x0DBB)
	w.WriteU16(0x07CC)
	w.WriteU32(0)
	w.WriteU32(0x06)
	return buf.Bytes()
}

func biff5BOF() []byte {
	buf := new(bytes.Buffer)
	w := NewWriter(buf)
	w.WriteU16(0x0500)
	w.WriteU16(0x0005)
	w.WriteU16(0x0DBB)
	w.WriteU16(0x07CC)
	return buf.Bytes()
}

// rc4FilePass builds a BIFF8 RC4 FILEPASS payload.
func rc4FilePass(docID, salt, saltHash []byte) []byte {
	buf := new(bytes.Buffer)
	w := NewWriter(buf)
	w.WriteU16(1) // encryptionType
	w.WriteU16(1) // encryptionInfo
	w.WriteU16(1) // reserved
	w.WriteBytes(docID)
	w.WriteBytes(salt)
	w.WriteBytes(saltHash)
	return buf.Bytes()
}

func u16s(vs ...uint16) []byte {
	buf := new(bytes.Buffer)
	w := NewWriter(buf)
	for _, v := range vs {
		w.WriteU16(v)
	}
	return buf.Bytes()
}

// cfbEntry is one directory entry of a synthesized compound file.
type cfbEntry struct {
	name               string
	typ                byte
	data               []byte
	left, right, child uint32
}

func rootEntry(child uint32) cfbEntry {
	return cfbEntry{name: "Root Entry", typ: ole2.ROOT, left: noStream, right: noStream, child: child}
}

func streamEntry(name string, data []byte, right uint32) cfbEntry {
	return cfbEntry{name: name, typ: ole2.USERSTREAM, data: data, left: noStream, right: right, child: noStream}
}

// flatCompound places streams directly under the root, chained through their right siblings.
func flatCompound(t *testing.T, streams ...cfbEntry) []byte {
	t.Helper()
	entries := []cfbEntry{rootEntry(1)}
	for i, e := range streams {
		e.left, e.right, e.child = noStream, noStream, noStream
		if i+1 < len(streams) {
			e.right = uint32(i + 2)
		}
		entries = append(entries, e)
	}
	return buildCompound(t, entries, nil)
}

// buildCompound lays out a version 3 compound file with one FAT sector and
// one mini FAT sector. entries[0] must be the root. damage, when set, may
// rewrite the header, the FAT and the directory before they are written.
func buildCompound(t *testing.T, entries []cfbEntry, damage func(h *ole2.Header, fat []uint32, dir []ole2.File)) []byte {
	t.Helper()
	const (
		fatSector     = 0
		miniFATSector = 1
		fatSect       = 0xFFFFFFFD
	)

	fat := make([]uint32, sectorSize/4)
	miniFAT := make([]uint32, sectorSize/4)
	for i := range fat {
		fat[i], miniFAT[i] = ole2.FREESECT, ole2.FREESECT
	}
	fat[fatSector] = fatSect
	fat[miniFATSector] = ole2.ENDOFCHAIN

	sectors := make([][]byte, 2)
	allocate := func(data []byte) uint32 {
		start := uint32(len(sectors))
		for off := 0; off < len(data); off += sectorSize {
			sector := make([]byte, sectorSize)
			copy(sector, data[off:])
			fat[len(sectors)] = uint32(len(sectors) + 1)
			sectors = append(sectors, sector)
		}
		fat[len(sectors)-1] = ole2.ENDOFCHAIN
		return start
	}

	dirStart := allocate(make([]byte, (len(entries)+3)/4*sectorSize))

	var mini []byte
	dir := make([]ole2.File, len(entries))
	for i, e := range entries {
		f := &dir[i]
		f.Type = e.typ
		f.Left, f.Right, f.Child = e.left, e.right, e.child
		name := utf16.Encode([]rune(e.name))
		copy(f.NameBts[:], name)
		f.Bsize = uint16(len(name)+1) * 2
		f.Sstart = ole2.ENDOFCHAIN
		if e.typ != ole2.USERSTREAM {
			continue
		}

		f.Size = uint32(len(e.data))
		switch {
		case len(e.data) >= 4096:
			f.Sstart = allocate(e.data)
		case len(e.data) > 0:
			f.Sstart = uint32(len(mini) / miniSectorSize)
			for off := 0; off < len(e.data); off += miniSectorSize {
				sid := len(mini) / miniSectorSize
				miniFAT[sid] = uint32(sid + 1)
				chunk := make([]byte, miniSectorSize)
				copy(chunk, e.data[off:])
				mini = append(mini, chunk...)
			}
			miniFAT[len(mini)/miniSectorSize-1] = ole2.ENDOFCHAIN
		}
	}
	if len(mini) > 0 {
		dir[0].Sstart = allocate(mini)
		dir[0].Size = uint32(len(mini))
	}
	// trailing free sector, so no chain ends at the end of the file
	sectors = append(sectors, make([]byte, sectorSize))

	h := ole2.Header{
		Id:           [2]uint32{headerSignature0, headerSignature1},
		Verminor:     0x3E,
		Verdll:       3,
		Byteorder:    byteOrderMark,
		Lsectorb:     sectorShift,
		Lssectorb:    miniSectorShift,
		Cfat:         1,
		Dirstart:     dirStart,
		Sectorcutoff: 4096,
		Sfatstart:    miniFATSector,
		Csfat:        1,
		Difstart:     ole2.ENDOFCHAIN,
	}
	for i := range h.Msat {
		h.Msat[i] = ole2.FREESECT
	}
	h.Msat[0] = fatSector

	if damage != nil {
		damage(&h, fat, dir)
	}

	dirBuf := new(bytes.Buffer)
	require.NoError(t, binary.Write(dirBuf, binary.LittleEndian, dir))
	for i := 0; dirBuf.Len() > 0; i++ {
		copy(sectors[int(dirStart)+i], dirBuf.Next(sectorSize))
	}

	buf := new(bytes.Buffer)
	require.NoError(t, binary.Write(buf, binary.LittleEndian, &h))
	require.NoError(t, binary.Write(buf, binary.LittleEndian, fat))
	require.NoError(t, binary.Write(buf, binary.LittleEndian, miniFAT))
	for _, sector := range sectors[2:] {
		buf.Write(sector)
	}
	return buf.Bytes()
}
