package xlsguard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vstasn/ole2"
)

// ole2 reads version 3 compound files only.
const (
	sectorShift     = 9
	miniSectorShift = 6
	sectorSize      = 1 << sectorShift
	miniSectorSize  = 1 << miniSectorShift

	headerSignature0 = 0xE011CFD0
	headerSignature1 = 0xE11AB1A1
	byteOrderMark    = 0xFFFE

	// sibling or child id of an absent directory entry
	noStream = 0xFFFFFFFF
)

// StreamSource resolves named streams inside a compound document.
type StreamSource interface {
	// TryGetStream returns the stream contents, or ok == false when no stream has that name.
	TryGetStream(name string) (data []byte, ok bool, err error)
}

// Container is an OLE2 compound file opened for stream lookup.
//
// Only streams that are direct children of the root storage are visible, so
// objects embedded in nested storages never shadow the document's own streams.
// Every sector chain is checked against the allocation tables and the file
// length before ole2 reads it.
type Container struct {
	ole     *ole2.Ole
	header  ole2.Header
	size    int64
	root    *ole2.File
	streams map[string]*ole2.File
}

var _ StreamSource = (*Container)(nil)

func corruptContainer(reason string, err error) error {
	return &CorruptDocumentError{Reason: reason, Err: err}
}

// OpenContainer reads the OLE2 directory of reader.
//
// A reader without the compound file signature fails with ErrUnknownFormat.
// Structural damage fails with a *CorruptDocumentError.
func OpenContainer(reader io.ReadSeeker) (*Container, error) {
	c := new(Container)

	var err error
	if c.size, err = reader.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}
	if _, err = reader.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if err = binary.Read(reader, binary.LittleEndian, &c.header); err != nil {
		return nil, corruptContainer("reading header", err)
	}
	if err = c.checkHeader(reader); err != nil {
		return nil, err
	}

	if _, err = reader.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	// Open the OLE2 compound document structure
	if c.ole, err = ole2.Open(reader); err != nil {
		return nil, corruptContainer("reading allocation tables", err)
	}

	dirChain, err := walkChain(c.ole.SecID, c.header.Dirstart, 0, sectorSize)
	if err == nil {
		err = c.checkSectors(dirChain)
	}
	if err != nil {
		return nil, corruptContainer("directory", err)
	}

	// List all files (streams) within the OLE2 document
	dir, err := c.ole.ListDir()
	if err != nil {
		return nil, corruptContainer("reading directory", err)
	}
	if err = c.index(dir); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Container) checkHeader(reader io.ReadSeeker) error {
	h := &c.header
	if h.Id[0] != headerSignature0 || h.Id[1] != headerSignature1 {
		return ErrUnknownFormat
	}
	if h.Byteorder != byteOrderMark {
		return corruptContainer(fmt.Sprintf("byte order mark 0x%04x", h.Byteorder), nil)
	}
	if h.Lsectorb != sectorShift || h.Lssectorb != miniSectorShift {
		return corruptContainer(fmt.Sprintf("unsupported sector shifts %d/%d", h.Lsectorb, h.Lssectorb), nil)
	}

	sectors := (c.size - sectorSize) / sectorSize
	if int64(h.Cfat) > sectors || int64(h.Csfat) > sectors || int64(h.Cdif) > sectors {
		return corruptContainer("allocation table sector counts exceed the file", nil)
	}

	// ole2.Open follows the DIFAT chain until ENDOFCHAIN
	var next [4]byte
	sid := h.Difstart
	for n := uint32(0); sid != ole2.ENDOFCHAIN; n++ {
		if n >= h.Cdif || !c.sectorInFile(sid) {
			return corruptContainer(fmt.Sprintf("DIFAT chain at sector 0x%x", sid), nil)
		}
		if _, err := reader.Seek(sectorOffset(sid)+sectorSize-4, io.SeekStart); err != nil {
			return err
		}
		if _, err := io.ReadFull(reader, next[:]); err != nil {
			return corruptContainer("reading DIFAT", err)
		}
		sid = binary.LittleEndian.Uint32(next[:])
	}

	return nil
}

// index collects the streams reachable from the root's child tree.
func (c *Container) index(dir []*ole2.File) error {
	if len(dir) == 0 || dir[0].Type != ole2.ROOT {
		return corruptContainer("directory has no root entry", nil)
	}
	c.root = dir[0] // Needed as context for resolving mini-stream data
	c.streams = make(map[string]*ole2.File)

	seen := make(map[uint32]bool)
	pending := []uint32{c.root.Child}
	for len(pending) > 0 {
		id := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if id == noStream {
			continue
		}
		if id == 0 || uint64(id) >= uint64(len(dir)) {
			return corruptContainer(fmt.Sprintf("directory entry %d out of range", id), nil)
		}
		if seen[id] {
			return corruptContainer(fmt.Sprintf("directory tree revisits entry %d", id), nil)
		}
		seen[id] = true

		entry := dir[id]
		pending = append(pending, entry.Left, entry.Right)
		if entry.Type != ole2.USERSTREAM {
			continue
		}

		name, err := entryName(entry)
		if err != nil {
			return corruptContainer(fmt.Sprintf("directory entry %d", id), err)
		}
		if _, dup := c.streams[name]; !dup {
			c.streams[name] = entry
		}
	}

	return nil
}

// entryName guards ole2.File.Name, which slices by the stored name length.
func entryName(f *ole2.File) (string, error) {
	if f.Bsize < 2 || f.Bsize > 2*uint16(len(f.NameBts)) || f.Bsize%2 != 0 {
		return "", fmt.Errorf("invalid name length %d", f.Bsize)
	}
	return f.Name(), nil
}

// Has reports whether a top-level stream named name exists.
func (c *Container) Has(name string) bool {
	_, ok := c.streams[name]
	return ok
}

// TryGetStream reads the top-level stream called name. A stream whose sector
// chain is damaged fails with a *CorruptDocumentError.
func (c *Container) TryGetStream(name string) ([]byte, bool, error) {
	file, ok := c.streams[name]
	if !ok {
		return nil, false, nil
	}
	if err := c.checkStream(file); err != nil {
		return nil, true, corruptContainer(fmt.Sprintf("stream %q", name), err)
	}

	// ole2's reader fills the whole buffer in one Read call
	data := make([]byte, file.Size)
	if _, err := io.ReadFull(c.ole.OpenFile(file, c.root), data); err != nil {
		return nil, true, corruptContainer(fmt.Sprintf("stream %q", name), err)
	}

	return data, true, nil
}

// checkStream verifies every sector ole2 will visit while reading file.
func (c *Container) checkStream(file *ole2.File) error {
	size := int64(file.Size)
	if size == 0 {
		return nil
	}
	if file.Size >= c.header.Sectorcutoff {
		sids, err := walkChain(c.ole.SecID, file.Sstart, size, sectorSize)
		if err != nil {
			return err
		}
		return c.checkSectors(sids)
	}

	mini, err := walkChain(c.ole.SSecID, file.Sstart, size, miniSectorSize)
	if err != nil {
		return err
	}
	host, err := walkChain(c.ole.SecID, c.root.Sstart, 0, sectorSize)
	if err == nil {
		err = c.checkSectors(host)
	}
	if err != nil {
		return fmt.Errorf("mini stream: %w", err)
	}
	for _, sid := range mini {
		if (int64(sid)+1)*miniSectorSize > int64(len(host))*sectorSize {
			return fmt.Errorf("mini sector %d lies past the end of the mini stream", sid)
		}
	}

	return nil
}

func (c *Container) checkSectors(sids []uint32) error {
	for _, sid := range sids {
		if !c.sectorInFile(sid) {
			return fmt.Errorf("sector %d lies past the end of the file", sid)
		}
	}
	return nil
}

func (c *Container) sectorInFile(sid uint32) bool {
	return sectorOffset(sid)+sectorSize <= c.size
}

func sectorOffset(sid uint32) int64 {
	return (int64(sid) + 1) * sectorSize
}

var errChainLoop = errors.New("sector chain loops")

// walkChain follows a chain through sat from sid and returns the sectors it
// visits. The chain must end in ENDOFCHAIN without leaving sat and must hold
// at least size bytes of unit-sized sectors.
func walkChain(sat []uint32, sid uint32, size, unit int64) ([]uint32, error) {
	var sids []uint32
	for sid != ole2.ENDOFCHAIN {
		if uint64(sid) >= uint64(len(sat)) {
			return nil, fmt.Errorf("sector 0x%x outside allocation table of %d entries", sid, len(sat))
		}
		if len(sids) >= len(sat) {
			return nil, errChainLoop
		}
		sids = append(sids, sid)
		sid = sat[sid]
	}
	if int64(len(sids))*unit < size {
		return nil, fmt.Errorf("chain of %d sectors is shorter than %d bytes", len(sids), size)
	}
	return sids, nil
}
