package xlsguard

import (
	"errors"
	"fmt"
)

const (
	fibIdent = 0xA5EC

	fibEncrypted   = 0x0100
	fibWhichTblStm = 0x0200
	fibObfuscated  = 0x8000
)

// fibBase is the fixed head of a Word 97 File Information Block.
type fibBase struct {
	Ident    uint16
	Flags    uint16
	NFibBack uint16
	LKey     uint32
}

func readFibBase(data []byte) (*fibBase, error) {
	c := NewCursor(data)
	fib := new(fibBase)

	var err error
	if fib.Ident, err = c.ReadU16(); err != nil {
		return nil, err
	}
	if fib.Ident != fibIdent {
		return nil, fmt.Errorf("bad FIB identifier 0x%04x", fib.Ident)
	}
	// nFib, unused, lid, pnNext
	if err = c.Skip(8); err != nil {
		return nil, err
	}
	if fib.Flags, err = c.ReadU16(); err != nil {
		return nil, err
	}
	if fib.NFibBack, err = c.ReadU16(); err != nil {
		return nil, err
	}
	if fib.LKey, err = c.ReadU32(); err != nil {
		return nil, err
	}
	return fib, nil
}

// detectWord checks the FIB of a Word 97-2003 document. An encrypted
// document keeps its encryption header at the start of the table stream.
func detectWord(src StreamSource) (*Report, error) {
	rep := &Report{Format: FormatDoc}

	data, _, err := src.TryGetStream("WordDocument")
	if err != nil {
		return failed(rep, err)
	}

	fib, err := readFibBase(data)
	if err != nil {
		rep.Result, err = corrupt(BookInfo{}, "reading FIB", err)
		return rep, err
	}

	switch {
	case fib.Flags&fibEncrypted == 0:
		rep.Result = &Result{Status: StatusNotProtected}
		return rep, nil
	case fib.Flags&fibObfuscated != 0:
		rep.Result = &Result{
			Status:   StatusProtected,
			FilePass: &FilePass{Type: EncryptionXOR, XORKey: uint16(fib.LKey)},
		}
		rep.Scheme = EncryptionXOR.String()
		return rep, nil
	}

	table := "0Table"
	if fib.Flags&fibWhichTblStm != 0 {
		table = "1Table"
	}
	tbl, ok, err := src.TryGetStream(table)
	if err != nil {
		return failed(rep, err)
	}
	if !ok {
		rep.Result, err = corrupt(BookInfo{}, "missing "+table+" stream", nil)
		return rep, err
	}
	if int(fib.LKey) < len(tbl) {
		tbl = tbl[:fib.LKey]
	}

	fp, err := decodeRC4Header(NewCursor(tbl))
	var unsupported *UnsupportedEncryptionError
	var unrecognized *UnrecognizedEncryptionCodeError
	switch {
	case err == nil, errors.As(err, &unsupported):
	case errors.As(err, &unrecognized) && unrecognized.Value == 4:
		// ECMA-376 standard and agile headers, version 4.x
		fp = &FilePass{Type: EncryptionCryptoAPI}
	default:
		rep.Result, err = corrupt(BookInfo{}, "decoding encryption header", err)
		return rep, err
	}

	rep.Result = &Result{Status: StatusProtected, FilePass: fp}
	rep.Scheme = fp.Type.String()
	return rep, nil
}
