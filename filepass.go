package xlsguard

import "fmt"

// EncryptionType identifies the scheme announced by a FILEPASS record.
type EncryptionType int

const (
	EncryptionXOR EncryptionType = iota
	EncryptionRC4
	EncryptionCryptoAPI
)

func (t EncryptionType) String() string {
	switch t {
	case EncryptionXOR:
		return "XOR"
	case EncryptionRC4:
		return "RC4"
	case EncryptionCryptoAPI:
		return "CryptoAPI"
	}
	return fmt.Sprintf("EncryptionType(%d)", int(t))
}

func (t EncryptionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// FilePass describes the encryption header of a protected document.
//
// For RC4 the three 16-byte fields are, in MS-XLS terms, the salt, the
// encrypted verifier and the encrypted verifier hash. A password check
// derives the key from the password and DocID, decrypts Salt with it and
// compares the MD5 of the result against the decrypted SaltHash.
type FilePass struct {
	Type     EncryptionType
	DocID    [16]byte
	Salt     [16]byte
	SaltHash [16]byte

	// XOR obfuscation only.
	XORKey      uint16
	XORVerifier uint16
}

// Supported reports whether the cryptographic parameters were fully decoded.
func (fp *FilePass) Supported() bool {
	return fp.Type == EncryptionRC4
}

// DecodeFilePass decodes the payload of a BIFF8 FILEPASS record.
//
// XOR and CryptoAPI headers return a FilePass carrying only Type together
// with an *UnsupportedEncryptionError.
func DecodeFilePass(data []byte) (*FilePass, error) {
	c := NewCursor(data)

	encryptionType, err := c.ReadU16()
	if err != nil {
		return nil, err
	}

	switch encryptionType {
	case 0:
		return decodeXOR(c)
	case 1:
		fp, err := decodeRC4Header(c)
		if err != nil {
			return fp, err
		}
		if c.Available() != 0 {
			return nil, fmt.Errorf("%w: FILEPASS has %d trailing bytes", ErrRecordSizeMismatch, c.Available())
		}
		return fp, nil
	}

	return nil, &UnrecognizedEncryptionCodeError{Field: "encryptionType", Value: encryptionType}
}

// DecodeLegacyFilePass decodes a BIFF5 (or earlier) FILEPASS record, which is always XOR obfuscation.
func DecodeLegacyFilePass(data []byte) (*FilePass, error) {
	return decodeXOR(NewCursor(data))
}

// decodeXOR consumes the key and verifier words of an XOR obfuscation header.
// An empty header is accepted; a header cut inside the two words is not.
func decodeXOR(c *Cursor) (*FilePass, error) {
	fp := &FilePass{Type: EncryptionXOR}
	switch n := c.Available(); {
	case n == 0:
	case n < 4:
		return nil, fmt.Errorf("%w: XOR header of %d bytes", ErrUnexpectedEndOfData, n)
	default:
		fp.XORKey, _ = c.ReadU16()
		fp.XORVerifier, _ = c.ReadU16()
	}
	return fp, &UnsupportedEncryptionError{Type: EncryptionXOR}
}

// decodeRC4Header decodes an RC4 encryption header starting at its version
// word. The same header opens the table stream of an encrypted Word document.
func decodeRC4Header(c *Cursor) (*FilePass, error) {
	info, err := c.ReadU16()
	if err != nil {
		return nil, err
	}

	switch info {
	case 1:
	case 2, 3:
		// variable-length CryptoAPI header, the record boundary bounds it
		c.pos = len(c.data)
		fp := &FilePass{Type: EncryptionCryptoAPI}
		return fp, &UnsupportedEncryptionError{Type: EncryptionCryptoAPI}
	default:
		return nil, &UnrecognizedEncryptionCodeError{Field: "encryptionInfo", Value: info}
	}

	// reserved (minor version)
	if err := c.Skip(2); err != nil {
		return nil, err
	}

	fp := &FilePass{Type: EncryptionRC4}
	for _, field := range [][]byte{fp.DocID[:], fp.Salt[:], fp.SaltHash[:]} {
		if err := c.readInto(field); err != nil {
			return nil, err
		}
	}
	return fp, nil
}
