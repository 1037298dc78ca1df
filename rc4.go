package xlsguard

// RC4 is the stream cipher used by BIFF8 and Word 97 encryption.
//
// crypto/rc4 hides its permutation state, so the engine is kept here where
// the key schedule can be inspected. An RC4 value is a single keystream
// session and must not be shared between goroutines.
type RC4 struct {
	s    [256]byte
	i, j uint8
}

// NewRC4 returns an engine keyed with key.
func NewRC4(key []byte) (*RC4, error) {
	c := new(RC4)
	if err := c.Reset(key); err != nil {
		return nil, err
	}
	return c, nil
}

// Reset restarts the key stream using a new key.
func (c *RC4) Reset(key []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	for i := range c.s {
		c.s[i] = uint8(i)
	}
	var j uint8
	for i := 0; i < 256; i++ {
		j += c.s[i] + key[i%len(key)]
		c.s[i], c.s[j] = c.s[j], c.s[i]
	}
	c.i, c.j = 0, 0
	return nil
}

// NextByte advances the generator and returns one keystream byte.
func (c *RC4) NextByte() byte {
	c.i++
	x := c.s[c.i]
	c.j += x
	y := c.s[c.j]
	c.s[c.i], c.s[c.j] = y, x
	return c.s[x+y]
}

// Transform XORs buf in place with the keystream. Pass buf[off:off+n] to
// transform part of a buffer.
func (c *RC4) Transform(buf []byte) {
	c.XORKeyStream(buf, buf)
}

// XORKeyStream sets dst to the result of XORing src with the key stream.
// Dst and src must overlap entirely or not at all.
func (c *RC4) XORKeyStream(dst, src []byte) {
	if len(src) == 0 {
		return
	}
	dst = dst[:len(src)]
	for k, v := range src {
		dst[k] = v ^ c.NextByte()
	}
}

// Discard advances the keystream by n bytes.
func (c *RC4) Discard(n int) {
	for ; n > 0; n-- {
		c.NextByte()
	}
}
