// Package rangecoder implements the read side of the FFV1 range coder, as
// used for configuration records and slice headers.
package rangecoder

import (
	"github.com/pkg/errors"
)

// ContextSize is the number of states a symbol is coded with.
const ContextSize = 32

// ErrOverread is reported once the coder has read past its buffer.
var ErrOverread = errors.New("range coder read past end of buffer")

// Coder is a range decoder over one buffer. It is owned by a single
// reader at a time.
type Coder struct {
	buf       []byte
	pos       int
	low       uint16
	rng       uint16
	zeroState [256]uint8
	oneState  [256]uint8
	overread  uint8
}

// NewState returns a fresh symbol state, all 128.
func NewState() []uint8 {
	state := make([]uint8, ContextSize)
	for i := range state {
		state[i] = 128
	}
	return state
}

// NewCoder starts decoding buf with the default state transition table.
func NewCoder(buf []byte) (*Coder, error) {
	if len(buf) < 2 {
		return nil, errors.Errorf("range coded buffer too short: %d bytes", len(buf))
	}

	ret := new(Coder)

	ret.buf = buf
	ret.pos = 2
	ret.low = uint16(buf[0])<<8 | uint16(buf[1])
	ret.rng = 0xFF00
	if ret.low >= ret.rng {
		ret.low = ret.rng
		ret.pos = len(buf) - 1
	}

	ret.SetTable(DefaultStateTransition)

	return ret, nil
}

// Err returns ErrOverread once the coder has run out of input.
func (c *Coder) Err() error {
	if c.overread > 0 {
		return ErrOverread
	}
	return nil
}

// Pos returns the number of bytes consumed so far.
func (c *Coder) Pos() int {
	return c.pos
}

func (c *Coder) refill() {
	if c.rng < 0x100 {
		c.rng <<= 8
		c.low <<= 8
		if c.pos < len(c.buf) {
			c.low += uint16(c.buf[c.pos])
			c.pos++
		} else if c.overread < 255 {
			c.overread++
		}
	}
}

func (c *Coder) get(state *uint8) bool {
	rangeoff := uint16((uint32(c.rng) * uint32(*state)) >> 8)
	c.rng -= rangeoff
	if c.low < c.rng {
		*state = c.zeroState[*state]
		c.refill()
		return false
	}

	c.low -= c.rng
	*state = c.oneState[*state]
	c.rng = rangeoff
	c.refill()
	return true
}

// UR reads an unsigned symbol.
func (c *Coder) UR(state []uint8) uint32 {
	return uint32(c.symbol(state, false))
}

// SR reads a signed symbol.
func (c *Coder) SR(state []uint8) int32 {
	return c.symbol(state, true)
}

// BR reads a single bit.
func (c *Coder) BR(state []uint8) bool {
	return c.get(&state[0])
}

func (c *Coder) symbol(state []uint8, signed bool) int32 {
	if c.get(&state[0]) {
		return 0
	}

	e := 0
	for c.get(&state[1+min(e, 9)]) {
		e++
		if e > 31 {
			// Corrupt input. Latch the error and give up on the symbol.
			c.overread = 255
			return 0
		}
	}

	a := uint32(1)
	for i := e - 1; i >= 0; i-- {
		a *= 2
		if c.get(&state[22+min(i, 9)]) {
			a++
		}
	}

	if signed && c.get(&state[11+min(e, 10)]) {
		return -int32(a)
	}
	return int32(a)
}

// SetTable installs a custom state transition table.
func (c *Coder) SetTable(table [256]uint8) {
	c.oneState = table
	c.zeroState = [256]uint8{}
	for i := 1; i < 255; i++ {
		c.zeroState[i] = uint8(uint16(256) - uint16(c.oneState[256-i]))
	}
}
