package rangecoder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCoderShortBuffer(t *testing.T) {
	_, err := NewCoder([]byte{0x12})
	require.Error(t, err)
}

func TestZeroBufferDecodesOnes(t *testing.T) {
	c, err := NewCoder(make([]byte, 64))
	require.NoError(t, err)

	// With low pinned at zero every decision is a zero bit, so every
	// symbol is "not zero, no exponent, positive".
	state := NewState()
	require.False(t, c.BR(state))
	require.Equal(t, uint32(1), c.UR(NewState()))
	require.Equal(t, int32(1), c.SR(NewState()))
	require.NoError(t, c.Err())
}

func TestOverreadIsReported(t *testing.T) {
	c, err := NewCoder([]byte{0, 0})
	require.NoError(t, err)

	state := NewState()
	for i := 0; i < 10000 && c.Err() == nil; i++ {
		c.BR(state)
	}
	require.Equal(t, ErrOverread, c.Err())
}

func TestZeroStateMirrorsOneState(t *testing.T) {
	c, err := NewCoder([]byte{0, 0})
	require.NoError(t, err)

	for i := 1; i < 255; i++ {
		require.Equal(t, uint8(uint16(256)-uint16(DefaultStateTransition[256-i])), c.zeroState[i], "state %d", i)
	}
}

func TestDefaultStateTransitionShape(t *testing.T) {
	// The usable part of the table only ever moves up.
	for i := 9; i < 249; i++ {
		require.GreaterOrEqual(t, DefaultStateTransition[i], DefaultStateTransition[i-1], "state %d", i)
	}
	require.Equal(t, uint8(20), DefaultStateTransition[8])
	require.Equal(t, uint8(248), DefaultStateTransition[248])
}
