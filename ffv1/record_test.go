package ffv1

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/dwbuiten/ffv1ctx/ffv1/rangecoder"
)

// recordScript codes a version 3.4, 4:2:0, 4x2 slice record with both
// table sets; the first carries initial states.
func recordScript() []int64 {
	vals := []int64{
		3, 4, // version, micro_version
		1,    // coder_type
		0, 8, // colorspace, bits
		1, 1, 1, // chroma_planes, h and v subsampling
		0,    // extra_plane
		3, 1, // slices minus one
		2, // quant_table_set_count
	}
	vals = append(vals, firstOrderTableScript()...)
	vals = append(vals, secondOrderTableScript()...)

	vals = append(vals, 1)
	for j := 0; j < 63; j++ {
		for k := 0; k < contextSize; k++ {
			if j == 0 {
				vals = append(vals, 1)
			} else {
				vals = append(vals, 0)
			}
		}
	}
	vals = append(vals, 0)

	vals = append(vals, 0, 1) // ec, intra
	return vals
}

func TestReadConfig(t *testing.T) {
	r := script(recordScript()...)
	cfg, err := ReadConfig(r)
	require.NoError(t, err)
	require.True(t, r.done())

	require.Equal(t, uint8(3), cfg.Version)
	require.Equal(t, uint8(4), cfg.MicroVersion)
	require.Equal(t, uint8(CoderRange), cfg.CoderType)
	require.Equal(t, uint8(8), cfg.BitsPerRawSample)
	require.True(t, cfg.ChromaPlanes)
	require.Equal(t, uint8(1), cfg.Log2HChromaSubsample)
	require.Equal(t, uint8(1), cfg.Log2VChromaSubsample)
	require.False(t, cfg.ExtraPlane)
	require.Equal(t, 4, cfg.NumHSlices)
	require.Equal(t, 2, cfg.NumVSlices)
	require.Len(t, cfg.QuantTables, 2)
	require.Equal(t, 63, cfg.QuantTables[0].ContextCount())
	require.Equal(t, 1563, cfg.QuantTables[1].ContextCount())
	require.Equal(t, uint8(1), cfg.Intra)
	require.Equal(t, 3, cfg.PlaneCount())

	states := cfg.InitialStates(0)
	require.Len(t, states, 63)
	require.Equal(t, uint8(129), states[0][0])
	require.Equal(t, uint8(129), states[62][31])

	states = cfg.InitialStates(1)
	require.Len(t, states, 1563)
	require.Equal(t, uint8(128), states[1000][5])
}

// stateSpy records which state each read of a script uses.
type stateSpy struct {
	*scriptReader
	header *uint8
	signed []*uint8
}

func (s *stateSpy) BR(state []uint8) bool {
	s.header = &state[0]
	return s.scriptReader.BR(state)
}

func (s *stateSpy) SR(state []uint8) int32 {
	s.signed = append(s.signed, &state[0])
	return s.scriptReader.SR(state)
}

func TestReadConfigInitialStateContexts(t *testing.T) {
	r := &stateSpy{scriptReader: script(recordScript()...)}
	_, err := ReadConfig(r)
	require.NoError(t, err)
	require.True(t, r.done())

	// Only the initial state deltas are signed in this record.
	require.Len(t, r.signed, 63*contextSize)
	for n, p := range r.signed {
		require.NotSame(t, r.header, p, "delta %d", n)
		require.Same(t, r.signed[n%contextSize], p, "delta %d", n)
	}
	seen := make(map[*uint8]bool)
	for _, p := range r.signed[:contextSize] {
		seen[p] = true
	}
	require.Len(t, seen, contextSize)
}

func TestReadConfigDefaultsBits(t *testing.T) {
	vals := recordScript()
	vals[4] = 0
	cfg, err := ReadConfig(script(vals...))
	require.NoError(t, err)
	require.Equal(t, uint8(8), cfg.BitsPerRawSample)
}

func TestReadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		pos  int
		val  int64
	}{
		{"version too old", 0, 1},
		{"version too new", 0, 5},
		{"coder type", 2, 3},
		{"colorspace", 3, 2},
		{"bits", 4, 17},
		{"no quant tables", 11, 0},
		{"too many quant tables", 11, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vals := recordScript()
			vals[tt.pos] = tt.val
			_, err := ReadConfig(script(vals...))
			require.Error(t, err)
			require.Equal(t, ErrInvalidConfig, errors.Cause(err))
		})
	}
}

func TestReadConfigBadQuantTable(t *testing.T) {
	vals := recordScript()
	vals[12] = 200 // first run longer than the table
	_, err := ReadConfig(script(vals...))
	require.Error(t, err)
	require.Equal(t, ErrInvalidConfig, errors.Cause(err))
}

func TestValidate(t *testing.T) {
	require.NoError(t, testConfig(4, 3, 4, 2).Validate())

	cfg := testConfig(4, 3, 4, 2)
	cfg.Colorspace = RGB
	require.Error(t, cfg.Validate(), "RGB cannot be subsampled")

	cfg.Log2HChromaSubsample = 0
	cfg.Log2VChromaSubsample = 0
	require.NoError(t, cfg.Validate())

	cfg.ChromaPlanes = false
	require.Error(t, cfg.Validate(), "RGB must contain chroma planes")

	cfg = testConfig(4, 3, 0, 2)
	require.Equal(t, ErrInvalidConfig, errors.Cause(cfg.Validate()))

	cfg = testConfig(4, 3, 4, 2)
	cfg.QuantTables = nil
	require.Error(t, cfg.Validate())

	q, _, err := readQuantTables(script(firstOrderTableScript()...))
	require.NoError(t, err)
	q[4][1] = 1
	q[4][255] = -1
	cfg = testConfig(4, 3, 4, 2)
	cfg.QuantTables[1] = NewQuantTable(q)
	require.Equal(t, ErrInvalidConfig, errors.Cause(cfg.Validate()))
}

func TestPlaneCount(t *testing.T) {
	cfg := testConfig(4, 3, 1, 1)
	require.Equal(t, 2, cfg.PlaneCount())

	cfg.ExtraPlane = true
	require.Equal(t, 3, cfg.PlaneCount())

	cfg.ChromaPlanes = false
	require.Equal(t, 2, cfg.PlaneCount())

	cfg.Version = 3
	require.Equal(t, 3, cfg.PlaneCount())
}

func TestStateTransition(t *testing.T) {
	cfg := testConfig(3, 4, 1, 1)
	require.Equal(t, rangecoder.DefaultStateTransition, cfg.StateTransition())

	cfg.CoderType = CoderRangeCustom
	cfg.StateTransitionDelta[10] = 3
	cfg.StateTransitionDelta[200] = -2
	table := cfg.StateTransition()
	require.Equal(t, rangecoder.DefaultStateTransition[10]+3, table[10])
	require.Equal(t, rangecoder.DefaultStateTransition[200]-2, table[200])
	require.Equal(t, rangecoder.DefaultStateTransition[11], table[11])
}

func TestParseConfigRecordShortBuffer(t *testing.T) {
	_, err := ParseConfigRecord([]byte{3})
	require.Error(t, err)
}

func TestRecordCRC(t *testing.T) {
	require.Equal(t, uint32(0x89A1897F), recordCRC([]byte("123456789")))

	record := []byte{0x12, 0x34, 0x56, 0x78, 0x9A}
	crc := recordCRC(record)
	record = append(record, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
	require.NoError(t, checkRecordCRC(record))

	record[2] ^= 0x01
	require.Equal(t, ErrInvalidConfig, errors.Cause(checkRecordCRC(record)))
	require.Equal(t, ErrInvalidConfig, errors.Cause(checkRecordCRC(record[:3])))
}
