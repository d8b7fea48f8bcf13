package ffv1

// scriptReader replays symbols in order, whatever the state.
type scriptReader struct {
	vals []int64
	pos  int
}

func script(vals ...int64) *scriptReader {
	return &scriptReader{vals: vals}
}

func (s *scriptReader) next() int64 {
	v := s.vals[s.pos]
	s.pos++
	return v
}

func (s *scriptReader) UR(state []uint8) uint32 { return uint32(s.next()) }
func (s *scriptReader) SR(state []uint8) int32  { return int32(s.next()) }
func (s *scriptReader) BR(state []uint8) bool   { return s.next() != 0 }
func (s *scriptReader) Pos() int                { return s.pos }

func (s *scriptReader) done() bool {
	return s.pos == len(s.vals)
}

// Run lengths (minus one) for a five level array (0, 1, 2..127) and for
// an all zero array.
var (
	fiveLevels = []int64{0, 0, 125}
	zeroLevels = []int64{127}
)

// firstOrderTableScript codes a table set with 63 contexts that only
// uses L, LT, T and RT.
func firstOrderTableScript() []int64 {
	var ret []int64
	for j := 0; j < 3; j++ {
		ret = append(ret, fiveLevels...)
	}
	ret = append(ret, zeroLevels...)
	ret = append(ret, zeroLevels...)
	return ret
}

// secondOrderTableScript codes a table set with 1563 contexts using all
// five inputs.
func secondOrderTableScript() []int64 {
	var ret []int64
	for j := 0; j < 5; j++ {
		ret = append(ret, fiveLevels...)
	}
	return ret
}

func mustTable(s []int64) *QuantTable {
	q, _, err := readQuantTables(script(s...))
	if err != nil {
		panic(err)
	}
	return NewQuantTable(q)
}

// testConfig is a 4:2:0 config with the given version and slice grid,
// and both table sets.
func testConfig(version uint8, micro uint8, numH int, numV int) *Config {
	return &Config{
		Version:              version,
		MicroVersion:         micro,
		CoderType:            CoderRange,
		Colorspace:           YCbCr,
		BitsPerRawSample:     8,
		ChromaPlanes:         true,
		Log2HChromaSubsample: 1,
		Log2VChromaSubsample: 1,
		NumHSlices:           numH,
		NumVSlices:           numV,
		QuantTables: []*QuantTable{
			mustTable(firstOrderTableScript()),
			mustTable(secondOrderTableScript()),
		},
	}
}
