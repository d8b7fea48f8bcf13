package ffv1

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/dwbuiten/ffv1ctx/ffv1/rangecoder"
)

// ErrInvalidConfig is the cause of every configuration rejection.
var ErrInvalidConfig = errors.New("invalid configuration record")

// Config holds the stream parameters this package works from. It is
// normally read from a configuration record with ReadConfig, but can be
// filled in directly; either way, Validate it before use.
//
// See: 4.2. Configuration Record
type Config struct {
	Version              uint8
	MicroVersion         uint8
	CoderType            uint8
	StateTransitionDelta [256]int16
	Colorspace           uint8
	BitsPerRawSample     uint8
	ChromaPlanes         bool
	Log2HChromaSubsample uint8
	Log2VChromaSubsample uint8
	ExtraPlane           bool
	NumHSlices           int
	NumVSlices           int
	QuantTables          []*QuantTable

	// Per quant table set, per context: initial state deltas, or nil
	// when the record carries none for that set.
	InitialStateDelta [][][]int16

	EC    uint8
	Intra uint8
}

// ReadConfig reads a configuration record. The result is validated.
func ReadConfig(r SymbolReader) (*Config, error) {
	cfg := new(Config)

	state := newState()

	cfg.Version = uint8(r.UR(state))
	if cfg.Version < 2 || cfg.Version > 4 {
		return nil, errors.Wrapf(ErrInvalidConfig, "unsupported version %d", cfg.Version)
	}

	if cfg.Version > 2 {
		cfg.MicroVersion = uint8(r.UR(state))
	}

	cfg.CoderType = uint8(r.UR(state))
	if cfg.CoderType > CoderRangeCustom {
		return nil, errors.Wrapf(ErrInvalidConfig, "invalid coder_type: %d", cfg.CoderType)
	}

	if cfg.CoderType == CoderRangeCustom {
		for i := 1; i < 256; i++ {
			cfg.StateTransitionDelta[i] = int16(r.SR(state))
		}
	}

	cfg.Colorspace = uint8(r.UR(state))
	cfg.BitsPerRawSample = uint8(r.UR(state))
	if cfg.BitsPerRawSample == 0 {
		cfg.BitsPerRawSample = 8
	}
	cfg.ChromaPlanes = r.BR(state)
	cfg.Log2HChromaSubsample = uint8(r.UR(state))
	cfg.Log2VChromaSubsample = uint8(r.UR(state))
	cfg.ExtraPlane = r.BR(state)
	cfg.NumHSlices = int(r.UR(state)) + 1
	cfg.NumVSlices = int(r.UR(state)) + 1

	quant_table_set_count := int(r.UR(state))
	if quant_table_set_count == 0 {
		return nil, errors.Wrap(ErrInvalidConfig, "quant_table_set_count may not be zero")
	} else if quant_table_set_count > maxQuantTables {
		return nil, errors.Wrapf(ErrInvalidConfig, "too many quant tables: %d > %d", quant_table_set_count, maxQuantTables)
	}

	cfg.QuantTables = make([]*QuantTable, quant_table_set_count)
	for i := range cfg.QuantTables {
		q, count, err := readQuantTables(r)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "quant table set %d: %s", i, err)
		}
		cfg.QuantTables[i] = NewQuantTable(q)
		if cfg.QuantTables[i].ContextCount() != count {
			return nil, errors.Wrapf(ErrInvalidConfig, "quant table set %d has %d contexts, expected %d", i, cfg.QuantTables[i].ContextCount(), count)
		}
	}

	// Deltas are coded with k as the context, across every set and context.
	delta_states := make([][]uint8, contextSize)
	for k := range delta_states {
		delta_states[k] = newState()
	}

	cfg.InitialStateDelta = make([][][]int16, quant_table_set_count)
	for i := range cfg.InitialStateDelta {
		if !r.BR(state) {
			continue
		}
		count := cfg.QuantTables[i].ContextCount()
		cfg.InitialStateDelta[i] = make([][]int16, count)
		for j := 0; j < count; j++ {
			cfg.InitialStateDelta[i][j] = make([]int16, contextSize)
			for k := 0; k < contextSize; k++ {
				cfg.InitialStateDelta[i][j][k] = int16(r.SR(delta_states[k]))
			}
		}
	}

	if cfg.Version > 2 {
		cfg.EC = uint8(r.UR(state))
		if cfg.MicroVersion > 2 {
			cfg.Intra = uint8(r.UR(state))
		}
	}

	if c, ok := r.(interface{ Err() error }); ok && c.Err() != nil {
		return nil, errors.Wrap(c.Err(), "could not read configuration record")
	}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	slog.Debug("ffv1: configuration record parsed",
		slog.Int("version", int(cfg.Version)),
		slog.Int("micro_version", int(cfg.MicroVersion)),
		slog.Int("coder_type", int(cfg.CoderType)),
		slog.Int("colorspace", int(cfg.Colorspace)),
		slog.Int("bits", int(cfg.BitsPerRawSample)),
		slog.Int("h_slices", cfg.NumHSlices),
		slog.Int("v_slices", cfg.NumVSlices),
		slog.Int("quant_tables", len(cfg.QuantTables)))

	return cfg, nil
}

// ParseConfigRecord reads a range coded configuration record. Records of
// version 3 and up must end in a valid CRC.
func ParseConfigRecord(record []byte) (*Config, error) {
	c, err := rangecoder.NewCoder(record)
	if err != nil {
		return nil, errors.Wrap(err, "could not read configuration record")
	}
	cfg, err := ReadConfig(c)
	if err != nil {
		return nil, err
	}
	if cfg.Version > 2 {
		if err := checkRecordCRC(record); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// crcTable is CRC-32 with polynomial 0x04C11DB7, most significant bit
// first, as FFmpeg's AV_CRC_32_IEEE.
var crcTable = func() (t [256]uint32) {
	for i := range t {
		c := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if c&0x80000000 != 0 {
				c = c<<1 ^ 0x04C11DB7
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return
}()

// recordCRC has no initial or final inversion, so a buffer followed by
// its own big endian CRC sums to zero.
func recordCRC(buf []byte) uint32 {
	var crc uint32
	for _, b := range buf {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}

func checkRecordCRC(record []byte) error {
	if len(record) < 4 {
		return errors.Wrapf(ErrInvalidConfig, "record of %d bytes has no CRC", len(record))
	}
	if crc := recordCRC(record); crc != 0 {
		return errors.Wrapf(ErrInvalidConfig, "CRC mismatch: 0x%08X", crc)
	}
	return nil
}

// Validate checks everything the rest of the package relies on.
func (cfg *Config) Validate() error {
	if cfg.Version < 2 || cfg.Version > 4 {
		return errors.Wrapf(ErrInvalidConfig, "unsupported version %d", cfg.Version)
	}
	if cfg.CoderType > CoderRangeCustom {
		return errors.Wrapf(ErrInvalidConfig, "invalid coder_type: %d", cfg.CoderType)
	}
	if cfg.Colorspace > RGB {
		return errors.Wrapf(ErrInvalidConfig, "invalid colorspace_type: %d", cfg.Colorspace)
	}
	if cfg.BitsPerRawSample == 0 || cfg.BitsPerRawSample > 16 {
		return errors.Wrapf(ErrInvalidConfig, "invalid bits_per_raw_sample: %d", cfg.BitsPerRawSample)
	}
	if cfg.Colorspace == RGB && !cfg.ChromaPlanes {
		return errors.Wrap(ErrInvalidConfig, "RGB must contain chroma planes")
	}
	if cfg.Colorspace == RGB && (cfg.Log2HChromaSubsample != 0 || cfg.Log2VChromaSubsample != 0) {
		return errors.Wrap(ErrInvalidConfig, "RGB cannot be subsampled")
	}
	if cfg.Log2HChromaSubsample > 7 || cfg.Log2VChromaSubsample > 7 {
		return errors.Wrapf(ErrInvalidConfig, "invalid chroma subsampling: %d,%d", cfg.Log2HChromaSubsample, cfg.Log2VChromaSubsample)
	}
	if cfg.NumHSlices <= 0 || cfg.NumVSlices <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "invalid slice grid: %dx%d", cfg.NumHSlices, cfg.NumVSlices)
	}
	if len(cfg.QuantTables) == 0 || len(cfg.QuantTables) > maxQuantTables {
		return errors.Wrapf(ErrInvalidConfig, "invalid quant table count: %d", len(cfg.QuantTables))
	}
	for i, q := range cfg.QuantTables {
		if q == nil {
			return errors.Wrapf(ErrInvalidConfig, "quant table set %d missing", i)
		}
		if err := q.Validate(); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "quant table set %d: %s", i, err)
		}
	}
	return nil
}

// PlaneCount is the number of planes a slice header carries a quant table
// index for. Chroma planes share one.
func (cfg *Config) PlaneCount() int {
	count := 1
	if cfg.ChromaPlanes || cfg.Version < 4 {
		count++
	}
	if cfg.ExtraPlane {
		count++
	}
	return count
}

// StateTransition returns the one state table range coded slices use.
func (cfg *Config) StateTransition() [256]uint8 {
	ret := rangecoder.DefaultStateTransition
	if cfg.CoderType != CoderRangeCustom {
		return ret
	}
	for i := 1; i < 256; i++ {
		ret[i] = uint8(int16(rangecoder.DefaultStateTransition[i]) + cfg.StateTransitionDelta[i])
	}
	return ret
}

// InitialStates returns the states every context of quant table set i
// starts from after a reset.
func (cfg *Config) InitialStates(i int) [][]uint8 {
	count := cfg.QuantTables[i].ContextCount()
	ret := make([][]uint8, count)
	for j := 0; j < count; j++ {
		ret[j] = make([]uint8, contextSize)
		for k := 0; k < contextSize; k++ {
			pred := int16(128)
			if j != 0 {
				pred = int16(ret[j-1][k])
			}
			var delta int16
			if i < len(cfg.InitialStateDelta) && cfg.InitialStateDelta[i] != nil {
				delta = cfg.InitialStateDelta[i][j][k]
			}
			ret[j][k] = uint8((pred + delta) & 255)
		}
	}
	return ret
}
