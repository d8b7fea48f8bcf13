package ffv1

// Internal constants.
const (
	maxQuantTables   = 8     // Only defined in FFmpeg?
	maxContextInputs = 5     // 4.9. Quantization Table Set
	maxLevelProduct  = 32768 // Of the five arrays' level counts.
	maxContextCount  = 16384 // (maxLevelProduct + 1) / 2
	contextSize      = 32    // 4.1. Parameters
	quantTableSize   = 256
	quantTableMask   = quantTableSize - 1
	quantTableCenter = 127 // Last positive difference before the wrap.
	maxRCTCoefSum    = 4

	// Streams at or below this combined version use the unaligned
	// slice geometry.
	legacyGeometryVersion = 0x40002
)

// API constants.

// Colorspaces.
// From 4.1.5. colorspace_type
const (
	YCbCr = 0
	RGB   = 1
)

// Coder types.
// From 4.1.3. coder_type
const (
	CoderGolomb      = 0
	CoderRange       = 1
	CoderRangeCustom = 2
)
