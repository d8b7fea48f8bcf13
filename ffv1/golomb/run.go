package golomb

// Code is a run length code as it goes into the bitstream: the low Len
// bits of Value, most significant first.
type Code struct {
	Len   uint8
	Value uint32
}

// BitSource reads up to 32 bits from a Golomb coded bitstream.
type BitSource interface {
	ReadBits(count uint32) uint32
}

// Sample is what the run decoder says about the next sample.
type Sample int

const (
	// Coded samples carry a residual that is read as is.
	Coded Sample = iota
	// RunZero samples are inside a run and have a zero residual.
	RunZero
	// RunBreak samples end a run. Their residual is read and passed
	// through Restore.
	RunBreak
)

// RunEncoder decides the run codes for one plane of a slice.
type RunEncoder struct {
	index  int
	count  int
	active bool
}

// NewPlane resets the run length class at the start of a plane.
func (e *RunEncoder) NewPlane() {
	e.index = 0
	e.NewLine()
}

// NewLine drops any run state at the start of a line. Call EndLine first.
func (e *RunEncoder) NewLine() {
	e.count = 0
	e.active = false
}

// Index returns the current run length class.
func (e *RunEncoder) Index() int {
	return e.index
}

// flush emits a set bit for every full run of the current class.
func (e *RunEncoder) flush(codes []Code) []Code {
	for e.count >= 1<<RunBits(e.index) {
		e.count -= 1 << RunBits(e.index)
		e.index++
		codes = append(codes, Code{Len: 1, Value: 1})
	}
	return codes
}

// Encode handles one residual with its context. It appends any run codes
// to codes, and reports whether a residual must still be written, along
// with the residual to write.
func (e *RunEncoder) Encode(context int32, diff int32, codes []Code) ([]Code, int32, bool) {
	// Section 3.8.2.2. Run Mode
	if context == 0 {
		e.active = true
	}

	if !e.active {
		return codes, diff, true
	}

	if diff == 0 {
		e.count++
		return codes, 0, false
	}

	codes = e.flush(codes)
	codes = append(codes, Code{Len: 1 + RunBits(e.index), Value: uint32(e.count)})
	if e.index != 0 {
		e.index--
	}
	e.count = 0
	e.active = false

	// A break is never zero, so positive values lose one.
	if diff > 0 {
		diff--
	}

	return codes, diff, true
}

// EndLine appends the codes for a run still open at the end of a line.
func (e *RunEncoder) EndLine(codes []Code) []Code {
	if !e.active {
		return codes
	}
	codes = e.flush(codes)
	if e.count != 0 {
		codes = append(codes, Code{Len: 1, Value: 1})
	}
	e.NewLine()
	return codes
}

// RunDecoder mirrors RunEncoder for one plane of a slice.
type RunDecoder struct {
	width int
	index int
	count int
	mode  int
}

// NewPlane resets the decoder for a plane of the given width.
func (d *RunDecoder) NewPlane(width int) {
	d.width = width
	d.index = 0
	d.NewLine()
}

// NewLine drops any run state at the start of a line.
func (d *RunDecoder) NewLine() {
	d.mode = 0
	d.count = 0
}

// Index returns the current run length class.
func (d *RunDecoder) Index() int {
	return d.index
}

// Next classifies the sample at x given its context, reading run codes
// from src as needed.
func (d *RunDecoder) Next(src BitSource, context int32, x int) Sample {
	// Section 3.8.2.2. Run Mode
	if context == 0 && d.mode == 0 {
		d.mode = 1
	}

	if d.mode == 0 {
		return Coded
	}

	// Section 3.8.2.2.1. Run Length Coding
	if d.count == 0 && d.mode == 1 {
		bits := RunBits(d.index)
		if src.ReadBits(1) == 1 {
			d.count = 1 << bits
			if x+d.count <= d.width {
				d.index++
			}
		} else {
			if bits != 0 {
				d.count = int(src.ReadBits(uint32(bits)))
			} else {
				d.count = 0
			}
			if d.index != 0 {
				d.index--
			}
			d.mode = 2
		}
	}

	d.count--
	if d.count < 0 {
		d.NewLine()
		return RunBreak
	}
	return RunZero
}

// Restore undoes the adjustment RunEncoder applies to a run break residual.
func Restore(diff int32) int32 {
	if diff >= 0 {
		diff++
	}
	return diff
}
