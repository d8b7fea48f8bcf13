// Package golomb holds the run mode bookkeeping of the Golomb-Rice coding
// path. The bit level reading and writing of Golomb codes is done by the
// caller; this package decides which run codes go where.
package golomb

// Log2Run maps a run length class to the number of bits a run of that
// class is coded with.
//
// See: 3.8.2.2.1. Run Length Coding
var Log2Run = [41]uint8{
	0, 0, 0, 0, 1, 1, 1, 1,
	2, 2, 2, 2, 3, 3, 3, 3,
	4, 4, 5, 5, 6, 6, 7, 7,
	8, 9, 10, 11, 12, 13, 14, 15,
	16, 17, 18, 19, 20, 21, 22, 23,
	24,
}

// RunBits returns the bit width for run length class index, clamped to the
// last class.
func RunBits(index int) uint8 {
	if index >= len(Log2Run) {
		return Log2Run[len(Log2Run)-1]
	}
	return Log2Run[index]
}
