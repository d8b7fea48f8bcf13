package ffv1

// Neighborhood holds the causal samples around the current one:
//
//	      TT
//	  LT  T  RT
//	LL  L  X
type Neighborhood struct {
	LL int
	L  int
	LT int
	T  int
	RT int
	TT int
}

// deriveNeighborhood reads the neighbours of (x, y) from a slice-local
// plane. Samples outside the slice are taken from the nearest known edge,
// or zero.
//
// See: 3.1. Border
func deriveNeighborhood(plane []uint16, x int, y int, width int, stride int) Neighborhood {
	var n Neighborhood

	pos := y*stride + x

	// TT
	if y > 1 {
		n.TT = int(plane[pos-2*stride])
	}

	// LL
	if y == 0 {
		if x > 1 {
			n.LL = int(plane[pos-2])
		}
	} else {
		if x == 1 {
			n.LL = int(plane[pos-stride-1])
		} else if x > 1 {
			n.LL = int(plane[pos-2])
		}
	}

	// T
	if y > 0 {
		n.T = int(plane[pos-stride])
	}

	// L
	if y == 0 {
		if x > 0 {
			n.L = int(plane[pos-1])
		}
	} else {
		if x == 0 {
			n.L = int(plane[pos-stride])
		} else {
			n.L = int(plane[pos-1])
		}
	}

	// LT
	if y > 0 {
		if x == 0 {
			if y > 1 {
				n.LT = int(plane[pos-2*stride])
			}
		} else {
			n.LT = int(plane[pos-stride-1])
		}
	}

	// RT
	if y > 0 {
		if x == width-1 {
			n.RT = int(plane[pos-stride])
		} else {
			n.RT = int(plane[pos-stride+1])
		}
	}

	return n
}

// Predict returns the median of L, T and the gradient L+T-LT.
//
// See: 3.3. Median Predictor
func Predict(L int, T int, LT int) int {
	return getMedian(L, L+T-LT, T)
}

// Predict is the median prediction for the sample this neighbourhood
// surrounds.
func (n Neighborhood) Predict() int {
	return Predict(n.L, n.T, n.LT)
}

func getMedian(a int, b int, c int) int {
	if a > b {
		if b > c {
			return b
		}

		if c > a {
			return a
		}

		return c
	}

	if c > b {
		return b
	}

	if c > a {
		return c
	}

	return a
}
