package ffv1

import (
	"github.com/pkg/errors"
)

// QuantTable is one quantization table set: five arrays turning a wrapped
// sample difference into a context contribution. Install tables with
// NewQuantTable; they are read only afterwards and safe to share.
//
// See: 4.9. Quantization Table Set
type QuantTable struct {
	q            [maxContextInputs][quantTableSize]int16
	second       bool
	contextCount int
}

// NewQuantTable installs a table, working out once whether the second
// order inputs can contribute and how many contexts it yields.
func NewQuantTable(q [maxContextInputs][quantTableSize]int16) *QuantTable {
	ret := &QuantTable{q: q}

	ret.second = q[3][quantTableCenter] != 0 || q[4][quantTableCenter] != 0

	count := 1
	for j := 0; j < maxContextInputs; j++ {
		if j >= 3 && !ret.second {
			break
		}
		largest := 0
		for k := 0; k < quantTableSize; k++ {
			v := int(q[j][k])
			if v < 0 {
				v = -v
			}
			if v > largest {
				largest = v
			}
		}
		count += largest
	}
	ret.contextCount = count

	return ret
}

// ContextCount is the number of distinct context indices the table
// produces once the sign is folded away.
func (t *QuantTable) ContextCount() int {
	return t.contextCount
}

// SecondOrder reports whether the LL and TT inputs take part.
func (t *QuantTable) SecondOrder() bool {
	return t.second
}

// Validate checks that the table is odd-symmetric and that skipping the
// second order inputs is exact.
func (t *QuantTable) Validate() error {
	for j := 0; j < maxContextInputs; j++ {
		if t.q[j][0] != 0 {
			return errors.Errorf("quant table %d is nonzero for a zero difference", j)
		}
		for k := 1; k < quantTableSize/2; k++ {
			if t.q[j][quantTableSize-k] != -t.q[j][k] {
				return errors.Errorf("quant table %d is not symmetric at %d", j, k)
			}
		}
		if !t.second && j >= 3 {
			for k := 0; k < quantTableSize; k++ {
				if t.q[j][k] != 0 {
					return errors.Errorf("quant table %d is zero at its center but not at %d", j, k)
				}
			}
		}
	}
	if t.contextCount > maxContextCount {
		return errors.Errorf("too many contexts: %d > %d", t.contextCount, maxContextCount)
	}
	return nil
}

// Context returns the signed context of a neighbourhood. Its magnitude is
// below ContextCount.
//
// See: 3.5. Context
func (t *QuantTable) Context(n Neighborhood) int32 {
	if !t.second {
		return t.firstOrder(n)
	}
	return t.secondOrder(n)
}

func (t *QuantTable) firstOrder(n Neighborhood) int32 {
	return int32(t.q[0][(n.L-n.LT)&quantTableMask]) +
		int32(t.q[1][(n.LT-n.T)&quantTableMask]) +
		int32(t.q[2][(n.T-n.RT)&quantTableMask])
}

func (t *QuantTable) secondOrder(n Neighborhood) int32 {
	return t.firstOrder(n) +
		int32(t.q[3][(n.LL-n.L)&quantTableMask]) +
		int32(t.q[4][(n.TT-n.T)&quantTableMask])
}

// FoldContext turns a signed context into the index of the coder state to
// use, and whether the residual is negated to match.
func FoldContext(context int32) (uint32, bool) {
	if context < 0 {
		return uint32(-context), true
	}
	return uint32(context), false
}

// readQuantTable reads one run length coded array into q, scaled, and
// returns the number of distinct levels on both sides of zero.
func readQuantTable(r SymbolReader, q *[quantTableSize]int16, scale int) (int, error) {
	// Each array has its own state table!
	state := newState()

	v := 0
	for k := 0; k < quantTableSize/2; v++ {
		length := int(r.UR(state)) + 1
		if length > quantTableSize/2-k {
			return 0, errors.Errorf("quant table run of %d overflows at %d", length, k)
		}
		for a := 0; a < length; a++ {
			q[k] = int16(scale * v)
			k++
		}
	}

	for k := 1; k < quantTableSize/2; k++ {
		q[quantTableSize-k] = -q[k]
	}
	q[quantTableSize/2] = -q[quantTableSize/2-1]

	return 2*v - 1, nil
}

// readQuantTables reads the five arrays of one table set and returns
// them with the context count the stream implies.
func readQuantTables(r SymbolReader) ([maxContextInputs][quantTableSize]int16, int, error) {
	var q [maxContextInputs][quantTableSize]int16

	scale := 1
	for j := 0; j < maxContextInputs; j++ {
		levels, err := readQuantTable(r, &q[j], scale)
		if err != nil {
			return q, 0, errors.Wrapf(err, "could not read quant table input %d", j)
		}
		scale *= levels
		if scale > maxLevelProduct {
			return q, 0, errors.Errorf("too many contexts: %d levels > %d", scale, maxLevelProduct)
		}
	}

	return q, (scale + 1) / 2, nil
}
