package ffv1

import (
	"github.com/pkg/errors"

	"github.com/dwbuiten/ffv1ctx/ffv1/golomb"
)

// GolombSymbol is one item of a Golomb coded plane, in bitstream order:
// a run code, or a residual for the adaptive VLC.
type GolombSymbol struct {
	IsRun    bool
	Run      golomb.Code
	Residual Residual
}

// GolombSymbols orders the residuals of plane p of a Golomb coded slice
// for the bit writer, folding zero runs into run codes.
func (s *Stream) GolombSymbols(sc *SliceContext, p int, residuals []Residual) ([]GolombSymbol, error) {
	if sc.CodingMode != Golomb {
		return nil, errors.Errorf("slice is %s coded", sc.CodingMode)
	}

	rect := s.planeRect(sc, p)
	width := rect.Dx()
	if len(residuals) != width*rect.Dy() {
		return nil, errors.Errorf("plane %d has %d residuals, slice covers %d samples", p, len(residuals), width*rect.Dy())
	}

	var enc golomb.RunEncoder
	var codes []golomb.Code
	ret := make([]GolombSymbol, 0, len(residuals))

	appendRuns := func() {
		for _, c := range codes {
			ret = append(ret, GolombSymbol{IsRun: true, Run: c})
		}
		codes = codes[:0]
	}

	enc.NewPlane()
	for y := 0; y < rect.Dy(); y++ {
		enc.NewLine()
		for _, r := range residuals[y*width : (y+1)*width] {
			var diff int32
			var write bool
			codes, diff, write = enc.Encode(int32(r.Context), r.Diff, codes)
			appendRuns()
			if write {
				ret = append(ret, GolombSymbol{Residual: Residual{Context: r.Context, Diff: diff}})
			}
		}
		codes = enc.EndLine(codes)
		appendRuns()
	}

	return ret, nil
}
