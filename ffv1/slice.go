package ffv1

import (
	"image"

	"github.com/pkg/errors"

	"github.com/dwbuiten/ffv1ctx/ffv1/rangecoder"
)

// ErrInvalidSliceHeader is the cause of every slice header rejection.
var ErrInvalidSliceHeader = errors.New("invalid slice header")

// SymbolReader is a range coder read cursor.
type SymbolReader interface {
	UR(state []uint8) uint32
	SR(state []uint8) int32
	BR(state []uint8) bool
}

// Cursor is an entropy coder position over the bytes of one slice. Decode
// passes hand in a SymbolReader; encoders hand in their writer.
type Cursor interface {
	Pos() int
}

// CodingMode is the entropy coder a slice is coded with.
type CodingMode int

const (
	RangeCoder CodingMode = iota
	Golomb
)

func (m CodingMode) String() string {
	if m == Golomb {
		return "golomb"
	}
	return "range"
}

// SliceContext is everything known about one slice once its header is
// read. Only the cursor changes after setup.
type SliceContext struct {
	header sliceHeader

	// Pixel position and size in the luma plane.
	Pos image.Point
	Dim image.Point

	// Per coded plane: the quant table set and its context count.
	QuantTableIndex []uint8
	ContextCount    []int

	// Reversible color transform coefficients, by then ry. Not
	// interpreted here. Both are 1 unless the header codes them.
	RCTCoef [2]int

	CodingMode CodingMode

	// The coder states are reset at the start of this slice, on top of
	// the reset every keyframe does.
	ResetContexts bool

	// PCM slices store samples as is, with no prediction.
	PCM bool

	cursor Cursor
}

type sliceHeader struct {
	slice_x             uint32
	slice_y             uint32
	slice_width_minus1  uint32
	slice_height_minus1 uint32
	picture_structure   uint8
	sar_num             uint32
	sar_den             uint32
	slice_coding_mode   uint32
}

// Rect is the slice's luma rectangle.
func (s *SliceContext) Rect() image.Rectangle {
	return image.Rectangle{Min: s.Pos, Max: s.Pos.Add(s.Dim)}
}

// SAR returns the sample aspect ratio the header carries.
func (s *SliceContext) SAR() (uint32, uint32) {
	return s.header.sar_num, s.header.sar_den
}

// Begin hands c to the slice for one coding pass.
func (s *SliceContext) Begin(c Cursor) error {
	if c == nil {
		return errors.New("nil cursor")
	}
	if s.cursor != nil {
		return errors.New("slice already has a cursor")
	}
	s.cursor = c
	return nil
}

// End finishes the pass and gives the cursor back.
func (s *SliceContext) End() Cursor {
	c := s.cursor
	s.cursor = nil
	return c
}

// Cursor returns the cursor of the current pass, if any.
func (s *SliceContext) Cursor() Cursor {
	return s.cursor
}

// Reader returns the cursor of the current pass as a SymbolReader.
func (s *SliceContext) Reader() (SymbolReader, bool) {
	r, ok := s.cursor.(SymbolReader)
	return r, ok
}

func newState() []uint8 {
	return rangecoder.NewState()
}

// ReadSliceHeader reads a slice header and lays the slice out on the
// stream's slice grid.
//
// See: 4.5. Slice Header
func (s *Stream) ReadSliceHeader(r SymbolReader) (*SliceContext, error) {
	var h sliceHeader

	slice_state := newState()

	h.slice_x = r.UR(slice_state)
	h.slice_y = r.UR(slice_state)
	h.slice_width_minus1 = r.UR(slice_state)
	h.slice_height_minus1 = r.UR(slice_state)

	if uint64(h.slice_x)+uint64(h.slice_width_minus1)+1 > uint64(s.cfg.NumHSlices) {
		return nil, errors.Wrapf(ErrInvalidSliceHeader, "slice columns %d+%d outside %d", h.slice_x, h.slice_width_minus1+1, s.cfg.NumHSlices)
	}
	if uint64(h.slice_y)+uint64(h.slice_height_minus1)+1 > uint64(s.cfg.NumVSlices) {
		return nil, errors.Wrapf(ErrInvalidSliceHeader, "slice rows %d+%d outside %d", h.slice_y, h.slice_height_minus1+1, s.cfg.NumVSlices)
	}

	index := make([]uint8, s.cfg.PlaneCount())
	for i := range index {
		idx := r.UR(slice_state)
		if idx >= uint32(len(s.cfg.QuantTables)) {
			return nil, errors.Wrapf(ErrInvalidSliceHeader, "quant table index %d for plane %d", idx, i)
		}
		index[i] = uint8(idx)
	}

	h.picture_structure = uint8(r.UR(slice_state))
	h.sar_num = r.UR(slice_state)
	h.sar_den = r.UR(slice_state)

	ret := s.layout(h, index)

	if s.cfg.Version > 3 {
		ret.ResetContexts = r.BR(slice_state)
		h.slice_coding_mode = r.UR(slice_state)
		ret.PCM = h.slice_coding_mode == 1
		if !ret.PCM && s.cfg.Colorspace == RGB {
			by := r.UR(slice_state)
			ry := r.UR(slice_state)
			if uint64(by)+uint64(ry) > maxRCTCoefSum {
				return nil, errors.Wrapf(ErrInvalidSliceHeader, "rct coefficients %d+%d", by, ry)
			}
			ret.RCTCoef = [2]int{int(by), int(ry)}
		}
	}
	ret.header = h

	if c, ok := r.(interface{ Err() error }); ok && c.Err() != nil {
		return nil, errors.Wrap(c.Err(), "could not read slice header")
	}

	return ret, nil
}

// layout computes the pixel geometry of a slice covering grid cells
// starting at (slice_x, slice_y).
func (s *Stream) layout(h sliceHeader, index []uint8) *SliceContext {
	ret := &SliceContext{
		header:          h,
		QuantTableIndex: index,
		RCTCoef:         [2]int{1, 1},
	}

	numH := s.cfg.NumHSlices
	numV := s.cfg.NumVSlices
	hshift := uint(s.cfg.Log2HChromaSubsample)
	vshift := uint(s.cfg.Log2VChromaSubsample)

	sx := int(h.slice_x)
	sy := int(h.slice_y)
	ex := sx + int(h.slice_width_minus1) + 1
	ey := sy + int(h.slice_height_minus1) + 1

	ret.Pos.X = s.geometry.SliceCoord(s.width, sx, numH, hshift)
	ret.Pos.Y = s.geometry.SliceCoord(s.height, sy, numV, vshift)
	ret.Dim.X = s.geometry.SliceCoord(s.width, ex, numH, hshift) - ret.Pos.X
	ret.Dim.Y = s.geometry.SliceCoord(s.height, ey, numV, vshift) - ret.Pos.Y

	ret.ContextCount = make([]int, len(index))
	for i, idx := range index {
		ret.ContextCount[i] = s.cfg.QuantTables[idx].ContextCount()
	}

	if s.cfg.CoderType == CoderGolomb {
		ret.CodingMode = Golomb
	}

	return ret
}
