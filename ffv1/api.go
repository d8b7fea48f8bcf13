package ffv1

import (
	"image"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/dwbuiten/ffv1ctx/ffv1/rangecoder"
)

// Stream binds a validated configuration to a frame size.
type Stream struct {
	width    int
	height   int
	cfg      *Config
	geometry Geometry
}

// Frame is a set of planes: luma, two chroma planes if the stream has
// them, then the extra plane. Planes are tightly packed, with the sizes
// PlaneSize gives.
type Frame struct {
	Buf    [][]uint16
	Width  int
	Height int
}

// Residual is one coded sample: the coder state it is coded with and the
// prediction error, already sign folded and wrapped to the sample depth.
type Residual struct {
	Context uint32
	Diff    int32
}

// NewStream checks cfg against the frame size and picks the slice
// geometry.
func NewStream(cfg *Config, width int, height int) (*Stream, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid dimensions: %dx%d", width, height)
	}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if cfg.NumHSlices > width || cfg.NumVSlices > height {
		return nil, errors.Wrapf(ErrInvalidConfig, "%dx%d slices do not fit %dx%d", cfg.NumHSlices, cfg.NumVSlices, width, height)
	}

	ret := &Stream{
		width:    width,
		height:   height,
		cfg:      cfg,
		geometry: GeometryFor(cfg.Version, cfg.MicroVersion),
	}

	slog.Debug("ffv1: stream set up",
		slog.Int("width", width),
		slog.Int("height", height),
		slog.String("geometry", ret.geometry.String()))

	return ret, nil
}

// NewStreamFromRecord reads a range coded configuration record and sets
// up a stream with it.
func NewStreamFromRecord(record []byte, width int, height int) (*Stream, error) {
	cfg, err := ParseConfigRecord(record)
	if err != nil {
		return nil, errors.Wrap(err, "invalid configuration record")
	}
	return NewStream(cfg, width, height)
}

// Config returns the stream's configuration.
func (s *Stream) Config() *Config {
	return s.cfg
}

// Geometry returns the slice geometry the stream uses.
func (s *Stream) Geometry() Geometry {
	return s.geometry
}

// NumPlanes is the number of buffers in a frame of this stream.
func (s *Stream) NumPlanes() int {
	ret := 1
	if s.cfg.ChromaPlanes {
		ret += 2
	}
	if s.cfg.ExtraPlane {
		ret++
	}
	return ret
}

func (s *Stream) isChroma(p int) bool {
	return s.cfg.ChromaPlanes && (p == 1 || p == 2)
}

// PlaneSize returns the size of plane p.
func (s *Stream) PlaneSize(p int) (int, int) {
	if !s.isChroma(p) {
		return s.width, s.height
	}
	return ceilShift(s.width, s.cfg.Log2HChromaSubsample), ceilShift(s.height, s.cfg.Log2VChromaSubsample)
}

func ceilShift(v int, shift uint8) int {
	return (v + (1 << shift) - 1) >> shift
}

// quantIndexFor maps a frame plane to its entry in the slice header's
// quant table index list.
func (s *Stream) quantIndexFor(p int) int {
	switch {
	case p == 0:
		return 0
	case s.isChroma(p):
		return 1
	case s.cfg.Version >= 4 && !s.cfg.ChromaPlanes:
		return 1
	}
	return 2
}

// planeRect is the part of plane p a slice covers.
func (s *Stream) planeRect(sc *SliceContext, p int) image.Rectangle {
	if !s.isChroma(p) {
		return sc.Rect()
	}
	hs := s.cfg.Log2HChromaSubsample
	vs := s.cfg.Log2VChromaSubsample
	x := sc.Pos.X >> hs
	y := sc.Pos.Y >> vs
	return image.Rect(x, y, x+ceilShift(sc.Dim.X, hs), y+ceilShift(sc.Dim.Y, vs))
}

// Slices lays out one slice per cell of the slice grid, in raster order,
// all using the given quant table sets.
func (s *Stream) Slices(quantTableIndex []uint8) ([]SliceContext, error) {
	if len(quantTableIndex) != s.cfg.PlaneCount() {
		return nil, errors.Errorf("need %d quant table indices, got %d", s.cfg.PlaneCount(), len(quantTableIndex))
	}
	for i, idx := range quantTableIndex {
		if int(idx) >= len(s.cfg.QuantTables) {
			return nil, errors.Errorf("quant table index %d for plane %d", idx, i)
		}
	}

	ret := make([]SliceContext, 0, s.cfg.NumHSlices*s.cfg.NumVSlices)
	for y := 0; y < s.cfg.NumVSlices; y++ {
		for x := 0; x < s.cfg.NumHSlices; x++ {
			index := make([]uint8, len(quantTableIndex))
			copy(index, quantTableIndex)
			sc := s.layout(sliceHeader{slice_x: uint32(x), slice_y: uint32(y)}, index)
			ret = append(ret, *sc)
		}
	}
	return ret, nil
}

// NewSliceCoder starts a range coder on the bytes of a slice, with the
// stream's state transition table. The first slice of a frame starts with
// the keyframe bit, which is returned.
func (s *Stream) NewSliceCoder(buf []byte, first bool) (*rangecoder.Coder, bool, error) {
	c, err := rangecoder.NewCoder(buf)
	if err != nil {
		return nil, false, errors.Wrap(err, "could not start slice coder")
	}

	var keyframe bool
	if first {
		keyframe = c.BR(newState())
	}

	if s.cfg.CoderType == CoderRangeCustom {
		c.SetTable(s.cfg.StateTransition())
	}

	return c, keyframe, nil
}

func (s *Stream) checkFrame(frame *Frame) error {
	if frame.Width != s.width || frame.Height != s.height {
		return errors.Errorf("frame is %dx%d, stream is %dx%d", frame.Width, frame.Height, s.width, s.height)
	}
	if len(frame.Buf) != s.NumPlanes() {
		return errors.Errorf("frame has %d planes, stream has %d", len(frame.Buf), s.NumPlanes())
	}
	for p := range frame.Buf {
		w, h := s.PlaneSize(p)
		if len(frame.Buf[p]) < w*h {
			return errors.Errorf("plane %d holds %d samples, need %d", p, len(frame.Buf[p]), w*h)
		}
	}
	return nil
}

func (s *Stream) checkSlice(sc *SliceContext) error {
	if len(sc.QuantTableIndex) != s.cfg.PlaneCount() {
		return errors.Errorf("slice has %d quant table indices, need %d", len(sc.QuantTableIndex), s.cfg.PlaneCount())
	}
	for _, idx := range sc.QuantTableIndex {
		if int(idx) >= len(s.cfg.QuantTables) {
			return errors.Errorf("quant table index %d out of range", idx)
		}
	}
	if !sc.Rect().In(image.Rect(0, 0, s.width, s.height)) {
		return errors.Errorf("slice %v outside the frame", sc.Rect())
	}
	return nil
}

// concurrent reports whether slices can be processed in parallel. Legacy
// geometry does not keep chroma boundaries aligned, so neighbouring
// slices may share chroma samples.
func (s *Stream) concurrent() bool {
	if s.geometry == AlignedGeometry || !s.cfg.ChromaPlanes {
		return true
	}
	return s.cfg.Log2HChromaSubsample == 0 && s.cfg.Log2VChromaSubsample == 0
}

// forEachSlice runs fn for every slice, one goroutine per slice where
// possible.
func (s *Stream) forEachSlice(slices []SliceContext, fn func(n int) error) error {
	errs := make([]error, len(slices))

	if s.concurrent() {
		wg := new(sync.WaitGroup)
		for i := 0; i < len(slices); i++ {
			wg.Add(1)
			go func(wg *sync.WaitGroup, errs []error, n int) {
				errs[n] = fn(n)
				wg.Done()
			}(wg, errs, i)
		}
		wg.Wait()
	} else {
		for i := range slices {
			errs[i] = fn(i)
		}
	}

	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "slice %d failed", i)
		}
	}
	return nil
}

// Residuals predicts every sample of every slice and returns, per slice
// and plane, the residuals in raster order within the slice.
func (s *Stream) Residuals(frame *Frame, slices []SliceContext) ([][][]Residual, error) {
	err := s.checkFrame(frame)
	if err != nil {
		return nil, err
	}

	ret := make([][][]Residual, len(slices))
	err = s.forEachSlice(slices, func(n int) error {
		sc := &slices[n]
		if err := s.checkSlice(sc); err != nil {
			return err
		}
		ret[n] = make([][]Residual, len(frame.Buf))
		for p := range frame.Buf {
			ret[n][p] = s.analyzePlane(frame, sc, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ret, nil
}

// Reconstruct inverts Residuals, writing the samples of every slice into
// frame.
func (s *Stream) Reconstruct(frame *Frame, slices []SliceContext, residuals [][][]Residual) error {
	err := s.checkFrame(frame)
	if err != nil {
		return err
	}
	if len(residuals) != len(slices) {
		return errors.Errorf("%d residual sets for %d slices", len(residuals), len(slices))
	}

	return s.forEachSlice(slices, func(n int) error {
		sc := &slices[n]
		if err := s.checkSlice(sc); err != nil {
			return err
		}
		if len(residuals[n]) != len(frame.Buf) {
			return errors.Errorf("residuals for %d planes, frame has %d", len(residuals[n]), len(frame.Buf))
		}
		for p := range frame.Buf {
			rect := s.planeRect(sc, p)
			if len(residuals[n][p]) != rect.Dx()*rect.Dy() {
				return errors.Errorf("plane %d has %d residuals, slice covers %d samples", p, len(residuals[n][p]), rect.Dx()*rect.Dy())
			}
			s.reconstructPlane(frame, sc, p, residuals[n][p])
		}
		return nil
	})
}

func (s *Stream) analyzePlane(frame *Frame, sc *SliceContext, p int) []Residual {
	rect := s.planeRect(sc, p)
	stride, _ := s.PlaneSize(p)
	width := rect.Dx()
	height := rect.Dy()
	bits := uint(s.cfg.BitsPerRawSample)
	table := s.cfg.QuantTables[sc.QuantTableIndex[s.quantIndexFor(p)]]

	buf := frame.Buf[p][rect.Min.Y*stride+rect.Min.X:]
	ret := make([]Residual, 0, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sample := int(buf[y*stride+x])
			if sc.PCM {
				ret = append(ret, Residual{Diff: int32(sample)})
				continue
			}

			n := deriveNeighborhood(buf, x, y, width, stride)
			context, negate := FoldContext(table.Context(n))

			diff := int32(sample - n.Predict())
			if negate {
				diff = -diff
			}

			ret = append(ret, Residual{Context: context, Diff: foldDiff(diff, bits)})
		}
	}

	return ret
}

func (s *Stream) reconstructPlane(frame *Frame, sc *SliceContext, p int, residuals []Residual) {
	rect := s.planeRect(sc, p)
	stride, _ := s.PlaneSize(p)
	width := rect.Dx()
	height := rect.Dy()
	mask := int32(1)<<s.cfg.BitsPerRawSample - 1
	table := s.cfg.QuantTables[sc.QuantTableIndex[s.quantIndexFor(p)]]

	buf := frame.Buf[p][rect.Min.Y*stride+rect.Min.X:]

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			diff := residuals[y*width+x].Diff
			if sc.PCM {
				buf[y*stride+x] = uint16(diff & mask)
				continue
			}

			n := deriveNeighborhood(buf, x, y, width, stride)
			if _, negate := FoldContext(table.Context(n)); negate {
				diff = -diff
			}

			val := diff + int32(n.Predict())
			buf[y*stride+x] = uint16(val & mask) // Section 3.8
		}
	}
}

// foldDiff wraps a difference into the signed range of bits.
func foldDiff(diff int32, bits uint) int32 {
	return int32(uint32(diff)<<(32-bits)) >> (32 - bits)
}
