package ffv1

// Geometry places slice boundaries along one dimension of a plane. A
// stream picks its Geometry once, from its version, and uses it for every
// slice in both directions.
type Geometry int

const (
	// LegacyGeometry splits the plane evenly with no regard for chroma
	// subsampling. Only streams up to version 4.2 use it.
	LegacyGeometry Geometry = iota
	// AlignedGeometry keeps every interior boundary on a multiple of the
	// chroma subsampling factor.
	AlignedGeometry
)

// GeometryFor returns the slice geometry streams of the given version use.
func GeometryFor(version uint8, microVersion uint8) Geometry {
	if uint32(version)<<16|uint32(microVersion) <= legacyGeometryVersion {
		return LegacyGeometry
	}
	return AlignedGeometry
}

func (g Geometry) String() string {
	switch g {
	case LegacyGeometry:
		return "legacy"
	case AlignedGeometry:
		return "aligned"
	}
	return "unknown"
}

// SliceCoord returns boundary i of n along a dimension of the given
// size. Boundary 0 is 0 and boundary n is size. n must be nonzero.
func (g Geometry) SliceCoord(size int, i int, n int, chromaShift uint) int {
	if g == LegacyGeometry {
		return int(int64(size) * int64(i) / int64(n))
	}

	mpw := int64(1) << chromaShift
	asize := (int64(size) + mpw - 1) &^ (mpw - 1)

	ret := (2*asize*int64(i) + int64(n)*mpw) / (2 * int64(n) * mpw) * mpw
	if ret == asize {
		return size
	}
	return int(ret)
}

// Boundaries returns all n+1 boundaries of n slices.
func (g Geometry) Boundaries(size int, n int, chromaShift uint) []int {
	ret := make([]int, n+1)
	for i := range ret {
		ret[i] = g.SliceCoord(size, i, n, chromaShift)
	}
	return ret
}

// SliceCoord is the boundary for a stream of the given version.
func SliceCoord(version uint8, microVersion uint8, size int, i int, n int, chromaShift uint) int {
	return GeometryFor(version, microVersion).SliceCoord(size, i, n, chromaShift)
}
