package slicer

import "fmt"

// Extent describes the inclusive integer bounds of a 3d voxel array as
// [iLo, iHi, jLo, jHi, kLo, kHi].  An extent where any axis has hi < lo
// holds no voxels.
type Extent [6]int32

// Dx returns the number of voxels along the first (innermost) axis.
func (e Extent) Dx() int32 { return e[1] - e[0] + 1 }

// Dy returns the number of voxels along the second axis.
func (e Extent) Dy() int32 { return e[3] - e[2] + 1 }

// Dz returns the number of voxels along the third (outermost) axis.
func (e Extent) Dz() int32 { return e[5] - e[4] + 1 }

// IsEmpty returns true if the extent holds no voxels.
func (e Extent) IsEmpty() bool {
	return e[1] < e[0] || e[3] < e[2] || e[5] < e[4]
}

// NumVoxels returns the number of voxels within this extent.
func (e Extent) NumVoxels() int64 {
	if e.IsEmpty() {
		return 0
	}
	return int64(e.Dx()) * int64(e.Dy()) * int64(e.Dz())
}

// Clamp returns this extent with each of the six bounds independently
// min/maxed against the corresponding bound of limits.  The result may be
// empty; callers must check IsEmpty before indexing.
func (e Extent) Clamp(limits Extent) Extent {
	return Extent{
		max32(e[0], limits[0]),
		min32(e[1], limits[1]),
		max32(e[2], limits[2]),
		min32(e[3], limits[3]),
		max32(e[4], limits[4]),
		min32(e[5], limits[5]),
	}
}

// Contains returns true if voxel coordinate (i,j,k) lies within the extent.
func (e Extent) Contains(i, j, k int32) bool {
	return i >= e[0] && i <= e[1] && j >= e[2] && j <= e[3] && k >= e[4] && k <= e[5]
}

// Equals checks if two extents have identical bounds.
func (e Extent) Equals(e2 Extent) bool {
	return e == e2
}

func (e Extent) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d,%d,%d]", e[0], e[1], e[2], e[3], e[4], e[5])
}

// AxisRange is a zero-based half-open [Beg, End) index range along one axis
// of a local array.
type AxisRange struct {
	Beg, End int32
}

// Len returns the length of the range, which may be non-positive for a
// degenerate range.
func (r AxisRange) Len() int32 { return r.End - r.Beg }

// LocalRanges converts a sub extent into zero-based index ranges local to an
// array allocated over this extent.  Ranges are returned in coordinate axis
// order (i, j, k); note that the outermost array axis corresponds to the
// last coordinate axis.
func (e Extent) LocalRanges(sub Extent) [3]AxisRange {
	return [3]AxisRange{
		{sub[0] - e[0], sub[0] - e[0] + (sub[1] - sub[0] + 1)},
		{sub[2] - e[2], sub[2] - e[2] + (sub[3] - sub[2] + 1)},
		{sub[4] - e[4], sub[4] - e[4] + (sub[5] - sub[4] + 1)},
	}
}

// RangesEmpty returns true if any of the given axis ranges has non-positive
// length.  An empty range is a valid, common case and never an error.
func RangesEmpty(ranges [3]AxisRange) bool {
	return ranges[0].Len() <= 0 || ranges[1].Len() <= 0 || ranges[2].Len() <= 0
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}
