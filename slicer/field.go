package slicer

import (
	"encoding/binary"
	"fmt"
)

// LabelField is a dense 3d array of voxel label values over an extent.
// Value 0 means "unlabeled".  The linear layout puts the last coordinate
// axis outermost: index = ((k-kLo)*dy + (j-jLo))*dx + (i-iLo).
type LabelField struct {
	extent Extent
	data   []uint64
}

// NewLabelField allocates a zeroed label field for the given extent.
func NewLabelField(extent Extent) *LabelField {
	return &LabelField{
		extent: extent,
		data:   make([]uint64, extent.NumVoxels()),
	}
}

// Extent returns the inclusive bounds of the field.
func (f *LabelField) Extent() Extent { return f.extent }

// Data returns the underlying linear array.  Mutating it mutates the field.
func (f *LabelField) Data() []uint64 { return f.data }

func (f *LabelField) index(i, j, k int32) int64 {
	dx := int64(f.extent.Dx())
	dy := int64(f.extent.Dy())
	return (int64(k-f.extent[4])*dy+int64(j-f.extent[2]))*dx + int64(i-f.extent[0])
}

// Value returns the label at voxel coordinate (i,j,k).
func (f *LabelField) Value(i, j, k int32) uint64 {
	return f.data[f.index(i, j, k)]
}

// Set writes the label at voxel coordinate (i,j,k).
func (f *LabelField) Set(i, j, k int32, label uint64) {
	f.data[f.index(i, j, k)] = label
}

// Fill sets every voxel to the given label.
func (f *LabelField) Fill(label uint64) {
	for p := range f.data {
		f.data[p] = label
	}
}

// Clone returns a deep, independent copy of the field.
func (f *LabelField) Clone() *LabelField {
	dup := &LabelField{extent: f.extent, data: make([]uint64, len(f.data))}
	copy(dup.data, f.data)
	return dup
}

// Equal checks extent and voxel-wise equality.
func (f *LabelField) Equal(f2 *LabelField) bool {
	if !f.extent.Equals(f2.extent) {
		return false
	}
	for p, v := range f.data {
		if f2.data[p] != v {
			return false
		}
	}
	return true
}

// CopyFrom overwrites this field's values with those of src, which must
// cover the identical extent.
func (f *LabelField) CopyFrom(src *LabelField) error {
	if !f.extent.Equals(src.extent) {
		return fmt.Errorf("cannot copy label field with extent %s into extent %s", src.extent, f.extent)
	}
	copy(f.data, src.data)
	return nil
}

// Resized returns a new field over newExtent with constant 0 padding.
// Voxels in the overlap of the old and new extents keep their values.
func (f *LabelField) Resized(newExtent Extent) *LabelField {
	out := NewLabelField(newExtent)
	overlap := f.extent.Clamp(newExtent)
	if overlap.IsEmpty() {
		return out
	}
	for k := overlap[4]; k <= overlap[5]; k++ {
		for j := overlap[2]; j <= overlap[3]; j++ {
			srcBeg := f.index(overlap[0], j, k)
			dstBeg := out.index(overlap[0], j, k)
			n := int64(overlap[1] - overlap[0] + 1)
			copy(out.data[dstBeg:dstBeg+n], f.data[srcBeg:srcBeg+n])
		}
	}
	return out
}

// Resize mutates this field in place to cover newExtent, keeping values in
// the overlap and zero-padding the rest.  Holders of the field pointer see
// the new extent; this is the sanitize primitive.
func (f *LabelField) Resize(newExtent Extent) {
	resized := f.Resized(newExtent)
	f.extent = resized.extent
	f.data = resized.data
}

// SubField returns a deep copy of the voxels within sub, which must lie
// inside the field's extent.
func (f *LabelField) SubField(sub Extent) *LabelField {
	out := NewLabelField(sub)
	for k := sub[4]; k <= sub[5]; k++ {
		for j := sub[2]; j <= sub[3]; j++ {
			srcBeg := f.index(sub[0], j, k)
			dstBeg := out.index(sub[0], j, k)
			n := int64(sub[1] - sub[0] + 1)
			copy(out.data[dstBeg:dstBeg+n], f.data[srcBeg:srcBeg+n])
		}
	}
	return out
}

// EqualsMask returns a boolean field marking voxels holding the given label.
func (f *LabelField) EqualsMask(label uint64) *BoolField {
	out := NewBoolField(f.extent)
	for p, v := range f.data {
		out.data[p] = v == label
	}
	return out
}

// CountLabel returns the number of voxels holding the given label.
func (f *LabelField) CountLabel(label uint64) (count int64) {
	for _, v := range f.data {
		if v == label {
			count++
		}
	}
	return
}

// SumLabels returns the sum of all stored label values, useful for cheap
// whole-field accounting in tests and logs.
func (f *LabelField) SumLabels() (sum uint64) {
	for _, v := range f.data {
		sum += v
	}
	return
}

const fieldHeaderSize = 6 * 4

// MarshalBinary encodes the extent followed by little-endian uint64 voxels.
func (f *LabelField) MarshalBinary() ([]byte, error) {
	buf := make([]byte, fieldHeaderSize+8*len(f.data))
	for a := 0; a < 6; a++ {
		binary.LittleEndian.PutUint32(buf[a*4:], uint32(f.extent[a]))
	}
	for p, v := range f.data {
		binary.LittleEndian.PutUint64(buf[fieldHeaderSize+p*8:], v)
	}
	return buf, nil
}

// UnmarshalBinary decodes data written by MarshalBinary.
func (f *LabelField) UnmarshalBinary(data []byte) error {
	if len(data) < fieldHeaderSize {
		return fmt.Errorf("label field serialization too small: %d bytes", len(data))
	}
	var extent Extent
	for a := 0; a < 6; a++ {
		extent[a] = int32(binary.LittleEndian.Uint32(data[a*4:]))
	}
	numVoxels := extent.NumVoxels()
	if int64(len(data)-fieldHeaderSize) != numVoxels*8 {
		return fmt.Errorf("label field serialization has %d bytes of voxel data, expected %d",
			len(data)-fieldHeaderSize, numVoxels*8)
	}
	f.extent = extent
	f.data = make([]uint64, numVoxels)
	for p := range f.data {
		f.data[p] = binary.LittleEndian.Uint64(data[fieldHeaderSize+p*8:])
	}
	return nil
}

// BoolField is a dense 3d array of booleans over an extent, used for
// modifier masks and region eligibility masks.  Layout matches LabelField.
type BoolField struct {
	extent Extent
	data   []bool
}

// NewBoolField allocates an all-false field for the given extent.
func NewBoolField(extent Extent) *BoolField {
	return &BoolField{
		extent: extent,
		data:   make([]bool, extent.NumVoxels()),
	}
}

// Extent returns the inclusive bounds of the field.
func (f *BoolField) Extent() Extent { return f.extent }

// Data returns the underlying linear array.
func (f *BoolField) Data() []bool { return f.data }

func (f *BoolField) index(i, j, k int32) int64 {
	dx := int64(f.extent.Dx())
	dy := int64(f.extent.Dy())
	return (int64(k-f.extent[4])*dy+int64(j-f.extent[2]))*dx + int64(i-f.extent[0])
}

// Value returns the boolean at voxel coordinate (i,j,k).
func (f *BoolField) Value(i, j, k int32) bool {
	return f.data[f.index(i, j, k)]
}

// Set writes the boolean at voxel coordinate (i,j,k).
func (f *BoolField) Set(i, j, k int32, on bool) {
	f.data[f.index(i, j, k)] = on
}

// Fill sets every voxel to the given value.
func (f *BoolField) Fill(on bool) {
	for p := range f.data {
		f.data[p] = on
	}
}

// Clone returns a deep, independent copy of the field.
func (f *BoolField) Clone() *BoolField {
	dup := &BoolField{extent: f.extent, data: make([]bool, len(f.data))}
	copy(dup.data, f.data)
	return dup
}

// And performs an in-place logical AND with f2, which must share the extent.
func (f *BoolField) And(f2 *BoolField) {
	for p := range f.data {
		f.data[p] = f.data[p] && f2.data[p]
	}
}

// Complement performs an in-place logical NOT.
func (f *BoolField) Complement() {
	for p := range f.data {
		f.data[p] = !f.data[p]
	}
}

// Resized returns a new field over newExtent with constant false padding.
// Voxels in the overlap of the old and new extents keep their values.
func (f *BoolField) Resized(newExtent Extent) *BoolField {
	out := NewBoolField(newExtent)
	overlap := f.extent.Clamp(newExtent)
	if overlap.IsEmpty() {
		return out
	}
	for k := overlap[4]; k <= overlap[5]; k++ {
		for j := overlap[2]; j <= overlap[3]; j++ {
			srcBeg := f.index(overlap[0], j, k)
			dstBeg := out.index(overlap[0], j, k)
			n := int64(overlap[1] - overlap[0] + 1)
			copy(out.data[dstBeg:dstBeg+n], f.data[srcBeg:srcBeg+n])
		}
	}
	return out
}

// SubField returns a deep copy of the voxels within sub, which must lie
// inside the field's extent.
func (f *BoolField) SubField(sub Extent) *BoolField {
	out := NewBoolField(sub)
	for k := sub[4]; k <= sub[5]; k++ {
		for j := sub[2]; j <= sub[3]; j++ {
			srcBeg := f.index(sub[0], j, k)
			dstBeg := out.index(sub[0], j, k)
			n := int64(sub[1] - sub[0] + 1)
			copy(out.data[dstBeg:dstBeg+n], f.data[srcBeg:srcBeg+n])
		}
	}
	return out
}

// CountTrue returns the number of set voxels.
func (f *BoolField) CountTrue() (count int64) {
	for _, on := range f.data {
		if on {
			count++
		}
	}
	return
}

// MarshalBinary encodes the extent followed by one byte per voxel.
func (f *BoolField) MarshalBinary() ([]byte, error) {
	buf := make([]byte, fieldHeaderSize+len(f.data))
	for a := 0; a < 6; a++ {
		binary.LittleEndian.PutUint32(buf[a*4:], uint32(f.extent[a]))
	}
	for p, on := range f.data {
		if on {
			buf[fieldHeaderSize+p] = 1
		}
	}
	return buf, nil
}

// UnmarshalBinary decodes data written by MarshalBinary.
func (f *BoolField) UnmarshalBinary(data []byte) error {
	if len(data) < fieldHeaderSize {
		return fmt.Errorf("bool field serialization too small: %d bytes", len(data))
	}
	var extent Extent
	for a := 0; a < 6; a++ {
		extent[a] = int32(binary.LittleEndian.Uint32(data[a*4:]))
	}
	numVoxels := extent.NumVoxels()
	if int64(len(data)-fieldHeaderSize) != numVoxels {
		return fmt.Errorf("bool field serialization has %d bytes of voxel data, expected %d",
			len(data)-fieldHeaderSize, numVoxels)
	}
	f.extent = extent
	f.data = make([]bool, numVoxels)
	for p := range f.data {
		f.data[p] = data[fieldHeaderSize+p] != 0
	}
	return nil
}
