package segment

import (
	"fmt"

	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
)

// Mode selects what an edit writes into the shared label field.
type Mode uint8

const (
	// Paint writes the active segment's label value.
	Paint Mode = iota

	// Erase clears only voxels currently equal to the active label value.
	Erase

	// EraseAll clears any voxel matched by the mask, regardless of value.
	EraseAll
)

func (m Mode) String() string {
	switch m {
	case Paint:
		return "paint"
	case Erase:
		return "erase"
	case EraseAll:
		return "erase-all"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Modifier applies one edit at a time to the active segment: it intersects
// a caller-supplied boolean mask with the region mask and mode-specific
// rules, writes the label value, and reports how many voxels changed.
// Brush and scissor producers hand it a ready-made mask plus extent already
// in the label field's voxel coordinate frame; no geometric projection
// happens here.
type Modifier struct {
	seg      *Segmentation
	activeID string
	mode     Mode
	mask     *slicer.BoolField
	region   *RegionMask

	editLog *EditLog
	mutID   uint64

	modifiedHandle int
}

// NewModifier creates a modifier over the given segmentation with Paint
// mode, the Everywhere region policy, and the first segment active.
func NewModifier(seg *Segmentation) *Modifier {
	m := &Modifier{
		seg:      seg,
		activeID: seg.FirstSegmentID(),
		region:   NewRegionMask(seg),
	}
	// drop the active id when its segment disappears
	m.modifiedHandle = seg.OnModified(func() {
		if m.activeID != "" && m.seg.Segment(m.activeID) == nil {
			m.activeID = ""
		}
	})
	return m
}

// Close unregisters the modifier from its segmentation's notifications.
func (m *Modifier) Close() {
	m.seg.RemoveOnModified(m.modifiedHandle)
}

// Segmentation returns the segmentation this modifier edits.
func (m *Modifier) Segmentation() *Segmentation { return m.seg }

// ActiveSegmentID returns the segment receiving edits, "" if none.
func (m *Modifier) ActiveSegmentID() string { return m.activeID }

// SetActiveSegmentID selects the segment receiving edits, resetting to ""
// for ids not live in the segmentation.
func (m *Modifier) SetActiveSegmentID(id string) {
	if m.seg.Segment(id) == nil {
		id = ""
	}
	m.activeID = id
}

// Mode returns the current modification mode.
func (m *Modifier) Mode() Mode { return m.mode }

// SetMode selects paint/erase/erase-all behavior.
func (m *Modifier) SetMode(mode Mode) { m.mode = mode }

// Region exposes the region-eligibility engine for policy and selection
// changes.
func (m *Modifier) Region() *RegionMask { return m.region }

// Mask returns the free-form boolean mask further restricting edits, or
// nil.
func (m *Modifier) Mask() *slicer.BoolField { return m.mask }

// SetMask installs a free-form mask that must match the full label field
// extent.  A mismatched shape is rejected outright: silently truncating it
// would corrupt downstream index arithmetic.  Pass nil to clear.
func (m *Modifier) SetMask(mask *slicer.BoolField) error {
	if mask == nil {
		m.mask = nil
		return nil
	}
	lm := m.seg.SegmentLabelmap(m.seg.FirstSegmentID())
	if lm == nil {
		return fmt.Errorf("cannot set modifier mask before any segment exists")
	}
	if !mask.Extent().Equals(lm.Extent()) {
		return fmt.Errorf("mask extent %s must match label field extent %s",
			mask.Extent(), lm.Extent())
	}
	m.mask = mask
	return nil
}

// SetEditLog attaches an append-only log receiving one record per applied
// edit.  Pass nil to disable.
func (m *Modifier) SetEditLog(log *EditLog) { m.editLog = log }

// ApplyLabelmap applies one edit described by the modifier mask at its own
// extent, recording the net effect on any attached undo stack.  Returns the
// number of voxels whose stored value changed.
func (m *Modifier) ApplyLabelmap(modifier *slicer.BoolField) (changed int) {
	return m.ApplyLabelmapAt(modifier, modifier.Extent())
}

// ApplyLabelmapAt is ApplyLabelmap with the mask interpreted at a translated
// extent, e.g. a brush stencil stamped away from where it was built.
func (m *Modifier) ApplyLabelmapAt(modifier *slicer.BoolField, at slicer.Extent) (changed int) {
	RecordEdits(m.seg, func() {
		changed = m.applyBinaryLabelmap(modifier, at, true)
	})
	return
}

// ApplyStamped applies the modifier mask once per offset, translated by each
// (di,dj,dk), as a single undoable batch with one final notification.
func (m *Modifier) ApplyStamped(modifier *slicer.BoolField, offsets [][3]int32) (changed int) {
	if len(offsets) == 0 {
		return 0
	}
	base := modifier.Extent()
	RecordEdits(m.seg, func() {
		for _, off := range offsets {
			at := slicer.Extent{
				base[0] + off[0], base[1] + off[0],
				base[2] + off[1], base[3] + off[1],
				base[4] + off[2], base[5] + off[2],
			}
			changed += m.applyBinaryLabelmap(modifier, at, false)
		}
	})
	m.seg.NotifyModified()
	return
}

// applyBinaryLabelmap performs the edit algorithm over the clamped
// sub-region.  The region mask is applied last so it can veto paint and
// erase edits alike.
func (m *Modifier) applyBinaryLabelmap(modifier *slicer.BoolField, baseExtent slicer.Extent, notify bool) int {
	if m.activeID == "" {
		slicer.Warningf("no active segment for labelmap edit\n")
		return 0
	}
	ext := modifier.Extent()
	if ext.Dx() != baseExtent.Dx() || ext.Dy() != baseExtent.Dy() || ext.Dz() != baseExtent.Dz() {
		slicer.Errorf("modifier mask %s cannot be applied at differently shaped extent %s\n",
			ext, baseExtent)
		return 0
	}

	labelmap := m.seg.SegmentLabelmap(m.activeID)
	if labelmap == nil {
		return 0
	}
	commonExtent := labelmap.Extent()

	// a geometry change may have sanitized the label field since the mask
	// was installed; re-extent it the same way, padding false
	if m.mask != nil && !m.mask.Extent().Equals(commonExtent) {
		slicer.Warningf("modifier mask %s re-extented to follow label field %s\n",
			m.mask.Extent(), commonExtent)
		m.mask = m.mask.Resized(commonExtent)
	}

	// clamp modifier extent so we don't write outside the segmentation
	clamped := baseExtent.Clamp(commonExtent)
	if slicer.RangesEmpty(commonExtent.LocalRanges(clamped)) ||
		slicer.RangesEmpty(baseExtent.LocalRanges(clamped)) {
		// affected area is empty or out of label field range
		return 0
	}

	activeValue := m.seg.LabelValue(m.activeID)
	labelValue := uint64(0)
	if m.mode == Paint {
		labelValue = activeValue
	}

	labelSub := labelmap.SubField(clamped)
	effective := subAt(modifier, baseExtent, clamped)
	if m.mask != nil {
		effective.And(m.mask.SubField(clamped))
	}
	if m.mode == Erase {
		effective.And(labelSub.EqualsMask(activeValue))
	}
	effective.And(m.region.MaskedRegion(labelSub))

	changed := 0
	for k := clamped[4]; k <= clamped[5]; k++ {
		for j := clamped[2]; j <= clamped[3]; j++ {
			for i := clamped[0]; i <= clamped[1]; i++ {
				if !effective.Value(i, j, k) {
					continue
				}
				if labelmap.Value(i, j, k) != labelValue {
					labelmap.Set(i, j, k, labelValue)
					changed++
				}
			}
		}
	}

	if changed > 0 {
		m.seg.bumpGeneration()
	}
	m.logEdit(clamped, labelValue, changed)
	if notify {
		m.seg.NotifyModified()
	}
	return changed
}

// subAt copies the sub-region of a mask whose coordinates are interpreted at
// a translated base extent, yielding a field addressed by the clamped
// extent.
func subAt(mask *slicer.BoolField, base, clamped slicer.Extent) *slicer.BoolField {
	ext := mask.Extent()
	di := ext[0] - base[0]
	dj := ext[2] - base[2]
	dk := ext[4] - base[4]
	out := slicer.NewBoolField(clamped)
	for k := clamped[4]; k <= clamped[5]; k++ {
		for j := clamped[2]; j <= clamped[3]; j++ {
			for i := clamped[0]; i <= clamped[1]; i++ {
				out.Set(i, j, k, mask.Value(i+di, j+dj, k+dk))
			}
		}
	}
	return out
}

func (m *Modifier) logEdit(extent slicer.Extent, labelValue uint64, changed int) {
	if m.editLog == nil || changed == 0 {
		return
	}
	m.mutID++
	if err := m.editLog.Append(EditRecord{
		MutID:      m.mutID,
		Mode:       m.mode,
		Extent:     extent,
		LabelValue: labelValue,
		Changed:    int64(changed),
	}); err != nil {
		slicer.Errorf("unable to append edit record %d: %v\n", m.mutID, err)
	}
}
