package segment

import (
	"bytes"
	"testing"

	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
)

func newPaintSetup(t *testing.T) (*Segmentation, *Modifier, []string) {
	t.Helper()
	seg := newTestSegmentation(slicer.Extent{0, 1, 0, 1, 0, 1})
	var ids []string
	for n := 0; n < 2; n++ {
		id, err := seg.AddEmptySegment(AddSegmentOptions{})
		if err != nil {
			t.Fatalf("add segment failed: %v\n", err)
		}
		ids = append(ids, id)
	}
	mod := NewModifier(seg)
	mod.SetActiveSegmentID(ids[0])
	return seg, mod, ids
}

// singleVoxelMask returns an all-false full-extent mask with one voxel set.
func singleVoxelMask(seg *Segmentation, i, j, k int32) *slicer.BoolField {
	mask := seg.NewModifierField()
	mask.Set(i, j, k, true)
	return mask
}

func TestPaintIdempotence(t *testing.T) {
	seg, mod, ids := newPaintSetup(t)
	mask := singleVoxelMask(seg, 0, 1, 0)

	if changed := mod.ApplyLabelmap(mask); changed != 1 {
		t.Fatalf("first paint changed %d voxels, expected 1\n", changed)
	}
	lm := seg.SegmentLabelmap(ids[0])
	if lm.Value(0, 1, 0) != seg.LabelValue(ids[0]) {
		t.Fatalf("painted voxel holds %d, expected %d\n",
			lm.Value(0, 1, 0), seg.LabelValue(ids[0]))
	}
	snapshot := lm.Clone()

	if changed := mod.ApplyLabelmap(mask); changed != 0 {
		t.Errorf("repeated paint changed %d voxels, expected 0\n", changed)
	}
	if !lm.Equal(snapshot) {
		t.Errorf("repeated paint altered the label field\n")
	}
}

func TestEraseExclusivity(t *testing.T) {
	seg, mod, ids := newPaintSetup(t)
	lm := seg.SegmentLabelmap(ids[0])
	lm.Set(0, 0, 0, seg.LabelValue(ids[0]))
	lm.Set(1, 0, 0, seg.LabelValue(ids[1]))

	mask := seg.NewModifierField()
	mask.Fill(true)

	mod.SetMode(Erase)
	if changed := mod.ApplyLabelmap(mask); changed != 1 {
		t.Fatalf("erase changed %d voxels, expected only the active-valued one\n", changed)
	}
	if lm.Value(0, 0, 0) != 0 {
		t.Errorf("erase left active-valued voxel at %d\n", lm.Value(0, 0, 0))
	}
	if lm.Value(1, 0, 0) != seg.LabelValue(ids[1]) {
		t.Errorf("erase cleared a voxel belonging to another segment\n")
	}

	mod.SetMode(EraseAll)
	if changed := mod.ApplyLabelmap(mask); changed != 1 {
		t.Fatalf("erase-all changed %d voxels, expected 1\n", changed)
	}
	if lm.Value(1, 0, 0) != 0 {
		t.Errorf("erase-all should clear regardless of value, got %d\n", lm.Value(1, 0, 0))
	}
	if lm.CountLabel(0) != 8 {
		t.Errorf("expected an all-zero field, %d voxels still labeled\n", 8-lm.CountLabel(0))
	}
}

func TestRegionVeto(t *testing.T) {
	seg, mod, ids := newPaintSetup(t)
	lm := seg.SegmentLabelmap(ids[0])
	lm.Set(0, 0, 0, seg.LabelValue(ids[1]))

	// only unowned voxels are editable; (0,0,0) is owned and must be vetoed
	mod.Region().Policy = OutsideAllSegments()
	mask := seg.NewModifierField()
	mask.Fill(true)

	if changed := mod.ApplyLabelmap(mask); changed != 7 {
		t.Fatalf("paint changed %d voxels, expected 7\n", changed)
	}
	if lm.Value(0, 0, 0) != seg.LabelValue(ids[1]) {
		t.Errorf("region mask failed to veto a paint over an owned voxel\n")
	}

	// erase-all is vetoed the same way: now every voxel is owned, but only
	// those inside the selected segment are eligible
	mod.SetMode(EraseAll)
	mod.Region().Policy = InsideSelectedSegments()
	mod.Region().SelectedIDs = []string{ids[1]}
	if changed := mod.ApplyLabelmap(mask); changed != 1 {
		t.Fatalf("erase-all changed %d voxels, expected 1\n", changed)
	}
	if lm.Value(0, 0, 0) != 0 {
		t.Errorf("voxel inside selection should have been cleared\n")
	}
	if lm.CountLabel(seg.LabelValue(ids[0])) != 7 {
		t.Errorf("voxels outside the selection were modified\n")
	}
}

func TestExtentClamp(t *testing.T) {
	seg, mod, ids := newPaintSetup(t)

	// mask extends one voxel beyond every bound on every side
	big := slicer.NewBoolField(slicer.Extent{-1, 2, -1, 2, -1, 2})
	big.Fill(true)

	if changed := mod.ApplyLabelmap(big); changed != 8 {
		t.Fatalf("clamped paint changed %d voxels, expected 8\n", changed)
	}
	lm := seg.SegmentLabelmap(ids[0])
	if lm.CountLabel(seg.LabelValue(ids[0])) != 8 {
		t.Errorf("interior not fully painted\n")
	}
}

func TestEditOutsideVolume(t *testing.T) {
	_, mod, _ := newPaintSetup(t)
	far := slicer.NewBoolField(slicer.Extent{10, 12, 10, 12, 10, 12})
	far.Fill(true)
	if changed := mod.ApplyLabelmap(far); changed != 0 {
		t.Errorf("edit fully outside the volume changed %d voxels\n", changed)
	}
}

func TestNoActiveSegment(t *testing.T) {
	seg, mod, _ := newPaintSetup(t)
	mod.SetActiveSegmentID("")
	mask := seg.NewModifierField()
	mask.Fill(true)
	if changed := mod.ApplyLabelmap(mask); changed != 0 {
		t.Errorf("edit without active segment changed %d voxels\n", changed)
	}
}

func TestActiveSegmentAutoReset(t *testing.T) {
	seg, mod, ids := newPaintSetup(t)
	seg.RemoveSegment(ids[0])
	if mod.ActiveSegmentID() != "" {
		t.Errorf("active id %q should reset when its segment is removed\n",
			mod.ActiveSegmentID())
	}
}

func TestSetMaskValidation(t *testing.T) {
	seg, mod, ids := newPaintSetup(t)

	bad := slicer.NewBoolField(slicer.Extent{0, 2, 0, 1, 0, 1})
	if err := mod.SetMask(bad); err == nil {
		t.Fatalf("mismatched mask extent must be rejected\n")
	}

	good := seg.NewModifierField()
	good.Set(1, 1, 1, true)
	if err := mod.SetMask(good); err != nil {
		t.Fatalf("full-extent mask rejected: %v\n", err)
	}

	all := seg.NewModifierField()
	all.Fill(true)
	if changed := mod.ApplyLabelmap(all); changed != 1 {
		t.Errorf("explicit mask should restrict paint to 1 voxel, changed %d\n", changed)
	}
	if seg.SegmentLabelmap(ids[0]).Value(1, 1, 1) != seg.LabelValue(ids[0]) {
		t.Errorf("masked voxel not painted\n")
	}

	if err := mod.SetMask(nil); err != nil {
		t.Errorf("clearing the mask should always succeed: %v\n", err)
	}
	if mod.Mask() != nil {
		t.Errorf("mask not cleared\n")
	}
}

func TestMaskFollowsGeometryChange(t *testing.T) {
	geom := &stubGeometry{extent: slicer.Extent{0, 1, 0, 1, 0, 1}}
	seg := NewSegmentation(geom)
	id, err := seg.AddEmptySegment(AddSegmentOptions{})
	if err != nil {
		t.Fatalf("add segment failed: %v\n", err)
	}
	mod := NewModifier(seg)
	mod.SetActiveSegmentID(id)

	mask := seg.NewModifierField()
	mask.Set(1, 1, 1, true)
	if err := mod.SetMask(mask); err != nil {
		t.Fatalf("full-extent mask rejected: %v\n", err)
	}

	geom.extent = slicer.Extent{0, 2, 0, 2, 0, 2}
	seg.GeometryModified()

	all := seg.NewModifierField()
	all.Fill(true)
	if changed := mod.ApplyLabelmap(all); changed != 1 {
		t.Fatalf("paint through stale mask changed %d voxels, expected 1\n", changed)
	}
	lm := seg.SegmentLabelmap(id)
	if lm.Value(1, 1, 1) != seg.LabelValue(id) {
		t.Errorf("masked voxel not painted after geometry change\n")
	}
	if lm.Value(2, 2, 2) != 0 {
		t.Errorf("grown region must stay blocked by the re-extented mask\n")
	}
	if got := mod.Mask().Extent(); !got.Equals(geom.extent) {
		t.Errorf("mask extent %s, expected %s after re-extent\n", got, geom.extent)
	}
}

func TestApplyStamped(t *testing.T) {
	seg, mod, ids := newPaintSetup(t)

	stencil := slicer.NewBoolField(slicer.Extent{0, 0, 0, 0, 0, 0})
	stencil.Fill(true)
	offsets := [][3]int32{{0, 0, 0}, {1, 0, 0}, {0, 1, 1}, {5, 5, 5}}

	var notified int
	seg.OnModified(func() { notified++ })

	if changed := mod.ApplyStamped(stencil, offsets); changed != 3 {
		t.Fatalf("stamped run changed %d voxels, expected 3\n", changed)
	}
	if notified != 1 {
		t.Errorf("stamped run emitted %d notifications, expected 1\n", notified)
	}
	lm := seg.SegmentLabelmap(ids[0])
	if lm.CountLabel(seg.LabelValue(ids[0])) != 3 {
		t.Errorf("expected 3 painted voxels, got %d\n",
			lm.CountLabel(seg.LabelValue(ids[0])))
	}
}

func TestEditLogRecords(t *testing.T) {
	seg, mod, _ := newPaintSetup(t)

	var buf bytes.Buffer
	mod.SetEditLog(NewEditLog(&buf))

	mod.ApplyLabelmap(singleVoxelMask(seg, 0, 0, 0))
	mod.SetMode(EraseAll)
	mask := seg.NewModifierField()
	mask.Fill(true)
	mod.ApplyLabelmap(mask)

	records, err := ReadEditRecords(&buf)
	if err != nil {
		t.Fatalf("reading edit log failed: %v\n", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d edit records, expected 2\n", len(records))
	}
	if records[0].Mode != Paint || records[0].Changed != 1 {
		t.Errorf("bad paint record: %+v\n", records[0])
	}
	if records[1].Mode != EraseAll || records[1].Changed != 1 || records[1].LabelValue != 0 {
		t.Errorf("bad erase record: %+v\n", records[1])
	}
	if records[1].MutID <= records[0].MutID {
		t.Errorf("mutation ids must increase: %d then %d\n",
			records[0].MutID, records[1].MutID)
	}
}
