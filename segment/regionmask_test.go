package segment

import (
	"testing"

	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
)

// newLabeledSegmentation builds a 2x2x2 segmentation holding four segments
// with label values 1..4 and the voxel grid (k, j, i nesting):
//
//	k=0: [[0 1] [2 3]]
//	k=1: [[4 0] [1 2]]
func newLabeledSegmentation(t *testing.T) (*Segmentation, []string) {
	t.Helper()
	seg := newTestSegmentation(slicer.Extent{0, 1, 0, 1, 0, 1})
	var ids []string
	for n := 1; n <= 4; n++ {
		id, err := seg.AddEmptySegment(AddSegmentOptions{})
		if err != nil {
			t.Fatalf("add segment failed: %v\n", err)
		}
		ids = append(ids, id)
	}
	lm := seg.SegmentLabelmap(ids[0])
	values := [2][2][2]uint64{
		{{0, 1}, {2, 3}},
		{{4, 0}, {1, 2}},
	}
	for k := int32(0); k < 2; k++ {
		for j := int32(0); j < 2; j++ {
			for i := int32(0); i < 2; i++ {
				lm.Set(i, j, k, values[k][j][i])
			}
		}
	}
	return seg, ids
}

func checkMask(t *testing.T, mask *slicer.BoolField, expected [2][2][2]bool) {
	t.Helper()
	for k := int32(0); k < 2; k++ {
		for j := int32(0); j < 2; j++ {
			for i := int32(0); i < 2; i++ {
				if got := mask.Value(i, j, k); got != expected[k][j][i] {
					t.Errorf("mask[%d,%d,%d] = %t, expected %t\n",
						i, j, k, got, expected[k][j][i])
				}
			}
		}
	}
}

func TestMaskedRegionEverywhere(t *testing.T) {
	seg, ids := newLabeledSegmentation(t)
	mask := NewRegionMask(seg)

	region := mask.MaskedRegion(seg.SegmentLabelmap(ids[0]))
	if region.CountTrue() != 8 {
		t.Errorf("everywhere policy should allow all 8 voxels, got %d\n", region.CountTrue())
	}
}

func TestMaskedRegionSelectedSegments(t *testing.T) {
	seg, ids := newLabeledSegmentation(t)
	mask := NewRegionMask(seg)
	mask.Policy = InsideSelectedSegments()
	mask.SelectedIDs = []string{ids[1], ids[2]} // label values 2 and 3

	inside := mask.MaskedRegion(seg.SegmentLabelmap(ids[0]))
	checkMask(t, inside, [2][2][2]bool{
		{{false, false}, {true, true}},
		{{false, false}, {false, true}},
	})

	mask.Policy = OutsideSelectedSegments()
	outside := mask.MaskedRegion(seg.SegmentLabelmap(ids[0]))
	checkMask(t, outside, [2][2][2]bool{
		{{true, true}, {false, false}},
		{{true, true}, {true, false}},
	})
}

func TestMaskedRegionAllSegments(t *testing.T) {
	seg, ids := newLabeledSegmentation(t)
	mask := NewRegionMask(seg)
	mask.Policy = InsideAllSegments()

	inside := mask.MaskedRegion(seg.SegmentLabelmap(ids[0]))
	// only the two zero voxels are unowned
	if inside.CountTrue() != 6 {
		t.Errorf("inside all segments allowed %d voxels, expected 6\n", inside.CountTrue())
	}

	mask.Policy = OutsideAllSegments()
	outside := mask.MaskedRegion(seg.SegmentLabelmap(ids[0]))
	if outside.CountTrue() != 2 {
		t.Errorf("outside all segments allowed %d voxels, expected 2\n", outside.CountTrue())
	}
}

func TestMaskedRegionEmptyCandidates(t *testing.T) {
	seg, ids := newLabeledSegmentation(t)
	mask := NewRegionMask(seg)
	mask.Policy = InsideSelectedSegments()
	mask.SelectedIDs = nil

	if got := mask.MaskedRegion(seg.SegmentLabelmap(ids[0])).CountTrue(); got != 0 {
		t.Errorf("inside empty selection should be all-false, got %d true\n", got)
	}

	mask.Policy = OutsideSelectedSegments()
	if got := mask.MaskedRegion(seg.SegmentLabelmap(ids[0])).CountTrue(); got != 8 {
		t.Errorf("outside empty selection should be all-true, got %d true\n", got)
	}
}

func TestMaskedRegionVisibleOnly(t *testing.T) {
	seg, ids := newLabeledSegmentation(t)
	// only the label-value-1 segment is visible
	seg.SetVisibility(&stubVisibility{visible: []string{ids[0]}})

	mask := NewRegionMask(seg)
	mask.Policy = InsideAllVisibleSegments()
	inside := mask.MaskedRegion(seg.SegmentLabelmap(ids[0]))
	checkMask(t, inside, [2][2][2]bool{
		{{false, true}, {false, false}},
		{{false, false}, {true, false}},
	})

	mask.Policy = OutsideAllVisibleSegments()
	if got := mask.MaskedRegion(seg.SegmentLabelmap(ids[0])).CountTrue(); got != 6 {
		t.Errorf("outside visible allowed %d voxels, expected 6\n", got)
	}
}

func TestMaskedRegionStaleSelection(t *testing.T) {
	seg, ids := newLabeledSegmentation(t)
	mask := NewRegionMask(seg)
	mask.Policy = InsideSelectedSegments()
	mask.SelectedIDs = []string{ids[0], "removed-long-ago"}

	inside := mask.MaskedRegion(seg.SegmentLabelmap(ids[0]))
	// the unknown id contributes nothing; only label value 1 matches
	if inside.CountTrue() != 2 {
		t.Errorf("stale id changed selection result, got %d true\n", inside.CountTrue())
	}
}

func TestMaskCache(t *testing.T) {
	seg, ids := newLabeledSegmentation(t)
	mask := NewRegionMask(seg)
	mask.Policy = InsideAllSegments()
	mask.UseCache(NewMaskCache(1))

	first := mask.MaskedRegion(seg.SegmentLabelmap(ids[0]))
	second := mask.MaskedRegion(seg.SegmentLabelmap(ids[0]))
	if !boolFieldsEqual(first, second) {
		t.Fatalf("cached mask differs from computed mask\n")
	}

	// mutate through the recording entry point so the generation key
	// changes and stale hits become unreachable
	lm := seg.SegmentLabelmap(ids[0]).Clone()
	lm.Set(0, 0, 0, 4)
	seg.SetSegmentLabelmap(ids[0], lm)

	third := mask.MaskedRegion(seg.SegmentLabelmap(ids[0]))
	if third.CountTrue() != 7 {
		t.Errorf("stale cache entry served after mutation: %d true, expected 7\n", third.CountTrue())
	}
}

func boolFieldsEqual(a, b *slicer.BoolField) bool {
	if !a.Extent().Equals(b.Extent()) {
		return false
	}
	ad, bd := a.Data(), b.Data()
	for p := range ad {
		if ad[p] != bd[p] {
			return false
		}
	}
	return true
}
