package segment

import (
	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
)

// RegionPolicy selects which voxels an edit may touch based on segment
// membership.  It is a struct of independent booleans; the named
// constructors below give the conventional combinations.  The zero value is
// Everywhere (no restriction).
type RegionPolicy struct {
	// Restricted is false for the Everywhere policy.
	Restricted bool

	// Inside keeps voxels inside the candidate segments; otherwise the
	// complement is kept.
	Inside bool

	// SelectedOnly restricts candidates to an explicit selection instead of
	// every live segment.
	SelectedOnly bool

	// VisibleOnly intersects candidates with the display layer's visible
	// set.
	VisibleOnly bool
}

// Everywhere allows edits anywhere.  This is the default policy.
func Everywhere() RegionPolicy { return RegionPolicy{} }

// InsideAllSegments allows edits only over voxels owned by any segment.
func InsideAllSegments() RegionPolicy {
	return RegionPolicy{Restricted: true, Inside: true}
}

// OutsideAllSegments allows edits only over unowned voxels.
func OutsideAllSegments() RegionPolicy {
	return RegionPolicy{Restricted: true}
}

// InsideAllVisibleSegments allows edits only inside visible segments.
func InsideAllVisibleSegments() RegionPolicy {
	return RegionPolicy{Restricted: true, Inside: true, VisibleOnly: true}
}

// OutsideAllVisibleSegments allows edits only outside visible segments.
func OutsideAllVisibleSegments() RegionPolicy {
	return RegionPolicy{Restricted: true, VisibleOnly: true}
}

// InsideSelectedSegments allows edits only inside an explicit selection.
func InsideSelectedSegments() RegionPolicy {
	return RegionPolicy{Restricted: true, Inside: true, SelectedOnly: true}
}

// OutsideSelectedSegments allows edits only outside an explicit selection.
func OutsideSelectedSegments() RegionPolicy {
	return RegionPolicy{Restricted: true, SelectedOnly: true}
}

// RegionMask generates the eligibility mask for a given policy and segment
// selection.  It is a pure function of the label field contents per call;
// the optional cache only short-circuits recomputation for unchanged
// generations.
type RegionMask struct {
	seg         *Segmentation
	Policy      RegionPolicy
	SelectedIDs []string

	cache *MaskCache
}

// NewRegionMask creates a region mask over the given segmentation with the
// default Everywhere policy.
func NewRegionMask(seg *Segmentation) *RegionMask {
	return &RegionMask{seg: seg}
}

// UseCache installs a cache for whole-volume masks.  Sub-region queries are
// always recomputed.
func (m *RegionMask) UseCache(cache *MaskCache) { m.cache = cache }

// MaskedRegion returns the eligibility mask over the given label field,
// which may be a sub-region copy of the shared label map.  Everywhere yields
// all-true.  An empty candidate set is not an error: it yields all-false for
// Inside policies and all-true for Outside ones.
func (m *RegionMask) MaskedRegion(labels *slicer.LabelField) *slicer.BoolField {
	if !m.Policy.Restricted {
		mask := slicer.NewBoolField(labels.Extent())
		mask.Fill(true)
		return mask
	}

	if mask, found := m.cachedMask(labels); found {
		return mask
	}

	mask := m.segmentMask(labels)
	if !m.Policy.Inside {
		mask.Complement()
	}
	m.storeMask(labels, mask)
	return mask
}

// segmentMask marks voxels whose label value belongs to a candidate
// segment.
func (m *RegionMask) segmentMask(labels *slicer.LabelField) *slicer.BoolField {
	ids := m.seg.SegmentIDs()
	if m.Policy.SelectedOnly {
		ids = m.SelectedIDs
	}
	if m.Policy.VisibleOnly {
		visible := make(map[string]struct{})
		for _, id := range m.seg.VisibleSegmentIDs() {
			visible[id] = struct{}{}
		}
		var kept []string
		for _, id := range ids {
			if _, found := visible[id]; found {
				kept = append(kept, id)
			}
		}
		ids = kept
	}

	values := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if seg := m.seg.Segment(id); seg != nil {
			values[seg.LabelValue()] = struct{}{}
		}
	}

	mask := slicer.NewBoolField(labels.Extent())
	data := mask.Data()
	for p, v := range labels.Data() {
		_, data[p] = values[v]
	}
	return mask
}

func (m *RegionMask) cachedMask(labels *slicer.LabelField) (*slicer.BoolField, bool) {
	if m.cache == nil || !m.fullVolume(labels) {
		return nil, false
	}
	return m.cache.Get(m.cacheKey())
}

func (m *RegionMask) storeMask(labels *slicer.LabelField, mask *slicer.BoolField) {
	if m.cache == nil || !m.fullVolume(labels) {
		return
	}
	m.cache.Put(m.cacheKey(), mask)
}

// fullVolume reports whether the queried labels cover the whole shared
// label field, the only case worth caching.
func (m *RegionMask) fullVolume(labels *slicer.LabelField) bool {
	first := m.seg.FirstSegmentID()
	if first == "" {
		return false
	}
	lm := m.seg.SegmentLabelmap(first)
	return lm != nil && lm.Extent().Equals(labels.Extent())
}

func (m *RegionMask) cacheKey() MaskKey {
	return MaskKey{
		Policy:     m.Policy,
		Selected:   m.SelectedIDs,
		Visible:    m.seg.VisibleSegmentIDs(),
		Generation: m.seg.Generation(),
	}
}
