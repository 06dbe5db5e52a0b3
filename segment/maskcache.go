package segment

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/coocood/freecache"

	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
)

// MaskKey identifies one whole-volume region mask.  The generation counter
// makes stale entries unreachable after any mutation, so entries are never
// explicitly invalidated; freecache evicts them under memory pressure.
type MaskKey struct {
	Policy     RegionPolicy
	Selected   []string
	Visible    []string
	Generation uint64
}

func (k MaskKey) bytes() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%t/%t/%t/%t/%d", k.Policy.Restricted, k.Policy.Inside,
		k.Policy.SelectedOnly, k.Policy.VisibleOnly, k.Generation)
	for _, ids := range [][]string{k.Selected, k.Visible} {
		sorted := make([]string, len(ids))
		copy(sorted, ids)
		sort.Strings(sorted)
		buf.WriteByte('|')
		for _, id := range sorted {
			buf.WriteString(id)
			buf.WriteByte(',')
		}
	}
	return buf.Bytes()
}

// MaskCache caches whole-volume region masks.  Mask computation scans the
// full label field; interactive strokes with an unchanged policy and
// generation hit the cache instead.
type MaskCache struct {
	cache *freecache.Cache
}

// NewMaskCache creates a cache bounded to roughly the given number of
// megabytes.
func NewMaskCache(sizeMB int) *MaskCache {
	if sizeMB <= 0 {
		sizeMB = 32
	}
	return &MaskCache{cache: freecache.NewCache(sizeMB * 1024 * 1024)}
}

// Get returns the cached mask for the key, if present.
func (c *MaskCache) Get(key MaskKey) (*slicer.BoolField, bool) {
	data, err := c.cache.Get(key.bytes())
	if err != nil {
		return nil, false
	}
	var mask slicer.BoolField
	if err := mask.UnmarshalBinary(data); err != nil {
		slicer.Errorf("dropping corrupted cached region mask: %v\n", err)
		return nil, false
	}
	return &mask, true
}

// Put stores a mask under the key.  Entries too large for the cache are
// silently skipped.
func (c *MaskCache) Put(key MaskKey, mask *slicer.BoolField) {
	data, err := mask.MarshalBinary()
	if err != nil {
		return
	}
	if err := c.cache.Set(key.bytes(), data, 0); err != nil {
		slicer.Debugf("region mask not cached: %v\n", err)
	}
}

// EntryCount returns the number of cached masks.
func (c *MaskCache) EntryCount() int64 {
	return c.cache.EntryCount()
}
