/*
	Package segment implements the label-map segmentation model: the
	segment registry over one shared voxel array, the region-eligibility
	engine, the edit Modifier, and the undo command kinds wrapping every
	mutation.
*/
package segment

import (
	"fmt"

	"github.com/twinj/uuid"

	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
	"github.com/zhuczhuc/trame-slicer-sub000/undo"
)

// Geometry is the reference geometry provider contract.  The segmentation
// keeps its shared label field extent-aligned with Geometry.Extent() via
// Sanitize.
type Geometry interface {
	Extent() slicer.Extent
}

// Visibility is the display-layer contract supplying currently visible
// segment ids for VisibleOnly region policies.  A nil provider means all
// segments are visible.
type Visibility interface {
	VisibleSegmentIDs() []string
}

// Segmentation owns an ordered segment registry and the ONE dense label
// field shared by every segment.  A voxel belongs to a segment iff its
// stored value equals that segment's label value, so mutating the apparent
// label map of one segment mutates the storage every other segment reads.
//
// All methods must be called from a single goroutine; the editing engine is
// synchronous by design and holds no locks.
type Segmentation struct {
	geometry   Geometry
	visibility Visibility

	ids      []string
	segments map[string]*Segment

	// labelmap is created lazily on first segment add, then kept
	// extent-aligned with the reference geometry.  The *LabelField pointer
	// stays stable for the lifetime of the Segmentation; Sanitize mutates
	// it in place.
	labelmap *slicer.LabelField

	undoStack  *undo.Stack
	undoHandle int

	activeID    string
	generation  uint64
	nameCounter int

	notifyBlocked int
	nextHandle    int
	observers     map[int]func()
}

// NewSegmentation creates an empty segmentation over the given reference
// geometry.  The label field is allocated on first segment add.
func NewSegmentation(geometry Geometry) *Segmentation {
	return &Segmentation{
		geometry:  geometry,
		segments:  make(map[string]*Segment),
		observers: make(map[int]func()),
	}
}

// SetVisibility installs the display-layer visibility provider.
func (s *Segmentation) SetVisibility(v Visibility) {
	s.visibility = v
}

// SetUndoStack attaches (or detaches, with nil) the undo stack recording
// this segmentation's mutations.  Undo/redo cursor movement re-triggers the
// modified notification so observers re-query state.
func (s *Segmentation) SetUndoStack(stack *undo.Stack) {
	if s.undoStack == stack {
		return
	}
	if s.undoStack != nil {
		s.undoStack.RemoveOnIndexChanged(s.undoHandle)
	}
	s.undoStack = stack
	if s.undoStack != nil {
		s.undoHandle = s.undoStack.OnIndexChanged(s.NotifyModified)
	}
}

// UndoStack returns the attached undo stack, or nil.
func (s *Segmentation) UndoStack() *undo.Stack { return s.undoStack }

func (s *Segmentation) pushUndo(cmd undo.Command) {
	if s.undoStack != nil {
		s.undoStack.Push(cmd)
	}
}

// --- notifications ---

// OnModified registers an observer called after any segmentation change.
// Observers receive no payload and are expected to re-query state.  The
// returned handle unregisters via RemoveOnModified.
func (s *Segmentation) OnModified(fn func()) int {
	s.nextHandle++
	s.observers[s.nextHandle] = fn
	return s.nextHandle
}

// RemoveOnModified unregisters an observer by handle.
func (s *Segmentation) RemoveOnModified(handle int) {
	delete(s.observers, handle)
}

// NotifyModified fans out the "segmentation changed" notification unless
// suppressed by a batch replay.
func (s *Segmentation) NotifyModified() {
	if s.notifyBlocked > 0 {
		return
	}
	for _, fn := range s.observers {
		fn()
	}
}

// blockNotify suppresses notifications until the returned func is called.
// Re-entrant: nested blocks stack.  This batches UI refresh only; there are
// no concurrent writers to protect against.
func (s *Segmentation) blockNotify() func() {
	s.notifyBlocked++
	return func() { s.notifyBlocked-- }
}

func (s *Segmentation) bumpGeneration() { s.generation++ }

// Generation returns a counter incremented on every mutation of the
// registry or label field.  Used to key derived-data caches.
func (s *Segmentation) Generation() uint64 { return s.generation }

// --- registry queries ---

// NumSegments returns the number of live segments.
func (s *Segmentation) NumSegments() int { return len(s.ids) }

// SegmentIDs returns the live segment ids in registry order.
func (s *Segmentation) SegmentIDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Segment returns the segment for the given id, or nil if not live.
func (s *Segmentation) Segment(id string) *Segment {
	return s.segments[id]
}

// LabelValue returns the label value for the given segment id, or 0 if the
// id isn't live.
func (s *Segmentation) LabelValue(id string) uint64 {
	if seg, found := s.segments[id]; found {
		return seg.props.LabelValue
	}
	return 0
}

// FirstSegmentID returns the first live segment id or "".
func (s *Segmentation) FirstSegmentID() string {
	if len(s.ids) == 0 {
		return ""
	}
	return s.ids[0]
}

// NthSegmentID returns the nth live segment id or "".
func (s *Segmentation) NthSegmentID(n int) string {
	if n < 0 || n >= len(s.ids) {
		return ""
	}
	return s.ids[n]
}

// ActiveSegmentID returns the active segment id, "" if none.
func (s *Segmentation) ActiveSegmentID() string { return s.activeID }

// SetActiveSegmentID sets the active segment, resetting to "" if the id is
// not live.
func (s *Segmentation) SetActiveSegmentID(id string) {
	if _, found := s.segments[id]; !found {
		id = ""
	}
	s.activeID = id
}

// VisibleSegmentIDs returns the live ids currently visible per the display
// provider, or all live ids if no provider is set.
func (s *Segmentation) VisibleSegmentIDs() []string {
	if s.visibility == nil {
		return s.SegmentIDs()
	}
	visible := make(map[string]struct{})
	for _, id := range s.visibility.VisibleSegmentIDs() {
		visible[id] = struct{}{}
	}
	var out []string
	for _, id := range s.ids {
		if _, found := visible[id]; found {
			out = append(out, id)
		}
	}
	return out
}

// nextLabelValue returns the smallest unused positive label value among live
// segments.  Removed segments free their value for reuse; their stale voxels
// stay in the array until overwritten, so a re-added segment with the same
// value inherits them.
func (s *Segmentation) nextLabelValue() uint64 {
	used := make(map[uint64]struct{}, len(s.ids))
	for _, seg := range s.segments {
		used[seg.props.LabelValue] = struct{}{}
	}
	var value uint64 = 1
	for {
		if _, found := used[value]; !found {
			return value
		}
		value++
	}
}

// AddSegmentOptions carries optional fields for AddEmptySegment; zero values
// request engine defaults.
type AddSegmentOptions struct {
	ID         string
	Name       string
	Color      *[3]float64
	LabelValue uint64
}

// AddEmptySegment registers a new segment, assigning defaults for any
// omitted field: a generated id, "Segment_N" name, a palette color, and the
// smallest unused positive label value.  Fails only if the requested id
// collides with a live segment.  The add is pushed on any attached undo
// stack.
func (s *Segmentation) AddEmptySegment(opts AddSegmentOptions) (string, error) {
	cmd, err := newAddCommand(s, opts)
	if err != nil {
		return "", err
	}
	s.pushUndo(cmd)
	s.NotifyModified()
	return cmd.id, nil
}

// addSegment is the raw registry insert, bypassing undo.
func (s *Segmentation) addSegment(opts AddSegmentOptions) (string, error) {
	id := opts.ID
	if id == "" {
		id = uuid.NewV4().String()
	}
	if _, found := s.segments[id]; found {
		return "", fmt.Errorf("segment id %q is already in use", id)
	}

	labelValue := opts.LabelValue
	if labelValue == 0 {
		labelValue = s.nextLabelValue()
	}
	s.nameCounter++
	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("Segment_%d", s.nameCounter)
	}
	color := paletteColor(labelValue)
	if opts.Color != nil {
		color = *opts.Color
	}

	s.insertSegment(id, Properties{
		Name:       name,
		Color:      color,
		LabelValue: labelValue,
	})
	return id, nil
}

// insertSegment places a segment with known properties at the end of the
// registry order, allocating the shared label field on first use.
func (s *Segmentation) insertSegment(id string, props Properties) {
	s.ids = append(s.ids, id)
	s.segments[id] = &Segment{id: id, props: props}
	if s.labelmap == nil && s.geometry != nil {
		s.labelmap = slicer.NewLabelField(s.geometry.Extent())
	}
	s.Sanitize()
	s.bumpGeneration()
}

// RemoveSegment deletes the registry entry for the given id; unknown ids are
// a silent no-op.  Voxel values are untouched: they persist under the old
// label value until overwritten.  The removal is pushed on any attached undo
// stack with the label field captured for restore.
func (s *Segmentation) RemoveSegment(id string) {
	if _, found := s.segments[id]; !found {
		return
	}
	s.pushUndo(newRemoveCommand(s, id))
	s.NotifyModified()
}

// removeSegment is the raw registry delete, bypassing undo.
func (s *Segmentation) removeSegment(id string) {
	if _, found := s.segments[id]; !found {
		return
	}
	delete(s.segments, id)
	for p, sid := range s.ids {
		if sid == id {
			s.ids = append(s.ids[:p], s.ids[p+1:]...)
			break
		}
	}
	if s.activeID == id {
		s.activeID = ""
	}
	s.bumpGeneration()
}

// Properties returns a copy of the segment's properties and whether the id
// is live.
func (s *Segmentation) Properties(id string) (Properties, bool) {
	seg, found := s.segments[id]
	if !found {
		return Properties{}, false
	}
	return seg.props, true
}

// SetProperties applies new properties to a live segment, recording the
// change for undo.  Unknown ids are a silent no-op.
func (s *Segmentation) SetProperties(id string, props Properties) {
	if _, found := s.segments[id]; !found {
		return
	}
	s.pushUndo(newPropertyChangeCommand(s, id, props))
	s.NotifyModified()
}

// applyProperties is the raw property write, bypassing undo.
func (s *Segmentation) applyProperties(id string, props Properties) {
	seg, found := s.segments[id]
	if !found {
		return
	}
	seg.props = props
	s.bumpGeneration()
}

// --- shared label field ---

// SegmentLabelmap returns the shared label field.  Every live segment id
// yields the SAME field object; callers must not assume per-segment
// isolation.  The field is sanitized against the reference geometry before
// return.  Returns nil for unknown ids or before any segment exists.
func (s *Segmentation) SegmentLabelmap(id string) *slicer.LabelField {
	if _, found := s.segments[id]; !found {
		return nil
	}
	s.Sanitize()
	return s.labelmap
}

// SetSegmentLabelmap overwrites the shared label field values with those of
// the given field, for the I/O collaborator contract and undo restore.
// Unknown ids are a silent no-op.
func (s *Segmentation) SetSegmentLabelmap(id string, field *slicer.LabelField) {
	if s.setSegmentLabelmap(id, field) {
		s.NotifyModified()
	}
}

func (s *Segmentation) setSegmentLabelmap(id string, field *slicer.LabelField) bool {
	if field == nil {
		return false
	}
	lm := s.SegmentLabelmap(id)
	if lm == nil {
		return false
	}
	if lm.Extent().Equals(field.Extent()) {
		lm.CopyFrom(field)
	} else {
		// captured before a geometry change: re-extent to fit
		lm.CopyFrom(field.Resized(lm.Extent()))
	}
	s.bumpGeneration()
	return true
}

// NeedsSanitize reports whether the shared label field extent has drifted
// from the reference geometry.
func (s *Segmentation) NeedsSanitize() bool {
	if s.labelmap == nil || s.geometry == nil {
		return false
	}
	return !s.labelmap.Extent().Equals(s.geometry.Extent())
}

// Sanitize re-extents the shared label field to match the reference
// geometry, constant-0 padding new voxels.  Idempotent.  Invoked
// automatically before any read or edit that depends on extent alignment.
func (s *Segmentation) Sanitize() {
	if !s.NeedsSanitize() {
		return
	}
	timelog := slicer.NewTimeLog()
	old := s.labelmap.Extent()
	s.labelmap.Resize(s.geometry.Extent())
	s.bumpGeneration()
	timelog.Infof("sanitized label field %s -> %s", old, s.labelmap.Extent())
}

// GeometryModified is called by the reference geometry provider after its
// extent changes, forcing a sanitize pass.
func (s *Segmentation) GeometryModified() {
	if s.NeedsSanitize() {
		s.Sanitize()
		s.NotifyModified()
	}
}

// NewModifierField returns an all-false boolean field covering the current
// label field extent, suitable as a modifier mask.  Returns nil before any
// segment exists.
func (s *Segmentation) NewModifierField() *slicer.BoolField {
	if s.labelmap == nil {
		return nil
	}
	s.Sanitize()
	return slicer.NewBoolField(s.labelmap.Extent())
}
