package segment

import (
	"bytes"
	"fmt"

	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
	"github.com/zhuczhuc/trame-slicer-sub000/undo"
)

// Commands perform their edit at construction, so pushing one on the stack
// never re-applies it.  Undo and redo call the segmentation's raw mutators,
// bypassing the undo-recording entry points.

// snapshot compression for captured label fields
const snapshotCompression = slicer.Snappy

func captureField(field *slicer.LabelField) []byte {
	if field == nil {
		return nil
	}
	raw, err := field.MarshalBinary()
	if err != nil {
		slicer.Criticalf("unable to snapshot label field: %v\n", err)
		return nil
	}
	blob, err := slicer.SerializeData(raw, snapshotCompression, slicer.NoChecksum)
	if err != nil {
		slicer.Criticalf("unable to compress label field snapshot: %v\n", err)
		return nil
	}
	return blob
}

func restoreField(seg *Segmentation, blob []byte) {
	if blob == nil {
		return
	}
	raw, _, err := slicer.DeserializeData(blob, true)
	if err != nil {
		slicer.Criticalf("unable to decompress label field snapshot: %v\n", err)
		return
	}
	var field slicer.LabelField
	if err := field.UnmarshalBinary(raw); err != nil {
		slicer.Criticalf("unable to decode label field snapshot: %v\n", err)
		return
	}
	if id := seg.FirstSegmentID(); id != "" {
		seg.setSegmentLabelmap(id, &field)
	}
}

// --- add ---

type addCommand struct {
	seg      *Segmentation
	id       string
	props    Properties
	obsolete bool
}

// newAddCommand performs the registry insert and captures what redo needs.
func newAddCommand(seg *Segmentation, opts AddSegmentOptions) (*addCommand, error) {
	id, err := seg.addSegment(opts)
	if err != nil {
		return nil, err
	}
	props, _ := seg.Properties(id)
	return &addCommand{seg: seg, id: id, props: props}, nil
}

func (c *addCommand) Undo() { c.seg.removeSegment(c.id) }
func (c *addCommand) Redo() { c.seg.insertSegment(c.id, c.props) }

// MergeWith cancels an add against an immediately following remove of the
// same segment: the pair is a net no-op and both entries vanish.
func (c *addCommand) MergeWith(next undo.Command) bool {
	rm, ok := next.(*removeCommand)
	if !ok || rm.id != c.id {
		return false
	}
	c.obsolete = true
	return true
}

func (c *addCommand) Obsolete() bool { return c.obsolete }
func (c *addCommand) Text() string   { return fmt.Sprintf("add segment %s", c.id) }

// --- remove ---

type removeCommand struct {
	seg   *Segmentation
	id    string
	pos   int
	props Properties
	blob  []byte
}

// newRemoveCommand captures the segment's properties, ordinal position, and a
// compressed label field snapshot, then performs the registry delete.
func newRemoveCommand(seg *Segmentation, id string) *removeCommand {
	cmd := &removeCommand{seg: seg, id: id}
	cmd.props, _ = seg.Properties(id)
	for p, sid := range seg.ids {
		if sid == id {
			cmd.pos = p
			break
		}
	}
	cmd.blob = captureField(seg.SegmentLabelmap(id))
	seg.removeSegment(id)
	return cmd
}

func (c *removeCommand) Undo() {
	c.seg.insertSegment(c.id, c.props)
	// insertSegment appends; restore the original registry ordinal
	ids := c.seg.ids
	if c.pos < len(ids)-1 {
		copy(ids[c.pos+1:], ids[c.pos:len(ids)-1])
		ids[c.pos] = c.id
	}
	restoreField(c.seg, c.blob)
}

func (c *removeCommand) Redo() { c.seg.removeSegment(c.id) }

func (c *removeCommand) MergeWith(undo.Command) bool { return false }
func (c *removeCommand) Obsolete() bool              { return false }
func (c *removeCommand) Text() string                { return fmt.Sprintf("remove segment %s", c.id) }

// --- property change ---

type propertyChangeCommand struct {
	seg    *Segmentation
	id     string
	before Properties
	after  Properties
}

func newPropertyChangeCommand(seg *Segmentation, id string, props Properties) *propertyChangeCommand {
	cmd := &propertyChangeCommand{seg: seg, id: id, after: props}
	cmd.before, _ = seg.Properties(id)
	seg.applyProperties(id, props)
	return cmd
}

func (c *propertyChangeCommand) Undo() { c.seg.applyProperties(c.id, c.before) }
func (c *propertyChangeCommand) Redo() { c.seg.applyProperties(c.id, c.after) }

// MergeWith compresses consecutive property edits of the same segment into
// one entry spanning first-before to last-after, e.g. dragging a color
// slider.
func (c *propertyChangeCommand) MergeWith(next undo.Command) bool {
	pc, ok := next.(*propertyChangeCommand)
	if !ok || pc.id != c.id {
		return false
	}
	c.after = pc.after
	return true
}

func (c *propertyChangeCommand) Obsolete() bool { return c.before == c.after }
func (c *propertyChangeCommand) Text() string {
	return fmt.Sprintf("change segment %s properties", c.id)
}

// --- label field batch ---

// labelMapBatchCommand holds compressed before/after snapshots of the shared
// label field around one logical edit (a brush apply, a stamped glyph run).
// Unlike the registry commands it is built around an already-performed edit,
// so Push never re-applies anything here either.
type labelMapBatchCommand struct {
	seg    *Segmentation
	before []byte
	after  []byte
}

func (c *labelMapBatchCommand) Undo() { c.restore(c.before) }
func (c *labelMapBatchCommand) Redo() { c.restore(c.after) }

func (c *labelMapBatchCommand) restore(blob []byte) {
	unblock := c.seg.blockNotify()
	restoreField(c.seg, blob)
	unblock()
	c.seg.NotifyModified()
}

func (c *labelMapBatchCommand) MergeWith(undo.Command) bool { return false }
func (c *labelMapBatchCommand) Obsolete() bool              { return bytes.Equal(c.before, c.after) }
func (c *labelMapBatchCommand) Text() string                { return "edit label field" }

// RecordEdits runs fn, capturing the shared label field before and after so
// the net voxel effect lands on the attached undo stack as one entry.  With
// no stack attached, or before any segment exists, fn simply runs.  Edits
// that change nothing push nothing.
func RecordEdits(seg *Segmentation, fn func()) {
	id := seg.FirstSegmentID()
	if seg.UndoStack() == nil || id == "" {
		fn()
		return
	}
	cmd := &labelMapBatchCommand{
		seg:    seg,
		before: captureField(seg.SegmentLabelmap(id)),
	}
	fn()
	cmd.after = captureField(seg.SegmentLabelmap(id))
	if cmd.Obsolete() {
		return
	}
	seg.pushUndo(cmd)
}
