/*
	Package editor ties the segmentation model, the modifier, and the undo
	stack into the facade an application drives: one active segmentation at
	a time, with history cleared on every switch.
*/
package editor

import (
	"fmt"
	"io"
	"os"

	"github.com/zhuczhuc/trame-slicer-sub000/segment"
	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
	"github.com/zhuczhuc/trame-slicer-sub000/undo"
)

// SegmentationEditor orchestrates editing of one active segmentation.
// History is not transferable across segmentations, so activating a
// different one clears the undo stack.
type SegmentationEditor struct {
	cfg *Config

	seg   *segment.Segmentation
	mod   *segment.Modifier
	stack *undo.Stack
	cache *segment.MaskCache

	editLog     *segment.EditLog
	editLogFile io.WriteCloser
}

// New creates an editor from the given config; nil gets all defaults.
func New(cfg *Config) (*SegmentationEditor, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	e := &SegmentationEditor{
		cfg:   cfg,
		stack: undo.NewStack(cfg.Undo.Limit),
		cache: segment.NewMaskCache(cfg.Cache.RegionMaskMB),
	}
	if cfg.EditLog.Path != "" {
		f, err := os.OpenFile(cfg.EditLog.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("unable to open edit log: %v", err)
		}
		e.editLogFile = f
		e.editLog = segment.NewEditLog(f)
	}
	return e, nil
}

// Close releases the active segmentation and any open edit log.
func (e *SegmentationEditor) Close() error {
	e.deactivate()
	if e.editLogFile != nil {
		return e.editLogFile.Close()
	}
	return nil
}

func (e *SegmentationEditor) deactivate() {
	if e.mod != nil {
		e.mod.Close()
		e.mod = nil
	}
	if e.seg != nil {
		e.seg.SetUndoStack(nil)
		e.seg = nil
	}
}

// SetActiveSegmentation makes the given segmentation the edit target,
// releasing any previous one and clearing the undo history.  The first
// segment, if any, becomes active.  Pass nil to just release.
func (e *SegmentationEditor) SetActiveSegmentation(seg *segment.Segmentation) {
	if e.seg == seg {
		return
	}
	e.deactivate()
	e.stack.Clear()
	if seg == nil {
		return
	}

	e.seg = seg
	seg.SetUndoStack(e.stack)
	e.mod = segment.NewModifier(seg)
	e.mod.Region().UseCache(e.cache)
	e.mod.SetEditLog(e.editLog)
	e.mod.SetActiveSegmentID(seg.FirstSegmentID())
	seg.SetActiveSegmentID(seg.FirstSegmentID())
	slicer.Infof("activated segmentation with %d segments\n", seg.NumSegments())
}

// Segmentation returns the active segmentation, or nil.
func (e *SegmentationEditor) Segmentation() *segment.Segmentation { return e.seg }

// Modifier returns the modifier for the active segmentation, or nil.
func (e *SegmentationEditor) Modifier() *segment.Modifier { return e.mod }

// UndoStack returns the editor's undo stack.
func (e *SegmentationEditor) UndoStack() *undo.Stack { return e.stack }

// Undo reverses the most recent recorded edit.
func (e *SegmentationEditor) Undo() { e.stack.Undo() }

// Redo re-applies the most recently undone edit.
func (e *SegmentationEditor) Redo() { e.stack.Redo() }

// RecordOperation runs do and records it as a custom history entry
// reversed by undoFn, for application-level operations the engine does not
// model itself (display toggles, effect parameter flips).  Both closures
// must be safe to invoke repeatedly.
func (e *SegmentationEditor) RecordOperation(name string, do, undoFn func()) {
	do()
	e.stack.Push(&undo.CallbackCommand{
		Name:     name,
		RedoFunc: do,
		UndoFunc: undoFn,
	})
}

// AddSegment adds a segment to the active segmentation and makes it the
// edit target.
func (e *SegmentationEditor) AddSegment(opts segment.AddSegmentOptions) (string, error) {
	if e.seg == nil {
		return "", fmt.Errorf("no active segmentation")
	}
	id, err := e.seg.AddEmptySegment(opts)
	if err != nil {
		return "", err
	}
	e.SetActiveSegment(id)
	return id, nil
}

// RemoveSegment removes a segment from the active segmentation.
func (e *SegmentationEditor) RemoveSegment(id string) {
	if e.seg != nil {
		e.seg.RemoveSegment(id)
	}
}

// SetActiveSegment selects the segment receiving edits on both the
// segmentation and the modifier.
func (e *SegmentationEditor) SetActiveSegment(id string) {
	if e.seg == nil {
		return
	}
	e.seg.SetActiveSegmentID(id)
	e.mod.SetActiveSegmentID(id)
}
