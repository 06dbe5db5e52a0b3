package editor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zhuczhuc/trame-slicer-sub000/segment"
	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
)

type fixedGeometry struct {
	extent slicer.Extent
}

func (g fixedGeometry) Extent() slicer.Extent { return g.extent }

func newSegmentation() *segment.Segmentation {
	return segment.NewSegmentation(fixedGeometry{extent: slicer.Extent{0, 3, 0, 3, 0, 3}})
}

func TestActivationClearsHistory(t *testing.T) {
	e, err := New(nil)
	if err != nil {
		t.Fatalf("editor creation failed: %v\n", err)
	}
	defer e.Close()

	first := newSegmentation()
	e.SetActiveSegmentation(first)
	if _, err := e.AddSegment(segment.AddSegmentOptions{}); err != nil {
		t.Fatalf("add failed: %v\n", err)
	}
	if !e.UndoStack().CanUndo() {
		t.Fatalf("expected undoable history after add\n")
	}

	second := newSegmentation()
	e.SetActiveSegmentation(second)
	if e.UndoStack().CanUndo() {
		t.Errorf("history must be cleared when the segmentation changes\n")
	}
	if e.Segmentation() != second {
		t.Errorf("active segmentation not switched\n")
	}
}

func TestActivationSelectsFirstSegment(t *testing.T) {
	e, _ := New(nil)
	defer e.Close()

	seg := newSegmentation()
	id, _ := seg.AddEmptySegment(segment.AddSegmentOptions{})
	seg.AddEmptySegment(segment.AddSegmentOptions{})

	e.SetActiveSegmentation(seg)
	if e.Modifier().ActiveSegmentID() != id {
		t.Errorf("modifier active id %q, expected first segment %q\n",
			e.Modifier().ActiveSegmentID(), id)
	}
	if seg.ActiveSegmentID() != id {
		t.Errorf("segmentation active id %q, expected %q\n", seg.ActiveSegmentID(), id)
	}
}

func TestEditUndoThroughEditor(t *testing.T) {
	e, _ := New(nil)
	defer e.Close()

	seg := newSegmentation()
	e.SetActiveSegmentation(seg)
	id, err := e.AddSegment(segment.AddSegmentOptions{})
	if err != nil {
		t.Fatalf("add failed: %v\n", err)
	}

	mask := seg.NewModifierField()
	mask.Set(1, 2, 3, true)
	if changed := e.Modifier().ApplyLabelmap(mask); changed != 1 {
		t.Fatalf("paint changed %d voxels, expected 1\n", changed)
	}

	e.Undo()
	if got := seg.SegmentLabelmap(id).Value(1, 2, 3); got != 0 {
		t.Errorf("undo left voxel at %d\n", got)
	}
	e.Redo()
	if got := seg.SegmentLabelmap(id).Value(1, 2, 3); got != seg.LabelValue(id) {
		t.Errorf("redo did not restore the painted voxel\n")
	}
}

func TestRecordOperation(t *testing.T) {
	e, _ := New(nil)
	defer e.Close()

	visible := false
	show := func() { visible = true }
	hide := func() { visible = false }

	e.RecordOperation("show segment surface", show, hide)
	if !visible {
		t.Fatalf("operation closure not invoked on record\n")
	}
	if !e.UndoStack().CanUndo() {
		t.Fatalf("recorded operation missing from history\n")
	}

	e.Undo()
	if visible {
		t.Errorf("undo did not invoke the reversing closure\n")
	}
	e.Redo()
	if !visible {
		t.Errorf("redo did not re-invoke the operation closure\n")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "editor.toml")
	content := `
[logging]
logfile = "logs/segmentation.log"
max_log_size = 100
max_log_age = 7

[undo]
limit = 50

[cache]
region_mask_mb = 8

[editlog]
path = "edits.log"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("could not write config: %v\n", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v\n", err)
	}
	if cfg.Undo.Limit != 50 {
		t.Errorf("undo limit %d, expected 50\n", cfg.Undo.Limit)
	}
	if cfg.Cache.RegionMaskMB != 8 {
		t.Errorf("cache size %d, expected 8\n", cfg.Cache.RegionMaskMB)
	}
	if cfg.Logging.MaxSize != 100 || cfg.Logging.MaxAge != 7 {
		t.Errorf("bad logging config: %+v\n", cfg.Logging)
	}
	want := filepath.Join(dir, "logs", "segmentation.log")
	if cfg.Logging.Logfile != want {
		t.Errorf("logfile %q, expected %q\n", cfg.Logging.Logfile, want)
	}
	if cfg.EditLog.Path != filepath.Join(dir, "edits.log") {
		t.Errorf("edit log path %q not resolved against config dir\n", cfg.EditLog.Path)
	}
}

func TestEditLogWiring(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{EditLog: EditLogConfig{Path: filepath.Join(dir, "edits.log")}}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("editor creation failed: %v\n", err)
	}

	seg := newSegmentation()
	e.SetActiveSegmentation(seg)
	e.AddSegment(segment.AddSegmentOptions{})
	mask := seg.NewModifierField()
	mask.Set(0, 0, 0, true)
	e.Modifier().ApplyLabelmap(mask)

	if err := e.Close(); err != nil {
		t.Fatalf("close failed: %v\n", err)
	}

	f, err := os.Open(cfg.EditLog.Path)
	if err != nil {
		t.Fatalf("edit log not created: %v\n", err)
	}
	defer f.Close()
	records, err := segment.ReadEditRecords(f)
	if err != nil {
		t.Fatalf("reading edit log failed: %v\n", err)
	}
	if len(records) != 1 || records[0].Changed != 1 {
		t.Errorf("got edit records %+v, expected one single-voxel record\n", records)
	}
}
