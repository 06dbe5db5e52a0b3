/*
	Package undo provides a command stack with merge and obsolescence
	support.  Commands perform their edit on construction ("redo on
	creation"); the stack only replays them.  Pushing a command first asks
	the top of the stack to absorb it, so compressible interactions like a
	drag of property changes or an add immediately followed by a remove
	collapse instead of accumulating history entries.
*/
package undo

import (
	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"

	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
)

// Command is one unit of reversible state change.
type Command interface {
	// Undo reverses the state change this command performed.
	Undo()

	// Redo re-applies the state change.
	Redo()

	// MergeWith tries to absorb the given later command into this one,
	// returning true on success.  After a successful merge the absorbed
	// command is discarded, and this command is dropped too if it reports
	// itself Obsolete.
	MergeWith(next Command) bool

	// Obsolete reports that the command has no remaining net effect.
	Obsolete() bool

	// Text is a short human-readable description for logs.
	Text() string
}

// CallbackCommand delegates to undo/redo closures.  The redo closure is NOT
// invoked on construction; callers perform the initial edit themselves.
type CallbackCommand struct {
	UndoFunc func()
	RedoFunc func()
	Name     string
}

func (c *CallbackCommand) Undo()                   { c.UndoFunc() }
func (c *CallbackCommand) Redo()                   { c.RedoFunc() }
func (c *CallbackCommand) MergeWith(Command) bool  { return false }
func (c *CallbackCommand) Obsolete() bool          { return false }
func (c *CallbackCommand) Text() string            { return c.Name }

// Stack holds commands with a cursor between the undone and redone halves.
// It is not safe for concurrent use; the editing engine is single-threaded.
type Stack struct {
	cmds  []Command
	index int // number of commands currently applied
	limit int // max commands retained, 0 = unlimited

	nextHandle int
	onChanged  map[int]func()
}

// NewStack creates a command stack retaining at most limit commands.
// A limit of 0 means unlimited history.
func NewStack(limit int) *Stack {
	return &Stack{limit: limit, onChanged: make(map[int]func())}
}

// OnIndexChanged registers a callback fired after every push/undo/redo/clear
// and returns a handle for removal.
func (s *Stack) OnIndexChanged(fn func()) int {
	s.nextHandle++
	s.onChanged[s.nextHandle] = fn
	return s.nextHandle
}

// RemoveOnIndexChanged unregisters a callback by handle.
func (s *Stack) RemoveOnIndexChanged(handle int) {
	delete(s.onChanged, handle)
}

func (s *Stack) notify() {
	for _, fn := range s.onChanged {
		fn()
	}
}

// Push records a command whose edit has already been performed.  Any redone
// tail beyond the cursor is discarded first.  If the top command absorbs the
// new one, the stack is compressed instead of grown.
func (s *Stack) Push(cmd Command) {
	s.cmds = s.cmds[:s.index]

	if cmd.Obsolete() {
		s.notify()
		return
	}

	merged := false
	if s.index > 0 {
		top := s.cmds[s.index-1]
		if top.MergeWith(cmd) {
			merged = true
			if top.Obsolete() {
				s.cmds = s.cmds[:s.index-1]
				s.index--
			}
		}
	}
	if !merged {
		s.cmds = append(s.cmds, cmd)
		s.index++
	}

	if s.limit > 0 {
		for len(s.cmds) > s.limit {
			s.cmds = s.cmds[1:]
			s.index--
		}
	}

	slicer.Debugf("undo stack: pushed %q, %d entries, ~%s\n",
		cmd.Text(), len(s.cmds), humanize.Bytes(uint64(s.MemoryUsage())))
	s.notify()
}

// Undo reverses the command below the cursor.  No-op if nothing to undo.
func (s *Stack) Undo() {
	if !s.CanUndo() {
		return
	}
	s.index--
	s.cmds[s.index].Undo()
	s.notify()
}

// Redo re-applies the command above the cursor.  No-op if nothing to redo.
func (s *Stack) Redo() {
	if !s.CanRedo() {
		return
	}
	s.cmds[s.index].Redo()
	s.index++
	s.notify()
}

func (s *Stack) CanUndo() bool { return s.index > 0 }
func (s *Stack) CanRedo() bool { return s.index < len(s.cmds) }

// Count returns the number of commands held, applied or not.
func (s *Stack) Count() int { return len(s.cmds) }

// Index returns the number of commands currently applied.
func (s *Stack) Index() int { return s.index }

// Clear drops all history.  Used when the active segmentation changes since
// history is not transferable across segmentations.
func (s *Stack) Clear() {
	if len(s.cmds) == 0 && s.index == 0 {
		return
	}
	s.cmds = nil
	s.index = 0
	s.notify()
}

// MemoryUsage estimates the bytes held by this stack and its commands,
// including captured snapshots.
func (s *Stack) MemoryUsage() int64 {
	n := size.Of(s)
	if n < 0 {
		return 0
	}
	return int64(n)
}
