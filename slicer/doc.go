/*
	Package slicer holds the core types shared across the segmentation
	editing engine: inclusive voxel extents, dense label and boolean
	fields over those extents, leveled logging, and serialization with
	optional compression and checksums.  Higher-level packages (segment,
	undo, editor, segio) build on these primitives and should not
	duplicate extent or index arithmetic.
*/
package slicer
