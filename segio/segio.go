/*
	Package segio stores and loads segmentations: a compact binary envelope
	for the label field plus segment table, and a JSON descriptor for
	interchange with external tooling.
*/
package segio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tinylib/msgp/msgp"

	"github.com/zhuczhuc/trame-slicer-sub000/segment"
	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
)

// envelope layout: magic, format version byte, then two length-delimited
// blocks: a msgpack segment table and the serialized label field.
var magic = [4]byte{'S', 'L', 'S', 'G'}

const formatVersion = 1

// SegmentInfo is one segment table row.
type SegmentInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Color       [3]float64 `json:"color"`
	LabelValue  uint64     `json:"label_value"`
	Terminology string     `json:"terminology,omitempty"`
}

type header struct {
	extent     slicer.Extent
	generation uint64
	segments   []SegmentInfo
}

func (h header) marshalMsg(b []byte) []byte {
	b = msgp.AppendArrayHeader(b, 3)
	b = msgp.AppendArrayHeader(b, 6)
	for _, bound := range h.extent {
		b = msgp.AppendInt64(b, int64(bound))
	}
	b = msgp.AppendUint64(b, h.generation)
	b = msgp.AppendArrayHeader(b, uint32(len(h.segments)))
	for _, s := range h.segments {
		b = msgp.AppendArrayHeader(b, 5)
		b = msgp.AppendString(b, s.ID)
		b = msgp.AppendString(b, s.Name)
		for _, c := range s.Color {
			b = msgp.AppendFloat64(b, c)
		}
		b = msgp.AppendUint64(b, s.LabelValue)
		b = msgp.AppendString(b, s.Terminology)
	}
	return b
}

func (h *header) unmarshalMsg(b []byte) error {
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return err
	}
	if sz != 3 {
		return fmt.Errorf("bad header field count %d", sz)
	}
	if sz, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
		return err
	}
	if sz != 6 {
		return fmt.Errorf("bad extent length %d", sz)
	}
	for p := range h.extent {
		var bound int64
		if bound, b, err = msgp.ReadInt64Bytes(b); err != nil {
			return err
		}
		h.extent[p] = int32(bound)
	}
	if h.generation, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return err
	}
	var numSegments uint32
	if numSegments, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
		return err
	}
	h.segments = make([]SegmentInfo, numSegments)
	for n := range h.segments {
		s := &h.segments[n]
		if sz, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
			return err
		}
		if sz != 5 {
			return fmt.Errorf("bad segment row field count %d", sz)
		}
		if s.ID, b, err = msgp.ReadStringBytes(b); err != nil {
			return err
		}
		if s.Name, b, err = msgp.ReadStringBytes(b); err != nil {
			return err
		}
		for c := range s.Color {
			if s.Color[c], b, err = msgp.ReadFloat64Bytes(b); err != nil {
				return err
			}
		}
		if s.LabelValue, b, err = msgp.ReadUint64Bytes(b); err != nil {
			return err
		}
		if s.Terminology, b, err = msgp.ReadStringBytes(b); err != nil {
			return err
		}
	}
	return nil
}

func writeBlock(w io.Writer, data []byte) error {
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(data)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readBlock(r io.Reader) ([]byte, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return nil, err
	}
	data := make([]byte, binary.LittleEndian.Uint32(length[:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Export writes the segmentation to w: segment table, extent, and the label
// field compressed with the given scheme and checksummed.  Zstd gives the
// best ratio on label data; Snappy trades ratio for speed.
func Export(w io.Writer, seg *segment.Segmentation, compression slicer.Compression) error {
	first := seg.FirstSegmentID()
	if first == "" {
		return fmt.Errorf("nothing to export: segmentation has no segments")
	}
	lm := seg.SegmentLabelmap(first)

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{formatVersion}); err != nil {
		return err
	}

	h := header{
		extent:     lm.Extent(),
		generation: seg.Generation(),
		segments:   segmentTable(seg),
	}
	if err := writeBlock(w, h.marshalMsg(nil)); err != nil {
		return fmt.Errorf("unable to write segment table: %v", err)
	}

	raw, err := lm.MarshalBinary()
	if err != nil {
		return err
	}
	blob, err := slicer.SerializeData(raw, compression, slicer.CRC32)
	if err != nil {
		return fmt.Errorf("unable to serialize label field: %v", err)
	}
	if err := writeBlock(w, blob); err != nil {
		return fmt.Errorf("unable to write label field: %v", err)
	}
	slicer.Debugf("exported segmentation: %d segments, %s voxels, %d byte payload\n",
		len(h.segments), lm.Extent(), len(blob))
	return nil
}

func segmentTable(seg *segment.Segmentation) []SegmentInfo {
	ids := seg.SegmentIDs()
	table := make([]SegmentInfo, 0, len(ids))
	for _, id := range ids {
		props, found := seg.Properties(id)
		if !found {
			continue
		}
		table = append(table, SegmentInfo{
			ID:          id,
			Name:        props.Name,
			Color:       props.Color,
			LabelValue:  props.LabelValue,
			Terminology: props.TerminologyTag,
		})
	}
	return table
}

// fixedGeometry replays the stored extent as the reference geometry of an
// imported segmentation.
type fixedGeometry struct {
	extent slicer.Extent
}

func (g fixedGeometry) Extent() slicer.Extent { return g.extent }

// Import reads a segmentation written by Export.  The returned segmentation
// uses the stored extent as its reference geometry and has no undo stack
// attached.
func Import(r io.Reader) (*segment.Segmentation, error) {
	var preamble [5]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return nil, err
	}
	if [4]byte{preamble[0], preamble[1], preamble[2], preamble[3]} != magic {
		return nil, fmt.Errorf("not a segmentation file: bad magic %q", preamble[:4])
	}
	if preamble[4] != formatVersion {
		return nil, fmt.Errorf("unsupported segmentation format version %d", preamble[4])
	}

	headerData, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read segment table: %v", err)
	}
	var h header
	if err := h.unmarshalMsg(headerData); err != nil {
		return nil, fmt.Errorf("corrupt segment table: %v", err)
	}

	blob, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read label field: %v", err)
	}
	raw, _, err := slicer.DeserializeData(blob, true)
	if err != nil {
		return nil, fmt.Errorf("corrupt label field: %v", err)
	}
	var field slicer.LabelField
	if err := field.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	if !field.Extent().Equals(h.extent) {
		return nil, fmt.Errorf("label field extent %s disagrees with header %s",
			field.Extent(), h.extent)
	}

	seg := segment.NewSegmentation(fixedGeometry{extent: h.extent})
	for _, s := range h.segments {
		id, err := seg.AddEmptySegment(segment.AddSegmentOptions{
			ID:         s.ID,
			Name:       s.Name,
			Color:      &s.Color,
			LabelValue: s.LabelValue,
		})
		if err != nil {
			return nil, fmt.Errorf("unable to restore segment %q: %v", s.ID, err)
		}
		if s.Terminology != "" {
			props, _ := seg.Properties(id)
			props.TerminologyTag = s.Terminology
			seg.SetProperties(id, props)
		}
	}
	if first := seg.FirstSegmentID(); first != "" {
		seg.SetSegmentLabelmap(first, &field)
	}
	return seg, nil
}
