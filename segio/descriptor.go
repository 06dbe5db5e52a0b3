package segio

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zhuczhuc/trame-slicer-sub000/segment"
	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
)

// Descriptor is the JSON interchange form of a segmentation's metadata,
// without voxel data.  External tooling can edit names, colors, and
// terminology tags and feed the result back through ApplyDescriptor.
type Descriptor struct {
	Version    string        `json:"version"`
	Extent     [6]int32      `json:"extent"`
	Generation uint64        `json:"generation"`
	Segments   []SegmentInfo `json:"segments"`
}

const descriptorSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["version", "extent", "segments"],
	"properties": {
		"version": {"type": "string"},
		"extent": {
			"type": "array",
			"items": {"type": "integer"},
			"minItems": 6,
			"maxItems": 6
		},
		"generation": {"type": "integer", "minimum": 0},
		"segments": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "label_value"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"name": {"type": "string"},
					"color": {
						"type": "array",
						"items": {"type": "number", "minimum": 0, "maximum": 1},
						"minItems": 3,
						"maxItems": 3
					},
					"label_value": {"type": "integer", "minimum": 1},
					"terminology": {"type": "string"}
				}
			}
		}
	}
}`

var descriptorSchemaCompiled = jsonschema.MustCompileString("descriptor.json", descriptorSchema)

// NewDescriptor snapshots the segmentation's metadata.
func NewDescriptor(seg *segment.Segmentation) Descriptor {
	d := Descriptor{
		Version:    slicer.VersionString(),
		Generation: seg.Generation(),
		Segments:   segmentTable(seg),
	}
	if first := seg.FirstSegmentID(); first != "" {
		d.Extent = seg.SegmentLabelmap(first).Extent()
	}
	return d
}

// Bytes renders the descriptor as indented JSON.
func (d Descriptor) Bytes() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// ParseDescriptor validates JSON against the descriptor schema before
// decoding it, so malformed tooling output is rejected with a pointed
// error instead of producing half-filled structs.
func ParseDescriptor(data []byte) (Descriptor, error) {
	var d Descriptor
	var doc interface{}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return d, fmt.Errorf("descriptor is not valid JSON: %v", err)
	}
	if err := descriptorSchemaCompiled.Validate(doc); err != nil {
		return d, fmt.Errorf("descriptor failed validation: %v", err)
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, err
	}
	return d, nil
}

// ApplyDescriptor writes the descriptor's per-segment metadata onto matching
// live segments.  Unknown ids are skipped with a warning; label values are
// left untouched since changing them would reassign voxels.
func ApplyDescriptor(seg *segment.Segmentation, d Descriptor) {
	for _, s := range d.Segments {
		props, found := seg.Properties(s.ID)
		if !found {
			slicer.Warningf("descriptor names unknown segment %q, skipping\n", s.ID)
			continue
		}
		props.Name = s.Name
		props.Color = s.Color
		props.TerminologyTag = s.Terminology
		seg.SetProperties(s.ID, props)
	}
}
