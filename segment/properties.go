package segment

// Properties is the value snapshot of one segment's metadata.  Commands
// capture and restore these wholesale, so they must stay plain data with no
// references into the registry.
type Properties struct {
	Name           string
	Color          [3]float64
	LabelValue     uint64
	TerminologyTag string
}

// defaultPalette supplies segment colors when the caller specifies none.
// Muted anatomy-style colors, cycled by label value.
var defaultPalette = [][3]float64{
	{0.5, 0.68, 0.5},
	{0.95, 0.84, 0.57},
	{0.34, 0.57, 0.79},
	{0.76, 0.41, 0.35},
	{0.9, 0.78, 0.64},
	{0.57, 0.48, 0.69},
	{0.68, 0.69, 0.55},
	{0.87, 0.55, 0.6},
	{0.47, 0.69, 0.7},
	{0.9, 0.66, 0.43},
}

func paletteColor(labelValue uint64) [3]float64 {
	if labelValue == 0 {
		return defaultPalette[0]
	}
	return defaultPalette[int((labelValue-1)%uint64(len(defaultPalette)))]
}

// Segment pairs an id with its properties.  Segments are lightweight value
// records; they never own voxel storage (see Segmentation's shared label
// field).
type Segment struct {
	id    string
	props Properties
}

// ID returns the segment's unique id within its Segmentation.
func (s *Segment) ID() string { return s.id }

// Properties returns a copy of the segment's metadata.
func (s *Segment) Properties() Properties { return s.props }

// LabelValue returns the voxel value encoding this segment.
func (s *Segment) LabelValue() uint64 { return s.props.LabelValue }

// Name returns the display name.
func (s *Segment) Name() string { return s.props.Name }
