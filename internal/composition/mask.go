package composition

// MaskShape identifies the geometry of a mask.
type MaskShape string

const (
	MaskRectangle  MaskShape = "rectangle"
	MaskEllipse    MaskShape = "ellipse"
	MaskBezierPath MaskShape = "bezier_path"
	MaskLuminosity MaskShape = "luminosity"
)

// MaskBlend controls how a mask combines with the masks before it in
// the clip's mask list.
type MaskBlend string

const (
	MaskBlendAdd        MaskBlend = "add"
	MaskBlendSubtract   MaskBlend = "subtract"
	MaskBlendIntersect  MaskBlend = "intersect"
	MaskBlendDifference MaskBlend = "difference"
)

// Point is a normalized coordinate in [0,1] frame space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a normalized rectangle in frame space.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Mask limits where a clip's mask-scoped effects apply. Masks are
// evaluated in list order and combined pairwise with their blend rule,
// before any effect stage runs.
type Mask struct {
	ID        string    `json:"id"`
	Shape     MaskShape `json:"shape"`
	Blend     MaskBlend `json:"blend"`
	Bounds    Rect      `json:"bounds"`
	Path      []Point   `json:"path,omitempty"` // bezier_path only
	Feather   float64   `json:"feather"`
	Expansion float64   `json:"expansion"`
	Inverted  bool      `json:"inverted"`
	Enabled   bool      `json:"enabled"`
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	c := *m
	if len(m.Path) > 0 {
		c.Path = make([]Point, len(m.Path))
		copy(c.Path, m.Path)
	}
	return &c
}
