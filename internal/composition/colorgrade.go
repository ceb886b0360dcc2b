package composition

// Wheel is one lift/gamma/gain color wheel: per-channel offsets plus a
// master amount.
type Wheel struct {
	R      float64 `json:"r"`
	G      float64 `json:"g"`
	B      float64 `json:"b"`
	Master float64 `json:"master"`
}

// CurvePoint is one control point of a per-channel tone curve, both
// axes normalized to [0,1].
type CurvePoint struct {
	In  float64 `json:"in"`
	Out float64 `json:"out"`
}

// ChannelCurves holds optional per-channel tone curves.
type ChannelCurves struct {
	Master []CurvePoint `json:"master,omitempty"`
	Red    []CurvePoint `json:"red,omitempty"`
	Green  []CurvePoint `json:"green,omitempty"`
	Blue   []CurvePoint `json:"blue,omitempty"`
}

// ColorGrade is a clip's color adjustment. The zero adjustments are
// defined by NeutralGrade; HasChanges compares against those defaults
// by value so the compiler can skip grades that do nothing.
type ColorGrade struct {
	Lift  Wheel `json:"lift"`
	Gamma Wheel `json:"gamma"`
	Gain  Wheel `json:"gain"`

	Saturation  float64 `json:"saturation"`
	Exposure    float64 `json:"exposure"`
	Contrast    float64 `json:"contrast"`
	Temperature float64 `json:"temperature"`
	Tint        float64 `json:"tint"`

	Curves  *ChannelCurves `json:"curves,omitempty"`
	LUTPath string         `json:"lut_path,omitempty"`
}

// NeutralGrade returns the identity grade.
func NeutralGrade() ColorGrade {
	return ColorGrade{
		Lift:       Wheel{Master: 0},
		Gamma:      Wheel{R: 1, G: 1, B: 1, Master: 1},
		Gain:       Wheel{R: 1, G: 1, B: 1, Master: 1},
		Saturation: 1,
		Contrast:   1,
	}
}

// HasChanges reports whether the grade differs from NeutralGrade by
// value. Derived purely from field equality; there is no dirty flag to
// fall out of sync.
func (g ColorGrade) HasChanges() bool {
	n := NeutralGrade()
	if g.Lift != n.Lift || g.Gamma != n.Gamma || g.Gain != n.Gain {
		return true
	}
	if g.Saturation != n.Saturation || g.Exposure != n.Exposure ||
		g.Contrast != n.Contrast || g.Temperature != n.Temperature || g.Tint != n.Tint {
		return true
	}
	if g.LUTPath != "" {
		return true
	}
	if g.Curves != nil && g.Curves.hasPoints() {
		return true
	}
	return false
}

func (c *ChannelCurves) hasPoints() bool {
	return len(c.Master) > 0 || len(c.Red) > 0 || len(c.Green) > 0 || len(c.Blue) > 0
}

// Clone returns a deep copy of the grade.
func (g ColorGrade) Clone() ColorGrade {
	c := g
	if g.Curves != nil {
		cc := ChannelCurves{
			Master: append([]CurvePoint(nil), g.Curves.Master...),
			Red:    append([]CurvePoint(nil), g.Curves.Red...),
			Green:  append([]CurvePoint(nil), g.Curves.Green...),
			Blue:   append([]CurvePoint(nil), g.Curves.Blue...),
		}
		c.Curves = &cc
	}
	return c
}
