package composition

// Param is one named effect parameter. Parameters are kept as an
// ordered list rather than a map: parameter order feeds into filter
// generation and must survive serialization byte-for-byte.
type Param struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Effect is a single processing step attached to a clip. Effects apply
// in the order they sit in the clip's effect list; that order is part
// of the clip's identity and is preserved across edits.
type Effect struct {
	ID      string  `json:"id"`
	Kind    string  `json:"kind"`
	Enabled bool    `json:"enabled"`
	Params  []Param `json:"params"`
}

// Param returns the named parameter's value, or def when absent.
func (e *Effect) Param(name string, def float64) float64 {
	for _, p := range e.Params {
		if p.Name == name {
			return p.Value
		}
	}
	return def
}

// SetParam updates the named parameter in place, appending it when it
// does not exist yet. Existing parameter order is untouched.
func (e *Effect) SetParam(name string, value float64) {
	for i, p := range e.Params {
		if p.Name == name {
			e.Params[i].Value = value
			return
		}
	}
	e.Params = append(e.Params, Param{Name: name, Value: value})
}

// Clone returns a deep copy of the effect.
func (e *Effect) Clone() *Effect {
	c := &Effect{ID: e.ID, Kind: e.Kind, Enabled: e.Enabled}
	if len(e.Params) > 0 {
		c.Params = make([]Param, len(e.Params))
		copy(c.Params, e.Params)
	}
	return c
}
