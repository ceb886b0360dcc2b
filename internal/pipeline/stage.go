// Package pipeline compiles a composition snapshot into an ordered,
// declarative description of processing stages. The description is a
// typed intermediate representation; nothing here depends on the
// external engine's filter syntax except the renderer at the boundary.
package pipeline

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/mantonx/cutline/internal/composition"
	"github.com/mantonx/cutline/internal/timebase"
)

// StageKind names one processing step of a compiled pipeline.
type StageKind string

const (
	StageSource    StageKind = "source"
	StageMask      StageKind = "mask"
	StageEffect    StageKind = "effect"
	StageBlend     StageKind = "blend"
	StageGrade     StageKind = "grade"
	StageOverlay   StageKind = "overlay"
	StageRemap     StageKind = "remap"
	StageCrossfade StageKind = "crossfade"
	StageGain      StageKind = "gain"
	StagePan       StageKind = "pan"
	StageMix       StageKind = "mix"
)

// StreamLabel names an intermediate stream between stages.
type StreamLabel string

// Param is one stage parameter. Params are an ordered list; emit order
// is part of the description's deterministic identity.
type Param struct {
	Key   string
	Value string
}

// Stage is one processing step with explicit input and output streams.
type Stage struct {
	Kind   StageKind
	Inputs []StreamLabel
	Output StreamLabel
	Params []Param
}

// Input is one external media input consumed by the pipeline, in
// argument order.
type Input struct {
	Index  int
	Path   string
	Source timebase.Range
	Audio  bool
}

// Description is a fully compiled pipeline: the media inputs, the
// ordered stages, and the final video/audio stream labels. For one
// project snapshot and target range the description is byte-identical
// across compilations.
type Description struct {
	ProjectID string
	Range     timebase.Range
	Settings  composition.Settings
	Inputs    []Input
	Stages    []Stage
	VideoOut  StreamLabel
	AudioOut  StreamLabel
}

// fnum formats a float deterministically for stage parameters.
func fnum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Serialize writes the description in a stable textual form, used for
// caching keys and determinism tests.
func (d *Description) Serialize() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "pipeline project=%s range=%d:%d size=%dx%d fps=%s rate=%d\n",
		d.ProjectID, d.Range.Start, d.Range.End,
		d.Settings.Width, d.Settings.Height, fnum(d.Settings.FrameRate), d.Settings.SampleRate)
	for _, in := range d.Inputs {
		fmt.Fprintf(&b, "input %d path=%s source=%d:%d audio=%t\n",
			in.Index, in.Path, in.Source.Start, in.Source.End, in.Audio)
	}
	for _, s := range d.Stages {
		fmt.Fprintf(&b, "stage %s in=", s.Kind)
		for i, l := range s.Inputs {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(string(l))
		}
		fmt.Fprintf(&b, " out=%s", s.Output)
		for _, p := range s.Params {
			fmt.Fprintf(&b, " %s=%s", p.Key, p.Value)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "out video=%s audio=%s\n", d.VideoOut, d.AudioOut)
	return b.Bytes()
}

// StageCount returns the number of emitted stages. Pruned no-op stages
// never appear here; emitted stage count is part of the external
// engine's invocation cost.
func (d *Description) StageCount() int { return len(d.Stages) }
