package pipeline

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/cutline/internal/composition"
	"github.com/mantonx/cutline/internal/timebase"
)

// AssetResolver maps a clip's asset reference to a playable path. A
// missing or offline asset aborts compilation of that job only.
type AssetResolver interface {
	ResolvePath(assetID string) (string, error)
}

// CompilationError reports a clip that cannot be compiled, typically a
// media clip whose asset reference resolves to nothing.
type CompilationError struct {
	ClipID string
	Reason string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("cannot compile clip %s: %s", e.ClipID, e.Reason)
}

// Compiler turns a composition snapshot into a pipeline Description.
// Compilation is pure: it never mutates the snapshot and the same
// snapshot plus target range always produces a byte-identical
// description.
type Compiler struct {
	logger hclog.Logger
	assets AssetResolver
}

// NewCompiler creates a compiler backed by the given asset resolver.
func NewCompiler(assets AssetResolver, logger hclog.Logger) *Compiler {
	return &Compiler{
		logger: logger.Named("compiler"),
		assets: assets,
	}
}

// Compile builds the pipeline description for the snapshot restricted
// to the target range. An empty target compiles the full project
// extent.
func (c *Compiler) Compile(snap *composition.Project, target timebase.Range) (*Description, error) {
	if target.Empty() {
		target = snap.Extent()
	}

	b := &builder{
		compiler: c,
		desc: &Description{
			ProjectID: snap.ID,
			Range:     target,
			Settings:  snap.Settings,
		},
	}

	videoOut, err := b.videoComposite(snap, target, 0)
	if err != nil {
		return nil, err
	}
	audioOut, err := b.audioMix(snap, target, 0)
	if err != nil {
		return nil, err
	}
	if audioOut == "" {
		audioOut = b.silence(snap, target)
	}

	b.desc.VideoOut = videoOut
	b.desc.AudioOut = audioOut

	c.logger.Debug("compiled pipeline",
		"project_id", snap.ID,
		"range", target.String(),
		"stages", b.desc.StageCount(),
		"inputs", len(b.desc.Inputs),
	)
	return b.desc, nil
}

// builder accumulates stages, inputs, and label counters during one
// compilation. Labels are assigned in walk order, which is what makes
// the output deterministic.
type builder struct {
	compiler *Compiler
	desc     *Description
	vseq     int
	aseq     int
}

func (b *builder) nextVideo() StreamLabel {
	l := StreamLabel(fmt.Sprintf("v%d", b.vseq))
	b.vseq++
	return l
}

func (b *builder) nextAudio() StreamLabel {
	l := StreamLabel(fmt.Sprintf("a%d", b.aseq))
	b.aseq++
	return l
}

func (b *builder) addInput(path string, source timebase.Range, audio bool) int {
	idx := len(b.desc.Inputs)
	b.desc.Inputs = append(b.desc.Inputs, Input{Index: idx, Path: path, Source: source, Audio: audio})
	return idx
}

func (b *builder) emit(s Stage) StreamLabel {
	b.desc.Stages = append(b.desc.Stages, s)
	return s.Output
}

// videoComposite builds the cross-track video composite for proj over
// target, bottom track first. offset shifts emitted timeline positions
// and is non-zero only while inlining a nested sequence.
func (b *builder) videoComposite(proj *composition.Project, target timebase.Range, offset timebase.Timestamp) (StreamLabel, error) {
	composite := b.emit(Stage{
		Kind:   StageSource,
		Output: b.nextVideo(),
		Params: []Param{
			{Key: "kind", Value: "canvas"},
			{Key: "size", Value: fmt.Sprintf("%dx%d", proj.Settings.Width, proj.Settings.Height)},
			{Key: "fps", Value: fnum(proj.Settings.FrameRate)},
			{Key: "duration_us", Value: fmt.Sprintf("%d", int64(target.Duration()))},
		},
	})

	for _, track := range proj.Tracks() {
		if track.Type != composition.TrackVideo && track.Type != composition.TrackText && track.Type != composition.TrackEffect {
			continue
		}
		if !track.Enabled || track.Muted {
			continue
		}

		// transitions keyed by their incoming clip: the blend of that
		// clip becomes a crossfade against the composite
		incoming := make(map[string]*composition.Transition)
		for _, tr := range track.Transitions() {
			incoming[tr.ToClipID] = tr
		}

		for _, clip := range track.Clips() {
			if !clip.Enabled || !clip.Range.Overlaps(target) {
				continue
			}
			next, err := b.clipChain(proj, track, clip, composite, incoming[clip.ID], target, offset)
			if err != nil {
				return "", err
			}
			composite = next
		}
	}
	return composite, nil
}

// clipChain emits the canonical per-clip stage order: mask stages,
// effect stages in attachment order, blend with the layers below,
// color grade, text overlay, speed remap. No-op stages are pruned, not
// emitted as identities.
func (b *builder) clipChain(proj *composition.Project, track *composition.Track, clip *composition.Clip, composite StreamLabel, tr *composition.Transition, target timebase.Range, offset timebase.Timestamp) (StreamLabel, error) {
	visible, _ := clip.Range.Intersect(target)
	placed := visible.Shift(offset)

	adjustment := clip.Payload.Kind == composition.ClipAdjustment

	var chain StreamLabel
	switch clip.Payload.Kind {
	case composition.ClipMedia:
		src, err := b.mediaSource(clip, visible, placed, false)
		if err != nil {
			return "", err
		}
		chain = src
	case composition.ClipText:
		chain = b.emit(Stage{
			Kind:   StageSource,
			Output: b.nextVideo(),
			Params: []Param{
				{Key: "kind", Value: "blank"},
				{Key: "size", Value: fmt.Sprintf("%dx%d", proj.Settings.Width, proj.Settings.Height)},
				{Key: "offset_us", Value: fmt.Sprintf("%d", int64(placed.Start))},
				{Key: "duration_us", Value: fmt.Sprintf("%d", int64(placed.Duration()))},
			},
		})
	case composition.ClipAdjustment:
		// an adjustment layer processes the composite itself
		chain = composite
	case composition.ClipNested:
		childTarget, ok := clip.Range.Intersect(target)
		if !ok {
			return composite, nil
		}
		inner, err := b.videoComposite(clip.Payload.Nested, childTarget.Shift(-clip.Range.Start), offset+clip.Range.Start)
		if err != nil {
			return "", err
		}
		chain = inner
	default:
		return "", &CompilationError{ClipID: clip.ID, Reason: fmt.Sprintf("unknown clip kind %q", clip.Payload.Kind)}
	}

	chain = b.maskStages(clip, chain)
	chain = b.effectStages(clip, chain)

	// blend with layers below; a registered transition on this clip's
	// incoming edge turns the blend into a crossfade. Adjustment
	// layers never blend, their chain already is the composite.
	if !adjustment {
		if tr != nil {
			chain = b.emit(Stage{
				Kind:   StageCrossfade,
				Inputs: []StreamLabel{composite, chain},
				Output: b.nextVideo(),
				Params: []Param{
					{Key: "transition", Value: string(tr.Kind)},
					{Key: "duration_us", Value: fmt.Sprintf("%d", int64(tr.Duration))},
					{Key: "offset_us", Value: fmt.Sprintf("%d", int64(placed.Start-tr.Duration))},
					{Key: "easing", Value: string(tr.Easing)},
				},
			})
		} else {
			chain = b.emit(Stage{
				Kind:   StageBlend,
				Inputs: []StreamLabel{composite, chain},
				Output: b.nextVideo(),
				Params: []Param{
					{Key: "offset_us", Value: fmt.Sprintf("%d", int64(placed.Start))},
					{Key: "opacity", Value: fnum(clipOpacity(clip, placed.Start))},
				},
			})
		}
	}

	if clip.Grade.HasChanges() {
		chain = b.gradeStage(clip, chain)
	}
	if clip.Payload.Kind == composition.ClipText && clip.Payload.Text != nil {
		chain = b.overlayStage(clip, chain)
	}
	if clip.Ramp != nil && clip.Ramp.Len() > 0 {
		chain = b.remapStage(clip, chain, false)
	}
	return chain, nil
}

func (b *builder) mediaSource(clip *composition.Clip, visible, placed timebase.Range, audio bool) (StreamLabel, error) {
	if clip.Source == nil || clip.Source.AssetID == "" {
		return "", &CompilationError{ClipID: clip.ID, Reason: "media clip has no source reference"}
	}
	path, err := b.compiler.assets.ResolvePath(clip.Source.AssetID)
	if err != nil {
		return "", &CompilationError{ClipID: clip.ID, Reason: err.Error()}
	}

	// the visible slice of the placement maps linearly onto the
	// source range
	headTrim := visible.Start - clip.Range.Start
	srcRange := timebase.Range{
		Start: clip.Source.Range.Start + headTrim,
		End:   clip.Source.Range.Start + headTrim + visible.Duration(),
	}
	idx := b.addInput(path, srcRange, audio)

	var out StreamLabel
	if audio {
		out = b.nextAudio()
	} else {
		out = b.nextVideo()
	}
	return b.emit(Stage{
		Kind:   StageSource,
		Output: out,
		Params: []Param{
			{Key: "kind", Value: "media"},
			{Key: "input", Value: fmt.Sprintf("%d", idx)},
			{Key: "trim_start_us", Value: fmt.Sprintf("%d", int64(srcRange.Start))},
			{Key: "trim_end_us", Value: fmt.Sprintf("%d", int64(srcRange.End))},
			{Key: "offset_us", Value: fmt.Sprintf("%d", int64(placed.Start))},
		},
	}), nil
}

func (b *builder) maskStages(clip *composition.Clip, chain StreamLabel) StreamLabel {
	for _, m := range clip.Masks {
		if !m.Enabled {
			continue
		}
		params := []Param{
			{Key: "shape", Value: string(m.Shape)},
			{Key: "blend", Value: string(m.Blend)},
			{Key: "x", Value: fnum(m.Bounds.X)},
			{Key: "y", Value: fnum(m.Bounds.Y)},
			{Key: "w", Value: fnum(m.Bounds.W)},
			{Key: "h", Value: fnum(m.Bounds.H)},
			{Key: "feather", Value: fnum(m.Feather)},
			{Key: "expansion", Value: fnum(m.Expansion)},
			{Key: "invert", Value: fmt.Sprintf("%t", m.Inverted)},
		}
		for _, pt := range m.Path {
			params = append(params, Param{Key: "pt", Value: fnum(pt.X) + ":" + fnum(pt.Y)})
		}
		chain = b.emit(Stage{
			Kind:   StageMask,
			Inputs: []StreamLabel{chain},
			Output: b.nextVideo(),
			Params: params,
		})
	}
	return chain
}

func (b *builder) effectStages(clip *composition.Clip, chain StreamLabel) StreamLabel {
	for _, e := range clip.Effects {
		if !e.Enabled {
			continue
		}
		params := []Param{{Key: "effect", Value: e.Kind}}
		for _, p := range e.Params {
			params = append(params, Param{Key: p.Name, Value: fnum(p.Value)})
		}
		chain = b.emit(Stage{
			Kind:   StageEffect,
			Inputs: []StreamLabel{chain},
			Output: b.nextVideo(),
			Params: params,
		})
	}
	return chain
}

func (b *builder) gradeStage(clip *composition.Clip, chain StreamLabel) StreamLabel {
	g := clip.Grade
	params := []Param{
		{Key: "lift", Value: wheelValue(g.Lift)},
		{Key: "gamma", Value: wheelValue(g.Gamma)},
		{Key: "gain", Value: wheelValue(g.Gain)},
		{Key: "saturation", Value: fnum(g.Saturation)},
		{Key: "exposure", Value: fnum(g.Exposure)},
		{Key: "contrast", Value: fnum(g.Contrast)},
		{Key: "temperature", Value: fnum(g.Temperature)},
		{Key: "tint", Value: fnum(g.Tint)},
	}
	if g.LUTPath != "" {
		params = append(params, Param{Key: "lut", Value: g.LUTPath})
	}
	return b.emit(Stage{
		Kind:   StageGrade,
		Inputs: []StreamLabel{chain},
		Output: b.nextVideo(),
		Params: params,
	})
}

func wheelValue(w composition.Wheel) string {
	return fnum(w.R) + ":" + fnum(w.G) + ":" + fnum(w.B) + ":" + fnum(w.Master)
}

func (b *builder) overlayStage(clip *composition.Clip, chain StreamLabel) StreamLabel {
	t := clip.Payload.Text
	params := []Param{
		{Key: "text", Value: t.Text},
		{Key: "font", Value: t.Font},
		{Key: "fontsize", Value: fnum(t.Size)},
		{Key: "color", Value: t.Color},
		{Key: "x", Value: fnum(t.X)},
		{Key: "y", Value: fnum(t.Y)},
	}
	if t.BoxColor != "" {
		params = append(params, Param{Key: "box_color", Value: t.BoxColor})
	}
	return b.emit(Stage{
		Kind:   StageOverlay,
		Inputs: []StreamLabel{chain},
		Output: b.nextVideo(),
		Params: params,
	})
}

func (b *builder) remapStage(clip *composition.Clip, chain StreamLabel, audio bool) StreamLabel {
	points := clip.Ramp.Points()
	params := make([]Param, 0, len(points)+1)
	params = append(params, Param{Key: "points", Value: fmt.Sprintf("%d", len(points))})
	for _, p := range points {
		params = append(params, Param{
			Key:   "pt",
			Value: fmt.Sprintf("%d:%s:%s", int64(p.SourceTime), fnum(p.Speed), p.Interpolation),
		})
	}
	var out StreamLabel
	if audio {
		out = b.nextAudio()
	} else {
		out = b.nextVideo()
	}
	return b.emit(Stage{
		Kind:   StageRemap,
		Inputs: []StreamLabel{chain},
		Output: out,
		Params: params,
	})
}

// clipOpacity resolves the clip's animated opacity at an instant,
// defaulting to fully opaque.
func clipOpacity(clip *composition.Clip, at timebase.Timestamp) float64 {
	if t := clip.AnimationTrack("opacity"); t != nil {
		return t.ValueAt(at)
	}
	return 1.0
}

// audioMix builds the cross-track audio mix: per-clip source chains,
// per-track gain and pan, transition crossfades at registered clip
// boundaries, and a final mix stage. Solo on any audio track restricts
// the mix to solo tracks.
func (b *builder) audioMix(proj *composition.Project, target timebase.Range, offset timebase.Timestamp) (StreamLabel, error) {
	tracks := proj.Tracks()

	solo := false
	for _, t := range tracks {
		if t.Type == composition.TrackAudio && t.Solo {
			solo = true
			break
		}
	}

	var trackStreams []StreamLabel
	for _, track := range tracks {
		if !track.Enabled || track.Muted {
			continue
		}
		if track.Type != composition.TrackAudio {
			// nested sequences on picture tracks still carry their
			// child timeline's audio
			if solo {
				continue
			}
			for _, clip := range track.Clips() {
				if !clip.Enabled || clip.Payload.Kind != composition.ClipNested || !clip.Range.Overlaps(target) {
					continue
				}
				visible, _ := clip.Range.Intersect(target)
				inner, err := b.audioMix(clip.Payload.Nested, visible.Shift(-clip.Range.Start), offset+clip.Range.Start)
				if err != nil {
					return "", err
				}
				if inner != "" {
					trackStreams = append(trackStreams, inner)
				}
			}
			continue
		}
		if solo && !track.Solo {
			continue
		}

		incoming := make(map[string]*composition.Transition)
		for _, tr := range track.Transitions() {
			incoming[tr.ToClipID] = tr
		}

		var trackStream StreamLabel
		for _, clip := range track.Clips() {
			if !clip.Enabled || !clip.Range.Overlaps(target) {
				continue
			}
			visible, _ := clip.Range.Intersect(target)

			var chain StreamLabel
			switch clip.Payload.Kind {
			case composition.ClipMedia:
				src, err := b.mediaSource(clip, visible, visible.Shift(offset), true)
				if err != nil {
					return "", err
				}
				chain = src
			case composition.ClipNested:
				inner, err := b.audioMix(clip.Payload.Nested, visible.Shift(-clip.Range.Start), offset+clip.Range.Start)
				if err != nil {
					return "", err
				}
				if inner == "" {
					continue
				}
				chain = inner
			default:
				continue
			}
			if clip.Ramp != nil && clip.Ramp.Len() > 0 {
				chain = b.remapStage(clip, chain, true)
			}
			if trackStream == "" {
				trackStream = chain
				continue
			}
			if tr := incoming[clip.ID]; tr != nil {
				trackStream = b.emit(Stage{
					Kind:   StageCrossfade,
					Inputs: []StreamLabel{trackStream, chain},
					Output: b.nextAudio(),
					Params: []Param{
						{Key: "transition", Value: string(tr.Kind)},
						{Key: "duration_us", Value: fmt.Sprintf("%d", int64(tr.Duration))},
						{Key: "easing", Value: string(tr.Easing)},
					},
				})
			} else {
				trackStream = b.emit(Stage{
					Kind:   StageMix,
					Inputs: []StreamLabel{trackStream, chain},
					Output: b.nextAudio(),
					Params: []Param{{Key: "normalize", Value: "false"}},
				})
			}
		}
		if trackStream == "" {
			continue
		}

		if track.Gain != 1.0 {
			trackStream = b.emit(Stage{
				Kind:   StageGain,
				Inputs: []StreamLabel{trackStream},
				Output: b.nextAudio(),
				Params: []Param{{Key: "gain", Value: fnum(track.Gain)}},
			})
		}
		if track.Pan != 0 {
			trackStream = b.emit(Stage{
				Kind:   StagePan,
				Inputs: []StreamLabel{trackStream},
				Output: b.nextAudio(),
				Params: []Param{{Key: "pan", Value: fnum(track.Pan)}},
			})
		}
		trackStreams = append(trackStreams, trackStream)
	}

	switch len(trackStreams) {
	case 0:
		return "", nil
	case 1:
		return trackStreams[0], nil
	}
	return b.emit(Stage{
		Kind:   StageMix,
		Inputs: trackStreams,
		Output: b.nextAudio(),
		Params: []Param{{Key: "normalize", Value: "false"}},
	}), nil
}

// silence emits the fallback audio bed for a timeline with nothing
// audible in range.
func (b *builder) silence(proj *composition.Project, target timebase.Range) StreamLabel {
	return b.emit(Stage{
		Kind:   StageSource,
		Output: b.nextAudio(),
		Params: []Param{
			{Key: "kind", Value: "silence"},
			{Key: "rate", Value: fmt.Sprintf("%d", proj.Settings.SampleRate)},
			{Key: "duration_us", Value: fmt.Sprintf("%d", int64(target.Duration()))},
		},
	})
}
