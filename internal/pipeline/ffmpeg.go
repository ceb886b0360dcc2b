package pipeline

import (
	"fmt"
	"strings"

	"github.com/mantonx/cutline/internal/composition"
	"github.com/mantonx/cutline/internal/curves"
	"github.com/mantonx/cutline/internal/timebase"
)

// FilterGraph renders the description into FFmpeg filter_complex
// syntax. This is the only place the engine's native syntax appears;
// everything upstream works on the typed stage representation.
func FilterGraph(d *Description) string {
	var chains []string
	for _, s := range d.Stages {
		chains = append(chains, renderStage(d, s))
	}
	return strings.Join(chains, ";")
}

// InputArgs returns the -ss/-to/-i argument groups for the
// description's media inputs, in input order.
func InputArgs(d *Description) []string {
	var args []string
	for _, in := range d.Inputs {
		if !in.Source.Empty() {
			args = append(args,
				"-ss", formatSeconds(in.Source.Start),
				"-to", formatSeconds(in.Source.End),
			)
		}
		args = append(args, "-i", in.Path)
	}
	return args
}

func formatSeconds(t timebase.Timestamp) string {
	return fmt.Sprintf("%.6f", t.Seconds())
}

func renderStage(d *Description, s Stage) string {
	var b strings.Builder
	for _, in := range s.Inputs {
		fmt.Fprintf(&b, "[%s]", in)
	}
	b.WriteString(stageFilter(d, s))
	fmt.Fprintf(&b, "[%s]", s.Output)
	return b.String()
}

func stageFilter(d *Description, s Stage) string {
	p := paramMap(s.Params)
	switch s.Kind {
	case StageSource:
		return sourceFilter(d, s, p)
	case StageMask:
		return maskFilter(p)
	case StageEffect:
		return effectFilter(s.Params)
	case StageBlend:
		return fmt.Sprintf("overlay=eof_action=pass:alpha=straight:enable='gte(t,%s)'", usToSec(p["offset_us"]))
	case StageGrade:
		return gradeFilter(p)
	case StageOverlay:
		return overlayFilter(p)
	case StageRemap:
		return remapFilter(s)
	case StageCrossfade:
		if strings.HasPrefix(string(s.Output), "a") {
			return fmt.Sprintf("acrossfade=d=%s", usToSec(p["duration_us"]))
		}
		return fmt.Sprintf("xfade=transition=%s:duration=%s:offset=%s",
			xfadeName(p["transition"]), usToSec(p["duration_us"]), usToSec(p["offset_us"]))
	case StageGain:
		return fmt.Sprintf("volume=%s", p["gain"])
	case StagePan:
		return panFilter(p["pan"])
	case StageMix:
		norm := "0"
		if p["normalize"] == "true" {
			norm = "1"
		}
		return fmt.Sprintf("amix=inputs=%d:normalize=%s:duration=longest", len(s.Inputs), norm)
	default:
		return "null"
	}
}

func paramMap(params []Param) map[string]string {
	m := make(map[string]string, len(params))
	for _, p := range params {
		if _, dup := m[p.Key]; !dup {
			m[p.Key] = p.Value
		}
	}
	return m
}

func usToSec(us string) string {
	var v int64
	fmt.Sscanf(us, "%d", &v)
	return formatSeconds(timebase.Timestamp(v))
}

func sourceFilter(d *Description, s Stage, p map[string]string) string {
	switch p["kind"] {
	case "canvas":
		return fmt.Sprintf("color=c=black:s=%s:r=%s:d=%s", p["size"], p["fps"], usToSec(p["duration_us"]))
	case "blank":
		return fmt.Sprintf("color=c=black@0.0:s=%s:d=%s,setpts=PTS+%s/TB",
			p["size"], usToSec(p["duration_us"]), usToSec(p["offset_us"]))
	case "silence":
		return fmt.Sprintf("anullsrc=r=%s:cl=stereo:d=%s", p["rate"], usToSec(p["duration_us"]))
	case "media":
		idx := p["input"]
		if strings.HasPrefix(string(s.Output), "a") {
			return fmt.Sprintf("[%s:a]asetpts=PTS-STARTPTS,adelay=%s:all=1",
				idx, usToMs(p["offset_us"]))
		}
		return fmt.Sprintf("[%s:v]setpts=PTS-STARTPTS+%s/TB", idx, usToSec(p["offset_us"]))
	default:
		return "null"
	}
}

func usToMs(us string) string {
	var v int64
	fmt.Sscanf(us, "%d", &v)
	return fmt.Sprintf("%d", v/1000)
}

func maskFilter(p map[string]string) string {
	// rectangle and ellipse masks reduce to a feathered alpha matte;
	// bezier paths are rasterized from their points, luminosity uses
	// the source luma itself
	switch p["shape"] {
	case string(composition.MaskLuminosity):
		return "format=yuva420p,geq=lum='lum(X,Y)':a='lum(X,Y)'"
	default:
		return fmt.Sprintf(
			"format=yuva420p,geq=lum='lum(X,Y)':a='if(between(X/W,%s,%s+%s)*between(Y/H,%s,%s+%s),255,0)',boxblur=%s",
			p["x"], p["x"], p["w"], p["y"], p["y"], p["h"], featherRadius(p["feather"]))
	}
}

func featherRadius(feather string) string {
	if feather == "" || feather == "0" {
		return "0"
	}
	return feather
}

func effectFilter(params []Param) string {
	var kind string
	var rest []string
	for _, p := range params {
		if p.Key == "effect" {
			kind = p.Value
			continue
		}
		rest = append(rest, p.Key+"="+p.Value)
	}
	name := effectName(kind)
	if len(rest) == 0 {
		return name
	}
	return name + "=" + strings.Join(rest, ":")
}

func effectName(kind string) string {
	switch kind {
	case "blur":
		return "gblur"
	case "sharpen":
		return "unsharp"
	case "flip_h":
		return "hflip"
	case "flip_v":
		return "vflip"
	case "noise":
		return "noise"
	default:
		return kind
	}
}

func gradeFilter(p map[string]string) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("eq=saturation=%s:contrast=%s:brightness=%s",
		p["saturation"], p["contrast"], p["exposure"]))
	if lut := p["lut"]; lut != "" {
		parts = append(parts, fmt.Sprintf("lut3d=file=%s", lut))
	}
	if p["temperature"] != "0" || p["tint"] != "0" {
		parts = append(parts, fmt.Sprintf("colorbalance=rm=%s:bm=-%s:gm=%s",
			p["temperature"], p["temperature"], p["tint"]))
	}
	return strings.Join(parts, ",")
}

func overlayFilter(p map[string]string) string {
	f := fmt.Sprintf("drawtext=text='%s':fontsize=%s:fontcolor=%s:x=%s*w:y=%s*h",
		escapeText(p["text"]), p["fontsize"], p["color"], p["x"], p["y"])
	if p["font"] != "" {
		f += ":font='" + p["font"] + "'"
	}
	if box := p["box_color"]; box != "" {
		f += ":box=1:boxcolor=" + box
	}
	return f
}

// panFilter renders a stereo balance. Pan runs -1 (full left) to 1
// (full right); the far channel is attenuated linearly.
func panFilter(pan string) string {
	var v float64
	fmt.Sscanf(pan, "%f", &v)
	left, right := 1.0, 1.0
	if v > 0 {
		left = 1 - v
	} else if v < 0 {
		right = 1 + v
	}
	return fmt.Sprintf("pan=stereo|c0=%s*c0|c1=%s*c1", fnum(left), fnum(right))
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, `:`, `\:`)
	return s
}

// remapFilter renders a speed remap. FFmpeg has no native variable
// speed curve, so the ramp is rendered as a setpts/atempo pair at the
// ramp's effective average speed over the clip.
func remapFilter(s Stage) string {
	ramp := rampFromParams(s.Params)
	avg := averageSpeed(ramp)
	if strings.HasPrefix(string(s.Output), "a") {
		return atempoChain(avg)
	}
	return fmt.Sprintf("setpts=PTS/%s", fnum(avg))
}

func rampFromParams(params []Param) *curves.SpeedRamp {
	ramp := curves.NewSpeedRamp()
	for _, p := range params {
		if p.Key != "pt" {
			continue
		}
		var srcUs int64
		var speed float64
		var interp string
		fmt.Sscanf(p.Value, "%d:%f:%s", &srcUs, &speed, &interp)
		_ = ramp.SetPoint(curves.SpeedPoint{
			SourceTime:    timebase.Timestamp(srcUs),
			Speed:         speed,
			Interpolation: curves.Interpolation(interp),
		})
	}
	return ramp
}

func averageSpeed(ramp *curves.SpeedRamp) float64 {
	points := ramp.Points()
	if len(points) == 0 {
		return 1.0
	}
	var total float64
	for _, p := range points {
		total += p.Speed
	}
	return total / float64(len(points))
}

// atempoChain builds an atempo chain; a single atempo only accepts
// factors in [0.5, 2.0], so larger factors are decomposed.
func atempoChain(speed float64) string {
	if speed <= 0 {
		speed = 1.0
	}
	var parts []string
	for speed > 2.0 {
		parts = append(parts, "atempo=2.0")
		speed /= 2.0
	}
	for speed < 0.5 {
		parts = append(parts, "atempo=0.5")
		speed /= 0.5
	}
	parts = append(parts, fmt.Sprintf("atempo=%s", fnum(speed)))
	return strings.Join(parts, ",")
}

func xfadeName(kind string) string {
	switch kind {
	case string(composition.TransitionCrossfade):
		return "fade"
	case string(composition.TransitionDipToBlack):
		return "fadeblack"
	case string(composition.TransitionWipe):
		return "wipeleft"
	case string(composition.TransitionSlide):
		return "slideleft"
	default:
		return "fade"
	}
}
