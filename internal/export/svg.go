// Package export renders recorded episodes as standalone SVG images.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/cstrsim/internal/reactor"
	"github.com/san-kum/cstrsim/internal/viz"
)

const background = "#0a0a0a"

// Series is one line of a time chart.
type Series struct {
	Name   string
	Color  string
	Values []float64
}

func header(sb *strings.Builder, width, height float64) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background)
}

// CanvasToSVG draws every lit braille dot of the canvas as a circle.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	width := float64(canvas.Width) * scale * 2
	height := float64(canvas.Height) * scale * 4

	var sb strings.Builder
	header(&sb, width, height)
	sb.WriteString("<g fill=\"#00ff00\">\n")

	// Braille dot-to-bit mapping
	bits := [4][2]int{
		{0x01, 0x08},
		{0x02, 0x10},
		{0x04, 0x20},
		{0x40, 0x80},
	}
	radius := scale * 0.4

	for row := 0; row < canvas.Height; row++ {
		for col := 0; col < canvas.Width; col++ {
			r := canvas.Grid[row][col]
			if r <= 0x2800 {
				continue
			}
			pattern := int(r - 0x2800)
			baseX := float64(col) * scale * 2
			baseY := float64(row) * scale * 4

			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&bits[dy][dx] == 0 {
						continue
					}
					cx := baseX + float64(dx)*scale + scale/2
					cy := baseY + float64(dy)*scale + scale/2
					fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n", cx, cy, radius)
				}
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// PhaseToSVG renders the Cr/Tr trajectory of an episode on a braille canvas
// with the two operating points marked.
func PhaseToSVG(obs []reactor.Observation, cols, rows int, scale float64) string {
	canvas := viz.NewCanvas(cols, rows)
	canvas.DrawPhase(obs, viz.PhaseBounds(obs))
	return CanvasToSVG(canvas, scale)
}

type bounds struct {
	minX, maxX, minY, maxY float64
}

func (b bounds) pad() bounds {
	rx, ry := b.maxX-b.minX, b.maxY-b.minY
	if rx == 0 {
		rx = 1
	}
	if ry == 0 {
		ry = 1
	}
	return bounds{b.minX, b.maxX, b.minY - ry*0.1, b.maxY + ry*0.1}
}

// TrajectoryToSVG plots each series against times as a polyline. Samples
// that are not finite break the line.
func TrajectoryToSVG(times []float64, series []Series, width, height int) string {
	if len(times) < 2 || len(series) == 0 {
		return ""
	}

	b := bounds{times[0], times[len(times)-1], math.Inf(1), math.Inf(-1)}
	for _, s := range series {
		for _, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			b.minY = math.Min(b.minY, v)
			b.maxY = math.Max(b.maxY, v)
		}
	}
	if math.IsInf(b.minY, 1) {
		return ""
	}
	b = b.pad()
	rx := b.maxX - b.minX
	if rx == 0 {
		rx = 1
	}
	ry := b.maxY - b.minY

	var sb strings.Builder
	header(&sb, float64(width), float64(height))

	for _, s := range series {
		fmt.Fprintf(&sb, "<path fill=\"none\" stroke=\"%s\" stroke-width=\"1.5\" d=\"", s.Color)
		pen := false
		for i, v := range s.Values {
			if i >= len(times) {
				break
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				pen = false
				continue
			}
			x := (times[i] - b.minX) / rx * float64(width)
			y := float64(height) - (v-b.minY)/ry*float64(height)
			if pen {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
				pen = true
			}
		}
		sb.WriteString("\"/>\n")
	}

	for i, s := range series {
		fmt.Fprintf(&sb, "<text x=\"8\" y=\"%d\" fill=\"%s\" font-family=\"monospace\" font-size=\"12\">%s</text>\n",
			16+14*i, s.Color, s.Name)
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// TemperatureSeries returns the Tr and Tref lines of an episode.
func TemperatureSeries(obs []reactor.Observation) []Series {
	tr := make([]float64, len(obs))
	tref := make([]float64, len(obs))
	for i, o := range obs {
		tr[i], tref[i] = o.Tr, o.Tref
	}
	return []Series{
		{Name: "Tr", Color: "#ff5555", Values: tr},
		{Name: "Tref", Color: "#50fa7b", Values: tref},
	}
}

// ConcentrationSeries returns the Cr and Cref lines of an episode.
func ConcentrationSeries(obs []reactor.Observation) []Series {
	cr := make([]float64, len(obs))
	cref := make([]float64, len(obs))
	for i, o := range obs {
		cr[i], cref[i] = o.Cr, o.Cref
	}
	return []Series{
		{Name: "Cr", Color: "#8be9fd", Values: cr},
		{Name: "Cref", Color: "#50fa7b", Values: cref},
	}
}
