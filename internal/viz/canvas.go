package viz

import (
	"math"
	"strings"

	"github.com/san-kum/cstrsim/internal/reactor"
)

// Braille cells are 2x4 dots, offset from 0x2800.
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a braille pixel grid of Width x Height cells, addressed in
// sub-pixels: (Width*2) x (Height*4).
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine uses Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Cross marks a point with a small plus sign.
func (c *Canvas) Cross(x, y int) {
	c.DrawLine(x-2, y, x+2, y)
	c.DrawLine(x, y-2, x, y+2)
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// Bounds is the window of the concentration/temperature plane shown by a
// phase portrait.
type Bounds struct {
	CMin, CMax float64
	TMin, TMax float64
}

// PhaseBounds covers both operating points plus every finite observation.
func PhaseBounds(obs []reactor.Observation) Bounds {
	b := Bounds{
		CMin: reactor.HighSteadyConcentration, CMax: reactor.LowSteadyConcentration,
		TMin: reactor.LowSteadyTemperature, TMax: reactor.HighSteadyTemperature,
	}
	for _, o := range obs {
		if math.IsNaN(o.Cr) || math.IsNaN(o.Tr) || math.IsInf(o.Cr, 0) || math.IsInf(o.Tr, 0) {
			continue
		}
		b.CMin, b.CMax = math.Min(b.CMin, o.Cr), math.Max(b.CMax, o.Cr)
		b.TMin, b.TMax = math.Min(b.TMin, o.Tr), math.Max(b.TMax, o.Tr)
	}
	padC, padT := 0.05*(b.CMax-b.CMin), 0.05*(b.TMax-b.TMin)
	b.CMin, b.CMax = b.CMin-padC, b.CMax+padC
	b.TMin, b.TMax = b.TMin-padT, b.TMax+padT
	return b
}

func (c *Canvas) project(b Bounds, conc, temp float64) (int, int) {
	w, h := float64(c.Width*2-1), float64(c.Height*4-1)
	x := (conc - b.CMin) / (b.CMax - b.CMin) * w
	y := h - (temp-b.TMin)/(b.TMax-b.TMin)*h
	return int(math.Round(x)), int(math.Round(y))
}

// DrawPhase plots the Cr/Tr trajectory of obs with concentration on the
// horizontal axis. Both operating points are marked.
func (c *Canvas) DrawPhase(obs []reactor.Observation, b Bounds) {
	c.Cross(c.project(b, reactor.LowSteadyConcentration, reactor.LowSteadyTemperature))
	c.Cross(c.project(b, reactor.HighSteadyConcentration, reactor.HighSteadyTemperature))

	havePrev := false
	var px, py int
	for _, o := range obs {
		if math.IsNaN(o.Cr) || math.IsNaN(o.Tr) || math.IsInf(o.Cr, 0) || math.IsInf(o.Tr, 0) {
			havePrev = false
			continue
		}
		x, y := c.project(b, o.Cr, o.Tr)
		if havePrev {
			c.DrawLine(px, py, x, y)
		} else {
			c.Set(x, y)
		}
		px, py, havePrev = x, y, true
	}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
