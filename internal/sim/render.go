// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sim

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

var (
	groundDay   = color.RGBA{R: 92, G: 128, B: 64, A: 255}
	groundNight = color.RGBA{R: 28, G: 40, B: 36, A: 255}
	pawnAlive   = color.RGBA{R: 230, G: 200, B: 90, A: 255}
	pawnDead    = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	pawnHungry  = color.RGBA{R: 220, G: 80, B: 60, A: 255}
)

// Render draws a top-down view of the map into img: ground shaded by time
// of day and one marker per colonist.
func (w *World) Render(img *image.RGBA) {
	b := img.Bounds()
	if b.Empty() {
		return
	}

	draw.Draw(img, b, &image.Uniform{C: w.ground()}, image.Point{}, draw.Src)

	cellW := max(1, b.Dx()/MapSize)
	cellH := max(1, b.Dy()/MapSize)
	for _, c := range w.colonists {
		x := b.Min.X + c.Position.X*b.Dx()/MapSize
		y := b.Min.Y + c.Position.Z*b.Dy()/MapSize
		marker := image.Rect(x, y, x+cellW, y+cellH).Intersect(b)
		draw.Draw(img, marker, &image.Uniform{C: pawnColor(c)}, image.Point{}, draw.Src)
	}
}

// ground blends day and night colors over a day: darkest at tick 0 of a
// day, brightest at midday.
func (w *World) ground() color.RGBA {
	phase := float64(w.tick%TicksPerDay) / TicksPerDay
	light := 1 - 2*math.Abs(phase-0.5)
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*light)
	}
	return color.RGBA{
		R: mix(groundNight.R, groundDay.R),
		G: mix(groundNight.G, groundDay.G),
		B: mix(groundNight.B, groundDay.B),
		A: 255,
	}
}

func pawnColor(c *Colonist) color.RGBA {
	switch {
	case c.Dead:
		return pawnDead
	case c.Hunger < 0.2:
		return pawnHungry
	default:
		return pawnAlive
	}
}
