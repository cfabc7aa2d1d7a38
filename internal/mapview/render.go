// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mapview draws a simple map surface: a region around a center
// coordinate with the recorded track as a line overlay.
package mapview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/relabs-tech/track_logger/internal/gps"
)

// Default span of the initial region, in degrees.
const (
	DefaultLatitudeDelta  = 0.00922
	DefaultLongitudeDelta = 0.00521
)

var (
	backgroundColor = color.RGBA{0xf2, 0xef, 0xe9, 0xff}
	gridColor       = color.RGBA{0xdd, 0xd8, 0xcf, 0xff}
	trackColor      = color.RGBA{0xd3, 0x2f, 0x2f, 0xff}
	centerColor     = color.RGBA{0x19, 0x76, 0xd2, 0xff}
	labelColor      = color.RGBA{0x33, 0x33, 0x33, 0xff}
)

// Region is the visible part of the map.
type Region struct {
	Center         gps.Fix
	LatitudeDelta  float64 // degrees from top to bottom
	LongitudeDelta float64 // degrees from left to right
}

// NewRegion centers the default span on c.
func NewRegion(c gps.Fix) Region {
	return Region{Center: c, LatitudeDelta: DefaultLatitudeDelta, LongitudeDelta: DefaultLongitudeDelta}
}

// Range of zoom factors accepted from users.
const (
	MinZoom = 1e-3
	MaxZoom = 1e3
)

// Zoom returns the region scaled by factor around the same center.
// factor < 1 zooms in. Callers should keep factor within MinZoom..MaxZoom.
func (r Region) Zoom(factor float64) Region {
	r.LatitudeDelta *= factor
	r.LongitudeDelta *= factor
	return r
}

// Fit returns a region that contains every fix of l, with a 10% margin.
// It never shrinks below the default span. An empty log keeps r.
func (r Region) Fit(l gps.Log) Region {
	if l.Len() == 0 {
		return r
	}
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for i := 0; i < l.Len(); i++ {
		f := l.At(i)
		minLat, maxLat = math.Min(minLat, f.Latitude), math.Max(maxLat, f.Latitude)
		minLon, maxLon = math.Min(minLon, f.Longitude), math.Max(maxLon, f.Longitude)
	}
	return Region{
		Center:         gps.Fix{Latitude: (minLat + maxLat) / 2, Longitude: (minLon + maxLon) / 2},
		LatitudeDelta:  math.Max((maxLat-minLat)*1.1, DefaultLatitudeDelta),
		LongitudeDelta: math.Max((maxLon-minLon)*1.1, DefaultLongitudeDelta),
	}
}

// Project maps a coordinate to a pixel inside bounds. North is up.
func (r Region) Project(f gps.Fix, bounds image.Rectangle) image.Point {
	x, y := r.project(f, bounds)
	return image.Pt(int(math.Round(x)), int(math.Round(y)))
}

// project is Project without rounding. Points far outside bounds keep
// their exact position so segments can be clipped.
func (r Region) project(f gps.Fix, bounds image.Rectangle) (x, y float64) {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	x = float64(bounds.Min.X) + (f.Longitude-r.Center.Longitude)/r.LongitudeDelta*w + w/2
	y = float64(bounds.Min.Y) + (r.Center.Latitude-f.Latitude)/r.LatitudeDelta*h + h/2
	return x, y
}

// Render draws the region with overlay as a connected line.
func Render(r Region, overlay gps.Log, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)

	drawGrid(img, 8)

	for i := 1; i < overlay.Len(); i++ {
		ax, ay := r.project(overlay.At(i-1), img.Bounds())
		bx, by := r.project(overlay.At(i), img.Bounds())
		drawSegment(img, ax, ay, bx, by, trackColor)
	}
	if last, ok := overlay.Last(); ok {
		if x, y := r.project(last, img.Bounds()); onCanvas(x, y, img.Bounds(), 3) {
			drawDot(img, image.Pt(int(math.Round(x)), int(math.Round(y))), 3, trackColor)
		}
	}

	drawDot(img, r.Project(r.Center, img.Bounds()), 4, centerColor)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{labelColor},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, height-6),
	}
	drawer.DrawString(formatCoordinate(r.Center))
	if overlay.Len() > 0 {
		drawer.Dot = fixed.P(4, 14)
		drawer.DrawString(fmt.Sprintf("%d fixes", overlay.Len()))
	}

	return img
}

func formatCoordinate(f gps.Fix) string {
	latDir := "N"
	lat := f.Latitude
	if lat < 0 {
		latDir = "S"
		lat = -lat
	}
	lonDir := "E"
	lon := f.Longitude
	if lon < 0 {
		lonDir = "W"
		lon = -lon
	}
	return fmt.Sprintf("%.5f%s %.5f%s", lat, latDir, lon, lonDir)
}

func drawGrid(img *image.RGBA, cells int) {
	b := img.Bounds()
	for i := 1; i < cells; i++ {
		x := b.Min.X + b.Dx()*i/cells
		y := b.Min.Y + b.Dy()*i/cells
		drawLine(img, image.Pt(x, b.Min.Y), image.Pt(x, b.Max.Y-1), gridColor)
		drawLine(img, image.Pt(b.Min.X, y), image.Pt(b.Max.X-1, y), gridColor)
	}
}

// drawSegment draws the part of the segment that lies inside img.
func drawSegment(img *image.RGBA, ax, ay, bx, by float64, c color.Color) {
	ax, ay, bx, by, ok := clipSegment(ax, ay, bx, by, img.Bounds())
	if !ok {
		return
	}
	drawLine(img,
		image.Pt(int(math.Round(ax)), int(math.Round(ay))),
		image.Pt(int(math.Round(bx)), int(math.Round(by))), c)
}

// Cohen-Sutherland outcodes.
const (
	outLeft = 1 << iota
	outRight
	outTop
	outBottom
)

// clipSegment clips a segment to the pixel centers of b with the
// Cohen-Sutherland algorithm. ok is false when nothing of it is visible.
func clipSegment(x0, y0, x1, y1 float64, b image.Rectangle) (cx0, cy0, cx1, cy1 float64, ok bool) {
	for _, v := range [...]float64{x0, y0, x1, y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, 0, 0, false
		}
	}
	xmin, ymin := float64(b.Min.X), float64(b.Min.Y)
	xmax, ymax := float64(b.Max.X-1), float64(b.Max.Y-1)

	code := func(x, y float64) int {
		c := 0
		if x < xmin {
			c |= outLeft
		} else if x > xmax {
			c |= outRight
		}
		if y < ymin {
			c |= outTop
		} else if y > ymax {
			c |= outBottom
		}
		return c
	}

	c0, c1 := code(x0, y0), code(x1, y1)
	// Each pass moves one endpoint onto an edge; four edges per endpoint.
	for i := 0; i < 8; i++ {
		if c0|c1 == 0 {
			return x0, y0, x1, y1, true
		}
		if c0&c1 != 0 {
			return 0, 0, 0, 0, false
		}

		out := c0
		if out == 0 {
			out = c1
		}
		var x, y float64
		switch {
		case out&outTop != 0:
			x, y = x0+(x1-x0)*(ymin-y0)/(y1-y0), ymin
		case out&outBottom != 0:
			x, y = x0+(x1-x0)*(ymax-y0)/(y1-y0), ymax
		case out&outRight != 0:
			x, y = xmax, y0+(y1-y0)*(xmax-x0)/(x1-x0)
		default:
			x, y = xmin, y0+(y1-y0)*(xmin-x0)/(x1-x0)
		}

		if out == c0 {
			x0, y0 = x, y
			c0 = code(x0, y0)
		} else {
			x1, y1 = x, y
			c1 = code(x1, y1)
		}
	}
	return 0, 0, 0, 0, false
}

// onCanvas reports whether a dot of radius r at (x, y) touches b.
func onCanvas(x, y float64, b image.Rectangle, r int) bool {
	fr := float64(r)
	return x >= float64(b.Min.X)-fr && x < float64(b.Max.X)+fr &&
		y >= float64(b.Min.Y)-fr && y < float64(b.Max.Y)+fr
}

// drawLine is Bresenham's algorithm. Both ends must lie inside img, or
// the walk covers every pixel between them.
func drawLine(img *image.RGBA, a, b image.Point, c color.Color) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	e := dx + dy
	x, y := a.X, a.Y
	for {
		img.Set(x, y, c)
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

func drawDot(img *image.RGBA, p image.Point, radius int, c color.Color) {
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= radius*radius {
				img.Set(p.X+x, p.Y+y, c)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
