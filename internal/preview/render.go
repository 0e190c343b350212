package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/golang/geo/r3"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/bryanchriswhite/BodyStreamer/internal/body"
)

// ViewHeight is the world-space height in millimetres mapped onto the image.
const ViewHeight = 2400.0

var (
	background = color.RGBA{R: 16, G: 16, B: 24, A: 255}
	textColor  = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	palette    = []color.RGBA{
		{R: 80, G: 200, B: 120, A: 255},
		{R: 240, G: 160, B: 40, A: 255},
		{R: 90, G: 160, B: 250, A: 255},
		{R: 230, G: 80, B: 90, A: 255},
		{R: 190, G: 110, B: 230, A: 255},
		{R: 240, G: 220, B: 80, A: 255},
	}
	faintBone = color.RGBA{R: 90, G: 90, B: 100, A: 255}
)

// Renderer draws a front view of world-space skeletons: x to the right and
// y down, depth ignored. The view follows the centroid of the tracked pelvises.
type Renderer struct {
	width  int
	height int
	scale  float64
}

// NewRenderer creates a renderer for width x height images.
func NewRenderer(width, height int) *Renderer {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}
	return &Renderer{
		width:  width,
		height: height,
		scale:  float64(height) / ViewHeight,
	}
}

// Bounds returns the image rectangle produced by Render.
func (r *Renderer) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.width, r.height)
}

// Project maps a world position onto the image relative to center.
func (r *Renderer) Project(p, center r3.Vector) image.Point {
	return image.Point{
		X: r.width/2 + int((p.X-center.X)*r.scale),
		Y: r.height/2 + int((p.Y-center.Y)*r.scale),
	}
}

// Render draws frame into a new image.
func (r *Renderer) Render(frame body.Frame) *image.RGBA {
	img := image.NewRGBA(r.Bounds())
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	center := viewCenter(frame.Bodies)
	for i, b := range frame.Bodies {
		c := palette[int(b.ID)%len(palette)]
		if b.ID == 0 {
			c = palette[i%len(palette)]
		}
		r.drawBody(img, b, center, c)
	}

	shade(img, image.Rect(0, 0, r.width, 22), color.Black, 0.6)
	drawText(img, 8, 16, fmt.Sprintf("frame %d  bodies %d", frame.Sequence, len(frame.Bodies)), textColor)
	return img
}

func (r *Renderer) drawBody(img *image.RGBA, b body.Body, center r3.Vector, c color.RGBA) {
	s := &b.Skeleton
	for _, bone := range body.Bones {
		parent, child := s[bone.Parent], s[bone.Child]
		if parent.Confidence == body.ConfidenceNone || child.Confidence == body.ConfidenceNone {
			continue
		}
		lc := c
		if parent.Confidence == body.ConfidenceLow || child.Confidence == body.ConfidenceLow {
			lc = faintBone
		}
		drawLine(img, r.Project(parent.Position, center), r.Project(child.Position, center), lc)
	}
	for _, j := range s {
		if j.Confidence == body.ConfidenceNone {
			continue
		}
		drawDot(img, r.Project(j.Position, center), 2, c)
	}

	head := r.Project(s[body.Head].Position, center)
	drawText(img, head.X+8, head.Y-8, fmt.Sprintf("#%d", b.ID), c)
}

func viewCenter(bodies []body.Body) r3.Vector {
	if len(bodies) == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, b := range bodies {
		sum = sum.Add(b.Skeleton[body.Pelvis].Position)
	}
	// Pelvis sits a little below the middle of a standing body
	c := sum.Mul(1 / float64(len(bodies)))
	c.Y -= 200
	return c
}

// drawLine is Bresenham's algorithm; pixels outside img are dropped.
func drawLine(img *image.RGBA, a, b image.Point, c color.RGBA) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	err := dx + dy
	x, y := a.X, a.Y
	for {
		setPixel(img, x, y, c)
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func drawDot(img *image.RGBA, p image.Point, radius int, c color.RGBA) {
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			setPixel(img, p.X+x, p.Y+y, c)
		}
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Rect) {
		img.SetRGBA(x, y, c)
	}
}

// shade blends c over rect at the given opacity (0 to 1).
func shade(img *image.RGBA, rect image.Rectangle, c color.Color, opacity float64) {
	if opacity <= 0 {
		return
	}
	if opacity > 1 {
		opacity = 1
	}
	mask := image.NewUniform(color.Alpha{A: uint8(opacity * 255)})
	draw.DrawMask(img, rect.Intersect(img.Rect), image.NewUniform(c), image.Point{}, mask, image.Point{}, draw.Over)
}

func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
