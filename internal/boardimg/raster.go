package boardimg

import (
	"image"
	"image/color"
	"math"

	nchess "github.com/corentings/chess/v2"
)

type pointF struct {
	X float64
	Y float64
}

func drawArrow(img *image.RGBA, from, to nchess.Square, origin image.Point, clr color.Color) {
	if img == nil || from == to {
		return
	}
	startRect := squareRect(from, origin)
	endRect := squareRect(to, origin)
	start := pointF{
		X: float64(startRect.Min.X + squareSize/2),
		Y: float64(startRect.Min.Y + squareSize/2),
	}
	end := pointF{
		X: float64(endRect.Min.X + squareSize/2),
		Y: float64(endRect.Min.Y + squareSize/2),
	}

	dx := end.X - start.X
	dy := end.Y - start.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	dirX := dx / length
	dirY := dy / length
	perpX := -dirY
	perpY := dirX

	// keep the head inside the destination square
	shaftLength := length - float64(squareSize)*0.45
	if shaftLength < float64(squareSize)*0.35 {
		shaftLength = length * 0.6
	}
	halfWidth := float64(squareSize) * 0.18
	headWidth := float64(squareSize) * 0.32

	base := pointF{X: start.X + dirX*shaftLength, Y: start.Y + dirY*shaftLength}

	fillQuad(img,
		pointF{X: start.X - perpX*halfWidth, Y: start.Y - perpY*halfWidth},
		pointF{X: start.X + perpX*halfWidth, Y: start.Y + perpY*halfWidth},
		pointF{X: base.X + perpX*halfWidth, Y: base.Y + perpY*halfWidth},
		pointF{X: base.X - perpX*halfWidth, Y: base.Y - perpY*halfWidth},
		clr,
	)
	fillTriangle(img,
		end,
		pointF{X: base.X - perpX*headWidth/2, Y: base.Y - perpY*headWidth/2},
		pointF{X: base.X + perpX*headWidth/2, Y: base.Y + perpY*headWidth/2},
		clr,
	)
}

func fillQuad(img *image.RGBA, p0, p1, p2, p3 pointF, clr color.Color) {
	fillTriangle(img, p0, p1, p2, clr)
	fillTriangle(img, p0, p2, p3, clr)
}

func fillTriangle(img *image.RGBA, a, b, c pointF, clr color.Color) {
	minX := int(math.Floor(math.Min(a.X, math.Min(b.X, c.X))))
	maxX := int(math.Ceil(math.Max(a.X, math.Max(b.X, c.X))))
	minY := int(math.Floor(math.Min(a.Y, math.Min(b.Y, c.Y))))
	maxY := int(math.Ceil(math.Max(a.Y, math.Max(b.Y, c.Y))))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if pointInTriangle(float64(x)+0.5, float64(y)+0.5, a, b, c) {
				blendPixel(img, x, y, clr)
			}
		}
	}
}

func pointInTriangle(x, y float64, a, b, c pointF) bool {
	denom := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if denom == 0 {
		return false
	}
	alpha := ((b.Y-c.Y)*(x-c.X) + (c.X-b.X)*(y-c.Y)) / denom
	beta := ((c.Y-a.Y)*(x-c.X) + (a.X-c.X)*(y-c.Y)) / denom
	gamma := 1 - alpha - beta
	return alpha >= 0 && beta >= 0 && gamma >= 0
}

// blendPixel composites clr over the existing pixel (source-over).
func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if img == nil || !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	dst := img.RGBAAt(x, y)
	srcA := float64(sa) / 65535.0
	inv := 1 - srcA

	blend := func(s uint32, d uint8) uint8 {
		v := float64(s)/65535.0*255.0 + float64(d)*inv
		if v > 255 {
			v = 255
		}
		return uint8(v + 0.5)
	}
	img.SetRGBA(x, y, color.RGBA{
		R: blend(sr, dst.R),
		G: blend(sg, dst.G),
		B: blend(sb, dst.B),
		A: blend(sa, dst.A),
	})
}
