// Package cover fetches album art and derives the tint used behind a
// release's detail view.
package cover

import (
	"image"
	"image/color"

	"github.com/cenkalti/dominantcolor"
	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

// Color is an opaque sRGB colour.
type Color struct {
	R, G, B uint8
}

// Luminance is the perceived brightness in [0, 1].
func (c Color) Luminance() float64 {
	return (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
}

// IsLight reports whether dark text reads better on c.
func (c Color) IsLight() bool {
	return c.Luminance() > 0.5
}

func (c Color) Hex() string {
	return c.colorful().Hex()
}

// Foreground is the text colour to draw on top of c.
func (c Color) Foreground() string {
	if c.IsLight() {
		return "#000000"
	}
	return "#FFFFFF"
}

// Blend mixes c toward other by t in Lab space, t in [0, 1].
func (c Color) Blend(other Color, t float64) Color {
	return fromColorful(c.colorful().BlendLab(other.colorful(), t).Clamped())
}

func (c Color) colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

func fromColorful(cc colorful.Color) Color {
	r, g, b := cc.RGB255()
	return Color{R: r, G: g, B: b}
}

// ParseHex reads "#rrggbb".
func ParseHex(s string) (Color, error) {
	cc, err := colorful.Hex(s)
	if err != nil {
		return Color{}, err
	}
	return fromColorful(cc), nil
}

// Extractor finds the colour that dominates an image.
type Extractor interface {
	DominantColor(img image.Image) (Color, bool)
}

// KMeansExtractor downsamples the image and hands it to dominantcolor,
// which clusters the pixels and returns the centre of the largest cluster.
type KMeansExtractor struct {
	// SampleSize is the edge length of the downsampled square.
	SampleSize int
}

func NewExtractor() *KMeansExtractor {
	return &KMeansExtractor{SampleSize: 64}
}

func (e *KMeansExtractor) DominantColor(img image.Image) (Color, bool) {
	if img == nil || img.Bounds().Empty() {
		return Color{}, false
	}

	size := e.SampleSize
	if size <= 0 {
		size = 64
	}
	small := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	if !hasOpaque(small) {
		return Color{}, false
	}
	return FromStd(dominantcolor.Find(small)), true
}

func hasOpaque(img *image.RGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] >= 128 {
			return true
		}
	}
	return false
}

// FromStd converts any color.Color.
func FromStd(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{R: n.R, G: n.G, B: n.B}
}
