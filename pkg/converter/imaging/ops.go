package imaging

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// White is the opaque canvas JPEG output is flattened onto.
var White = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// HasAlpha reports whether img carries an alpha channel. The answer depends on
// the pixel representation, not on whether any pixel is actually translucent,
// except for paletted images, which have alpha only when a palette entry does.
func HasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.NRGBA, *image.RGBA, *image.NRGBA64, *image.RGBA64,
		*image.Alpha, *image.Alpha16, *image.NYCbCrA:
		return true
	case *image.Paletted:
		return paletteHasAlpha(m.Palette)
	case *image.Gray, *image.Gray16, *image.YCbCr, *image.CMYK, *image.Uniform:
		return false
	}
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}

func paletteHasAlpha(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a != 0xffff {
			return true
		}
	}
	return false
}

// IsPaletted reports whether img uses palette-indexed color.
func IsPaletted(img image.Image) bool {
	_, ok := img.(*image.Paletted)
	return ok
}

// ToNRGBA expands img to direct color plus straight alpha. Palette indices are
// resolved to their colors, so a following composite reads alpha as intensity.
func ToNRGBA(img image.Image) *image.NRGBA {
	if m, ok := img.(*image.NRGBA); ok {
		return m
	}
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	if p, ok := img.(*image.Paletted); ok {
		lut := make([]color.NRGBA, len(p.Palette))
		for i, c := range p.Palette {
			lut[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				idx := int(p.ColorIndexAt(x, y))
				if idx < len(lut) {
					dst.SetNRGBA(x, y, lut[idx])
				}
			}
		}
		return dst
	}
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

// CompositeOver flattens img onto an opaque canvas of color bg using the
// Porter-Duff "over" operator: result = a*src + (1-a)*bg per channel.
func CompositeOver(img image.Image, bg color.Color) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// ToRGB converts an opaque image in any color model to 8-bit RGB.
func ToRGB(img image.Image) *image.RGBA {
	if m, ok := img.(*image.RGBA); ok {
		return m
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

// FlattenForJPEG prepares img for a format without alpha: paletted images are
// expanded first, images with alpha are composited over white, and anything
// else is converted to plain RGB.
func FlattenForJPEG(img image.Image) image.Image {
	if IsPaletted(img) && HasAlpha(img) {
		img = ToNRGBA(img)
	}
	if HasAlpha(img) {
		return CompositeOver(img, White)
	}
	return ToRGB(img)
}
