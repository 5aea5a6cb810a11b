package testutil

import (
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/gen2brain/webp"
	"github.com/stretchr/testify/require"
)

// CreateDummyFile creates a file with the given content at path, creating
// parent directories as needed.
func CreateDummyFile(t *testing.T, path string, content string) {
	t.Helper()
	fullPath := filepath.Clean(path)
	dir := filepath.Dir(fullPath)
	require.NoError(t, os.MkdirAll(dir, 0o755), "Failed to create directory %s for dummy file", dir)
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644), "Failed to write dummy file %s", fullPath)
}

// CreateDummyDir ensures a directory exists at path.
func CreateDummyDir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Clean(path), 0o755), "Failed to create dummy directory %s", path)
}

// GradientNRGBA returns a w x h image whose color varies per pixel. The left
// column is fully transparent, the right column fully opaque, and the columns
// in between are translucent.
func GradientNRGBA(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(0xff)
			switch {
			case x == 0:
				a = 0
			case x < w-1:
				a = uint8(x * 255 / (w - 1))
			}
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: uint8((x + y) * 127 / (w + h)),
				A: a,
			})
		}
	}
	return img
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// WriteWebP encodes img as lossless WebP at path.
func WriteWebP(t *testing.T, path string, img image.Image) {
	t.Helper()
	writeWith(t, path, func(f *os.File) error {
		return webp.Encode(f, img, webp.Options{Lossless: true})
	})
}

// WriteLossyWebP encodes img as lossy WebP at path.
func WriteLossyWebP(t *testing.T, path string, img image.Image, quality int) {
	t.Helper()
	writeWith(t, path, func(f *os.File) error {
		return webp.Encode(f, img, webp.Options{Quality: quality})
	})
}

// WritePalettedGIF writes a paletted image as GIF at path. Used to feed the
// decoder palette-indexed pixels under a .webp name.
func WritePalettedGIF(t *testing.T, path string, img *image.Paletted) {
	t.Helper()
	writeWith(t, path, func(f *os.File) error {
		return gif.Encode(f, img, nil)
	})
}

// Paletted returns a 4x4 paletted image whose first palette entry is fully
// transparent and whose left half uses it.
func Paletted() *image.Paletted {
	pal := color.Palette{
		color.NRGBA{R: 0, G: 0, B: 0, A: 0},
		color.NRGBA{R: 200, G: 30, B: 60, A: 0xff},
	}
	img := image.NewPaletted(image.Rect(0, 0, 4, 4), pal)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x >= 2 {
				img.SetColorIndex(x, y, 1)
			}
		}
	}
	return img
}

func writeWith(t *testing.T, path string, enc func(f *os.File) error) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err, "create fixture %s", path)
	defer f.Close()
	require.NoError(t, enc(f), "encode fixture %s", path)
}

// LoadImage decodes the image file at path with the registered decoders.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err, "open %s", path)
	defer f.Close()
	img, _, err := image.Decode(f)
	require.NoError(t, err, "decode %s", path)
	return img
}

// LoadJPEG decodes a JPEG file with the standard library decoder, which
// returns *image.YCbCr (or *image.Gray) and exposes the chroma subsampling.
func LoadJPEG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err, "open %s", path)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err, "decode %s", path)
	return img
}

// RequireSamePixels fails the test unless want and got have the same bounds
// and identical 8-bit non-premultiplied pixels.
func RequireSamePixels(t *testing.T, want, got image.Image) {
	t.Helper()
	require.Equal(t, want.Bounds().Size(), got.Bounds().Size(), "image dimensions differ")
	wb, gb := want.Bounds(), got.Bounds()
	for y := 0; y < wb.Dy(); y++ {
		for x := 0; x < wb.Dx(); x++ {
			w := color.NRGBAModel.Convert(want.At(wb.Min.X+x, wb.Min.Y+y))
			g := color.NRGBAModel.Convert(got.At(gb.Min.X+x, gb.Min.Y+y))
			require.Equal(t, w, g, "pixel (%d,%d) differs", x, y)
		}
	}
}

// MaxChannelDiff returns the largest per-channel difference between two
// equally sized images, comparing 8-bit RGB.
func MaxChannelDiff(a, b image.Image) int {
	ab, bb := a.Bounds(), b.Bounds()
	maxDiff := 0
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			ca := color.NRGBAModel.Convert(a.At(ab.Min.X+x, ab.Min.Y+y)).(color.NRGBA)
			cb := color.NRGBAModel.Convert(b.At(bb.Min.X+x, bb.Min.Y+y)).(color.NRGBA)
			for _, d := range []int{
				int(ca.R) - int(cb.R),
				int(ca.G) - int(cb.G),
				int(ca.B) - int(cb.B),
			} {
				if d < 0 {
					d = -d
				}
				if d > maxDiff {
					maxDiff = d
				}
			}
		}
	}
	return maxDiff
}
