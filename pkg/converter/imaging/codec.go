// Package imaging implements the image codec capability used by the
// conversion engine: decoding WebP (and the other registered formats),
// alpha handling, and PNG/JPEG encoding with atomic file replacement.
package imaging

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/gen2brain/jpegli"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned by Decode when the content is recognized as a non-image type.
var ErrNotImage = errors.New("content is not an image")

// Codec decodes and encodes images on the local filesystem.
// The zero value is not usable; create one with NewCodec.
type Codec struct {
	pngCompression png.CompressionLevel
	chroma         image.YCbCrSubsampleRatio
}

// NewCodec returns a codec that writes PNG at maximum compression and JPEG
// without chroma subsampling.
func NewCodec() *Codec {
	return &Codec{
		pngCompression: png.BestCompression,
		chroma:         image.YCbCrSubsampleRatio444,
	}
}

// Decode reads and decodes the image at path. The decoder is chosen from the
// file content, not its extension.
func (c *Codec) Decode(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if kind, _ := filetype.Match(data); kind != types.Unknown && !filetype.IsImage(data) {
		return nil, fmt.Errorf("%w: detected %s", ErrNotImage, kind.MIME.Value)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// EncodePNG writes img losslessly to path, replacing any existing file.
func (c *Codec) EncodePNG(img image.Image, path string) error {
	enc := png.Encoder{CompressionLevel: c.pngCompression}
	return writeAtomic(path, func(w io.Writer) error {
		return enc.Encode(w, img)
	})
}

// EncodeJPEG writes img to path at the given quality with 4:4:4 chroma,
// replacing any existing file. Alpha is ignored by the encoder; callers flatten
// translucent images first (see FlattenForJPEG).
func (c *Codec) EncodeJPEG(img image.Image, path string, quality int) error {
	if quality < 1 || quality > 100 {
		return fmt.Errorf("jpeg quality %d out of range [1,100]", quality)
	}
	opts := c.jpegOptions(quality)
	return writeAtomic(path, func(w io.Writer) error {
		return jpegli.Encode(w, img, opts)
	})
}

// jpegOptions keeps jpegli's own defaults for every field this codec does not
// set. A non-nil options struct replaces all of them.
func (c *Codec) jpegOptions(quality int) *jpegli.EncodingOptions {
	return &jpegli.EncodingOptions{
		Quality:              quality,
		ChromaSubsampling:    c.chroma,
		OptimizeCoding:       true,
		AdaptiveQuantization: true,
		DCTMethod:            jpegli.DefaultDCTMethod,
	}
}

// writeAtomic writes to a temporary file next to path and renames it into
// place, so readers never observe a partially written output.
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
