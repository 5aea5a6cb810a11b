package converter

import (
	"fmt"
	"image"

	"github.com/VolkanSah/ImageConverter/pkg/converter/imaging"
)

// transformFunc converts one decoded image and writes it to output.
type transformFunc func(codec ImageCodec, img image.Image, output string, quality int) error

// transformFor selects the format-specific transform.
func transformFor(format Format) (transformFunc, error) {
	switch format {
	case FormatPNG:
		return toPNG, nil
	case FormatJPG:
		return toJPEG, nil
	}
	return nil, fmt.Errorf("%w: unsupported target format %q", ErrConfigValidation, format)
}

// toPNG re-encodes losslessly. The decoded channels are written as-is.
func toPNG(codec ImageCodec, img image.Image, output string, _ int) error {
	return codec.EncodePNG(img, output)
}

// toJPEG flattens alpha onto white (expanding palettes first) or converts to
// plain RGB, then encodes at the requested quality.
func toJPEG(codec ImageCodec, img image.Image, output string, quality int) error {
	return codec.EncodeJPEG(imaging.FlattenForJPEG(img), output, quality)
}

// convertFile decodes input and runs the transform, classifying failures.
func convertFile(codec ImageCodec, transform transformFunc, input, output string, quality int) error {
	img, err := codec.Decode(input)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	if err := transform(codec, img, output, quality); err != nil {
		return fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return nil
}
