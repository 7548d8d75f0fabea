package processing

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	_ "golang.org/x/image/webp" // decode-only

	"imgforge/pkg/options"
)

// Decode loads the full raster from the source bytes and reports the codec
// that produced it.
func Decode(data []byte) (image.Image, string, error) {
	return image.Decode(bytes.NewReader(data))
}

// DecodeConfig reads only the header: dimensions and codec name, without
// decoding pixel data.
func DecodeConfig(data []byte) (image.Config, string, error) {
	return image.DecodeConfig(bytes.NewReader(data))
}

// ContentType maps an output format token to its MIME type.
func ContentType(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "tiff":
		return "image/tiff"
	case "bmp":
		return "image/bmp"
	default:
		return "image/jpeg"
	}
}

// hasAlpha reports whether the output codec can carry an alpha channel.
func hasAlpha(format string) bool {
	switch format {
	case "jpeg", "jpg", "bmp":
		return false
	default:
		return true
	}
}

// encode serializes the raster in the requested format. Metadata is never
// written; the stdlib and x/image encoders emit pixel data only.
func encode(img image.Image, format string, quality int) ([]byte, error) {
	buf := new(bytes.Buffer)

	switch format {
	case "jpeg", "jpg":
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	case "png":
		if err := png.Encode(buf, img); err != nil {
			return nil, err
		}
	case "gif":
		if err := gif.Encode(buf, img, &gif.Options{NumColors: 256}); err != nil {
			return nil, err
		}
	case "tiff":
		if err := tiff.Encode(buf, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			return nil, err
		}
	case "bmp":
		if err := bmp.Encode(buf, img); err != nil {
			return nil, err
		}
	default:
		return nil, &options.OptionError{Name: "format", Reason: "unsupported output format " + format}
	}

	return buf.Bytes(), nil
}
