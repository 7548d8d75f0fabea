// Package processing implements the deterministic transform pipeline: a
// fixed stage order over a decoded raster, ending in an encode to the target
// format. The stage order never depends on directive order in the URL.
package processing

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"imgforge/pkg/options"
)

// EngineError marks a failure inside a transform or codec stage.
type EngineError struct {
	Stage string
	Err   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error in %s stage: %v", e.Stage, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Result carries the encoded output and its metadata.
type Result struct {
	Bytes       []byte
	Format      string
	ContentType string
}

// encodableFormats are the codecs this engine can write.
var encodableFormats = map[string]bool{
	"jpeg": true, "png": true, "gif": true, "tiff": true, "bmp": true,
}

// OutputFormat resolves the encode target. Precedence: explicit format
// directive, then the requested extension (the @ext / .ext suffix, or the
// source URL's own extension), then jpeg. An extension naming a format the
// engine cannot write falls back to jpeg; only the explicit directive is
// allowed to fail the request.
func OutputFormat(po *options.ParsedOptions, extension string) string {
	if po.Format != "" {
		return normalizeFormat(po.Format)
	}
	ext := normalizeFormat(strings.ToLower(extension))
	if encodableFormats[ext] {
		return ext
	}
	return "jpeg"
}

func normalizeFormat(f string) string {
	if f == "jpg" {
		return "jpeg"
	}
	return f
}

// Process runs the full stage chain over the fetched source bytes.
// The context is observed between stages; a cancelled request stops at the
// next stage boundary and no partial output is produced.
func Process(ctx context.Context, sourceBytes []byte, po *options.ParsedOptions, watermarkData []byte, extension string) (*Result, error) {
	// Stage 1: DPR scaling of all target geometry.
	po = scaleForDPR(po)

	// Stage 2: load.
	img, sourceFormat, err := Decode(sourceBytes)
	if err != nil {
		return nil, &EngineError{Stage: "load", Err: err}
	}
	log.Debug().
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Str("format", sourceFormat).
		Msg("source image decoded")

	// Stage 3: EXIF auto-rotate.
	if po.AutoRotate {
		if orientation := Orientation(sourceBytes); orientation > 1 {
			img = autoRotate(img, orientation)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 4: absolute crop; gravity does not apply.
	if po.Crop != nil {
		img = applyCrop(img, po.Crop)
	}

	// Stage 5: resize.
	var resolvedW, resolvedH int
	if po.Resize != nil {
		srcW, srcH := img.Bounds().Dx(), img.Bounds().Dy()
		resolvedW, resolvedH, err = resolveResizeDimensions(po.Resize, srcW, srcH)
		if err != nil {
			return nil, err
		}

		if !po.Enlarge && (resolvedW > srcW || resolvedH > srcH) {
			log.Debug().
				Int("target_width", resolvedW).
				Int("target_height", resolvedH).
				Msg("skipping resize: target exceeds source and enlarge is off")
		} else {
			img = applyResize(img, po.Resize.Type, resolvedW, resolvedH, po.Gravity, po.ResizingAlgo)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 6: zoom. May upscale regardless of the enlarge flag.
	if po.Zoom != 1.0 {
		img = applyZoom(img, po.Zoom, po.ResizingAlgo)
	}

	// Stage 7: minimum dimensions.
	if po.MinWidth > 0 || po.MinHeight > 0 {
		img = applyMinDimensions(img, po.MinWidth, po.MinHeight, po.ResizingAlgo)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 8: extend to the resolved resize target.
	if po.Extend && resolvedW > 0 && resolvedH > 0 {
		img = applyExtend(img, resolvedW, resolvedH, po.Gravity, po.Background)
	}

	// Stage 9: padding.
	if po.Padding != nil {
		img = applyPadding(img, po.Padding, po.Background)
	}

	// Stage 10: fixed rotation.
	if po.Rotation != 0 {
		img = applyRotation(img, po.Rotation)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 11: effects, in blur -> sharpen -> pixelate order.
	if po.Blur > 0 {
		img = imaging.Blur(img, po.Blur)
	}
	if po.Sharpen > 0 {
		img = imaging.Sharpen(img, po.Sharpen)
	}
	if po.Pixelate > 0 {
		img = applyPixelate(img, po.Pixelate, po.ResizingAlgo)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 12: watermark.
	if po.Watermark != nil && watermarkData != nil {
		img, err = applyWatermark(img, watermarkData, po.Watermark)
		if err != nil {
			return nil, err
		}
	}

	outputFormat := OutputFormat(po, extension)

	// Stage 13: flatten when the output codec has no alpha channel.
	if !hasAlpha(outputFormat) {
		img = flatten(img, po.Background)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 14: encode.
	encoded, err := encode(img, outputFormat, po.Quality)
	if err != nil {
		return nil, err
	}

	return &Result{
		Bytes:       encoded,
		Format:      outputFormat,
		ContentType: ContentType(outputFormat),
	}, nil
}

// scaleForDPR multiplies every target geometry value by the device pixel
// ratio. The input record stays untouched; callers may retry with it.
func scaleForDPR(po *options.ParsedOptions) *options.ParsedOptions {
	if po.DPR == 1.0 {
		return po
	}

	scaled := *po
	mul := func(v int) int { return int(math.Round(float64(v) * po.DPR)) }

	if po.Resize != nil {
		r := *po.Resize
		r.Width = mul(r.Width)
		r.Height = mul(r.Height)
		scaled.Resize = &r
	}
	scaled.Width = mul(po.Width)
	scaled.Height = mul(po.Height)
	scaled.MinWidth = mul(po.MinWidth)
	scaled.MinHeight = mul(po.MinHeight)
	if po.Padding != nil {
		p := options.Padding{
			Top:    mul(po.Padding.Top),
			Right:  mul(po.Padding.Right),
			Bottom: mul(po.Padding.Bottom),
			Left:   mul(po.Padding.Left),
		}
		scaled.Padding = &p
	}
	return &scaled
}

// flatten composites the raster over a solid background, dropping alpha.
// JPEG output without an explicit background flattens over black.
func flatten(img image.Image, background *options.Color) image.Image {
	canvas := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), backgroundColor(background))
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// backgroundColor resolves the configured background, defaulting to black.
func backgroundColor(background *options.Color) color.NRGBA {
	if background == nil {
		return color.NRGBA{A: 255}
	}
	return color.NRGBA{R: background.R, G: background.G, B: background.B, A: background.A}
}
