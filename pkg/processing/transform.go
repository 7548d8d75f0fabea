package processing

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"imgforge/pkg/options"
)

// kernel maps a resizing algorithm token to the engine's resample filter.
// The engine ships a single Lanczos kernel, which serves both lanczos taps.
func kernel(algorithm string) imaging.ResampleFilter {
	switch algorithm {
	case "nearest":
		return imaging.NearestNeighbor
	case "linear":
		return imaging.Linear
	case "cubic":
		return imaging.CatmullRom
	case "lanczos2", "lanczos3":
		return imaging.Lanczos
	default:
		return imaging.Lanczos
	}
}

// resolveResizeDimensions fills zero dimensions from the source aspect ratio.
// force keeps the source dimension instead, since aspect may change anyway.
func resolveResizeDimensions(resize *options.Resize, srcW, srcH int) (int, int, error) {
	width, height := resize.Width, resize.Height

	if width == 0 && height == 0 {
		return 0, 0, &options.OptionError{Name: "resize", Reason: "requires at least one non-zero dimension"}
	}

	aspect := float64(srcW) / float64(srcH)

	if resize.Type == "force" {
		if width == 0 {
			width = srcW
		}
		if height == 0 {
			height = srcH
		}
	} else {
		if width == 0 {
			width = int(math.Round(float64(height) * aspect))
		}
		if height == 0 {
			height = int(math.Round(float64(width) / aspect))
		}
	}

	if width <= 0 || height <= 0 {
		return 0, 0, &options.OptionError{Name: "resize", Reason: "resolved to a zero dimension"}
	}
	return width, height, nil
}

// applyResize dispatches on the resizing type. Target dimensions are already
// resolved and the enlarge rule already enforced by the caller.
func applyResize(img image.Image, resizeType string, targetW, targetH int, gravity, algorithm string) image.Image {
	switch resizeType {
	case "fill":
		return resizeToFill(img, targetW, targetH, gravity, algorithm)
	case "force":
		return imaging.Resize(img, targetW, targetH, kernel(algorithm))
	case "auto":
		srcPortrait := img.Bounds().Dy() > img.Bounds().Dx()
		targetPortrait := targetH > targetW
		if srcPortrait == targetPortrait {
			return resizeToFill(img, targetW, targetH, gravity, algorithm)
		}
		return resizeToFit(img, targetW, targetH, algorithm)
	default: // fit
		return resizeToFit(img, targetW, targetH, algorithm)
	}
}

// resizeToFit scales the image to fit inside the target box, preserving
// aspect ratio.
func resizeToFit(img image.Image, width, height int, algorithm string) image.Image {
	srcW, srcH := img.Bounds().Dx(), img.Bounds().Dy()
	scale := math.Min(float64(width)/float64(srcW), float64(height)/float64(srcH))
	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return imaging.Resize(img, w, h, kernel(algorithm))
}

// resizeToFill scales so both dimensions meet or exceed the target, then
// crops the overflow using the gravity anchor.
func resizeToFill(img image.Image, width, height int, gravity, algorithm string) image.Image {
	srcW, srcH := img.Bounds().Dx(), img.Bounds().Dy()
	scale := math.Max(float64(width)/float64(srcW), float64(height)/float64(srcH))

	resizedW := int(math.Round(float64(srcW) * scale))
	resizedH := int(math.Round(float64(srcH) * scale))
	// Rounding must never undershoot the crop window.
	if resizedW < width {
		resizedW = width
	}
	if resizedH < height {
		resizedH = height
	}

	resized := imaging.Resize(img, resizedW, resizedH, kernel(algorithm))

	x, y := anchorOffset(gravity, resizedW-width, resizedH-height)
	return imaging.Crop(resized, image.Rect(x, y, x+width, y+height))
}

// anchorOffset places a window of (total - extra) inside the total area
// according to the gravity anchor. smart falls back to center.
func anchorOffset(gravity string, extraW, extraH int) (int, int) {
	if gravity == "smart" {
		log.Info().Msg("smart gravity unavailable in this engine, falling back to center")
		gravity = "center"
	}

	x := extraW / 2
	y := extraH / 2

	switch gravity {
	case "north":
		y = 0
	case "south":
		y = extraH
	case "west":
		x = 0
	case "east":
		x = extraW
	case "nw":
		x, y = 0, 0
	case "ne":
		x, y = extraW, 0
	case "sw":
		x, y = 0, extraH
	case "se":
		x, y = extraW, extraH
	}
	return x, y
}

// applyCrop clamps the requested window to the image bounds before cutting.
func applyCrop(img image.Image, crop *options.Crop) image.Image {
	bounds := img.Bounds()
	x := clamp(crop.X, 0, bounds.Dx())
	y := clamp(crop.Y, 0, bounds.Dy())
	w := clamp(crop.Width, 0, bounds.Dx()-x)
	h := clamp(crop.Height, 0, bounds.Dy()-y)
	if w == 0 || h == 0 {
		return img
	}
	return imaging.Crop(img, image.Rect(x, y, x+w, y+h))
}

// applyMinDimensions upscales to meet min_width/min_height. This stage is
// allowed to enlarge even when the enlarge flag is off.
func applyMinDimensions(img image.Image, minW, minH int, algorithm string) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	scale := 1.0
	if minW > 0 && w < minW {
		scale = float64(minW) / float64(w)
	}
	if minH > 0 && h < minH {
		if s := float64(minH) / float64(h); s > scale {
			scale = s
		}
	}
	if scale == 1.0 {
		return img
	}

	return imaging.Resize(img,
		int(math.Round(float64(w)*scale)),
		int(math.Round(float64(h)*scale)),
		kernel(algorithm))
}

// applyZoom scales the current raster by the zoom factor in both directions.
func applyZoom(img image.Image, zoom float64, algorithm string) image.Image {
	w := int(math.Round(float64(img.Bounds().Dx()) * zoom))
	h := int(math.Round(float64(img.Bounds().Dy()) * zoom))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return imaging.Resize(img, w, h, kernel(algorithm))
}

// applyExtend embeds the image on a target-sized canvas filled with the
// background color, anchored by gravity.
func applyExtend(img image.Image, width, height int, gravity string, background *options.Color) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w >= width && h >= height {
		return img
	}
	canvasW, canvasH := max(w, width), max(h, height)

	canvas := imaging.New(canvasW, canvasH, backgroundColor(background))
	x, y := anchorOffset(gravity, canvasW-w, canvasH-h)
	return imaging.Paste(canvas, img, image.Pt(x, y))
}

// applyPadding grows the canvas by the padding box, filled with background.
func applyPadding(img image.Image, padding *options.Padding, background *options.Color) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	canvas := imaging.New(
		w+padding.Left+padding.Right,
		h+padding.Top+padding.Bottom,
		backgroundColor(background))
	return imaging.Paste(canvas, img, image.Pt(padding.Left, padding.Top))
}

// applyRotation performs the fixed post-geometry rotation, clockwise.
func applyRotation(img image.Image, rotation int) image.Image {
	switch rotation {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// applyPixelate downscales by the pixelate factor and scales back up with
// the same kernel, producing the blocky effect.
func applyPixelate(img image.Image, amount int, algorithm string) image.Image {
	if amount <= 1 {
		return img
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	smallW, smallH := max(1, w/amount), max(1, h/amount)

	small := imaging.Resize(img, smallW, smallH, kernel(algorithm))
	return imaging.Resize(small, w, h, kernel(algorithm))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
