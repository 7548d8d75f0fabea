package processing

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"imgforge/pkg/options"
)

// watermarkScaleDivisor sizes the overlay relative to the main image width.
const watermarkScaleDivisor = 4

// watermarkMargin is the anchor margin as a fraction of the smaller main
// dimension.
const watermarkMargin = 0.05

// applyWatermark scales the overlay to a quarter of the main image width,
// anchors it at the requested position, and composites it at the given
// opacity.
func applyWatermark(img image.Image, watermarkData []byte, wm *options.Watermark) (image.Image, error) {
	overlay, _, err := Decode(watermarkData)
	if err != nil {
		return nil, &EngineError{Stage: "watermark", Err: err}
	}

	targetW := img.Bounds().Dx() / watermarkScaleDivisor
	if targetW < 1 {
		targetW = 1
	}
	scaled := resize.Resize(uint(targetW), 0, overlay, resize.Lanczos3)

	x, y := watermarkPosition(img, scaled, wm.Position)
	return imaging.Overlay(img, scaled, image.Pt(x, y), wm.Opacity), nil
}

// watermarkPosition computes the overlay origin for the anchor, with a 5%
// margin away from edges and corners.
func watermarkPosition(main, overlay image.Image, position string) (int, int) {
	mainW, mainH := main.Bounds().Dx(), main.Bounds().Dy()
	wmW, wmH := overlay.Bounds().Dx(), overlay.Bounds().Dy()

	margin := int(float64(min(mainW, mainH)) * watermarkMargin)

	centerX := (mainW - wmW) / 2
	centerY := (mainH - wmH) / 2

	switch position {
	case "north":
		return centerX, margin
	case "south":
		return centerX, mainH - wmH - margin
	case "east":
		return mainW - wmW - margin, centerY
	case "west":
		return margin, centerY
	case "nw":
		return margin, margin
	case "ne":
		return mainW - wmW - margin, margin
	case "sw":
		return margin, mainH - wmH - margin
	case "se":
		return mainW - wmW - margin, mainH - wmH - margin
	default:
		return centerX, centerY
	}
}
