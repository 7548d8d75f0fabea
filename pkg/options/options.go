// Package options turns raw URL directives into a validated ParsedOptions
// record and expands server-configured presets.
//
// The grammar is table-driven: optionParsers maps every recognized directive
// name (and its short alias) to a parser writing one field group. Unknown
// directives are ignored by design so that newer clients keep working against
// older servers; they are logged at debug level.
package options

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"imgforge/pkg/forgeurl"
)

// OptionError reports a directive that failed range or domain validation.
type OptionError struct {
	Name   string
	Reason string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("invalid option %s: %s", e.Name, e.Reason)
}

func invalid(name, reason string) error {
	return &OptionError{Name: name, Reason: reason}
}

// Resize holds the geometry of a resize/size directive.
type Resize struct {
	Type   string
	Width  int
	Height int
}

// Crop is an absolute pre-resize crop; gravity does not apply.
type Crop struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Padding is a CSS-style top/right/bottom/left expansion.
type Padding struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// Watermark requests an overlay at the given opacity and anchor.
type Watermark struct {
	Opacity  float64
	Position string
}

// Color is an RGBA background value.
type Color struct {
	R, G, B, A uint8
}

// ParsedOptions is the typed result of parsing a directive list. Zero values
// mean "not requested" except where a default is documented.
type ParsedOptions struct {
	Resize        *Resize
	ResizingType  string // default fit, applied when Resize is synthesized
	Width         int
	Height        int
	Gravity       string // default center
	Enlarge       bool
	Extend        bool
	Padding       *Padding
	MinWidth      int
	MinHeight     int
	Zoom          float64 // default 1.0
	Crop          *Crop
	Rotation      int  // 0, 90, 180, 270
	AutoRotate    bool // default true
	Blur          float64
	Sharpen       float64
	Pixelate      int
	Background    *Color
	Quality       int    // default 85
	Format        string // empty means: use source extension, else jpeg
	DPR           float64 // default 1.0
	Raw           bool
	CacheBuster   string
	ResizingAlgo  string // default lanczos3
	Watermark     *Watermark
	WatermarkURL  string
	MaxSrcFileSz  int64   // per-request override, bytes; 0 unset
	MaxSrcResolMP float64 // per-request override, megapixels; 0 unset
}

// Defaults returns a ParsedOptions with every documented default applied.
func Defaults() *ParsedOptions {
	return &ParsedOptions{
		Gravity:      "center",
		Zoom:         1.0,
		AutoRotate:   true,
		Quality:      85,
		DPR:          1.0,
		ResizingAlgo: "lanczos3",
	}
}

var resizingTypes = map[string]bool{
	"fill": true, "fit": true, "force": true, "auto": true,
}

var resizingAlgorithms = map[string]bool{
	"nearest": true, "linear": true, "cubic": true, "lanczos2": true, "lanczos3": true,
}

// gravityAliases normalizes every accepted anchor spelling to its canonical
// form. The long corner names come from preset strings written for the
// watermark position grammar.
var gravityAliases = map[string]string{
	"center": "center", "ce": "center",
	"north": "north", "no": "north",
	"south": "south", "so": "south",
	"east": "east", "ea": "east",
	"west": "west", "we": "west",
	"ne": "ne", "north_east": "ne", "northeast": "ne",
	"nw": "nw", "north_west": "nw", "northwest": "nw",
	"se": "se", "south_east": "se", "southeast": "se",
	"sw": "sw", "south_west": "sw", "southwest": "sw",
	"smart": "smart",
}

type parserFunc func(po *ParsedOptions, args []string) error

// optionParsers is the directive registry; canonical names and aliases point
// at the same parser, so duplicate directives follow last-wins naturally.
var optionParsers map[string]parserFunc

func init() {
	optionParsers = map[string]parserFunc{}
	register := func(fn parserFunc, names ...string) {
		for _, name := range names {
			optionParsers[name] = fn
		}
	}

	register(parseResize, "resize", "rs")
	register(parseSize, "size", "sz", "s")
	register(parseResizingType, "resizing_type", "rt")
	register(parseWidth, "width", "w")
	register(parseHeight, "height", "h")
	register(parseGravity, "gravity", "g")
	register(parseEnlarge, "enlarge", "el")
	register(parseExtend, "extend", "ex")
	register(parsePadding, "padding", "pd")
	register(parseMinWidth, "min_width", "mw")
	register(parseMinHeight, "min_height", "mh")
	register(parseZoom, "zoom", "z")
	register(parseCrop, "crop")
	register(parseRotate, "rotate", "rot", "or")
	register(parseAutoRotate, "auto_rotate", "ar")
	register(parseBlur, "blur", "bl")
	register(parseSharpen, "sharpen", "sh")
	register(parsePixelate, "pixelate", "px")
	register(parseBackground, "background", "bg")
	register(parseQuality, "quality", "q")
	register(parseFormat, "format")
	register(parseDPR, "dpr")
	register(parseRaw, "raw")
	register(parseCacheBuster, "cache_buster")
	register(parseResizingAlgorithm, "resizing_algorithm", "ra")
	register(parseWatermark, "watermark", "wm")
	register(parseWatermarkURL, "watermark_url", "wmu")
	register(parseMaxSrcFileSize, "max_src_file_size")
	register(parseMaxSrcResolution, "max_src_resolution")
}

// ParseAll runs every directive through the registry and finalizes implied
// fields. The input should already be preset-expanded; any surviving
// directive with an unknown name is skipped.
func ParseAll(opts []forgeurl.Option) (*ParsedOptions, error) {
	po := Defaults()

	for _, opt := range opts {
		parser, known := optionParsers[opt.Name]
		if !known {
			log.Debug().Str("option", opt.Name).Msg("ignoring unknown option")
			continue
		}
		if err := parser(po, opt.Args); err != nil {
			return nil, err
		}
	}

	// width/height alone imply a fit resize.
	if po.Resize == nil && (po.Width > 0 || po.Height > 0) {
		po.Resize = &Resize{Type: "", Width: po.Width, Height: po.Height}
	}
	if po.Resize != nil && po.Resize.Type == "" {
		if po.ResizingType != "" {
			po.Resize.Type = po.ResizingType
		} else {
			po.Resize.Type = "fit"
		}
	}

	return po, nil
}

func parseInt(name, arg string) (int, error) {
	v, err := strconv.Atoi(arg)
	if err != nil {
		return 0, invalid(name, fmt.Sprintf("%q is not an integer", arg))
	}
	return v, nil
}

func parseNonNegInt(name, arg string) (int, error) {
	v, err := parseInt(name, arg)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, invalid(name, "must not be negative")
	}
	return v, nil
}

func parseFloat(name, arg string) (float64, error) {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, invalid(name, fmt.Sprintf("%q is not a number", arg))
	}
	return v, nil
}

func parseBool(s string) bool {
	return s == "1" || s == "true"
}

func parseResize(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("resize", "requires at least a resizing type")
	}
	resize := &Resize{}
	if args[0] != "" {
		if !resizingTypes[args[0]] {
			return invalid("resize", fmt.Sprintf("unknown resizing type %q", args[0]))
		}
		resize.Type = args[0]
	}
	if len(args) > 1 && args[1] != "" {
		w, err := parseNonNegInt("resize", args[1])
		if err != nil {
			return err
		}
		resize.Width = w
	}
	if len(args) > 2 && args[2] != "" {
		h, err := parseNonNegInt("resize", args[2])
		if err != nil {
			return err
		}
		resize.Height = h
	}
	if len(args) > 3 && args[3] != "" {
		po.Enlarge = parseBool(args[3])
	}
	if len(args) > 4 && args[4] != "" {
		po.Extend = parseBool(args[4])
	}
	po.Resize = resize
	po.Width = resize.Width
	po.Height = resize.Height
	return nil
}

func parseSize(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("size", "requires at least a width")
	}
	resize := &Resize{Type: po.ResizingType}
	if args[0] != "" {
		w, err := parseNonNegInt("size", args[0])
		if err != nil {
			return err
		}
		resize.Width = w
	}
	if len(args) > 1 && args[1] != "" {
		h, err := parseNonNegInt("size", args[1])
		if err != nil {
			return err
		}
		resize.Height = h
	}
	if len(args) > 2 && args[2] != "" {
		po.Enlarge = parseBool(args[2])
	}
	if len(args) > 3 && args[3] != "" {
		po.Extend = parseBool(args[3])
	}
	po.Resize = resize
	po.Width = resize.Width
	po.Height = resize.Height
	return nil
}

func parseResizingType(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("resizing_type", "requires one argument")
	}
	if !resizingTypes[args[0]] {
		return invalid("resizing_type", fmt.Sprintf("unknown resizing type %q", args[0]))
	}
	po.ResizingType = args[0]
	if po.Resize != nil {
		po.Resize.Type = args[0]
	}
	return nil
}

func parseWidth(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("width", "requires one argument")
	}
	w, err := parseNonNegInt("width", args[0])
	if err != nil {
		return err
	}
	po.Width = w
	if po.Resize != nil {
		po.Resize.Width = w
	}
	return nil
}

func parseHeight(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("height", "requires one argument")
	}
	h, err := parseNonNegInt("height", args[0])
	if err != nil {
		return err
	}
	po.Height = h
	if po.Resize != nil {
		po.Resize.Height = h
	}
	return nil
}

func parseGravity(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("gravity", "requires one argument")
	}
	canonical, ok := gravityAliases[args[0]]
	if !ok {
		return invalid("gravity", fmt.Sprintf("unknown anchor %q", args[0]))
	}
	po.Gravity = canonical
	return nil
}

func parseEnlarge(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("enlarge", "requires one argument")
	}
	po.Enlarge = parseBool(args[0])
	return nil
}

func parseExtend(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("extend", "requires one argument")
	}
	po.Extend = parseBool(args[0])
	return nil
}

func parsePadding(po *ParsedOptions, args []string) error {
	values := make([]int, 0, len(args))
	for _, arg := range args {
		v, err := parseNonNegInt("padding", arg)
		if err != nil {
			return err
		}
		values = append(values, v)
	}
	switch len(values) {
	case 1:
		po.Padding = &Padding{values[0], values[0], values[0], values[0]}
	case 2:
		po.Padding = &Padding{values[0], values[1], values[0], values[1]}
	case 4:
		po.Padding = &Padding{values[0], values[1], values[2], values[3]}
	default:
		return invalid("padding", "requires 1, 2, or 4 values")
	}
	return nil
}

func parseMinWidth(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("min_width", "requires one argument")
	}
	v, err := parseNonNegInt("min_width", args[0])
	if err != nil {
		return err
	}
	po.MinWidth = v
	return nil
}

func parseMinHeight(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("min_height", "requires one argument")
	}
	v, err := parseNonNegInt("min_height", args[0])
	if err != nil {
		return err
	}
	po.MinHeight = v
	return nil
}

func parseZoom(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("zoom", "requires one argument")
	}
	v, err := parseFloat("zoom", args[0])
	if err != nil {
		return err
	}
	if v <= 0 {
		return invalid("zoom", "must be positive")
	}
	po.Zoom = v
	return nil
}

func parseCrop(po *ParsedOptions, args []string) error {
	if len(args) < 4 {
		return invalid("crop", "requires four arguments: x, y, width, height")
	}
	values := make([]int, 4)
	for i := 0; i < 4; i++ {
		v, err := parseNonNegInt("crop", args[i])
		if err != nil {
			return err
		}
		values[i] = v
	}
	po.Crop = &Crop{X: values[0], Y: values[1], Width: values[2], Height: values[3]}
	return nil
}

func parseRotate(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("rotate", "requires one argument")
	}
	v, err := parseInt("rotate", args[0])
	if err != nil {
		return err
	}
	switch v {
	case 0, 90, 180, 270:
		po.Rotation = v
	default:
		return invalid("rotate", "must be 0, 90, 180, or 270")
	}
	return nil
}

func parseAutoRotate(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("auto_rotate", "requires one argument")
	}
	po.AutoRotate = parseBool(args[0])
	return nil
}

func parseBlur(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("blur", "requires one argument: sigma")
	}
	v, err := parseFloat("blur", args[0])
	if err != nil {
		return err
	}
	if v < 0 {
		return invalid("blur", "sigma must not be negative")
	}
	po.Blur = v
	return nil
}

func parseSharpen(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("sharpen", "requires one argument: sigma")
	}
	v, err := parseFloat("sharpen", args[0])
	if err != nil {
		return err
	}
	if v < 0 {
		return invalid("sharpen", "sigma must not be negative")
	}
	po.Sharpen = v
	return nil
}

func parsePixelate(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("pixelate", "requires one argument")
	}
	v, err := parseNonNegInt("pixelate", args[0])
	if err != nil {
		return err
	}
	po.Pixelate = v
	return nil
}

func parseBackground(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("background", "requires one argument")
	}
	c, err := parseHexColor(args[0])
	if err != nil {
		return invalid("background", err.Error())
	}
	po.Background = c
	return nil
}

func parseQuality(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("quality", "requires one argument")
	}
	v, err := parseInt("quality", args[0])
	if err != nil {
		return err
	}
	if v < 1 || v > 100 {
		return invalid("quality", "must be between 1 and 100")
	}
	po.Quality = v
	return nil
}

func parseFormat(po *ParsedOptions, args []string) error {
	if len(args) == 0 || args[0] == "" {
		return invalid("format", "requires one argument")
	}
	po.Format = strings.ToLower(args[0])
	return nil
}

func parseDPR(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("dpr", "requires one argument")
	}
	v, err := parseFloat("dpr", args[0])
	if err != nil {
		return err
	}
	if v <= 0 || v > 5 {
		return invalid("dpr", "must be greater than 0 and at most 5")
	}
	po.DPR = v
	return nil
}

func parseRaw(po *ParsedOptions, _ []string) error {
	po.Raw = true
	return nil
}

func parseCacheBuster(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("cache_buster", "requires one argument")
	}
	// Only the cache key changes; processing never reads this.
	po.CacheBuster = args[0]
	return nil
}

func parseResizingAlgorithm(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("resizing_algorithm", "requires one argument")
	}
	algo := strings.ToLower(args[0])
	if !resizingAlgorithms[algo] {
		return invalid("resizing_algorithm", fmt.Sprintf("unknown algorithm %q", args[0]))
	}
	po.ResizingAlgo = algo
	return nil
}

func parseWatermark(po *ParsedOptions, args []string) error {
	if len(args) < 2 {
		return invalid("watermark", "requires two arguments: opacity, position")
	}
	opacity, err := parseFloat("watermark", args[0])
	if err != nil {
		return err
	}
	if opacity < 0 || opacity > 1 {
		return invalid("watermark", "opacity must be between 0 and 1")
	}
	position, ok := gravityAliases[args[1]]
	if !ok || position == "smart" {
		return invalid("watermark", fmt.Sprintf("unknown position %q", args[1]))
	}
	po.Watermark = &Watermark{Opacity: opacity, Position: position}
	return nil
}

func parseWatermarkURL(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("watermark_url", "requires one argument")
	}
	decoded, err := base64.RawURLEncoding.DecodeString(args[0])
	if err != nil {
		return invalid("watermark_url", "not valid base64url")
	}
	po.WatermarkURL = string(decoded)
	return nil
}

func parseMaxSrcFileSize(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("max_src_file_size", "requires one argument")
	}
	v, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || v < 0 {
		return invalid("max_src_file_size", "must be a non-negative integer")
	}
	po.MaxSrcFileSz = v
	return nil
}

func parseMaxSrcResolution(po *ParsedOptions, args []string) error {
	if len(args) == 0 {
		return invalid("max_src_resolution", "requires one argument")
	}
	v, err := parseFloat("max_src_resolution", args[0])
	if err != nil {
		return err
	}
	if v < 0 {
		return invalid("max_src_resolution", "must not be negative")
	}
	po.MaxSrcResolMP = v
	return nil
}

// parseHexColor accepts RRGGBB and RRGGBBAA, with or without a leading '#'.
func parseHexColor(hexStr string) (*Color, error) {
	hexStr = strings.TrimPrefix(hexStr, "#")
	if len(hexStr) != 6 && len(hexStr) != 8 {
		return nil, fmt.Errorf("hex color must be 6 or 8 digits")
	}

	parse := func(s string) (uint8, error) {
		v, err := strconv.ParseUint(s, 16, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid hex color")
		}
		return uint8(v), nil
	}

	r, err := parse(hexStr[0:2])
	if err != nil {
		return nil, err
	}
	g, err := parse(hexStr[2:4])
	if err != nil {
		return nil, err
	}
	b, err := parse(hexStr[4:6])
	if err != nil {
		return nil, err
	}
	a := uint8(255)
	if len(hexStr) == 8 {
		a, err = parse(hexStr[6:8])
		if err != nil {
			return nil, err
		}
	}

	return &Color{R: r, G: g, B: b, A: a}, nil
}
