// Package protocol synthesizes vendor-specific plotter byte streams
// (HP-GL/2, PostScript) and carries the static per-model compatibility
// knowledge used to pick a protocol for a device.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Vendor identifies a plotter manufacturer family.
type Vendor int

const (
	VendorHP Vendor = iota
	VendorCanon
	VendorEpson
	VendorGeneric
)

func (v Vendor) String() string {
	switch v {
	case VendorHP:
		return "HP"
	case VendorCanon:
		return "Canon"
	case VendorEpson:
		return "Epson"
	default:
		return "Generic"
	}
}

// MediaSize is the set of page sizes the generators know about.
type MediaSize int

const (
	MediaA0 MediaSize = iota
	MediaA1
	MediaA2
	MediaA3
	MediaA4
	MediaA5
	MediaB0
	MediaB1
	MediaB2
	MediaB3
	MediaB4
	MediaB5
	MediaLetter
	MediaLegal
	MediaTabloid
	MediaCustom
)

var mediaNames = map[MediaSize]string{
	MediaA0: "A0", MediaA1: "A1", MediaA2: "A2", MediaA3: "A3",
	MediaA4: "A4", MediaA5: "A5",
	MediaB0: "B0", MediaB1: "B1", MediaB2: "B2", MediaB3: "B3",
	MediaB4: "B4", MediaB5: "B5",
	MediaLetter: "Letter", MediaLegal: "Legal", MediaTabloid: "Tabloid",
	MediaCustom: "Custom",
}

func (m MediaSize) String() string {
	if s, ok := mediaNames[m]; ok {
		return s
	}
	return "Custom"
}

// ParseMediaSize maps a media-size string from print options to the enum.
// Unknown strings default to A4, matching the submission default.
func ParseMediaSize(s string) MediaSize {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A0":
		return MediaA0
	case "A1":
		return MediaA1
	case "A2":
		return MediaA2
	case "A3":
		return MediaA3
	case "A4":
		return MediaA4
	case "A5":
		return MediaA5
	case "B0":
		return MediaB0
	case "B1":
		return MediaB1
	case "B2":
		return MediaB2
	case "B3":
		return MediaB3
	case "B4":
		return MediaB4
	case "B5":
		return MediaB5
	case "LETTER":
		return MediaLetter
	case "LEGAL":
		return MediaLegal
	case "TABLOID", "11X17":
		return MediaTabloid
	default:
		return MediaA4
	}
}

// ColorMode selects the rendering color space.
type ColorMode int

const (
	Monochrome ColorMode = iota
	Color
	RGB
	CMYK
)

func (c ColorMode) String() string {
	switch c {
	case Color:
		return "color"
	case RGB:
		return "rgb"
	case CMYK:
		return "cmyk"
	default:
		return "monochrome"
	}
}

// ParseColorMode maps a color-mode option string to the enum. Anything that
// is not recognizably color falls back to monochrome.
func ParseColorMode(s string) ColorMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "color", "colour":
		return Color
	case "rgb":
		return RGB
	case "cmyk":
		return CMYK
	default:
		return Monochrome
	}
}

// QualityToDPI maps the 1-5 quality level from print options to a device DPI.
func QualityToDPI(quality int) int {
	switch {
	case quality >= 5:
		return 1200
	case quality >= 3:
		return 600
	default:
		return 300
	}
}

// Capabilities describes what a generator (and by extension the device it
// targets) can produce.
type Capabilities struct {
	Vendor               Vendor
	Model                string
	SupportedSizes       []MediaSize
	SupportedResolutions []int
	SupportedColors      []ColorMode
	SupportsDuplex       bool
	SupportsBooklet      bool
	MaxPaperWidthMM      float64
	MaxPaperHeightMM     float64
	CustomAttributes     map[string]string
}

// SupportsSize reports whether size appears in the supported list.
func (c Capabilities) SupportsSize(size MediaSize) bool {
	for _, s := range c.SupportedSizes {
		if s == size {
			return true
		}
	}
	return false
}

// ErrUnsupportedConfiguration is returned by generation methods when asked
// for a size, resolution or color mode the generator cannot produce.
// Callers are expected to gate on the Validate* methods first.
var ErrUnsupportedConfiguration = errors.New("unsupported configuration")

// Generator is the uniform contract over a plotter protocol. Generators are
// stateless with respect to jobs: one instance may serve many jobs
// concurrently and every call returns a fresh byte slice.
type Generator interface {
	// Header emits the protocol setup envelope for the given page geometry.
	Header(caps Capabilities, size MediaSize, mode ColorMode, dpi int) ([]byte, error)
	// Page wraps one raster page into the protocol's page framing.
	Page(raster []byte, width, height, dpi int) ([]byte, error)
	// Footer emits the protocol teardown sequence.
	Footer() []byte

	ValidateMediaSize(size MediaSize) bool
	ValidateResolution(dpi int) bool
	ValidateColorMode(mode ColorMode) bool

	Name() string
	Capabilities() Capabilities

	// OptimizeForVendor applies vendor-specific post-processing to a fully
	// assembled payload. It never fails; at worst it returns data unchanged.
	OptimizeForVendor(data []byte) []byte

	// NeedsPreprocessing reports whether the caller must raster-convert the
	// source document before Page can consume it.
	NeedsPreprocessing() bool
}

// PagePoints returns the page dimensions in PostScript points for a media
// size, and false for sizes without a registered dimension.
func PagePoints(size MediaSize) (width, height float64, ok bool) {
	d, ok := pagePoints[size]
	if !ok {
		return 0, 0, false
	}
	return d[0], d[1], true
}

var pagePoints = map[MediaSize][2]float64{
	MediaA0:      {2384, 3370},
	MediaA1:      {1684, 2384},
	MediaA2:      {1191, 1684},
	MediaA3:      {842, 1191},
	MediaA4:      {595, 842},
	MediaLetter:  {612, 792},
	MediaLegal:   {612, 1008},
	MediaTabloid: {792, 1224},
}

// PagePixels returns the raster page dimensions for a media size at the
// given DPI (points are 1/72 inch).
func PagePixels(size MediaSize, dpi int) (width, height int, err error) {
	w, h, ok := PagePoints(size)
	if !ok {
		return 0, 0, fmt.Errorf("%w: no page dimensions for %s", ErrUnsupportedConfiguration, size)
	}
	return int(w * float64(dpi) / 72.0), int(h * float64(dpi) / 72.0), nil
}
