package protocol

import (
	"bytes"
	"strconv"
)

// HPGLGenerator emits HP-GL or HP-GL/2 command streams. The dialect is fixed
// at construction; HP-GL/2 adds the enter/exit escapes and multi-pen color.
type HPGLGenerator struct {
	caps  Capabilities
	hpgl2 bool
}

// HP-GL media select codes for the supported sizes (A0-A4 plus Letter).
// A0 maps to roll feed on the DesignJet family.
var hpglMediaCodes = map[MediaSize]string{
	MediaA0:     "ROL",
	MediaA1:     "A1P",
	MediaA2:     "A2P",
	MediaA3:     "A3P",
	MediaA4:     "A4P",
	MediaLetter: "LETTERP",
}

var hpglResolutions = map[int]bool{300: true, 600: true, 1200: true}

// NewHPGLGenerator returns a generator for the requested dialect.
func NewHPGLGenerator(hpgl2 bool) *HPGLGenerator {
	return &HPGLGenerator{
		hpgl2: hpgl2,
		caps: Capabilities{
			Vendor: VendorHP,
			SupportedSizes: []MediaSize{
				MediaA0, MediaA1, MediaA2, MediaA3, MediaA4, MediaLetter,
			},
			SupportedResolutions: []int{300, 600, 1200},
			SupportedColors:      []ColorMode{Monochrome, Color},
			// 44 inch roll
			MaxPaperWidthMM:  1118,
			MaxPaperHeightMM: 1600,
		},
	}
}

func (g *HPGLGenerator) Header(caps Capabilities, size MediaSize, mode ColorMode, dpi int) ([]byte, error) {
	if !g.ValidateMediaSize(size) || !g.ValidateResolution(dpi) || !g.ValidateColorMode(mode) {
		return nil, ErrUnsupportedConfiguration
	}

	var buf bytes.Buffer
	buf.WriteString("\x1b.@") // reset
	buf.WriteString("ES")     // enter setup
	if g.hpgl2 {
		buf.WriteString("\x1b%0B") // enter HP-GL/2 mode
	}

	buf.WriteString("PU0,0;")
	buf.WriteString("PA0,0;")

	if code, ok := hpglMediaCodes[size]; ok {
		buf.WriteString("PM" + code + ";")
	}
	buf.WriteString("PS" + strconv.Itoa(dpi) + ";")

	if g.hpgl2 && mode == Color {
		buf.WriteString("MC3;") // three-pen multi-color
	}
	buf.WriteString("SP1;")
	return buf.Bytes(), nil
}

// Page passes through raster data already converted to HP-GL commands by the
// upstream raster-to-vector step (NeedsPreprocessing is true for this
// generator). The data is copied unchanged; no plot-absolute or pen commands
// are added around it.
func (g *HPGLGenerator) Page(raster []byte, width, height, dpi int) ([]byte, error) {
	if !g.ValidateResolution(dpi) {
		return nil, ErrUnsupportedConfiguration
	}
	out := make([]byte, 0, len(raster))
	out = append(out, raster...)
	return out, nil
}

func (g *HPGLGenerator) Footer() []byte {
	var buf bytes.Buffer
	buf.WriteString("PU;")
	buf.WriteString("\x1bE") // exit plot mode
	if g.hpgl2 {
		buf.WriteString("\x1b%0A")
	}
	buf.WriteString("\x1b.@")
	return buf.Bytes()
}

func (g *HPGLGenerator) ValidateMediaSize(size MediaSize) bool {
	_, ok := hpglMediaCodes[size]
	return ok
}

func (g *HPGLGenerator) ValidateResolution(dpi int) bool {
	return hpglResolutions[dpi]
}

func (g *HPGLGenerator) ValidateColorMode(mode ColorMode) bool {
	return mode == Monochrome || (g.hpgl2 && mode == Color)
}

func (g *HPGLGenerator) Name() string {
	if g.hpgl2 {
		return "HPGL2"
	}
	return "HPGL"
}

func (g *HPGLGenerator) Capabilities() Capabilities { return g.caps }

func (g *HPGLGenerator) OptimizeForVendor(data []byte) []byte { return data }

func (g *HPGLGenerator) NeedsPreprocessing() bool { return true }
