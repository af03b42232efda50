package protocol

import (
	"bytes"
	"fmt"
)

// PostScriptGenerator emits a PS-Adobe-3.0 envelope carrying DCT-encoded
// raster pages. It is parameterized by the target vendor so the header can
// include the vendor's setuserparams hints.
type PostScriptGenerator struct {
	caps   Capabilities
	vendor Vendor
}

var psResolutions = map[int]bool{300: true, 600: true, 720: true, 1200: true}

// NewPostScriptGenerator returns a PostScript generator tuned for vendor.
func NewPostScriptGenerator(vendor Vendor) *PostScriptGenerator {
	model := ""
	switch vendor {
	case VendorCanon:
		model = "imagePROGRAF"
	case VendorEpson:
		model = "SureColor"
	}
	return &PostScriptGenerator{
		vendor: vendor,
		caps: Capabilities{
			Vendor: vendor,
			Model:  model,
			SupportedSizes: []MediaSize{
				MediaA0, MediaA1, MediaA2, MediaA3, MediaA4,
				MediaLetter, MediaLegal, MediaTabloid,
			},
			SupportedResolutions: []int{300, 600, 720, 1200},
			SupportedColors:      []ColorMode{Monochrome, Color},
			MaxPaperWidthMM:      1118,
			MaxPaperHeightMM:     1600,
		},
	}
}

func (g *PostScriptGenerator) Header(caps Capabilities, size MediaSize, mode ColorMode, dpi int) ([]byte, error) {
	if !g.ValidateMediaSize(size) || !g.ValidateResolution(dpi) || !g.ValidateColorMode(mode) {
		return nil, ErrUnsupportedConfiguration
	}

	var buf bytes.Buffer
	buf.WriteString("%!PS-Adobe-3.0\n")
	buf.WriteString("%%Creator: AllPress\n")

	if w, h, ok := PagePoints(size); ok {
		buf.WriteString("<<\n")
		fmt.Fprintf(&buf, "  /PageSize [%g %g]\n", w, h)
		buf.WriteString("  /MediaClass (plain)\n")
		if mode == Color {
			buf.WriteString("  /ColorModel /DeviceRGB\n")
		} else {
			buf.WriteString("  /ColorModel /DeviceGray\n")
		}
		fmt.Fprintf(&buf, "  /HWResolution [%d %d]\n", dpi, dpi)
		buf.WriteString(">> setpagedevice\n\n")
	}

	switch g.vendor {
	case VendorCanon:
		buf.WriteString("% Canon imagePROGRAF settings\n")
		buf.WriteString("<< /ColorRenderingType 1 >> setuserparams\n")
	case VendorEpson:
		buf.WriteString("% Epson SureColor settings\n")
		buf.WriteString("<< /Optimize true >> setuserparams\n")
	}

	buf.WriteString("%%EndProlog\n\n")
	return buf.Bytes(), nil
}

func (g *PostScriptGenerator) Page(raster []byte, width, height, dpi int) ([]byte, error) {
	if !g.ValidateResolution(dpi) {
		return nil, ErrUnsupportedConfiguration
	}
	var buf bytes.Buffer
	buf.WriteString("gsave\n")
	fmt.Fprintf(&buf, "%d %d scale\n", width, height)
	buf.WriteString("currentfile /DCTDecode filter\n")
	buf.WriteString("image\n")
	buf.Write(raster)
	return buf.Bytes(), nil
}

func (g *PostScriptGenerator) Footer() []byte {
	return []byte("grestore\nshowpage\n%%EOF\n")
}

func (g *PostScriptGenerator) ValidateMediaSize(size MediaSize) bool {
	_, _, ok := PagePoints(size)
	return ok
}

func (g *PostScriptGenerator) ValidateResolution(dpi int) bool {
	return psResolutions[dpi]
}

func (g *PostScriptGenerator) ValidateColorMode(mode ColorMode) bool {
	return mode == Monochrome || mode == Color
}

func (g *PostScriptGenerator) Name() string { return "PostScript" }

func (g *PostScriptGenerator) Capabilities() Capabilities { return g.caps }

// OptimizeForVendor is a hook for vendor payload rewrites (Canon CMYK
// rendering, Epson UltraChrome tuning). The current passes are identity.
func (g *PostScriptGenerator) OptimizeForVendor(data []byte) []byte { return data }

func (g *PostScriptGenerator) NeedsPreprocessing() bool { return false }
