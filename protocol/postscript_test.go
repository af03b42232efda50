package protocol

import (
	"strings"
	"testing"
)

func TestPostScriptHeaderLayout(t *testing.T) {
	gen := NewPostScriptGenerator(VendorGeneric)
	header, err := gen.Header(gen.Capabilities(), MediaA4, Color, 600)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	s := string(header)
	if !strings.HasPrefix(s, "%!PS-Adobe-3.0\n") {
		t.Errorf("header must start with the DSC magic, got %q", s[:20])
	}
	for _, want := range []string{
		"/PageSize [595 842]",
		"/ColorModel /DeviceRGB",
		"/HWResolution [600 600]",
		">> setpagedevice",
		"%%EndProlog",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("header missing %q:\n%s", want, s)
		}
	}
}

func TestPostScriptHeaderMonochrome(t *testing.T) {
	gen := NewPostScriptGenerator(VendorGeneric)
	header, err := gen.Header(gen.Capabilities(), MediaLetter, Monochrome, 300)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	s := string(header)
	if !strings.Contains(s, "/ColorModel /DeviceGray") {
		t.Error("monochrome header must select DeviceGray")
	}
	if !strings.Contains(s, "/PageSize [612 792]") {
		t.Error("Letter is 612x792 points")
	}
}

func TestPostScriptVendorHints(t *testing.T) {
	canon, _ := NewPostScriptGenerator(VendorCanon).Header(Capabilities{}, MediaA2, Color, 600)
	if !strings.Contains(string(canon), "/ColorRenderingType 1 >> setuserparams") {
		t.Error("Canon header missing ColorRenderingType hint")
	}
	epson, _ := NewPostScriptGenerator(VendorEpson).Header(Capabilities{}, MediaA2, Color, 720)
	if !strings.Contains(string(epson), "/Optimize true >> setuserparams") {
		t.Error("Epson header missing Optimize hint")
	}
	generic, _ := NewPostScriptGenerator(VendorGeneric).Header(Capabilities{}, MediaA2, Color, 600)
	if strings.Contains(string(generic), "setuserparams") {
		t.Error("generic header must not carry vendor hints")
	}
}

func TestPostScriptPageFraming(t *testing.T) {
	gen := NewPostScriptGenerator(VendorEpson)
	raster := []byte{0xff, 0xd8, 0xff, 0xe0}
	page, err := gen.Page(raster, 4960, 7016, 600)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	s := string(page)
	for _, want := range []string{"gsave\n", "4960 7016 scale\n", "/DCTDecode filter\n", "image\n"} {
		if !strings.Contains(s, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if !strings.HasSuffix(s, string(raster)) {
		t.Error("raster bytes must trail the image operator")
	}
}

func TestPostScriptFooter(t *testing.T) {
	footer := string(NewPostScriptGenerator(VendorGeneric).Footer())
	if footer != "grestore\nshowpage\n%%EOF\n" {
		t.Errorf("unexpected footer %q", footer)
	}
}

func TestPostScriptValidation(t *testing.T) {
	gen := NewPostScriptGenerator(VendorGeneric)
	for _, size := range []MediaSize{MediaA0, MediaA4, MediaLegal, MediaTabloid} {
		if !gen.ValidateMediaSize(size) {
			t.Errorf("size %s should validate", size)
		}
	}
	if gen.ValidateMediaSize(MediaB1) {
		t.Error("B1 has no registered page dimensions")
	}
	if !gen.ValidateResolution(720) {
		t.Error("720 dpi is supported by PostScript targets")
	}
	if gen.ValidateResolution(150) {
		t.Error("150 dpi unsupported")
	}
	if !gen.ValidateColorMode(Color) || !gen.ValidateColorMode(Monochrome) {
		t.Error("both color modes supported")
	}
	if gen.NeedsPreprocessing() {
		t.Error("PostScript consumes raster directly")
	}
}

func TestPagePixels(t *testing.T) {
	w, h, err := PagePixels(MediaA4, 300)
	if err != nil {
		t.Fatalf("PagePixels: %v", err)
	}
	// A4 at 300 dpi is 2479x3508 (595x842 points / 72 * 300)
	if w != 2479 || h != 3508 {
		t.Errorf("A4@300 = %dx%d, want 2479x3508", w, h)
	}
	if _, _, err := PagePixels(MediaB2, 300); err == nil {
		t.Error("expected error for size without dimensions")
	}
}
