package protocol

import (
	"bytes"
	"strings"
	"testing"
)

func TestHPGLHeaderLayout(t *testing.T) {
	gen := NewHPGLGenerator(true)
	header, err := gen.Header(gen.Capabilities(), MediaA1, Color, 1200)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if !bytes.HasPrefix(header, []byte("\x1b.@")) {
		t.Errorf("header must begin with the reset escape, got %q", header[:4])
	}
	s := string(header)
	for _, want := range []string{"\x1b%0B", "PU0,0;", "PA0,0;", "PMA1P;", "PS1200;", "MC3;", "SP1;"} {
		if !strings.Contains(s, want) {
			t.Errorf("header missing %q:\n%q", want, s)
		}
	}
}

func TestHPGLHeaderMonochromeOmitsMultiPen(t *testing.T) {
	gen := NewHPGLGenerator(true)
	header, err := gen.Header(gen.Capabilities(), MediaA4, Monochrome, 600)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if strings.Contains(string(header), "MC3;") {
		t.Error("monochrome header should not select multi-color pens")
	}
}

func TestHPGLDialect(t *testing.T) {
	if got := NewHPGLGenerator(true).Name(); got != "HPGL2" {
		t.Errorf("Name() = %q, want HPGL2", got)
	}
	if got := NewHPGLGenerator(false).Name(); got != "HPGL" {
		t.Errorf("Name() = %q, want HPGL", got)
	}

	// The HP-GL/2 escapes belong to the 2 dialect only.
	h2, _ := NewHPGLGenerator(true).Header(Capabilities{}, MediaA4, Monochrome, 300)
	h1, _ := NewHPGLGenerator(false).Header(Capabilities{}, MediaA4, Monochrome, 300)
	if !strings.Contains(string(h2), "\x1b%0B") {
		t.Error("HPGL2 header missing enter-HPGL2 escape")
	}
	if strings.Contains(string(h1), "\x1b%0B") {
		t.Error("HPGL header must not carry the enter-HPGL2 escape")
	}
}

func TestHPGLFooterEndsWithReset(t *testing.T) {
	gen := NewHPGLGenerator(true)
	footer := gen.Footer()
	if !bytes.HasSuffix(footer, []byte("\x1b.@")) {
		t.Errorf("footer must end with reset, got %q", footer)
	}
	if !strings.Contains(string(footer), "\x1b%0A") {
		t.Error("HPGL2 footer missing exit-HPGL2 escape")
	}
	if !strings.HasPrefix(string(footer), "PU;") {
		t.Error("footer must start with pen-up")
	}
}

func TestHPGLValidation(t *testing.T) {
	gen := NewHPGLGenerator(true)

	for _, size := range []MediaSize{MediaA0, MediaA1, MediaA4, MediaLetter} {
		if !gen.ValidateMediaSize(size) {
			t.Errorf("size %s should validate", size)
		}
	}
	if gen.ValidateMediaSize(MediaB2) {
		t.Error("B2 should not validate")
	}
	// Supported media is A0-A4 plus Letter only.
	if gen.ValidateMediaSize(MediaLegal) || gen.ValidateMediaSize(MediaTabloid) {
		t.Error("Legal and Tabloid are PostScript-only sizes")
	}

	for _, dpi := range []int{300, 600, 1200} {
		if !gen.ValidateResolution(dpi) {
			t.Errorf("dpi %d should validate", dpi)
		}
	}
	if gen.ValidateResolution(720) {
		t.Error("720 dpi is PostScript-only")
	}

	if !gen.ValidateColorMode(Color) {
		t.Error("HPGL2 supports color")
	}
	if NewHPGLGenerator(false).ValidateColorMode(Color) {
		t.Error("plain HPGL is monochrome only")
	}
}

// Validation gating is monotonic: a validated size always generates.
func TestHPGLHeaderSucceedsForEveryValidatedSize(t *testing.T) {
	gen := NewHPGLGenerator(true)
	for size := MediaA0; size <= MediaCustom; size++ {
		if !gen.ValidateMediaSize(size) {
			continue
		}
		if _, err := gen.Header(gen.Capabilities(), size, Monochrome, 600); err != nil {
			t.Errorf("size %s validated but header failed: %v", size, err)
		}
	}
}

// The validation surface and the advertised capability set must agree.
func TestHPGLValidationMatchesCapabilities(t *testing.T) {
	gen := NewHPGLGenerator(true)
	caps := gen.Capabilities()
	for size := MediaA0; size <= MediaCustom; size++ {
		if gen.ValidateMediaSize(size) != caps.SupportsSize(size) {
			t.Errorf("validation for %s disagrees with advertised capabilities", size)
		}
	}
}

func TestHPGLHeaderUnsupportedConfiguration(t *testing.T) {
	gen := NewHPGLGenerator(true)
	if _, err := gen.Header(gen.Capabilities(), MediaB2, Monochrome, 600); err == nil {
		t.Fatal("expected error for unsupported size")
	}
	if _, err := gen.Header(gen.Capabilities(), MediaLegal, Monochrome, 600); err == nil {
		t.Fatal("expected error for Legal on an HP-GL target")
	}
	if _, err := gen.Header(gen.Capabilities(), MediaA4, Monochrome, 720); err == nil {
		t.Fatal("expected error for unsupported resolution")
	}
}

func TestHPGLNeedsPreprocessing(t *testing.T) {
	if !NewHPGLGenerator(true).NeedsPreprocessing() {
		t.Error("HPGL requires raster-to-vector preprocessing")
	}
}
