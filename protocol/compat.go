package protocol

import "strings"

// CompatEntry is the static compatibility record for one plotter model:
// which protocols it speaks, which one to prefer, and its behavioral quirks.
// Entries are immutable at runtime; additions happen at build time only.
type CompatEntry struct {
	Vendor                Vendor
	Model                 string
	SupportedProtocols    []string
	PrimaryProtocol       string
	FallbackProtocols     []string
	RequiresPreprocessing bool
	Quirks                map[string]string
}

func compatKey(vendor Vendor, model string) string {
	prefix := ""
	switch vendor {
	case VendorHP:
		prefix = "HP_"
	case VendorCanon:
		prefix = "CANON_"
	case VendorEpson:
		prefix = "EPSON_"
	}
	return prefix + strings.ReplaceAll(strings.ReplaceAll(model, " ", "_"), "-", "_")
}

var compatDB = map[string]CompatEntry{
	// HP DesignJet family
	"HP_DesignJet_T1200": {
		Vendor:                VendorHP,
		Model:                 "DesignJet T1200",
		SupportedProtocols:    []string{"HPGL2", "PostScript", "PDF"},
		PrimaryProtocol:       "HPGL2",
		FallbackProtocols:     []string{"PostScript", "PDF"},
		RequiresPreprocessing: true,
		Quirks: map[string]string{
			"paper_feed_delay": "500ms",
			"pen_warmup":       "true",
		},
	},
	"HP_DesignJet_T2300": {
		Vendor:                VendorHP,
		Model:                 "DesignJet T2300",
		SupportedProtocols:    []string{"HPGL2", "PostScript", "PDF"},
		PrimaryProtocol:       "HPGL2",
		FallbackProtocols:     []string{"PostScript", "PDF"},
		RequiresPreprocessing: true,
		Quirks: map[string]string{
			"paper_feed_delay":  "300ms",
			"color_calibration": "required",
		},
	},
	"HP_DesignJet_T3500": {
		Vendor:                VendorHP,
		Model:                 "DesignJet T3500",
		SupportedProtocols:    []string{"HPGL2", "PostScript", "PDF"},
		PrimaryProtocol:       "HPGL2",
		FallbackProtocols:     []string{"PostScript", "PDF"},
		RequiresPreprocessing: true,
		Quirks: map[string]string{
			"paper_feed_delay": "200ms",
			"high_speed_mode":  "true",
		},
	},

	// Canon imagePROGRAF family
	"CANON_imagePROGRAF_TX_3000": {
		Vendor:             VendorCanon,
		Model:              "imagePROGRAF TX-3000",
		SupportedProtocols: []string{"PostScript", "PDF", "HPGL2"},
		PrimaryProtocol:    "PostScript",
		FallbackProtocols:  []string{"PDF", "HPGL2"},
		Quirks: map[string]string{
			"icc_profile_required":    "true",
			"ultrachrome_ink_support": "true",
		},
	},
	"CANON_imagePROGRAF_TX_4000": {
		Vendor:             VendorCanon,
		Model:              "imagePROGRAF TX-4000",
		SupportedProtocols: []string{"PostScript", "PDF", "HPGL2"},
		PrimaryProtocol:    "PostScript",
		FallbackProtocols:  []string{"PDF", "HPGL2"},
		Quirks: map[string]string{
			"icc_profile_required": "true",
			"lucia_pro_ink":        "true",
		},
	},
	"CANON_imagePROGRAF_PRO_6000": {
		Vendor:             VendorCanon,
		Model:              "imagePROGRAF PRO-6000",
		SupportedProtocols: []string{"PostScript", "PDF"},
		PrimaryProtocol:    "PostScript",
		FallbackProtocols:  []string{"PDF"},
		Quirks: map[string]string{
			"12_color_ink":       "true",
			"professional_grade": "true",
		},
	},

	// Epson SureColor family
	"EPSON_SureColor_T5200": {
		Vendor:             VendorEpson,
		Model:              "SureColor T5200",
		SupportedProtocols: []string{"PostScript", "ESC/P", "PDF"},
		PrimaryProtocol:    "PostScript",
		FallbackProtocols:  []string{"ESC/P", "PDF"},
		Quirks: map[string]string{
			"max_roll_width": "1118mm",
			"surecolor_mode": "true",
		},
	},
	"EPSON_SureColor_T7200": {
		Vendor:             VendorEpson,
		Model:              "SureColor T7200",
		SupportedProtocols: []string{"PostScript", "ESC/P", "PDF"},
		PrimaryProtocol:    "PostScript",
		FallbackProtocols:  []string{"ESC/P", "PDF"},
		Quirks: map[string]string{
			"max_roll_width":  "1118mm",
			"ultrachrome_xd2": "true",
		},
	},
	"EPSON_SureColor_T7700": {
		Vendor:             VendorEpson,
		Model:              "SureColor T7700",
		SupportedProtocols: []string{"PostScript", "ESC/P", "PDF"},
		PrimaryProtocol:    "PostScript",
		FallbackProtocols:  []string{"ESC/P", "PDF"},
		Quirks: map[string]string{
			"max_roll_width":    "1118mm",
			"dual_roll_support": "true",
		},
	},
}

// lookupCompat finds the entry for a (vendor, model) pair. The model string
// may be a full make-and-model; matching is tolerant of separators.
func lookupCompat(vendor Vendor, model string) (CompatEntry, bool) {
	key := compatKey(vendor, model)
	if e, ok := compatDB[key]; ok {
		return e, true
	}
	// Make-and-model strings usually embed the model name; fall back to a
	// substring match so "HP DesignJet T1200 PostScript" still resolves.
	norm := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(model, " ", "_"), "-", "_"))
	for k, e := range compatDB {
		if e.Vendor != vendor {
			continue
		}
		if strings.Contains(norm, strings.ToLower(strings.TrimPrefix(k, compatKey(vendor, "")))) {
			return e, true
		}
	}
	return CompatEntry{}, false
}

// IsCompatible reports whether the model exists in the registry and lists
// the protocol among its supported set.
func IsCompatible(vendor Vendor, model, protocolName string) bool {
	e, ok := lookupCompat(vendor, model)
	if !ok {
		return false
	}
	for _, p := range e.SupportedProtocols {
		if p == protocolName {
			return true
		}
	}
	return false
}

// RecommendedProtocol returns the registry primary for the model, or the
// vendor default (HPGL2 for HP, PostScript otherwise) for unknown models.
func RecommendedProtocol(vendor Vendor, model string) string {
	if e, ok := lookupCompat(vendor, model); ok {
		return e.PrimaryProtocol
	}
	if vendor == VendorHP {
		return "HPGL2"
	}
	return "PostScript"
}

// FallbackProtocols returns the ordered fallback list for the model, or the
// generic ordering for unknown models.
func FallbackProtocols(vendor Vendor, model string) []string {
	if e, ok := lookupCompat(vendor, model); ok {
		out := make([]string, len(e.FallbackProtocols))
		copy(out, e.FallbackProtocols)
		return out
	}
	return []string{"PostScript", "HPGL2", "ESC/P"}
}

// Quirks returns the model's quirk mapping; empty for unknown models.
func Quirks(vendor Vendor, model string) map[string]string {
	e, ok := lookupCompat(vendor, model)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(e.Quirks))
	for k, v := range e.Quirks {
		out[k] = v
	}
	return out
}

// KnownPlotters returns every registry entry. Order is unspecified.
func KnownPlotters() []CompatEntry {
	out := make([]CompatEntry, 0, len(compatDB))
	for _, e := range compatDB {
		out = append(out, e)
	}
	return out
}
