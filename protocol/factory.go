package protocol

import "fmt"

// NewGenerator resolves a protocol tag to a generator instance. The vendor
// parameterizes PostScript output; HP-GL ignores it.
func NewGenerator(protocolName string, vendor Vendor) (Generator, error) {
	switch protocolName {
	case "HPGL", "HPGL2":
		return NewHPGLGenerator(protocolName == "HPGL2"), nil
	case "PostScript":
		return NewPostScriptGenerator(vendor), nil
	case "ESC/P":
		return nil, fmt.Errorf("protocol ESC/P not implemented")
	default:
		return nil, fmt.Errorf("unknown protocol %q", protocolName)
	}
}

// NewGeneratorForPrinter picks the registry-recommended protocol for the
// model and returns the matching generator.
func NewGeneratorForPrinter(vendor Vendor, model string) (Generator, error) {
	return NewGenerator(RecommendedProtocol(vendor, model), vendor)
}

// AvailableProtocols returns the ordered protocol list for a model: the
// recommended protocol first, then the fallbacks with the recommended entry
// deduplicated out.
func AvailableProtocols(vendor Vendor, model string) []string {
	primary := RecommendedProtocol(vendor, model)
	out := []string{primary}
	for _, p := range FallbackProtocols(vendor, model) {
		if p != primary {
			out = append(out, p)
		}
	}
	return out
}
