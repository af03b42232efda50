package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"allpress/protocol"
	"allpress/spooler"
)

type testLogger struct{}

func (testLogger) Error(msg string, _ ...interface{}) {}
func (testLogger) Warn(msg string, _ ...interface{})  {}
func (testLogger) Info(msg string, _ ...interface{})  {}
func (testLogger) Debug(msg string, _ ...interface{}) {}

type fakeGateway struct {
	dests []spooler.Destination
	err   error
}

func (g *fakeGateway) Enumerate(ctx context.Context) ([]spooler.Destination, error) {
	return g.dests, g.err
}

func (g *fakeGateway) Submit(ctx context.Context, printer, filePath string, opts spooler.PrintOptions) (int, error) {
	return 0, errors.New("not implemented")
}

func (g *fakeGateway) Cancel(ctx context.Context, spoolID int) error { return nil }

func (g *fakeGateway) PrinterAttributes(ctx context.Context, uri string) (spooler.Destination, error) {
	return spooler.Destination{}, nil
}

func newTestDirectory(gw *fakeGateway, reachable bool) *Directory {
	d := New(gw, testLogger{}, Config{DialTimeout: 10 * time.Millisecond})
	d.probeFunc = func(host string, port int, timeout time.Duration) bool { return reachable }
	return d
}

func TestTwoTierProbeUnreachableNetworkDevice(t *testing.T) {
	// Spooler says idle, but the host does not answer: the dial verdict wins.
	gw := &fakeGateway{dests: []spooler.Destination{{
		Name:      "lan-printer-7",
		URI:       "ipp://10.0.0.250:631/ipp/print",
		MakeModel: "HP DesignJet T1200",
		State:     spooler.StateIdle,
	}}}
	d := newTestDirectory(gw, false)

	printers, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(printers) != 1 {
		t.Fatalf("got %d printers, want 1", len(printers))
	}
	if printers[0].IsOnline {
		t.Error("unreachable network device must be offline")
	}
	if printers[0].Status != spooler.StateStopped {
		t.Errorf("status = %d, want stopped", printers[0].Status)
	}
}

func TestTwoTierProbeReachableNetworkDevice(t *testing.T) {
	gw := &fakeGateway{dests: []spooler.Destination{{
		Name:  "lan-printer-8",
		URI:   "socket://192.168.1.40:9100",
		State: spooler.StateProcessing,
	}}}
	d := newTestDirectory(gw, true)

	printers, _ := d.Discover(context.Background())
	if !printers[0].IsOnline {
		t.Error("reachable device reported offline")
	}
}

func TestLocalURITrustsSpoolerState(t *testing.T) {
	gw := &fakeGateway{dests: []spooler.Destination{
		{Name: "usb-printer", URI: "usb://HP/OfficeJet?serial=X", State: spooler.StateIdle},
		{Name: "stopped-usb", URI: "usb://HP/Other?serial=Y", State: spooler.StateStopped},
	}}
	// probeFunc would fail, but local URIs must never be dialed
	d := newTestDirectory(gw, false)

	printers, _ := d.Discover(context.Background())
	if !printers[0].IsOnline {
		t.Error("idle USB printer must follow spooler state")
	}
	if printers[1].IsOnline {
		t.Error("stopped USB printer must be offline")
	}
}

func TestStateReasonsOverrideReadiness(t *testing.T) {
	gw := &fakeGateway{dests: []spooler.Destination{{
		Name:         "flaky",
		URI:          "ipp://192.168.1.50:631/ipp/print",
		State:        spooler.StateIdle,
		StateReasons: []string{"media-empty-warning", "offline-report"},
	}}}
	d := newTestDirectory(gw, true)

	printers, _ := d.Discover(context.Background())
	if printers[0].IsOnline {
		t.Error("offline state reason must mark the device offline without dialing")
	}
}

func TestDetectVendor(t *testing.T) {
	cases := []struct {
		model string
		want  protocol.Vendor
	}{
		{"HP DesignJet T1200", protocol.VendorHP},
		{"Hewlett-Packard LaserJet", protocol.VendorHP},
		{"Canon imagePROGRAF TX-3000", protocol.VendorCanon},
		{"EPSON SureColor T5200", protocol.VendorEpson},
		{"Brother HL-2270DW", protocol.VendorGeneric},
	}
	for _, c := range cases {
		if got := DetectVendor(c.model); got != c.want {
			t.Errorf("DetectVendor(%q) = %s, want %s", c.model, got, c.want)
		}
	}
}

func discoverOne(t *testing.T, d *Directory) {
	t.Helper()
	if _, err := d.Discover(context.Background()); err != nil {
		t.Fatalf("discover: %v", err)
	}
}

func TestIsPlotter(t *testing.T) {
	gw := &fakeGateway{dests: []spooler.Destination{
		{Name: "plotter1", URI: "ipp://192.168.1.60:631", MakeModel: "HP DesignJet T3500", State: spooler.StateIdle},
		{Name: "office1", URI: "ipp://192.168.1.61:631", MakeModel: "HP LaserJet Pro M404", State: spooler.StateIdle},
		{Name: "wide1", URI: "ipp://192.168.1.62:631", MakeModel: "Acme Wide Format 9000", State: spooler.StateIdle},
	}}
	d := newTestDirectory(gw, true)
	discoverOne(t, d)

	if !d.IsPlotter("plotter1") {
		t.Error("DesignJet is a plotter")
	}
	if d.IsPlotter("office1") {
		t.Error("LaserJet is not a plotter")
	}
	if !d.IsPlotter("wide1") {
		t.Error("wide format keyword marks a plotter")
	}
	if d.IsPlotter("nonexistent") {
		t.Error("unknown printers are not plotters")
	}
}

func TestAdvancedInfoResolution(t *testing.T) {
	gw := &fakeGateway{dests: []spooler.Destination{{
		Name:      "plotter1",
		URI:       "ipp://192.168.1.60:631",
		MakeModel: "HP DesignJet T1200",
		State:     spooler.StateIdle,
	}}}
	d := newTestDirectory(gw, true)
	discoverOne(t, d)

	adv, err := d.AdvancedInfo("plotter1")
	if err != nil {
		t.Fatalf("advanced info: %v", err)
	}
	if adv.Vendor != protocol.VendorHP {
		t.Errorf("vendor = %s, want HP", adv.Vendor)
	}
	if adv.RecommendedProtocol != "HPGL2" {
		t.Errorf("recommended = %q, want HPGL2", adv.RecommendedProtocol)
	}
	if len(adv.SupportedProtocols) == 0 || adv.SupportedProtocols[0] != "HPGL2" {
		t.Errorf("recommended protocol must be hoisted to position 0, got %v", adv.SupportedProtocols)
	}
	if adv.Quirks["paper_feed_delay"] != "500ms" {
		t.Errorf("quirks = %v", adv.Quirks)
	}
	if adv.Capabilities.Vendor != protocol.VendorHP {
		t.Error("capabilities must come from the recommended generator")
	}
}

func TestAdvancedInfoCachePrunedByDiscovery(t *testing.T) {
	gw := &fakeGateway{dests: []spooler.Destination{{
		Name: "plotter1", URI: "ipp://192.168.1.60:631",
		MakeModel: "HP DesignJet T1200", State: spooler.StateIdle,
	}}}
	d := newTestDirectory(gw, true)
	discoverOne(t, d)

	if _, err := d.AdvancedInfo("plotter1"); err != nil {
		t.Fatalf("advanced info: %v", err)
	}
	d.cacheMu.Lock()
	_, cached := d.advanced["ipp://192.168.1.60:631"]
	d.cacheMu.Unlock()
	if !cached {
		t.Fatal("advanced info should be cached after resolution")
	}

	// Device disappears from the next pass: its cache entry must go too.
	gw.dests = nil
	discoverOne(t, d)
	d.cacheMu.Lock()
	_, cached = d.advanced["ipp://192.168.1.60:631"]
	d.cacheMu.Unlock()
	if cached {
		t.Error("cache entry must not outlive the discovery pass that dropped the device")
	}
}

// Two successive identical passes must resolve to equal advanced records.
func TestAdvancedInfoStableAcrossPasses(t *testing.T) {
	gw := &fakeGateway{dests: []spooler.Destination{{
		Name: "plotter1", URI: "ipp://192.168.1.60:631",
		MakeModel: "Canon imagePROGRAF TX-4000", State: spooler.StateIdle,
	}}}
	d := newTestDirectory(gw, true)

	discoverOne(t, d)
	first, err := d.AdvancedInfo("plotter1")
	if err != nil {
		t.Fatal(err)
	}
	discoverOne(t, d)
	second, err := d.AdvancedInfo("plotter1")
	if err != nil {
		t.Fatal(err)
	}
	if first.RecommendedProtocol != second.RecommendedProtocol ||
		first.Vendor != second.Vendor ||
		len(first.SupportedProtocols) != len(second.SupportedProtocols) {
		t.Errorf("advanced info changed across identical passes: %+v vs %+v", first, second)
	}
}

func TestSelectProtocol(t *testing.T) {
	gw := &fakeGateway{dests: []spooler.Destination{
		{Name: "hp1", URI: "ipp://192.168.1.60:631", MakeModel: "HP DesignJet T1200", State: spooler.StateIdle},
		{Name: "canon1", URI: "ipp://192.168.1.61:631", MakeModel: "Canon imagePROGRAF PRO-6000", State: spooler.StateIdle},
		{Name: "mystery", URI: "ipp://192.168.1.62:631", MakeModel: "Acme Plotter 5", State: spooler.StateIdle},
	}}
	d := newTestDirectory(gw, true)
	discoverOne(t, d)

	opts := spooler.DefaultOptions()
	if got := d.SelectProtocol("hp1", opts); got != "HPGL2" {
		t.Errorf("hp1 protocol = %q", got)
	}
	if got := d.SelectProtocol("canon1", opts); got != "PostScript" {
		t.Errorf("canon1 protocol = %q", got)
	}
	if got := d.SelectProtocol("mystery", opts); got != "PostScript" {
		t.Errorf("mystery protocol = %q", got)
	}
}

func TestValidateDocument(t *testing.T) {
	gw := &fakeGateway{dests: []spooler.Destination{{
		Name: "hp1", URI: "ipp://192.168.1.60:631",
		MakeModel: "HP DesignJet T1200", State: spooler.StateIdle,
	}}}
	d := newTestDirectory(gw, true)
	discoverOne(t, d)

	opts := spooler.DefaultOptions()
	opts.MediaSize = "A1"
	opts.ColorMode = "color"
	opts.Quality = 5
	if err := d.ValidateDocument("hp1", opts); err != nil {
		t.Errorf("A1 color should validate: %v", err)
	}

	opts.MediaSize = "B2"
	if err := d.ValidateDocument("hp1", opts); err == nil {
		t.Error("B2 is not supported by the HPGL2 generator")
	}

	// Quality 1 maps to 300 dpi, a resolution HPGL2 supports, so A4 validates.
	opts.MediaSize = "A4"
	opts.Quality = 1
	if err := d.ValidateDocument("hp1", opts); err != nil {
		t.Errorf("quality 1 maps to 300 dpi which HPGL2 supports: %v", err)
	}
}

func TestNetworkHostPort(t *testing.T) {
	cases := []struct {
		uri      string
		wantHost string
		wantPort int
		wantOK   bool
	}{
		{"ipp://10.0.0.250:631/ipp/print", "10.0.0.250", 631, true},
		{"ipp://10.0.0.250/ipp/print", "10.0.0.250", 631, true},
		{"socket://192.168.1.40", "192.168.1.40", 9100, true},
		{"lpd://192.168.1.41/queue", "192.168.1.41", 515, true},
		{"http://192.168.1.42:8080/", "192.168.1.42", 8080, true},
		{"usb://HP/OfficeJet?serial=X", "", 0, false},
		{"file:///dev/null", "", 0, false},
		{"ipp://localhost:631/printers/x", "", 0, false},
	}
	for _, c := range cases {
		host, port, ok := networkHostPort(c.uri)
		if ok != c.wantOK || host != c.wantHost || port != c.wantPort {
			t.Errorf("networkHostPort(%q) = (%q, %d, %v), want (%q, %d, %v)",
				c.uri, host, port, ok, c.wantHost, c.wantPort, c.wantOK)
		}
	}
}

func TestSweepSubnetNoDevices(t *testing.T) {
	d := New(&fakeGateway{}, testLogger{}, Config{
		Subnet:           "192.0.2",
		DiscoveryTimeout: 2 * time.Second,
	})
	d.probeFunc = func(host string, port int, timeout time.Duration) bool { return false }

	devices, err := d.SweepSubnet(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("sweep of dead subnet found %d devices", len(devices))
	}
}
