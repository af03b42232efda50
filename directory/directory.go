// Package directory discovers printing devices through the spooler gateway,
// verifies their reachability, classifies wide-format plotters and caches
// per-device protocol knowledge.
package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"allpress/protocol"
	"allpress/spooler"
)

// Logger is the minimal logging surface the directory needs. Implemented by
// the app's structured logger; kept small to avoid tight coupling.
type Logger interface {
	Error(msg string, context ...interface{})
	Warn(msg string, context ...interface{})
	Info(msg string, context ...interface{})
	Debug(msg string, context ...interface{})
}

// PrinterInfo is one discovered device.
type PrinterInfo struct {
	Name        string    `json:"name"`
	URI         string    `json:"uri"`
	MakeModel   string    `json:"make_model,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      int       `json:"status"`
	JobsCount   int       `json:"jobs_count"`
	IsOnline    bool      `json:"is_online"`
	LastUpdated time.Time `json:"last_updated"`
}

// AdvancedInfo is a PrinterInfo enriched with registry-provided protocol
// knowledge. Derived once per device per discovery pass and cached by URI.
type AdvancedInfo struct {
	Printer             PrinterInfo           `json:"printer"`
	Vendor              protocol.Vendor       `json:"vendor"`
	SupportedProtocols  []string              `json:"supported_protocols"`
	RecommendedProtocol string                `json:"recommended_protocol"`
	Capabilities        protocol.Capabilities `json:"capabilities"`
	Quirks              map[string]string     `json:"quirks,omitempty"`
}

// Config carries the directory's probe and sweep settings.
type Config struct {
	// DialTimeout bounds each reachability dial. Default 2s.
	DialTimeout time.Duration
	// DiscoveryTimeout bounds a whole subnet sweep. Default 5s.
	DiscoveryTimeout time.Duration
	// Subnet is the /24 base for sweeps, e.g. "192.168.1".
	Subnet string
	// SNMPCommunity for the description fallback probe. Default "public".
	SNMPCommunity string
}

func (c *Config) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 2 * time.Second
	}
	if c.DiscoveryTimeout <= 0 {
		c.DiscoveryTimeout = 5 * time.Second
	}
	if c.Subnet == "" {
		c.Subnet = "192.168.1"
	}
	if c.SNMPCommunity == "" {
		c.SNMPCommunity = "public"
	}
}

// Directory owns the enumerated device list and the advanced-info cache.
type Directory struct {
	gw  spooler.Gateway
	log Logger
	cfg Config

	mu       sync.Mutex
	printers []PrinterInfo

	cacheMu  sync.Mutex
	advanced map[string]AdvancedInfo

	cbMu            sync.Mutex
	statusCallbacks []func(PrinterInfo)

	monitorCancel context.CancelFunc
	monitorDone   chan struct{}

	// probeFunc is replaced in tests to avoid real dials.
	probeFunc func(host string, port int, timeout time.Duration) bool
}

// New creates a Directory over the given spooler gateway.
func New(gw spooler.Gateway, log Logger, cfg Config) *Directory {
	cfg.applyDefaults()
	return &Directory{
		gw:        gw,
		log:       log,
		cfg:       cfg,
		advanced:  make(map[string]AdvancedInfo),
		probeFunc: probeTCP,
	}
}

// Discover enumerates the spooler's devices and applies the two-tier
// reachability check: spooler readiness first, then a TCP dial for
// network-attached URIs. The advanced-info cache is pruned to the URIs seen
// in this pass so a cache hit never outlives the pass that produced it.
func (d *Directory) Discover(ctx context.Context) ([]PrinterInfo, error) {
	dests, err := d.gw.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("spooler enumeration: %w", err)
	}

	now := time.Now()
	printers := make([]PrinterInfo, 0, len(dests))
	seen := make(map[string]bool, len(dests))
	for _, dest := range dests {
		info := d.probeDestination(dest)
		info.LastUpdated = now
		printers = append(printers, info)
		seen[info.URI] = true
		d.log.Info(fmt.Sprintf("printer %s | uri=%s | state=%d | online=%v",
			info.Name, info.URI, info.Status, info.IsOnline))
	}

	d.mu.Lock()
	d.printers = printers
	d.mu.Unlock()

	d.cacheMu.Lock()
	for uri := range d.advanced {
		if !seen[uri] {
			delete(d.advanced, uri)
		}
	}
	d.cacheMu.Unlock()

	d.log.Info(fmt.Sprintf("discovered %d printers", len(printers)))
	return printers, nil
}

// probeDestination derives the online flag for one destination. A stale
// "idle" from the spooler for a powered-off networked device is the common
// failure this resolves: spooler readiness alone is not trusted for network
// URIs.
func (d *Directory) probeDestination(dest spooler.Destination) PrinterInfo {
	info := PrinterInfo{
		Name:        dest.Name,
		URI:         dest.URI,
		MakeModel:   dest.MakeModel,
		Location:    dest.Location,
		Description: dest.Info,
		Status:      dest.State,
	}

	ready := dest.State == spooler.StateIdle || dest.State == spooler.StateProcessing
	for _, reason := range dest.StateReasons {
		r := strings.ToLower(reason)
		if strings.Contains(r, "offline") || strings.Contains(r, "shutdown") || strings.Contains(r, "paused") {
			ready = false
		}
	}
	if !ready {
		info.IsOnline = false
		return info
	}

	host, port, isNetwork := networkHostPort(dest.URI)
	if !isNetwork {
		// Local URI (USB, file): trust spooler readiness.
		info.IsOnline = true
		return info
	}
	if d.probeFunc(host, port, d.cfg.DialTimeout) {
		info.IsOnline = true
	} else {
		info.IsOnline = false
		info.Status = spooler.StateStopped
	}
	return info
}

// Printers returns a copy of the current device list.
func (d *Directory) Printers() []PrinterInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PrinterInfo, len(d.printers))
	copy(out, d.printers)
	return out
}

// Printer looks a device up by name or URI.
func (d *Directory) Printer(nameOrURI string) (PrinterInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.printers {
		if p.Name == nameOrURI || p.URI == nameOrURI {
			return p, true
		}
	}
	return PrinterInfo{}, false
}

// plotterKeywords mark a make-and-model as a wide-format device.
var plotterKeywords = []string{
	"designjet", "imageprograf", "surecolor",
	"plotter", "wide format", "large format",
}

// IsPlotter reports whether the named device is classified as a plotter.
func (d *Directory) IsPlotter(nameOrURI string) bool {
	p, ok := d.Printer(nameOrURI)
	if !ok {
		return false
	}
	model := strings.ToLower(p.MakeModel)
	for _, kw := range plotterKeywords {
		if strings.Contains(model, kw) {
			return true
		}
	}
	return false
}

// DetectVendor classifies a make-and-model string into a vendor family.
func DetectVendor(makeModel string) protocol.Vendor {
	m := strings.ToLower(makeModel)
	switch {
	case strings.Contains(m, "hp"), strings.Contains(m, "hewlett"), strings.Contains(m, "designjet"):
		return protocol.VendorHP
	case strings.Contains(m, "canon"), strings.Contains(m, "imageprograf"):
		return protocol.VendorCanon
	case strings.Contains(m, "epson"), strings.Contains(m, "surecolor"):
		return protocol.VendorEpson
	default:
		return protocol.VendorGeneric
	}
}

// AdvancedInfo resolves the cached advanced record for a device URI,
// deriving it from the registry and the recommended generator on a miss.
func (d *Directory) AdvancedInfo(nameOrURI string) (AdvancedInfo, error) {
	p, ok := d.Printer(nameOrURI)
	if !ok {
		return AdvancedInfo{}, fmt.Errorf("unknown printer %q", nameOrURI)
	}

	d.cacheMu.Lock()
	if adv, hit := d.advanced[p.URI]; hit {
		d.cacheMu.Unlock()
		return adv, nil
	}
	d.cacheMu.Unlock()

	adv := d.buildAdvancedInfo(p)

	d.cacheMu.Lock()
	d.advanced[p.URI] = adv
	d.cacheMu.Unlock()
	return adv, nil
}

func (d *Directory) buildAdvancedInfo(p PrinterInfo) AdvancedInfo {
	vendor := DetectVendor(p.MakeModel)
	adv := AdvancedInfo{
		Printer:             p,
		Vendor:              vendor,
		RecommendedProtocol: protocol.RecommendedProtocol(vendor, p.MakeModel),
		Quirks:              protocol.Quirks(vendor, p.MakeModel),
	}

	// Ordered protocol list: recommended hoisted to position 0.
	adv.SupportedProtocols = []string{adv.RecommendedProtocol}
	for _, proto := range protocol.FallbackProtocols(vendor, p.MakeModel) {
		if proto != adv.RecommendedProtocol {
			adv.SupportedProtocols = append(adv.SupportedProtocols, proto)
		}
	}

	gen, err := protocol.NewGenerator(adv.RecommendedProtocol, vendor)
	if err != nil {
		d.log.Error(fmt.Sprintf("no generator for %s (%s): %v", p.Name, adv.RecommendedProtocol, err))
		adv.Capabilities = protocol.Capabilities{Vendor: vendor, Model: p.MakeModel}
		return adv
	}
	adv.Capabilities = gen.Capabilities()
	adv.Capabilities.Model = p.MakeModel
	return adv
}

// SelectProtocol picks the payload protocol for a job: the device's
// recommended protocol when advanced info has one, otherwise a vendor
// default.
func (d *Directory) SelectProtocol(nameOrURI string, opts spooler.PrintOptions) string {
	adv, err := d.AdvancedInfo(nameOrURI)
	if err == nil && adv.RecommendedProtocol != "" {
		return adv.RecommendedProtocol
	}
	switch adv.Vendor {
	case protocol.VendorHP:
		return "HPGL2"
	default:
		return "PostScript"
	}
}

// ValidateDocument checks a job's options against the device's chosen
// generator. Size and color mismatches are fatal; a resolution mismatch only
// logs a warning. Generators do not adjust the DPI: their Header rejects a
// resolution they do not support.
func (d *Directory) ValidateDocument(nameOrURI string, opts spooler.PrintOptions) error {
	adv, err := d.AdvancedInfo(nameOrURI)
	if err != nil {
		return err
	}
	gen, err := protocol.NewGenerator(d.SelectProtocol(nameOrURI, opts), adv.Vendor)
	if err != nil {
		return fmt.Errorf("protocol for %s: %w", nameOrURI, err)
	}

	size := protocol.ParseMediaSize(opts.MediaSize)
	if !gen.ValidateMediaSize(size) {
		return fmt.Errorf("media size %s not supported by %s", opts.MediaSize, nameOrURI)
	}
	mode := protocol.ParseColorMode(opts.ColorMode)
	if !gen.ValidateColorMode(mode) {
		return fmt.Errorf("color mode %s not supported by %s", opts.ColorMode, nameOrURI)
	}
	if dpi := protocol.QualityToDPI(opts.Quality); !gen.ValidateResolution(dpi) {
		d.log.Warn(fmt.Sprintf("resolution %d dpi not supported by the protocol generator for %s", dpi, nameOrURI))
	}
	return nil
}

// RegisterStatusCallback adds a listener for per-printer updates emitted by
// the monitoring loop.
func (d *Directory) RegisterStatusCallback(cb func(PrinterInfo)) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	d.statusCallbacks = append(d.statusCallbacks, cb)
}

// StartMonitoring launches a loop that re-runs discovery every interval and
// notifies the registered status callbacks.
func (d *Directory) StartMonitoring(ctx context.Context, interval time.Duration) {
	if d.monitorCancel != nil {
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	mctx, cancel := context.WithCancel(ctx)
	d.monitorCancel = cancel
	d.monitorDone = make(chan struct{})

	go func() {
		defer close(d.monitorDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-mctx.Done():
				return
			case <-ticker.C:
				printers, err := d.Discover(mctx)
				if err != nil {
					d.log.Warn("status monitoring discovery failed: " + err.Error())
					continue
				}
				d.cbMu.Lock()
				cbs := make([]func(PrinterInfo), len(d.statusCallbacks))
				copy(cbs, d.statusCallbacks)
				d.cbMu.Unlock()
				for _, p := range printers {
					for _, cb := range cbs {
						cb(p)
					}
				}
			}
		}
	}()
	d.log.Info("printer status monitoring started")
}

// StopMonitoring stops the monitoring loop and waits for it to exit.
func (d *Directory) StopMonitoring() {
	if d.monitorCancel == nil {
		return
	}
	d.monitorCancel()
	<-d.monitorDone
	d.monitorCancel = nil
	d.monitorDone = nil
	d.log.Info("printer status monitoring stopped")
}
