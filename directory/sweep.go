package directory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	goipp "github.com/OpenPrinting/goipp"
)

// SweptDevice is one host found by a subnet sweep.
type SweptDevice struct {
	IP          string   `json:"ip"`
	Port        int      `json:"port"`
	PrinterType string   `json:"printer_type,omitempty"` // IPP, Raw, LPD
	Name        string   `json:"name,omitempty"`
	MakeModel   string   `json:"make_model,omitempty"`
	Location    string   `json:"location,omitempty"`
	Methods     []string `json:"discovery_methods,omitempty"`
}

// sweepPorts are the printer service ports probed per host.
var sweepPorts = map[int]string{631: "IPP", 9100: "Raw", 515: "LPD"}

// SweepSubnet probes hosts 1..254 on the configured /24, splitting the range
// across one worker per CPU. Hosts answering on 631 get an IPP attribute
// query for name, make-and-model and location; hosts that answer 631 but
// return nothing useful fall back to the SNMP description probe. The whole
// sweep is bounded by the directory's discovery timeout.
func (d *Directory) SweepSubnet(ctx context.Context) ([]SweptDevice, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.DiscoveryTimeout)
	defer cancel()

	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	perWorker := 254 / workers

	var (
		mu      sync.Mutex
		results []SweptDevice
		wg      sync.WaitGroup
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		start := w*perWorker + 1
		end := (w + 1) * perWorker
		if w == workers-1 {
			end = 254
		}
		go func(start, end int) {
			defer wg.Done()
			for host := start; host <= end; host++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				ip := d.cfg.Subnet + "." + strconv.Itoa(host)
				dev, ok := d.sweepHost(ctx, ip)
				if !ok {
					continue
				}
				mu.Lock()
				results = append(results, dev)
				mu.Unlock()
			}
		}(start, end)
	}
	wg.Wait()

	d.log.Info(fmt.Sprintf("subnet sweep of %s.0/24 found %d devices", d.cfg.Subnet, len(results)))
	return results, ctx.Err()
}

func (d *Directory) sweepHost(ctx context.Context, ip string) (SweptDevice, bool) {
	// Short per-host timeout; the sweep visits up to 254 hosts.
	probeTimeout := 100 * time.Millisecond

	dev := SweptDevice{IP: ip}
	for port, kind := range sweepPorts {
		if !d.probeFunc(ip, port, probeTimeout) {
			continue
		}
		if dev.Port == 0 || port == 631 {
			dev.Port = port
			dev.PrinterType = kind
		}
		dev.Methods = append(dev.Methods, "tcp:"+strconv.Itoa(port))
	}
	if dev.Port == 0 {
		return SweptDevice{}, false
	}

	if dev.Port == 631 {
		if name, makeModel, location, err := queryIPPAttributes(ctx, ip, 631); err == nil {
			dev.Name = name
			dev.MakeModel = makeModel
			dev.Location = location
			dev.Methods = append(dev.Methods, "ipp")
		}
	}
	if dev.MakeModel == "" {
		if descr, location, err := snmpDescription(ip, d.cfg.SNMPCommunity, probeTimeout*10); err == nil {
			dev.MakeModel = descr
			if dev.Location == "" {
				dev.Location = location
			}
			dev.Methods = append(dev.Methods, "snmp")
		}
	}
	return dev, true
}

// queryIPPAttributes asks the device itself (not the spooler) for its
// printer attributes.
func queryIPPAttributes(ctx context.Context, ip string, port int) (name, makeModel, location string, err error) {
	uri := fmt.Sprintf("ipp://%s:%d/ipp/print", ip, port)
	req := goipp.NewRequest(goipp.DefaultVersion, goipp.OpGetPrinterAttributes, 1)
	req.Operation.Add(goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")))
	req.Operation.Add(goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en-US")))
	req.Operation.Add(goipp.MakeAttribute("printer-uri", goipp.TagURI, goipp.String(uri)))
	req.Operation.Add(goipp.MakeAttr("requested-attributes", goipp.TagKeyword,
		goipp.String("printer-name"),
		goipp.String("printer-make-and-model"),
		goipp.String("printer-location"),
	))

	payload, err := req.EncodeBytes()
	if err != nil {
		return "", "", "", err
	}
	httpURL := fmt.Sprintf("http://%s:%d/ipp/print", ip, port)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, httpURL, bytes.NewReader(payload))
	if err != nil {
		return "", "", "", err
	}
	httpReq.Header.Set("Content-Type", goipp.ContentType)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", "", "", fmt.Errorf("ipp attributes: %s", resp.Status)
	}

	msg := &goipp.Message{}
	if err := msg.Decode(io.LimitReader(resp.Body, 1<<20)); err != nil {
		return "", "", "", err
	}
	for _, grp := range msg.Groups {
		if grp.Tag != goipp.TagPrinterGroup {
			continue
		}
		for _, attr := range grp.Attrs {
			if len(attr.Values) == 0 {
				continue
			}
			switch attr.Name {
			case "printer-name":
				name = attr.Values[0].V.String()
			case "printer-make-and-model":
				makeModel = attr.Values[0].V.String()
			case "printer-location":
				location = attr.Values[0].V.String()
			}
		}
	}
	return name, makeModel, location, nil
}
