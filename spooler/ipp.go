package spooler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	goipp "github.com/OpenPrinting/goipp"
)

// IPPGateway implements Gateway against a CUPS scheduler over IPP.
type IPPGateway struct {
	Host string
	Port int
	User string

	// HTTPClient may be replaced in tests. Nil means a 60s-timeout default.
	HTTPClient *http.Client

	reqID atomic.Uint32
}

// NewIPPGateway returns a gateway talking to the scheduler at host:port.
// Empty host means localhost; zero port means 631.
func NewIPPGateway(host string, port int) *IPPGateway {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 631
	}
	return &IPPGateway{Host: host, Port: port}
}

func (g *IPPGateway) httpClient() *http.Client {
	if g.HTTPClient != nil {
		return g.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (g *IPPGateway) baseURL(path string) string {
	return "http://" + g.Host + ":" + strconv.Itoa(g.Port) + path
}

func (g *IPPGateway) printerURI(name string) string {
	return fmt.Sprintf("ipp://%s/printers/%s", g.Host, url.PathEscape(strings.TrimSpace(name)))
}

func (g *IPPGateway) newRequest(op goipp.Op) *goipp.Message {
	req := goipp.NewRequest(goipp.DefaultVersion, op, g.reqID.Add(1))
	req.Operation.Add(goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")))
	req.Operation.Add(goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en-US")))
	return req
}

// send posts an IPP message (plus optional document payload) and decodes the
// response.
func (g *IPPGateway) send(ctx context.Context, path string, msg *goipp.Message, data io.Reader) (*goipp.Message, error) {
	payload, err := msg.EncodeBytes()
	if err != nil {
		return nil, err
	}
	body := io.Reader(bytes.NewReader(payload))
	if data != nil {
		body = io.MultiReader(bytes.NewReader(payload), data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", goipp.ContentType)
	req.Header.Set("Accept", goipp.ContentType)

	resp, err := g.httpClient().Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, errors.New(resp.Status)
	}
	out := &goipp.Message{}
	if err := out.Decode(resp.Body); err != nil {
		return nil, err
	}
	if status := goipp.Status(out.Code); status > goipp.StatusOkConflicting {
		return nil, fmt.Errorf("ipp: %s", status)
	}
	return out, nil
}

// Enumerate issues CUPS-Get-Printers and maps each printer group to a
// Destination. The device-uri attribute is preferred over the local queue
// URI so reachability probing can target the physical device.
func (g *IPPGateway) Enumerate(ctx context.Context) ([]Destination, error) {
	req := g.newRequest(goipp.OpCupsGetPrinters)
	req.Operation.Add(goipp.MakeAttr("requested-attributes", goipp.TagKeyword,
		goipp.String("printer-name"),
		goipp.String("printer-state"),
		goipp.String("printer-state-reasons"),
		goipp.String("device-uri"),
		goipp.String("printer-location"),
		goipp.String("printer-info"),
		goipp.String("printer-make-and-model"),
	))

	resp, err := g.send(ctx, "/", req, nil)
	if err != nil {
		return nil, fmt.Errorf("enumerate printers: %w", err)
	}

	var dests []Destination
	for _, grp := range resp.Groups {
		if grp.Tag != goipp.TagPrinterGroup {
			continue
		}
		name := findAttr(grp.Attrs, "printer-name")
		if name == "" {
			continue
		}
		d := Destination{
			Name:         name,
			URI:          findAttr(grp.Attrs, "device-uri"),
			MakeModel:    findAttr(grp.Attrs, "printer-make-and-model"),
			Location:     findAttr(grp.Attrs, "printer-location"),
			Info:         findAttr(grp.Attrs, "printer-info"),
			State:        findAttrInt(grp.Attrs, "printer-state"),
			StateReasons: attrStrings(grp.Attrs, "printer-state-reasons"),
		}
		if d.URI == "" {
			d.URI = g.printerURI(name)
		}
		dests = append(dests, d)
	}
	return dests, nil
}

// Submit streams the file to the destination with Print-Job and returns the
// spooler-assigned job id.
func (g *IPPGateway) Submit(ctx context.Context, printer, filePath string, opts PrintOptions) (int, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	req := g.newRequest(goipp.OpPrintJob)
	req.Operation.Add(goipp.MakeAttribute("printer-uri", goipp.TagURI, goipp.String(g.printerURI(printer))))
	req.Operation.Add(goipp.MakeAttribute("requesting-user-name", goipp.TagName, goipp.String(requestingUser())))
	req.Operation.Add(goipp.MakeAttribute("job-name", goipp.TagName, goipp.String(filepath.Base(filePath))))
	req.Operation.Add(goipp.MakeAttribute("document-format", goipp.TagMimeType, goipp.String(documentFormat(filePath))))

	if opts.Copies > 1 {
		req.Job.Add(goipp.MakeAttribute("copies", goipp.TagInteger, goipp.Integer(opts.Copies)))
	}
	if opts.MediaSize != "" {
		req.Job.Add(goipp.MakeAttribute("media", goipp.TagKeyword, goipp.String(opts.MediaSize)))
	}
	if opts.ColorMode == "color" {
		req.Job.Add(goipp.MakeAttribute("print-color-mode", goipp.TagKeyword, goipp.String("color")))
	} else {
		req.Job.Add(goipp.MakeAttribute("print-color-mode", goipp.TagKeyword, goipp.String("monochrome")))
	}

	resp, err := g.send(ctx, "/ipp/print", req, f)
	if err != nil {
		return 0, fmt.Errorf("print-job: %w", err)
	}
	id := responseJobID(resp)
	if id <= 0 {
		return 0, errors.New("print-job: missing job-id in response")
	}
	return id, nil
}

// Cancel issues Cancel-Job for a spooler job id.
func (g *IPPGateway) Cancel(ctx context.Context, spoolID int) error {
	req := g.newRequest(goipp.OpCancelJob)
	req.Operation.Add(goipp.MakeAttribute("job-uri", goipp.TagURI,
		goipp.String(fmt.Sprintf("ipp://%s/jobs/%d", g.Host, spoolID))))
	req.Operation.Add(goipp.MakeAttribute("requesting-user-name", goipp.TagName, goipp.String(requestingUser())))
	if _, err := g.send(ctx, "/jobs/", req, nil); err != nil {
		return fmt.Errorf("cancel-job %d: %w", spoolID, err)
	}
	return nil
}

// PrinterAttributes issues Get-Printer-Attributes against a queue URI.
func (g *IPPGateway) PrinterAttributes(ctx context.Context, uri string) (Destination, error) {
	req := g.newRequest(goipp.OpGetPrinterAttributes)
	req.Operation.Add(goipp.MakeAttribute("printer-uri", goipp.TagURI, goipp.String(uri)))
	req.Operation.Add(goipp.MakeAttr("requested-attributes", goipp.TagKeyword,
		goipp.String("printer-name"),
		goipp.String("printer-state"),
		goipp.String("printer-state-reasons"),
		goipp.String("printer-location"),
		goipp.String("printer-make-and-model"),
	))

	resp, err := g.send(ctx, "/", req, nil)
	if err != nil {
		return Destination{}, fmt.Errorf("get-printer-attributes %s: %w", uri, err)
	}
	d := Destination{URI: uri}
	for _, grp := range resp.Groups {
		if grp.Tag != goipp.TagPrinterGroup {
			continue
		}
		d.Name = findAttr(grp.Attrs, "printer-name")
		d.MakeModel = findAttr(grp.Attrs, "printer-make-and-model")
		d.Location = findAttr(grp.Attrs, "printer-location")
		d.State = findAttrInt(grp.Attrs, "printer-state")
		d.StateReasons = attrStrings(grp.Attrs, "printer-state-reasons")
		break
	}
	return d, nil
}

func findAttr(attrs goipp.Attributes, name string) string {
	for _, attr := range attrs {
		if attr.Name == name && len(attr.Values) > 0 {
			return attr.Values[0].V.String()
		}
	}
	return ""
}

func findAttrInt(attrs goipp.Attributes, name string) int {
	s := findAttr(attrs, name)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func attrStrings(attrs goipp.Attributes, name string) []string {
	for _, attr := range attrs {
		if attr.Name != name {
			continue
		}
		out := make([]string, 0, len(attr.Values))
		for _, v := range attr.Values {
			out = append(out, v.V.String())
		}
		return out
	}
	return nil
}

func responseJobID(resp *goipp.Message) int {
	for _, attrs := range []goipp.Attributes{resp.Operation, resp.Job} {
		if n := findAttrInt(attrs, "job-id"); n > 0 {
			return n
		}
	}
	for _, grp := range resp.Groups {
		if n := findAttrInt(grp.Attrs, "job-id"); n > 0 {
			return n
		}
	}
	return 0
}

func documentFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".ps", ".converted":
		return "application/octet-stream"
	case ".txt":
		return "text/plain"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func requestingUser() string {
	for _, key := range []string{"CUPS_USER", "USER", "USERNAME"} {
		if user := strings.TrimSpace(os.Getenv(key)); user != "" {
			return user
		}
	}
	return "anonymous"
}
