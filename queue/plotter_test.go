package queue

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"allpress/directory"
	"allpress/protocol"
	"allpress/spooler"
)

// plotterDirectory is a canned directory answering for one HP plotter.
type plotterDirectory struct {
	validateErr error
}

func (d plotterDirectory) IsPlotter(printer string) bool { return printer == "designjet" }

func (d plotterDirectory) AdvancedInfo(printer string) (directory.AdvancedInfo, error) {
	gen := protocol.NewHPGLGenerator(true)
	return directory.AdvancedInfo{
		Vendor:              protocol.VendorHP,
		RecommendedProtocol: "HPGL2",
		SupportedProtocols:  []string{"HPGL2", "PostScript", "PDF"},
		Capabilities:        gen.Capabilities(),
	}, nil
}

func (d plotterDirectory) SelectProtocol(printer string, opts spooler.PrintOptions) string {
	return "HPGL2"
}

func (d plotterDirectory) ValidateDocument(printer string, opts spooler.PrintOptions) error {
	return d.validateErr
}

// captureGateway snapshots the staged payload at submission time, before
// the worker deletes the temp file.
type captureGateway struct {
	mu       sync.Mutex
	paths    []string
	payloads [][]byte
}

func (g *captureGateway) Enumerate(ctx context.Context) ([]spooler.Destination, error) {
	return nil, nil
}

func (g *captureGateway) Submit(ctx context.Context, printer, filePath string, opts spooler.PrintOptions) (int, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paths = append(g.paths, filePath)
	g.payloads = append(g.payloads, data)
	return 42, nil
}

func (g *captureGateway) Cancel(ctx context.Context, spoolID int) error { return nil }

func (g *captureGateway) PrinterAttributes(ctx context.Context, uri string) (spooler.Destination, error) {
	return spooler.Destination{}, nil
}

func TestPlotterSubmitWithHPGLSynthesis(t *testing.T) {
	gw := &captureGateway{}
	q := newTestQueue(1, gw)
	q.SetDirectory(plotterDirectory{})
	q.Start()
	defer q.Stop()

	src := filepath.Join(t.TempDir(), "drawing.hpgl")
	raster := []byte("PD100,100;PU200,200;")
	if err := os.WriteFile(src, raster, 0o644); err != nil {
		t.Fatal(err)
	}

	opts := spooler.DefaultOptions()
	opts.MediaSize = "A1"
	opts.ColorMode = "color"
	opts.Quality = 5
	id, err := q.AddJob(PrintJob{Printer: "designjet", FilePath: src, Options: opts})
	if err != nil {
		t.Fatal(err)
	}

	j := waitForStatus(t, q, id, StatusCompleted)
	if j.SpoolID != 42 {
		t.Errorf("spool id = %d, want 42", j.SpoolID)
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.paths) != 1 {
		t.Fatalf("expected one submission, got %d", len(gw.paths))
	}
	if gw.paths[0] != src+".converted" {
		t.Errorf("submitted %s, want sibling .converted file", gw.paths[0])
	}

	payload := gw.payloads[0]
	if !bytes.HasPrefix(payload, []byte("\x1b.@")) {
		t.Error("payload must begin with the HP-GL reset escape")
	}
	if !bytes.HasSuffix(payload, []byte("\x1b.@")) {
		t.Error("payload must end with the HP-GL reset escape")
	}
	s := string(payload)
	for _, want := range []string{"PMA1P;", "PS1200;", "MC3;"} {
		if !strings.Contains(s, want) {
			t.Errorf("payload missing %q", want)
		}
	}
	if !strings.Contains(s, string(raster)) {
		t.Error("payload must embed the source data")
	}

	// The staged temp file is deleted after successful submission.
	deadline := time.Now().Add(time.Second)
	for {
		if _, err := os.Stat(src + ".converted"); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("temp .converted file still present after completion")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPlotterIncompatibleMediaFailsBeforeSubmission(t *testing.T) {
	gw := &captureGateway{}
	q := newTestQueue(1, gw)
	q.SetDirectory(plotterDirectory{validateErr: errors.New("media size B2 not supported by designjet")})
	q.Start()
	defer q.Stop()

	src := filepath.Join(t.TempDir(), "drawing.hpgl")
	if err := os.WriteFile(src, []byte("PD;"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := spooler.DefaultOptions()
	opts.MediaSize = "B2"
	id, _ := q.AddJob(PrintJob{Printer: "designjet", FilePath: src, Options: opts})

	j := waitForStatus(t, q, id, StatusFailed)
	if !strings.Contains(j.ErrorMessage, "not supported") {
		t.Errorf("error message %q should mention the unsupported size", j.ErrorMessage)
	}
	if j.SpoolID != 0 {
		t.Error("validation failure must not dispatch")
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.paths) != 0 {
		t.Error("no spooler submission may be attempted after a validation failure")
	}
}
