// Package spooler abstracts the platform print service. The core treats
// every gateway call as potentially blocking and potentially failing; the
// shipped implementation speaks IPP to a CUPS scheduler.
package spooler

import "context"

// printer-state values per RFC 8011 (and CUPS).
const (
	StateIdle       = 3
	StateProcessing = 4
	StateStopped    = 5
)

// Destination is one spooler-side print queue as reported by enumeration.
type Destination struct {
	Name         string
	URI          string // device-uri when known, otherwise the queue URI
	MakeModel    string
	Location     string
	Info         string
	State        int
	StateReasons []string
}

// PrintOptions are the caller-facing print settings. Quality is a 1-5 level
// that maps onto device DPI downstream.
type PrintOptions struct {
	MediaSize   string `json:"media_size"`
	ColorMode   string `json:"color_mode"`
	Duplex      string `json:"duplex"`
	Copies      int    `json:"copies"`
	Quality     int    `json:"quality"`
	Orientation string `json:"orientation"`
	Collate     bool   `json:"collate"`
}

// DefaultOptions returns the submission defaults.
func DefaultOptions() PrintOptions {
	return PrintOptions{
		MediaSize:   "A4",
		ColorMode:   "color",
		Duplex:      "none",
		Copies:      1,
		Quality:     3,
		Orientation: "portrait",
		Collate:     true,
	}
}

// Gateway is the southbound sink for finalized payloads. Submit returns the
// spooler-assigned job id; a zero or negative id means the submission was
// rejected.
type Gateway interface {
	// Enumerate lists the spooler's destinations.
	Enumerate(ctx context.Context) ([]Destination, error)
	// Submit hands a file to the named destination and returns the
	// spooler-assigned job id.
	Submit(ctx context.Context, printer, filePath string, opts PrintOptions) (int, error)
	// Cancel asks the spooler to cancel one of its jobs.
	Cancel(ctx context.Context, spoolID int) error
	// PrinterAttributes fetches a single destination's attributes by URI.
	PrinterAttributes(ctx context.Context, uri string) (Destination, error)
}
