// Package queue holds the persistent FIFO of print jobs and the bounded
// worker pool that drives each job through its lifecycle.
package queue

import (
	"errors"
	"time"

	"allpress/directory"
	"allpress/spooler"
)

// JobStatus is the job lifecycle state.
type JobStatus int

const (
	StatusPending JobStatus = iota
	StatusProcessing
	StatusPrinting
	StatusCompleted
	StatusFailed
	StatusCancelled
	StatusPaused
)

var statusNames = map[JobStatus]string{
	StatusPending:    "pending",
	StatusProcessing: "processing",
	StatusPrinting:   "printing",
	StatusCompleted:  "completed",
	StatusFailed:     "failed",
	StatusCancelled:  "cancelled",
	StatusPaused:     "paused",
}

func (s JobStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// Terminal reports whether the status is retry-reachable terminal state.
func (s JobStatus) Terminal() bool {
	return s == StatusFailed || s == StatusCancelled
}

// PrintJob is one submission. Fields other than ID are mutated only by the
// owning queue; callers always receive copies.
type PrintJob struct {
	ID               int                  `json:"id"`
	Printer          string               `json:"printer"`
	FilePath         string               `json:"file_path"`
	OriginalFilename string               `json:"original_filename,omitempty"`
	Options          spooler.PrintOptions `json:"options"`
	Status           JobStatus            `json:"status"`
	CreatedAt        time.Time            `json:"created_at"`
	StartedAt        time.Time            `json:"started_at,omitempty"`
	CompletedAt      time.Time            `json:"completed_at,omitempty"`
	// SpoolID is the spooler-assigned id; nonzero exactly when the gateway
	// acknowledged dispatch.
	SpoolID        int     `json:"spool_id"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	Progress       float64 `json:"progress"`
	FileSize       int64   `json:"file_size,omitempty"`
	EstimatedPages int     `json:"estimated_pages,omitempty"`
}

// Error kinds of the worker boundary. Lower-layer failures are wrapped into
// one of these before they reach the job record.
var (
	ErrFileMissing      = errors.New("source file missing")
	ErrValidationFailed = errors.New("validation failed")
	ErrGenerationFailed = errors.New("protocol generation failed")
	ErrSpoolerRejected  = errors.New("spooler rejected job")
	ErrCancelled        = errors.New("cancelled by user")
	// ErrQueueFull is returned by AddJob when a depth cap is configured and
	// reached. The queue is unbounded by default.
	ErrQueueFull = errors.New("queue full")
)

// PrinterDirectory is the view of the device directory the queue needs. The
// concrete directory is injected after both components are constructed; the
// queue never owns it.
type PrinterDirectory interface {
	IsPlotter(printer string) bool
	AdvancedInfo(printer string) (directory.AdvancedInfo, error)
	SelectProtocol(printer string, opts spooler.PrintOptions) string
	ValidateDocument(printer string, opts spooler.PrintOptions) error
}

// Logger is the minimal logging surface used by the queue.
type Logger interface {
	Error(msg string, context ...interface{})
	Warn(msg string, context ...interface{})
	Info(msg string, context ...interface{})
	Debug(msg string, context ...interface{})
}
