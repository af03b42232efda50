package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"allpress/spooler"
)

// Queue is the job FIFO plus its worker pool. One mutex guards the FIFO,
// the id lookup map and callback registration; a condition variable wakes
// workers. Callbacks are never invoked while the mutex is held.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	fifo    []*PrintJob
	jobs    map[int]*PrintJob
	nextID  int
	running bool

	statusCb   func(PrintJob)
	progressCb func(jobID int, progress float64)

	maxWorkers int
	// maxDepth caps queued submissions when positive; zero means unbounded.
	maxDepth int

	wg         sync.WaitGroup
	activeJobs atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	gw  spooler.Gateway
	dir PrinterDirectory
	log Logger

	// progressTick is the synthetic progress cadence; tests shorten it.
	progressTick time.Duration
}

// New creates a queue with the given worker count; a count below 1 falls
// back to the default of 4.
func New(maxWorkers int, log Logger) *Queue {
	if maxWorkers < 1 {
		maxWorkers = 4
	}
	q := &Queue{
		jobs:         make(map[int]*PrintJob),
		nextID:       1,
		maxWorkers:   maxWorkers,
		log:          log,
		progressTick: 100 * time.Millisecond,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// SetGateway injects the spooler gateway. Must be called before Start.
func (q *Queue) SetGateway(gw spooler.Gateway) { q.gw = gw }

// SetDirectory injects the device directory back-reference. The queue holds
// it as an interface and never owns it.
func (q *Queue) SetDirectory(dir PrinterDirectory) { q.dir = dir }

// SetMaxQueueDepth caps the number of queued jobs; zero removes the cap.
func (q *Queue) SetMaxQueueDepth(depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.maxDepth = depth
}

// SetJobStatusCallback registers the single status listener. Registration
// is idempotent; a later call replaces the earlier one.
func (q *Queue) SetJobStatusCallback(cb func(PrintJob)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statusCb = cb
}

// SetProgressCallback registers the single progress listener.
func (q *Queue) SetProgressCallback(cb func(jobID int, progress float64)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.progressCb = cb
}

// AddJob enqueues a submission and returns its id. Ids are unique within
// the process and strictly increasing in submission order.
func (q *Queue) AddJob(job PrintJob) (int, error) {
	q.mu.Lock()
	if q.maxDepth > 0 && len(q.fifo) >= q.maxDepth {
		q.mu.Unlock()
		return 0, ErrQueueFull
	}
	job.ID = q.nextID
	q.nextID++
	job.Status = StatusPending
	job.CreatedAt = time.Now()
	job.StartedAt = time.Time{}
	job.CompletedAt = time.Time{}
	job.SpoolID = 0
	job.Progress = 0
	job.ErrorMessage = ""
	if fi, err := os.Stat(job.FilePath); err == nil {
		job.FileSize = fi.Size()
	}

	jp := &job
	q.jobs[job.ID] = jp
	q.fifo = append(q.fifo, jp)
	snapshot := *jp
	cb := q.statusCb
	q.mu.Unlock()

	q.cond.Signal()
	q.log.Info(fmt.Sprintf("job %d queued for printer %s", snapshot.ID, snapshot.Printer))
	if cb != nil {
		cb(snapshot)
	}
	return snapshot.ID, nil
}

// CancelJob flips the job to Cancelled. Cancellation is cooperative: a
// worker mid-job observes the flag at its next tick boundary. A job already
// dispatched keeps its spooler id; unsending it requires the spooler's own
// cancel interface.
func (q *Queue) CancelJob(id int) bool {
	q.mu.Lock()
	jp, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	// Settled jobs cannot be cancelled; a late call must not rewrite
	// history or fire a phantom transition.
	if jp.Status == StatusCompleted || jp.Status.Terminal() {
		q.mu.Unlock()
		return false
	}
	jp.Status = StatusCancelled
	snapshot := *jp
	cb := q.statusCb
	q.mu.Unlock()

	q.log.Info(fmt.Sprintf("job %d cancelled", id))
	if cb != nil {
		cb(snapshot)
	}
	return true
}

// PauseJob parks a pending job; the worker loop skips paused jobs.
func (q *Queue) PauseJob(id int) bool {
	q.mu.Lock()
	jp, ok := q.jobs[id]
	if !ok || jp.Status != StatusPending {
		q.mu.Unlock()
		return false
	}
	jp.Status = StatusPaused
	snapshot := *jp
	cb := q.statusCb
	q.mu.Unlock()

	q.log.Info(fmt.Sprintf("job %d paused", id))
	if cb != nil {
		cb(snapshot)
	}
	return true
}

// ResumeJob returns a paused job to Pending and re-enqueues it.
func (q *Queue) ResumeJob(id int) bool {
	q.mu.Lock()
	jp, ok := q.jobs[id]
	if !ok || jp.Status != StatusPaused {
		q.mu.Unlock()
		return false
	}
	jp.Status = StatusPending
	q.fifo = append(q.fifo, jp)
	snapshot := *jp
	cb := q.statusCb
	q.mu.Unlock()

	q.cond.Signal()
	q.log.Info(fmt.Sprintf("job %d resumed", id))
	if cb != nil {
		cb(snapshot)
	}
	return true
}

// RetryJob re-enqueues a Failed or Cancelled job with cleared transient
// state. Returns false for jobs in any other state.
func (q *Queue) RetryJob(id int) bool {
	q.mu.Lock()
	jp, ok := q.jobs[id]
	if !ok || !jp.Status.Terminal() {
		if ok {
			q.log.Warn(fmt.Sprintf("job %d cannot be retried (status %s)", id, jp.Status))
		}
		q.mu.Unlock()
		return false
	}
	jp.Status = StatusPending
	jp.ErrorMessage = ""
	jp.Progress = 0
	jp.SpoolID = 0
	jp.StartedAt = time.Time{}
	jp.CompletedAt = time.Time{}
	q.fifo = append(q.fifo, jp)
	snapshot := *jp
	cb := q.statusCb
	q.mu.Unlock()

	q.cond.Signal()
	q.log.Info(fmt.Sprintf("job %d queued for retry", id))
	if cb != nil {
		cb(snapshot)
	}
	return true
}

// MoveJob reassigns a job to another printer.
func (q *Queue) MoveJob(id int, newPrinter string) bool {
	q.mu.Lock()
	jp, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	jp.Printer = newPrinter
	q.mu.Unlock()
	q.log.Info(fmt.Sprintf("job %d moved to printer %s", id, newPrinter))
	return true
}

// Job returns a snapshot of the job with the given id.
func (q *Queue) Job(id int) (PrintJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	jp, ok := q.jobs[id]
	if !ok {
		return PrintJob{}, false
	}
	return *jp, true
}

// JobsForPrinter returns snapshots of every job targeting the printer.
func (q *Queue) JobsForPrinter(printer string) []PrintJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []PrintJob
	for _, jp := range q.jobs {
		if jp.Printer == printer {
			out = append(out, *jp)
		}
	}
	return out
}

// ActiveJobs returns jobs currently Processing or Printing.
func (q *Queue) ActiveJobs() []PrintJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []PrintJob
	for _, jp := range q.jobs {
		if jp.Status == StatusProcessing || jp.Status == StatusPrinting {
			out = append(out, *jp)
		}
	}
	return out
}

// CompletedJobs returns up to limit finished jobs (Completed or Failed).
func (q *Queue) CompletedJobs(limit int) []PrintJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []PrintJob
	for _, jp := range q.jobs {
		if jp.Status == StatusCompleted || jp.Status == StatusFailed {
			out = append(out, *jp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Size returns the number of queued (not yet claimed) jobs.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fifo)
}

// ActiveJobCount returns the number of jobs being worked right now.
func (q *Queue) ActiveJobCount() int {
	return int(q.activeJobs.Load())
}

// EstimatedQueueTime is a crude wait estimate for a printer: thirty seconds
// per queued job.
func (q *Queue) EstimatedQueueTime(printer string) time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	queued := 0
	for _, jp := range q.jobs {
		if jp.Printer == printer && jp.Status == StatusPending {
			queued++
		}
	}
	return time.Duration(queued) * 30 * time.Second
}

// Start launches the worker pool.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.mu.Unlock()

	q.wg.Add(q.maxWorkers)
	for i := 0; i < q.maxWorkers; i++ {
		go q.worker()
	}
	q.log.Info(fmt.Sprintf("job queue started with %d workers", q.maxWorkers))
}

// Stop shuts the pool down and waits for in-flight jobs to settle.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.mu.Unlock()

	q.cancel()
	q.cond.Broadcast()
	q.wg.Wait()
	q.log.Info("job queue stopped")
}

// worker blocks on the condition variable until stopping or the FIFO is
// non-empty, pops the head and runs it.
func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for q.running && len(q.fifo) == 0 {
			q.cond.Wait()
		}
		if !q.running {
			q.mu.Unlock()
			return
		}
		jp := q.fifo[0]
		q.fifo = q.fifo[1:]
		// Only pending jobs are claimable. Cancelled and paused jobs are
		// skipped here; so are stale FIFO entries left by resume/retry.
		if jp.Status != StatusPending {
			q.mu.Unlock()
			continue
		}
		q.mu.Unlock()

		q.processJob(jp)
	}
}

// processJob runs the lifecycle for one claimed job. Any error from the
// execution paths is caught here, recorded on the job and mapped to the
// Failed (or Cancelled) transition; the worker then moves on.
func (q *Queue) processJob(jp *PrintJob) {
	q.activeJobs.Add(1)
	defer q.activeJobs.Add(-1)

	q.updateJob(jp.ID, func(j *PrintJob) {
		j.Status = StatusProcessing
		j.StartedAt = time.Now()
	})
	q.log.Info(fmt.Sprintf("processing job %d", jp.ID))

	err := q.executeJob(jp)
	switch {
	case err == nil:
		q.updateJob(jp.ID, func(j *PrintJob) {
			j.Status = StatusCompleted
			j.CompletedAt = time.Now()
			j.Progress = 1
		})
		q.log.Info(fmt.Sprintf("job %d completed", jp.ID))
	case errors.Is(err, ErrCancelled):
		// CancelJob already flipped the status and notified.
		q.log.Info(fmt.Sprintf("job %d aborted by cancellation", jp.ID))
	default:
		q.updateJob(jp.ID, func(j *PrintJob) {
			j.Status = StatusFailed
			j.ErrorMessage = err.Error()
		})
		q.log.Error(fmt.Sprintf("job %d failed: %v", jp.ID, err))
	}
}

// updateJob mutates a job under the lock, then fires the status callback on
// a copied snapshot with the lock released.
func (q *Queue) updateJob(id int, mutate func(*PrintJob)) {
	q.mu.Lock()
	jp, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	mutate(jp)
	snapshot := *jp
	cb := q.statusCb
	q.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// executeJob routes between the plain and plotter paths.
func (q *Queue) executeJob(jp *PrintJob) error {
	if q.gw == nil {
		return fmt.Errorf("%w: no spooler gateway configured", ErrSpoolerRejected)
	}
	if q.dir != nil && q.dir.IsPlotter(jp.Printer) {
		return q.executePlotterJob(jp)
	}
	return q.executePlainJob(jp)
}

// executePlainJob validates the file, emits the synthetic progress ramp and
// hands the document to the spooler untouched.
func (q *Queue) executePlainJob(jp *PrintJob) error {
	if _, err := os.Stat(jp.FilePath); err != nil {
		return fmt.Errorf("%w: %s", ErrFileMissing, jp.FilePath)
	}

	if err := q.progressRamp(jp.ID, 20); err != nil {
		return err
	}

	q.updateJob(jp.ID, func(j *PrintJob) { j.Status = StatusPrinting })
	q.log.Info(fmt.Sprintf("submitting job %d to printer %s", jp.ID, jp.Printer))

	spoolID, err := q.gw.Submit(q.ctx, jp.Printer, jp.FilePath, jp.Options)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSpoolerRejected, err)
	}
	if spoolID <= 0 {
		return fmt.Errorf("%w: no job id assigned", ErrSpoolerRejected)
	}
	q.updateJob(jp.ID, func(j *PrintJob) { j.SpoolID = spoolID })
	q.log.Info(fmt.Sprintf("job %d submitted, spooler id %d", jp.ID, spoolID))
	return nil
}

// progressRamp emits synthetic ticks from 0 to 100 percent in the given
// step, observing the cancellation flag between ticks. Cancellation becomes
// visible within one tick.
func (q *Queue) progressRamp(id, step int) error {
	for pct := 0; pct <= 100; pct += step {
		q.mu.Lock()
		jp, ok := q.jobs[id]
		if !ok {
			q.mu.Unlock()
			return fmt.Errorf("job %d disappeared", id)
		}
		if jp.Status == StatusCancelled {
			q.mu.Unlock()
			return ErrCancelled
		}
		jp.Progress = float64(pct) / 100
		progress := jp.Progress
		cb := q.progressCb
		q.mu.Unlock()

		if cb != nil {
			cb(id, progress)
		}

		select {
		case <-q.ctx.Done():
			return fmt.Errorf("job %d interrupted: queue stopped", id)
		case <-time.After(q.progressTick):
		}
	}
	return nil
}
