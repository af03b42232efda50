package queue

import (
	"fmt"
	"os"

	"allpress/protocol"
)

// executePlotterJob is the protocol-translation path for wide-format
// targets: validate against the device's capabilities, synthesize the
// vendor byte stream, stage it as a sibling temp file and submit that.
func (q *Queue) executePlotterJob(jp *PrintJob) error {
	if err := q.dir.ValidateDocument(jp.Printer, jp.Options); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	data, err := os.ReadFile(jp.FilePath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFileMissing, jp.FilePath)
	}

	adv, err := q.dir.AdvancedInfo(jp.Printer)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	protoName := q.dir.SelectProtocol(jp.Printer, jp.Options)
	gen, err := protocol.NewGenerator(protoName, adv.Vendor)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	q.log.Info(fmt.Sprintf("job %d: synthesizing %s payload for %s", jp.ID, protoName, jp.Printer))

	size := protocol.ParseMediaSize(jp.Options.MediaSize)
	mode := protocol.ParseColorMode(jp.Options.ColorMode)
	dpi := protocol.QualityToDPI(jp.Options.Quality)

	header, err := gen.Header(adv.Capabilities, size, mode, dpi)
	if err != nil {
		return fmt.Errorf("%w: header: %v", ErrGenerationFailed, err)
	}
	width, height, err := protocol.PagePixels(size, dpi)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	page, err := gen.Page(data, width, height, dpi)
	if err != nil {
		return fmt.Errorf("%w: page: %v", ErrGenerationFailed, err)
	}

	payload := make([]byte, 0, len(header)+len(page)+32)
	payload = append(payload, header...)
	payload = append(payload, page...)
	payload = append(payload, gen.Footer()...)
	payload = gen.OptimizeForVendor(payload)

	tempPath := jp.FilePath + ".converted"
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("%w: staging payload: %v", ErrGenerationFailed, err)
	}
	q.log.Debug(fmt.Sprintf("job %d: %s payload staged at %s (%d bytes)", jp.ID, protoName, tempPath, len(payload)))

	q.updateJob(jp.ID, func(j *PrintJob) { j.Status = StatusPrinting })

	spoolID, err := q.gw.Submit(q.ctx, jp.Printer, tempPath, jp.Options)
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("%w: %v", ErrSpoolerRejected, err)
	}
	if spoolID <= 0 {
		os.Remove(tempPath)
		return fmt.Errorf("%w: no job id assigned", ErrSpoolerRejected)
	}
	q.updateJob(jp.ID, func(j *PrintJob) { j.SpoolID = spoolID })

	if err := q.progressRamp(jp.ID, 10); err != nil {
		os.Remove(tempPath)
		return err
	}

	os.Remove(tempPath)
	return nil
}
