package recorder

import (
	"path/filepath"

	"github.com/justapithecus/arkive/bus"
	"github.com/justapithecus/arkive/clockunits"
)

// maybeStartNextFile rolls to a new output file if none is open yet, or if
// writing pkt would exceed the current file's size or duration budget.
// Caller must hold mu.
func (r *Recorder) maybeStartNextFile(pkt bus.Packet) {
	if r.writeFile == nil || r.wouldExceedSize(pkt) || r.wouldExceedDuration(pkt) {
		r.startNextFile(pkt)
	}
}

func (r *Recorder) wouldExceedSize(pkt bus.Packet) bool {
	return r.writeFile.WouldEvict(pkt.SerialSize())
}

func (r *Recorder) wouldExceedDuration(pkt bus.Packet) bool {
	monoStr, _ := pkt.HeaderValue("a0_time_mono")
	mono, err := clockunits.ParseMonoTime(monoStr)
	if err != nil {
		return false
	}
	return r.writeFileStart.Add(r.opts.Rule.MaxLogfileDuration).Before(mono)
}

// startNextFile closes whatever file is currently open and opens the next
// one, named after pkt's wall-clock timestamp.
func (r *Recorder) startNextFile(pkt bus.Packet) {
	r.closeCurrentFile()

	wallStr, _ := pkt.HeaderValue("a0_time_wall")
	wall, err := clockunits.ParseWallTime(wallStr)
	if err != nil {
		r.logger.Error("cannot parse a0_time_wall, using zero time", map[string]any{"error": err.Error()})
	}

	dateDir := wall.UTC().Format("2006/01/02")
	finalName := r.opts.RelativeWatchPath + "@" + wall.String() + ".a0"
	finalPath := filepath.Join(r.opts.SavePath, dateDir, finalName)
	inProgressPath := filepath.Join(filepath.Dir(finalPath), "."+filepath.Base(finalPath))

	if err := r.opts.Arena.Remove(inProgressPath); err != nil {
		r.logger.Error("failed to remove stale in-progress file", map[string]any{"path": inProgressPath, "error": err.Error()})
	}

	f, err := r.opts.Arena.Create(inProgressPath, r.opts.Rule.MaxLogfileSize)
	if err != nil {
		r.logger.Error("failed to open output file", map[string]any{"path": inProgressPath, "error": err.Error()})
		r.metrics.IncWriteErrors()
		return
	}

	r.writeFile = f
	r.writeInProgressPath = inProgressPath
	r.writeFinalPath = finalPath

	monoStr, _ := pkt.HeaderValue("a0_time_mono")
	r.writeFileStart, _ = clockunits.ParseMonoTime(monoStr)

	r.metrics.IncFilesOpened()
	r.announce("opened", "", r.writeInProgressPath)
}

// closeCurrentFile finalizes whatever output file is open, renaming it from
// its dot-prefixed in-progress name to its final name. A failure to shrink
// or rename the file is an IOError (§7): it is announced as {action:
// "error", details}, not retried, and does not block the next roll
// attempt. Caller must hold mu.
func (r *Recorder) closeCurrentFile() {
	if r.writeFile == nil {
		return
	}
	if err := r.writeFile.Close(); err != nil {
		r.logger.Error("failed to close output file", map[string]any{"path": r.writeInProgressPath, "error": err.Error()})
		r.metrics.IncWriteErrors()
		r.announce("error", err.Error(), r.writeInProgressPath)
		r.writeFile = nil
		return
	}
	if err := r.opts.Arena.Rename(r.writeInProgressPath, r.writeFinalPath); err != nil {
		r.logger.Error("failed to finalize output file", map[string]any{"from": r.writeInProgressPath, "to": r.writeFinalPath, "error": err.Error()})
		r.metrics.IncWriteErrors()
		r.announce("error", err.Error(), r.writeInProgressPath)
		r.writeFile = nil
		return
	}
	r.metrics.IncFilesClosed()
	r.announce("closed", "", r.writeFinalPath)
	r.writeFile = nil
}
