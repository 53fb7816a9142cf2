// Package session owns the consumer side of the scan pipeline: it drains
// the runner's event queue on a fixed cadence, re-stitches split records,
// maintains counters, and finalizes results into the on-disk artifacts.
// Everything here runs on a single goroutine (the UI's timer loop); only
// Events cross the worker boundary.
package session

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"achk/internal/compare"
	"achk/internal/config"
	"achk/internal/history"
	"achk/internal/scan"
)

// Mode distinguishes the two scan kinds.
type Mode string

const (
	ModeNone     Mode = ""
	ModeBaseline Mode = "baseline"
	ModeCompare  Mode = "compare"
)

// Session is the state of one scan run plus the machinery that consumes
// runner output. It is not safe for concurrent use; all methods must be
// called from the same goroutine.
type Session struct {
	cfg     config.Config
	runner  *scan.Runner
	display Display
	hist    *history.Manager
	dirs    *compare.DirCache

	mode      Mode
	running   bool
	finished  bool
	targets   []string
	principal string

	defaultPrincipal string

	logs        *ringLog
	lineCount   int
	writeCount  int
	suppressed  int
	pendingPath string // most recent bare directory header awaiting a permission line

	baselinePath string
	comparePath  string
	diffPath     string
}

// New wires a session. A nil dirs cache gets a filesystem-backed one.
func New(cfg config.Config, runner *scan.Runner, display Display, hist *history.Manager, dirs *compare.DirCache) *Session {
	if dirs == nil {
		dirs = compare.NewDirCache(nil)
	}
	return &Session{
		cfg:              cfg,
		runner:           runner,
		display:          display,
		hist:             hist,
		dirs:             dirs,
		defaultPrincipal: scan.CurrentUserPrincipal(),
		logs:             newRingLog(cfg.MaxDisplayedLines),
		baselinePath:     filepath.Join(cfg.DataDir, cfg.BaselineGen),
		comparePath:      filepath.Join(cfg.DataDir, cfg.CompareGen),
		diffPath:         filepath.Join(cfg.DataDir, cfg.DiffGen),
	}
}

func (s *Session) Running() bool        { return s.running }
func (s *Session) Finished() bool       { return s.finished }
func (s *Session) Mode() Mode           { return s.mode }
func (s *Session) LineCount() int       { return s.lineCount }
func (s *Session) WriteCount() int      { return s.writeCount }
func (s *Session) SuppressedCount() int { return s.suppressed }

// DefaultPrincipal is the account scans fall back to when the principal
// input is left empty.
func (s *Session) DefaultPrincipal() string { return s.defaultPrincipal }

// HasBaseline reports whether a baseline artifact exists, gating the
// compare action.
func (s *Session) HasBaseline() bool {
	info, err := os.Stat(s.baselinePath)
	return err == nil && !info.IsDir()
}

// Records returns a copy of the current log.
func (s *Session) Records() []scan.Record { return s.logs.Records() }

// FilteredRecords returns the records matching a case-insensitive substring
// filter, optionally narrowed to confirmed-directory permission rows.
func (s *Session) FilteredRecords(filter string, onlyDirs bool) []scan.Record {
	f := strings.ToLower(strings.TrimSpace(filter))
	var out []scan.Record
	for _, rec := range s.logs.Records() {
		if f != "" && !strings.Contains(strings.ToLower(rec.Text), f) {
			continue
		}
		if onlyDirs {
			if rec.IsErr || !scan.HasRWPrefix(rec.Text) {
				continue
			}
			p := scan.ExtractFirstPath(rec.Text)
			if p == "" || !s.dirs.IsDir(p) {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

// Start validates inputs, resets session state, and kicks off an
// asynchronous scan. A second Start while one is active fails without
// mutating state.
func (s *Session) Start(exePath, rawTargets, principal string, mode Mode) error {
	if s.runner.Running() {
		return fmt.Errorf("a scan is already in progress")
	}
	if err := scan.ValidateExecutablePath(strings.TrimSpace(exePath), s.cfg.MaxPathLength); err != nil {
		return fmt.Errorf("accesschk.exe: %w", err)
	}
	if mode == ModeCompare && !s.HasBaseline() {
		return fmt.Errorf("no baseline scan found, run a baseline scan first")
	}
	if strings.TrimSpace(rawTargets) == "" {
		rawTargets = scan.DefaultTargets()
	}
	targets, err := scan.ValidateTargets(rawTargets, s.cfg.MaxPathLength)
	if err != nil {
		return fmt.Errorf("targets: %w", err)
	}
	if principal == "" {
		principal = s.defaultPrincipal
	}

	s.logs.Clear()
	s.lineCount = 0
	s.writeCount = 0
	s.suppressed = 0
	s.pendingPath = ""
	s.mode = mode
	s.targets = targets
	s.principal = principal
	s.running = true
	s.finished = false

	label := principal
	if label == "" {
		label = "(unresolved)"
	}
	s.display.SetStatus(fmt.Sprintf("Preparing scan: %s on %d target(s). 0 lines (0 RW)", label, len(targets)))

	if err := s.runner.Start(strings.TrimSpace(exePath), targets, principal); err != nil {
		s.running = false
		s.mode = ModeNone
		return err
	}
	return nil
}

// Stop kills any active scan and reports the partial counts.
func (s *Session) Stop() {
	s.runner.Stop()
	s.display.SetStatus(fmt.Sprintf("Stopped manually. %d lines (%d RW).", s.lineCount, s.writeCount))
	s.running = false
	s.mode = ModeNone
}

// ClearLogs resets the result log and counters. Rejected while a scan runs.
func (s *Session) ClearLogs() bool {
	if s.running {
		return false
	}
	s.logs.Clear()
	s.lineCount = 0
	s.writeCount = 0
	s.suppressed = 0
	s.pendingPath = ""
	s.display.SetStatus("Logs cleared")
	return true
}

// Poll is one consumer cycle: drain queued events until empty, the item cap,
// or the wall-clock budget is hit, then flush one display batch. The caller
// re-arms the next cycle unconditionally so status keeps reflecting final
// state after completion.
func (s *Session) Poll() {
	start := time.Now()
	processed := 0
	iterations := 0
	maxIterations := s.cfg.BatchSize * 2
	var bufNormal, bufWrite, bufErr []string

drain:
	for processed < s.cfg.BatchSize &&
		time.Since(start) < s.cfg.BatchTimeout &&
		iterations < maxIterations {

		var ev scan.Event
		select {
		case ev = <-s.runner.Events():
		default:
			break drain
		}
		iterations++

		switch ev := ev.(type) {
		case scan.StatusEvent:
			s.display.SetStatus(ev.Text)
			continue
		case scan.DoneEvent:
			s.finish(ev.ReturnCode)
			continue
		case scan.LineEvent:
			processed++
			s.consumeLine(ev.Record, &bufNormal, &bufWrite, &bufErr)
		}
	}

	if len(bufNormal) > 0 || len(bufWrite) > 0 || len(bufErr) > 0 {
		s.display.AppendBatch(bufNormal, bufWrite, bufErr)
	}

	if s.running {
		suffix := ""
		if s.suppressed > 0 {
			suffix = fmt.Sprintf(", %d errors suppressed", s.suppressed)
		}
		s.display.SetStatus(fmt.Sprintf("Scanning — %s: %d lines (%d RW%s)",
			s.principal, s.lineCount, s.writeCount, suffix))
	}
}

// consumeLine applies the stitching rules, the post-stitch suppression
// check, and the bounded-log append for one record.
func (s *Session) consumeLine(rec scan.Record, bufNormal, bufWrite, bufErr *[]string) {
	text := rec.Text
	if strings.TrimSpace(text) == "" {
		// A blank line breaks any pending stitch.
		s.pendingPath = ""
		return
	}

	if !rec.IsErr {
		path := scan.ExtractFirstPath(text)
		if !rec.IsWrite {
			if path != "" && strings.TrimSpace(text) == path {
				// Bare directory header: logged and counted, but held back
				// from the display buckets; it is context for the
				// permission rows that follow.
				s.pendingPath = path
				s.logs.Append(rec)
				s.lineCount++
				return
			}
			s.pendingPath = ""
		} else {
			if path == "" && s.pendingPath != "" {
				// Pathless permission row: attach the directory it belongs to.
				text = strings.TrimSpace(text) + " — " + s.pendingPath
				rec.Text = text
			}
			s.pendingPath = ""
		}
	} else {
		if s.pendingPath != "" && scan.ExtractFirstPath(text) == "" {
			// Pathless error: the directory goes in front, unlike the
			// write-line rewrite above.
			text = s.pendingPath + " — " + strings.TrimSpace(text)
			rec.Text = text
		}
		s.pendingPath = ""
	}

	// Re-check after the rewrite: a stitched line can become a known noisy
	// sequence.
	if scan.IsSuppressedError(text) {
		s.suppressed++
		s.rollbackNoise(bufNormal, bufWrite, bufErr)
		return
	}

	s.logs.Append(rec)
	s.lineCount++
	if rec.IsWrite && !rec.IsErr {
		s.writeCount++
	}
	switch {
	case rec.IsErr:
		*bufErr = append(*bufErr, text)
	case rec.IsWrite:
		*bufWrite = append(*bufWrite, text)
	default:
		*bufNormal = append(*bufNormal, text)
	}
}

// rollbackNoise removes noise that immediately preceded a suppressed error:
// first an orphaned directory header with no data rows under it, then any
// trailing lines with no ASCII alphanumerics (codepage-fallback garbage).
func (s *Session) rollbackNoise(bufNormal, bufWrite, bufErr *[]string) {
	removeLastIf := func(pred func(scan.Record) bool) bool {
		last, ok := s.logs.Last()
		if !ok || !pred(last) {
			return false
		}
		s.removeLastEntry(bufNormal, bufWrite, bufErr)
		return true
	}

	removeLastIf(func(r scan.Record) bool {
		return !r.IsErr && !scan.HasRWPrefix(r.Text) && scan.ExtractFirstPath(r.Text) != ""
	})
	for removeLastIf(func(r scan.Record) bool {
		return !r.IsErr && !r.IsWrite && !scan.HasRWPrefix(r.Text) && !scan.HasASCIIAlnum(r.Text)
	}) {
	}
}

// removeLastEntry pops the newest log record and keeps the counters and the
// in-flight display buffers consistent with the log.
func (s *Session) removeLastEntry(bufNormal, bufWrite, bufErr *[]string) {
	last, ok := s.logs.PopLast()
	if !ok {
		return
	}
	if s.lineCount > 0 {
		s.lineCount--
	}
	if last.IsWrite && !last.IsErr && s.writeCount > 0 {
		s.writeCount--
	}
	buf := bufNormal
	if last.IsErr {
		buf = bufErr
	} else if last.IsWrite {
		buf = bufWrite
	}
	for i := len(*buf) - 1; i >= 0; i-- {
		if (*buf)[i] == last.Text {
			*buf = append((*buf)[:i], (*buf)[i+1:]...)
			break
		}
	}
}

// finish handles the terminal sentinel: clear the directory cache, record
// history best-effort, report final counts, persist artifacts.
func (s *Session) finish(returnCode int) {
	s.running = false
	s.finished = true
	s.dirs.Clear()

	if s.hist != nil && s.mode != ModeNone {
		principal := s.principal
		if principal == "" {
			principal = "auto"
		}
		if err := s.hist.Add(string(s.mode), s.targets, principal, s.logs.Len()); err != nil {
			log.Printf("cannot record scan in history: %v", err)
		}
	}

	suffix := ""
	if s.suppressed > 0 {
		suffix = fmt.Sprintf(", %d errors suppressed", s.suppressed)
	}
	s.display.SetStatus(fmt.Sprintf("Done (rc=%d). %d lines (%d RW%s).",
		returnCode, s.logs.Len(), s.writeCount, suffix))
	s.display.ScanFinished(returnCode)

	if err := s.persistResults(); err != nil {
		s.display.ShowError("Saving results", err.Error())
	}
}

// persistResults writes the completed scan to its artifact and, in compare
// mode, runs the diff against the baseline.
func (s *Session) persistResults() error {
	mode := s.mode
	s.mode = ModeNone
	if mode == ModeNone {
		return nil
	}

	lines := s.logs.Texts()
	target := s.baselinePath
	if mode == ModeCompare {
		target = s.comparePath
	}
	if err := writeLines(target, lines); err != nil {
		return fmt.Errorf("cannot save scan to %s: %w", target, err)
	}

	if mode == ModeBaseline {
		// A fresh baseline invalidates any previous comparison cycle.
		safeRemove(s.comparePath)
		safeRemove(s.diffPath)
		s.display.ShowInfo("Baseline scan", fmt.Sprintf("Baseline saved to %s", target))
		return nil
	}
	return s.compareAgainstBaseline(lines)
}

func (s *Session) compareAgainstBaseline(currentLines []string) error {
	data, err := os.ReadFile(s.baselinePath)
	if err != nil {
		return fmt.Errorf("cannot read baseline scan: %w", err)
	}
	baseLines := splitLines(string(data))

	engine := compare.NewEngine(s.dirs)
	diffLines, err := engine.Diff(baseLines, currentLines)
	if err != nil {
		return err
	}

	if len(diffLines) == 0 {
		safeRemove(s.diffPath)
		s.display.ShowInfo("Comparison scan", "No RW differences between scans.")
		return nil
	}
	if err := writeLines(s.diffPath, diffLines); err != nil {
		// Presenting the diff still matters even if the artifact write failed.
		log.Printf("cannot save diff: %v", err)
	}
	s.display.ShowDiff(diffLines)
	return nil
}

// RemoveStaleArtifacts deletes leftover compare/diff files from a previous
// run; called at startup.
func (s *Session) RemoveStaleArtifacts() {
	safeRemove(s.comparePath)
	safeRemove(s.diffPath)
}

// CleanupArtifacts deletes every scan artifact; called on shutdown.
func (s *Session) CleanupArtifacts() {
	safeRemove(s.baselinePath)
	safeRemove(s.comparePath)
	safeRemove(s.diffPath)
}

func writeLines(path string, lines []string) error {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

func safeRemove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("cannot delete %s: %v", path, err)
	}
}

func splitLines(text string) []string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}
