package session

// Display is the capability surface the session renders through. The core
// never depends on a concrete UI: the TUI implements this, and headless
// mode uses a plain stdout implementation.
type Display interface {
	// AppendBatch hands over one poll cycle's worth of new lines, already
	// split into render buckets.
	AppendBatch(normal, write, errs []string)
	SetStatus(status string)
	ShowError(title, message string)
	ShowInfo(title, message string)
	// ShowDiff presents the retained comparison lines after a compare run.
	ShowDiff(lines []string)
	// ScanFinished signals terminal state so the UI can re-enable controls.
	ScanFinished(returnCode int)
}
