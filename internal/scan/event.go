package scan

// Record is the atomic unit flowing from the runner to the consumer: one
// decoded line of tool output plus its classification.
type Record struct {
	Text    string
	IsWrite bool // write-access token present; never true for error-stream lines
	IsErr   bool // line came from the tool's stderr
}

// Event is what crosses the worker/consumer boundary. Exactly one of the
// three concrete types is sent per queue slot; nothing else is shared
// between the two sides.
type Event interface{ scanEvent() }

// LineEvent carries one classified output line.
type LineEvent struct{ Record Record }

// StatusEvent carries a progress message for the status bar; it is not part
// of the result log.
type StatusEvent struct{ Text string }

// DoneEvent signals the end of a scan run. ReturnCode is the last process
// exit code, or -1 when the run failed to launch or panicked.
type DoneEvent struct{ ReturnCode int }

func (LineEvent) scanEvent()   {}
func (StatusEvent) scanEvent() {}
func (DoneEvent) scanEvent()   {}
