package scan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"

	"achk/internal/config"
)

// DefaultPrincipalSID is the well-known BUILTIN\Users SID, used when no
// principal is supplied. The SID form works on every Windows locale; the
// localized group name ("Users", "Utilisateurs", ...) does not.
const DefaultPrincipalSID = "S-1-5-32-545"

// ErrScanInProgress is returned by Start when a scan is already running.
var ErrScanInProgress = errors.New("a scan is already in progress")

// Runner owns one external accesschk process at a time. It launches the
// tool once per target, classifies each output line, and forwards
// everything to the consumer over a single buffered channel. All session
// state lives on the consumer side; the Runner only produces Events.
type Runner struct {
	cfg    config.Config
	events chan Event

	mu      sync.Mutex
	running bool
	proc    *exec.Cmd
}

func NewRunner(cfg config.Config) *Runner {
	return &Runner{
		cfg:    cfg,
		events: make(chan Event, cfg.QueueCapacity),
	}
}

// Events returns the queue the consumer drains.
func (r *Runner) Events() <-chan Event { return r.events }

// Running reports whether a scan is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start begins an asynchronous scan of targets and returns immediately.
// It fails with ErrScanInProgress if a scan is already active; requests are
// rejected, never queued.
func (r *Runner) Start(exePath string, targets []string, principal string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrScanInProgress
	}
	r.running = true
	go r.run(exePath, append([]string(nil), targets...), principal)
	return nil
}

// Stop terminates the active process, if any, and clears the running flag.
// Idempotent and safe to call when idle. The reader goroutines observe the
// resulting stream closure and exit on their own.
func (r *Runner) Stop() {
	r.mu.Lock()
	proc := r.proc
	r.proc = nil
	r.running = false
	r.mu.Unlock()

	if proc != nil && proc.Process != nil {
		if err := proc.Process.Kill(); err != nil {
			log.Printf("stopping scan: %v", err)
		} else {
			log.Printf("scan stopped by user")
		}
	}
}

func (r *Runner) setProc(cmd *exec.Cmd) {
	r.mu.Lock()
	r.proc = cmd
	r.mu.Unlock()
}

// run is the worker body. Whatever happens inside, the consumer always
// receives a DoneEvent and the runner always ends up idle.
func (r *Runner) run(exePath string, targets []string, principal string) {
	defer func() {
		if p := recover(); p != nil {
			r.push(LineEvent{Record: Record{Text: fmt.Sprintf("[EXCEPTION] unexpected scan failure: %v", p), IsErr: true}})
			r.push(DoneEvent{ReturnCode: -1})
		}
		r.mu.Lock()
		r.running = false
		r.proc = nil
		r.mu.Unlock()
	}()

	effective := principal
	if effective == "" {
		effective = DefaultPrincipalSID
	}

	lastRC := 0
	for _, target := range targets {
		if !r.Running() { // early stop requested
			break
		}

		args := SanitizeArgs([]string{exePath, "-accepteula", "-nobanner", effective, "-w", "-s", target})
		r.push(StatusEvent{Text: fmt.Sprintf("Scanning %s — %s", target, effective)})

		cmd := exec.Command(args[0], args[1:]...)
		hideWindow(cmd)
		stdout, err := cmd.StdoutPipe()
		var stderr io.ReadCloser
		if err == nil {
			stderr, err = cmd.StderrPipe()
		}
		if err == nil {
			err = cmd.Start()
		}
		if err != nil {
			// Launch failure is fatal to the whole run; remaining targets
			// are not attempted.
			msg := fmt.Sprintf("[ERREUR] cannot launch accesschk.exe: %v", err)
			log.Print(msg)
			r.push(LineEvent{Record: Record{Text: msg, IsErr: true}})
			r.push(DoneEvent{ReturnCode: -1})
			return
		}

		r.setProc(cmd)
		lastRC = r.streamProcess(cmd, stdout, stderr)
	}

	r.push(DoneEvent{ReturnCode: lastRC})
}

// streamProcess drains both output streams concurrently, then reaps the
// process. Line order is preserved within each stream; interleaving between
// stdout and stderr is best effort.
func (r *Runner) streamProcess(cmd *exec.Cmd, stdout, stderr io.Reader) int {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); r.readStream(stdout, false) }()
	go func() { defer wg.Done(); r.readStream(stderr, true) }()

	readersDone := make(chan struct{})
	go func() { wg.Wait(); close(readersDone) }()

	// Readers hit EOF once the process exits or is killed; the timeout is a
	// last resort against a wedged stream holding the scan open forever.
	select {
	case <-readersDone:
	case <-time.After(r.cfg.ScanTimeout):
		log.Printf("scan timed out after %v, reaping process", r.cfg.ScanTimeout)
	}

	err := cmd.Wait() // closes the pipes, unblocking any straggling reader
	select {
	case <-readersDone:
	case <-time.After(r.cfg.ReaderJoinTimeout):
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		log.Printf("waiting on accesschk: %v", err)
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

// readStream consumes one output stream line by line: decode, drop
// suppressed diagnostics, classify, push. Write classification only applies
// to stdout lines; an error line is never a write line.
func (r *Runner) readStream(stream io.Reader, isErr bool) {
	br := bufio.NewReader(stream)
	for {
		chunk, err := br.ReadBytes('\n')
		if len(chunk) > 0 {
			s := strings.TrimRight(DecodeBytes(chunk), "\r\n")
			if !IsSuppressedError(s) {
				r.push(LineEvent{Record: Record{
					Text:    s,
					IsWrite: !isErr && IsWriteLine(s),
					IsErr:   isErr,
				}})
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("reading scan stream: %v", err)
			}
			return
		}
	}
}

// push applies backpressure before enqueueing: a deep backlog means the
// consumer is behind, so the producer yields briefly instead of letting the
// queue balloon within a burst.
func (r *Runner) push(ev Event) {
	if len(r.events) > r.cfg.QueueThrottleDepth {
		time.Sleep(r.cfg.ThrottleSleep)
	}
	r.events <- ev
}

// PreviewCommand renders the command line about to be launched for display
// purposes. Multi-target runs show the first target plus a count.
func PreviewCommand(exePath, principal string, targets []string) string {
	if principal == "" {
		principal = DefaultPrincipalSID
	}
	first := "<target>"
	if len(targets) > 0 {
		first = targets[0]
	}
	parts := []string{exePath, "-accepteula", "-nobanner", principal, "-w", "-s", first}
	for i, p := range parts {
		if strings.Contains(p, " ") {
			parts[i] = `"` + p + `"`
		}
	}
	line := strings.Join(parts, " ")
	if len(targets) > 1 {
		line += fmt.Sprintf(" (and %d more targets)", len(targets)-1)
	}
	return line
}
