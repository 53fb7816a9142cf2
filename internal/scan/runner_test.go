package scan

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"achk/internal/config"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ScanTimeout = 5 * time.Second
	cfg.ReaderJoinTimeout = 100 * time.Millisecond
	return cfg
}

// drainUntilDone collects events until the terminal sentinel or a timeout.
func drainUntilDone(t *testing.T, r *Runner) ([]Event, DoneEvent) {
	t.Helper()
	var events []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-r.Events():
			events = append(events, ev)
			if done, ok := ev.(DoneEvent); ok {
				return events, done
			}
		case <-deadline:
			t.Fatal("no DoneEvent before deadline")
		}
	}
}

func TestRunnerRejectsConcurrentStart(t *testing.T) {
	r := NewRunner(testConfig())
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()

	err := r.Start("accesschk.exe", []string{`C:\`}, "")
	assert.ErrorIs(t, err, ErrScanInProgress)
}

func TestRunnerStopIsIdempotent(t *testing.T) {
	r := NewRunner(testConfig())
	assert.NotPanics(t, func() {
		r.Stop()
		r.Stop()
	})
	assert.False(t, r.Running())
}

func TestRunnerLaunchFailure(t *testing.T) {
	r := NewRunner(testConfig())
	missing := filepath.Join(t.TempDir(), "accesschk.exe")
	require.NoError(t, r.Start(missing, []string{`C:\Windows`}, ""))

	events, done := drainUntilDone(t, r)
	assert.Equal(t, -1, done.ReturnCode)

	var sawError bool
	for _, ev := range events {
		if line, ok := ev.(LineEvent); ok {
			if line.Record.IsErr && strings.Contains(line.Record.Text, "[ERREUR]") {
				sawError = true
			}
		}
	}
	assert.True(t, sawError, "expected an [ERREUR] record for the failed launch")

	// The runner must return to idle so a new scan can start.
	require.Eventually(t, func() bool { return !r.Running() }, time.Second, 10*time.Millisecond)
}

func TestRunnerEmitsStatusPerTarget(t *testing.T) {
	r := NewRunner(testConfig())
	missing := filepath.Join(t.TempDir(), "accesschk.exe")
	require.NoError(t, r.Start(missing, []string{`C:\Windows`, `C:\Temp`}, "DOMAIN\\alice"))

	events, _ := drainUntilDone(t, r)
	var statuses []string
	for _, ev := range events {
		if st, ok := ev.(StatusEvent); ok {
			statuses = append(statuses, st.Text)
		}
	}
	// Launch failure aborts the run, so only the first target is announced.
	require.Len(t, statuses, 1)
	assert.Contains(t, statuses[0], `C:\Windows`)
	assert.Contains(t, statuses[0], `DOMAIN\alice`)
}

func TestReadStreamClassification(t *testing.T) {
	r := NewRunner(testConfig())
	stdout := strings.NewReader(
		"C:\\Program Files\\7-Zip\r\n" +
			"  RW NT SERVICE\\TrustedInstaller\r\n" +
			"Error getting security: access denied.\r\n")
	r.readStream(stdout, false)

	var records []Record
	for len(r.events) > 0 {
		if line, ok := (<-r.events).(LineEvent); ok {
			records = append(records, line.Record)
		}
	}

	// The suppressed diagnostic never reaches the queue.
	require.Len(t, records, 2)
	assert.Equal(t, `C:\Program Files\7-Zip`, records[0].Text)
	assert.False(t, records[0].IsWrite)
	assert.Equal(t, `  RW NT SERVICE\TrustedInstaller`, records[1].Text)
	assert.True(t, records[1].IsWrite)
	assert.False(t, records[1].IsErr)
}

func TestReadStreamStderrNeverWrite(t *testing.T) {
	r := NewRunner(testConfig())
	r.readStream(strings.NewReader("something about RW here\n"), true)

	line, ok := (<-r.events).(LineEvent)
	require.True(t, ok)
	assert.True(t, line.Record.IsErr)
	assert.False(t, line.Record.IsWrite)
}

func TestPushThrottlesDeepBacklog(t *testing.T) {
	cfg := testConfig()
	cfg.QueueCapacity = 64
	cfg.QueueThrottleDepth = 4
	cfg.ThrottleSleep = 20 * time.Millisecond
	r := NewRunner(cfg)

	for i := 0; i < 5; i++ {
		r.push(StatusEvent{Text: "fill"})
	}

	start := time.Now()
	r.push(StatusEvent{Text: "throttled"})
	assert.GreaterOrEqual(t, time.Since(start), cfg.ThrottleSleep)
}

func TestPreviewCommand(t *testing.T) {
	t.Run("quotes arguments with spaces", func(t *testing.T) {
		got := PreviewCommand(`C:\tools\accesschk.exe`, "", []string{`C:\Program Files`})
		assert.Contains(t, got, `"C:\Program Files"`)
		assert.Contains(t, got, DefaultPrincipalSID)
	})

	t.Run("summarizes extra targets", func(t *testing.T) {
		got := PreviewCommand("accesschk.exe", "bob", []string{`C:\a`, `C:\b`, `C:\c`})
		assert.Contains(t, got, "(and 2 more targets)")
	})
}
