package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"achk/internal/config"
	"achk/internal/history"
	"achk/internal/scan"
	"achk/internal/session"
	"achk/internal/tui"
	"achk/internal/web"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"github.com/tcnksm/go-latest"
)

const version = "1.2.0"

func checkUpdate(currentVer string) {
	githubTag := &latest.GithubTag{
		Owner:      "abulka",
		Repository: "accesschk-gui",
	}

	res, err := latest.Check(githubTag, currentVer)
	if err != nil {
		return // Silently fail
	}

	if res.Outdated {
		fmt.Printf("\n✨ A new version is available: %s (you have %s)\n", res.Current, currentVer)
		fmt.Println("👉 Download it from https://github.com/abulka/accesschk-gui/releases")
	} else if pflag.Lookup("update").Changed {
		fmt.Printf("✅ You are using the latest version: %s\n", currentVer)
	}
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: achk [options]\n\n")
		fmt.Fprintf(os.Stderr, "achk is an interactive front-end for Sysinternals AccessChk.\n")
		fmt.Fprintf(os.Stderr, "It scans directories for write permissions granted to a principal,\n")
		fmt.Fprintf(os.Stderr, "and compares the results of two scans to surface newly granted rights.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  achk                          # Start TUI mode\n")
		fmt.Fprintf(os.Stderr, "  achk --baseline               # Run a baseline scan to stdout\n")
		fmt.Fprintf(os.Stderr, "  achk --compare -t \"C:\\Temp\"   # Compare against the baseline\n")
		fmt.Fprintf(os.Stderr, "  achk --web                    # Browse past results on :8080\n")
	}

	exeFlag := pflag.StringP("exe", "x", scan.BundledToolPath(), "Path to accesschk.exe")
	targetsFlag := pflag.StringP("targets", "t", "", "Semicolon-separated directories to scan")
	principalFlag := pflag.StringP("principal", "p", "", "Account to check permissions for (default: current user)")
	dataDirFlag := pflag.StringP("data-dir", "d", "", "Directory for scan artifacts (default: executable's directory)")
	baselineFlag := pflag.BoolP("baseline", "b", false, "Run a baseline scan in CLI mode and exit")
	compareFlag := pflag.BoolP("compare", "c", false, "Run a comparison scan in CLI mode and exit")
	webFlag := pflag.BoolP("web", "w", false, "Start Web Mode on http://localhost:8080")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	updateFlag := pflag.BoolP("update", "u", false, "Check for latest version")
	helpFlag := pflag.BoolP("help", "h", false, "Show this help message")
	pflag.Parse()

	if *helpFlag {
		pflag.Usage()
		return
	}

	if *versionFlag {
		fmt.Printf("achk version %s\n", version)
		return
	}

	if *updateFlag {
		checkUpdate(version)
		return
	}

	cfg := config.Default()
	cfg.DataDir = resolveDataDir(*dataDirFlag)
	setupLogging(cfg)

	hist := history.NewManager(cfg.DataDir, cfg.MaxHistoryEntries)

	if *webFlag {
		srv := web.NewServer(cfg, hist)
		if err := srv.Start("8080"); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting web server: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// AccessChk resolves permissions for the invoking token; an elevated
	// token reports the administrator's rights, not the user's.
	if scan.IsElevated() {
		fmt.Fprintln(os.Stderr, "Refusing to run elevated: results would reflect administrator rights.")
		fmt.Fprintln(os.Stderr, "Re-run from a normal, non-elevated session.")
		os.Exit(1)
	}

	if *baselineFlag || *compareFlag {
		mode := session.ModeBaseline
		if *compareFlag {
			mode = session.ModeCompare
		}
		runCliScan(cfg, hist, mode, *exeFlag, *targetsFlag, *principalFlag)
		return
	}

	// Default: TUI
	runTuiMode(cfg, hist, *exeFlag, *targetsFlag)
}

// resolveDataDir picks where artifacts live: the explicit flag if given,
// otherwise the directory holding the binary, falling back to the working
// directory.
func resolveDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func setupLogging(cfg config.Config) {
	path := filepath.Join(cfg.DataDir, cfg.LogFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		// Keep the default stderr logger; a missing log file is not fatal.
		log.Printf("cannot open log file %s: %v", path, err)
		return
	}
	log.SetOutput(f)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// consoleDisplay renders session output for the CLI scan modes: result
// lines to stdout, status and errors to stderr.
type consoleDisplay struct {
	lastStatus string
}

func (d *consoleDisplay) AppendBatch(normal, write, errs []string) {
	for _, line := range normal {
		fmt.Println(line)
	}
	for _, line := range write {
		fmt.Println(line)
	}
	for _, line := range errs {
		fmt.Fprintln(os.Stderr, line)
	}
}

func (d *consoleDisplay) SetStatus(status string) {
	if status == d.lastStatus {
		return
	}
	d.lastStatus = status
	fmt.Fprintf(os.Stderr, "-- %s\n", status)
}

func (d *consoleDisplay) ShowError(title, message string) {
	fmt.Fprintf(os.Stderr, "ERROR: %s: %s\n", title, message)
}

func (d *consoleDisplay) ShowInfo(title, message string) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", title, message)
}

func (d *consoleDisplay) ShowDiff(lines []string) {
	fmt.Println()
	fmt.Println("=== New write permissions since baseline ===")
	for _, line := range lines {
		fmt.Println(line)
	}
}

func (d *consoleDisplay) ScanFinished(returnCode int) {}

func runCliScan(cfg config.Config, hist *history.Manager, mode session.Mode, exePath, targets, principal string) {
	runner := scan.NewRunner(cfg)
	sess := session.New(cfg, runner, &consoleDisplay{}, hist, nil)
	sess.RemoveStaleArtifacts()

	if err := sess.Start(exePath, targets, principal, mode); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for !sess.Finished() {
		sess.Poll()
		time.Sleep(cfg.PollInterval)
	}

	fmt.Fprintf(os.Stderr, "-- %d lines, %d with write access, %d suppressed\n",
		sess.LineCount(), sess.WriteCount(), sess.SuppressedCount())
}

func runTuiMode(cfg config.Config, hist *history.Manager, exePath, targets string) {
	runner := scan.NewRunner(cfg)
	ui := tui.NewUI(cfg)
	sess := session.New(cfg, runner, ui, hist, nil)
	sess.RemoveStaleArtifacts()

	if strings.TrimSpace(targets) == "" {
		targets = scan.DefaultTargets()
	}

	m := tui.NewModel(cfg, sess, hist, ui, exePath, targets)
	p := tea.NewProgram(&m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
