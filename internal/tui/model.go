package tui

import (
	"achk/internal/config"
	"achk/internal/history"
	"achk/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type lineKind int

const (
	kindNormal lineKind = iota
	kindWrite
	kindErr
)

type renderedLine struct {
	text string
	kind lineKind
}

// uiState is the session.Display implementation backing the TUI. The
// session writes into it during Poll; View reads it back out. Both happen
// on the bubbletea goroutine, so no locking.
type uiState struct {
	maxLines int

	lines     []renderedLine
	dirty     bool
	status    string
	notice    string
	noticeErr bool
	diff      []string
	showDiff  bool
	finished  bool
	rc        int
}

func (u *uiState) AppendBatch(normal, write, errs []string) {
	for _, l := range normal {
		u.lines = append(u.lines, renderedLine{text: l, kind: kindNormal})
	}
	for _, l := range write {
		u.lines = append(u.lines, renderedLine{text: l, kind: kindWrite})
	}
	for _, l := range errs {
		u.lines = append(u.lines, renderedLine{text: l, kind: kindErr})
	}
	if over := len(u.lines) - u.maxLines; over > 0 {
		u.lines = u.lines[over:]
	}
	u.dirty = true
}

func (u *uiState) SetStatus(status string) { u.status = status }

func (u *uiState) ShowError(title, message string) {
	u.notice = title + ": " + message
	u.noticeErr = true
}

func (u *uiState) ShowInfo(title, message string) {
	u.notice = title + ": " + message
	u.noticeErr = false
}

func (u *uiState) ShowDiff(lines []string) {
	u.diff = lines
	u.showDiff = true
}

func (u *uiState) ScanFinished(rc int) {
	u.finished = true
	u.rc = rc
}

func (u *uiState) clearLines() {
	u.lines = nil
	u.dirty = true
}

// Input focus targets.
const (
	focusNone = iota
	focusExe
	focusTargets
	focusFilter
)

// Overlay views layered over the log.
const (
	overlayNone = iota
	overlayDiff
	overlayHistory
	overlayExport
)

// AppModel holds the TUI state.
type AppModel struct {
	Cfg     config.Config
	Session *session.Session
	Hist    *history.Manager
	UI      *uiState

	// UI state
	WindowSize tea.WindowSizeMsg
	Focus      int
	Overlay    int
	OnlyDirs   bool

	// Components
	ExeInput     textinput.Model
	TargetsInput textinput.Model
	FilterInput  textinput.Model
	LogViewport  viewport.Model
	Spin         spinner.Model

	ready bool // viewport sized at least once
}

// NewModel builds the initial TUI state around an already-wired session.
// The session must have been created with the model's Display (see NewUI).
func NewModel(cfg config.Config, sess *session.Session, hist *history.Manager, ui *uiState, exePath, targets string) AppModel {
	exe := textinput.New()
	exe.Placeholder = "path to accesschk.exe"
	exe.CharLimit = cfg.MaxPathLength
	exe.SetValue(exePath)

	tgt := textinput.New()
	tgt.Placeholder = `targets, separated by ;`
	tgt.SetValue(targets)

	flt := textinput.New()
	flt.Placeholder = "filter..."
	flt.CharLimit = 80

	sp := spinner.New()
	sp.Spinner = spinner.Line

	return AppModel{
		Cfg:          cfg,
		Session:      sess,
		Hist:         hist,
		UI:           ui,
		ExeInput:     exe,
		TargetsInput: tgt,
		FilterInput:  flt,
		Spin:         sp,
	}
}

// NewUI returns the display sink a session should render through when the
// TUI front-end is in charge.
func NewUI(cfg config.Config) *uiState {
	return &uiState{maxLines: cfg.MaxDisplayedLines, status: "Ready"}
}

// Init arms the consumer tick and the spinner.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.Spin.Tick, pollTick(m.Cfg.PollInterval))
}
