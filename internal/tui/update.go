package tui

import (
	"path/filepath"
	"time"

	"achk/internal/export"
	"achk/internal/scan"
	"achk/internal/session"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// tickMsg drives the consumer cadence.
type tickMsg time.Time

func pollTick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		m.LogViewport.Width = msg.Width - 4
		m.LogViewport.Height = msg.Height - chromeHeight
		if m.LogViewport.Height < 3 {
			m.LogViewport.Height = 3
		}
		m.ready = true
		m.refreshLog(false)
		return m, nil

	case tickMsg:
		// One consumer cycle; the tick re-arms unconditionally so the status
		// line keeps reflecting final state after the scan ends.
		m.Session.Poll()
		if m.UI.showDiff {
			m.UI.showDiff = false
			m.Overlay = overlayDiff
		}
		if m.UI.dirty {
			m.refreshLog(true)
		}
		return m, pollTick(m.Cfg.PollInterval)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Everything else (spinner ticks included) flows to the spinner.
	m.Spin, cmd = m.Spin.Update(msg)
	return m, cmd
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	// Text entry mode captures everything except enter/esc.
	if m.Focus != focusNone {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEsc:
			m.blurInputs()
			m.Focus = focusNone
			m.refreshLog(false)
			return m, nil
		}
		switch m.Focus {
		case focusExe:
			m.ExeInput, cmd = m.ExeInput.Update(msg)
		case focusTargets:
			m.TargetsInput, cmd = m.TargetsInput.Update(msg)
		case focusFilter:
			m.FilterInput, cmd = m.FilterInput.Update(msg)
			m.refreshLog(false)
		}
		return m, cmd
	}

	if m.Overlay == overlayExport {
		return m.handleExportKey(msg)
	}
	if m.Overlay != overlayNone {
		switch msg.String() {
		case "esc", "q", "enter":
			m.Overlay = overlayNone
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.Session.Stop()
		m.Session.CleanupArtifacts()
		return m, tea.Quit
	case "esc":
		if m.Session.Running() {
			m.Session.Stop()
		}
		return m, nil
	case "b":
		return m.startScan(session.ModeBaseline)
	case "c":
		return m.startScan(session.ModeCompare)
	case "s":
		m.Session.Stop()
		return m, nil
	case "x":
		m.Focus = focusExe
		m.ExeInput.Focus()
		return m, textinput.Blink
	case "t":
		m.Focus = focusTargets
		m.TargetsInput.Focus()
		return m, textinput.Blink
	case "f", "/":
		m.Focus = focusFilter
		m.FilterInput.Focus()
		return m, textinput.Blink
	case "d":
		m.OnlyDirs = !m.OnlyDirs
		m.refreshLog(false)
		return m, nil
	case "L":
		if m.Session.ClearLogs() {
			m.UI.clearLines()
			m.refreshLog(false)
		}
		return m, nil
	case "h":
		m.Overlay = overlayHistory
		return m, nil
	case "e":
		m.Overlay = overlayExport
		return m, nil
	case "up", "k", "down", "j", "pgup", "pgdown", "home", "end":
		m.LogViewport, cmd = m.LogViewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m AppModel) startScan(mode session.Mode) (tea.Model, tea.Cmd) {
	m.UI.clearLines()
	m.UI.notice = ""
	m.UI.finished = false
	m.refreshLog(false)
	if err := m.Session.Start(m.ExeInput.Value(), m.TargetsInput.Value(), "", mode); err != nil {
		m.UI.ShowError("Scan", err.Error())
		return m, nil
	}
	return m, m.Spin.Tick
}

func (m AppModel) handleExportKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.Overlay = overlayNone
		return m, nil
	}

	records := m.Session.FilteredRecords(m.FilterInput.Value(), m.OnlyDirs)
	if len(records) == 0 {
		m.UI.ShowInfo("Export", "No log lines to export.")
		m.Overlay = overlayNone
		return m, nil
	}

	var err error
	var dest string
	switch msg.String() {
	case "t":
		dest = filepath.Join(m.Cfg.DataDir, "accesschk_filtered_logs.txt")
		err = export.ToTXT(records, dest)
	case "c":
		dest = filepath.Join(m.Cfg.DataDir, "accesschk_export.csv")
		err = export.ToCSV(records, dest, scan.CurrentUserPrincipal())
	case "j":
		dest = filepath.Join(m.Cfg.DataDir, "accesschk_export.json")
		err = export.ToJSON(records, dest)
	case "x":
		dest = filepath.Join(m.Cfg.DataDir, "accesschk_export.xml")
		err = export.ToXML(records, dest)
	default:
		return m, nil
	}

	m.Overlay = overlayNone
	if err != nil {
		m.UI.ShowError("Export", err.Error())
	} else {
		m.UI.ShowInfo("Export", "Saved to "+dest)
	}
	return m, nil
}

func (m *AppModel) blurInputs() {
	m.ExeInput.Blur()
	m.TargetsInput.Blur()
	m.FilterInput.Blur()
}

// refreshLog rebuilds the viewport content from the display sink, applying
// the live filter, and follows the tail when new lines arrive.
func (m *AppModel) refreshLog(follow bool) {
	if !m.ready {
		return
	}
	atBottom := m.LogViewport.AtBottom()
	m.LogViewport.SetContent(m.renderLogContent())
	m.UI.dirty = false
	if follow && atBottom {
		m.LogViewport.GotoBottom()
	}
}
