package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"achk/internal/scan"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	writeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")) // red, the whole point of the tool

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")) // orange

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81"))

	noticeInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("78"))

	noticeErrStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("203"))

	overlayStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("63"))

	logStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// Status glyphs, single-width for consistent terminal rendering.
const (
	iconRunning = "▶"
	iconIdle    = "■"
	iconWrite   = "✎"
	iconFilter  = "⌕"
)

// Rows of chrome (title, inputs, command line, status, footer, borders)
// above and below the log viewport.
const chromeHeight = 10

func (m AppModel) View() string {
	if !m.ready {
		return "\n  Starting up...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("achk — AccessChk front-end"))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("accesschk.exe [x]: "))
	b.WriteString(m.ExeInput.View())
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("targets       [t]: "))
	b.WriteString(m.TargetsInput.View())
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("filter        [f]: "))
	b.WriteString(m.FilterInput.View())
	if m.OnlyDirs {
		b.WriteString(dimStyle.Render("  (folders only)"))
	}
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("command: "))
	b.WriteString(dimStyle.Render(m.commandPreview()))
	b.WriteString("\n")

	switch m.Overlay {
	case overlayDiff:
		b.WriteString(m.renderDiffOverlay())
	case overlayHistory:
		b.WriteString(m.renderHistoryOverlay())
	case overlayExport:
		b.WriteString(overlayStyle.Render("Export filtered logs as:  (t)xt  (c)sv  (j)son  (x)ml   esc to cancel"))
		b.WriteString("\n")
	default:
		b.WriteString(logStyle.Render(m.LogViewport.View()))
		b.WriteString("\n")
	}

	// Status bar
	icon := iconIdle
	if m.Session.Running() {
		icon = m.Spin.View() + " " + iconRunning
	}
	b.WriteString(statusStyle.Render(fmt.Sprintf("%s %s", icon, m.UI.status)))
	b.WriteString("\n")
	if m.UI.notice != "" {
		style := noticeInfoStyle
		if m.UI.noticeErr {
			style = noticeErrStyle
		}
		b.WriteString(style.Render(m.UI.notice))
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("b baseline scan · c compare scan · s/esc stop · d folders only · e export · h history · L clear · q quit"))
	b.WriteString("\n")

	return b.String()
}

func (m AppModel) commandPreview() string {
	return scan.PreviewCommand(
		m.ExeInput.Value(),
		m.Session.DefaultPrincipal(),
		splitTargetsForPreview(m.TargetsInput.Value()),
	)
}

func splitTargetsForPreview(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// renderLogContent builds the viewport body. With an active filter or the
// folders-only toggle the session's filtered view wins over the raw stream
// buckets.
func (m AppModel) renderLogContent() string {
	filter := strings.TrimSpace(m.FilterInput.Value())
	if filter != "" || m.OnlyDirs {
		records := m.Session.FilteredRecords(filter, m.OnlyDirs)
		lines := make([]string, 0, len(records))
		for _, rec := range records {
			switch {
			case rec.IsErr:
				lines = append(lines, errStyle.Render(rec.Text))
			case rec.IsWrite:
				lines = append(lines, writeStyle.Render(iconWrite+" "+rec.Text))
			default:
				lines = append(lines, rec.Text)
			}
		}
		if len(lines) == 0 {
			return dimStyle.Render(iconFilter + " no matching lines")
		}
		return strings.Join(lines, "\n")
	}

	if len(m.UI.lines) == 0 {
		return dimStyle.Render("no scan output yet — press b to run a baseline scan")
	}
	lines := make([]string, 0, len(m.UI.lines))
	for _, rl := range m.UI.lines {
		switch rl.kind {
		case kindErr:
			lines = append(lines, errStyle.Render(rl.text))
		case kindWrite:
			lines = append(lines, writeStyle.Render(iconWrite+" "+rl.text))
		default:
			lines = append(lines, rl.text)
		}
	}
	return strings.Join(lines, "\n")
}

func (m AppModel) renderDiffOverlay() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Differences between scans"))
	b.WriteString("\n")
	max := m.LogViewport.Height
	for i, line := range m.UI.diff {
		if i >= max {
			b.WriteString(dimStyle.Render(fmt.Sprintf("… %d more lines (saved to %s)", len(m.UI.diff)-max, m.Cfg.DiffGen)))
			b.WriteString("\n")
			break
		}
		switch {
		case strings.HasPrefix(line, "+"):
			b.WriteString(writeStyle.Render(line))
		case strings.HasPrefix(line, "-"):
			b.WriteString(dimStyle.Render(line))
		default:
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	return overlayStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func (m AppModel) renderHistoryOverlay() string {
	entries := m.Hist.Entries()
	var b strings.Builder
	b.WriteString(titleStyle.Render("Scan history"))
	b.WriteString("\n")
	if len(entries) == 0 {
		b.WriteString(dimStyle.Render("no scans recorded"))
		b.WriteString("\n")
	}
	max := m.LogViewport.Height
	for i, e := range entries {
		if i >= max {
			b.WriteString(dimStyle.Render(fmt.Sprintf("… %d more entries", len(entries)-max)))
			b.WriteString("\n")
			break
		}
		targets := strings.Join(e.Targets, "; ")
		if len(e.Targets) > 2 {
			targets = strings.Join(e.Targets[:2], "; ") + fmt.Sprintf(" (+%d more)", len(e.Targets)-2)
		}
		b.WriteString(fmt.Sprintf("%s  %-8s  %-30s  %s  %d lines\n",
			e.Timestamp, e.ScanType, targets, e.Principal, e.ResultCount))
	}
	return overlayStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}
