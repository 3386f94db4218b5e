// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/noolite/pkg/mtrf"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// logEntry is one line of the event log
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// channelActivity is the latest event seen on a channel
type channelActivity struct {
	channel  uint8
	last     string
	mode     mtrf.Mode
	id       uint32
	count    int
	lastSeen time.Time
}

type monitorModel struct {
	connInfo string
	names    map[uint8]string
	stats    func() mtrf.Stats
	showAll  bool

	channels      map[uint8]*channelActivity
	table         table.Model
	log           []logEntry
	maxLogEntries int

	width    int
	height   int
	lost     bool
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type monitorEventMsg struct {
	event mtrf.Event
}

type monitorLostMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

func newMonitorModel(connInfo string, names map[uint8]string, stats func() mtrf.Stats, showAll bool) monitorModel {
	columns := []table.Column{
		{Title: "Ch", Width: 4},
		{Title: "Name", Width: 14},
		{Title: "Last Event", Width: 34},
		{Title: "Mode", Width: 6},
		{Title: "ID", Width: 10},
		{Title: "Count", Width: 6},
		{Title: "Seen", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(8),
		table.WithFocused(true),
	)
	style := table.DefaultStyles()
	style.Header = style.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	style.Selected = style.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(style)

	return monitorModel{
		connInfo:      connInfo,
		names:         names,
		stats:         stats,
		showAll:       showAll,
		channels:      make(map[uint8]*channelActivity),
		table:         t,
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "c":
			m.log = nil
			return m, nil
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.refreshRows()
		return m, monitorTickCmd()

	case monitorEventMsg:
		m.recordEvent(msg.event)
		m.refreshRows()

	case monitorLostMsg:
		m.lost = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", true)
		}
	}
	return m, nil
}

func (m *monitorModel) recordEvent(ev mtrf.Event) {
	o := ev.Source()
	act, ok := m.channels[o.Channel]
	if !ok {
		act = &channelActivity{channel: o.Channel}
		m.channels[o.Channel] = act
	}
	text := mtrf.FormatEvent(ev)
	_, periodic := ev.(mtrf.TempHumi)
	repeated := periodic && act.count > 0

	act.last = text
	act.mode = o.Mode
	act.id = o.ID
	act.count++
	act.lastSeen = o.Received
	if act.lastSeen.IsZero() {
		act.lastSeen = time.Now()
	}

	if repeated && !m.showAll {
		return
	}
	_, isBattery := ev.(mtrf.BatteryLow)
	m.addLogEntry(fmt.Sprintf("ch %d %s%s", o.Channel, m.label(o.Channel), text), isBattery)
}

func (m monitorModel) label(channel uint8) string {
	if name, ok := m.names[channel]; ok {
		return "(" + name + ") "
	}
	return ""
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.log = append(m.log, logEntry{timestamp: time.Now(), message: message, isError: isError})
	if len(m.log) > m.maxLogEntries {
		m.log = m.log[len(m.log)-m.maxLogEntries:]
	}
}

func (m *monitorModel) refreshRows() {
	channels := make([]*channelActivity, 0, len(m.channels))
	for _, act := range m.channels {
		channels = append(channels, act)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].channel < channels[j].channel })

	rows := make([]table.Row, 0, len(channels))
	for _, act := range channels {
		id := ""
		if act.id != 0 {
			id = fmt.Sprintf("%08X", act.id)
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", act.channel),
			m.names[act.channel],
			act.last,
			act.mode.String(),
			id,
			fmt.Sprintf("%d", act.count),
			formatAgo(time.Since(act.lastSeen)),
		})
	}
	m.table.SetRows(rows)
}

// formatAgo renders an elapsed time compactly
func formatAgo(d time.Duration) string {
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("NOOLITE - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | 'q' quit, 'c' clear log", m.connInfo)))
	s.WriteString("\n\n")

	if m.lost {
		s.WriteString(errorStyle.Render("✗ Connection lost"))
		s.WriteString("\n\n")
	}

	// Statistics
	stats := m.stats()
	stats.CalculateRates()
	statsLine := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s   %s %s",
		labelStyle.Render("Sent:"), valueStyle.Render(fmt.Sprintf("%d", stats.FramesSent)),
		labelStyle.Render("Received:"), valueStyle.Render(fmt.Sprintf("%d", stats.FramesReceived)),
		labelStyle.Render("Events:"), valueStyle.Render(fmt.Sprintf("%d", stats.Events)),
		labelStyle.Render("Errors:"), func() string {
			if stats.FrameErrors > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", stats.FrameErrors))
			}
			return valueStyle.Render("0")
		}(),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f fr/s", stats.FrameRate)),
	)
	s.WriteString(boxStyle.Render(statsLine))
	s.WriteString("\n\n")

	// Channels
	s.WriteString(labelStyle.Render("Channels:"))
	s.WriteString("\n")
	if len(m.channels) == 0 {
		s.WriteString(boxStyle.Render(headerStyle.Render("(no events yet, press a button on a remote)")))
	} else {
		s.WriteString(boxStyle.Render(m.table.View()))
	}
	s.WriteString("\n\n")

	// Log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 22
	if logHeight < 5 {
		logHeight = 5
	}
	start := len(m.log) - logHeight
	if start < 0 {
		start = 0
	}

	var logContent strings.Builder
	if len(m.log) == 0 {
		logContent.WriteString(headerStyle.Render("  (empty)"))
	}
	for _, entry := range m.log[start:] {
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
		} else {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, infoStyle.Render("ℹ "+entry.message)))
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
