// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/soilstat/pkg/config"
	"github.com/Thermoquad/soilstat/pkg/npk"
	"github.com/Thermoquad/soilstat/pkg/poller"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// TUI model
type model struct {
	connInfo      string
	indicatorInfo string
	stats         *poller.Statistics
	counters      poller.Counters

	spinner     spinner.Model
	awaiting    bool
	polled      bool
	present     bool
	lastReading *npk.Reading
	lastRaw     []byte

	eventLog      []eventLogEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type querySentMsg struct {
	frame []byte
}
type responseMsg struct {
	frame []byte
}
type readingMsg struct {
	reading *npk.Reading
}
type failureMsg struct {
	err error
}
type pollerDoneMsg struct {
	err error
}

// tuiReporter forwards poller events into the bubbletea program
type tuiReporter struct {
	send func(tea.Msg)
}

func (r *tuiReporter) emit(msg tea.Msg) {
	if r.send != nil {
		r.send(msg)
	}
}

func (r *tuiReporter) QuerySent(frame []byte)        { r.emit(querySentMsg{frame: frame}) }
func (r *tuiReporter) ChunkReceived([]byte)          {}
func (r *tuiReporter) ResponseReceived(frame []byte) { r.emit(responseMsg{frame: frame}) }
func (r *tuiReporter) ReadingDecoded(reading *npk.Reading) {
	r.emit(readingMsg{reading: reading})
}
func (r *tuiReporter) CycleFailed(err error) { r.emit(failureMsg{err: err}) }

func initialModel(connInfo, indicatorInfo string, stats *poller.Statistics) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return model{
		connInfo:      connInfo,
		indicatorInfo: indicatorInfo,
		stats:         stats,
		counters:      stats.Snapshot(),
		spinner:       s,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.counters = m.stats.Snapshot()
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case querySentMsg:
		m.awaiting = true

	case responseMsg:
		m.lastRaw = msg.frame

	case readingMsg:
		m.awaiting = false
		m.polled = true
		m.present = true
		m.lastReading = msg.reading
		m.counters = m.stats.Snapshot()
		m.addLogEntry(fmt.Sprintf("Reading: moisture %.1f %%, temperature %.1f °C, pH %s",
			msg.reading.Moisture(), msg.reading.Temperature(), npk.FormatPH(msg.reading)), false)

	case failureMsg:
		m.awaiting = false
		m.polled = true
		m.present = false
		m.counters = m.stats.Snapshot()
		m.addLogEntry(describeFailure(msg.err), true)

	case pollerDoneMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Poller stopped: %v", msg.err), true)
		}
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("SOILSTAT - NPK SENSOR MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | LED: %s | Press 'q' to quit", m.connInfo, m.indicatorInfo)))
	s.WriteString("\n\n")

	// Sensor status
	switch {
	case m.awaiting:
		s.WriteString(m.spinner.View())
		s.WriteString(warningStyle.Render(" Polling sensor..."))
	case !m.polled:
		s.WriteString(warningStyle.Render("⏳ Waiting for first poll..."))
	case m.present:
		s.WriteString(statsValueStyle.Render("✓ Sensor responding"))
	default:
		s.WriteString(errorStyle.Render("✗ No valid response"))
	}
	s.WriteString("\n\n")

	// Latest reading
	if m.lastReading != nil {
		s.WriteString(statsLabelStyle.Render("Latest Reading:"))
		s.WriteString(headerStyle.Render(" " + m.lastReading.Timestamp().Format("15:04:05")))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(m.readingContent()))
		s.WriteString("\n\n")
	}

	// Statistics
	s.WriteString(boxStyle.Render(m.statsContent()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 24
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					statsValueStyle.Render("✓ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

func (m model) readingContent() string {
	r := m.lastReading
	label := func(name string) string {
		return statsLabelStyle.Render(fmt.Sprintf("%-13s", name))
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s\n", label("Moisture:"), statsValueStyle.Render(fmt.Sprintf("%.1f %%", r.Moisture()))))
	b.WriteString(fmt.Sprintf("%s %s\n", label("Temperature:"), statsValueStyle.Render(fmt.Sprintf("%.1f °C", r.Temperature()))))
	b.WriteString(fmt.Sprintf("%s %s\n", label("Conductivity:"), statsValueStyle.Render(fmt.Sprintf("%d µS/cm", r.Conductivity()))))
	if r.InMedium() {
		b.WriteString(fmt.Sprintf("%s %s\n", label("pH:"), statsValueStyle.Render(npk.FormatPH(r))))
	} else {
		b.WriteString(fmt.Sprintf("%s %s\n", label("pH:"), warningStyle.Render(npk.FormatPH(r))))
	}
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("N:"), statsValueStyle.Render(fmt.Sprintf("%d mg/kg", r.Nitrogen())),
		statsLabelStyle.Render("P:"), statsValueStyle.Render(fmt.Sprintf("%d mg/kg", r.Phosphorus())),
		statsLabelStyle.Render("K:"), statsValueStyle.Render(fmt.Sprintf("%d mg/kg", r.Potassium())),
	))
	if len(m.lastRaw) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render(npk.FormatHex(m.lastRaw)))
	}
	return b.String()
}

func (m model) statsContent() string {
	c := m.counters

	failures := statsValueStyle.Render(fmt.Sprintf("%d", c.Failures()))
	if c.Failures() > 0 {
		failures = errorStyle.Render(fmt.Sprintf("%d", c.Failures()))
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Cycles:"), statsValueStyle.Render(fmt.Sprintf("%d", c.TotalCycles)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", c.ValidReadings, c.SuccessRate())),
		statsLabelStyle.Render("Failed:"), failures,
	))

	if c.Failures() > 0 {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %d, %s %d, %s %d, %s %d, %s %d",
			headerStyle.Render("no response"), c.NoResponse,
			headerStyle.Render("incomplete"), c.IncompleteFrames,
			headerStyle.Render("bad header"), c.HeaderErrors,
			headerStyle.Render("CRC"), c.CRCErrors,
			headerStyle.Render("transport"), c.TransportErrors+c.OtherErrors,
		))
	}
	return b.String()
}

// runPollTUI runs the poll loop behind the terminal dashboard.
// The poller goroutine stays the only user of the transport and LED.
func runPollTUI(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reporter := &tuiReporter{}
	p, connInfo, indicatorInfo, err := openPoller(cfg, pollCount, reporter)
	if err != nil {
		return err
	}
	defer p.Close()

	prog := tea.NewProgram(initialModel(connInfo, indicatorInfo, p.Stats()))
	reporter.send = prog.Send

	done := make(chan error, 1)
	go func() {
		err := p.Run(ctx)
		done <- err
		prog.Send(pollerDoneMsg{err: err})
	}()

	_, tuiErr := prog.Run()
	cancel()
	runErr := <-done

	if tuiErr != nil {
		return fmt.Errorf("TUI error: %w", tuiErr)
	}
	if runErr != nil {
		return runErr
	}

	fmt.Print(p.Stats().String())
	if err := p.Close(); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	fmt.Printf("Resources cleaned up.\n")
	return nil
}
