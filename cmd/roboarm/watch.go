package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/roboarm/pkg/monitor"
	"github.com/gwillem/roboarm/pkg/protocol"
	"github.com/gwillem/roboarm/pkg/robot"
)

type WatchCommand struct {
	Hz      int     `long:"hz" default:"10" description:"Status poll frequency"`
	Range   float64 `long:"range" default:"5000" description:"Chart Y range in steps, or degrees with --degrees"`
	Degrees bool    `short:"d" long:"degrees" description:"Chart degrees instead of steps (needs calibration from setup)"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Joint colors - distinct colors for each joint
var jointColors = map[protocol.Joint]string{
	protocol.J1: "196", // red
	protocol.J2: "208", // orange
	protocol.J3: "226", // yellow
	protocol.J4: "46",  // green
	protocol.J5: "51",  // cyan
	protocol.J6: "201", // magenta
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type watchModel struct {
	mon           *monitor.Monitor
	chart         *streamlinechart.Model
	cal           robot.Calibration // nil charts raw steps
	width         int
	height        int
	logs          []string
	quitting      bool
	status        *protocol.Status
	lastErr       error
	lastPositions map[protocol.Joint]int
}

func (m *watchModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasMovement checks if any joint position has changed from the last state
func (m *watchModel) hasMovement(positions map[protocol.Joint]int) bool {
	if m.lastPositions == nil {
		return true
	}
	for j, pos := range positions {
		if last, ok := m.lastPositions[j]; !ok || pos != last {
			return true
		}
	}
	return false
}

func (m *watchModel) value(j protocol.Joint, steps int) float64 {
	if m.cal == nil {
		return float64(steps)
	}
	deg, _ := m.cal.Degrees(j, steps)
	return deg
}

type stateMsg monitor.State
type logMsg string

func waitForState(mon *monitor.Monitor) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-mon.States())
	}
}

func waitForLog(mon *monitor.Monitor) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-mon.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *watchModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func newWatchModel(mon *monitor.Monitor, cal robot.Calibration, yRange float64) watchModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-yRange, yRange),
	)
	for _, j := range protocol.AllJoints() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[j]))
		chart.SetDataSetStyles(string(j), runes.ThinLineStyle, style)
	}
	return watchModel{
		mon:   mon,
		chart: &chart,
		cal:   cal,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.mon),
		waitForLog(m.mon),
	)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := m.chartSize()
		m.chart.Resize(w, h)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		state := monitor.State(msg)
		m.lastErr = state.Err
		if state.Err == nil {
			st := state.Status
			m.status = &st
			// Only update chart if there's movement (freeze when idle)
			if m.hasMovement(st.Positions) {
				for j, pos := range st.Positions {
					m.chart.PushDataSet(string(j), m.value(j, pos))
				}
				m.chart.DrawAll()
				m.lastPositions = st.Positions
			}
		}
		return m, waitForState(m.mon)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.mon)
	}

	return m, nil
}

func (m watchModel) View() string {
	if m.quitting {
		return "Watch stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Roboarm Watch"))
	fmt.Fprintf(&sb, " - %d Hz", m.mon.Hz())
	switch {
	case m.lastErr != nil:
		sb.WriteString(errorStyle.Render("  disconnected"))
	case m.status != nil:
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  enabled: %s  moving: %s",
			yesNo(m.status.Enabled), yesNo(m.status.Moving))))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend(m.lastPositions))
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	logLines := statusStyle.Render("Press 'q' to quit")
	if len(m.logs) > 0 {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend(positions map[protocol.Joint]int) string {
	var items []string
	for _, j := range protocol.AllJoints() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[j])).Bold(true)
		item := colorStyle.Render("━━") + " " + strings.ToUpper(string(j))
		if pos, ok := positions[j]; ok {
			item += fmt.Sprintf(" %d", pos)
		}
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}

func (c *WatchCommand) Execute(args []string) error {
	return withClient(func(ctx context.Context, client *robot.Client, cfg *robot.Config) error {
		var cal robot.Calibration
		if c.Degrees {
			if !cfg.IsCalibrated() {
				return fmt.Errorf("no calibration in %s. Run 'roboarm setup' first", opts.Config)
			}
			cal = cfg.Calibration
		}

		mon := monitor.New(client, monitor.Config{Hz: c.Hz})

		ctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := mon.Start(ctx); err != nil && err != context.Canceled {
				log.Printf("Monitor error: %v", err)
			}
		}()

		p := tea.NewProgram(newWatchModel(mon, cal, c.Range), tea.WithAltScreen())
		_, err := p.Run()

		// the monitor must stop polling before the session closes the client
		cancel()
		<-done
		return err
	})
}
