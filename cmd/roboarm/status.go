package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/roboarm/pkg/protocol"
	"github.com/gwillem/roboarm/pkg/robot"
	"github.com/gwillem/roboarm/pkg/transport"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableKeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableTargetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableDistStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

type StatusCommand struct{}

func (c *StatusCommand) Execute(args []string) error {
	return withClient(func(ctx context.Context, client *robot.Client, cfg *robot.Config) error {
		st, err := client.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Println(headerStyle.Render("Roboarm Status"))
		fmt.Println(renderProperties(st))
		fmt.Println()
		fmt.Println(headerStyle.Render("Joint Positions"))
		fmt.Println(renderJoints(st.Positions, st.Targets, st.Distances, cfg.Calibration))
		if client.Target().Kind == transport.KindSerial {
			fmt.Println(dimStyle.Render("Targets and distances are not reported over serial; try 'roboarm report'."))
		}
		return nil
	})
}

type ReportCommand struct{}

func (c *ReportCommand) Execute(args []string) error {
	return withClient(func(ctx context.Context, client *robot.Client, cfg *robot.Config) error {
		rep, err := client.Report(ctx)
		if err != nil {
			return err
		}
		distances := make(map[protocol.Joint]int, len(rep.Positions))
		for j, pos := range rep.Positions {
			if target, ok := rep.Targets[j]; ok {
				distances[j] = target - pos
			}
		}
		fmt.Println(headerStyle.Render("Position Report"))
		fmt.Println(renderProperties(protocol.Status{Enabled: rep.Enabled, Moving: rep.Moving}))
		fmt.Println()
		fmt.Println(renderJoints(rep.Positions, rep.Targets, distances, cfg.Calibration))
		return nil
	})
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func renderProperties(st protocol.Status) string {
	rows := [][]string{
		{"Enabled", yesNo(st.Enabled)},
		{"Moving", yesNo(st.Moving)},
	}
	if st.IP != nil && *st.IP != "" {
		rows = append(rows, []string{"IP Address", *st.IP})
	}
	if st.Uptime != nil {
		rows = append(rows, []string{"Uptime", strconv.Itoa(*st.Uptime) + "s"})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Property", "Value").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case col == 0:
				return tableKeyStyle
			default:
				return tableValueStyle
			}
		})
	return t.Render()
}

// cell formats a joint value, "?" when the controller did not report it.
func cell(values map[protocol.Joint]int, j protocol.Joint) string {
	v, ok := values[j]
	if !ok {
		return "?"
	}
	return strconv.Itoa(v)
}

func renderJoints(positions, targets, distances map[protocol.Joint]int, cal robot.Calibration) string {
	headers := []string{"Joint", "Position", "Target", "Distance"}
	calibrated := len(cal) > 0
	if calibrated {
		headers = append(headers, "Degrees")
	}

	var rows [][]string
	for _, j := range protocol.AllJoints() {
		row := []string{
			strings.ToUpper(string(j)),
			cell(positions, j),
			cell(targets, j),
			cell(distances, j),
		}
		if calibrated {
			deg := "?"
			if pos, ok := positions[j]; ok {
				if d, ok := cal.Degrees(j, pos); ok {
					deg = fmt.Sprintf("%.1f°", d)
				}
			}
			row = append(row, deg)
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableKeyStyle
			case 1:
				return tableValueStyle
			case 2:
				return tableTargetStyle
			case 3:
				return tableDistStyle
			default:
				return tableCellStyle
			}
		})
	return t.Render()
}
