package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.bug.st/serial"

	"github.com/gwillem/roboarm/pkg/protocol"
	"github.com/gwillem/roboarm/pkg/robot"
	"github.com/gwillem/roboarm/pkg/transport"
)

var subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))

const networkChoice = "network"

type SetupCommand struct {
	NoScan bool `long:"no-scan" description:"Skip probing serial ports"`
}

type portInfo struct {
	device string
	status *protocol.Status // nil when the port did not answer
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Roboarm Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Step 1: pick the controller
	var ports []portInfo
	if !c.NoScan {
		fmt.Println("Scanning serial ports for a controller...")
		ports = findControllers(cfg)
		fmt.Println()
	}
	url, err := chooseURL(cfg.URL, ports)
	if err != nil {
		fmt.Println()
		os.Exit(0)
	}
	cfg.URL = url

	// Step 2: read motor settings for calibration
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Reading motor settings ━━━"))
	fmt.Println()

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout()+transport.DefaultSettleDelay+5*time.Second)
	defer cancel()

	var settings []protocol.MotorSettings
	err = client.Session(ctx, func(client *robot.Client) error {
		settings, err = client.Settings(ctx)
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not read settings from %s: %v\n", cfg.URL, err)
		fmt.Println(dimStyle.Render("Saving the connection without calibration."))
	} else {
		fmt.Println(renderSettings(settings))
		cfg.Calibration = robot.CalibrationFromSettings(settings)
	}

	// Step 3: save
	if err := cfg.SaveTo(opts.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Check the arm with: " + headerStyle.Render("roboarm status"))
	return nil
}

// findControllers probes every serial port with a status query.
func findControllers(cfg *robot.Config) []portInfo {
	devices, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var found []portInfo
	for _, device := range devices {
		// Skip Bluetooth ports on macOS
		if strings.Contains(device, "Bluetooth") {
			continue
		}

		info := portInfo{device: device}
		if st, err := probe(cfg, device); err == nil {
			info.status = &st
			fmt.Printf("  %s %s\n", successStyle.Render("✓"), device)
		} else {
			fmt.Printf("  %s %s\n", dimStyle.Render("·"), dimStyle.Render(device))
		}
		found = append(found, info)
	}
	return found
}

func probe(cfg *robot.Config, device string) (protocol.Status, error) {
	client, err := robot.New("serial://"+device,
		robot.WithBaudRate(cfg.BaudRate),
		robot.WithTimeout(time.Second),
	)
	if err != nil {
		return protocol.Status{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), transport.DefaultSettleDelay+2*time.Second)
	defer cancel()

	var st protocol.Status
	err = client.Session(ctx, func(client *robot.Client) error {
		st, err = client.Status(ctx)
		return err
	})
	return st, err
}

func chooseURL(current string, ports []portInfo) (string, error) {
	var options []huh.Option[string]
	for _, p := range ports {
		label := p.device
		if p.status != nil {
			label += " (controller found)"
		}
		options = append(options, huh.NewOption(label, "serial://"+p.device))
	}
	options = append(options, huh.NewOption("Network address (HTTP)", networkChoice))

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How is the controller connected?").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	if choice != networkChoice {
		return choice, nil
	}

	url := current
	if !strings.HasPrefix(url, "http") {
		url = robot.DefaultURL
	}
	input := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Controller URL").
				Description("e.g. http://roboarm.local or http://192.168.1.100").
				Value(&url).
				Validate(func(s string) error {
					_, err := transport.ParseTarget(s)
					return err
				}),
		),
	)
	if err := input.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(url), nil
}

func renderSettings(settings []protocol.MotorSettings) string {
	rows := make([][]string, 0, len(settings))
	for _, ms := range settings {
		micro := "?"
		if ms.Microstepping > 0 {
			micro = strconv.Itoa(ms.Microstepping)
		}
		rows = append(rows, []string{
			strings.ToUpper(string(ms.Joint)),
			ms.Name,
			strconv.Itoa(ms.StepsPerRev),
			micro,
			strconv.FormatFloat(ms.MaxSpeed, 'f', -1, 64),
			strconv.FormatFloat(ms.Acceleration, 'f', -1, 64),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Name", "Steps/rev", "Microsteps", "Max Hz", "Accel").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case col == 0:
				return tableKeyStyle
			default:
				return tableCellStyle
			}
		})
	return t.Render()
}
