package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/gwillem/roboarm/pkg/protocol"
	"github.com/gwillem/roboarm/pkg/robot"
)

type Options struct {
	URL     string  `short:"u" long:"url" description:"Controller URL: http(s)://host or serial://device (default from config)"`
	Timeout float64 `long:"timeout" description:"Reply timeout in seconds"`
	Baud    int     `long:"baud" description:"Serial baud rate"`
	Config  string  `short:"c" long:"config" default:"roboarm.json" description:"Config file"`
	Verbose []bool  `short:"v" long:"verbose" description:"Log protocol traffic (repeat for more)"`

	Status   StatusCommand   `command:"status" description:"Show arm status and joint positions"`
	Enable   EnableCommand   `command:"enable" description:"Enable all stepper motors"`
	Disable  DisableCommand  `command:"disable" description:"Disable all stepper motors"`
	Stop     StopCommand     `command:"stop" alias:"estop" description:"Emergency stop: halt and disable all motors"`
	Move     MoveCommand     `command:"move" description:"Move joints to positions in steps"`
	Home     HomeCommand     `command:"home" description:"Set the current position as zero for all joints"`
	Send     SendCommand     `command:"send" description:"Send a raw G-code command"`
	Report   ReportCommand   `command:"report" description:"Show the M114 position report"`
	Watch    WatchCommand    `command:"watch" description:"Live chart of joint positions"`
	Setup    SetupCommand    `command:"setup" description:"Find the controller and save the configuration"`
	Simulate SimulateCommand `command:"simulate" alias:"sim" description:"Serve an emulated controller over HTTP"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func main() {
	parser.LongDescription = "Roboarm - command-line control for the 6-axis robotic arm controller"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// loadConfig reads the config file, then the environment, then the global
// flags, each overriding the previous.
func loadConfig() (*robot.Config, error) {
	cfg, err := robot.LoadConfigOrDefault(opts.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(robot.DefaultEnvFile); err != nil {
		return nil, err
	}
	if opts.URL != "" {
		cfg.URL = opts.URL
	}
	if opts.Timeout > 0 {
		cfg.TimeoutSeconds = opts.Timeout
	}
	if opts.Baud > 0 {
		cfg.BaudRate = opts.Baud
	}
	switch len(opts.Verbose) {
	case 0:
	case 1:
		cfg.LogLevel = logrus.DebugLevel.String()
	default:
		cfg.LogLevel = logrus.TraceLevel.String()
	}
	return cfg, nil
}

func newClient(cfg *robot.Config) (*robot.Client, error) {
	log := robot.NewLogger(cfg.LogLevel)
	return robot.New(cfg.URL, cfg.ClientOptions(log)...)
}

// withClient runs fn inside a connected session. Ctrl-C cancels the context.
func withClient(fn func(ctx context.Context, c *robot.Client, cfg *robot.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return client.Session(ctx, func(c *robot.Client) error {
		return fn(ctx, c, cfg)
	})
}

// printResult prints a command outcome. A failed result is reported, not
// returned as an error.
func printResult(res protocol.Result, success string) {
	if res.Success {
		fmt.Println(successStyle.Render(success))
		return
	}
	fmt.Println(errorStyle.Render("Error: " + res.Message))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
