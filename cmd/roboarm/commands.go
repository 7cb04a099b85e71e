package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gwillem/roboarm/pkg/protocol"
	"github.com/gwillem/roboarm/pkg/robot"
)

type EnableCommand struct{}

func (c *EnableCommand) Execute(args []string) error {
	return withClient(func(ctx context.Context, client *robot.Client, _ *robot.Config) error {
		res, err := client.Enable(ctx)
		if err != nil {
			return err
		}
		printResult(res, "Motors enabled")
		return nil
	})
}

type DisableCommand struct{}

func (c *DisableCommand) Execute(args []string) error {
	return withClient(func(ctx context.Context, client *robot.Client, _ *robot.Config) error {
		res, err := client.Disable(ctx)
		if err != nil {
			return err
		}
		if res.Success {
			fmt.Println(warnStyle.Render("Motors disabled"))
			return nil
		}
		printResult(res, "")
		return nil
	})
}

type StopCommand struct{}

func (c *StopCommand) Execute(args []string) error {
	return withClient(func(ctx context.Context, client *robot.Client, _ *robot.Config) error {
		res, err := client.EmergencyStop(ctx)
		if err != nil {
			return err
		}
		fmt.Println(errorStyle.Bold(true).Render("EMERGENCY STOP"))
		fmt.Println(res.Message)
		return nil
	})
}

type HomeCommand struct{}

func (c *HomeCommand) Execute(args []string) error {
	return withClient(func(ctx context.Context, client *robot.Client, _ *robot.Config) error {
		res, err := client.Home(ctx)
		if err != nil {
			return err
		}
		printResult(res, "All joints homed (zeroed)")
		return nil
	})
}

type MoveCommand struct {
	J1 *int `long:"j1" description:"Joint 1 position"`
	J2 *int `long:"j2" description:"Joint 2 position"`
	J3 *int `long:"j3" description:"Joint 3 position"`
	J4 *int `long:"j4" description:"Joint 4 position"`
	J5 *int `long:"j5" description:"Joint 5 position"`
	J6 *int `long:"j6" description:"Joint 6 position"`

	Relative    bool    `short:"r" long:"relative" description:"Move relative to the current position"`
	Degrees     bool    `short:"d" long:"degrees" description:"Positions are degrees (needs calibration from setup)"`
	Wait        bool    `short:"w" long:"wait" description:"Wait until the move completes"`
	WaitTimeout float64 `long:"wait-timeout" default:"60" description:"Seconds to wait with --wait"`
}

func (c *MoveCommand) targets() map[protocol.Joint]int {
	targets := map[protocol.Joint]int{}
	for i, v := range []*int{c.J1, c.J2, c.J3, c.J4, c.J5, c.J6} {
		if v == nil {
			continue
		}
		j, _ := protocol.JointAt(i)
		targets[j] = *v
	}
	return targets
}

func (c *MoveCommand) Execute(args []string) error {
	targets := c.targets()
	if len(targets) == 0 {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: Specify at least one joint position (--j1, --j2, etc.)"))
		os.Exit(1)
	}

	return withClient(func(ctx context.Context, client *robot.Client, cfg *robot.Config) error {
		if c.Degrees {
			steps, err := toSteps(cfg.Calibration, targets, c.Relative)
			if err != nil {
				return err
			}
			targets = steps
		}

		res, err := client.Move(ctx, targets, c.Relative)
		if err != nil {
			return err
		}
		mode := "absolute"
		if c.Relative {
			mode = "relative"
		}
		printResult(res, fmt.Sprintf("Move command sent (%s)", mode))
		if !res.Success || !c.Wait {
			return nil
		}

		fmt.Println("Waiting for move to complete...")
		idle, err := client.WaitForIdle(ctx, seconds(c.WaitTimeout), robot.DefaultPollInterval)
		if err != nil {
			return err
		}
		if idle {
			fmt.Println(successStyle.Render("Move complete"))
		} else {
			fmt.Println(warnStyle.Render("Timeout waiting for move"))
		}
		return nil
	})
}

// toSteps converts degree targets with the saved calibration. Relative moves
// are offsets, so the home offset does not apply to them.
func toSteps(cal robot.Calibration, targets map[protocol.Joint]int, relative bool) (map[protocol.Joint]int, error) {
	var missing []string
	out := make(map[protocol.Joint]int, len(targets))
	for j, deg := range targets {
		jc, ok := cal[j]
		if !ok || jc.StepsPerDegree() == 0 {
			missing = append(missing, string(j))
			continue
		}
		if relative {
			jc.HomeOffset = 0
		}
		out[j] = jc.Steps(float64(deg))
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("not calibrated: %s (run 'roboarm setup' first)", strings.Join(missing, ", "))
	}
	return out, nil
}

type SendCommand struct {
	Args struct {
		Command []string `positional-arg-name:"command" required:"1" description:"G-code command, e.g. G0 J1:1000"`
	} `positional-args:"yes" required:"yes"`
}

func (c *SendCommand) Execute(args []string) error {
	command := strings.Join(c.Args.Command, " ")
	return withClient(func(ctx context.Context, client *robot.Client, _ *robot.Config) error {
		res, err := client.Send(ctx, command)
		if err != nil {
			return err
		}
		if res.Success {
			fmt.Println(successStyle.Render(res.Message))
		} else {
			fmt.Println(errorStyle.Render(res.Message))
		}
		return nil
	})
}
