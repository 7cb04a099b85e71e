package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gwillem/roboarm/pkg/emulator"
	"github.com/gwillem/roboarm/pkg/robot"
)

type SimulateCommand struct {
	Listen       string `short:"l" long:"listen" default:"127.0.0.1:8080" description:"Address to serve the emulated controller on"`
	StepsPerTick int    `long:"steps-per-tick" default:"200" description:"Steps each joint travels per status query (0 moves instantly)"`
}

func (c *SimulateCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := robot.NewLogger(cfg.LogLevel)

	ctrl := emulator.NewController(emulator.Config{StepsPerTick: c.StepsPerTick})
	srv := &http.Server{
		Addr:              c.Listen,
		Handler:           emulator.Handler(ctrl, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Println(headerStyle.Render("Roboarm Simulator"))
	fmt.Printf("Serving on %s\n", successStyle.Render("http://"+c.Listen))
	fmt.Println(dimStyle.Render("Try: roboarm --url http://" + c.Listen + " status"))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	fmt.Println("Simulator stopped.")
	return nil
}
