package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/PabloGalante/msgboard/internal/client"
	"github.com/PabloGalante/msgboard/internal/observability"
	"github.com/PabloGalante/msgboard/internal/tui"
)

func main() {
	cmd := &cli.Command{
		Name:  "board-tui",
		Usage: "read and post to a message board from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "base URL of the message board API",
				Value:   "http://localhost:8080",
				Sources: cli.EnvVars("BOARD_API_URL"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per-request timeout",
				Value: 15 * time.Second,
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "write logs to this file instead of discarding them",
				Sources: cli.EnvVars("BOARD_TUI_LOG_FILE"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "info",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(_ context.Context, c *cli.Command) error {
	var out io.Writer = io.Discard
	if path := c.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	observability.SetOutput(out)
	if err := observability.Configure(c.String("log-level")); err != nil {
		return err
	}

	api := client.NewAPI(c.String("api-url"), nil)
	ctrl := client.NewController(api)
	m := tui.New(ctrl, tui.Options{RequestTimeout: c.Duration("timeout")})

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
