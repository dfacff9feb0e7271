package main

import (
	"context"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"evidence-rag/internal/chatclient"
	"evidence-rag/internal/helper"
	"evidence-rag/internal/tui"
)

func main() {
	cmd := &cli.Command{
		Name:  "coldcase-chat",
		Usage: "terminal chat with a running Cold Case Detective server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "server base URL",
				Value: "http://localhost:3000",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "request timeout",
				Value: 2 * time.Minute,
			},
			&cli.StringFlag{
				Name:  "log",
				Usage: "log file (the terminal is owned by the chat UI)",
				Value: "coldcase-chat.log",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f, err := os.OpenFile(cmd.String("log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return err
			}
			defer f.Close()
			helper.SetupLoggerTo(f, "info", "json")

			client := chatclient.New(cmd.String("url"), cmd.Duration("timeout"))
			_, err = tea.NewProgram(tui.New(client), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("Chat failed")
	}
}
