package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ent0n29/nova-relay/internal/app"
	"github.com/ent0n29/nova-relay/internal/bot"
)

type messageHandler interface {
	HandleMessage(ctx context.Context, msg bot.Message) (bot.Reply, error)
}

func newChatCmd() *cobra.Command {
	var (
		userID string
		name   string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the relay from the terminal",
		Long:  "Reads one message per line from stdin and prints each reply, as if sent in a direct message.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := loadRuntime()
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := app.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer res.Cleanup()

			return runChat(ctx, res.Handler, cmd.InOrStdin(), cmd.OutOrStdout(), userID, name, cfg.BotName)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "local", "User id the messages are attributed to")
	cmd.Flags().StringVar(&name, "name", "you", "Author name shown in transcripts")
	return cmd
}

func runChat(ctx context.Context, h messageHandler, in io.Reader, out io.Writer, userID, name, botName string) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		reply, err := h.HandleMessage(ctx, bot.Message{
			UserID:  userID,
			Author:  name,
			Content: scanner.Text(),
			Direct:  true,
		})
		if err != nil {
			return err
		}
		if reply.Ignored {
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", botName, reply.Text)
	}
	return scanner.Err()
}
