package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/afroash/solardash/internal/client"
	"github.com/afroash/solardash/internal/models"
)

var followURL string

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Print the reload notifications of a running dashboard",
	Long: `Connects to /ws/updates of a running solardash server and prints every
notification it pushes, reconnecting when the server restarts. Useful to check
that file changes and cache resets reach open dashboards.`,
	RunE: runFollow,
}

func init() {
	followCmd.Flags().StringVar(&followURL, "url", "", "websocket URL (default ws://<server.host>:<server.port>/ws/updates)")
	rootCmd.AddCommand(followCmd)
}

func runFollow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	url := followURL
	if url == "" {
		url = "ws://" + cfg.Addr() + "/ws/updates"
	}

	w := cmd.OutOrStdout()
	conn := client.NewConnection(client.ConnectionConfig{
		URL:                  url,
		ReconnectInterval:    time.Second,
		MaxReconnectInterval: 30 * time.Second,
	}, func(msg models.Message) {
		switch msg.Type {
		case models.MessageTypeHello:
			var hello models.HelloMessage
			if err := msg.UnmarshalPayload(&hello); err == nil {
				fmt.Fprintf(w, "%s connected to solardash %s (%s)\n",
					msg.Timestamp.Format(time.RFC3339), hello.Version, hello.Source)
			}
		case models.MessageTypeReload:
			var reload models.ReloadMessage
			if err := msg.UnmarshalPayload(&reload); err == nil {
				fmt.Fprintf(w, "%s reload: %s\n", msg.Timestamp.Format(time.RFC3339), reload.Reason)
			}
		default:
			fmt.Fprintf(w, "%s %s: %s\n", msg.Timestamp.Format(time.RFC3339), msg.Type, msg.Payload)
		}
	}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := conn.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := conn.Stats()
	fmt.Fprintf(w, "%d connects, %d reloads\n", stats.Connects, stats.Reloads)
	return nil
}
