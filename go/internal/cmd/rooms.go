package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/lobby"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/models"
	"github.com/spf13/cobra"
)

func newRoomsCmd() *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List joinable rooms on a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			rooms, err := lobby.NewClient(nil, server).ListRooms(ctx)
			if err != nil {
				return fmt.Errorf("list rooms: %w", err)
			}
			printRooms(cmd.OutOrStdout(), rooms)
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", envOrDefault("SWIFTROYALE_SERVER", "http://localhost:8080"), "server URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

func printRooms(w io.Writer, rooms []models.RoomSummary) {
	if len(rooms) == 0 {
		fmt.Fprintln(w, "no joinable rooms")
		return
	}

	fmt.Fprintf(w, "%-8s %-24s %8s %-10s\n", "ROOM", "HOST", "PLAYERS", "STATUS")
	for _, r := range rooms {
		fmt.Fprintf(w, "%-8s %-24s %8d %-10s\n", r.ID, r.Host, r.Players, r.Status)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
