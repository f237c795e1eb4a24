package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var fetchSOUserID int

var fetchCmd = &cobra.Command{
	Use:   "fetch <github-username>",
	Short: "Fetch a developer profile into the graph",
	Long: `Fetch a GitHub user and their repositories, optionally link a
StackOverflow account, run LLM profile analysis when configured, and
write everything into the graph store. Prints the enriched profile as
JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().IntVar(&fetchSOUserID, "so-user-id", 0, "StackOverflow user id to link")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	application, err := newApp(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer application.Close()

	profile, err := application.enricher.EnrichProfile(ctx, args[0], fetchSOUserID)
	if err != nil {
		return fmt.Errorf("enrich %s: %w", args[0], err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(profile); err != nil {
		return err
	}

	for _, e := range profile.Errors {
		logger.Warn(e)
	}
	return nil
}
