package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloo-solutions/kbrelay/internal/config"
	"github.com/cloo-solutions/kbrelay/internal/database"
	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/cloo-solutions/kbrelay/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func KBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect knowledge bases",
		Long:  "Inspect and purge knowledge base data directly in the database",
	}

	cmd.AddCommand(KBStatsCmd())
	cmd.AddCommand(KBPurgeCmd())

	return cmd
}

// KBStats summarizes what the database holds for one knowledge base.
type KBStats struct {
	Name   string   `json:"kb_name"`
	Chunks int64    `json:"chunks"`
	Runs   []string `json:"runs"`
	// LastActive is when the current run last received messages.
	LastActive *time.Time `json:"last_active,omitempty"`
}

func KBStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <name>",
		Short: "Show chunk and run counts",
		Long:  "Show how many chunks are indexed for a knowledge base and which runs exist, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runKBStats(cmd.Context(), args[0], outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runKBStats(ctx context.Context, name, outputFormat string) error {
	if err := domain.ValidateKBName(name); err != nil {
		return err
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	stats, err := collectKBStats(ctx, pool, name)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	fmt.Printf("Knowledge base: %s\n", stats.Name)
	fmt.Printf("  chunks: %d\n", stats.Chunks)
	if len(stats.Runs) == 0 {
		fmt.Println("  runs:   none")
		return nil
	}
	fmt.Printf("  runs:   %d (current: %s, last active %s)\n",
		len(stats.Runs), stats.Runs[0], stats.LastActive.Format(time.RFC3339))
	return nil
}

func collectKBStats(ctx context.Context, pool *pgxpool.Pool, name string) (KBStats, error) {
	chunks, err := repository.NewKnowledgeChunkRepository(pool).CountByKB(ctx, name)
	if err != nil {
		return KBStats{}, fmt.Errorf("failed to count chunks: %w", err)
	}
	runRepo := repository.NewRunRepository(pool)
	runs, err := runRepo.ListIDsByUser(ctx, name)
	if err != nil {
		return KBStats{}, fmt.Errorf("failed to list runs: %w", err)
	}

	stats := KBStats{Name: name, Chunks: chunks, Runs: runs}
	if len(runs) > 0 {
		current, err := runRepo.GetByID(ctx, runs[0])
		if err != nil {
			return KBStats{}, fmt.Errorf("failed to load run %s: %w", runs[0], err)
		}
		stats.LastActive = &current.UpdatedAt
	}
	return stats, nil
}

func KBPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge <name>",
		Short: "Delete indexed chunks",
		Long:  "Delete every indexed chunk of a knowledge base. Uploaded files and runs are left alone.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := domain.ValidateKBName(args[0]); err != nil {
				return err
			}

			pool, err := getDBPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := repository.NewKnowledgeChunkRepository(pool).DeleteByKB(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to purge chunks: %w", err)
			}
			fmt.Printf("Deleted %d chunks from %s\n", n, args[0])
			return nil
		},
	}

	return cmd
}

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			source, _ := cmd.Flags().GetString("migrations")
			return database.Migrate(cfg.DatabaseURL, source)
		},
	}

	cmd.Flags().String("migrations", database.DefaultMigrationsSource, "Migrations source URL")

	return cmd
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: 2})
}
