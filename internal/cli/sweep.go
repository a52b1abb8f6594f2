package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"exam-session-service/internal/config"
	"exam-session-service/internal/infra/postgres"
	"github.com/spf13/cobra"
)

// NewSweepCmd runs a one-shot sweep of abandoned attempts, for operators
// and cron jobs.
func NewSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete unfinished attempts whose deadline has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), *configPath)
		},
	}
}

func runSweep(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := openBun(cfg.Postgres.URL)
	defer db.Close()

	removed, err := postgres.NewAttemptStore(db).SweepExpired(ctx, time.Now())
	if err != nil {
		return err
	}
	log.Printf("swept %d abandoned attempts", removed)
	return nil
}
