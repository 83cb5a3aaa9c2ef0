package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// JobOps is the queue surface the jobs commands drive.
type JobOps interface {
	Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
	Close() error
}

// Runtime supplies the behaviour behind each command.
type Runtime struct {
	Serve    func(ctx context.Context) error
	OpenJobs func() (JobOps, error)
	Seed     func(ctx context.Context, opts SeedOptions) (accounts.SeedResult, error)
}

// NewRootCommand creates the ledger command with all subcommands registered.
// Running it without a subcommand starts the HTTP server.
func NewRootCommand(rt Runtime) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Double-entry ledger service",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.Serve(cmd.Context())
		},
	}
	rootCmd.AddCommand(newServeCommand(rt), newJobsCommand(rt), newSeedCommand(rt))
	return rootCmd
}

func newServeCommand(rt Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.Serve(cmd.Context())
		},
	}
}

func newJobsCommand(rt Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage background jobs",
	}
	cmd.AddCommand(newTriggerCommand(rt), newStatsCommand(rt))
	return cmd
}

func newTriggerCommand(rt Runtime) *cobra.Command {
	var business string
	var repair bool

	cmd := &cobra.Command{
		Use:       "trigger <integrity|warmup>",
		Short:     "Enqueue a job now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"integrity", "warmup"},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := TriggerOptions{Repair: repair}
			if business != "" {
				id, err := uuid.Parse(business)
				if err != nil {
					return fmt.Errorf("parsing business id: %w", err)
				}
				opts.BusinessID = &id
			}
			ops, err := rt.OpenJobs()
			if err != nil {
				return err
			}
			defer func() { _ = ops.Close() }()

			info, err := ops.Trigger(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}

	cmd.Flags().StringVar(&business, "business", "", "limit the job to one business id")
	cmd.Flags().BoolVar(&repair, "repair", false, "rebuild entry lock flags when drift is found (integrity only)")

	return cmd
}

func newStatsCommand(rt Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show default queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := rt.OpenJobs()
			if err != nil {
				return err
			}
			defer func() { _ = ops.Close() }()

			stats, err := ops.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
			return nil
		},
	}
}
