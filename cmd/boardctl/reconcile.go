package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"taskboard/internal/reconcile"
	"taskboard/internal/repository"
	"taskboard/pkg/outbox"
)

func reconcileCmd() *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Finish interrupted project deletes and purge orphan tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			var outboxRepo *outbox.Repository
			if e.cfg.MQ.Enabled {
				outboxRepo = outbox.NewRepository(e.pool)
			}
			projects := repository.NewProjectRepository(e.pool, outboxRepo, e.log)
			tasks := repository.NewTaskRepository(e.pool)

			if !cmd.Flags().Changed("grace") {
				grace = e.cfg.Reconcile.Grace()
			}
			res, err := reconcile.NewReconciler(projects, tasks, e.log).WithGrace(grace).Sweep(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "projects purged: %d\ntasks purged: %d\norphan tasks purged: %d\n",
				res.Projects, res.Tasks, res.OrphanTasks)
			if res.FailedPurges > 0 {
				return fmt.Errorf("%d project purges failed", res.FailedPurges)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&grace, "grace", time.Minute, "only purge projects tombstoned longer ago than this")
	return cmd
}
