package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"taskboard/pkg/mq"
	"taskboard/pkg/outbox"
)

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and replay outbox events",
	}
	cmd.AddCommand(replayCmd())
	cmd.AddCommand(replayFailedCmd())
	return cmd
}

func replayCmd() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Publish one outbox event again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id <= 0 {
				return errors.New("--id is required")
			}
			return withReplay(cmd, func(svc *outbox.ReplayService) error {
				if err := svc.ReplayEvent(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "event %d replayed\n", id)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "outbox event id")
	return cmd
}

func replayFailedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "replay-failed",
		Short: "Publish failed outbox events again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReplay(cmd, func(svc *outbox.ReplayService) error {
				n, err := svc.ReplayFailedEvents(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d events replayed\n", n)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum events to replay")
	return cmd
}

func withReplay(cmd *cobra.Command, fn func(*outbox.ReplayService) error) error {
	e, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	if e.cfg.MQ.URL == "" {
		return errors.New("mq.url is not configured")
	}
	pub, err := mq.NewPublisher(e.cfg.MQ.URL)
	if err != nil {
		return fmt.Errorf("connect mq: %w", err)
	}
	defer pub.Close()

	return fn(outbox.NewReplayService(outbox.NewRepository(e.pool), pub, e.log))
}
