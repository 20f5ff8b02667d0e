package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sqlvalley/internal/app"
	"github.com/felixgeelhaar/sqlvalley/internal/config"
	"github.com/felixgeelhaar/sqlvalley/internal/events"
)

func newEventsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events [pattern]",
		Short: "Follow events published by other sessions",
		Long: `Print events from the configured AMQP exchange as they arrive.
The optional pattern is a topic binding such as "exercise.*" or "#".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Events.AMQPURL == "" {
				return errors.New("no AMQP URL configured (set amqp_url in secrets.yaml or SQLVALLEY_AMQP_URL)")
			}
			logger, closer, err := app.NewLogger(cfg, cmd.ErrOrStderr(), opts.verbose)
			if err != nil {
				return err
			}
			defer closer.Close()

			conn, err := events.Dial(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			out := cmd.OutOrStdout()
			err = events.NewFollower(conn, pattern, logger).Run(cmd.Context(), func(_ context.Context, env events.Envelope) error {
				dimColor.Fprintf(out, "%s ", env.OccurredAt.Format("15:04:05"))
				titleColor.Fprintf(out, "%-22s", env.Type)
				fmt.Fprintf(out, " %s\n", env.Payload)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
