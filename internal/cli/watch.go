package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"usos/internal/notify"
)

// ErrNoBroker is returned by commands that need AMQP_URL
var ErrNoBroker = errors.New("AMQP_URL is not configured")

// NewWatchCommand creates the watch command.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	var binding, queue string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print change events from the broker",
		Long: `Consume change events from the AMQP exchange and print one line per event
until interrupted. Routing keys look like family.<id>.<entity>.<action>.

Examples:
  usos-admin watch
  usos-admin watch --binding 'family.*.expense.#'
  usos-admin watch --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if a.AMQP == nil {
				return WrapExitError(ExitCommandError, "cannot watch events", ErrNoBroker)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			handler := printEvent(cmd, opts.Format)
			if err := a.AMQP.Consume(ctx, queue, binding, handler); err != nil {
				return WrapExitError(ExitCommandError, "event consumption stopped", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&binding, "binding", "family.#", "routing key pattern to bind")
	cmd.Flags().StringVar(&queue, "queue", "", "durable queue name (default: a private queue)")
	return cmd
}

func printEvent(cmd *cobra.Command, format string) func(context.Context, notify.Event) error {
	return func(_ context.Context, e notify.Event) error {
		if format == "json" {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(e)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %-40s %s\n",
			e.OccurredAt.Format(time.RFC3339), e.RoutingKey(), e.EntityID)
		return err
	}
}
