package commands

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"agroquote/quoter/internal/container"
	"agroquote/quoter/internal/queue"
)

var (
	tailConsumer string
	tailCount    int
	tailBlock    time.Duration
)

var quotesCmd = &cobra.Command{
	Use:   "quotes",
	Short: "Work with quotes handed off to the renderers",
}

var quotesTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Read handed-off quotes as a renderer consumer and acknowledge them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, app *container.Container) error {
			if app.Quotes == nil {
				return errors.New("redis is disabled")
			}

			stale, err := app.Quotes.ClaimStale(ctx, tailConsumer)
			if err != nil {
				return err
			}
			if len(stale) > 0 {
				log.Infof("🔄 Claimed %d unacknowledged quote(s)", len(stale))
			}

			seen := 0
			handle := func(msg queue.Message) error {
				if err := printQuote(cmd.OutOrStdout(), msg.Quote); err != nil {
					return err
				}
				seen++
				return app.Quotes.AckQuote(ctx, msg.ID)
			}

			for _, msg := range stale {
				if err := handle(msg); err != nil {
					return err
				}
			}

			for tailCount <= 0 || seen < tailCount {
				msg, err := app.Quotes.NextQuote(ctx, tailConsumer, tailBlock)
				if err != nil {
					return err
				}
				if msg == nil {
					if tailCount > 0 {
						return nil
					}
					continue
				}
				if err := handle(*msg); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	quotesTailCmd.Flags().StringVar(&tailConsumer, "consumer", "cli", "consumer name within the renderer group")
	quotesTailCmd.Flags().IntVarP(&tailCount, "count", "n", 1, "stop after this many quotes, 0 to follow")
	quotesTailCmd.Flags().DurationVar(&tailBlock, "block", 5*time.Second, "how long to wait for a new quote")

	quotesCmd.AddCommand(quotesTailCmd)
	rootCmd.AddCommand(quotesCmd)
}
