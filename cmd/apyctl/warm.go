package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/core/logx"

	"apyscope/internal/pipeline"
	"apyscope/pkg/apy"
)

const (
	defaultWarmInterval = time.Hour
	warmTimeout         = 5 * time.Minute
)

func (a *app) warmCmd() *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Keep the shared cache and archive filled for the default selection",
		Long: `Refresh the catalog of every configured source and the rates of the
default markets on a schedule. Useful with a Redis cache shared by several API
instances, or to grow the Postgres archive. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sel := apy.Selection{
				Sources: a.svcCtx.SourcesConfig.Defaults.Sources,
				Markets: a.svcCtx.SourcesConfig.Defaults.Markets,
			}
			if once {
				return warm(ctx, a.svcCtx.Pipeline, a.svcCtx.Pipeline.Sources(), sel)
			}
			runWarmer(ctx, interval, func(ctx context.Context) {
				if err := warm(ctx, a.svcCtx.Pipeline, a.svcCtx.Pipeline.Sources(), sel); err != nil {
					logx.WithContext(ctx).Errorf("warm: %v", err)
				}
			})
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", defaultWarmInterval, "refresh interval")
	cmd.Flags().BoolVar(&once, "once", false, "refresh once and exit")
	return cmd
}

// runWarmer calls tick immediately and then on every interval until ctx is done.
func runWarmer(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	if interval <= 0 {
		interval = defaultWarmInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logx.Info("warm: stopping")
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func warm(parent context.Context, p *pipeline.Pipeline, sources []string, sel apy.Selection) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	ctx, cancel := context.WithTimeout(parent, warmTimeout)
	defer cancel()

	start := time.Now()
	markets, err := p.Catalog(ctx, sources)
	if err != nil {
		return err
	}
	table, err := p.Rates(ctx, sel)
	if err != nil {
		return err
	}
	logx.WithContext(ctx).WithDuration(time.Since(start)).Infof("warm: %d markets, %d rate rows", len(markets), table.Len())
	return nil
}
