// apyctl queries AAVE lending rates from the command line.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/core/logx"

	"apyscope/internal/config"
	"apyscope/internal/svc"
)

type app struct {
	configFile string
	verbose    bool

	cfg    *config.Config
	svcCtx *svc.ServiceContext
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "apyctl",
		Short:         "Daily AAVE lending rates from Messari subgraphs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&a.configFile, "config", "f", "", "config file path (default: "+config.DefaultFile+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log pipeline activity")

	root.AddCommand(
		a.sourcesCmd(),
		a.marketsCmd(),
		a.ratesCmd(),
		a.warmCmd(),
	)
	return root
}

func (a *app) load() error {
	if a.verbose {
		logx.SetLevel(logx.InfoLevel)
	} else {
		logx.SetLevel(logx.ErrorLevel)
	}
	logx.DisableStat()

	path := a.configFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg
	a.svcCtx = svc.NewServiceContext(*cfg)
	return nil
}
