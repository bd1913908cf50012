package main

import (
	"github.com/spf13/cobra"

	"mini-thrift/config"
	"mini-thrift/log"
)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "mini-thrift",
		Short: "Serve and call the SharedService example over the binary protocol",
		Long: `mini-thrift runs the example SharedService behind the binary protocol and
calls it through a registry-aware, load-balanced client.

Settings come from --config, then MINI_THRIFT_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			_, err = log.Init(cfg.Log)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = log.Sync()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (yaml or json)")

	root.AddCommand(newServeCmd(a), newCallCmd(a), newVersionCmd())
	return root
}
