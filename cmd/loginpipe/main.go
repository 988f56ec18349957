package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leshachaplin/loginpipe/app"
	"github.com/leshachaplin/loginpipe/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "loginpipe",
		Short:        "Drain login events from the queue into the analytics store",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline until the queue is empty",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(func() (config.Config, error) {
				return config.Load(configPath)
			})
			if err != nil {
				return err
			}
			return a.Start()
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
