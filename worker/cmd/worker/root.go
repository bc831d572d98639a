package main

import (
	"github.com/spf13/cobra"
)

type globalOptions struct {
	remover string
	device  string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "bgremover",
		Short:         "Remove image backgrounds in batches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.remover, "remover", "", "remover backend (local or http), overrides REMOVER")
	cmd.PersistentFlags().StringVar(&opts.device, "device", "", "inference device (gpu or cpu), overrides REMOVER_DEVICE")

	cmd.AddCommand(newRunCommand(opts))
	return cmd
}
