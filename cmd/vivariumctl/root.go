package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "vivariumctl",
		Short:         "Manage vivarium facilities and buildings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to a YAML configuration file")
	flags.StringVarP(&a.output, "output", "o", outputYAML, "output format: yaml or json")
	flags.BoolVar(&a.trace, "trace", false, "write JSON trace spans for manager operations to stderr")

	root.AddCommand(
		newFacilityCommand(a),
		newBuildingCommand(a),
		newStatsCommand(a),
		newExportCommand(a),
		newAuthCommand(a),
		newConfigCommand(a),
	)
	return root
}
