package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/uplink-switcher/internal/infrastructure/config"
)

// newRootCmd builds the command tree. A bare invocation behaves like "run".
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "uplinkswitcher",
		Short:         "Automatic OBS scene switching driven by stream server health",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(),
		"path to the YAML configuration file (env UPLINK_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Start every session and the status API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Load the configuration and report problems",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load(configPath)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "configuration ok: %s\n", configPath)
				for _, s := range cfg.Sessions {
					fmt.Fprintf(out, "  session %s: %d stream server(s), obs %s:%d\n",
						s.User, len(s.Switcher.StreamServers), s.Software.Host, s.Software.Port)
					for _, srv := range s.Switcher.StreamServers {
						fmt.Fprintf(out, "    %d. %s (%s) enabled=%t\n", srv.Priority, srv.Name, srv.Type, srv.Enabled)
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "uplinkswitcher %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)
	return root
}
