package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wondertwin-ai/subtrack/internal/config"
)

func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Print the effective configuration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSession: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cfg.AuthSecret != "" {
				cfg.AuthSecret = "********"
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	save := &cobra.Command{
		Use:         "save",
		Short:       "Write the effective configuration to the config file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSession: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				path = config.Path()
			}
			if err := config.Save(path, a.cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	envCmd := &cobra.Command{
		Use:         "env",
		Short:       "List the environment variables that override the config file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSession: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			config.Usage(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(save, envCmd)
	return cmd
}
