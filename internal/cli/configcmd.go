package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/intervai-dev/intervai/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		home, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# home: %s\n", home)
		fmt.Fprintf(out, "# api key: %s\n", maskKey(cfg.APIKey))
		_, err = out.Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.yaml",
	RunE: func(cmd *cobra.Command, _ []string) error {
		home := homeFlag
		if home == "" {
			h, err := config.HomeDir()
			if err != nil {
				return err
			}
			home = h
		}

		path := filepath.Join(home, "config.yaml")
		if _, err := os.Stat(path); err == nil && !configForce {
			if !confirm(bufio.NewReader(os.Stdin), cmd.OutOrStdout(), path+" exists. Overwrite? [y/N] ") {
				return errors.New("aborted")
			}
		}

		if err := config.WriteConfig(home, config.DefaultConfig()); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing config")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// maskKey hides all but the last four characters of key.
func maskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 4:
		return "****"
	default:
		return "****" + key[len(key)-4:]
	}
}
