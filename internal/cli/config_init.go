package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agrichain/cropadvisor/internal/config"
)

// NewConfigInitCmd creates the config init command for initializing configuration.
// It writes the default configuration to $CROPADVISOR_HOME/config.yaml and a
// .gitignore that keeps caches and logs out of version control.
func NewConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a new configuration file with default values at
$CROPADVISOR_HOME/config.yaml (default ~/.cropadvisor/config.yaml), along with
the soil cache directory and a .gitignore for local data.`,
		Example: `  # Create configuration
  cropadvisor config init

  # Create configuration, overwriting existing
  cropadvisor config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return initGlobalConfig(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")

	return cmd
}

// initGlobalConfig creates the config at the home directory.
func initGlobalConfig(cmd *cobra.Command, force bool) error {
	cfg := config.New()

	// Check if config already exists and force isn't set
	if !force {
		if _, err := os.Stat(cfg.ConfigPath()); err == nil {
			return errors.New("configuration file already exists, use --force to overwrite")
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("cannot access config path %s: %w", cfg.ConfigPath(), err)
		}
	}

	if err := config.EnsureHomeDir(); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	if err := os.MkdirAll(cfg.Sources.CacheDir, 0o750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	created, err := config.EnsureGitignore(filepath.Dir(cfg.ConfigPath()))
	if err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}

	cmd.Printf("Configuration initialized successfully\n")
	cmd.Printf("Configuration file: %s\n", cfg.ConfigPath())
	if created {
		cmd.Printf("Created .gitignore to keep caches and logs out of version control\n")
	}

	return nil
}
