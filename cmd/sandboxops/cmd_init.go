package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kompox/sandboxops/config/sandboxenv"
)

func newCmdInit() *cobra.Command {
	var forceFlag bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a sandbox project directory",
		Long: `Initialize a sandbox project by creating .sandbox/config.yml with the default
configuration in the current directory (or --sandbox-root when given).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, forceFlag)
		},
	}
	cmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Overwrite existing .sandbox/config.yml")
	return cmd
}

func runInit(cmd *cobra.Command, forceFlag bool) error {
	dir := ""
	if f := findFlag(cmd, "sandbox-root"); f != nil {
		dir = f.Value.String()
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %q: %w", dir, err)
	}

	cfgDir := filepath.Join(dir, sandboxenv.SandboxDirName)
	configPath := filepath.Join(cfgDir, sandboxenv.ConfigFileName)
	if !forceFlag {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists (use -f to overwrite)", configPath)
		}
	}
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("creating %s directory: %w", cfgDir, err)
	}

	data, err := sandboxenv.InitialConfigYAML()
	if err != nil {
		return fmt.Errorf("generating default config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized sandbox project in %s\n", dir)
	fmt.Fprintf(out, "Created:\n  - %s\n", configPath)
	return nil
}
