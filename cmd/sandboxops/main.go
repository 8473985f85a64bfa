package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/kompox/sandboxops/adapters/drivers/provisioner/terraform"
	"github.com/kompox/sandboxops/config/sandboxenv"
	"github.com/kompox/sandboxops/internal/logging"
)

type envContextKey struct{}

func withEnv(ctx context.Context, e *sandboxenv.Env) context.Context {
	return context.WithValue(ctx, envContextKey{}, e)
}

// envFromContext returns the environment resolved in PersistentPreRunE.
func envFromContext(ctx context.Context) (*sandboxenv.Env, error) {
	if e, ok := ctx.Value(envContextKey{}).(*sandboxenv.Env); ok && e != nil {
		return e, nil
	}
	return nil, errors.New("sandbox environment not resolved")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sandboxops",
		Short:   "Sandbox infrastructure assistant",
		Long:    "Manage Terraform sandbox workspaces and talk to a local code model.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("db-url", os.Getenv("SANDBOX_DB_URL"), "Run history store (env SANDBOX_DB_URL) (memory: | sqlite:/path/to.db)")
	cmd.PersistentFlags().String("log-format", envOr("SANDBOX_LOG_FORMAT", "human"), "Log format (human|text|json) (env SANDBOX_LOG_FORMAT)")
	cmd.PersistentFlags().String("log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	cmd.PersistentFlags().String("sandbox-root", os.Getenv(sandboxenv.SandboxRootEnvKey), "Project directory (env SANDBOX_ROOT)")

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		format, _ := c.Flags().GetString("log-format")
		levelName, _ := c.Flags().GetString("log-level")
		level, err := logging.ParseLevel(levelName)
		if err != nil {
			return err
		}
		l, err := logging.NewWithWriter(format, level, c.ErrOrStderr())
		if err != nil {
			return err
		}
		ctx := logging.WithLogger(c.Context(), l.With("runId", newRunID()))

		if c.Name() != "init" && c.Name() != "version" {
			e, err := resolveEnv(c)
			if err != nil {
				return err
			}
			ctx = withEnv(ctx, e)
		}
		c.SetContext(ctx)
		return nil
	}

	cmd.AddCommand(newCmdVersion())
	cmd.AddCommand(newCmdInit())
	cmd.AddCommand(newCmdServe())
	cmd.AddCommand(newCmdCheck())
	cmd.AddCommand(newCmdWorkspace())
	cmd.AddCommand(newCmdChat())
	cmd.AddCommand(newCmdModel())
	cmd.AddCommand(newCmdCatalog())
	cmd.AddCommand(newCmdProject())
	return cmd
}

// resolveEnv resolves SANDBOX_ROOT from the flag, then lets --db-url override
// the configured store.
func resolveEnv(cmd *cobra.Command) (*sandboxenv.Env, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root := ""
	if f := findFlag(cmd, "sandbox-root"); f != nil {
		root = f.Value.String()
	}
	e, err := sandboxenv.Resolve(root, os.Getenv(sandboxenv.SandboxDirEnvKey), wd, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if f := findFlag(cmd, "db-url"); f != nil && f.Value.String() != "" {
		e.Config.Store.DBURL = f.Value.String()
	}
	return e, nil
}

func main() {
	root := newRootCmd()
	root.SetContext(context.Background())
	executed, err := root.ExecuteC()
	if err != nil {
		ctx := root.Context()
		if executed != nil {
			ctx = executed.Context()
		}
		var exitErr ExitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		logging.FromContext(ctx).Errorf(ctx, "Failed: %s", err)
		os.Exit(1)
	}
}
