package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/usecase/workspace"
)

func newCmdWorkspace() *cobra.Command {
	c := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage sandbox workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.AddCommand(
		newCmdWorkspaceList(),
		newCmdWorkspaceGet(),
		newCmdWorkspaceCreate(),
		newCmdWorkspaceLifecycle("init", "Run init in a workspace", func(uc *workspace.UseCase, cmd *cobra.Command, id string) (any, error) {
			return uc.Init(cmd.Context(), &workspace.InitInput{ID: id})
		}),
		newCmdWorkspaceLifecycle("plan", "Plan changes and save the plan", func(uc *workspace.UseCase, cmd *cobra.Command, id string) (any, error) {
			return uc.Plan(cmd.Context(), &workspace.PlanInput{ID: id})
		}),
		newCmdWorkspaceLifecycle("apply", "Apply the saved plan, or apply directly when none exists", func(uc *workspace.UseCase, cmd *cobra.Command, id string) (any, error) {
			return uc.Apply(cmd.Context(), &workspace.ApplyInput{ID: id})
		}),
		newCmdWorkspaceLifecycle("destroy", "Destroy all resources of a workspace", func(uc *workspace.UseCase, cmd *cobra.Command, id string) (any, error) {
			return uc.Destroy(cmd.Context(), &workspace.DestroyInput{ID: id})
		}),
		newCmdWorkspaceDelete(),
		newCmdWorkspaceVars(),
		newCmdWorkspaceRuns(),
	)
	return c
}

func newCmdWorkspaceList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := buildWorkspaceUseCase(cmd)
			if err != nil {
				return err
			}
			out, err := uc.List(cmd.Context(), &workspace.ListInput{})
			if err != nil {
				return err
			}
			return printJSON(cmd, out.Workspaces)
		},
	}
}

func newCmdWorkspaceGet() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a workspace with its outputs and state resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := buildWorkspaceUseCase(cmd)
			if err != nil {
				return err
			}
			out, err := uc.Get(cmd.Context(), &workspace.GetInput{ID: args[0]})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

// workspaceSpec is the YAML accepted by `workspace create -f`.
type workspaceSpec struct {
	WorkspaceID string          `yaml:"workspaceId"`
	SkipInit    bool            `yaml:"skipInit"`
	Variables   model.Variables `yaml:"variables"`
}

func readWorkspaceSpec(cmd *cobra.Command, path string) (*workspaceSpec, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var spec workspaceSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &spec, nil
}

// parseVars turns repeated name=value flags into variables. Values that parse
// as bool or number keep that type.
func parseVars(pairs []string) (model.Variables, error) {
	vars := model.Variables{}
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: --var %q must be name=value", model.ErrWorkspaceInvalid, p)
		}
		vars[name] = parseVarValue(value)
	}
	return vars, nil
}

func parseVarValue(s string) any {
	if s == "true" || s == "false" {
		return s == "true"
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func newCmdWorkspaceCreate() *cobra.Command {
	var (
		file     string
		id       string
		vars     []string
		skipInit bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workspace and run init",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			in := &workspace.CreateInput{Variables: model.Variables{}}
			if file != "" {
				spec, err := readWorkspaceSpec(cmd, file)
				if err != nil {
					return err
				}
				in.ID, in.SkipInit = spec.WorkspaceID, spec.SkipInit
				for k, v := range spec.Variables {
					in.Variables[k] = v
				}
			}
			if id != "" {
				in.ID = id
			}
			if skipInit {
				in.SkipInit = true
			}
			flagVars, err := parseVars(vars)
			if err != nil {
				return err
			}
			for k, v := range flagVars {
				in.Variables[k] = v
			}

			uc, err := buildWorkspaceUseCase(cmd)
			if err != nil {
				return err
			}
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "workspace.create", in.ID)
			defer func() { cleanup(err) }()

			out, err := uc.Create(ctx, in)
			if out != nil {
				if perr := printJSON(cmd, out); perr != nil && err == nil {
					return perr
				}
			}
			if err != nil {
				return lifecycleError(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Workspace spec YAML (workspaceId, skipInit, variables), - for stdin")
	cmd.Flags().StringVar(&id, "id", "", "Workspace ID (generated when empty)")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "Variable as name=value (repeatable)")
	cmd.Flags().BoolVar(&skipInit, "skip-init", false, "Do not run init")
	return cmd
}

// newCmdWorkspaceLifecycle builds a command running one provisioner operation
// on the workspace named by its argument.
func newCmdWorkspaceLifecycle(op, short string, run func(*workspace.UseCase, *cobra.Command, string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   op + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			uc, err := buildWorkspaceUseCase(cmd)
			if err != nil {
				return err
			}
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "workspace."+op, args[0])
			defer func() { cleanup(err) }()
			cmd.SetContext(ctx)

			out, err := run(uc, cmd, args[0])
			if err != nil {
				return lifecycleError(cmd, err)
			}
			return printJSON(cmd, out)
		},
	}
}

func newCmdWorkspaceDelete() *cobra.Command {
	var destroy bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a workspace directory and its run history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			uc, err := buildWorkspaceUseCase(cmd)
			if err != nil {
				return err
			}
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "workspace.delete", args[0])
			defer func() { cleanup(err) }()

			out, err := uc.Delete(ctx, &workspace.DeleteInput{ID: args[0], Destroy: destroy})
			if err != nil {
				return lifecycleError(cmd, err)
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().BoolVar(&destroy, "destroy", false, "Destroy resources before deleting")
	return cmd
}

func newCmdWorkspaceVars() *cobra.Command {
	var (
		file string
		vars []string
	)
	cmd := &cobra.Command{
		Use:   "vars <id>",
		Short: "Update workspace variables (drops a saved plan)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			in := &workspace.UpdateVariablesInput{ID: args[0], Variables: model.Variables{}}
			if file != "" {
				spec, err := readWorkspaceSpec(cmd, file)
				if err != nil {
					return err
				}
				for k, v := range spec.Variables {
					in.Variables[k] = v
				}
			}
			flagVars, err := parseVars(vars)
			if err != nil {
				return err
			}
			for k, v := range flagVars {
				in.Variables[k] = v
			}

			uc, err := buildWorkspaceUseCase(cmd)
			if err != nil {
				return err
			}
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "workspace.vars", args[0])
			defer func() { cleanup(err) }()
			out, err := uc.UpdateVariables(ctx, in)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Spec YAML whose variables are merged, - for stdin")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "Variable as name=value (repeatable)")
	return cmd
}

func newCmdWorkspaceRuns() *cobra.Command {
	return &cobra.Command{
		Use:   "runs <id>",
		Short: "Show the run history of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := buildWorkspaceUseCase(cmd)
			if err != nil {
				return err
			}
			out, err := uc.Runs(cmd.Context(), &workspace.RunsInput{ID: args[0]})
			if err != nil {
				return err
			}
			return printJSON(cmd, out.Runs)
		},
	}
}
