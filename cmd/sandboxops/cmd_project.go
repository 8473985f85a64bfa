package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kompox/sandboxops/usecase/project"
)

func newCmdProject() *cobra.Command {
	c := &cobra.Command{
		Use:     "project",
		Aliases: []string{"proj"},
		Short:   "Manage uploaded projects used as chat and analysis context",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.AddCommand(
		newCmdProjectUpload(),
		newCmdProjectList(),
		newCmdProjectGet(),
		newCmdProjectFiles(),
		newCmdProjectCat(),
		newCmdProjectPut(),
		newCmdProjectRm(),
		newCmdProjectChanges(),
		newCmdProjectAnalyze(),
		newCmdProjectDelete(),
		newCmdProjectCleanup(),
	)
	return c
}

func newCmdProjectUpload() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file or archive as a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			uc, err := buildProjectUseCase(cmd)
			if err != nil {
				return err
			}
			var body io.Reader
			filename := name
			if args[0] == "-" {
				if filename == "" {
					return fmt.Errorf("--name is required when reading stdin")
				}
				body = cmd.InOrStdin()
			} else {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				body = f
				if filename == "" {
					filename = filepath.Base(args[0])
				}
			}
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "project.upload", filename)
			defer func() { cleanup(err) }()

			out, err := uc.Upload(ctx, &project.UploadInput{Filename: filename, Body: body})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Filename to record (defaults to the base name of <file>)")
	return cmd
}

func newCmdProjectList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded projects, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := buildProjectUseCase(cmd)
			if err != nil {
				return err
			}
			out, err := uc.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, out.Projects)
		},
	}
}

func newCmdProjectGet() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a project with its structure analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := buildProjectUseCase(cmd)
			if err != nil {
				return err
			}
			out, err := uc.Get(cmd.Context(), &project.GetInput{ID: args[0]})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func newCmdProjectFiles() *cobra.Command {
	return &cobra.Command{
		Use:   "files <id>",
		Short: "Show the file tree of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := buildProjectUseCase(cmd)
			if err != nil {
				return err
			}
			out, err := uc.Files(cmd.Context(), &project.FilesInput{ID: args[0]})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func newCmdProjectCat() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "cat <id> <path>",
		Short: "Print a project file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := buildProjectUseCase(cmd)
			if err != nil {
				return err
			}
			out, err := uc.ReadFile(cmd.Context(), &project.ReadFileInput{ID: args[0], Path: args[1]})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, out)
			}
			if out.File.Error != "" {
				return fmt.Errorf("%s: %s", args[1], out.File.Error)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out.File.Content)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the file info as JSON")
	return cmd
}

func newCmdProjectPut() *cobra.Command {
	var (
		file   string
		create bool
		dir    bool
	)
	cmd := &cobra.Command{
		Use:   "put <id> <path>",
		Short: "Write a project file from -f or stdin and record the change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			uc, err := buildProjectUseCase(cmd)
			if err != nil {
				return err
			}
			var content []byte
			if !dir {
				content, err = readInput(cmd, file)
				if err != nil {
					return err
				}
			}
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "project.put", args[0])
			defer func() { cleanup(err) }()

			var out any
			if create || dir {
				out, err = uc.CreateFile(ctx, &project.CreateFileInput{ID: args[0], Path: args[1], Content: string(content), IsDirectory: dir})
			} else {
				out, err = uc.WriteFile(ctx, &project.WriteFileInput{ID: args[0], Path: args[1], Content: string(content)})
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Content source, - for stdin")
	cmd.Flags().BoolVar(&create, "create", false, "Fail when the path already exists")
	cmd.Flags().BoolVar(&dir, "dir", false, "Create a directory instead of a file")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func newCmdProjectRm() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id> <path>",
		Short: "Delete a project file or directory and record the change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			uc, err := buildProjectUseCase(cmd)
			if err != nil {
				return err
			}
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "project.rm", args[0])
			defer func() { cleanup(err) }()
			out, err := uc.DeleteFile(ctx, &project.DeleteFileInput{ID: args[0], Path: args[1]})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func newCmdProjectChanges() *cobra.Command {
	var (
		limit        int
		clearHistory bool
	)
	cmd := &cobra.Command{
		Use:   "changes <id>",
		Short: "Show or clear the change history of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := buildProjectUseCase(cmd)
			if err != nil {
				return err
			}
			if clearHistory {
				return uc.ClearChanges(cmd.Context(), &project.ClearChangesInput{ID: args[0]})
			}
			out, err := uc.Changes(cmd.Context(), &project.ChangesInput{ID: args[0], Limit: limit})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of changes to show (default 50)")
	cmd.Flags().BoolVar(&clearHistory, "clear", false, "Clear the history instead of showing it")
	return cmd
}

func newCmdProjectAnalyze() *cobra.Command {
	var (
		kind      string
		files     []string
		modelName string
		dryRun    bool
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <id>",
		Short: "Ask the code model to review a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			uc, err := buildProjectUseCase(cmd)
			if err != nil {
				return err
			}
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "project.analyze", args[0])
			defer func() { cleanup(err) }()

			out, err := uc.Analyze(ctx, &project.AnalyzeInput{
				ProjectID:    args[0],
				AnalysisType: kind,
				Files:        files,
				Model:        modelName,
				DryRun:       dryRun,
			})
			if err != nil {
				return err
			}
			switch {
			case asJSON:
				return printJSON(cmd, out)
			case dryRun:
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(out.Prompt))
			default:
				fmt.Fprintln(cmd.OutOrStdout(), out.Response)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "type", project.AnalysisGeneral, "Analysis type: general, security, structure or dependencies")
	cmd.Flags().StringArrayVar(&files, "file", nil, "Project file whose content is included (repeatable, up to 10)")
	cmd.Flags().StringVar(&modelName, "model", "", "Model to use instead of the configured one")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the prompt without calling the model")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	return cmd
}

func newCmdProjectDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project with its files and change history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			uc, err := buildProjectUseCase(cmd)
			if err != nil {
				return err
			}
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "project.delete", args[0])
			defer func() { cleanup(err) }()
			return uc.Delete(ctx, &project.DeleteInput{ID: args[0]})
		},
	}
}

func newCmdProjectCleanup() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove projects older than projects.retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			uc, err := buildProjectUseCase(cmd)
			if err != nil {
				return err
			}
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "project.cleanup", "")
			defer func() { cleanup(err) }()
			out, err := uc.CleanupStale(ctx)
			if out != nil {
				if perr := printJSON(cmd, out.Removed); perr != nil && err == nil {
					return perr
				}
			}
			return err
		},
	}
}
