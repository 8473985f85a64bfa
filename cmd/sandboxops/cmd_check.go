package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kompox/sandboxops/internal/logging"
	"github.com/kompox/sandboxops/usecase/inference"
)

const checkTimeout = 15 * time.Second

func newCmdCheck() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the provisioner, workspace directory and inference server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			e, err := envFromContext(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "check", e.SandboxRoot)
			defer func() { cleanup(err) }()
			ctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			w := cmd.OutOrStdout()
			failed := 0

			if e.Found {
				checkLine(w, "config", "ok", e.SandboxDir)
			} else {
				checkLine(w, "config", "warn", "no .sandbox/config.yml, using defaults "+dimStyle.Render("(run sandboxops init)"))
			}

			prov, err := buildProvisioner(e)
			if err != nil {
				return err
			}
			if v, verr := prov.Version(ctx); verr != nil {
				failed++
				checkLine(w, prov.ID(), "fail", verr.Error())
			} else {
				checkLine(w, prov.ID(), "ok", v)
			}

			dir := e.WorkspaceDir()
			if derr := checkWritableDir(dir); derr != nil {
				failed++
				checkLine(w, "workspaces", "fail", derr.Error())
			} else {
				checkLine(w, "workspaces", "ok", dir)
			}

			if src := e.ExpandVars(e.Config.Provisioner.ModuleSource); isLocalSource(src) {
				// Sources are resolved from inside a workspace directory.
				abs := src
				if !filepath.IsAbs(src) {
					abs = filepath.Join(dir, "workspace", src)
				}
				if _, serr := os.Stat(abs); serr != nil {
					checkLine(w, "module", "warn", fmt.Sprintf("%s not found", filepath.Clean(abs)))
				} else {
					checkLine(w, "module", "ok", filepath.Clean(abs))
				}
			}

			uc, err := buildInferenceUseCase(cmd)
			if err != nil {
				return err
			}
			st, serr := uc.Status(ctx)
			switch {
			case serr != nil:
				failed++
				checkLine(w, "inference", "fail", serr.Error())
			case st.Status == inference.StatusOK:
				checkLine(w, "inference", "ok", fmt.Sprintf("%s %s (%s)", st.URL, st.Version, st.Model))
			case st.Status == inference.StatusError:
				failed++
				checkLine(w, "inference", "fail", fmt.Sprintf("%s: %s", st.URL, st.Error))
			default:
				checkLine(w, "inference", "warn", fmt.Sprintf("%s: model %s is %s", st.URL, st.Model, st.Status))
			}

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			logging.FromContext(ctx).Debug(ctx, "all checks passed")
			return nil
		},
	}
}

func isLocalSource(src string) bool {
	return strings.HasPrefix(src, "./") || strings.HasPrefix(src, "../") || filepath.IsAbs(src)
}

// checkWritableDir creates dir if needed and verifies a file can be written in it.
func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	return errors.Join(f.Close(), os.Remove(name))
}
