package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kompox/sandboxops/usecase/inference"
)

func newCmdModel() *cobra.Command {
	c := &cobra.Command{
		Use:   "model",
		Short: "Inspect and download the code model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.AddCommand(newCmdModelStatus(), newCmdModelPull(), newCmdModelWait(), newCmdModelReset(), newCmdModelDebug())
	return c
}

func statusBadge(status string) string {
	switch status {
	case inference.StatusOK:
		return okStyle.Render(status)
	case inference.StatusError:
		return failStyle.Render(status)
	default:
		return warnStyle.Render(status)
	}
}

func newCmdModelStatus() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the inference server is up and the model is installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := buildInferenceUseCase(cmd)
			if err != nil {
				return err
			}
			st, err := uc.Status(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, st)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s %s\n", labelStyle.Render("status"), statusBadge(st.Status))
			fmt.Fprintf(w, "%s %s\n", labelStyle.Render("server"), st.URL)
			if st.Version != "" {
				fmt.Fprintf(w, "%s %s\n", labelStyle.Render("version"), st.Version)
			}
			fmt.Fprintf(w, "%s %s (installed: %t)\n", labelStyle.Render("model"), st.Model, st.ModelAvailable)
			for _, m := range st.Models {
				fmt.Fprintf(w, "%s %s\n", labelStyle.Render(""), dimStyle.Render(m))
			}
			if st.Error != "" {
				fmt.Fprintf(w, "%s %s\n", labelStyle.Render("error"), failStyle.Render(st.Error))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of the summary")
	return cmd
}

// progressLine renders a download progress line with human-readable sizes.
func progressLine(p *inference.Progress) string {
	line := fmt.Sprintf("%3d%% %s", p.Percent, p.Status)
	if p.Total > 0 {
		line += fmt.Sprintf(" (%s / %s)", humanize.Bytes(uint64(p.Completed)), humanize.Bytes(uint64(p.Total)))
	}
	return line
}

func newCmdModelPull() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "pull [model]",
		Short: "Download a model and follow its progress",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			uc, err := buildInferenceUseCase(cmd)
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "model.pull", name)
			defer func() { cleanup(err) }()
			defer uc.Shutdown(context.WithoutCancel(ctx))

			started, err := uc.Pull(ctx, &inference.PullInput{Model: name})
			if err != nil {
				return err
			}
			name = started.Progress.Model

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			last := ""
			for {
				p, err := uc.Progress(ctx, &inference.ProgressInput{Model: name})
				if err != nil {
					return err
				}
				if line := progressLine(p); line != last {
					fmt.Fprintln(cmd.ErrOrStderr(), line)
					last = line
				}
				if !p.Active() {
					if p.State == inference.PullFailed {
						return errors.New(p.Error)
					}
					return printJSON(cmd, p)
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Progress refresh interval")
	return cmd
}

func newCmdModelWait() *cobra.Command {
	var (
		attempts int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Poll until the model is ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			uc, err := buildInferenceUseCase(cmd)
			if err != nil {
				return err
			}
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "model.wait", uc.Options.Model)
			defer func() { cleanup(err) }()

			out, err := uc.Wait(ctx, &inference.WaitInput{
				MaxAttempts: attempts,
				Interval:    interval,
				OnStatus: func(st *inference.StatusOutput) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", statusBadge(st.Status), st.Model)
				},
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().IntVar(&attempts, "attempts", 30, "Maximum status polls")
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "Delay between polls")
	return cmd
}

func newCmdModelReset() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [model]",
		Short: "Forget the tracked download of a model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := buildInferenceUseCase(cmd)
			if err != nil {
				return err
			}
			in := &inference.ResetDownloadInput{}
			if len(args) == 1 {
				in.Model = args[0]
			}
			out, err := uc.ResetDownload(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func newCmdModelDebug() *cobra.Command {
	return &cobra.Command{
		Use:   "debug",
		Short: "Query the inference server bypassing the status cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := buildInferenceUseCase(cmd)
			if err != nil {
				return err
			}
			out, err := uc.Debug(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}
