package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kompox/sandboxops/domain/model"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	labelStyle = lipgloss.NewStyle().Width(14)
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// checkLine renders one "label  STATE  detail" row.
func checkLine(w io.Writer, label string, state string, detail string) {
	var badge string
	switch state {
	case "ok":
		badge = okStyle.Render("OK  ")
	case "warn":
		badge = warnStyle.Render("WARN")
	default:
		badge = failStyle.Render("FAIL")
	}
	fmt.Fprintf(w, "%s %s %s\n", labelStyle.Render(label), badge, detail)
}

// lifecycleError prints the captured output of a failed provisioner run to
// stderr and converts it into the binary's exit code.
func lifecycleError(cmd *cobra.Command, err error) error {
	var cmdErr *model.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Result == nil {
		return err
	}
	w := cmd.ErrOrStderr()
	if s := cmdErr.Result.Stdout; s != "" {
		fmt.Fprintln(w, s)
	}
	if s := cmdErr.Result.Stderr; s != "" {
		fmt.Fprintln(w, s)
	}
	code := cmdErr.Result.ExitCode
	if code == 0 {
		code = 1
	}
	return ExitCodeError{Code: code}
}
