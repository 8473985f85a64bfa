package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kompox/sandboxops/usecase/chat"
)

func newCmdChat() *cobra.Command {
	var (
		modelName string
		projectID string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "chat <message...>",
		Short: "Ask the code model an infrastructure question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			uc, err := buildChatUseCase(cmd)
			if err != nil {
				return err
			}
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "chat", uc.Model)
			defer func() { cleanup(err) }()

			out, err := uc.Send(ctx, &chat.SendInput{Message: strings.Join(args, " "), Model: modelName, ProjectID: projectID})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(out.Response))
			return nil
		},
	}
	cmd.Flags().StringVar(&modelName, "model", "", "Model to use instead of the configured one")
	cmd.Flags().StringVar(&projectID, "project", "", "Uploaded project whose structure and recent changes are added to the prompt")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response as JSON")
	return cmd
}
