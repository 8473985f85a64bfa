package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kompox/sandboxops/usecase/catalog"
)

func newCmdCatalog() *cobra.Command {
	c := &cobra.Command{
		Use:   "catalog",
		Short: "Browse AWS resource guidance and review configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.AddCommand(
		&cobra.Command{
			Use:   "types",
			Short: "List resource categories and types",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				uc, err := buildCatalogUseCase(cmd)
				if err != nil {
					return err
				}
				out, err := uc.ResourceTypes(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			},
		},
		&cobra.Command{
			Use:   "help <category> [resource]",
			Short: "Show examples and best practices",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				uc, err := buildCatalogUseCase(cmd)
				if err != nil {
					return err
				}
				in := &catalog.HelpInput{Category: args[0]}
				if len(args) == 2 {
					in.Resource = args[1]
				}
				out, err := uc.Help(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			},
		},
		&cobra.Command{
			Use:   "analyze <file|->",
			Short: "Review a Terraform configuration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var data []byte
				var err error
				if args[0] == "-" {
					data, err = io.ReadAll(cmd.InOrStdin())
				} else {
					data, err = os.ReadFile(args[0])
				}
				if err != nil {
					return err
				}
				uc, err := buildCatalogUseCase(cmd)
				if err != nil {
					return err
				}
				out, err := uc.Analyze(cmd.Context(), &catalog.AnalyzeInput{Config: string(data)})
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			},
		},
	)
	return c
}
