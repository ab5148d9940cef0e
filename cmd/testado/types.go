package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the document types in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, tc := range a.catalog.Types() {
				steps := make([]string, len(tc.Steps))
				for i, s := range tc.Steps {
					steps[i] = string(s)
				}
				fmt.Fprintf(out, "%-10s aliases=%s suffix=%s steps=%s\n",
					tc.ID, strings.Join(tc.Aliases, ","), tc.OutputSuffix, strings.Join(steps, ","))
			}
			return nil
		},
	}
}
