package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	schema "github.com/hanpama/docexec/internal/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:     "schema",
		Short:   "Print the merged and validated schema as SDL",
		Example: "docexec schema --schema a.graphql,b.graphql > merged.graphql",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := a.loadSchema()
			if err != nil {
				return err
			}
			sdl := schema.Render(sch)
			if out == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), sdl)
				return err
			}
			return os.WriteFile(out, []byte(sdl), 0o644)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the SDL to a file instead of stdout")
	return cmd
}
