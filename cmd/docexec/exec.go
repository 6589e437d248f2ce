package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hanpama/docexec/internal/document"
	executor "github.com/hanpama/docexec/internal/executor"
	introspection "github.com/hanpama/docexec/internal/introspection"
)

func newExecCmd(a *app) *cobra.Command {
	var (
		operation     string
		variables     string
		variablesFile string
		pretty        bool
	)
	cmd := &cobra.Command{
		Use:   "exec <document>",
		Short: "Execute one operation of a document and print the result",
		Long: `Execute one operation of a GraphQL document and print the JSON result.
Documents ending in .json are read as a pre-parsed JSON AST.`,
		Example: "docexec exec --schema schema.graphql --fixture fixture.json --variables '{\"input\":{}}' query.graphql",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := readVariables(variables, variablesFile)
			if err != nil {
				return err
			}
			sch, err := a.loadSchema()
			if err != nil {
				return err
			}
			doc, err := document.Load(args[0])
			if err != nil {
				return fmt.Errorf("load document: %w", err)
			}
			rt, root, release, err := a.runtime(sch)
			if err != nil {
				return err
			}
			defer release()
			if a.cfg.Server.Introspection {
				rt, sch = introspection.Wrap(rt, sch)
			}

			res := executor.NewExecutor(rt, sch, a.executorOptions()...).
				ExecuteRequest(cmd.Context(), doc, operation, vars, root)

			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty || a.cfg.Server.Pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(res)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&operation, "operation", "o", "", "operation name; required when the document has several")
	f.StringVar(&variables, "variables", "", "variables as a JSON object")
	f.StringVar(&variablesFile, "variables-file", "", "file holding the variables JSON object")
	f.BoolVar(&pretty, "pretty", false, "indent the result")
	f.String("fixture", "", "JSON file used as the root value")
	f.StringSlice("backend", nil, "resolver endpoint as Service=host:port; repeatable")
	bindKey(f, "fixture", "fixture.path")
	bindKey(f, "backend", "backend.endpoints")
	return cmd
}

func readVariables(inline, file string) (map[string]any, error) {
	if inline != "" && file != "" {
		return nil, fmt.Errorf("--variables and --variables-file are mutually exclusive")
	}
	data := []byte(inline)
	if file != "" {
		var err error
		if data, err = os.ReadFile(file); err != nil {
			return nil, err
		}
	}
	if len(data) == 0 {
		return nil, nil
	}
	var vars map[string]any
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("variables: %w", err)
	}
	return vars, nil
}
