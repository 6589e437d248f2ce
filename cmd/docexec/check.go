package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hanpama/docexec/internal/document"
	executor "github.com/hanpama/docexec/internal/executor"
	maprt "github.com/hanpama/docexec/internal/maprt"
	schema "github.com/hanpama/docexec/internal/schema"
)

var errCheckFailed = errors.New("check failed")

func newCheckCmd(a *app) *cobra.Command {
	var operation string
	cmd := &cobra.Command{
		Use:   "check [document...]",
		Short: "Validate the schema and prepare every operation of the given documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := a.loadSchema()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			exec := executor.NewExecutor(maprt.New(sch), sch, executor.WithMaxDepth(a.cfg.Execution.MaxDepth))

			failed := false
			for _, path := range args {
				doc, err := document.Load(path)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", path, err)
					failed = true
					continue
				}
				for _, name := range operationNames(doc, operation) {
					label := name
					if label == "" {
						label = "<anonymous>"
					}
					if _, err := exec.Prepare(doc, name); err != nil {
						fmt.Fprintf(out, "%s: %s: %v [%s]\n", path, label, err, executor.ErrorCode(err))
						failed = true
						continue
					}
					fmt.Fprintf(out, "%s: %s: ok\n", path, label)
				}
			}
			if failed {
				return errCheckFailed
			}
			fmt.Fprintf(out, "schema ok: %d types\n", countTypes(sch))
			return nil
		},
	}
	cmd.Flags().StringVarP(&operation, "operation", "o", "", "check only this operation")
	return cmd
}

func operationNames(doc *document.Document, only string) []string {
	if only != "" {
		return []string{only}
	}
	if len(doc.Operations) == 0 {
		return []string{""}
	}
	names := make([]string, len(doc.Operations))
	for i, op := range doc.Operations {
		names[i] = op.Name
	}
	return names
}

// countTypes counts the types declared by the schema, leaving out built-ins.
func countTypes(sch *schema.Schema) int {
	n := 0
	for name, t := range sch.Types {
		if strings.HasPrefix(name, "__") || schema.IsBuiltinScalar(t.Name) {
			continue
		}
		n++
	}
	return n
}
