package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/caseflow/internal/rules"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Print the field dependencies of a schema",
	RunE:  runDeps,
}

func init() {
	rootCmd.AddCommand(depsCmd)
	depsCmd.Flags().String("schema", "", "schema file (.json, .yaml)")
	depsCmd.MarkFlagRequired("schema")
}

type depsOutput struct {
	Dependents map[string][]string `json:"dependents"`
	Rules      map[string][]string `json:"rules"`
	Fields     map[string][]string `json:"fields"`
	InertRules []string            `json:"inert_rules"`
}

func runDeps(cmd *cobra.Command, args []string) error {
	schemaPath, _ := cmd.Flags().GetString("schema")

	schema, err := readSchema(schemaPath)
	if err != nil {
		return err
	}
	compiled, err := rules.Compile(schema)
	if err != nil {
		return fmt.Errorf("%s: %w", schemaPath, err)
	}

	out := depsOutput{
		Dependents: compiled.Dependents(),
		Rules:      make(map[string][]string, len(compiled.Rules)),
		Fields:     make(map[string][]string),
		InertRules: compiled.InertRules(),
	}
	for _, r := range compiled.Rules {
		out.Rules[r.ID] = rules.ExtractDependencies(r.Condition)
	}
	for _, f := range compiled.Fields {
		if f.Visibility != nil {
			out.Fields[f.Definition.ID] = rules.ExtractDependencies(f.Visibility)
		}
	}
	if out.InertRules == nil {
		out.InertRules = []string{}
	}

	return printJSON(cmd.OutOrStdout(), out)
}
