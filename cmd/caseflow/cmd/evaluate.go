package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/caseflow/internal/rules"
	"github.com/solatis/caseflow/internal/watch"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a schema against form data and print field states",
	Long: `Evaluate compiles a schema file and prints the state of every field for
the given form data. With --watch, both files are re-read and the result
printed again whenever either changes.`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().String("schema", "", "schema file (.json, .yaml)")
	evaluateCmd.Flags().String("form", "", "form data file (.json, .yaml); empty form when omitted")
	evaluateCmd.Flags().Bool("watch", false, "re-evaluate when the schema or form file changes")
	evaluateCmd.Flags().Duration("debounce", watch.DefaultDebounce, "delay before re-evaluating after a change")
	evaluateCmd.MarkFlagRequired("schema")
}

type evaluateOutput struct {
	Results    map[string]*rules.ConditionalResult `json:"results"`
	InertRules []string                            `json:"inert_rules"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	schemaPath, _ := cmd.Flags().GetString("schema")
	formPath, _ := cmd.Flags().GetString("form")
	watching, _ := cmd.Flags().GetBool("watch")
	debounce, _ := cmd.Flags().GetDuration("debounce")

	engine := rules.NewEngine(logger)
	evaluate := func() error {
		schema, err := readSchema(schemaPath)
		if err != nil {
			return err
		}
		compiled, err := rules.Compile(schema)
		if err != nil {
			return fmt.Errorf("%s: %w", schemaPath, err)
		}
		form, err := readForm(formPath)
		if err != nil {
			return err
		}

		out := evaluateOutput{
			Results:    engine.Evaluate(compiled, form),
			InertRules: compiled.InertRules(),
		}
		if out.InertRules == nil {
			out.InertRules = []string{}
		}
		return printJSON(cmd.OutOrStdout(), out)
	}

	if !watching {
		return evaluate()
	}

	// A broken file while editing is reported and waited out
	if err := evaluate(); err != nil {
		logger.Error("evaluation failed", "error", err)
	}

	paths := []string{schemaPath}
	if formPath != "" {
		paths = append(paths, formPath)
	}
	w, err := watch.New(paths, debounce, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("watching for changes", "files", paths, "debounce", debounce.String())
	return w.Run(ctx, func(changed []string) {
		start := time.Now()
		if err := evaluate(); err != nil {
			logger.Error("evaluation failed", "changed", changed, "error", err)
			return
		}
		logger.Debug("re-evaluated", "changed", changed, "duration", time.Since(start).String())
	})
}

// commandContext returns cmd's context, or Background when run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
