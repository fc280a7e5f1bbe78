package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/solatis/caseflow/internal/core/schemas"
	"github.com/solatis/caseflow/internal/rules"
	"github.com/solatis/caseflow/internal/types"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage stored schemas",
}

var schemaImportCmd = &cobra.Command{
	Use:   "import <pattern>...",
	Short: "Store schema files as new workflow versions",
	Long: `Import stores every schema file matching the given patterns (** allowed)
as the next version of its workflow. The workflow id is --workflow when set,
otherwise the file name without extension. Files are imported in path order
and every file is validated before anything is written.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSchemaImport,
}

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored schema versions",
	RunE:  runSchemaList,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaImportCmd, schemaListCmd)

	schemaCmd.PersistentFlags().String("tenant", "default", "tenant that owns the schemas")
	schemaImportCmd.Flags().String("workflow", "", "workflow id for every imported file")
}

// openStore returns a schema store over the migrated database.
func openStore() (*schemas.Store, func() error, error) {
	queries, closeDB, err := openQueries()
	if err != nil {
		return nil, nil, err
	}
	return schemas.NewStore(queries, logger), closeDB, nil
}

// expandPatterns resolves glob patterns to a sorted, deduplicated file list.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob error: %w", err)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() || seen[match] {
				continue
			}
			seen[match] = true
			files = append(files, match)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files match %s", strings.Join(patterns, ", "))
	}
	sort.Strings(files)
	return files, nil
}

func workflowFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func runSchemaImport(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	workflow, _ := cmd.Flags().GetString("workflow")

	files, err := expandPatterns(args)
	if err != nil {
		return err
	}

	// Parse everything first so one bad file aborts the whole import
	type pending struct {
		path     string
		workflow string
		schema   *types.ConfigurationSchema
	}
	var batch []pending
	for _, path := range files {
		schema, err := readSchema(path)
		if err != nil {
			return err
		}
		if _, err := rules.Compile(schema); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		wf := workflow
		if wf == "" {
			wf = workflowFromPath(path)
		}
		batch = append(batch, pending{path: path, workflow: wf, schema: schema})
	}

	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()
	for _, p := range batch {
		record, compiled, err := store.Save(ctx, tenantID, p.workflow, p.schema)
		if err != nil {
			return fmt.Errorf("%s: %w", p.path, err)
		}
		fmt.Fprintf(out, "%s\t%s v%d\t%s\n", p.path, record.WorkflowID, record.Version, record.ID)
		for _, id := range compiled.InertRules() {
			logger.Warn("rule target is not a field", "file", p.path, "rule_id", id)
		}
	}
	return nil
}

func runSchemaList(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")

	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	records, err := store.List(commandContext(cmd), tenantID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKFLOW\tVERSION\tSCHEMA ID\tNAME\tCREATED AT")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", r.WorkflowID, r.Version, r.ID, r.Name, r.CreatedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
