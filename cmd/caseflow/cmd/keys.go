package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/caseflow/internal/core/auth"
	"github.com/solatis/caseflow/internal/core/config"
	"github.com/solatis/caseflow/internal/core/db"
	"github.com/solatis/caseflow/internal/types"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue an API key for a tenant",
	Long: `Create issues a new API key signed with one of the configured HMAC
secrets. The key is printed once; only its hash is stored.`,
	RunE: runKeysCreate,
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <api-key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysRevoke,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysCreateCmd, keysRevokeCmd)

	keysCmd.PersistentFlags().String("tenant", "", "tenant that owns the key")
	keysCmd.MarkPersistentFlagRequired("tenant")
	keysCreateCmd.Flags().String("name", "", "human readable key name")
	keysCreateCmd.Flags().String("secret-id", "", "HMAC secret to sign with (required when several are configured)")
}

// openQueries opens the database, checks migrations and loads named queries.
// The returned func closes the database.
func openQueries() (*db.Queries, func() error, error) {
	url, err := requireDBURL()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.Open(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.RequireMigrated(database); err != nil {
		database.Close()
		return nil, nil, err
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return queries, database.Close, nil
}

func runKeysCreate(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	name, _ := cmd.Flags().GetString("name")
	secretFlag, _ := cmd.Flags().GetString("secret-id")

	secrets, err := config.LoadSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	secretID, secret, err := secrets.Signing(secretFlag)
	if errors.Is(err, config.ErrAmbiguousSecret) {
		return fmt.Errorf("%w, choose one with --secret-id", err)
	}
	if err != nil {
		return err
	}

	queries, closeDB, err := openQueries()
	if err != nil {
		return err
	}
	defer closeDB()

	issued, err := auth.CreateAPIKey(commandContext(cmd), queries, tenantID, name, secretID, secret)
	if err != nil {
		return err
	}

	logger.Info("api key created", "api_key_id", issued.ID, "tenant_id", tenantID, "secret_id", secretID)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:  %s\n", issued.ID)
	fmt.Fprintf(out, "key: %s\n", issued.Key)
	return nil
}

func runKeysRevoke(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	id, err := types.ParseAPIKeyID(args[0])
	if err != nil {
		return err
	}

	queries, closeDB, err := openQueries()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := auth.RevokeAPIKey(commandContext(cmd), queries, tenantID, id); err != nil {
		return err
	}
	logger.Info("api key revoked", "api_key_id", id, "tenant_id", tenantID)
	fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", id)
	return nil
}
