package cmd

import (
	"fmt"
	"sort"

	"github.com/solatis/quill/internal/core/auth"
	"github.com/solatis/quill/internal/core/config"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
}

var keysIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue an API key signed by a configured HMAC secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secrets, err := config.HMACSecrets()
		if err != nil {
			return err
		}
		if len(secrets) == 0 {
			return fmt.Errorf("no HMAC secrets configured (set QUILL_HMAC_SECRET environment variable)")
		}

		secretID, _ := cmd.Flags().GetString("secret-id")
		if secretID == "" {
			if len(secrets) > 1 {
				ids := make([]string, 0, len(secrets))
				for id := range secrets {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				return fmt.Errorf("several secrets configured, choose one with --secret-id: %v", ids)
			}
			for id := range secrets {
				secretID = id
			}
		}
		secret, ok := secrets[secretID]
		if !ok {
			return fmt.Errorf("%w: %s", auth.ErrUnknownKey, secretID)
		}

		key, err := auth.IssueAPIKey(secretID, secret)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysIssueCmd)
	keysIssueCmd.Flags().String("secret-id", "", "secret to sign with (required when several are configured)")
}
