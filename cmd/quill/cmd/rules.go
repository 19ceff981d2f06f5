package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/solatis/quill/internal/rulefile"
	"github.com/solatis/quill/internal/rules"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Validate and manage rule sets",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Parse and compile a rules file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts, err := cfg.Rewriter.RuleOptions()
		if err != nil {
			return err
		}
		_, rc, err := compileFile(args[0], opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d rules, max input length %d\n", args[0], rc.Len(), rc.MaxDepth())
		return nil
	},
}

var rulesImportCmd = &cobra.Command{
	Use:   "import --name NAME FILE",
	Short: "Store a rules file as the next version of a rule set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = cfg.Rewriter.RuleSet
		}
		opts, err := cfg.Rewriter.RuleOptions()
		if err != nil {
			return err
		}
		source, rc, err := compileFile(args[0], opts)
		if err != nil {
			return err
		}

		database, store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
		defer cancel()
		rs, created, err := store.Import(ctx, name, string(source), rc.Len())
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%d unchanged (%s)\n", rs.Name, rs.Version, rs.ID)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %s v%d (%s), %d rules\n", rs.Name, rs.Version, rs.ID, rs.RuleCount)
		return nil
	},
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rule sets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		database, store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
		defer cancel()
		sets, err := store.List(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVERSION\tRULES\tCREATED\tID\tCHECKSUM")
		for _, s := range sets {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%.12s\n", s.Name, s.Version, s.RuleCount, s.CreatedAt.Format("2006-01-02 15:04:05"), s.ID, s.Checksum)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesValidateCmd, rulesImportCmd, rulesListCmd)
	rulesImportCmd.Flags().String("name", "", "rule set name (defaults to rewriter.rule_set)")
}

// compileFile reads and compiles path, returning its source for storage.
func compileFile(path string, opts rules.Options) ([]byte, *rules.RulesCollection, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	rc, err := rulefile.Compile(bytes.NewReader(source), opts)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return source, rc, nil
}
