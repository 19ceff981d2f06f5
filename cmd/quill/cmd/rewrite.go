package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/solatis/quill/internal/core/api"
	"github.com/solatis/quill/internal/core/auth"
	"github.com/solatis/quill/internal/query"
	"github.com/solatis/quill/internal/rewrite"
	"github.com/solatis/quill/internal/selection"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [flags] QUERY",
	Short: "Rewrite a query locally or against a running server",
	Long: `Rewrite a query and print the result and the applied rules.

Selection criteria flags (--sort, --limit, --levels, --filter, --property)
imply --strategy criteria.`,
	Args: cobra.ExactArgs(1),
	RunE: runRewrite,
}

func init() {
	rootCmd.AddCommand(rewriteCmd)
	f := rewriteCmd.Flags()
	f.String("rules", "", "rules file")
	f.String("rule-set", "default", "stored rule set to use when no rules file is given")
	f.String("strategies", "", "YAML file declaring named selection strategies")
	f.String("default-strategy", "default", "strategy used when --strategy is not given")
	f.String("strategy", "", "selection strategy name")
	f.String("sort", "", "sort by property, as name:asc or name:desc")
	f.Int("limit", 0, "keep at most this many rules (or sort levels with --levels)")
	f.Bool("levels", false, "apply --limit to distinct sort values")
	f.StringArray("filter", nil, "filter expression over rule properties (repeatable)")
	f.StringArray("property", nil, "require property name:value (repeatable)")
	f.Bool("actions", false, "print the selected actions instead of rewriting")
	f.String("remote", "", "address of a running quill server")
	f.String("api-key", "", "API key for --remote")
}

func criteriaParams(cmd *cobra.Command) map[string][]string {
	f := cmd.Flags()
	params := map[string][]string{}
	if v, _ := f.GetString("sort"); v != "" {
		params[selection.ParamSort] = []string{v}
	}
	if f.Changed("limit") {
		v, _ := f.GetInt("limit")
		params[selection.ParamLimit] = []string{strconv.Itoa(v)}
	}
	if f.Changed("levels") {
		v, _ := f.GetBool("levels")
		params[selection.ParamLevels] = []string{strconv.FormatBool(v)}
	}
	if v, _ := f.GetStringArray("filter"); len(v) > 0 {
		params[selection.ParamFilter] = v
	}
	if v, _ := f.GetStringArray("property"); len(v) > 0 {
		params[selection.ParamProperty] = v
	}
	return params
}

func runRewrite(cmd *cobra.Command, args []string) error {
	strategyName, _ := cmd.Flags().GetString("strategy")
	params := criteriaParams(cmd)
	if strategyName == "" && selection.HasCriteriaParams(params) {
		strategyName = selection.CriteriaStrategyName
	}
	showActions, _ := cmd.Flags().GetBool("actions")

	if remote, _ := cmd.Flags().GetString("remote"); remote != "" {
		return rewriteRemote(cmd, remote, args[0], strategyName, params, showActions)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := cfg.Rewriter.RuleOptions()
	if err != nil {
		return err
	}
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	strategy, err := registry.Resolve(strategyName, params)
	if err != nil {
		return err
	}

	load, closeSource, err := ruleSource(cfg, opts)
	if err != nil {
		return err
	}
	defer closeSource()
	engine, err := loadEngine(cmd.Context(), load)
	if err != nil {
		return err
	}
	rw := rewrite.New(engine, newLogger())
	out := cmd.OutOrStdout()

	if showActions {
		bq, ok := query.ParseUserQuery(args[0]).(*query.BooleanQuery)
		if !ok {
			return nil
		}
		seq, _ := query.Flatten(bq)
		actions, err := rw.Actions(seq, strategy)
		if err != nil {
			return err
		}
		for _, a := range actions {
			ids := make([]string, len(a.Instructions))
			for i, ins := range a.Instructions {
				ids[i] = ins.ID
			}
			fmt.Fprintf(out, "[%d,%d) %s\n", a.Start, a.End, strings.Join(ids, ", "))
		}
		return nil
	}

	res, err := rw.Rewrite(cmd.Context(), query.NewExpandedQuery(query.ParseUserQuery(args[0])), strategy)
	if err != nil {
		return err
	}
	printResult(out, res)
	return nil
}

func printResult(out io.Writer, res *rewrite.Result) {
	fmt.Fprintln(out, res.Query.String())
	for _, a := range res.Applied {
		if a.Log != "" {
			fmt.Fprintf(out, "  applied %s: %s\n", a.ID, a.Log)
		} else {
			fmt.Fprintf(out, "  applied %s\n", a.ID)
		}
	}
	for _, d := range res.Decorations {
		fmt.Fprintf(out, "  decoration %s = %s\n", d.Key, d.Value.String())
	}
}

func rewriteRemote(cmd *cobra.Command, addr, q, strategy string, params map[string][]string, showActions bool) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	ctx := cmd.Context()
	if key, _ := cmd.Flags().GetString("api-key"); key != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, auth.MetadataKey, key)
	}

	req, err := api.NewRewriteRequest(q, strategy, params)
	if err != nil {
		return err
	}

	client := api.NewClient(conn)
	call := client.Rewrite
	if showActions {
		call = client.Actions
	}
	resp, err := call(ctx, req)
	if err != nil {
		return err
	}

	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(resp)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
