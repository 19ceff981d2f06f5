package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/quill/internal/core/config"
	"github.com/solatis/quill/internal/core/db"
	"github.com/solatis/quill/internal/rules"
	"github.com/solatis/quill/internal/selection"
	"github.com/solatis/quill/internal/watch"
)

// cliTimeout bounds one-shot commands talking to a database.
const cliTimeout = 30 * time.Second

// openStore opens the rule-set database and refuses to run on pending migrations.
func openStore(cfg *config.Config) (*sqlx.DB, *db.RuleSetStore, error) {
	database, err := db.Open(cfg.Server.Database())
	if err != nil {
		return nil, nil, err
	}
	statuses, err := db.MigrateStatus(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'quill migrate' first", s.ID)
		}
	}
	store, err := db.NewRuleSetStore(database)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, store, nil
}

// ruleSource picks the rules file when configured and the stored rule set otherwise.
// The returned close function releases the database, if one was opened.
func ruleSource(cfg *config.Config, opts rules.Options) (watch.Loader, func(), error) {
	if cfg.Rewriter.RulesFile != "" {
		return watch.FileLoader(cfg.Rewriter.RulesFile, opts), func() {}, nil
	}
	database, store, err := openStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("no rules file configured and rule-set store unavailable: %w", err)
	}
	return watch.StoreLoader(store, cfg.Rewriter.RuleSet, opts), func() { database.Close() }, nil
}

// buildRegistry registers the configured named strategies and the default.
func buildRegistry(cfg *config.Config) (*selection.Registry, error) {
	reg := selection.NewRegistry()
	if cfg.Rewriter.StrategiesFile != "" {
		if _, err := selection.LoadStrategiesFile(cfg.Rewriter.StrategiesFile, reg); err != nil {
			return nil, fmt.Errorf("failed to load strategies: %w", err)
		}
	}
	if err := reg.SetDefault(cfg.Rewriter.DefaultStrategy); err != nil {
		return nil, fmt.Errorf("default_strategy: %w", err)
	}
	return reg, nil
}

// loadEngine compiles the configured rules into a fresh engine.
func loadEngine(ctx context.Context, load watch.Loader) (*rules.Engine, error) {
	rc, err := load(ctx)
	if err != nil {
		return nil, err
	}
	return rules.NewEngine(rc), nil
}
