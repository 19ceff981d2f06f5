// internal/core/db/store.go
package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/quill/internal/types"
)

// ErrRuleSetNotFound is returned when no version of a named rule set exists.
var ErrRuleSetNotFound = errors.New("rule set not found")

// RuleSet is one immutable version of a named rule file.
type RuleSet struct {
	ID        string    `db:"rule_set_id"`
	Name      string    `db:"name"`
	Version   int       `db:"version"`
	Checksum  string    `db:"checksum"`
	Source    string    `db:"source"`
	RuleCount int       `db:"rule_count"`
	CreatedAt time.Time `db:"created_at"`
}

// RuleSetStore persists rule sets.
type RuleSetStore struct {
	db      *sqlx.DB
	queries *Queries
}

// NewRuleSetStore loads the named queries for db. Run MigrateUp first.
func NewRuleSetStore(db *sqlx.DB) (*RuleSetStore, error) {
	q, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &RuleSetStore{db: db, queries: q}, nil
}

// Checksum is the hex sha256 of a rule file source.
func Checksum(source string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(source)))
}

// Import stores source as the next version of name. When source is identical
// to the latest version, that version is returned and created is false.
// Callers validate source before importing; ruleCount is recorded as given.
func (s *RuleSetStore) Import(ctx context.Context, name, source string, ruleCount int) (rs RuleSet, created bool, err error) {
	if name == "" {
		return RuleSet{}, false, errors.New("rule set name must not be empty")
	}
	checksum := Checksum(source)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return RuleSet{}, false, fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	q := s.queries.WithTx(tx)

	var latest RuleSet
	switch err := q.Get(ctx, "latest-rule-set", &latest, name); {
	case err == nil:
		if latest.Checksum == checksum {
			return latest, false, tx.Commit()
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return RuleSet{}, false, fmt.Errorf("lookup %q: %w", name, err)
	}

	var version int
	if err = q.Get(ctx, "next-rule-set-version", &version, name); err != nil {
		return RuleSet{}, false, fmt.Errorf("next version of %q: %w", name, err)
	}

	rs = RuleSet{
		ID:        string(types.NewRuleSetID()),
		Name:      name,
		Version:   version,
		Checksum:  checksum,
		Source:    source,
		RuleCount: ruleCount,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if _, err = q.Exec(ctx, "insert-rule-set",
		rs.ID, rs.Name, rs.Version, rs.Checksum, rs.Source, rs.RuleCount, rs.CreatedAt); err != nil {
		return RuleSet{}, false, fmt.Errorf("insert %q v%d: %w", name, version, err)
	}
	if err = tx.Commit(); err != nil {
		return RuleSet{}, false, fmt.Errorf("commit import: %w", err)
	}
	return rs, true, nil
}

// Latest returns the newest version of name.
func (s *RuleSetStore) Latest(ctx context.Context, name string) (RuleSet, error) {
	var rs RuleSet
	if err := s.queries.Get(ctx, "latest-rule-set", &rs, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RuleSet{}, fmt.Errorf("%w: %q", ErrRuleSetNotFound, name)
		}
		return RuleSet{}, err
	}
	return rs, nil
}

// Version returns a specific version of name.
func (s *RuleSetStore) Version(ctx context.Context, name string, version int) (RuleSet, error) {
	var rs RuleSet
	if err := s.queries.Get(ctx, "get-rule-set-version", &rs, name, version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RuleSet{}, fmt.Errorf("%w: %q v%d", ErrRuleSetNotFound, name, version)
		}
		return RuleSet{}, err
	}
	return rs, nil
}

// List returns every version of every rule set without sources, newest first per name.
func (s *RuleSetStore) List(ctx context.Context) ([]RuleSet, error) {
	var sets []RuleSet
	if err := s.queries.Select(ctx, "list-rule-sets", &sets); err != nil {
		return nil, err
	}
	return sets, nil
}
