package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// StagedImport describes a bulk load that COPYs rows into a transaction
// scoped staging table and merges them into Table on Key.
type StagedImport struct {
	Table   string   // target, optionally schema qualified
	Columns []string // COPY column order
	Key     string   // unique column rows are merged on
	// Freshness, when set, names a column that must not move backwards: a
	// staged row only replaces an existing one when its value is at least
	// as new.
	Freshness string
}

func (si StagedImport) validate() error {
	if si.Table == "" {
		return eris.New("db: import: no table")
	}
	if len(si.Columns) == 0 {
		return eris.New("db: import: no columns")
	}
	if !contains(si.Columns, si.Key) {
		return eris.Errorf("db: import: key %q is not an imported column", si.Key)
	}
	if si.Freshness != "" && !contains(si.Columns, si.Freshness) {
		return eris.Errorf("db: import: freshness column %q is not an imported column", si.Freshness)
	}
	return nil
}

// staging returns the temp table name for the import.
func (si StagedImport) staging() string {
	return "_stage_" + strings.ReplaceAll(si.Table, ".", "_")
}

// mergeSQL builds the INSERT ... SELECT ... ON CONFLICT statement.
func (si StagedImport) mergeSQL() string {
	target := identifier(si.Table)
	cols := make([]string, len(si.Columns))
	var sets []string
	for i, c := range si.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
		if c != si.Key {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", cols[i], cols[i]))
		}
	}
	colList := strings.Join(cols, ", ")

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) ",
		target, colList, colList, pgx.Identifier{si.staging()}.Sanitize(), pgx.Identifier{si.Key}.Sanitize())
	if len(sets) == 0 {
		b.WriteString("DO NOTHING")
		return b.String()
	}
	fmt.Fprintf(&b, "DO UPDATE SET %s", strings.Join(sets, ", "))
	if si.Freshness != "" {
		f := pgx.Identifier{si.Freshness}.Sanitize()
		fmt.Fprintf(&b, " WHERE %s.%s <= EXCLUDED.%s", target, f, f)
	}
	return b.String()
}

// Import runs the staged import inside one transaction and returns the
// number of rows inserted or updated.
func Import(ctx context.Context, pool Pool, si StagedImport, rows [][]any) (int64, error) {
	if err := si.validate(); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: import: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stage := pgx.Identifier{si.staging()}
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		stage.Sanitize(), identifier(si.Table),
	)); err != nil {
		return 0, eris.Wrapf(err, "db: import: stage %s", si.Table)
	}

	if _, err := tx.CopyFrom(ctx, stage, si.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: import: copy %d rows into %s", len(rows), si.Table)
	}

	tag, err := tx.Exec(ctx, si.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: import: merge into %s", si.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: import: commit")
	}
	return tag.RowsAffected(), nil
}

// identifier quotes a possibly schema-qualified name.
func identifier(name string) string {
	return pgx.Identifier(strings.SplitN(name, ".", 2)).Sanitize()
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
