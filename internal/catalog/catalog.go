// Package catalog implements component C1: bidirectional name<->ID
// mappings for labels, relationship types, and property keys, plus
// global metadata and per-label/per-type statistics.
//
// The catalog is backed by an embedded ordered KV store - concretely a
// SQLite database opened through github.com/mattn/go-sqlite3, the same
// driver the teacher repo uses for its own derived index
// (internal/store/index_sqlite.go). SQLite's B-tree tables give us the
// "ordered map with atomic multi-write transactions" the spec calls for
// without inventing a bespoke on-disk format for what is a low-traffic,
// off-the-hot-path component.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/graphdb-core/graphdb/internal/errs"
	"github.com/graphdb-core/graphdb/internal/log"
)

const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_info (
	version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS labels (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS rel_types (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS prop_keys (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS label_stats (
	label_id INTEGER PRIMARY KEY,
	count    INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS type_stats (
	type_id INTEGER PRIMARY KEY,
	count   INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS prop_indexes (
	label_id INTEGER NOT NULL,
	key_id   INTEGER NOT NULL,
	PRIMARY KEY (label_id, key_id)
);
CREATE TABLE IF NOT EXISTS instance (
	id TEXT PRIMARY KEY
);
`

// Metadata keys stored in the metadata table.
const (
	metaEpoch        = "epoch"
	metaNodeHighWater = "node_high_water"
	metaRelHighWater  = "rel_high_water"
)

// StatKind distinguishes which statistics table bump_stat updates.
type StatKind string

const (
	StatLabel StatKind = "label"
	StatType  StatKind = "type"
)

// Catalog owns the SQLite-backed ordered KV store described above.
// All public methods are safe for concurrent use; SQLite serializes
// writers internally and the catalog is never on the hot read path.
type Catalog struct {
	db *sql.DB
}

// Open creates or opens the catalog database at path, validating the
// schema version. A version mismatch is CatalogCorrupt and fatal to
// startup per spec section 4.1.
func Open(ctx context.Context, path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	// Single-writer-many-reader from this process; WAL mode lets the
	// rare catalog write not block readers against the sqlite file.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) init(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin init tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_info").Scan(&count); err != nil {
		return fmt.Errorf("read schema_info: %w", err)
	}
	if count == 0 {
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_info(version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("seed schema_info: %w", err)
		}
		for _, key := range []string{metaEpoch, metaNodeHighWater, metaRelHighWater} {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO metadata(key, value) VALUES (?, 0)", key); err != nil {
				return fmt.Errorf("seed metadata %s: %w", key, err)
			}
		}
		// Stamped once at creation so recovery/tooling can tell two
		// database directories apart even if they share a path history.
		if _, err := tx.ExecContext(ctx, "INSERT INTO instance(id) VALUES (?)", uuid.NewString()); err != nil {
			return fmt.Errorf("seed instance id: %w", err)
		}
	} else {
		var version int
		if err := tx.QueryRowContext(ctx, "SELECT version FROM schema_info LIMIT 1").Scan(&version); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version != schemaVersion {
			return fmt.Errorf("%w: on-disk schema version %d, expected %d", errs.ErrCatalogCorrupt, version, schemaVersion)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit init tx: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func tableFor(kind string) (string, error) {
	switch kind {
	case "label":
		return "labels", nil
	case "type":
		return "rel_types", nil
	case "key":
		return "prop_keys", nil
	default:
		return "", fmt.Errorf("unknown catalog kind %q", kind)
	}
}

// getOrCreate performs the atomic read-then-insert described in spec
// section 4.1: concurrent callers requesting the same name converge on
// the same ID because the insert and the subsequent lookup run inside a
// single SQLite transaction, and SQLite serializes writers.
func (c *Catalog) getOrCreate(ctx context.Context, kind, name string) (uint32, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin get-or-create %s: %w", kind, err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT id FROM %s WHERE name = ?", table), name).Scan(&id)
	switch {
	case err == nil:
		return uint32(id), tx.Rollback()
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("lookup %s %q: %w", kind, name, err)
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s(name) VALUES (?)", table), name)
	if err != nil {
		return 0, fmt.Errorf("insert %s %q: %w", kind, name, err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert id for %s %q: %w", kind, name, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit get-or-create %s: %w", kind, err)
	}
	log.Component("catalog").Debug().Str("kind", kind).Str("name", name).Int64("id", newID).Msg("allocated catalog id")
	return uint32(newID), nil
}

func (c *Catalog) lookupByID(ctx context.Context, kind string, id uint32) (string, error) {
	table, err := tableFor(kind)
	if err != nil {
		return "", err
	}
	var name string
	err = c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT name FROM %s WHERE id = ?", table), id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s id %d", errs.ErrNotFound, kind, id)
	}
	if err != nil {
		return "", fmt.Errorf("lookup %s id %d: %w", kind, id, err)
	}
	return name, nil
}

func (c *Catalog) lookupByName(ctx context.Context, kind, name string) (uint32, bool, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, false, err
	}
	var id int64
	err = c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT id FROM %s WHERE name = ?", table), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup %s %q: %w", kind, name, err)
	}
	return uint32(id), true, nil
}

// GetOrCreateLabel returns the ID for name, allocating a new one if this
// is the first reference.
func (c *Catalog) GetOrCreateLabel(ctx context.Context, name string) (uint32, error) {
	return c.getOrCreate(ctx, "label", name)
}

func (c *Catalog) GetOrCreateType(ctx context.Context, name string) (uint32, error) {
	return c.getOrCreate(ctx, "type", name)
}

func (c *Catalog) GetOrCreateKey(ctx context.Context, name string) (uint32, error) {
	return c.getOrCreate(ctx, "key", name)
}

func (c *Catalog) LookupLabelName(ctx context.Context, id uint32) (string, error) {
	return c.lookupByID(ctx, "label", id)
}

func (c *Catalog) LookupTypeName(ctx context.Context, id uint32) (string, error) {
	return c.lookupByID(ctx, "type", id)
}

func (c *Catalog) LookupKeyName(ctx context.Context, id uint32) (string, error) {
	return c.lookupByID(ctx, "key", id)
}

func (c *Catalog) LookupLabelID(ctx context.Context, name string) (uint32, bool, error) {
	return c.lookupByName(ctx, "label", name)
}

func (c *Catalog) LookupTypeID(ctx context.Context, name string) (uint32, bool, error) {
	return c.lookupByName(ctx, "type", name)
}

func (c *Catalog) LookupKeyID(ctx context.Context, name string) (uint32, bool, error) {
	return c.lookupByName(ctx, "key", name)
}

// AllLabels returns every known (id, name) pair, used by startup index
// rebuilds and by the planner for label selectivity estimation.
func (c *Catalog) AllLabels(ctx context.Context) (map[uint32]string, error) {
	return c.all(ctx, "labels")
}

func (c *Catalog) AllTypes(ctx context.Context) (map[uint32]string, error) {
	return c.all(ctx, "rel_types")
}

func (c *Catalog) all(ctx context.Context, table string) (map[uint32]string, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("SELECT id, name FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[uint32]string)
	for rows.Next() {
		var id uint32
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		out[id] = name
	}
	return out, rows.Err()
}
