package catalog

import (
	"context"
	"fmt"
)

// PropIndexKey names a registered secondary index: one (label, key) pair
// with an equality index over it (spec section 4.5, `create_index`).
type PropIndexKey struct {
	Label uint32
	Key   uint32
}

// RegisterPropIndex records that (label, key) has a secondary index, so
// ListPropIndexes can rebuild the in-memory index.PropIndexSet on
// restart by re-scanning the affected records (the index itself is
// never persisted, only the fact that it exists).
func (c *Catalog) RegisterPropIndex(ctx context.Context, label, key uint32) error {
	_, err := c.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO prop_indexes(label_id, key_id) VALUES (?, ?)", label, key)
	if err != nil {
		return fmt.Errorf("register prop index (%d,%d): %w", label, key, err)
	}
	return nil
}

// UnregisterPropIndex removes a previously registered index.
func (c *Catalog) UnregisterPropIndex(ctx context.Context, label, key uint32) error {
	_, err := c.db.ExecContext(ctx,
		"DELETE FROM prop_indexes WHERE label_id = ? AND key_id = ?", label, key)
	if err != nil {
		return fmt.Errorf("unregister prop index (%d,%d): %w", label, key, err)
	}
	return nil
}

// ListPropIndexes returns every registered (label, key) index pair.
func (c *Catalog) ListPropIndexes(ctx context.Context) ([]PropIndexKey, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT label_id, key_id FROM prop_indexes")
	if err != nil {
		return nil, fmt.Errorf("list prop indexes: %w", err)
	}
	defer rows.Close()

	var out []PropIndexKey
	for rows.Next() {
		var k PropIndexKey
		if err := rows.Scan(&k.Label, &k.Key); err != nil {
			return nil, fmt.Errorf("scan prop index row: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
