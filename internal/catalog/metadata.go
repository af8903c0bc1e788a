package catalog

import (
	"context"
	"fmt"
)

// Epoch returns the last published epoch persisted in the catalog.
func (c *Catalog) Epoch(ctx context.Context) (uint64, error) {
	return c.readMeta(ctx, metaEpoch)
}

// SetEpoch persists the current epoch. Called by the transaction manager
// on commit, and by crash recovery once the WAL has been replayed.
func (c *Catalog) SetEpoch(ctx context.Context, epoch uint64) error {
	return c.writeMeta(ctx, metaEpoch, epoch)
}

// InstanceID returns the UUID stamped into this catalog when it was
// first created, stable across restarts of the same database directory.
func (c *Catalog) InstanceID(ctx context.Context) (string, error) {
	var id string
	if err := c.db.QueryRowContext(ctx, "SELECT id FROM instance LIMIT 1").Scan(&id); err != nil {
		return "", fmt.Errorf("read instance id: %w", err)
	}
	return id, nil
}

// NodeHighWaterMark / RelHighWaterMark back alloc_node/alloc_rel's
// fallback when the free list is empty (spec section 4.2).
func (c *Catalog) NodeHighWaterMark(ctx context.Context) (uint64, error) {
	return c.readMeta(ctx, metaNodeHighWater)
}

func (c *Catalog) SetNodeHighWaterMark(ctx context.Context, v uint64) error {
	return c.writeMeta(ctx, metaNodeHighWater, v)
}

func (c *Catalog) RelHighWaterMark(ctx context.Context) (uint64, error) {
	return c.readMeta(ctx, metaRelHighWater)
}

func (c *Catalog) SetRelHighWaterMark(ctx context.Context, v uint64) error {
	return c.writeMeta(ctx, metaRelHighWater, v)
}

func (c *Catalog) readMeta(ctx context.Context, key string) (uint64, error) {
	var v int64
	err := c.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read metadata %s: %w", key, err)
	}
	return uint64(v), nil
}

func (c *Catalog) writeMeta(ctx context.Context, key string, v uint64) error {
	_, err := c.db.ExecContext(ctx,
		"INSERT INTO metadata(key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, int64(v))
	if err != nil {
		return fmt.Errorf("write metadata %s: %w", key, err)
	}
	return nil
}
