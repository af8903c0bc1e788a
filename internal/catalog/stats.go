package catalog

import (
	"context"
	"fmt"
)

// BumpStat adjusts the per-label node count or per-type relationship
// count by delta. Statistics are not transactional with user data - they
// are best-effort cardinality hints for the planner - but are persisted
// with each commit so they survive restarts (spec section 4.1).
func (c *Catalog) BumpStat(ctx context.Context, kind StatKind, id uint32, delta int64) error {
	table, err := statTable(kind)
	if err != nil {
		return err
	}
	col, err := statColumn(kind)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s(%s, count) VALUES (?, ?)
		             ON CONFLICT(%s) DO UPDATE SET count = count + excluded.count`, table, col, col),
		id, delta)
	if err != nil {
		return fmt.Errorf("bump %s stat for id %d: %w", kind, id, err)
	}
	return nil
}

// StatCount returns the current estimate for the given label/type ID.
func (c *Catalog) StatCount(ctx context.Context, kind StatKind, id uint32) (int64, error) {
	table, err := statTable(kind)
	if err != nil {
		return 0, err
	}
	col, err := statColumn(kind)
	if err != nil {
		return 0, err
	}
	var count int64
	err = c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count FROM %s WHERE %s = ?", table, col), id).Scan(&count)
	if err != nil {
		return 0, nil //nolint:nilerr // no row means zero cardinality, not an error
	}
	return count, nil
}

// AllStats returns every persisted count for the given kind, used to seed
// the planner's cost model at startup without a per-query round trip.
func (c *Catalog) AllStats(ctx context.Context, kind StatKind) (map[uint32]int64, error) {
	table, err := statTable(kind)
	if err != nil {
		return nil, err
	}
	col, err := statColumn(kind)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("SELECT %s, count FROM %s", col, table))
	if err != nil {
		return nil, fmt.Errorf("list %s stats: %w", kind, err)
	}
	defer rows.Close()

	out := make(map[uint32]int64)
	for rows.Next() {
		var id uint32
		var count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan %s stat row: %w", kind, err)
		}
		out[id] = count
	}
	return out, rows.Err()
}

func statTable(kind StatKind) (string, error) {
	switch kind {
	case StatLabel:
		return "label_stats", nil
	case StatType:
		return "type_stats", nil
	default:
		return "", fmt.Errorf("unknown stat kind %q", kind)
	}
}

func statColumn(kind StatKind) (string, error) {
	switch kind {
	case StatLabel:
		return "label_id", nil
	case StatType:
		return "type_id", nil
	default:
		return "", fmt.Errorf("unknown stat kind %q", kind)
	}
}
