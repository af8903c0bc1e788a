package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/graphdb-core/graphdb/internal/errs"
)

func open(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGetOrCreateLabelRoundtrip(t *testing.T) {
	c := open(t)
	ctx := context.Background()

	id, err := c.GetOrCreateLabel(ctx, "Person")
	if err != nil {
		t.Fatalf("GetOrCreateLabel: %v", err)
	}

	again, err := c.GetOrCreateLabel(ctx, "Person")
	if err != nil {
		t.Fatalf("GetOrCreateLabel (repeat): %v", err)
	}
	if id != again {
		t.Fatalf("expected identical id for repeat name, got %d and %d", id, again)
	}

	name, err := c.LookupLabelName(ctx, id)
	if err != nil {
		t.Fatalf("LookupLabelName: %v", err)
	}
	if name != "Person" {
		t.Fatalf("LookupLabelName = %q, want Person", name)
	}

	gotID, ok, err := c.LookupLabelID(ctx, "Person")
	if err != nil || !ok || gotID != id {
		t.Fatalf("LookupLabelID = %d, %v, %v; want %d, true, nil", gotID, ok, err, id)
	}
}

func TestLookupUnknownIDReturnsNotFound(t *testing.T) {
	c := open(t)
	ctx := context.Background()

	_, err := c.LookupLabelName(ctx, 999)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDistinctNamesGetDistinctIDs(t *testing.T) {
	c := open(t)
	ctx := context.Background()

	a, err := c.GetOrCreateLabel(ctx, "Person")
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.GetOrCreateLabel(ctx, "Company")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("distinct names should not share an id")
	}
}

func TestLabelsAndTypesAndKeysAreIndependentNamespaces(t *testing.T) {
	c := open(t)
	ctx := context.Background()

	labelID, err := c.GetOrCreateLabel(ctx, "KNOWS")
	if err != nil {
		t.Fatal(err)
	}
	typeID, err := c.GetOrCreateType(ctx, "KNOWS")
	if err != nil {
		t.Fatal(err)
	}
	// Same name in different namespaces may or may not collide numerically;
	// what matters is that each namespace resolves independently.
	name, err := c.LookupTypeName(ctx, typeID)
	if err != nil || name != "KNOWS" {
		t.Fatalf("LookupTypeName = %q, %v", name, err)
	}
	name, err = c.LookupLabelName(ctx, labelID)
	if err != nil || name != "KNOWS" {
		t.Fatalf("LookupLabelName = %q, %v", name, err)
	}
}

func TestMetadataHighWaterMarks(t *testing.T) {
	c := open(t)
	ctx := context.Background()

	hw, err := c.NodeHighWaterMark(ctx)
	if err != nil || hw != 0 {
		t.Fatalf("initial high water mark = %d, %v; want 0, nil", hw, err)
	}
	if err := c.SetNodeHighWaterMark(ctx, 42); err != nil {
		t.Fatal(err)
	}
	hw, err = c.NodeHighWaterMark(ctx)
	if err != nil || hw != 42 {
		t.Fatalf("high water mark after set = %d, %v; want 42, nil", hw, err)
	}
}

func TestEpochRoundtrip(t *testing.T) {
	c := open(t)
	ctx := context.Background()
	if err := c.SetEpoch(ctx, 7); err != nil {
		t.Fatal(err)
	}
	got, err := c.Epoch(ctx)
	if err != nil || got != 7 {
		t.Fatalf("Epoch = %d, %v; want 7, nil", got, err)
	}
}

func TestBumpStatAccumulates(t *testing.T) {
	c := open(t)
	ctx := context.Background()

	labelID, err := c.GetOrCreateLabel(ctx, "Person")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.BumpStat(ctx, StatLabel, labelID, 3); err != nil {
		t.Fatal(err)
	}
	if err := c.BumpStat(ctx, StatLabel, labelID, 2); err != nil {
		t.Fatal(err)
	}
	if err := c.BumpStat(ctx, StatLabel, labelID, -1); err != nil {
		t.Fatal(err)
	}
	count, err := c.StatCount(ctx, StatLabel, labelID)
	if err != nil || count != 4 {
		t.Fatalf("StatCount = %d, %v; want 4, nil", count, err)
	}
}

func TestSchemaVersionMismatchIsCatalogCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.db.Exec("UPDATE schema_info SET version = ?", schemaVersion+1); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = Open(context.Background(), path)
	if !errors.Is(err, errs.ErrCatalogCorrupt) {
		t.Fatalf("expected ErrCatalogCorrupt, got %v", err)
	}
}
