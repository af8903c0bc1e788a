package engine

import (
	"context"
	"fmt"

	"github.com/graphdb-core/graphdb/internal/catalog"
	"github.com/graphdb-core/graphdb/internal/index"
	"github.com/graphdb-core/graphdb/internal/store"
	"github.com/graphdb-core/graphdb/internal/value"
	"github.com/graphdb-core/graphdb/internal/wal"
)

// replay reapplies every committed transaction's frames to the record
// stores. It exists because the stores are mmap-backed and only
// guaranteed durable after an explicit Sync; the WAL's COMMIT frame is
// the actual durability boundary (spec section 4.3), so after an
// unclean shutdown the mmap pages can lag behind what the WAL already
// promised a caller was committed. Every committed transaction still in
// the log is replayed on each open, including ones whose effects already
// reached the stores: node and label frames rewrite the same slots using
// the frame's own epoch, a relationship already linked into its source's
// outgoing list is skipped, and property frames append a new chain
// record with the same value (newest wins).
func replay(ctx context.Context, nodes *store.NodeStore, rels *store.RelStore, props *store.PropStore, txs []wal.Transaction) error {
	for _, tx := range txs {
		for _, f := range tx.Frames {
			if err := replayFrame(ctx, nodes, rels, props, f); err != nil {
				return fmt.Errorf("replay tx %d frame %s: %w", tx.TxID, f.Type, err)
			}
		}
	}
	for _, s := range []interface{ Sync() error }{nodes, rels, props} {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("sync after replay: %w", err)
		}
	}
	return nil
}

func replayFrame(ctx context.Context, nodes *store.NodeStore, rels *store.RelStore, props *store.PropStore, f wal.Frame) error {
	switch f.Type {
	case wal.EntryNodeCreate:
		p := wal.DecodeNodeIDPayload(f.Payload)
		rec, err := nodes.ReadNode(p.NodeID)
		if err != nil {
			return err
		}
		if rec.CreatedEpoch == 0 && rec.DeletedEpoch == 0 {
			rec = store.NodeRecord{OutHead: store.NoPointer, InHead: store.NoPointer, PropHead: store.NoPointer, DeletedEpoch: store.EpochInfinite}
		}
		rec.CreatedEpoch = uint32(f.Epoch)
		return nodes.WriteNode(p.NodeID, rec)

	case wal.EntryNodeDelete:
		p := wal.DecodeNodeIDPayload(f.Payload)
		rec, err := nodes.ReadNode(p.NodeID)
		if err != nil {
			return err
		}
		rec.DeletedEpoch = uint32(f.Epoch)
		return nodes.WriteNode(p.NodeID, rec)

	case wal.EntryNodeLabelAdd:
		p := wal.DecodeNodeLabelPayload(f.Payload)
		rec, err := nodes.ReadNode(p.NodeID)
		if err != nil {
			return err
		}
		if p.LabelID < 64 {
			rec.LabelBits |= 1 << uint(p.LabelID)
			return nodes.WriteNode(p.NodeID, rec)
		}
		return nil

	case wal.EntryNodeLabelRemove:
		p := wal.DecodeNodeLabelPayload(f.Payload)
		rec, err := nodes.ReadNode(p.NodeID)
		if err != nil {
			return err
		}
		if p.LabelID < 64 {
			rec.LabelBits &^= 1 << uint(p.LabelID)
			return nodes.WriteNode(p.NodeID, rec)
		}
		return nil

	case wal.EntryRelCreate:
		p := wal.DecodeRelCreatePayload(f.Payload)
		return replayRelCreate(nodes, rels, p, f.Epoch)

	case wal.EntryRelDelete:
		p := wal.DecodeRelIDPayload(f.Payload)
		rec, err := rels.ReadRel(p.RelID)
		if err != nil {
			return err
		}
		rec.DeletedEpoch = uint32(f.Epoch)
		return rels.WriteRel(p.RelID, rec)

	case wal.EntryPropSet:
		p := wal.DecodePropSetPayload(f.Payload)
		return replayPropSet(nodes, rels, props, p)

	case wal.EntryPropRemove:
		p := wal.DecodePropRemovePayload(f.Payload)
		return replayPropRemove(nodes, rels, props, p)

	default:
		return nil
	}
}

// replayRelCreate reconstructs the splice into both doubly-linked
// adjacency lists the way createRelIter originally did, so a crash right
// after the WAL fsync but before the mmap write still leaves the graph
// in the same shape.
func replayRelCreate(nodes *store.NodeStore, rels *store.RelStore, p wal.RelCreatePayload, epoch uint64) error {
	src, err := nodes.ReadNode(p.Src)
	if err != nil {
		return err
	}
	dst, err := nodes.ReadNode(p.Dst)
	if err != nil {
		return err
	}
	// Already spliced before the last shutdown: splicing it again would
	// link the relationship to itself.
	if cur, err := rels.ReadRel(p.RelID); err == nil && cur.CreatedEpoch == uint32(epoch) &&
		(src.OutHead == p.RelID || cur.PrevOutOfSrc != store.NoPointer) {
		return nil
	}

	rec := store.RelRecord{
		Src: p.Src, Dst: p.Dst, TypeID: p.TypeID,
		PropHead:     store.NoPointer,
		NextOutOfSrc: src.OutHead, PrevOutOfSrc: store.NoPointer,
		NextInToDst: dst.InHead, PrevInToDst: store.NoPointer,
		CreatedEpoch: uint32(epoch), DeletedEpoch: store.EpochInfinite,
	}
	if err := rels.WriteRel(p.RelID, rec); err != nil {
		return err
	}

	if src.OutHead != store.NoPointer {
		old, err := rels.ReadRel(src.OutHead)
		if err != nil {
			return err
		}
		old.PrevOutOfSrc = p.RelID
		if err := rels.WriteRel(src.OutHead, old); err != nil {
			return err
		}
	}
	src.OutHead = p.RelID
	if err := nodes.WriteNode(p.Src, src); err != nil {
		return err
	}

	if dst.InHead != store.NoPointer {
		old, err := rels.ReadRel(dst.InHead)
		if err != nil {
			return err
		}
		old.PrevInToDst = p.RelID
		if err := rels.WriteRel(dst.InHead, old); err != nil {
			return err
		}
	}
	dst.InHead = p.RelID
	return nodes.WriteNode(p.Dst, dst)
}

func replayPropSet(nodes *store.NodeStore, rels *store.RelStore, props *store.PropStore, p wal.PropSetPayload) error {
	switch p.OwnerKind {
	case wal.PropOwnerNode:
		rec, err := nodes.ReadNode(p.OwnerID)
		if err != nil {
			return err
		}
		head, err := props.AppendRawProperty(rec.PropHead, p.KeyID, p.ValueKind, p.ValueBytes)
		if err != nil {
			return err
		}
		rec.PropHead = head
		return nodes.WriteNode(p.OwnerID, rec)
	case wal.PropOwnerRel:
		rec, err := rels.ReadRel(p.OwnerID)
		if err != nil {
			return err
		}
		head, err := props.AppendRawProperty(rec.PropHead, p.KeyID, p.ValueKind, p.ValueBytes)
		if err != nil {
			return err
		}
		rec.PropHead = head
		return rels.WriteRel(p.OwnerID, rec)
	default:
		return fmt.Errorf("unknown property owner kind %d", p.OwnerKind)
	}
}

func replayPropRemove(nodes *store.NodeStore, rels *store.RelStore, props *store.PropStore, p wal.PropRemovePayload) error {
	switch p.OwnerKind {
	case wal.PropOwnerNode:
		rec, err := nodes.ReadNode(p.OwnerID)
		if err != nil {
			return err
		}
		head, err := props.RemoveProperty(rec.PropHead, p.KeyID)
		if err != nil {
			return err
		}
		rec.PropHead = head
		return nodes.WriteNode(p.OwnerID, rec)
	case wal.PropOwnerRel:
		rec, err := rels.ReadRel(p.OwnerID)
		if err != nil {
			return err
		}
		head, err := props.RemoveProperty(rec.PropHead, p.KeyID)
		if err != nil {
			return err
		}
		rec.PropHead = head
		return rels.WriteRel(p.OwnerID, rec)
	default:
		return fmt.Errorf("unknown property owner kind %d", p.OwnerKind)
	}
}

// rebuildIndexes scans every allocated node/relationship once to
// repopulate the label index, type index, and every registered property
// index. These are pure in-memory caches - nothing persists them - so
// they must be rebuilt from the now WAL-caught-up stores on every open,
// independent of whether a crash happened.
func rebuildIndexes(ctx context.Context, cat *catalog.Catalog, nodes *store.NodeStore, rels *store.RelStore, props *store.PropStore, labels *index.LabelIndex, types *index.TypeIndex, propIdx *index.PropIndexSet) error {
	registered, err := cat.ListPropIndexes(ctx)
	if err != nil {
		return fmt.Errorf("list registered prop indexes: %w", err)
	}
	for _, k := range registered {
		propIdx.Create(index.PropKey{Label: k.Label, Key: k.Key})
	}

	nodeHW, err := cat.NodeHighWaterMark(ctx)
	if err != nil {
		return fmt.Errorf("read node high water mark: %w", err)
	}
	snapshot, err := cat.Epoch(ctx)
	if err != nil {
		return fmt.Errorf("read epoch: %w", err)
	}

	for id := uint64(0); id < nodeHW; id++ {
		rec, err := nodes.ReadNode(id)
		if err != nil {
			return fmt.Errorf("read node %d: %w", id, err)
		}
		if !rec.Visible(snapshot) {
			continue
		}
		for label := uint32(0); label < 64; label++ {
			if rec.HasLabel(label) {
				labels.Add(label, id)
			}
		}
		if len(registered) == 0 {
			continue
		}
		chain, err := props.ReadChain(rec.PropHead)
		if err != nil {
			return fmt.Errorf("read node %d property chain: %w", id, err)
		}
		for _, k := range registered {
			// Property indexes are only maintained for the inline 64-bit
			// label fast path; a label id at or beyond that is tracked
			// solely by the label index, not here, same limitation scan.go
			// documents for nodeByLabelScan.
			if k.Label >= 64 || !rec.HasLabel(k.Label) {
				continue
			}
			if v, ok := chain[k.Key]; ok {
				propIdx.OnPropertySet(k.Label, k.Key, id, value.Null, v)
			}
		}
	}

	relHW, err := cat.RelHighWaterMark(ctx)
	if err != nil {
		return fmt.Errorf("read rel high water mark: %w", err)
	}
	for id := uint64(0); id < relHW; id++ {
		rec, err := rels.ReadRel(id)
		if err != nil {
			return fmt.Errorf("read rel %d: %w", id, err)
		}
		if !rec.Visible(snapshot) {
			continue
		}
		types.Add(rec.TypeID, id)
	}
	return nil
}
