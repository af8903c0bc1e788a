package store

import (
	"encoding/binary"
	"fmt"

	"github.com/graphdb-core/graphdb/internal/errs"
)

// tailFieldSize is the width of the tail pointer reserved at the very
// start of page 0's payload, immediately after its checksum header.
const tailFieldSize = 8

// arenaDataStart is where real payload bytes begin: past page 0's
// checksum header and its reserved tail field.
const arenaDataStart = pageHeaderSize + tailFieldSize

// arena is an append-only byte area backing props.store and
// strings.store. Like the fixed-slot stores it is paginated and
// checksummed; unlike them, writes only ever extend the tail. The
// current tail offset is persisted in page 0 itself (right after its
// checksum header) so a reopen recovers it without rescanning the file.
type arena struct {
	file     *mmapFile
	pageSize int
	tail     int64 // next free byte offset
}

func openArena(path string, pageSize int) (*arena, error) {
	f, err := openMmapFile(path, int64(pageSize), pageSize)
	if err != nil {
		return nil, err
	}
	a := &arena{file: f, pageSize: pageSize}
	tail, fresh, err := a.recoverTail()
	if err != nil {
		return nil, err
	}
	a.tail = tail
	if fresh {
		if err := a.writeTail(arenaDataStart); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// recoverTail reads the tail pointer out of page 0. On a brand-new file
// page 0 has never been stamped, so its checksum fails verification;
// that case is reported via fresh=true and the caller initializes it.
func (a *arena) recoverTail() (tail int64, fresh bool, err error) {
	if err := a.file.ensure(int64(a.pageSize)); err != nil {
		return 0, false, err
	}
	err = a.file.withRead(func(data []byte) error {
		if !verifyPage(data, 0, a.pageSize) {
			fresh = true
			return nil
		}
		tail = int64(binary.LittleEndian.Uint64(data[pageHeaderSize : pageHeaderSize+tailFieldSize]))
		return nil
	})
	return tail, fresh, err
}

// writeTail persists the current tail offset into page 0's reserved
// field and restamps its checksum.
func (a *arena) writeTail(tail int64) error {
	return a.file.withWrite(func(data []byte) error {
		binary.LittleEndian.PutUint64(data[pageHeaderSize:pageHeaderSize+tailFieldSize], uint64(tail))
		stampPage(data, 0, a.pageSize)
		return nil
	})
}

// append writes b at the current tail, growing and restamping pages as
// needed, and returns the offset it was written at.
func (a *arena) append(b []byte) (int64, error) {
	start := a.tail
	end := start + int64(len(b))

	// Skip any header bytes the write would land inside, so payload
	// bytes never straddle a page header.
	start = a.skipHeaders(start, int64(len(b)))
	end = start + int64(len(b))

	if err := a.file.ensure(end + int64(a.pageSize)); err != nil {
		return 0, err
	}

	err := a.file.withWrite(func(data []byte) error {
		copy(data[start:end], b)
		firstPage := int(start) / a.pageSize * a.pageSize
		lastPage := int(end-1) / a.pageSize * a.pageSize
		for p := firstPage; p <= lastPage; p += a.pageSize {
			stampPage(data, p, a.pageSize)
		}
		// Persist the new tail in page 0's reserved field so a reopen
		// can recover it; restamp page 0 if the loop above didn't
		// already cover it.
		binary.LittleEndian.PutUint64(data[pageHeaderSize:pageHeaderSize+tailFieldSize], uint64(end))
		if firstPage != 0 {
			stampPage(data, 0, a.pageSize)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	a.tail = end
	return start, nil
}

// skipHeaders advances offset past any page header bytes (and, for page
// 0, its reserved tail field) that a write of the given length would
// otherwise overlap, ensuring payload writes never span a checksum
// header.
func (a *arena) skipHeaders(offset, length int64) int64 {
	for {
		pageStart := offset / int64(a.pageSize) * int64(a.pageSize)
		payloadStart := pageStart + pageHeaderSize
		if pageStart == 0 {
			payloadStart = arenaDataStart
		}
		if offset < payloadStart {
			offset = payloadStart
			continue
		}
		payloadEnd := pageStart + int64(a.pageSize)
		if offset+length > payloadEnd {
			// Would straddle into the next page's header; push the
			// whole write to the start of the next page's payload.
			offset = payloadEnd + pageHeaderSize
			continue
		}
		return offset
	}
}

// read returns a verified copy of n bytes at offset.
func (a *arena) read(offset int64, n int) ([]byte, error) {
	if err := a.file.ensure(offset + int64(n) + int64(a.pageSize)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	err := a.file.withRead(func(data []byte) error {
		pageStart := int(offset) / a.pageSize * a.pageSize
		lastPage := int(offset+int64(n)-1) / a.pageSize * a.pageSize
		for p := pageStart; p <= lastPage; p += a.pageSize {
			if !verifyPage(data, p, a.pageSize) {
				return fmt.Errorf("%w: arena page at offset %d", errs.ErrStorageCorrupt, p)
			}
		}
		copy(out, data[offset:offset+int64(n)])
		return nil
	})
	return out, err
}

func (a *arena) close() error { return a.file.close() }
func (a *arena) sync() error  { return a.file.sync() }
