package store

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// pageHeaderSize is the size, in bytes, of the non-cryptographic checksum
// prefix at the start of every memory-mapped page (spec section 4.2).
// xxh3 is used for the same reason jpl-au-folio reaches for it over a
// cryptographic hash: a fast, well-distributed 64-bit digest is exactly
// what a page-corruption tripwire needs, nothing more.
const pageHeaderSize = 8

// DefaultPageSize matches the "typically 4 KiB" granularity from spec
// section 4.2.
const DefaultPageSize = 4096

// pageHash computes the checksum of a page's payload (the bytes after
// the header).
func pageHash(payload []byte) uint64 {
	return xxh3.Hash(payload)
}

// stampPage recomputes and writes the header for the page starting at
// pageStart within data.
func stampPage(data []byte, pageStart, pageSize int) {
	payload := data[pageStart+pageHeaderSize : pageStart+pageSize]
	binary.LittleEndian.PutUint64(data[pageStart:pageStart+pageHeaderSize], pageHash(payload))
}

// verifyPage checks the page starting at pageStart against its stored
// checksum, returning false on mismatch.
func verifyPage(data []byte, pageStart, pageSize int) bool {
	want := binary.LittleEndian.Uint64(data[pageStart : pageStart+pageHeaderSize])
	payload := data[pageStart+pageHeaderSize : pageStart+pageSize]
	return pageHash(payload) == want
}

// slotLocation describes where a fixed-size record lives within a
// paginated mmap file: which page, and the byte offset of the slot
// within the file as a whole.
type slotLocation struct {
	pageStart  int
	fileOffset int
}

// locateSlot computes the page and file-relative byte offset for record
// id given a fixed record size and page size. Records never straddle a
// page boundary; a page holds slotsPerPage records and leaves the
// remainder of the page unused (the same trade-off fixed-slot mmap
// stores like the teacher's slotcache accept for simplicity).
func locateSlot(id uint64, recordSize, pageSize int) slotLocation {
	payload := pageSize - pageHeaderSize
	slotsPerPage := payload / recordSize
	pageIndex := int(id) / slotsPerPage
	slotInPage := int(id) % slotsPerPage
	pageStart := pageIndex * pageSize
	offset := pageStart + pageHeaderSize + slotInPage*recordSize
	return slotLocation{pageStart: pageStart, fileOffset: offset}
}

// slotsPerPage returns how many fixed-size records of recordSize fit in
// one page's payload area.
func slotsPerPage(recordSize, pageSize int) int {
	return (pageSize - pageHeaderSize) / recordSize
}

// bytesForSlots returns the minimum file size, rounded up to a whole
// number of pages, needed to hold capacity records of recordSize.
func bytesForSlots(capacity uint64, recordSize, pageSize int) int64 {
	spp := int64(slotsPerPage(recordSize, pageSize))
	pages := (int64(capacity) + spp - 1) / spp
	if pages == 0 {
		pages = 1
	}
	return pages * int64(pageSize)
}
