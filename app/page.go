package main

import (
	"encoding/binary"
	"io"
	"sync"
)

// Source is the byte-addressable blob a database is opened over. Callers
// supply any io.ReaderAt (a file, a byte slice wrapped in bytes.Reader, ...).
type Source interface {
	io.ReaderAt
	io.Closer
}

// PageType tags the four cell layouts a B-tree page can hold.
type PageType byte

const (
	PageInteriorIndex PageType = 0x02
	PageInteriorTable PageType = 0x05
	PageLeafIndex     PageType = 0x0A
	PageLeafTable     PageType = 0x0D
)

func (t PageType) valid() bool {
	switch t {
	case PageInteriorIndex, PageInteriorTable, PageLeafIndex, PageLeafTable:
		return true
	}
	return false
}

func (t PageType) isLeaf() bool {
	return t == PageLeafIndex || t == PageLeafTable
}

func (t PageType) headerSize() int {
	if t.isLeaf() {
		return 8
	}
	return 12
}

// PageHeader is the decoded 8- or 12-byte B-tree page header.
type PageHeader struct {
	Type                PageType
	FirstFreeblock      uint16
	NumCells            uint16
	CellContentStart    uint16
	FragmentedFreeBytes uint8
	RightMostChild      uint32 // only meaningful when !Type.isLeaf()
}

// PageView decodes cells from an immutable, already-loaded page buffer on
// demand. headerOffset is 100 for page 1 (it embeds the 100-byte file
// header before its own page header) and 0 for every other page.
type PageView struct {
	buf          []byte
	headerOffset int
}

func (p *PageView) Header() (PageHeader, error) {
	b, err := readN(p.buf, p.headerOffset, 1)
	if err != nil {
		return PageHeader{}, NewDatabaseError("parse_page_header", err, nil)
	}
	t := PageType(b[0])
	if !t.valid() {
		return PageHeader{}, NewDatabaseError("parse_page_header", ErrInvalidPageType, map[string]any{"byte": b[0]})
	}
	rest, err := readN(p.buf, p.headerOffset+1, t.headerSize()-1)
	if err != nil {
		return PageHeader{}, NewDatabaseError("parse_page_header", err, nil)
	}
	h := PageHeader{
		Type:                t,
		FirstFreeblock:      binary.BigEndian.Uint16(rest[0:2]),
		NumCells:            binary.BigEndian.Uint16(rest[2:4]),
		CellContentStart:    binary.BigEndian.Uint16(rest[4:6]),
		FragmentedFreeBytes: rest[6],
	}
	if !t.isLeaf() {
		h.RightMostChild = binary.BigEndian.Uint32(rest[7:11])
	}
	return h, nil
}

// cellOffset returns the page-relative byte offset of the i'th cell, read
// from the cell-pointer array that immediately follows the page header.
func (p *PageView) cellOffset(h PageHeader, i int) (int, error) {
	if i < 0 || i >= int(h.NumCells) {
		return 0, NewDatabaseError("cell_pointer", ErrCellOffsetOutOfRange, map[string]any{"index": i, "num_cells": h.NumCells})
	}
	ptrOffset := p.headerOffset + h.Type.headerSize() + i*2
	raw, err := readN(p.buf, ptrOffset, 2)
	if err != nil {
		return 0, NewDatabaseError("cell_pointer", err, nil)
	}
	off := int(binary.BigEndian.Uint16(raw))
	if off <= 0 || off > len(p.buf) {
		return 0, NewDatabaseError("cell_pointer", ErrCellOffsetOutOfRange, map[string]any{"index": i, "offset": off})
	}
	return off, nil
}

// InteriorTableCell returns the i'th (left_child, rowid) pair of an
// InteriorTable page.
func (p *PageView) InteriorTableCell(h PageHeader, i int) (leftChild uint32, rowid uint64, err error) {
	off, err := p.cellOffset(h, i)
	if err != nil {
		return 0, 0, err
	}
	raw, err := readN(p.buf, off, 4)
	if err != nil {
		return 0, 0, NewDatabaseError("decode_interior_table_cell", err, nil)
	}
	leftChild = binary.BigEndian.Uint32(raw)
	rowid, _, err = readVarint(p.buf, off+4)
	if err != nil {
		return 0, 0, NewDatabaseError("decode_interior_table_cell", err, nil)
	}
	return leftChild, rowid, nil
}

// LeafTableCell returns the i'th (rowid, record) pair of a LeafTable page.
func (p *PageView) LeafTableCell(h PageHeader, i int) (rowid uint64, rec *Record, err error) {
	off, err := p.cellOffset(h, i)
	if err != nil {
		return 0, nil, err
	}
	payloadSize, n1, err := readVarint(p.buf, off)
	if err != nil {
		return 0, nil, NewDatabaseError("decode_leaf_table_cell", err, nil)
	}
	rowid, n2, err := readVarint(p.buf, off+n1)
	if err != nil {
		return 0, nil, NewDatabaseError("decode_leaf_table_cell", err, nil)
	}
	payload, err := readN(p.buf, off+n1+n2, int(payloadSize))
	if err != nil {
		return 0, nil, NewDatabaseError("decode_leaf_table_cell", err, nil)
	}
	rec, err = DecodeRecord(payload)
	if err != nil {
		return 0, nil, err
	}
	return rowid, rec, nil
}

// InteriorIndexCell returns the i'th (left_child, key record) pair of an
// InteriorIndex page.
func (p *PageView) InteriorIndexCell(h PageHeader, i int) (leftChild uint32, rec *Record, err error) {
	off, err := p.cellOffset(h, i)
	if err != nil {
		return 0, nil, err
	}
	raw, err := readN(p.buf, off, 4)
	if err != nil {
		return 0, nil, NewDatabaseError("decode_interior_index_cell", err, nil)
	}
	leftChild = binary.BigEndian.Uint32(raw)
	payloadSize, n1, err := readVarint(p.buf, off+4)
	if err != nil {
		return 0, nil, NewDatabaseError("decode_interior_index_cell", err, nil)
	}
	payload, err := readN(p.buf, off+4+n1, int(payloadSize))
	if err != nil {
		return 0, nil, NewDatabaseError("decode_interior_index_cell", err, nil)
	}
	rec, err = DecodeRecord(payload)
	if err != nil {
		return 0, nil, err
	}
	return leftChild, rec, nil
}

// LeafIndexCell returns the i'th record of a LeafIndex page.
func (p *PageView) LeafIndexCell(h PageHeader, i int) (rec *Record, err error) {
	off, err := p.cellOffset(h, i)
	if err != nil {
		return nil, err
	}
	payloadSize, n1, err := readVarint(p.buf, off)
	if err != nil {
		return nil, NewDatabaseError("decode_leaf_index_cell", err, nil)
	}
	payload, err := readN(p.buf, off+n1, int(payloadSize))
	if err != nil {
		return nil, NewDatabaseError("decode_leaf_index_cell", err, nil)
	}
	return DecodeRecord(payload)
}

// FileHeader is the subset of the 100-byte SQLite file header this engine
// consumes: only the page size.
type FileHeader struct {
	PageSize uint32
}

func parseFileHeader(buf []byte) (FileHeader, error) {
	if len(buf) < 100 {
		return FileHeader{}, NewDatabaseError("parse_file_header", ErrUnexpectedEOF, nil)
	}
	size := binary.BigEndian.Uint16(buf[16:18])
	if size == 1 {
		// SQLite encodes a 65536-byte page size as 1 since it overflows u16.
		return FileHeader{PageSize: 65536}, nil
	}
	return FileHeader{PageSize: uint32(size)}, nil
}

// Db is the page cache and schema cache for one opened database file. Pages
// are read lazily and cached for the database's lifetime, with no eviction;
// once populated a page buffer is never mutated, so views over it can be
// shared freely.
type Db struct {
	source Source
	header FileHeader
	config *DatabaseConfig

	sourceMu sync.Mutex // serializes reads from source
	cacheMu  sync.Mutex // serializes page-cache mutation
	pages    map[uint32][]byte

	schemaMu sync.Mutex
	schema   []SchemaEntry // nil until first resolved
	tables   map[string]*Table
	indexes  map[string]*Index
}

// Open reads the 100-byte file header from source and returns a Db ready to
// serve page and schema queries. It never writes to source.
func Open(source Source, opts ...DatabaseOption) (*Db, error) {
	cfg := DefaultDatabaseConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	buf := make([]byte, 100)
	if _, err := source.ReadAt(buf, 0); err != nil {
		return nil, NewDatabaseError("open", err, nil)
	}
	header, err := parseFileHeader(buf)
	if err != nil {
		return nil, err
	}

	return &Db{
		source: source,
		header: header,
		config: cfg,
		pages:  make(map[uint32][]byte, cfg.PageCacheHint),
	}, nil
}

func (db *Db) PageSize() uint32 { return db.header.PageSize }

func (db *Db) Close() error { return db.source.Close() }

// Page returns a decoded view over page n (1-based). The underlying buffer
// is read once and cached for the lifetime of db.
func (db *Db) Page(n uint32) (*PageView, error) {
	if n == 0 {
		return nil, NewDatabaseError("load_page", ErrInvalidPageNumber, map[string]any{"page": n})
	}

	db.cacheMu.Lock()
	buf, ok := db.pages[n]
	db.cacheMu.Unlock()
	if ok {
		headerOffset := 0
		if n == 1 {
			headerOffset = 100
		}
		return &PageView{buf: buf, headerOffset: headerOffset}, nil
	}

	pageSize := int64(db.header.PageSize)
	buf = make([]byte, pageSize)

	db.sourceMu.Lock()
	_, err := db.source.ReadAt(buf, int64(n-1)*pageSize)
	db.sourceMu.Unlock()
	if err != nil {
		return nil, NewDatabaseError("load_page", err, map[string]any{"page": n})
	}

	db.cacheMu.Lock()
	db.pages[n] = buf
	db.cacheMu.Unlock()

	headerOffset := 0
	if n == 1 {
		headerOffset = 100
	}
	return &PageView{buf: buf, headerOffset: headerOffset}, nil
}
