package main

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// Test fixtures are built byte for byte in memory rather than checked in as
// binary files, so every test is self-contained and the on-disk layout being
// exercised is visible right here.

const fixturePageSize = 4096

// encodeVarint is the inverse of readVarint, used only to build fixtures and
// to drive the round-trip property test.
func encodeVarint(v uint64) []byte {
	if v >= 1<<56 {
		// 9-byte form: 8 leading bytes of 7 bits, final byte carries 8.
		b := make([]byte, 9)
		b[8] = byte(v)
		v >>= 8
		for i := 7; i >= 0; i-- {
			b[i] = byte(v&0x7f) | 0x80
			v >>= 7
		}
		return b
	}
	var groups []byte
	for {
		groups = append(groups, byte(v&0x7f))
		v >>= 7
		if v == 0 {
			break
		}
	}
	out := make([]byte, len(groups))
	for i := range out {
		out[i] = groups[len(groups)-1-i]
		if i != len(out)-1 {
			out[i] |= 0x80
		}
	}
	return out
}

// encodeRecord serializes values into SQLite record format, choosing the
// smallest of the 8/16/32/64-bit integer serial types (1, 2, 4, 6) that fits
// each Int; the 24-bit and 48-bit types are never emitted.
func encodeRecord(values ...RecordValue) []byte {
	var stBytes []byte
	var body []byte
	for _, v := range values {
		switch v.Kind {
		case KindNull:
			stBytes = append(stBytes, encodeVarint(0)...)
		case KindInt:
			switch n := v.Int; {
			case n >= -(1<<7) && n < 1<<7:
				stBytes = append(stBytes, encodeVarint(1)...)
				body = append(body, byte(n))
			case n >= -(1<<15) && n < 1<<15:
				stBytes = append(stBytes, encodeVarint(2)...)
				body = binary.BigEndian.AppendUint16(body, uint16(n))
			case n >= -(1<<31) && n < 1<<31:
				stBytes = append(stBytes, encodeVarint(4)...)
				body = binary.BigEndian.AppendUint32(body, uint32(n))
			default:
				stBytes = append(stBytes, encodeVarint(6)...)
				body = binary.BigEndian.AppendUint64(body, uint64(n))
			}
		case KindText:
			stBytes = append(stBytes, encodeVarint(uint64(13+2*len(v.Text)))...)
			body = append(body, v.Text...)
		case KindBlob:
			stBytes = append(stBytes, encodeVarint(uint64(12+2*len(v.Blob)))...)
			body = append(body, v.Blob...)
		default:
			panic("encodeRecord: unsupported kind")
		}
	}
	headerSize := len(stBytes) + 1
	if headerSize >= 128 {
		panic("encodeRecord: fixture record header too large")
	}
	out := append(encodeVarint(uint64(headerSize)), stBytes...)
	return append(out, body...)
}

func leafTableCell(rowid uint64, payload []byte) []byte {
	out := append(encodeVarint(uint64(len(payload))), encodeVarint(rowid)...)
	return append(out, payload...)
}

func interiorTableCell(leftChild uint32, rowid uint64) []byte {
	out := binary.BigEndian.AppendUint32(nil, leftChild)
	return append(out, encodeVarint(rowid)...)
}

func leafIndexCell(payload []byte) []byte {
	return append(encodeVarint(uint64(len(payload))), payload...)
}

func interiorIndexCell(leftChild uint32, payload []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, leftChild)
	out = append(out, encodeVarint(uint64(len(payload)))...)
	return append(out, payload...)
}

// buildPage lays out one page: the B-tree header (after the 100-byte file
// header on page 1), the cell-pointer array, and the cells packed at the end
// of the page.
func buildPage(page1 bool, typ PageType, rightMost uint32, cells [][]byte) []byte {
	buf := make([]byte, fixturePageSize)
	base := 0
	if page1 {
		copy(buf, "SQLite format 3\x00")
		binary.BigEndian.PutUint16(buf[16:18], fixturePageSize)
		base = 100
	}

	buf[base] = byte(typ)
	binary.BigEndian.PutUint16(buf[base+3:base+5], uint16(len(cells)))
	if !typ.isLeaf() {
		binary.BigEndian.PutUint32(buf[base+8:base+12], rightMost)
	}

	off := fixturePageSize
	for i := len(cells) - 1; i >= 0; i-- {
		off -= len(cells[i])
		copy(buf[off:], cells[i])
		ptrOff := base + typ.headerSize() + i*2
		binary.BigEndian.PutUint16(buf[ptrOff:ptrOff+2], uint16(off))
	}
	binary.BigEndian.PutUint16(buf[base+5:base+7], uint16(off%fixturePageSize))
	return buf
}

func schemaCell(rowid uint64, objType, name, tblName string, rootPage int64, sql string) []byte {
	return leafTableCell(rowid, encodeRecord(
		TextValue(objType), TextValue(name), TextValue(tblName), IntValue(rootPage), TextValue(sql),
	))
}

// buildFruitDB is the sample.db analog: three tables, single-page each, one
// of them empty. Page layout:
//
//	1: schema (apples -> 2, oranges -> 3, grapes -> 4)
//	2: apples, 4 rows, INTEGER PRIMARY KEY id stored as Null
//	3: oranges, 6 rows
//	4: grapes, empty leaf
func buildFruitDB() []byte {
	page1 := buildPage(true, PageLeafTable, 0, [][]byte{
		schemaCell(1, "table", "apples", "apples", 2,
			"create table apples (id integer primary key autoincrement, name text, color text)"),
		schemaCell(2, "table", "oranges", "oranges", 3,
			"create table oranges (id integer primary key autoincrement, name text, description text)"),
		schemaCell(3, "table", "grapes", "grapes", 4,
			"create table grapes (name text, color text)"),
	})

	apples := buildPage(false, PageLeafTable, 0, [][]byte{
		leafTableCell(1, encodeRecord(NullValue(), TextValue("Granny Smith"), TextValue("Light Green"))),
		leafTableCell(2, encodeRecord(NullValue(), TextValue("Fuji"), TextValue("Red"))),
		leafTableCell(3, encodeRecord(NullValue(), TextValue("Honeycrisp"), TextValue("Blush Red"))),
		leafTableCell(4, encodeRecord(NullValue(), TextValue("Golden Delicious"), TextValue("Yellow"))),
	})

	oranges := buildPage(false, PageLeafTable, 0, [][]byte{
		leafTableCell(1, encodeRecord(NullValue(), TextValue("Mandarin"), TextValue("great for snacking"))),
		leafTableCell(2, encodeRecord(NullValue(), TextValue("Tangelo"), TextValue("sweet and tart"))),
		leafTableCell(3, encodeRecord(NullValue(), TextValue("Tangerine"), TextValue("great for snacking"))),
		leafTableCell(4, encodeRecord(NullValue(), TextValue("Clementine"), TextValue("usually seedless"))),
		leafTableCell(5, encodeRecord(NullValue(), TextValue("Valencia Orange"), TextValue("best for juicing"))),
		leafTableCell(6, encodeRecord(NullValue(), TextValue("Navel Orange"), TextValue("sweet with slight bitterness"))),
	})

	grapes := buildPage(false, PageLeafTable, 0, nil)

	return bytes.Join([][]byte{page1, apples, oranges, grapes}, nil)
}

// buildHeroDB exercises the multi-page paths: a two-level table B-tree and a
// two-level index B-tree whose divider cell holds a live (key, rowid) entry,
// the shape the interior-match fallback exists for. Page layout:
//
//	1: schema (superheroes -> 2, idx_eye_color -> 5)
//	2: table interior, child 3 (rowids <= 3), right-most 4
//	3: table leaf, rows 1-3
//	4: table leaf, rows 4-7
//	5: index interior, child 6, divider ("Pink Eyes", 6), right-most 7
//	6: index leaf: (Blue,1) (Blue,5) (Green,3) (Pink Eyes,2) (Pink Eyes,4)
//	7: index leaf: (Red Eyes,7)
func buildHeroDB() []byte {
	page1 := buildPage(true, PageLeafTable, 0, [][]byte{
		schemaCell(1, "table", "superheroes", "superheroes", 2,
			"create table superheroes (id integer primary key autoincrement, name text, eye_color text)"),
		schemaCell(2, "index", "idx_eye_color", "superheroes", 5,
			"create index idx_eye_color on superheroes (eye_color)"),
	})

	interior := buildPage(false, PageInteriorTable, 4, [][]byte{
		interiorTableCell(3, 3),
	})

	leafLow := buildPage(false, PageLeafTable, 0, [][]byte{
		leafTableCell(1, encodeRecord(NullValue(), TextValue("Superman"), TextValue("Blue"))),
		leafTableCell(2, encodeRecord(NullValue(), TextValue("Pinky"), TextValue("Pink Eyes"))),
		leafTableCell(3, encodeRecord(NullValue(), TextValue("Hulk"), TextValue("Green"))),
	})

	leafHigh := buildPage(false, PageLeafTable, 0, [][]byte{
		leafTableCell(4, encodeRecord(NullValue(), TextValue("Joker"), TextValue("Pink Eyes"))),
		leafTableCell(5, encodeRecord(NullValue(), TextValue("Batman"), TextValue("Blue"))),
		leafTableCell(6, encodeRecord(NullValue(), TextValue("Medusa"), TextValue("Pink Eyes"))),
		leafTableCell(7, encodeRecord(NullValue(), TextValue("Carrie"), TextValue("Red Eyes"))),
	})

	idxEntry := func(key string, rowid int64) []byte {
		return encodeRecord(TextValue(key), IntValue(rowid))
	}

	idxInterior := buildPage(false, PageInteriorIndex, 7, [][]byte{
		interiorIndexCell(6, idxEntry("Pink Eyes", 6)),
	})

	idxLeafLow := buildPage(false, PageLeafIndex, 0, [][]byte{
		leafIndexCell(idxEntry("Blue", 1)),
		leafIndexCell(idxEntry("Blue", 5)),
		leafIndexCell(idxEntry("Green", 3)),
		leafIndexCell(idxEntry("Pink Eyes", 2)),
		leafIndexCell(idxEntry("Pink Eyes", 4)),
	})

	idxLeafHigh := buildPage(false, PageLeafIndex, 0, [][]byte{
		leafIndexCell(idxEntry("Red Eyes", 7)),
	})

	return bytes.Join([][]byte{page1, interior, leafLow, leafHigh, idxInterior, idxLeafLow, idxLeafHigh}, nil)
}

// memSource adapts an in-memory fixture to the Source interface.
type memSource struct {
	*bytes.Reader
}

func (memSource) Close() error { return nil }

func openFixture(t *testing.T, data []byte, opts ...DatabaseOption) *Db {
	t.Helper()
	db, err := Open(memSource{bytes.NewReader(data)}, opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
