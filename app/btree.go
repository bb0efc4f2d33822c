package main

// This file implements the B-tree navigator: descent shared by table scans,
// rowid point lookups, and index key lookups.

// tableBTreeScan walks from root looking for the first cell with
// rowid >= target. It returns found=false once descent reaches a leaf with
// no qualifying cell.
func (db *Db) tableBTreeScan(root uint32, target uint64) (rowid uint64, rec *Record, found bool, err error) {
	page := root
	for {
		view, err := db.Page(page)
		if err != nil {
			return 0, nil, false, err
		}
		header, err := view.Header()
		if err != nil {
			return 0, nil, false, err
		}

		switch header.Type {
		case PageInteriorTable:
			child, err := findTableChild(view, header, target)
			if err != nil {
				return 0, nil, false, err
			}
			page = child

		case PageLeafTable:
			var prevRowid uint64
			strict := db.config.Validation == ValidationStrict
			for i := 0; i < int(header.NumCells); i++ {
				cellRowid, cellRec, err := view.LeafTableCell(header, i)
				if err != nil {
					return 0, nil, false, err
				}
				if strict && i > 0 && cellRowid < prevRowid {
					return 0, nil, false, NewDatabaseError("table_btree_scan", ErrNonMonotonicRowid, map[string]any{"page": page})
				}
				prevRowid = cellRowid
				if cellRowid >= target {
					return cellRowid, cellRec, true, nil
				}
			}
			return 0, nil, false, nil

		default:
			return 0, nil, false, NewDatabaseError("table_btree_scan", ErrInvalidPageType, map[string]any{"page": page, "type": header.Type})
		}
	}
}

// findTableChild returns the left_child of the first interior cell whose
// rowid >= target, or the right-most child if none qualifies.
func findTableChild(view *PageView, header PageHeader, target uint64) (uint32, error) {
	for i := 0; i < int(header.NumCells); i++ {
		left, rowid, err := view.InteriorTableCell(header, i)
		if err != nil {
			return 0, err
		}
		if rowid >= target {
			return left, nil
		}
	}
	if header.RightMostChild == 0 {
		return 0, NewDatabaseError("table_btree_scan", ErrMissingRightChild, nil)
	}
	return header.RightMostChild, nil
}

// TableCursor yields rows of a table B-tree in ascending rowid order with
// no duplicates. It re-descends from the root on every step rather than
// keeping a cursor stack: O(depth) per row, but the cursor carries no
// per-page state between steps.
type TableCursor struct {
	db     *Db
	root   uint32
	target uint64
}

func (db *Db) NewTableCursor(root uint32) *TableCursor {
	return &TableCursor{db: db, root: root, target: 0}
}

// Next advances the cursor. ok is false once the scan is exhausted.
func (c *TableCursor) Next() (rowid uint64, rec *Record, ok bool, err error) {
	rowid, rec, found, err := c.db.tableBTreeScan(c.root, c.target)
	if err != nil || !found {
		return 0, nil, false, err
	}
	c.target = rowid + 1
	return rowid, rec, true, nil
}

// TableLookup performs a rowid point lookup: identical descent to a scan,
// with the returned cell's rowid confirmed against the target.
func (db *Db) TableLookup(root uint32, rowid uint64) (*Record, bool, error) {
	gotRowid, rec, found, err := db.tableBTreeScan(root, rowid)
	if err != nil {
		return nil, false, err
	}
	if !found || gotRowid != rowid {
		return nil, false, nil
	}
	return rec, true, nil
}

// indexRowid extracts the rowid tiebreaker from an index record, stored as
// an ordinary integer column at the end of the (key, rowid) pair.
func indexRowid(rec *Record) (uint64, bool) {
	if len(rec.Values) == 0 {
		return 0, false
	}
	v := rec.Values[len(rec.Values)-1]
	if v.Kind != KindInt {
		return 0, false
	}
	return uint64(v.Int), true
}

// indexKey extracts the indexed column value, the first column of a
// (key, rowid) pair.
func indexKey(rec *Record) (RecordValue, bool) {
	return rec.Column(0)
}

// compareIndexKeys orders two single-column index keys. Text keys compare
// bytewise; Int keys compare numerically; mismatched kinds fall back to
// comparing rendered text.
func compareIndexKeys(a, b RecordValue) int {
	if a.Kind == KindText && b.Kind == KindText {
		switch {
		case a.Text < b.Text:
			return -1
		case a.Text > b.Text:
			return 1
		default:
			return 0
		}
	}
	if (a.Kind == KindInt || a.Kind == KindPrimaryKey) && (b.Kind == KindInt || b.Kind == KindPrimaryKey) {
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	}
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// indexBTreeSearch walks from root looking for a leaf cell whose key equals
// target and whose rowid is strictly greater than lastSeenRowid. The
// interior-match fallback is carried across levels so a key that only lives
// in an interior cell is still yielded once its leaf has been exhausted.
func (db *Db) indexBTreeSearch(root uint32, lastSeenRowid uint64, target RecordValue) (rowid uint64, found bool, err error) {
	page := root
	var fallbackRowid uint64
	hasFallback := false

	for {
		view, err := db.Page(page)
		if err != nil {
			return 0, false, err
		}
		header, err := view.Header()
		if err != nil {
			return 0, false, err
		}

		switch header.Type {
		case PageInteriorIndex:
			child, matchRowid, hasMatch, err := findIndexChild(view, header, target)
			if err != nil {
				return 0, false, err
			}
			if hasMatch {
				fallbackRowid, hasFallback = matchRowid, true
			}
			page = child

		case PageLeafIndex:
			for i := 0; i < int(header.NumCells); i++ {
				rec, err := view.LeafIndexCell(header, i)
				if err != nil {
					return 0, false, err
				}
				key, ok := indexKey(rec)
				if !ok {
					continue
				}
				cellRowid, ok := indexRowid(rec)
				if !ok {
					continue
				}
				if compareIndexKeys(key, target) == 0 && cellRowid > lastSeenRowid {
					return cellRowid, true, nil
				}
			}
			if hasFallback && fallbackRowid > lastSeenRowid {
				return fallbackRowid, true, nil
			}
			return 0, false, nil

		default:
			return 0, false, NewDatabaseError("index_btree_search", ErrInvalidPageType, map[string]any{"page": page, "type": header.Type})
		}
	}
}

// findIndexChild returns the left_child of the first interior cell whose
// key >= target, plus that cell's rowid as a tentative interior match; or
// the right-most child with no match if none qualifies.
func findIndexChild(view *PageView, header PageHeader, target RecordValue) (child uint32, matchRowid uint64, hasMatch bool, err error) {
	for i := 0; i < int(header.NumCells); i++ {
		left, rec, err := view.InteriorIndexCell(header, i)
		if err != nil {
			return 0, 0, false, err
		}
		key, ok := indexKey(rec)
		if !ok {
			continue
		}
		if compareIndexKeys(key, target) >= 0 {
			rowid, _ := indexRowid(rec)
			return left, rowid, true, nil
		}
	}
	if header.RightMostChild == 0 {
		return 0, 0, false, NewDatabaseError("index_btree_search", ErrMissingRightChild, nil)
	}
	return header.RightMostChild, 0, false, nil
}

// IndexCursor yields the rowids an index B-tree holds for an equality key,
// in ascending rowid order. The interior-match fallback can also yield the
// rowid of a divider cell whose key sorts after the probe key, so callers
// re-check each row they fetch.
type IndexCursor struct {
	db        *Db
	root      uint32
	key       RecordValue
	lastRowid uint64
}

func (db *Db) NewIndexCursor(root uint32, key RecordValue) *IndexCursor {
	return &IndexCursor{db: db, root: root, key: key, lastRowid: 0}
}

func (c *IndexCursor) Next() (rowid uint64, ok bool, err error) {
	rowid, found, err := c.db.indexBTreeSearch(c.root, c.lastRowid, c.key)
	if err != nil || !found {
		return 0, false, err
	}
	c.lastRowid = rowid
	return rowid, true, nil
}
