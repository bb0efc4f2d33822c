package main

import (
	"math"
	"unicode/utf8"
)

// ValueKind tags which field of RecordValue is populated.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindBlob
	KindText
	// KindPrimaryKey is synthesized by the table layer (never produced by
	// DecodeRecord itself): it aliases the cell's rowid for a column
	// declared INTEGER PRIMARY KEY, whose record slot stores Null.
	KindPrimaryKey
)

// RecordValue is a decoded column value: Null | Int | Float | Blob | Text |
// PrimaryKey.
type RecordValue struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Blob  []byte
	Text  string
}

func NullValue() RecordValue { return RecordValue{Kind: KindNull} }
func IntValue(n int64) RecordValue { return RecordValue{Kind: KindInt, Int: n} }
func FloatValue(f float64) RecordValue { return RecordValue{Kind: KindFloat, Float: f} }
func BlobValue(b []byte) RecordValue { return RecordValue{Kind: KindBlob, Blob: b} }
func TextValue(s string) RecordValue { return RecordValue{Kind: KindText, Text: s} }
func PrimaryKeyValue(rowid uint64) RecordValue {
	return RecordValue{Kind: KindPrimaryKey, Int: int64(rowid)}
}

// EqualsText reports whether a Text value equals a literal, bytewise; every
// other kind never equals a string literal. The executor layers numeric
// equality on top of this for Int and Float columns.
func (v RecordValue) EqualsText(literal string) bool {
	return v.Kind == KindText && v.Text == literal
}

// String renders a value the way a result row prints it: NULL columns
// render empty, everything else renders its natural text form.
func (v RecordValue) String() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindInt, KindPrimaryKey:
		return formatInt(v.Int)
	case KindFloat:
		return formatFloat(v.Float)
	case KindBlob:
		return string(v.Blob)
	case KindText:
		return v.Text
	default:
		return ""
	}
}

// Record is a decoded table/index cell payload: a header of serial types
// followed by the body values they describe.
type Record struct {
	HeaderSize  uint64
	SerialTypes []uint64
	Values      []RecordValue
}

// Column returns the value at position i, or ok=false if the record has
// fewer columns. A record's trailing columns may be omitted on disk; the
// executor treats a missing column as absent, not Null.
func (r *Record) Column(i int) (RecordValue, bool) {
	if i < 0 || i >= len(r.Values) {
		return RecordValue{}, false
	}
	return r.Values[i], true
}

// DecodeRecord parses a record's serial-type header and body into typed
// values.
func DecodeRecord(payload []byte) (*Record, error) {
	headerSize, n, err := readVarint(payload, 0)
	if err != nil {
		return nil, NewDatabaseError("decode_record_header", err, nil)
	}
	offset := n

	var serialTypes []uint64
	for uint64(offset) < headerSize {
		st, n2, err := readVarint(payload, offset)
		if err != nil {
			return nil, NewDatabaseError("decode_record_header", ErrRecordHeaderOverrun, nil)
		}
		serialTypes = append(serialTypes, st)
		offset += n2
	}
	if uint64(offset) != headerSize {
		return nil, NewDatabaseError("decode_record_header", ErrRecordHeaderOverrun, map[string]any{
			"header_size": headerSize, "bytes_consumed": offset,
		})
	}

	values := make([]RecordValue, len(serialTypes))
	for i, st := range serialTypes {
		v, consumed, err := decodeSerialValue(st, payload, offset)
		if err != nil {
			return nil, err
		}
		values[i] = v
		offset += consumed
	}

	return &Record{HeaderSize: headerSize, SerialTypes: serialTypes, Values: values}, nil
}

// decodeSerialValue decodes one column body given its serial type.
func decodeSerialValue(serialType uint64, data []byte, offset int) (RecordValue, int, error) {
	switch serialType {
	case 0:
		return NullValue(), 0, nil
	case 1:
		b, err := readN(data, offset, 1)
		if err != nil {
			return RecordValue{}, 0, NewDatabaseError("decode_record_value", err, nil)
		}
		return IntValue(int64(int8(b[0]))), 1, nil
	case 2:
		b, err := readN(data, offset, 2)
		if err != nil {
			return RecordValue{}, 0, NewDatabaseError("decode_record_value", err, nil)
		}
		return IntValue(int64(int16(be16(b)))), 2, nil
	case 3:
		b, err := readN(data, offset, 3)
		if err != nil {
			return RecordValue{}, 0, NewDatabaseError("decode_record_value", err, nil)
		}
		return IntValue(signExtend(be24(b), 24)), 3, nil
	case 4:
		b, err := readN(data, offset, 4)
		if err != nil {
			return RecordValue{}, 0, NewDatabaseError("decode_record_value", err, nil)
		}
		return IntValue(int64(int32(be32(b)))), 4, nil
	case 5:
		// 48-bit integer: a deliberate fail, not a silent miscompute.
		return RecordValue{}, 0, NewDatabaseError("decode_record_value", ErrUnimplementedSerialType, nil)
	case 6:
		b, err := readN(data, offset, 8)
		if err != nil {
			return RecordValue{}, 0, NewDatabaseError("decode_record_value", err, nil)
		}
		return IntValue(int64(be64(b))), 8, nil
	case 7:
		b, err := readN(data, offset, 8)
		if err != nil {
			return RecordValue{}, 0, NewDatabaseError("decode_record_value", err, nil)
		}
		return FloatValue(math.Float64frombits(be64(b))), 8, nil
	case 8:
		return IntValue(0), 0, nil
	case 9:
		return IntValue(1), 0, nil
	default:
		if serialType >= 12 && serialType%2 == 0 {
			n := int((serialType - 12) / 2)
			b, err := readN(data, offset, n)
			if err != nil {
				return RecordValue{}, 0, NewDatabaseError("decode_record_value", err, nil)
			}
			blob := make([]byte, n)
			copy(blob, b)
			return BlobValue(blob), n, nil
		}
		if serialType >= 13 && serialType%2 == 1 {
			n := int((serialType - 13) / 2)
			b, err := readN(data, offset, n)
			if err != nil {
				return RecordValue{}, 0, NewDatabaseError("decode_record_value", err, nil)
			}
			if !utf8.Valid(b) {
				return RecordValue{}, 0, NewDatabaseError("decode_record_value", ErrInvalidUTF8, nil)
			}
			text := make([]byte, n)
			copy(text, b)
			return TextValue(string(text)), n, nil
		}
		return RecordValue{}, 0, NewDatabaseError("decode_record_value", ErrInvalidSerialType, map[string]any{"serial_type": serialType})
	}
}
