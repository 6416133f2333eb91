// Package jsonval provides a sum-typed JSON value and a decode/encode pair
// that preserves object key order, the way an incoming request or response
// body is laid out on the wire. The redactor (internal/redact) walks this
// type directly instead of Go's order-erasing map[string]any, grounded on
// the recursive-marshal approach in canonicalize/jcs.go (decode to a generic
// tree, then walk it) from the teacher repo, adapted to preserve order
// rather than sort it — the collector contract has no canonicalization
// requirement, only a "body is null if unparsable" one (spec.md §3).
package jsonval

import (
	"bytes"
	"encoding/json"
)

// Kind discriminates the tagged union.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Member is one key/value pair of an object, in source order.
type Member struct {
	Key   string
	Value Value
}

// Value is a parsed JSON value: null | bool | number | string | array |
// object. Object preserves member order as read off the wire.
type Value struct {
	Kind    Kind
	Bool    bool
	Number  json.Number
	String  string
	Array   []Value
	Object  []Member
}

// Parse decodes raw bytes into a Value. Returns false (not an error) if the
// bytes are not valid JSON at all — callers use this to implement the
// "body is null if unparsable" contract (spec.md §3) without treating a
// non-JSON body as an internal failure.
func Parse(raw []byte) (Value, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Value{Kind: KindNull}, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{Kind: KindNull}, false
	}
	// Reject trailing garbage: a well-formed single JSON document consumes
	// the whole decoder.
	if dec.More() {
		return Value{Kind: KindNull}, false
	}
	return v, true
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Value{Kind: KindNull}, nil
	case bool:
		return Value{Kind: KindBool, Bool: t}, nil
	case json.Number:
		return Value{Kind: KindNumber, Number: t}, nil
	case string:
		return Value{Kind: KindString, String: t}, nil
	case json.Delim:
		switch t {
		case '[':
			var arr []Value
			for dec.More() {
				elem, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr = append(arr, elem)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return Value{Kind: KindArray, Array: arr}, nil
		case '{':
			var obj []Member
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, errNotObjectKey
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj = append(obj, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return Value{Kind: KindObject, Object: obj}, nil
		}
	}
	return Value{}, errUnexpectedToken
}

var (
	errNotObjectKey    = jsonErr("expected object key")
	errUnexpectedToken = jsonErr("unexpected token")
)

type jsonErr string

func (e jsonErr) Error() string { return string(e) }

// MarshalJSON renders the value back to canonical-order-preserving JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(v.Number.String())
	case KindString:
		b, err := json.Marshal(v.String)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.Array {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.Object {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}
