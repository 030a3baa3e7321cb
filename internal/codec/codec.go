// This file implements the deterministic property codec itself: the
// binary format described in spec.md §4.B and §6.
//
// Layout: format_tag(u8) || label_header(u32 label_hash) ||
// field_count(varint) || (field_id u32, type_tag u8, value_len varint,
// value, name_len varint, name)* — everything after the label header is
// s2-compressed when format_tag says so. Fields are sorted ascending by
// field_id so that encoding the same logical value twice always yields
// byte-identical output, and so an update that does not touch a field
// can splice the encoded field back in unchanged (the "unknown fields
// pass through unmodified" contract in spec.md §4.B).
package codec

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/klauspost/compress/s2"
)

// compressionThreshold is the encoded-fields size above which Encode
// applies s2 block compression, mirroring badger's own WithCompression
// option family (see DESIGN.md) rather than compressing every small
// property blob for no benefit.
const compressionThreshold = 256

const (
	formatRaw byte = iota
	formatS2
)

// TypeTag enumerates the scalar kinds a property value may hold.
type TypeTag byte

const (
	TypeInt TypeTag = iota
	TypeFloat
	TypeString
	TypeBool
	TypeTimestamp
	TypeList
	TypeObject
	TypeNull
)

// Field is one tagged (id, type, value) triple inside a property blob.
// FieldID is the low 32 bits of the field name's hash, used instead of a
// schema-registry-assigned id so the codec needs no external state to
// stay deterministic; collisions are the caller's responsibility, as
// spec.md §9 already accepts for label hashes.
type Field struct {
	FieldID uint32
	Name    string // kept for decode convenience; not re-derived from a registry
	Type    TypeTag
	Raw     []byte // pre-encoded value payload, used verbatim on pass-through
}

// Properties is a decoded property bag: an ordered, deterministic view
// over a node's or edge's fields.
type Properties struct {
	fields map[uint32]Field
}

// NewProperties builds a Properties bag from a plain Go map, as accepted
// at the public Graph Store API boundary (spec.md §3: "mapping from
// field name to tagged scalar").
func NewProperties(m map[string]any) (*Properties, error) {
	p := &Properties{fields: make(map[uint32]Field, len(m))}
	for name, v := range m {
		f, err := encodeField(name, v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		p.fields[f.FieldID] = f
	}
	return p, nil
}

// Get returns the decoded value of a named field.
func (p *Properties) Get(name string) (any, bool) {
	if p == nil {
		return nil, false
	}
	id := LabelHash(name)
	f, ok := p.fields[id]
	if !ok {
		return nil, false
	}
	v, _ := decodeValue(f.Type, f.Raw)
	return v, true
}

// Set assigns a field, overwriting any existing value under that name.
func (p *Properties) Set(name string, v any) error {
	f, err := encodeField(name, v)
	if err != nil {
		return err
	}
	if p.fields == nil {
		p.fields = make(map[uint32]Field)
	}
	p.fields[f.FieldID] = f
	return nil
}

// ToMap decodes every field back into a plain Go map, for callers that
// want the full property bag rather than single-field lookups.
func (p *Properties) ToMap() map[string]any {
	out := make(map[string]any, len(p.fields))
	for _, f := range p.fields {
		v, _ := decodeValue(f.Type, f.Raw)
		out[f.Name] = v
	}
	return out
}

// sortedFields returns the bag's fields ordered ascending by FieldID,
// the order the wire format requires for determinism.
func (p *Properties) sortedFields() []Field {
	out := make([]Field, 0, len(p.fields))
	for _, f := range p.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FieldID < out[j].FieldID })
	return out
}

// Encode produces format_tag || label_header || field_count ||
// fields* for a node or edge's property bag, given the label that
// heads the blob. The fields section is s2-compressed when it grows
// past compressionThreshold; the label header stays uncompressed so a
// label-hash-only read never has to decompress.
func Encode(label string, props *Properties) []byte {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, LabelHash(label))

	var fields []Field
	if props != nil {
		fields = props.sortedFields()
	}

	var body []byte
	countBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(countBuf, uint64(len(fields)))
	body = append(body, countBuf[:n]...)

	for _, f := range fields {
		idBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(idBuf, f.FieldID)
		body = append(body, idBuf...)
		body = append(body, byte(f.Type))
		lenBuf := make([]byte, binary.MaxVarintLen64)
		ln := binary.PutUvarint(lenBuf, uint64(len(f.Raw)))
		body = append(body, lenBuf[:ln]...)
		body = append(body, f.Raw...)
		// name length + bytes, so decode can reconstruct a usable map
		// key without a side schema registry.
		nameBuf := make([]byte, binary.MaxVarintLen64)
		nn := binary.PutUvarint(nameBuf, uint64(len(f.Name)))
		body = append(body, nameBuf[:nn]...)
		body = append(body, f.Name...)
	}

	format := formatRaw
	if len(body) > compressionThreshold {
		format = formatS2
		body = s2.Encode(nil, body)
	}

	buf := make([]byte, 0, 1+len(header)+len(body))
	buf = append(buf, format)
	buf = append(buf, header...)
	buf = append(buf, body...)
	return buf
}

// Decode parses a blob produced by Encode, returning the label hash
// found in the header and the decoded property bag.
func Decode(blob []byte) (labelHash uint32, props *Properties, err error) {
	if len(blob) < 5 {
		return 0, nil, fmt.Errorf("codec: blob too short for format tag and label header")
	}
	format := blob[0]
	labelHash = binary.BigEndian.Uint32(blob[1:5])
	rest := blob[5:]

	if format == formatS2 {
		rest, err = s2.Decode(nil, rest)
		if err != nil {
			return 0, nil, fmt.Errorf("codec: s2 decode: %w", err)
		}
	}

	count, n := binary.Uvarint(rest)
	if n <= 0 {
		return 0, nil, fmt.Errorf("codec: malformed field count")
	}
	rest = rest[n:]

	props = &Properties{fields: make(map[uint32]Field, count)}
	for i := uint64(0); i < count; i++ {
		if len(rest) < 5 {
			return 0, nil, fmt.Errorf("codec: truncated field header")
		}
		fieldID := binary.BigEndian.Uint32(rest[:4])
		typeTag := TypeTag(rest[4])
		rest = rest[5:]

		vlen, n := binary.Uvarint(rest)
		if n <= 0 {
			return 0, nil, fmt.Errorf("codec: malformed value length")
		}
		rest = rest[n:]
		if uint64(len(rest)) < vlen {
			return 0, nil, fmt.Errorf("codec: truncated value")
		}
		raw := rest[:vlen]
		rest = rest[vlen:]

		nlen, n := binary.Uvarint(rest)
		if n <= 0 {
			return 0, nil, fmt.Errorf("codec: malformed name length")
		}
		rest = rest[n:]
		if uint64(len(rest)) < nlen {
			return 0, nil, fmt.Errorf("codec: truncated name")
		}
		name := string(rest[:nlen])
		rest = rest[nlen:]

		props.fields[fieldID] = Field{FieldID: fieldID, Name: name, Type: typeTag, Raw: raw}
	}
	return labelHash, props, nil
}

// Merge produces a new Properties bag equal to base with update's fields
// overlaid, leaving every field update does not mention byte-identical
// to base — the "unknown fields pass through unchanged" contract.
func Merge(base *Properties, update *Properties) *Properties {
	out := &Properties{fields: make(map[uint32]Field)}
	if base != nil {
		for id, f := range base.fields {
			out.fields[id] = f
		}
	}
	if update != nil {
		for id, f := range update.fields {
			out.fields[id] = f
		}
	}
	return out
}
