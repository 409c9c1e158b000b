package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// object and array form the tree a descriptor is lowered to before canonical
// serialization. Leaves are string, int64 and bool; floats and null never
// occur in a descriptor.
type (
	object map[string]any
	array  []any
)

// MarshalCanonical produces RFC 8785 canonical JSON for the descriptor. It is
// both the persisted form and the input of TypeID.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units
//  2. No HTML escaping
//  3. Strings are NFC normalized
//  4. Fields irrelevant to a node's kind are omitted
func (d *Descriptor) MarshalCanonical() ([]byte, error) {
	nodes := make(array, len(d.nodes))
	for i := range d.nodes {
		nodes[i] = lowerNode(&d.nodes[i])
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, object{"nodes": nodes}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lowerNode(n *Node) object {
	o := object{"kind": n.Kind.String()}
	switch n.Kind {
	case KindString:
		if n.Bound > 0 {
			o["bound"] = int64(n.Bound)
		}
	case KindSequence:
		if n.Bound > 0 {
			o["bound"] = int64(n.Bound)
		}
		o["elem"] = int64(n.Elem)
	case KindArray:
		dims := make(array, len(n.Dims))
		for i, dim := range n.Dims {
			dims[i] = int64(dim)
		}
		o["dims"] = dims
		o["elem"] = int64(n.Elem)
	case KindEnum:
		o["name"] = n.Name
		enums := make(array, len(n.Enumerators))
		for i, e := range n.Enumerators {
			enums[i] = object{"name": e.Name, "value": int64(e.Value)}
		}
		o["enumerators"] = enums
	case KindStruct:
		o["name"] = n.Name
		o["ext"] = n.Ext.String()
		members := make(array, len(n.Members))
		for i, m := range n.Members {
			mo := object{
				"name":  m.Name,
				"field": m.Field,
				"id":    int64(m.ID),
				"type":  int64(m.Type),
			}
			if m.Key {
				mo["key"] = true
			}
			if m.Optional {
				mo["optional"] = true
			}
			members[i] = mo
		}
		o["members"] = members
	case KindUnion:
		o["name"] = n.Name
		o["ext"] = n.Ext.String()
		o["disc"] = int64(n.Disc)
		cases := make(array, len(n.Cases))
		for i, c := range n.Cases {
			co := object{"name": c.Name, "field": c.Field, "type": int64(c.Type)}
			if len(c.Labels) > 0 {
				labels := make(array, len(c.Labels))
				for j, l := range c.Labels {
					labels[j] = l
				}
				co["labels"] = labels
			}
			if c.Default {
				co["default"] = true
			}
			cases[i] = co
		}
		o["cases"] = cases
	}
	return o
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case string:
		return writeCanonicalString(buf, val)
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case object:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeysRFC8785)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString writes an NFC-normalized JSON string. Only control
// characters, backslash and quote are escaped; U+2028 and U+2029 stay literal.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns \u2028 and \u2029 escapes back into literal
// characters, leaving \\u2028 (an escaped backslash followed by text) alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+1 < len(data) {
			if i+5 < len(data) && string(data[i+1:i+5]) == "u202" && (data[i+5] == '8' || data[i+5] == '9') {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
			// copy the escape pair as is so an escaped backslash is never
			// mistaken for the start of an escape
			out = append(out, data[i], data[i+1])
			i++
			continue
		}
		out = append(out, data[i])
	}
	return out
}

// compareKeysRFC8785 orders strings by UTF-16 code units.
func compareKeysRFC8785(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	return len(ua) - len(ub)
}
