package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format names a document encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromExt guesses the format from a file extension.
func FormatFromExt(ext string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "json":
		return FormatJSON, true
	case "yaml", "yml":
		return FormatYAML, true
	case "toml":
		return FormatTOML, true
	}
	return "", false
}

// Decode parses data in the given format.
func Decode(format Format, data []byte) (Value, error) {
	switch format {
	case FormatJSON:
		return DecodeJSON(data)
	case FormatYAML:
		return DecodeYAML(data)
	case FormatTOML:
		return DecodeTOML(data)
	}
	return nil, errors.Errorf("value: unknown format %q", format)
}

// DecodeJSON parses a JSON document. Object key order is preserved.
func DecodeJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeJSONValue(dec)
	if err != nil {
		return nil, errors.Wrap(err, "decode json")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("decode json: trailing data after document")
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeJSONToken(dec, tok)
}

func decodeJSONToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return Number(f), nil
	case json.Delim:
		switch t {
		case '{':
			m := NewMapping()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				child, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				m.Set(key, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			s := NewSequence()
			for dec.More() {
				child, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				s.Append(child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// DecodeYAML parses a YAML document. Mapping key order is preserved.
// An empty document decodes to an empty mapping.
func DecodeYAML(data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}
	if doc.Kind == 0 {
		return NewMapping(), nil
	}
	v, err := fromYAMLNode(&doc)
	if err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}
	return v, nil
}

// DecodeYAMLNode converts an already parsed YAML node. A zero node is an
// empty mapping.
func DecodeYAMLNode(n *yaml.Node) (Value, error) {
	if n == nil || n.Kind == 0 {
		return NewMapping(), nil
	}
	v, err := fromYAMLNode(n)
	if err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}
	return v, nil
}

func fromYAMLNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return NewMapping(), nil
		}
		return fromYAMLNode(n.Content[0])
	case yaml.AliasNode:
		return fromYAMLNode(n.Alias)
	case yaml.MappingNode:
		m := NewMapping()
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.Tag == "!!merge" {
				if err := mergeYAML(m, valNode); err != nil {
					return nil, err
				}
				continue
			}
			child, err := fromYAMLNode(valNode)
			if err != nil {
				return nil, err
			}
			m.Set(keyNode.Value, child)
		}
		return m, nil
	case yaml.SequenceNode:
		s := NewSequence()
		for _, c := range n.Content {
			child, err := fromYAMLNode(c)
			if err != nil {
				return nil, err
			}
			s.Append(child)
		}
		return s, nil
	case yaml.ScalarNode:
		return fromYAMLScalar(n)
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", n.Line, n.Kind)
}

func mergeYAML(dst *Mapping, n *yaml.Node) error {
	src, err := fromYAMLNode(n)
	if err != nil {
		return err
	}
	switch t := src.(type) {
	case *Mapping:
		for _, k := range t.keys {
			if !dst.Has(k) {
				dst.Set(k, t.items[k])
			}
		}
	case *Sequence:
		for _, item := range t.items {
			if im, ok := item.(*Mapping); ok {
				for _, k := range im.keys {
					if !dst.Has(k) {
						dst.Set(k, im.items[k])
					}
				}
			}
		}
	default:
		return fmt.Errorf("line %d: merge value must be a mapping", n.Line)
	}
	return nil
}

func fromYAMLScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return Number(f), nil
	default:
		return String(n.Value), nil
	}
}

// DecodeTOML parses a TOML document. TOML tables are decoded through a Go
// map, so key order is lexical rather than source order. Date and time
// values become strings.
func DecodeTOML(data []byte) (Value, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decode toml")
	}
	v, err := FromAny(normalizeTOML(raw))
	if err != nil {
		return nil, errors.Wrap(err, "decode toml")
	}
	return v, nil
}

func normalizeTOML(x any) any {
	switch t := x.(type) {
	case map[string]any:
		for k, v := range t {
			t[k] = normalizeTOML(v)
		}
		return t
	case []any:
		for i, v := range t {
			t[i] = normalizeTOML(v)
		}
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case toml.LocalDate, toml.LocalTime, toml.LocalDateTime:
		return fmt.Sprint(t)
	}
	return x
}

// EncodeJSON renders v as JSON with mapping keys in insertion order.
func EncodeJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeJSONIndent is like EncodeJSON but indents the output.
func EncodeJSONIndent(v Value, prefix, indent string) ([]byte, error) {
	raw, err := EncodeJSON(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, prefix, indent); err != nil {
		return nil, errors.Wrap(err, "indent json")
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case *Scalar:
		switch t.kind {
		case KindNull:
			buf.WriteString("null")
		case KindBool:
			buf.WriteString(strconv.FormatBool(t.v.(bool)))
		case KindNumber:
			f := t.v.(float64)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return errors.Errorf("encode json: unsupported number %v", f)
			}
			buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		case KindString:
			b, _ := json.Marshal(t.v.(string))
			buf.Write(b)
		}
	case *Mapping:
		buf.WriteByte('{')
		for i, k := range t.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeJSON(buf, t.items[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case *Sequence:
		buf.WriteByte('[')
		for i, item := range t.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	return nil
}

// MarshalJSON implements json.Marshaler with insertion-ordered keys.
func (m *Mapping) MarshalJSON() ([]byte, error) { return EncodeJSON(m) }

// MarshalJSON implements json.Marshaler.
func (s *Sequence) MarshalJSON() ([]byte, error) { return EncodeJSON(s) }

// MarshalJSON implements json.Marshaler.
func (s *Scalar) MarshalJSON() ([]byte, error) { return EncodeJSON(s) }
