package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Node ist ein Knoten eines beliebig verschachtelten Baums: Scalar, *Mapping oder Sequence.
type Node interface {
	node()
}

// Scalar ist ein Blattwert: string, json.Number, float64, int, bool oder nil.
type Scalar struct {
	Value any
}

// Sequence ist eine geordnete Liste von Knoten.
type Sequence []Node

// Entry ist ein Schlüssel/Wert-Paar einer Mapping.
type Entry struct {
	Key   string
	Value Node
}

// Mapping ist eine Zuordnung, die die Einfügereihenfolge der Schlüssel beibehält.
type Mapping struct {
	entries []Entry
	index   map[string]int
}

func (Scalar) node()   {}
func (Sequence) node() {}
func (*Mapping) node() {}

// NewMapping erstellt eine leere Mapping.
func NewMapping() *Mapping {
	return &Mapping{index: make(map[string]int)}
}

// Set setzt key auf value. Ein vorhandener Schlüssel behält seine Position.
func (m *Mapping) Set(key string, value Node) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = value
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry{Key: key, Value: value})
}

// Get liefert den Wert zu key.
func (m *Mapping) Get(key string) (Node, bool) {
	if m == nil {
		return nil, false
	}
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.entries[i].Value, true
}

// Entries liefert die Einträge in Einfügereihenfolge.
func (m *Mapping) Entries() []Entry {
	if m == nil {
		return nil
	}
	return m.entries
}

// Len ist die Anzahl der Schlüssel.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// MarshalJSON schreibt die Schlüssel in Einfügereihenfolge.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalScalar(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := marshalNode(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON schreibt die Liste als JSON-Array.
func (s Sequence) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, n := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		v, err := marshalNode(n)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalJSON schreibt den Blattwert.
func (s Scalar) MarshalJSON() ([]byte, error) {
	return marshalScalar(s.Value)
}

// marshalScalar kodiert ohne HTML-Escaping, damit Text wie "<0.05" lesbar bleibt.
func marshalScalar(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func marshalNode(n Node) ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}
	return json.Marshal(n)
}

// ParseNode dekodiert JSON in einen Node-Baum und behält dabei die Schlüsselreihenfolge bei.
// Zahlen bleiben als json.Number erhalten.
func ParseNode(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := decodeNode(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after top-level value")
	}
	return n, nil
}

func decodeNode(dec *json.Decoder) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := NewMapping()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", kt)
				}
				v, err := decodeNode(dec)
				if err != nil {
					return nil, err
				}
				m.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			seq := Sequence{}
			for dec.More() {
				v, err := decodeNode(dec)
				if err != nil {
					return nil, err
				}
				seq = append(seq, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return seq, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	default:
		return Scalar{Value: t}, nil
	}
}
